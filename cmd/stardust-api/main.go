package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/signal-k/stardust-api/internal/auth"
	"github.com/signal-k/stardust-api/internal/cache"
	"github.com/signal-k/stardust-api/internal/config"
	"github.com/signal-k/stardust-api/internal/database"
	"github.com/signal-k/stardust-api/internal/deployment"
	"github.com/signal-k/stardust-api/internal/extraction"
	"github.com/signal-k/stardust-api/internal/ledger"
	"github.com/signal-k/stardust-api/internal/logging"
	"github.com/signal-k/stardust-api/internal/milestones"
	"github.com/signal-k/stardust-api/internal/research"
	"github.com/signal-k/stardust-api/internal/server"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "stardust-api",
		Short: "Star Sailors gameplay progression service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Database driver (sqlite or postgres)")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("database-dsn", defaults.GetString("database.dsn"), "Postgres DSN")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("token.ttl_minutes"), "Session token TTL in minutes")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Session token signing secret (overrides env)")
	cmd.PersistentFlags().Bool("redis-enabled", defaults.GetBool("redis.enabled"), "Enable redis cache invalidation")
	cmd.PersistentFlags().String("redis-addr", defaults.GetString("redis.addr"), "Redis address")
	cmd.PersistentFlags().Bool("ratelimit-enabled", defaults.GetBool("ratelimit.enabled"), "Enable per-client rate limiting")
	cmd.PersistentFlags().Float64("ratelimit-rps", defaults.GetFloat64("ratelimit.rps"), "Requests per second per client")
	cmd.PersistentFlags().Int("ratelimit-burst", defaults.GetInt("ratelimit.burst"), "Burst size per client")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "token.ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "redis.enabled", "redis-enabled")
	bindFlag(cmd, "redis.addr", "redis-addr")
	bindFlag(cmd, "ratelimit.enabled", "ratelimit-enabled")
	bindFlag(cmd, "ratelimit.rps", "ratelimit-rps")
	bindFlag(cmd, "ratelimit.burst", "ratelimit-burst")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(appConfig, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	tokenManager, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        "stardust-auth",
		Audience:      "stardust-api",
		TokenTTL:      appConfig.TokenTTL,
	})
	if err != nil {
		return err
	}

	ledgerService, err := ledger.NewService(ledger.ServiceConfig{Database: db, Logger: logger})
	if err != nil {
		return err
	}
	researchService, err := research.NewService(research.ServiceConfig{
		Database: db,
		Ledger:   ledgerService,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	deploymentService, err := deployment.NewService(deployment.ServiceConfig{
		Database: db,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	extractionService, err := extraction.NewService(extraction.ServiceConfig{
		Database: db,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	milestoneService, err := milestones.NewService(milestones.ServiceConfig{Database: db, Logger: logger})
	if err != nil {
		return err
	}

	var invalidator *cache.Invalidator
	if appConfig.RedisEnabled {
		invalidator, err = cache.NewInvalidator(appConfig.RedisAddr, logger)
		if err != nil {
			return err
		}
		defer invalidator.Close()
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		TokenManager: tokenManager,
		Ledger:       ledgerService,
		Research:     researchService,
		Deployment:   deploymentService,
		Extraction:   extractionService,
		Milestones:   milestoneService,
		Invalidator:  invalidator,
		RateLimit: server.RateLimitConfig{
			Enabled:           appConfig.RateLimitEnabled,
			RequestsPerSecond: appConfig.RateLimitRPS,
			BurstSize:         appConfig.RateLimitBurst,
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
