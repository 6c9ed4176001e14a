// Package cache publishes advisory staleness signals to the presentation
// layer after mutating gameplay operations.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// View names used in invalidation keys.
const (
	ViewResearch   = "research"
	ViewDeploy     = "deploy"
	ViewMilestones = "milestones"
	ViewInventory  = "inventory"
)

const invalidateTimeout = 2 * time.Second

// Invalidator deletes cached view keys after a mutation. The signal is
// advisory only: failures are logged and never surfaced to the caller, and a
// nil Invalidator is a no-op.
type Invalidator struct {
	client *redis.Client
	logger *zap.Logger
}

// NewInvalidator connects to redis at the given address. An empty address
// returns a nil Invalidator, which disables the signal.
func NewInvalidator(addr string, logger *zap.Logger) (*Invalidator, error) {
	if addr == "" {
		return nil, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("cache: ping failed: %w", err)
	}

	logger.Info("cache invalidator connected", zap.String("addr", addr))
	return &Invalidator{client: client, logger: logger}, nil
}

// InvalidatePlayerViews drops the named cached views for one player.
func (i *Invalidator) InvalidatePlayerViews(ctx context.Context, playerID string, views ...string) {
	if i == nil || i.client == nil || playerID == "" || len(views) == 0 {
		return
	}

	keys := make([]string, 0, len(views))
	for _, view := range views {
		keys = append(keys, fmt.Sprintf("view:%s:%s", view, playerID))
	}

	delCtx, cancel := context.WithTimeout(ctx, invalidateTimeout)
	defer cancel()
	if err := i.client.Del(delCtx, keys...).Err(); err != nil {
		i.logger.Warn("cache invalidation failed",
			zap.String("player_id", playerID),
			zap.Strings("keys", keys),
			zap.Error(err))
	}
}

// Close releases the underlying redis connection.
func (i *Invalidator) Close() error {
	if i == nil || i.client == nil {
		return nil
	}
	return i.client.Close()
}
