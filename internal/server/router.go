// Package server exposes the gameplay engine over HTTP. Handlers translate
// tagged service failures to status codes one to one; the only deliberate
// exception is the deployment status soft-fail for anonymous sessions.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/signal-k/stardust-api/internal/apperr"
	"github.com/signal-k/stardust-api/internal/cache"
	"github.com/signal-k/stardust-api/internal/deployment"
	"github.com/signal-k/stardust-api/internal/extraction"
	"github.com/signal-k/stardust-api/internal/ledger"
	"github.com/signal-k/stardust-api/internal/milestones"
	"github.com/signal-k/stardust-api/internal/research"
)

const (
	playerIDContextKey  = "stardust_player_id"
	requestIDContextKey = "stardust_request_id"
	requestIDHeader     = "X-Request-ID"
)

var (
	errMissingTokenManager      = errors.New("token manager dependency required")
	errMissingLedgerService     = errors.New("ledger service dependency required")
	errMissingResearchService   = errors.New("research service dependency required")
	errMissingDeploymentService = errors.New("deployment service dependency required")
	errMissingExtractionService = errors.New("extraction service dependency required")
	errMissingMilestoneService  = errors.New("milestone service dependency required")
	errInvalidAuthorization     = errors.New("authorization header missing or invalid")
)

// TokenManager issues and validates player session tokens.
type TokenManager interface {
	IssuePlayerToken(ctx context.Context, playerID string) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// Dependencies wires the gameplay services into the HTTP layer.
type Dependencies struct {
	TokenManager TokenManager
	Ledger       *ledger.Service
	Research     *research.Service
	Deployment   *deployment.Service
	Extraction   *extraction.Service
	Milestones   *milestones.Service
	Invalidator  *cache.Invalidator
	RateLimit    RateLimitConfig
	Logger       *zap.Logger
}

// NewHTTPHandler builds the full gameplay router.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.Ledger == nil {
		return nil, errMissingLedgerService
	}
	if deps.Research == nil {
		return nil, errMissingResearchService
	}
	if deps.Deployment == nil {
		return nil, errMissingDeploymentService
	}
	if deps.Extraction == nil {
		return nil, errMissingExtractionService
	}
	if deps.Milestones == nil {
		return nil, errMissingMilestoneService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(assignRequestID)
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	router.Use(newRateLimiter(deps.RateLimit).middleware())

	handler := &httpHandler{
		tokens:      deps.TokenManager,
		ledger:      deps.Ledger,
		research:    deps.Research,
		deployment:  deps.Deployment,
		extraction:  deps.Extraction,
		milestones:  deps.Milestones,
		invalidator: deps.Invalidator,
		logger:      logger,
	}

	router.POST("/auth/token", handler.handleIssueToken)

	gameplay := router.Group("/api/gameplay")

	// Anonymous sessions get zeroed payloads on these two, not 401s.
	soft := gameplay.Group("/")
	soft.Use(handler.resolvePlayerOptional)
	soft.GET("/deploy/status", handler.handleDeployStatus)
	soft.GET("/profile/referral-status", handler.handleReferralStatus)

	protected := gameplay.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/research/summary", handler.handleResearchSummary)
	protected.POST("/research/unlock", handler.handleResearchUnlock)
	protected.POST("/deploy", handler.handleDeploy)
	protected.DELETE("/deploy/links", handler.handleDeleteLinks)
	protected.GET("/extraction", handler.handleListDeposits)
	protected.GET("/extraction/:id", handler.handleGetDeposit)
	protected.POST("/extraction/:id", handler.handleExtract)
	protected.GET("/inventory", handler.handleListInventory)
	protected.GET("/milestones/progress", handler.handleMilestones)

	return router, nil
}

type httpHandler struct {
	tokens      TokenManager
	ledger      *ledger.Service
	research    *research.Service
	deployment  *deployment.Service
	extraction  *extraction.Service
	milestones  *milestones.Service
	invalidator *cache.Invalidator
	logger      *zap.Logger
}

type tokenRequestPayload struct {
	PlayerID string `json:"player_id"`
}

type tokenResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (h *httpHandler) handleIssueToken(c *gin.Context) {
	var request tokenRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.PlayerID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	playerID := strings.TrimSpace(request.PlayerID)
	// The balance read doubles as an existence check: unknown players come
	// back tagged unauthorized.
	if _, err := h.ledger.ComputeBalance(c.Request.Context(), playerID); err != nil {
		if apperr.KindOf(err) == apperr.KindUnauthorized {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		h.writeError(c, err)
		return
	}

	token, expiresIn, err := h.tokens.IssuePlayerToken(c.Request.Context(), playerID)
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, tokenResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}

type researchSummaryPayload struct {
	AvailableStardust int64 `json:"availableStardust"`
	research.Summary
}

func (h *httpHandler) handleResearchSummary(c *gin.Context) {
	playerID := c.GetString(playerIDContextKey)

	summary, err := h.research.Summary(c.Request.Context(), playerID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, researchSummaryPayload{
		AvailableStardust: summary.Balance.Available,
		Summary:           summary,
	})
}

type unlockRequestPayload struct {
	TechType string `json:"techType"`
}

func (h *httpHandler) handleResearchUnlock(c *gin.Context) {
	playerID := c.GetString(playerIDContextKey)

	var request unlockRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.TechType) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	if err := h.research.Purchase(c.Request.Context(), playerID, strings.TrimSpace(request.TechType)); err != nil {
		h.writeError(c, err)
		return
	}

	h.invalidator.InvalidatePlayerViews(c.Request.Context(), playerID, cache.ViewResearch, cache.ViewMilestones)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *httpHandler) handleDeployStatus(c *gin.Context) {
	playerID := c.GetString(playerIDContextKey)

	status, err := h.deployment.ComputeStatus(c.Request.Context(), playerID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"deploymentStatus": gin.H{
			"telescope":  status.Telescope,
			"satellites": status.Satellites,
			"rover":      status.Rover,
		},
		"planetTargets": status.PlanetTargets,
	})
}

type deployRequestPayload struct {
	Automaton  string  `json:"automaton"`
	AnomalyIDs []int64 `json:"anomalyIds"`
}

func (h *httpHandler) handleDeploy(c *gin.Context) {
	playerID := c.GetString(playerIDContextKey)

	var request deployRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	links, err := h.deployment.Deploy(c.Request.Context(), playerID, request.Automaton, request.AnomalyIDs)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.invalidator.InvalidatePlayerViews(c.Request.Context(), playerID, cache.ViewDeploy)
	c.JSON(http.StatusOK, gin.H{"success": true, "linked": len(links)})
}

func (h *httpHandler) handleDeleteLinks(c *gin.Context) {
	playerID := c.GetString(playerIDContextKey)

	filter := deployment.LinkFilter{Automaton: strings.TrimSpace(c.Query("automaton"))}
	if raw := strings.TrimSpace(c.Query("anomalyId")); raw != "" {
		anomalyID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_anomaly_id"})
			return
		}
		filter.AnomalyID = &anomalyID
	}

	deleted, err := h.deployment.DeleteLinks(c.Request.Context(), playerID, filter)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.invalidator.InvalidatePlayerViews(c.Request.Context(), playerID, cache.ViewDeploy)
	c.JSON(http.StatusOK, gin.H{"success": true, "deleted": deleted})
}

func (h *httpHandler) handleGetDeposit(c *gin.Context) {
	playerID := c.GetString(playerIDContextKey)

	depositID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_deposit_id"})
		return
	}

	deposit, err := h.extraction.GetDeposit(c.Request.Context(), playerID, depositID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deposit": deposit})
}

type extractRequestPayload struct {
	ExtractedQuantity float64 `json:"extractedQuantity"`
	Purity            float64 `json:"purity"`
}

func (h *httpHandler) handleExtract(c *gin.Context) {
	playerID := c.GetString(playerIDContextKey)

	depositID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_deposit_id"})
		return
	}

	var request extractRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	if err := h.extraction.Extract(c.Request.Context(), playerID, depositID, request.ExtractedQuantity, request.Purity); err != nil {
		h.writeError(c, err)
		return
	}

	h.invalidator.InvalidatePlayerViews(c.Request.Context(), playerID, cache.ViewInventory, cache.ViewMilestones)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *httpHandler) handleListDeposits(c *gin.Context) {
	playerID := c.GetString(playerIDContextKey)

	deposits, err := h.extraction.ListDeposits(c.Request.Context(), playerID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deposits": deposits})
}

func (h *httpHandler) handleListInventory(c *gin.Context) {
	playerID := c.GetString(playerIDContextKey)

	inventory, err := h.extraction.ListInventory(c.Request.Context(), playerID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"inventory": inventory})
}

func (h *httpHandler) handleMilestones(c *gin.Context) {
	playerID := c.GetString(playerIDContextKey)

	progress, err := h.milestones.ComputeMilestones(c.Request.Context(), playerID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

func (h *httpHandler) handleReferralStatus(c *gin.Context) {
	playerID := c.GetString(playerIDContextKey)
	if playerID == "" {
		c.JSON(http.StatusOK, gin.H{"authenticated": false, "hasReferral": false})
		return
	}

	hasReferral, err := h.research.HasSubmittedReferral(c.Request.Context(), playerID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": true, "hasReferral": hasReferral})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	playerID, err := h.bearerSubject(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	c.Set(playerIDContextKey, playerID)
	c.Next()
}

// resolvePlayerOptional resolves the bearer token when present but lets
// anonymous and expired sessions through with no player identity set.
func (h *httpHandler) resolvePlayerOptional(c *gin.Context) {
	if playerID, err := h.bearerSubject(c); err == nil {
		c.Set(playerIDContextKey, playerID)
	}
	c.Next()
}

func (h *httpHandler) bearerSubject(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", errInvalidAuthorization
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return "", errInvalidAuthorization
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		return "", errInvalidAuthorization
	}
	return subject, nil
}

// assignRequestID honours a caller-supplied request id and mints one
// otherwise, echoing it back so failures can be correlated across logs.
func assignRequestID(c *gin.Context) {
	requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	c.Header(requestIDHeader, requestID)
	c.Next()
}

func (h *httpHandler) writeError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(requestIDContextKey)),
			zap.Error(err))
	}

	body := gin.H{"error": errorMessage(err)}
	for key, value := range apperr.DetailOf(err) {
		body[key] = value
	}
	c.JSON(apperr.HTTPStatus(kind), body)
}

func errorMessage(err error) string {
	var appError *apperr.Error
	if errors.As(err, &appError) && appError.Kind != apperr.KindInternal {
		return appError.Message
	}
	return "internal_error"
}
