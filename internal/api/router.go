// Package api exposes the dispatcher over HTTP and streams table events
// over a websocket.
package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"casino-bot/internal/game"
	"casino-bot/internal/model"
	"casino-bot/internal/service"
)

// HealthChecker reports whether a backing store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// History reads a user's journal entries. Lists are newest first.
type History interface {
	ListByUser(ctx context.Context, userID int64, limit int) ([]*model.Transaction, error)
	ListByUserAndType(ctx context.Context, userID int64, txType string, limit int) ([]*model.Transaction, error)
	GetUserGameProfit(ctx context.Context, userID int64, from, to time.Time) (int64, error)
}

const defaultHistoryLimit = 20

// Server holds the HTTP handlers.
type Server struct {
	dispatcher *service.Dispatcher
	ranking    *service.RankingService
	history    History
	hub        *Hub
	health     HealthChecker
}

// NewServer creates a server. hub and health may be nil.
func NewServer(dispatcher *service.Dispatcher, ranking *service.RankingService, history History, hub *Hub, health HealthChecker) *Server {
	return &Server{
		dispatcher: dispatcher,
		ranking:    ranking,
		history:    history,
		hub:        hub,
		health:     health,
	}
}

// actionRequest is the JSON body of POST /api/actions.
type actionRequest struct {
	UserID    int64          `json:"user_id" binding:"required"`
	Type      string         `json:"type" binding:"required"`
	ChannelID int64          `json:"channel_id"`
	Params    map[string]any `json:"params"`
	Pool      []int64        `json:"pool"`
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), cors())

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Server is running."})
	})
	router.GET("/health", s.Health)

	api := router.Group("/api")
	{
		api.GET("/actions", s.ListActions)
		api.POST("/actions", s.Dispatch)
		api.GET("/balances", s.ListBalances)
		api.GET("/users/:id/transactions", s.ListTransactions)
		api.GET("/users/:id/profit", s.GetProfit)
	}

	if s.hub != nil {
		router.GET("/ws", s.hub.HandleWebSocket)
	}
	return router
}

// Health reports service health, including the database when one is configured.
func (s *Server) Health(c *gin.Context) {
	if s.health != nil {
		if err := s.health.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unavailable",
				"details": err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListActions lists the action types the dispatcher serves.
func (s *Server) ListActions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"actions": s.dispatcher.Types()})
}

// Dispatch runs one action.
func (s *Server) Dispatch(c *gin.Context) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	res, err := s.dispatcher.Dispatch(c.Request.Context(), game.Action{
		UserID:    req.UserID,
		Type:      req.Type,
		ChannelID: req.ChannelID,
		Params:    req.Params,
		Pool:      req.Pool,
	})
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			log.Error().Err(err).Str("action", req.Type).Int64("user_id", req.UserID).Msg("Action failed")
		}
		c.JSON(status, gin.H{
			"error":   http.StatusText(status),
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, res)
}

// ListBalances ranks the members given in ?pool=1,2,3.
func (s *Server) ListBalances(c *gin.Context) {
	pool, err := parsePool(c.Query("pool"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid pool",
			"details": err.Error(),
		})
		return
	}

	limit := -1
	if n, err := strconv.Atoi(c.Query("limit")); err == nil && n > 0 {
		limit = n
	}
	c.JSON(http.StatusOK, gin.H{"balances": s.ranking.GetTopUsers(pool, limit)})
}

// ListTransactions returns a user's journal entries, newest first
// (?limit=, default 20; ?type= keeps one transaction type).
func (s *Server) ListTransactions(c *gin.Context) {
	userID, ok := userParam(c)
	if !ok {
		return
	}
	limit := defaultHistoryLimit
	if n, err := strconv.Atoi(c.Query("limit")); err == nil && n > 0 {
		limit = n
	}

	var (
		txs []*model.Transaction
		err error
	)
	if txType := c.Query("type"); txType != "" {
		txs, err = s.history.ListByUserAndType(c.Request.Context(), userID, txType, limit)
	} else {
		txs, err = s.history.ListByUser(c.Request.Context(), userID, limit)
	}
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Failed to list transactions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list transactions"})
		return
	}
	if txs == nil {
		txs = []*model.Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

// GetProfit sums a user's game transactions in [from, to). Both bounds are
// RFC 3339; they default to the last 24 hours.
func (s *Server) GetProfit(c *gin.Context) {
	userID, ok := userParam(c)
	if !ok {
		return
	}
	to, err := timeQuery(c, "to", time.Now())
	if err != nil {
		return
	}
	from, err := timeQuery(c, "from", to.Add(-24*time.Hour))
	if err != nil {
		return
	}
	if !from.Before(to) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid range", "details": "from must be before to"})
		return
	}

	profit, err := s.history.GetUserGameProfit(c.Request.Context(), userID, from, to)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Failed to sum game profit")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sum game profit"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"from":    from,
		"to":      to,
		"profit":  profit,
	})
}

func userParam(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid user id",
			"details": err.Error(),
		})
		return 0, false
	}
	return userID, true
}

// timeQuery parses an RFC 3339 query parameter, answering 400 when it is malformed.
func timeQuery(c *gin.Context, key string, def time.Time) (time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid " + key,
			"details": err.Error(),
		})
		return time.Time{}, err
	}
	return t, nil
}

func parsePool(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	pool := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, err
		}
		pool = append(pool, id)
	}
	return pool, nil
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Msg("HTTP request")
	}
}
