// Package agentapi implements the agent service's loopback-only internal
// HTTP surface (§6): /state, /birth, /force-sync, /budget, /healthz, and
// /metrics, all gated by the shared internal key except /healthz.
package agentapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/digitalentity/aientity/internal/agentcore"
	"github.com/digitalentity/aientity/internal/config"
	"github.com/digitalentity/aientity/internal/domain"
)

type Server struct {
	cfg   *config.Config
	agent *agentcore.Agent
	log   zerolog.Logger
}

func New(cfg *config.Config, a *agentcore.Agent, log zerolog.Logger) *Server {
	return &Server{cfg: cfg, agent: a, log: log.With().Str("component", "agentapi").Logger()}
}

func (s *Server) internalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.InternalAPIKey == "" || c.GetHeader("X-Internal-Key") != s.cfg.InternalAPIKey {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid internal key"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	internal := r.Group("", s.internalAuth())
	internal.GET("/state", func(c *gin.Context) { c.JSON(http.StatusOK, s.agent.State()) })
	internal.GET("/budget", func(c *gin.Context) { c.JSON(http.StatusOK, s.agent.Budget()) })
	internal.POST("/birth", s.handleBirth)
	internal.POST("/force-sync", s.handleForceSync)
	internal.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func (s *Server) handleBirth(c *gin.Context) {
	var payload domain.BirthPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed birth payload"})
		return
	}

	if err := s.agent.HandleBirth(c.Request.Context(), payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleForceSync(c *gin.Context) {
	var payload domain.ForceSyncPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed force-sync payload"})
		return
	}
	s.agent.HandleForceSync(payload)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
