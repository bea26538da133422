// Package observerapi implements the observer service's public, admin,
// internal, and metrics HTTP surfaces (§6), wiring gin routes onto the
// lifecycle, voting, audit, and activitystream packages. Route grouping
// and middleware order (CORS, metrics, recovery) follow the teacher's
// cmd/api/main.go setupMiddleware/setupRoutes split.
package observerapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/digitalentity/aientity/internal/activitystream"
	"github.com/digitalentity/aientity/internal/audit"
	"github.com/digitalentity/aientity/internal/config"
	"github.com/digitalentity/aientity/internal/lifecycle"
	"github.com/digitalentity/aientity/internal/metrics"
	"github.com/digitalentity/aientity/internal/store"
	"github.com/digitalentity/aientity/internal/voting"
)

type Server struct {
	cfg     *config.Config
	module  *lifecycle.Module
	voting  *voting.Service
	auditor *audit.Logger
	hub     *activitystream.Hub
	store   *store.Store
	metrics *metrics.Observer
	log     zerolog.Logger

	voteLimiter *voteRateLimiter
}

func New(cfg *config.Config, module *lifecycle.Module, votingSvc *voting.Service, auditor *audit.Logger,
	hub *activitystream.Hub, st *store.Store, m *metrics.Observer, log zerolog.Logger) *Server {
	return &Server{
		cfg: cfg, module: module, voting: votingSvc, auditor: auditor,
		hub: hub, store: st, metrics: m, log: log.With().Str("component", "observerapi").Logger(),
		voteLimiter: newVoteRateLimiter(),
	}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Internal-Key", "Last-Event-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(gin.Recovery())
	r.Use(requestIDMiddleware())

	s.registerPublic(r)
	s.registerAdmin(r)
	s.registerInternal(r)

	r.GET("/metrics", internalAuth(s.cfg), gin.WrapH(promhttp.Handler()))

	return r
}

// requestIDMiddleware assigns a correlation id to every request not
// already carrying one, surfaced both on the response header and to audit
// entries via X-Request-Id. Grounded on the teacher's
// AuditLoggingMiddleware request-id generation (cmd/api/middleware.go).
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-Id")
		if requestID == "" {
			requestID = uuid.New().String()
			c.Request.Header.Set("X-Request-Id", requestID)
		}
		c.Writer.Header().Set("X-Request-Id", requestID)
		c.Next()
	}
}
