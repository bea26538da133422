package observerapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/digitalentity/aientity/internal/audit"
	"github.com/digitalentity/aientity/internal/domain"
)

func (s *Server) registerAdmin(r *gin.Engine) {
	admin := r.Group("/api", adminAuth(s.cfg))
	admin.POST("/kill", s.handleKill)
	admin.POST("/respawn", s.handleRespawn)
	admin.POST("/force-alive", s.handleForceAlive)
	admin.POST("/god/votes/adjust", s.handleVotesAdjust)
	admin.POST("/god/oracle", s.handleOracleInject)
}

func (s *Server) handleKill(c *gin.Context) {
	if err := s.module.Kill(c.Request.Context(), actorFromContext(c)); err != nil {
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleRespawn(c *gin.Context) {
	if err := s.module.Respawn(c.Request.Context(), actorFromContext(c)); err != nil {
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleForceAlive(c *gin.Context) {
	if err := s.module.ForceAlive(c.Request.Context(), actorFromContext(c)); err != nil {
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type votesAdjustRequest struct {
	LiveDelta int64 `json:"live_delta"`
	DieDelta  int64 `json:"die_delta"`
}

func (s *Server) handleVotesAdjust(c *gin.Context) {
	var req votesAdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	round, err := s.voting.OpenRoundCounts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "no open vote round to adjust"})
		return
	}

	if err := s.store.AdjustVoteCounters(c.Request.Context(), round.ID, req.LiveDelta, req.DieDelta); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}

	if s.auditor != nil {
		s.auditor.Log(c.Request.Context(), audit.Entry{
			Actor: actorFromContext(c), EventType: "admin", Action: "votes.adjust",
			Resource: "vote_round", Success: true,
		})
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type oracleInjectRequest struct {
	Kind domain.OracleKind `json:"kind"`
	Text string            `json:"text"`
}

func (s *Server) handleOracleInject(c *gin.Context) {
	var req oracleInjectRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}
	if req.Kind == "" {
		req.Kind = domain.OracleDirect
	}

	if _, err := s.store.InsertOracleMessage(c.Request.Context(), req.Kind, req.Text, time.Now().UTC()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}

	s.module.RecordOracleDelivered(c.Request.Context(), req.Text)
	if s.auditor != nil {
		s.auditor.Log(c.Request.Context(), audit.Entry{
			Actor: actorFromContext(c), EventType: "admin", Action: "god.oracle",
			Resource: string(req.Kind), Success: true,
		})
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
