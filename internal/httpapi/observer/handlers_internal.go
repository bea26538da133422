package observerapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/digitalentity/aientity/internal/domain"
)

// registerInternal wires the loopback-only contract the agent uses to
// report activity, its chosen identity, and to poll for an undelivered
// OracleMessage (§4.9's "pending Oracle message" prompt material). These
// routes extend the public/admin/internal split named in §6 with the
// observer-side half of the agent<->observer activity-reporting contract.
func (s *Server) registerInternal(r *gin.Engine) {
	internal := r.Group("/internal", internalAuth(s.cfg))
	internal.POST("/activity", s.handleInternalActivity)
	internal.POST("/identity", s.handleInternalIdentity)
	internal.GET("/oracle/pending", s.handleOraclePending)
	internal.POST("/oracle/ack", s.handleOracleAck)
}

type activityReport struct {
	LifeNumber int64               `json:"life_number"`
	Kind       domain.ActivityKind `json:"kind"`
	Payload    json.RawMessage     `json:"payload"`
}

func (s *Server) handleInternalActivity(c *gin.Context) {
	var req activityReport
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed activity report"})
		return
	}
	s.module.RecordAgentActivity(c.Request.Context(), req.LifeNumber, req.Kind, req.Payload)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type identityReport struct {
	LifeNumber int64           `json:"life_number"`
	Identity   domain.Identity `json:"identity"`
	Model      string          `json:"model"`
}

func (s *Server) handleInternalIdentity(c *gin.Context) {
	var req identityReport
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed identity report"})
		return
	}
	if err := s.module.SetIdentity(c.Request.Context(), req.Identity, req.Model); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleOraclePending(c *gin.Context) {
	pending, err := s.store.PendingOracleMessages(c.Request.Context())
	if err != nil || len(pending) == 0 {
		c.JSON(http.StatusOK, gin.H{"message": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": pending[0]})
}

type oracleAckRequest struct {
	ID int64 `json:"id"`
}

func (s *Server) handleOracleAck(c *gin.Context) {
	var req oracleAckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request"})
		return
	}
	if err := s.store.AcknowledgeOracleMessage(c.Request.Context(), req.ID, time.Now().UTC()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
