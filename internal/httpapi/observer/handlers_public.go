package observerapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/digitalentity/aientity/internal/activitystream"
	"github.com/digitalentity/aientity/internal/audit"
	"github.com/digitalentity/aientity/internal/domain"
	"github.com/digitalentity/aientity/internal/voting"
)

func writeAPIError(c *gin.Context, err error) {
	if apiErr, ok := err.(*domain.APIError); ok {
		c.JSON(apiErr.Kind.HTTPStatus(), gin.H{"error": apiErr.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func (s *Server) registerPublic(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	r.GET("/api/state", s.handleState)
	r.GET("/api/votes", s.handleVotes)
	r.POST("/api/vote/:choice", s.voteLimiter.middleware(), s.handleVote)
	r.GET("/api/stream/activity", activitystream.Handler(s.store, s.hub))
}

type voteTally struct {
	Live int64 `json:"live"`
	Die  int64 `json:"die"`
}

func (s *Server) handleState(c *gin.Context) {
	state := s.module.State()
	_, model := s.module.Identity()

	var tally voteTally
	if round, err := s.voting.OpenRoundCounts(c.Request.Context()); err == nil {
		tally = voteTally{Live: round.Live, Die: round.Die}
	}

	balance, err := s.module.BudgetBalance(c.Request.Context())
	if err != nil {
		s.log.Debug().Err(err).Msg("failed to fetch agent budget balance for /api/state")
	}

	resp := gin.H{
		"life_number": state.LifeNumber,
		"is_alive":    state.IsAlive,
		"model":       model,
		"votes":       tally,
		"balance_usd": balance,
	}
	if state.BornAt != nil {
		resp["born_at"] = state.BornAt.Format("2006-01-02T15:04:05Z07:00")
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleVotes(c *gin.Context) {
	round, err := s.voting.OpenRoundCounts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusOK, voteTally{})
		return
	}
	c.JSON(http.StatusOK, voteTally{Live: round.Live, Die: round.Die})
}

func (s *Server) handleVote(c *gin.Context) {
	var choice domain.Choice
	switch c.Param("choice") {
	case "live":
		choice = domain.ChoiceLive
	case "die":
		choice = domain.ChoiceDie
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "choice must be live or die"})
		return
	}

	fingerprint := voting.Fingerprint(c, s.cfg.IPSalt)
	result, err := s.voting.Submit(c.Request.Context(), fingerprint, choice)

	success := err == nil && result == voting.SubmitOK
	if s.auditor != nil {
		s.auditor.Log(c.Request.Context(), audit.Entry{
			Actor: fingerprint, EventType: "vote", Action: string(choice),
			Success: success, ErrorMsg: errString(err), RequestID: c.GetHeader("X-Request-Id"),
		})
	}

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}

	switch result {
	case voting.SubmitOK:
		c.JSON(http.StatusOK, gin.H{"ok": true})
	case voting.SubmitCooldown:
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "cooldown"})
	case voting.SubmitDuplicate:
		c.JSON(http.StatusConflict, gin.H{"error": "duplicate"})
	case voting.SubmitDead:
		c.JSON(http.StatusGone, gin.H{"error": "dead"})
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
