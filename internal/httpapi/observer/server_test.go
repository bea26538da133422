package observerapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitalentity/aientity/internal/activitystream"
	"github.com/digitalentity/aientity/internal/audit"
	"github.com/digitalentity/aientity/internal/config"
	"github.com/digitalentity/aientity/internal/domain"
	"github.com/digitalentity/aientity/internal/httpclient"
	"github.com/digitalentity/aientity/internal/lifecycle"
	"github.com/digitalentity/aientity/internal/metrics"
	"github.com/digitalentity/aientity/internal/store"
	"github.com/digitalentity/aientity/internal/voting"
)

// observerMetrics is a Prometheus collector set; promauto panics on a
// second registration against the default registry, so the whole test
// package shares one instance the way a single process would.
var observerMetricsOnce = sync.OnceValue(metrics.NewObserver)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	store  *store.Store
	module *lifecycle.Module
	cfg    *config.Config
}

func newTestServer(t *testing.T, adminToken, cidr string) *testServer {
	t.Helper()

	st, err := store.Open(context.Background(), ":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := &config.Config{
		AdminToken:       adminToken,
		LocalNetworkCIDR: cidr,
		IPSalt:           "test-salt",
		InternalAPIKey:   "internal-test-key",
		RespawnDelayMinS: 3600,
		RespawnDelayMaxS: 3600,
		VotingWindowS:    3600,
	}

	agentClient := httpclient.New("http://127.0.0.1:0", "X-Internal-Key", cfg.InternalAPIKey, time.Second, zerolog.Nop())
	auditor := audit.NewLogger(st, zerolog.Nop())
	module := lifecycle.New(cfg, st, agentClient, auditor, nil, observerMetricsOnce(), zerolog.Nop())
	votingSvc := voting.NewService(st, module, zerolog.Nop())
	hub := activitystream.NewHub(zerolog.Nop())

	srv := New(cfg, module, votingSvc, auditor, hub, st, observerMetricsOnce(), zerolog.Nop())

	return &testServer{router: srv.Router(), store: st, module: module, cfg: cfg}
}

// seedAliveLife writes a live, not-yet-died life directly to the store and
// then runs the module's own Bootstrap path against it, the same way the
// observer process picks up its last life at startup — this is the only
// sanctioned way to get a Module into PhaseAlive from outside package
// lifecycle (§9: state changes flow only through the module's own
// transition methods).
func (ts *testServer) seedAliveLife(t *testing.T, lifeNumber int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, ts.store.CreateLife(ctx, domain.Life{
		LifeNumber: lifeNumber, BornAt: time.Now().UTC(), BootstrapMode: domain.BootstrapBlankSlate,
	}))
	_, err := ts.store.OpenVoteRound(ctx, lifeNumber, time.Now().UTC(), time.Hour)
	require.NoError(t, err)
	require.NoError(t, ts.module.Bootstrap(ctx))
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, "admintoken", "192.168.0.0/24")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVoteEndpointAcceptsThenRejectsDuplicate(t *testing.T) {
	ts := newTestServer(t, "admintoken", "192.168.0.0/24")
	ts.seedAliveLife(t, 1)

	req := httptest.NewRequest(http.MethodPost, "/api/vote/die", nil)
	req.RemoteAddr = "10.0.0.5:1234"
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req2 := httptest.NewRequest(http.MethodPost, "/api/vote/die", nil)
	req2.RemoteAddr = "10.0.0.5:1234"
	rec2 := httptest.NewRecorder()
	ts.router.ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusConflict, rec2.Code)
}

func TestVoteEndpointRejectsInvalidChoice(t *testing.T) {
	ts := newTestServer(t, "admintoken", "192.168.0.0/24")
	ts.seedAliveLife(t, 1)

	req := httptest.NewRequest(http.MethodPost, "/api/vote/maybe", nil)
	req.RemoteAddr = "10.0.0.6:1234"
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVoteEndpointRejectsWhenDead(t *testing.T) {
	ts := newTestServer(t, "admintoken", "192.168.0.0/24")
	// Module stays in its default dead phase.

	req := httptest.NewRequest(http.MethodPost, "/api/vote/live", nil)
	req.RemoteAddr = "10.0.0.7:1234"
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestStateEndpointReportsVoteTallyAndLifeNumber(t *testing.T) {
	ts := newTestServer(t, "admintoken", "192.168.0.0/24")
	ts.seedAliveLife(t, 1)

	req := httptest.NewRequest(http.MethodPost, "/api/vote/live", nil)
	req.RemoteAddr = "10.0.0.8:1234"
	ts.router.ServeHTTP(httptest.NewRecorder(), req)

	req2 := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	rec2 := httptest.NewRecorder()
	ts.router.ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusOK, rec2.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body["life_number"])
	assert.Equal(t, true, body["is_alive"])
}

// Admin endpoints require either the bearer token or local-network CIDR
// membership (§6).
func TestAdminKillRequiresTokenOrLocalNetwork(t *testing.T) {
	ts := newTestServer(t, "supersecret", "192.168.0.0/24")
	ts.seedAliveLife(t, 1)

	t.Run("rejects request with no credentials from a public IP", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/kill", nil)
		req.RemoteAddr = "8.8.8.8:1234"
		rec := httptest.NewRecorder()
		ts.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("accepts a correct bearer token from a public IP", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/kill", nil)
		req.RemoteAddr = "8.8.8.8:1234"
		req.Header.Set("Authorization", "Bearer supersecret")
		rec := httptest.NewRecorder()
		ts.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestAdminKillAcceptsLocalNetworkOriginWithoutToken(t *testing.T) {
	ts := newTestServer(t, "supersecret", "192.168.0.0/24")
	ts.seedAliveLife(t, 1)

	req := httptest.NewRequest(http.MethodPost, "/api/kill", nil)
	req.RemoteAddr = "192.168.0.42:1234"
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpointRequiresInternalKey(t *testing.T) {
	ts := newTestServer(t, "admintoken", "192.168.0.0/24")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req2 := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req2.Header.Set("X-Internal-Key", "internal-test-key")
	rec2 := httptest.NewRecorder()
	ts.router.ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusOK, rec2.Code)
}

