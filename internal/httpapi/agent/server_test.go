package agentapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitalentity/aientity/internal/agentcore"
	"github.com/digitalentity/aientity/internal/config"
	"github.com/digitalentity/aientity/internal/domain"
	"github.com/digitalentity/aientity/internal/httpclient"
	"github.com/digitalentity/aientity/internal/ledger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, internalKey string) *gin.Engine {
	t.Helper()
	observerSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(observerSrv.Close)

	dataDir := t.TempDir()
	ws := agentcore.NewWorkspace(dataDir)
	led, err := ledger.Open(filepath.Join(dataDir, "ledger.json"), 10.0, zerolog.Nop())
	require.NoError(t, err)
	observer := httpclient.New(observerSrv.URL, "X-Internal-Key", "test", time.Second, zerolog.Nop())

	cfg := &config.Config{InternalAPIKey: internalKey, ModelTier: []string{"model-a"}}
	a := agentcore.New(cfg, ws, led, nil, observer, nil, nil, zerolog.Nop())

	return New(cfg, a, zerolog.Nop()).Router()
}

func TestHealthzNeedsNoAuth(t *testing.T) {
	router := newTestRouter(t, "internal-secret")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStateRequiresInternalKey(t *testing.T) {
	router := newTestRouter(t, "internal-secret")

	req := httptest.NewRequest(http.MethodGet, "/state", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req2 := httptest.NewRequest(http.MethodGet, "/state", nil)
	req2.Header.Set("X-Internal-Key", "internal-secret")
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusOK, rec2.Code)
}

func TestBirthThenStateReflectsNewLife(t *testing.T) {
	router := newTestRouter(t, "internal-secret")

	body, err := json.Marshal(domain.BirthPayload{LifeNumber: 5, BootstrapMode: domain.BootstrapBlankSlate})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/birth", bytes.NewReader(body))
	req.Header.Set("X-Internal-Key", "internal-secret")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req2 := httptest.NewRequest(http.MethodGet, "/state", nil)
	req2.Header.Set("X-Internal-Key", "internal-secret")
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusOK, rec2.Code)

	var state agentcore.State
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &state))
	assert.Equal(t, int64(5), state.LifeNumber)
	assert.True(t, state.IsAlive)
}

func TestBirthRejectsMalformedPayload(t *testing.T) {
	router := newTestRouter(t, "internal-secret")

	req := httptest.NewRequest(http.MethodPost, "/birth", bytes.NewReader([]byte("not json")))
	req.Header.Set("X-Internal-Key", "internal-secret")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestForceSyncUpdatesAliveState(t *testing.T) {
	router := newTestRouter(t, "internal-secret")

	birthBody, err := json.Marshal(domain.BirthPayload{LifeNumber: 2})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/birth", bytes.NewReader(birthBody))
	req.Header.Set("X-Internal-Key", "internal-secret")
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(httptest.NewRecorder(), req)

	dead := false
	syncBody, err := json.Marshal(domain.ForceSyncPayload{LifeNumber: 2, IsAlive: &dead})
	require.NoError(t, err)
	req2 := httptest.NewRequest(http.MethodPost, "/force-sync", bytes.NewReader(syncBody))
	req2.Header.Set("X-Internal-Key", "internal-secret")
	req2.Header.Set("Content-Type", "application/json")
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusOK, rec2.Code)

	req3 := httptest.NewRequest(http.MethodGet, "/state", nil)
	req3.Header.Set("X-Internal-Key", "internal-secret")
	rec3 := httptest.NewRecorder()
	router.ServeHTTP(rec3, req3)

	var state agentcore.State
	require.NoError(t, json.Unmarshal(rec3.Body.Bytes(), &state))
	assert.False(t, state.IsAlive)
}

func TestBudgetRequiresInternalKey(t *testing.T) {
	router := newTestRouter(t, "internal-secret")

	req := httptest.NewRequest(http.MethodGet, "/budget", nil)
	req.Header.Set("X-Internal-Key", "internal-secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var status domain.LedgerStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 10.0, status.BalanceUSD)
}
