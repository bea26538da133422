package agentcore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitalentity/aientity/internal/config"
	"github.com/digitalentity/aientity/internal/domain"
	"github.com/digitalentity/aientity/internal/httpclient"
	"github.com/digitalentity/aientity/internal/ledger"
)

func newTestAgent(t *testing.T, dataDir string) (*Agent, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	ws := NewWorkspace(dataDir)
	led, err := ledger.Open(filepath.Join(dataDir, "ledger.json"), 10.0, zerolog.Nop())
	require.NoError(t, err)
	observer := httpclient.New(srv.URL, "X-Internal-Key", "test", time.Second, zerolog.Nop())

	a := New(&config.Config{ModelTier: []string{"model-a", "model-b"}}, ws, led, nil, observer, nil, nil, zerolog.Nop())
	return a, srv
}

func TestNewAgentStartsUnbornWithNoPriorWorkspace(t *testing.T) {
	a, _ := newTestAgent(t, t.TempDir())
	state := a.State()
	assert.False(t, state.IsAlive)
	assert.Equal(t, int64(0), state.LifeNumber)
}

func TestNewAgentRecoversPriorLifeFromWorkspace(t *testing.T) {
	dataDir := t.TempDir()
	ws := NewWorkspace(dataDir)
	require.NoError(t, ws.Save(workspaceState{
		LifeNumber: 4,
		Identity:   domain.Identity{Name: "Nova", Icon: "circle", Pronoun: "they"},
		Model:      "model-a",
	}))

	a, _ := newTestAgent(t, dataDir)

	state := a.State()
	assert.True(t, state.IsAlive)
	assert.Equal(t, int64(4), state.LifeNumber)
	assert.Equal(t, "Nova", state.Name)
}

// §4.5 "on /birth": a non-reserved, sanitized identity is assigned, the
// workspace is wiped first and re-persisted, and the think-act loop wakes.
func TestHandleBirthAssignsIdentityAndWakesLoop(t *testing.T) {
	dataDir := t.TempDir()
	a, _ := newTestAgent(t, dataDir)

	err := a.HandleBirth(context.Background(), domain.BirthPayload{
		LifeNumber:      7,
		BootstrapMode:   domain.BootstrapBlankSlate,
		MemoryFragments: []string{"fragment one"},
	})
	require.NoError(t, err)

	state := a.State()
	assert.True(t, state.IsAlive)
	assert.Equal(t, int64(7), state.LifeNumber)
	assert.Equal(t, "Entity-7", state.Name)
	assert.Equal(t, "model-a", state.Model)

	persisted, ok, err := a.workspace.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(7), persisted.LifeNumber)

	select {
	case <-a.wake:
	default:
		t.Fatalf("HandleBirth must wake the think-act loop")
	}
}

func TestHandleBirthRejectsNonPositiveLifeNumber(t *testing.T) {
	a, _ := newTestAgent(t, t.TempDir())
	err := a.HandleBirth(context.Background(), domain.BirthPayload{LifeNumber: 0})
	assert.Error(t, err)
}

// HandleForceSync must adopt whatever the observer reports, even a
// correction to dead, since the observer is authoritative (§4.2 rule 4).
func TestHandleForceSyncAdoptsObserverState(t *testing.T) {
	a, _ := newTestAgent(t, t.TempDir())
	require.NoError(t, a.HandleBirth(context.Background(), domain.BirthPayload{LifeNumber: 1}))

	dead := false
	a.HandleForceSync(domain.ForceSyncPayload{LifeNumber: 1, IsAlive: &dead})

	assert.False(t, a.State().IsAlive)

	select {
	case <-a.wake:
	default:
		t.Fatalf("HandleForceSync must wake the think-act loop")
	}
}

func TestBudgetReflectsLedgerStatus(t *testing.T) {
	a, _ := newTestAgent(t, t.TempDir())
	status := a.Budget()
	assert.Equal(t, 10.0, status.BalanceUSD)
}
