package agentcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitalentity/aientity/internal/domain"
)

func TestWorkspaceLoadWithNoPriorStateReturnsNotOK(t *testing.T) {
	w := NewWorkspace(t.TempDir())
	_, ok, err := w.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWorkspaceSaveThenLoadRoundTrips(t *testing.T) {
	w := NewWorkspace(t.TempDir())
	state := workspaceState{
		LifeNumber: 3,
		Identity:   domain.Identity{Name: "Nova", Icon: "circle", Pronoun: "they"},
		Model:      "model-a",
	}

	require.NoError(t, w.Save(state))

	got, ok, err := w.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, state, got)
}

// Wipe must clear persisted state (§4.5: identity/model do not survive
// death), but a second Wipe with nothing left to remove is not an error.
func TestWorkspaceWipeRemovesStateAndIsIdempotent(t *testing.T) {
	w := NewWorkspace(t.TempDir())
	require.NoError(t, w.Save(workspaceState{LifeNumber: 1}))

	require.NoError(t, w.Wipe())

	_, ok, err := w.Load()
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, w.Wipe())
}
