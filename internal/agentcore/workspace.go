package agentcore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/digitalentity/aientity/internal/domain"
)

// workspaceState is persisted under the ephemeral workspace directory
// (wiped on every death, §4.5) so a restarted agent process can recover
// its identity and life number without re-birthing.
type workspaceState struct {
	LifeNumber int64           `json:"life_number"`
	Identity   domain.Identity `json:"identity"`
	Model      string          `json:"model"`
}

// Workspace is the agent's ephemeral, per-life filesystem state: identity,
// current model, and life number. Unlike the credit ledger, it is wiped
// on death (it lives under data_dir/workspace, not data_dir/credits).
type Workspace struct {
	path string
}

func NewWorkspace(dataDir string) *Workspace {
	return &Workspace{path: filepath.Join(dataDir, "workspace", "identity.json")}
}

// Load returns the persisted state, or ok=false if no life has ever been
// recorded in this workspace (first start, or post-wipe).
func (w *Workspace) Load() (workspaceState, bool, error) {
	raw, err := os.ReadFile(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			return workspaceState{}, false, nil
		}
		return workspaceState{}, false, fmt.Errorf("failed to read workspace state: %w", err)
	}
	var s workspaceState
	if err := json.Unmarshal(raw, &s); err != nil {
		return workspaceState{}, false, fmt.Errorf("failed to parse workspace state: %w", err)
	}
	return s, true, nil
}

// Save persists the current identity, model, and life number. Writes are
// plain (not atomic-rename); losing a workspace write only costs a resync
// via the sync validator, unlike a lost ledger write (§4.6).
func (w *Workspace) Save(s workspaceState) error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("failed to create workspace dir: %w", err)
	}
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal workspace state: %w", err)
	}
	return os.WriteFile(w.path, raw, 0o644)
}

// Wipe removes all persisted workspace state, as required on every death.
func (w *Workspace) Wipe() error {
	err := os.Remove(w.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to wipe workspace: %w", err)
	}
	return nil
}
