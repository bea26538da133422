package agentcore

import (
	"encoding/json"
	"fmt"

	"github.com/digitalentity/aientity/internal/contentfilter"
	"github.com/digitalentity/aientity/internal/domain"
)

// dispatchOutcome is the closed-set action dispatcher's result: what
// happened, and the public-timeline payload to report (§4.5 steps 5-6).
type dispatchOutcome struct {
	Kind       domain.ActivityKind
	Payload    map[string]any
	NewModel   string // non-empty only on a successful switch_model
	Err        error
}

// outboundText extracts the text to run through the content filter for
// actions that produce outbound content (§4.7); other actions carry none.
func outboundText(action domain.ActionKind, params json.RawMessage) (string, error) {
	switch action {
	case domain.ActionWriteBlogPost:
		var p domain.WriteBlogPostParams
		if err := json.Unmarshal(params, &p); err != nil {
			return "", fmt.Errorf("invalid write_blog_post params: %w", err)
		}
		return p.Title + "\n" + p.Body, nil
	case domain.ActionPostChannel:
		var p domain.PostChannelParams
		if err := json.Unmarshal(params, &p); err != nil {
			return "", fmt.Errorf("invalid post_channel params: %w", err)
		}
		return p.Text, nil
	case domain.ActionAskResearchHelper:
		var p domain.AskResearchHelperParams
		if err := json.Unmarshal(params, &p); err != nil {
			return "", fmt.Errorf("invalid ask_research_helper params: %w", err)
		}
		return p.Query, nil
	default:
		return "", nil
	}
}

// dispatch runs the closed action-set dispatch (§4.5 step 6). modelSwitch
// is consulted only for switch_model; every other action kind is either a
// pure in-process no-op (no_op) or a call into an external collaborator
// out of scope for this module (read_messages, check_votes, check_budget,
// check_system, list_models, check_weather) and is recorded as dispatched
// without a local side effect.
func (a *Agent) dispatch(output domain.ModelOutput) dispatchOutcome {
	action := output.Action
	if action == "" || !domain.IsValidAction(action) {
		return dispatchOutcome{Kind: domain.ActivityThink, Payload: map[string]any{"thought": output.Thought}}
	}

	text, err := outboundText(action, output.Params)
	if err != nil {
		return dispatchOutcome{Kind: domain.ActivityError, Payload: map[string]any{"error": err.Error()}, Err: err}
	}

	if text != "" {
		result := contentfilter.Filter(text)
		if !result.Allowed {
			if a.metrics != nil {
				a.metrics.ContentFilterBlocks.WithLabelValues(string(result.Category)).Inc()
			}
			return dispatchOutcome{
				Kind:    domain.ActivityBlocked,
				Payload: map[string]any{"action": action, "category": result.Category},
			}
		}
	}

	if action == domain.ActionSwitchModel {
		return a.dispatchSwitchModel(output.Params)
	}

	return dispatchOutcome{
		Kind:    domain.ActivityAct,
		Payload: map[string]any{"action": action, "thought": output.Thought},
	}
}

// dispatchSwitchModel enforces §4.5's model-switching floor: a switch is
// rejected with no state change if the ledger balance is at or below the
// configured floor.
func (a *Agent) dispatchSwitchModel(params json.RawMessage) dispatchOutcome {
	var p domain.SwitchModelParams
	if err := json.Unmarshal(params, &p); err != nil {
		return dispatchOutcome{Kind: domain.ActivityError, Payload: map[string]any{"error": "invalid switch_model params"}}
	}

	if a.ledger.Balance() <= a.cfg.ModelSwitchFloorUSD {
		return dispatchOutcome{
			Kind:    domain.ActivityAct,
			Payload: map[string]any{"action": domain.ActionSwitchModel, "rejected": true, "reason": "balance below switch floor"},
		}
	}

	return dispatchOutcome{
		Kind:     domain.ActivityAct,
		Payload:  map[string]any{"action": domain.ActionSwitchModel, "model": p.ModelID},
		NewModel: p.ModelID,
	}
}
