package domain

import "encoding/json"

// ActionKind is the closed set of actions the agent may dispatch (§4.5,
// §9 "duck-typed action dispatch replaced with a closed tagged variant").
// Any model output naming an action outside this set is recorded as
// thought only, never dispatched.
type ActionKind string

const (
	ActionWriteBlogPost   ActionKind = "write_blog_post"
	ActionPostChannel     ActionKind = "post_channel"
	ActionReadMessages    ActionKind = "read_messages"
	ActionCheckVotes      ActionKind = "check_votes"
	ActionCheckBudget     ActionKind = "check_budget"
	ActionSwitchModel     ActionKind = "switch_model"
	ActionCheckSystem     ActionKind = "check_system"
	ActionListModels      ActionKind = "list_models"
	ActionCheckWeather    ActionKind = "check_weather"
	ActionAskResearchHelper ActionKind = "ask_research_helper"
	ActionNoOp            ActionKind = "no_op"
)

var validActions = map[ActionKind]bool{
	ActionWriteBlogPost:     true,
	ActionPostChannel:       true,
	ActionReadMessages:      true,
	ActionCheckVotes:        true,
	ActionCheckBudget:       true,
	ActionSwitchModel:       true,
	ActionCheckSystem:       true,
	ActionListModels:        true,
	ActionCheckWeather:      true,
	ActionAskResearchHelper: true,
	ActionNoOp:              true,
}

// IsValidAction reports whether kind belongs to the closed action set.
func IsValidAction(kind ActionKind) bool { return validActions[kind]}

// ModelOutput is the first well-formed JSON object extracted from the
// model's raw response by the streaming decoder (§9). If no object was
// found, Thought carries the entire raw response and Action is the zero
// value (dispatch is skipped).
type ModelOutput struct {
	Thought string          `json:"thought"`
	Action  ActionKind      `json:"action"`
	Params  json.RawMessage `json:"params"`
}

// Fixed parameter schemas, one per action. Each is validated independently;
// malformed parameters yield a Validation error, never a runtime attribute
// error (§9).

type WriteBlogPostParams struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type PostChannelParams struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

type ReadMessagesParams struct {
	Limit int `json:"limit"`
}

type SwitchModelParams struct {
	ModelID string `json:"model_id"`
}

type AskResearchHelperParams struct {
	Query string `json:"query"`
}

// CheckVotesParams, CheckBudgetParams, CheckSystemParams, ListModelsParams,
// CheckWeatherParams, NoOpParams carry no fields; their presence in the
// switch below exists so every action kind is exhaustively represented.
type CheckVotesParams struct{}
type CheckBudgetParams struct{}
type CheckSystemParams struct{}
type ListModelsParams struct{}
type CheckWeatherParams struct{}
type NoOpParams struct{}
