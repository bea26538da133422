// Package llmgateway is the agent's client for the external model gateway
// (§4.5 step 3): per-model circuit breakers via sony/gobreaker, a
// 429 backoff-then-rotate sequence, and the depth-counted JSON extraction
// from extract.go. Request/response bodies pass through the redaction
// proxy's RoundTripper before anything derived from them is logged.
package llmgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/digitalentity/aientity/internal/domain"
	"github.com/digitalentity/aientity/internal/redaction"
)

// ChatMessage mirrors the gateway's OpenAI-compatible wire shape.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

type chatResponse struct {
	Model string `json:"model"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
}

// Result is one completed call: the raw text, parsed model output (best
// effort), token usage, and which model actually answered (may differ
// from the first one tried, after rotation).
type Result struct {
	Model            string
	RawText          string
	Output           domain.ModelOutput
	HadJSON          bool
	InputTokens      int64
	OutputTokens     int64
}

// Client composes a prompt call against a configured model tier, rotating
// through models on 429 and short-circuiting with gobreaker when a model
// has been failing repeatedly.
type Client struct {
	endpoint   string
	apiKey     string
	tier       []string
	httpClient *http.Client
	breakers   map[string]*gobreaker.CircuitBreaker
	redactor   *redaction.RoundTripper
	log        zerolog.Logger
}

// New builds a Client. tier is the ordered list of model identifiers to
// rotate through (§6 MODEL_TIER); redactor wraps the transport so every
// outbound/inbound body can be scrubbed before logging.
func New(endpoint, apiKey string, tier []string, redactor *redaction.RoundTripper, log zerolog.Logger) *Client {
	transport := http.RoundTripper(redactor)
	breakers := make(map[string]*gobreaker.CircuitBreaker, len(tier))
	for _, model := range tier {
		breakers[model] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "model:" + model,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		})
	}

	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		tier:       tier,
		httpClient: &http.Client{Timeout: 60 * time.Second, Transport: transport},
		breakers:   breakers,
		redactor:   redactor,
		log:        log.With().Str("component", "llmgateway").Logger(),
	}
}

// backoffSchedule is the 429 backoff-then-rotate sequence from §4.5.
var backoffSchedule = []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}

// Complete runs the think-act cycle's model call: up to len(tier) model
// attempts (max 3 per §4.5), each attempt itself backing off through
// backoffSchedule on 429 before the loop moves to the next model. preferred,
// if non-empty, is tried first (a prior switch_model choice); the rest of
// the tier follows in configured order.
func (c *Client) Complete(ctx context.Context, preferred string, messages []ChatMessage) (Result, error) {
	order := c.rotationOrder(preferred)
	if len(order) == 0 {
		return Result{}, fmt.Errorf("no models configured in tier")
	}

	maxAttempts := 3
	if len(order) < maxAttempts {
		maxAttempts = len(order)
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		model := order[attempt]
		breaker := c.breakers[model]

		raw, usage, err := c.callWithBreaker(ctx, breaker, model, messages)
		if err == nil {
			return c.parseResult(model, raw, usage), nil
		}

		lastErr = err
		c.log.Warn().Err(err).Str("model", model).Int("attempt", attempt).Msg("model gateway call failed, rotating")
	}

	return Result{}, fmt.Errorf("all %d model attempts failed, last error: %w", maxAttempts, lastErr)
}

func (c *Client) rotationOrder(preferred string) []string {
	if preferred == "" {
		return c.tier
	}
	order := []string{preferred}
	for _, m := range c.tier {
		if m != preferred {
			order = append(order, m)
		}
	}
	return order
}

type usage struct {
	inputTok, outputTok int64
}

type callResult struct {
	text  string
	usage usage
}

func (c *Client) callWithBreaker(ctx context.Context, breaker *gobreaker.CircuitBreaker, model string, messages []ChatMessage) (string, usage, error) {
	v, err := breaker.Execute(func() (any, error) {
		return c.callWithBackoff(ctx, model, messages)
	})
	if err != nil {
		return "", usage{}, err
	}
	r := v.(callResult)
	return r.text, r.usage, nil
}

func (c *Client) callWithBackoff(ctx context.Context, model string, messages []ChatMessage) (any, error) {
	var lastErr error
	for i := 0; i <= len(backoffSchedule); i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoffSchedule[i-1]):
			}
		}

		text, u, status, err := c.doCall(ctx, model, messages)
		if err == nil {
			return callResult{text: text, usage: u}, nil
		}
		lastErr = err
		if status != http.StatusTooManyRequests {
			return nil, err
		}
	}
	return nil, fmt.Errorf("model %s exhausted 429 backoff schedule: %w", model, lastErr)
}

func (c *Client) doCall(ctx context.Context, model string, messages []ChatMessage) (string, usage, int, error) {
	reqBody, err := json.Marshal(chatRequest{Model: model, Messages: messages})
	if err != nil {
		return "", usage{}, 0, fmt.Errorf("failed to marshal gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", usage{}, 0, fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", usage{}, 0, fmt.Errorf("gateway call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", usage{}, resp.StatusCode, fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", usage{}, resp.StatusCode, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, c.redactor.ScrubForLog(c.endpoint, string(body)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", usage{}, resp.StatusCode, fmt.Errorf("failed to parse gateway response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", usage{}, resp.StatusCode, fmt.Errorf("gateway response had no choices")
	}

	return parsed.Choices[0].Message.Content, usage{
		inputTok: parsed.Usage.PromptTokens, outputTok: parsed.Usage.CompletionTokens,
	}, resp.StatusCode, nil
}

func (c *Client) parseResult(model, raw string, u usage) Result {
	candidate := ExtractFirstJSONObject(raw)
	res := Result{Model: model, RawText: raw, InputTokens: u.inputTok, OutputTokens: u.outputTok}

	if candidate == "" {
		res.Output = domain.ModelOutput{Thought: raw}
		return res
	}

	var out domain.ModelOutput
	if err := json.Unmarshal([]byte(candidate), &out); err != nil {
		res.Output = domain.ModelOutput{Thought: raw}
		return res
	}

	res.Output = out
	res.HadJSON = true
	return res
}
