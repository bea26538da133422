package llmgateway

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitalentity/aientity/internal/domain"
	"github.com/digitalentity/aientity/internal/redaction"
)

func newTestClient(t *testing.T, endpoint string, tier []string) *Client {
	t.Helper()
	st, err := redaction.NewStore(filepath.Join(t.TempDir(), "vault", "secrets.jsonl"), zerolog.Nop())
	require.NoError(t, err)
	rt := &redaction.RoundTripper{Store: st}
	return New(endpoint, "test-key", tier, rt, zerolog.Nop())
}

func chatResponseBody(model, content string, promptTok, completionTok int64) string {
	return `{"model":"` + model + `","usage":{"prompt_tokens":` + itoa(promptTok) + `,"completion_tokens":` + itoa(completionTok) + `},` +
		`"choices":[{"message":{"role":"assistant","content":` + jsonQuote(content) + `}}]}`
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf []byte
	for n > 0 {
		buf = append([]byte{byte('0' + n%10)}, buf...)
		n /= 10
	}
	if neg {
		buf = append([]byte{'-'}, buf...)
	}
	return string(buf)
}

func jsonQuote(s string) string {
	out := []byte{'"'}
	for _, r := range s {
		switch r {
		case '"':
			out = append(out, '\\', '"')
		case '\\':
			out = append(out, '\\', '\\')
		default:
			out = append(out, string(r)...)
		}
	}
	out = append(out, '"')
	return string(out)
}

func TestCompleteReturnsParsedOutputOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatResponseBody("model-a", `{"thought":"ok","action":"no_op"}`, 10, 5)))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, []string{"model-a", "model-b"})
	result, err := c.Complete(t.Context(), "", []ChatMessage{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "model-a", result.Model)
	assert.Equal(t, domain.ActionNoOp, result.Output.Action)
	assert.Equal(t, int64(10), result.InputTokens)
	assert.Equal(t, int64(5), result.OutputTokens)
}

func TestCompletePrefersRequestedModelFirst(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatResponseBody("model-b", `{"thought":"ok","action":"no_op"}`, 1, 1)))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, []string{"model-a", "model-b"})
	result, err := c.Complete(t.Context(), "model-b", []ChatMessage{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "model-b", result.Model)
}

// A non-JSON reply degrades to a thought-only Result rather than an error
// (§9: malformed output is content, not a crash).
func TestCompleteFallsBackToThoughtOnlyWhenResponseIsNotJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatResponseBody("model-a", "just plain text, no object here", 1, 1)))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, []string{"model-a"})
	result, err := c.Complete(t.Context(), "", []ChatMessage{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "just plain text, no object here", result.Output.Thought)
}

// A model that errors on every attempt exhausts the tier and Complete
// returns an error; the other model in the tier is also attempted.
func TestCompleteExhaustsAllModelsOnRepeatedFailure(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, []string{"model-a", "model-b"})
	_, err := c.Complete(t.Context(), "", []ChatMessage{{Role: "user", Content: "hi"}})
	assert.Error(t, err)
	assert.GreaterOrEqual(t, atomic.LoadInt64(&calls), int64(2))
}

func TestCompleteReturnsErrorWithEmptyTier(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:0", nil)
	_, err := c.Complete(t.Context(), "", []ChatMessage{{Role: "user", Content: "hi"}})
	assert.Error(t, err)
}
