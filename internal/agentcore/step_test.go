package agentcore

import (
	"context"
	"io"
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
	"github.com/digitalentity/aientity/internal/redaction"
)

// §8 invariant 7: a secret-shaped substring in an outbound activity
// payload must never reach the observer's public activity log.
func TestReportActivityScrubsSecretShapedPayload(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	st, err := redaction.NewStore(filepath.Join(t.TempDir(), "vault", "secrets.jsonl"), zerolog.Nop())
	require.NoError(t, err)

	a := &Agent{
		cfg:      &config.Config{ObserverBaseURL: srv.URL},
		observer: httpclient.New(srv.URL, "X-Internal-Key", "test", time.Second, zerolog.Nop()),
		redactor: &redaction.RoundTripper{Store: st},
		log:      zerolog.Nop(),
	}

	secret := "sk-ant-REDACTED"
	a.reportActivity(context.Background(), domain.ActivityThink, map[string]any{"thought": "my key is " + secret})

	require.NotEmpty(t, gotBody)
	assert.NotContains(t, string(gotBody), secret)
	assert.Contains(t, string(gotBody), "[REDACTED]")
}

func TestReportActivityToleratesNilRedactor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := &Agent{
		cfg:      &config.Config{ObserverBaseURL: srv.URL},
		observer: httpclient.New(srv.URL, "X-Internal-Key", "test", time.Second, zerolog.Nop()),
		log:      zerolog.Nop(),
	}

	assert.NotPanics(t, func() {
		a.reportActivity(context.Background(), domain.ActivityThink, map[string]any{"thought": "ordinary text"})
	})
}
