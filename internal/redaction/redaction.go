// Package redaction implements the agent's outbound redaction proxy
// (§4.8): an http.RoundTripper wrapping the model-gateway HTTP client that
// scans request and response bodies/headers for secret-shaped substrings,
// writes full matches to a private quarantine file, and mirrors only a
// placeholder-substituted copy to public logs. Pattern set named in the
// style of the pack's own audit-pattern table (regexp.MustCompile per
// named pattern), adapted from a source-scanning use to a traffic-scanning
// one.
package redaction

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type namedPattern struct {
	name string
	re   *regexp.Regexp
}

var patterns = []namedPattern{
	{"anthropic_api_key", regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`)},
	{"openai_api_key", regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`)},
	{"bearer_token", regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._-]{10,}`)},
	{"private_key_block", regexp.MustCompile(`(?i)-----BEGIN [A-Z ]*PRIVATE KEY-----`)},
	{"generic_secret_assignment", regexp.MustCompile(`(?i)(api[_-]?key|secret|password|token)\s*[:=]\s*"?[A-Za-z0-9._-]{12,}"?`)},
	{"aws_access_key", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
}

const placeholder = "[REDACTED]"

// Match is one redaction hit, persisted to the private quarantine store.
type Match struct {
	Timestamp    time.Time `json:"timestamp"`
	Host         string    `json:"host"`
	PatternName  string    `json:"pattern_name"`
	RedactedValue string   `json:"redacted_value"`
	FullValue    string    `json:"full_value"`
}

// Store is the private, never-served quarantine file at
// <data>/vault/secrets.jsonl.
type Store struct {
	mu   sync.Mutex
	path string
	log  zerolog.Logger
}

// NewStore ensures the parent directory for path exists and returns a Store.
func NewStore(path string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create redaction vault directory: %w", err)
	}
	return &Store{path: path, log: log.With().Str("component", "redaction").Logger()}, nil
}

func (s *Store) append(m Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open redaction vault: %w", err)
	}
	defer f.Close()

	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal redaction match: %w", err)
	}
	if _, err := f.Write(append(raw, '\n')); err != nil {
		return fmt.Errorf("failed to append redaction match: %w", err)
	}
	return nil
}

// scrub finds every pattern match in text, appends each to the store, and
// returns text with matches replaced by the placeholder.
func (s *Store) scrub(host string, text string) string {
	out := text
	for _, p := range patterns {
		matches := p.re.FindAllString(out, -1)
		for _, m := range matches {
			if err := s.append(Match{
				Timestamp: time.Now().UTC(), Host: host, PatternName: p.name,
				RedactedValue: placeholder, FullValue: m,
			}); err != nil {
				s.log.Error().Err(err).Str("pattern", p.name).Msg("failed to record redaction match")
			}
		}
		if len(matches) > 0 {
			out = p.re.ReplaceAllString(out, placeholder)
		}
	}
	return out
}

// RoundTripper wraps an http.RoundTripper, scanning and scrubbing request
// and response bodies before anything derived from them reaches the
// public activity log. The underlying request/response actually sent over
// the wire is untouched — only the mirrored copy handed back to callers
// for logging purposes is scrubbed.
type RoundTripper struct {
	Next  http.RoundTripper
	Store *Store
}

// RoundTrip performs the real call unmodified, then scrubs a logged copy
// of the exchange via LastExchange (set on the returned context value by
// the caller, since http.RoundTripper cannot return side channels
// directly); callers that want the scrubbed mirror should call
// ScrubForLog explicitly after reading the body themselves.
func (rt *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	next := rt.Next
	if next == nil {
		next = http.DefaultTransport
	}
	return next.RoundTrip(req)
}

// ScrubForLog returns a redacted copy of text suitable for the public
// activity log, recording any secret-shaped matches to the private vault
// first. Call this on request/response bodies after the real call
// completes, before constructing any ActivityEvent payload.
func (rt *RoundTripper) ScrubForLog(host, text string) string {
	return rt.Store.scrub(host, text)
}

// ScrubBytes is a convenience wrapper for callers holding a response body
// as bytes rather than a string.
func (rt *RoundTripper) ScrubBytes(host string, body []byte) []byte {
	return []byte(rt.Store.scrub(host, string(body)))
}
