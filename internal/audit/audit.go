// Package audit is the observer's internal accountability log (§4.10),
// grounded on the teacher's internal/audit.Logger: records are captured
// synchronously on the caller's goroutine but persisted asynchronously, so
// a slow store write never blocks the HTTP handler or lifecycle
// transition that produced the record.
package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/digitalentity/aientity/internal/domain"
	"github.com/digitalentity/aientity/internal/store"
)

// Logger persists AuditRecords off the request/transition goroutine.
type Logger struct {
	store *store.Store
	log   zerolog.Logger
}

func NewLogger(st *store.Store, log zerolog.Logger) *Logger {
	return &Logger{store: st, log: log.With().Str("component", "audit").Logger()}
}

// Entry is the caller-supplied shape; Timestamp is stamped by Log if zero.
type Entry struct {
	Actor      string
	EventType  string
	Resource   string
	Action     string
	Success    bool
	ErrorMsg   string
	RequestID  string
	DurationMs int64
}

// Log records e. The record is built on the calling goroutine (so request
// context like actor/request id is captured before anything async
// happens) and persisted on a detached goroutine using a fresh background
// context, the way the teacher's audit.Logger.Log does, so a request
// cancellation never drops an audit record.
func (l *Logger) Log(ctx context.Context, e Entry) {
	rec := domain.AuditRecord{
		Timestamp:  time.Now().UTC(),
		Actor:      e.Actor,
		EventType:  e.EventType,
		Resource:   e.Resource,
		Action:     e.Action,
		Success:    e.Success,
		ErrorMsg:   e.ErrorMsg,
		RequestID:  e.RequestID,
		DurationMs: e.DurationMs,
	}

	l.log.Info().
		Str("actor", rec.Actor).
		Str("event_type", rec.EventType).
		Str("action", rec.Action).
		Bool("success", rec.Success).
		Msg("audit event")

	go func() {
		persistCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.store.InsertAuditRecord(persistCtx, rec); err != nil {
			l.log.Error().Err(err).Str("event_type", rec.EventType).Msg("failed to persist audit record")
		}
	}()
}
