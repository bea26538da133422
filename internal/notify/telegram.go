// Package notify is the optional operator notification relay (§4.9): it
// mirrors a bounded subset of ActivityEvents (birth, death, oracle) and
// admin AuditRecords to a Telegram chat, and turns an operator's reply
// into a new OracleMessage. Grounded on the teacher's internal/telegram
// bot (NewBotAPI + polling update channel), trimmed to a single
// notify/listen loop with no command router, since this relay has exactly
// one responsibility rather than a general admin console.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/digitalentity/aientity/internal/domain"
	"github.com/digitalentity/aientity/internal/store"
)

// mirroredKinds is the bounded subset of ActivityEvents relayed to the
// operator channel (§4.9); everything else stays on the public timeline
// only.
var mirroredKinds = map[domain.ActivityKind]bool{
	domain.ActivityBirth:  true,
	domain.ActivityDeath:  true,
	domain.ActivityOracle: true,
}

// Relay is inert (every method no-ops) when constructed with an empty bot
// token, so callers can wire it unconditionally without branching on
// configuration (§4.9: "disabled entirely... when disabled... this
// component is inert").
type Relay struct {
	api    *tgbotapi.BotAPI
	chatID int64
	store  *store.Store
	log    zerolog.Logger
}

// New builds a Relay. If botToken is empty, the returned Relay is inert:
// every method becomes a no-op and Run returns immediately.
func New(botToken string, chatID int64, st *store.Store, log zerolog.Logger) (*Relay, error) {
	log = log.With().Str("component", "notify").Logger()
	if botToken == "" {
		return &Relay{log: log}, nil
	}

	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	log.Info().Str("username", api.Self.UserName).Msg("telegram notifier authorized")

	return &Relay{api: api, chatID: chatID, store: st, log: log}, nil
}

func (r *Relay) enabled() bool { return r.api != nil }

// MirrorActivity mirrors a bounded ActivityEvent to the operator channel.
// Failures are logged and never propagated (§4.9: "strictly best-effort").
func (r *Relay) MirrorActivity(event domain.ActivityEvent) {
	if !r.enabled() || !mirroredKinds[event.Kind] {
		return
	}
	text := fmt.Sprintf("[life %d] %s: %s", event.LifeNumber, event.Kind, string(event.Payload))
	r.send(text)
}

// MirrorAudit mirrors an admin-triggered AuditRecord to the operator
// channel.
func (r *Relay) MirrorAudit(actor, action string, success bool) {
	if !r.enabled() {
		return
	}
	text := fmt.Sprintf("admin action: %s by %s (success=%v)", action, actor, success)
	r.send(text)
}

func (r *Relay) send(text string) {
	msg := tgbotapi.NewMessage(r.chatID, text)
	if _, err := r.api.Send(msg); err != nil {
		r.log.Warn().Err(err).Msg("failed to send telegram notification")
	}
}

// Run polls for operator replies and turns each one into a new
// OracleMessage (§4.9). A no-op loop when the relay is inert.
func (r *Relay) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	if !r.enabled() {
		return
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := r.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return
		case update := <-updates:
			if update.Message == nil || update.Message.Chat.ID != r.chatID {
				continue
			}
			r.handleReply(ctx, update.Message.Text)
		}
	}
}

func (r *Relay) handleReply(ctx context.Context, text string) {
	if text == "" {
		return
	}
	persistCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := r.store.InsertOracleMessage(persistCtx, domain.OracleWhisper, text, time.Now().UTC()); err != nil {
		r.log.Error().Err(err).Msg("failed to record operator reply as oracle message")
	}
}
