// Command observer runs the authoritative life-state machine service
// (§4.1-§4.4): lifecycle module, voting service and watcher, sync
// validator, budget poller, activity stream hub, audit log, optional
// Telegram relay, and the public/admin/internal HTTP API. Startup and
// shutdown sequencing follow the teacher's cmd/api/main.go APIServer.start
// pattern: one goroutine per background loop tracked by a shared
// sync.WaitGroup, signal.Notify-driven graceful shutdown of the HTTP
// server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/digitalentity/aientity/internal/activitystream"
	"github.com/digitalentity/aientity/internal/audit"
	"github.com/digitalentity/aientity/internal/config"
	"github.com/digitalentity/aientity/internal/domain"
	observerapi "github.com/digitalentity/aientity/internal/httpapi/observer"
	"github.com/digitalentity/aientity/internal/httpclient"
	"github.com/digitalentity/aientity/internal/lifecycle"
	"github.com/digitalentity/aientity/internal/metrics"
	"github.com/digitalentity/aientity/internal/notify"
	"github.com/digitalentity/aientity/internal/secretsource"
	"github.com/digitalentity/aientity/internal/store"
	"github.com/digitalentity/aientity/internal/voting"
)

// fanoutBroadcaster fans an ActivityEvent out to both the SSE hub and the
// (possibly inert) Telegram relay, since lifecycle.Module accepts a single
// Broadcaster.
type fanoutBroadcaster struct {
	hub   *activitystream.Hub
	relay *notify.Relay
}

func (f *fanoutBroadcaster) Publish(event domain.ActivityEvent) {
	f.hub.Publish(event)
	f.relay.MirrorActivity(event)
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if cfg.VaultAddr != "" {
		vaultClient, err := secretsource.NewClient(cfg.VaultAddr, cfg.VaultToken, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create vault client")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		vaultClient.Overlay(ctx, &cfg.InternalAPIKey, &cfg.AdminToken, &cfg.ModelGatewayKey)
		cancel()
	}

	if err := config.ValidateStartup(cfg, config.RoleObserver); err != nil {
		log.Fatal().Err(err).Msg("startup validation failed")
	}

	ctx := context.Background()
	st, err := store.Open(ctx, filepath.Join(cfg.DataDir, "observer.db"), log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open observer store")
	}
	defer st.Close()

	hub := activitystream.NewHub(log.Logger)
	observerMetrics := metrics.NewObserver()
	auditor := audit.NewLogger(st, log.Logger)

	relay, err := notify.New(cfg.TelegramBotToken, cfg.TelegramChatID, st, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create telegram relay")
	}
	broadcaster := &fanoutBroadcaster{hub: hub, relay: relay}

	agentClient := httpclient.New(cfg.AgentBaseURL, "X-Internal-Key", cfg.InternalAPIKey, 10*time.Second, log.Logger)

	module := lifecycle.New(cfg, st, agentClient, auditor, broadcaster, observerMetrics, log.Logger)
	if err := module.Bootstrap(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to bootstrap lifecycle module")
	}

	votingSvc := voting.NewService(st, module, log.Logger)
	watcher := voting.NewWatcher(st, module, log.Logger)
	syncValidator := lifecycle.NewSyncValidator(module, cfg.SyncInterval())
	budgetPoller := lifecycle.NewBudgetPoller(module, cfg.BudgetPollInterval())

	server := observerapi.New(cfg, module, votingSvc, auditor, hub, st, observerMetrics, log.Logger)

	bgCtx, cancelBg := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(4)
	go watcher.Run(bgCtx, &wg)
	go syncValidator.Run(bgCtx, &wg)
	go budgetPoller.Run(bgCtx, &wg)
	go relay.Run(bgCtx, &wg)

	srv := &http.Server{
		Addr:         cfg.ObserverListenAddr,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // the SSE activity stream holds connections open indefinitely
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.ObserverListenAddr).Msg("starting observer service")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("observer server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down observer service")

	cancelBg()
	waitWithTimeout(&wg, 10*time.Second)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("observer server forced to shutdown")
	}
	log.Info().Msg("observer service stopped")
}

func waitWithTimeout(wg *sync.WaitGroup, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		log.Warn().Msg("background loops did not shut down within timeout, proceeding anyway")
	}
}
