// Command agent runs the digital entity's identity, credit ledger, and
// think-act loop (§4.5-§4.9): model gateway client with redaction proxy,
// content-filtered closed action-set dispatch, and the loopback-only
// internal HTTP surface the observer drives. Startup/shutdown sequencing
// mirrors cmd/observer/main.go, itself grounded on the teacher's
// cmd/api/main.go APIServer.start pattern.
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

	"github.com/digitalentity/aientity/internal/agentcore"
	"github.com/digitalentity/aientity/internal/config"
	agentapi "github.com/digitalentity/aientity/internal/httpapi/agent"
	"github.com/digitalentity/aientity/internal/httpclient"
	"github.com/digitalentity/aientity/internal/ledger"
	"github.com/digitalentity/aientity/internal/llmgateway"
	"github.com/digitalentity/aientity/internal/metrics"
	"github.com/digitalentity/aientity/internal/redaction"
	"github.com/digitalentity/aientity/internal/secretsource"
)

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

	if err := config.ValidateStartup(cfg, config.RoleAgent); err != nil {
		log.Fatal().Err(err).Msg("startup validation failed")
	}

	workspace := agentcore.NewWorkspace(cfg.DataDir)

	ledgerPath := filepath.Join(cfg.DataDir, "credits", "ledger.json")
	led, err := ledger.Open(ledgerPath, cfg.MonthlyBudgetUSD, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open credit ledger")
	}

	redactionStore, err := redaction.NewStore(filepath.Join(cfg.DataDir, "vault", "secrets.jsonl"), log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open redaction vault")
	}
	redactor := &redaction.RoundTripper{Store: redactionStore}

	gateway := llmgateway.New(cfg.ModelGatewayURL, cfg.ModelGatewayKey, cfg.ModelTier, redactor, log.Logger)
	observerClient := httpclient.New(cfg.ObserverBaseURL, "X-Internal-Key", cfg.InternalAPIKey, 10*time.Second, log.Logger)
	agentMetrics := metrics.NewAgent()

	agent := agentcore.New(cfg, workspace, led, gateway, observerClient, redactor, agentMetrics, log.Logger)

	bgCtx, cancelBg := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go agent.Run(bgCtx, &wg)

	server := agentapi.New(cfg, agent, log.Logger)
	srv := &http.Server{
		Addr:         cfg.AgentListenAddr,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.AgentListenAddr).Msg("starting agent service")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("agent server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down agent service")

	cancelBg()
	waitWithTimeout(&wg, 10*time.Second)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("agent server forced to shutdown")
	}
	log.Info().Msg("agent service stopped")
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
		log.Warn().Msg("agent think-act loop did not shut down within timeout, proceeding anyway")
	}
}
