// AfriTokenID Daemon - Mobile-Money/Crypto Platform Node
//
// This daemon provides:
// - REST+WebSocket API for wallet, crypto, agent, escrow, and governance
//   operations
// - Rate limiting and admission controls, keyed by client IP
// - External ledger (ICRC-1-style) settlement via the token-ledger client
// - Prometheus metrics and observability
//
// Version: 1.0.0
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/afritokeni/platform/internal/logger"
	"github.com/afritokeni/platform/pkg/agents"
	"github.com/afritokeni/platform/pkg/api"
	"github.com/afritokeni/platform/pkg/config"
	"github.com/afritokeni/platform/pkg/cryptoasset"
	"github.com/afritokeni/platform/pkg/escrow"
	"github.com/afritokeni/platform/pkg/governance"
	"github.com/afritokeni/platform/pkg/ledger"
	"github.com/afritokeni/platform/pkg/limiter"
	"github.com/afritokeni/platform/pkg/metrics"
	"github.com/afritokeni/platform/pkg/rates"
	"github.com/afritokeni/platform/pkg/tokenledger"
	"github.com/afritokeni/platform/pkg/users"
	"github.com/afritokeni/platform/pkg/wallet"

	"github.com/spf13/cobra"
)

var (
	// Version info (set by build)
	Version   = "1.0.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "afritokenid",
	Short: "AfriTokenID platform daemon",
	Long: `AfriTokenID daemon - mobile-money and crypto platform node.

Provides REST+WebSocket API, rate limiting, external ledger settlement,
and Prometheus metrics for the AfriTokenID platform.`,
	Run: runDaemon,
}

var (
	configPath string
	logLevel   string
)

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to configuration file")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "info", "Log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, args []string) {
	log := logger.NewLogger(logLevel)
	log.WithFields(logger.Fields{
		"version":    Version,
		"git_commit": GitCommit,
		"build_time": BuildTime,
	}).Info("Starting AfriTokenID daemon")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	log.WithFields(logger.Fields{
		"api_port":            cfg.API.Port,
		"metrics_port":        cfg.Metrics.Port,
		"rate_limit_enabled":  cfg.RateLimiter.Enabled,
		"governance_enabled":  cfg.Features.EnableGovernance,
		"swap_enabled":        cfg.Features.EnableSwap,
	}).Info("Configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Metrics exporter
	metricsExporter := metrics.NewExporter(cfg.Metrics.Port)
	go func() {
		log.WithField("port", cfg.Metrics.Port).Info("Starting metrics server")
		if err := metricsExporter.Start(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Metrics server failed")
		}
	}()

	// 2. Rate limiter
	rateLimiter := limiter.NewRateLimiter(cfg.RateLimiter, log)
	log.Info("Rate limiter initialized")

	// 3. Ledger store (SQLite-backed C1)
	store, err := ledger.Open(cfg.Ledger.DBPath, cfg.Ledger.JWTSecret, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to open ledger store")
	}
	defer store.Close()
	log.Info("Ledger store opened")

	// 4. External ledger adapter (C8) and rate source adapter (C9)
	tledger, err := tokenledger.NewClient(cfg.TokenLedger, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize token ledger client")
	}
	ratesSvc := rates.NewService(cfg.Rates, log)
	log.Info("External ledger and rate source adapters initialized")

	// 5. The daemon's own internal service token, presented to every
	// service-layer call on behalf of whichever end user authenticates
	// with their PIN at the API boundary.
	serviceToken, err := ledger.IssueServiceToken(cfg.Ledger.JWTSecret, "afritokenid-daemon", "service")
	if err != nil {
		log.WithError(err).Fatal("Failed to issue internal service token")
	}

	// 6. Service layer (C2-C6, C10)
	usersSvc := users.NewService(store, cfg)
	walletSvc := wallet.NewService(store, cfg)
	cryptoSvc := cryptoasset.NewService(store, cfg, usersSvc, ratesSvc, tledger)
	agentsSvc := agents.NewService(store, cfg, usersSvc)
	escrowSvc := escrow.NewService(store, cfg, usersSvc)
	governanceSvc := governance.NewService(store, cfg)
	log.Info("Service layer initialized")

	// 7. API server
	apiServer := api.NewServer(cfg.API, rateLimiter, api.Services{
		Store:      store,
		Users:      usersSvc,
		Wallet:     walletSvc,
		Crypto:     cryptoSvc,
		Agents:     agentsSvc,
		Escrow:     escrowSvc,
		Governance: governanceSvc,
	}, serviceToken, log)
	go func() {
		log.WithField("port", cfg.API.Port).Info("Starting API server")
		if err := apiServer.Start(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("API server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Info("AfriTokenID daemon is running. Press Ctrl+C to stop.")

	<-sigCh
	log.Info("Received shutdown signal, stopping daemon...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("API server shutdown error")
	}
	if err := metricsExporter.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Metrics server shutdown error")
	}

	log.Info("Daemon stopped gracefully")
}
