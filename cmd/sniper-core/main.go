package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sniper-core/internal/api"
	"sniper-core/internal/bridge"
	"sniper-core/internal/events"
	"sniper-core/internal/executor"
	"sniper-core/internal/intent"
	"sniper-core/internal/ledger"
	"sniper-core/internal/monitor"
	"sniper-core/internal/notify"
	"sniper-core/internal/reconcile"
	"sniper-core/internal/settings"
	"sniper-core/internal/wallet"
	"sniper-core/pkg/cache"
	"sniper-core/pkg/config"
	"sniper-core/pkg/db"
	"sniper-core/pkg/pump"
	"sniper-core/pkg/solana"
)

var errExecutionDisabled = errors.New("trade execution is disabled on this instance")

// disabledTrader rejects every submission. Installed when the process
// runs observe-only, so signal detection, the ledger and the API keep
// working without a signer.
type disabledTrader struct{}

func (disabledTrader) SubmitBuy(ctx context.Context, req executor.BuyRequest) (*pump.BuySubmission, error) {
	return nil, errExecutionDisabled
}

func (disabledTrader) SubmitSell(ctx context.Context, userID, mint string, tokenAmount float64) (*pump.SellSubmission, error) {
	return nil, errExecutionDisabled
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	policy, err := config.LoadChannelPolicy(cfg.ChannelPolicyPath)
	if err != nil {
		log.Fatalf("config: channel policy: %v", err)
	}

	buildVersion := os.Getenv("APP_VERSION")
	if buildVersion == "" {
		buildVersion = "v1.0-dev"
	}
	log.Printf("sniper-core %s starting, port %s", buildVersion, cfg.Port)
	log.Printf("using database %s", cfg.DBPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Core services
	bus := events.NewBus()
	defer bus.Close()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("db: migrations: %v", err)
	}
	q := database.Queries()

	mints := cache.NewMintCache()
	rpc := solana.NewClient(cfg.RPCURL, cfg.RPCRequestsPerSec)

	l := ledger.New(database)
	tracker := intent.NewTracker(q)
	recon := reconcile.New(rpc, l, tracker, q, bus)
	svc := settings.NewService(q, policy)
	wallets := wallet.NewRegistry(q)

	notifier, err := notify.NewTelegram(cfg.TelegramBotToken, q)
	if err != nil {
		log.Fatalf("notify: %v", err)
	}

	// Venue access. Without a signer the process runs observe-only:
	// messages are ingested and positions reconciled, but nothing is
	// submitted on-chain.
	executionEnabled := cfg.ExecutionEnabled && cfg.SignerURL != ""
	var trader interface {
		SubmitBuy(ctx context.Context, req executor.BuyRequest) (*pump.BuySubmission, error)
		SubmitSell(ctx context.Context, userID, mint string, tokenAmount float64) (*pump.SellSubmission, error)
	} = disabledTrader{}

	if executionEnabled {
		venue := pump.NewVenue(rpc, pump.NewRemoteBuilder(cfg.SignerURL))
		exec := executor.New(venue, wallets, recon, tracker, svc, q, mints, rpc, bus,
			cfg.ConfirmRetries, time.Duration(cfg.ConfirmDelaySec)*time.Second)
		trader = exec

		mon := monitor.New(q, venue, exec, svc, mints, rpc, bus,
			time.Duration(cfg.MonitorIntervalSec)*time.Second)
		go mon.Run(ctx)
	} else {
		log.Printf("execution disabled (EXECUTION_ENABLED=%v, signer configured=%v), running observe-only",
			cfg.ExecutionEnabled, cfg.SignerURL != "")
	}

	br := bridge.New(q, svc, trader, recon, l, rpc, notifier, bus)
	go br.RunHeartbeat(ctx, 30*time.Second)

	// Periodic re-reconciliation of intents still pending.
	if cfg.SweepEnabled {
		go func() {
			interval := time.Duration(cfg.SweepIntervalSec) * time.Second
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			log.Printf("reconcile: sweep every %s, batch %d", interval, cfg.SweepBatchLimit)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					resolved, err := recon.Sweep(ctx, db.StatusPending, cfg.SweepBatchLimit)
					if err != nil {
						log.Printf("reconcile: sweep: %v", err)
						continue
					}
					if resolved > 0 {
						log.Printf("reconcile: sweep resolved %d intents", resolved)
					}
				}
			}
		}()
	}

	// API
	server := api.NewServer(
		bus,
		q,
		svc,
		trader,
		recon,
		br,
		wallets,
		api.SystemMeta{
			RPCEndpoint: cfg.RPCURL,
			Version:     buildVersion,
		},
		cfg.JWTSecret,
	)
	go func() {
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Fatalf("api: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("shutting down")
	cancel()
	br.Wait()
}
