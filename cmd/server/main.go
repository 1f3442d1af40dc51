// Package main is the entry point for the folio dashboard server. It wires
// the ledger engine, the quote cache and refresh job, the valuation service,
// and the HTTP API together.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mkarath/folio/internal/config"
	"github.com/mkarath/folio/internal/database"
	"github.com/mkarath/folio/internal/events"
	"github.com/mkarath/folio/internal/modules/ledger"
	ledgerhandlers "github.com/mkarath/folio/internal/modules/ledger/handlers"
	"github.com/mkarath/folio/internal/modules/pricing"
	pricinghandlers "github.com/mkarath/folio/internal/modules/pricing/handlers"
	"github.com/mkarath/folio/internal/modules/valuation"
	valuationhandlers "github.com/mkarath/folio/internal/modules/valuation/handlers"
	"github.com/mkarath/folio/internal/scheduler"
	"github.com/mkarath/folio/internal/server"
	"github.com/mkarath/folio/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Logger is not up yet
		panic(err)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting folio")

	// Ledger database: maximum durability for the audit trail
	ledgerDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "ledger.db"),
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger database")
	}
	defer ledgerDB.Close()

	if err := ledgerDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate ledger database")
	}

	// Quote cache database: speed over durability, contents are rebuildable
	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "pricecache.db"),
		Profile: database.ProfileCache,
		Name:    "pricecache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open price cache database")
	}
	defer cacheDB.Close()

	if err := cacheDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate price cache database")
	}

	// Event bus
	eventBus := events.NewBus(log)
	eventManager := events.NewManager(eventBus, log)

	// Pricing: persisted snapshot warms the in-memory cache on boot
	snapshotStore := pricing.NewSnapshotStore(cacheDB)
	quoteCache := pricing.NewCache(snapshotStore, log)
	quoteCache.WarmStart()
	quoteClient := pricing.NewClient(cfg.QuoteAPIURL, log)

	// Ledger engine
	ledgerStore := ledger.NewStore(ledgerDB, log)
	ledgerService := ledger.NewService(ledgerStore, quoteCache, eventManager, log)

	if cfg.SeedDemo {
		ledgerService.SeedDemo()
	}

	// Valuation
	valuationService := valuation.NewService(ledgerService, quoteCache, log)

	// Scheduler with the periodic quote refresh job
	sched := scheduler.New(log)

	refreshJob := scheduler.NewRefreshJob(
		quoteClient,
		quoteCache,
		ledgerService,
		cfg.BaselineSymbols,
		eventManager,
		log,
	)

	if err := sched.AddJob(cfg.PriceRefreshSchedule, refreshJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register quote refresh job")
	}

	sched.Start()
	defer sched.Stop()

	// A buy may open a lot for an asset the cache has never seen. Refresh
	// immediately instead of leaving it unpriced until the next tick.
	eventBus.Subscribe(events.LedgerChanged, func(event *events.Event) {
		if event.Data["operation"] != "buy" {
			return
		}
		go func() {
			if err := sched.RunNow(refreshJob); err != nil {
				log.Warn().Err(err).Msg("Post-buy quote refresh failed")
			}
		}()
	})

	// Prime the cache right away instead of waiting for the first tick
	go func() {
		if err := sched.RunNow(refreshJob); err != nil {
			log.Warn().Err(err).Msg("Initial quote refresh failed, serving persisted quotes")
		}
	}()

	// HTTP server
	srv := server.New(server.Config{
		Port:    cfg.Port,
		Log:     log,
		DevMode: cfg.DevMode,
		Modules: []server.RouteRegistrar{
			ledgerhandlers.NewHandler(ledgerService, log),
			valuationhandlers.NewHandler(valuationService, log),
			pricinghandlers.NewHandler(quoteCache, log),
		},
		SystemHandlers: server.NewSystemHandlers(log, cfg.DataDir, ledgerDB, cacheDB, quoteCache),
		EventsStream:   server.NewEventsStreamHandler(eventBus, log),
		Databases:      []*database.DB{ledgerDB, cacheDB},
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
