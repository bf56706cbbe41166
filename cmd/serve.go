package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/betrace-hq/betrace-sub002/internal/aggregator"
	"github.com/betrace-hq/betrace-sub002/internal/api"
	"github.com/betrace-hq/betrace-sub002/internal/core"
	"github.com/betrace-hq/betrace-sub002/internal/engine"
	"github.com/betrace-hq/betrace-sub002/internal/evidence"
	"github.com/betrace-hq/betrace-sub002/internal/keycache"
	"github.com/betrace-hq/betrace-sub002/internal/ledger"
	"github.com/betrace-hq/betrace-sub002/internal/logging"
	"github.com/betrace-hq/betrace-sub002/internal/pipeline"
	"github.com/betrace-hq/betrace-sub002/internal/signals"
	"github.com/betrace-hq/betrace-sub002/internal/tasks"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the BeTrace server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := f.LoadServerConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.Server.Addr
		}
		if addr == "" {
			addr = ":8080"
		}

		log.Info().Msg("Initializing ledger...")
		var led core.Ledger = ledger.NewMemoryLedger()
		if cfg.Ledger.JournalPath != "" {
			journaled, err := ledger.NewJournaledLedger(led, cfg.Ledger.JournalPath)
			if err != nil {
				return fmt.Errorf("opening ledger journal: %w", err)
			}
			defer func() {
				_ = journaled.Close()
			}()
			led = journaled
		}
		accounts := ledger.NewAccounts(led)
		for _, tenant := range cfg.Tenants {
			if err := accounts.Bootstrap(ctx, tenant.ID); err != nil {
				return fmt.Errorf("bootstrapping tenant %q: %w", tenant.ID, err)
			}
		}
		recorder := ledger.NewRecorder(led, cfg.Ledger.BufferCapacity)

		log.Info().Msg("Initializing rule engines...")
		manager := engine.NewManager()
		for _, tenant := range cfg.Tenants {
			if err := manager.Update(tenant.ID, tenant.Rules); err != nil {
				return fmt.Errorf("loading rules for tenant %q: %w", tenant.ID, err)
			}
		}

		log.Info().Msg("Initializing key cache...")
		provider, err := keycache.BuildProvider(cfg.Keys.Provider, cfg.Keys.Config)
		if err != nil {
			return fmt.Errorf("building key provider: %w", err)
		}
		keys := keycache.New(provider, cfg.Keys.PrivateTTL, cfg.Keys.PublicTTL)

		agg := aggregator.New(cfg.Aggregator.IdleWindow, cfg.Aggregator.Shards)
		sigSvc := signals.NewService(led, accounts)
		evSvc := evidence.NewService(keys, led, accounts)

		pipe := pipeline.New(manager, sigSvc, cfg.Pipeline.Workers, cfg.Pipeline.QueueSize, engine.Options{
			StepBudget: cfg.Engine.StepBudget,
			Timeout:    cfg.Engine.EvalTimeout,
		})
		pipe.Start(ctx)
		defer pipe.Stop()

		taskManager := tasks.NewManager()
		registerTasks(taskManager, cfg.Aggregator.IdleWindow, agg, pipe, recorder, keys)

		srv := api.NewServer(agg, pipe, sigSvc, evSvc, led, recorder, accounts, keys, taskManager)

		server := &http.Server{
			Addr:    addr,
			Handler: srv.Routes([]byte(cfg.Server.AdminSigningKey)),
		}

		go func() {
			log.Info().Msgf("Starting server on %s...", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("Server crashed")
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		log.Info().Msg("Server exited")
		return nil
	},
}

// registerTasks wires the recurring maintenance work: draining idle
// traces, replaying buffered audit transfers and evicting expired keys.
func registerTasks(
	manager *tasks.Manager,
	idleWindow time.Duration,
	agg *aggregator.Aggregator,
	pipe *pipeline.Pipeline,
	recorder *ledger.Recorder,
	keys *keycache.Cache,
) {
	if idleWindow <= 0 {
		idleWindow = aggregator.DefaultIdleWindow
	}
	sweepEvery := idleWindow / 2
	if sweepEvery < time.Second {
		sweepEvery = time.Second
	}

	manager.Register(tasks.TaskDefinition{
		Name:     "trace-sweep",
		Interval: sweepEvery,
		Handler: func(ctx context.Context, logger logging.InternalLogger) error {
			traces := agg.Sweep()
			submitted := 0
			for _, trace := range traces {
				if pipe.Submit(trace) {
					submitted++
				}
			}
			logger.Info("swept %d idle traces, submitted %d", len(traces), submitted)
			return nil
		},
	})

	manager.Register(tasks.TaskDefinition{
		Name:     "audit-flush",
		Interval: 30 * time.Second,
		Timeout:  time.Minute,
		Handler: func(ctx context.Context, logger logging.InternalLogger) error {
			if recorder.Pending() == 0 {
				logger.Info("no buffered transfers")
				return nil
			}
			replayed, err := recorder.Flush(ctx)
			if err != nil {
				logger.Warn("replayed %d transfers, ledger still unavailable: %v", replayed, err)
				return err
			}
			logger.Info("replayed %d buffered transfers", replayed)
			return nil
		},
	})

	manager.Register(tasks.TaskDefinition{
		Name:     "key-evict",
		Interval: 5 * time.Minute,
		Handler: func(ctx context.Context, logger logging.InternalLogger) error {
			evicted := keys.EvictExpired()
			logger.Info("evicted %d expired key entries", evicted)
			return nil
		},
	})
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "address to listen on (overrides config)")
}
