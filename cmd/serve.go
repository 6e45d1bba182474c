package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"echochamber/internal/db"
	"echochamber/internal/export"
	"echochamber/internal/server"
	"echochamber/internal/sim"
)

var (
	serveSim  simFlags
	serveAddr string
	serveTick time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Tick a live simulation and serve its state, recorded runs and a step stream over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSimConfig(cmd, &serveSim)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr = serveAddr
		}
		if cmd.Flags().Changed("tick") {
			cfg.Server.TickInterval = serveTick
		}
		logger := jsonLogger(cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		simCfg := cfg.SimConfig().Normalize()
		hub := server.NewHub(logger)
		opts := []sim.Option{sim.WithLogger(logger), sim.WithCollector(hub)}

		var store *db.DB
		var rec *db.Recorder
		if path, err := DiscoverDB(cfg, false); err == nil {
			store, err = db.OpenDB(path)
			if err != nil {
				return err
			}
			defer store.Close()
			rec, err = db.NewRecorder(ctx, store, simCfg)
			if err != nil {
				return err
			}
			opts = append(opts, sim.WithCollector(rec))
			logger.Info("recording live run", "db", path, "run", rec.RunID())
		} else {
			logger.Warn("no run database, run history endpoints disabled", "reason", err)
		}

		if cfg.Storage.ExportDir != "" {
			name := "live"
			if rec != nil {
				name = rec.RunID()
			}
			w, err := export.NewStepWriter(cfg.Storage.ExportDir, name)
			if err != nil {
				return err
			}
			defer func() {
				if err := w.Close(); err != nil {
					logger.Error("closing export", "error", err)
				}
			}()
			opts = append(opts, sim.WithCollector(w))
		}

		live := server.NewLive(sim.New(simCfg, opts...))

		srv := &http.Server{
			Addr:        cfg.Server.Addr,
			Handler:     server.New(store, live, hub, logger).Router(),
			ReadTimeout: 30 * time.Second,
			IdleTimeout: 120 * time.Second,
		}

		simDone := make(chan struct{})
		go func() {
			defer close(simDone)
			summary, err := live.Run(ctx, cfg.Server.TickInterval, cfg.Simulation.MaxSteps)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("live simulation failed", "error", err)
			}
			logger.Info("live simulation stopped", "steps", summary.Steps, "terminated", summary.Terminated)
			if rec != nil {
				if err := rec.Finish(context.Background(), summary); err != nil {
					logger.Error("finishing run", "error", err)
				}
			}
		}()

		serveErr := make(chan error, 1)
		go func() {
			logger.Info("server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
		}()

		select {
		case <-ctx.Done():
		case err := <-serveErr:
			stop()
			<-simDone
			return err
		}
		stop()

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server forced to shutdown", "error", err)
		}
		<-simDone
		logger.Info("server stopped")
		return nil
	},
}

func init() {
	serveSim.register(serveCmd.Flags())
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, :8080)")
	serveCmd.Flags().DurationVar(&serveTick, "tick", 0, "Delay between live ticks (default from config, 1s)")
	rootCmd.AddCommand(serveCmd)
}
