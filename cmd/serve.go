package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harborview/claims-triage/internal/ingest"
	"github.com/harborview/claims-triage/internal/monitoring"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the claims intake API server",
	Long:  "Runs the HTTP API, the uploads-directory watcher, the optional FTP drop-folder poller, the workflow transition scheduler, and the health checker until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initIntake(ctx, true)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := os.MkdirAll(cfg.Ingest.UploadsDir, 0o755); err != nil {
			return eris.Wrapf(err, "create uploads dir %s", cfg.Ingest.UploadsDir)
		}

		api := &apiServer{
			store:     env.Store,
			bus:       env.Bus,
			collector: monitoring.NewCollector(env.Store),
			tasks:     env.Tasks,
			cfg:       cfg,
		}

		var wg sync.WaitGroup

		wg.Add(1)
		go func() {
			defer wg.Done()
			env.Scheduler.Run(ctx)
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			watcher := ingest.NewWatcher(cfg.Ingest, env.Processor)
			if err := watcher.Run(ctx); err != nil {
				zap.L().Error("uploads watcher exited", zap.Error(err))
			}
		}()

		if cfg.Ingest.FTP.Enabled {
			wg.Add(1)
			go func() {
				defer wg.Done()
				poller := ingest.NewFTPPoller(cfg.Ingest.FTP, cfg.Ingest.UploadsDir, env.Processor)
				poller.Run(ctx)
			}()
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			checker := monitoring.NewChecker(
				api.collector,
				monitoring.NewAlerter(cfg.Monitor),
				cfg.Monitor,
			)
			checker.Run(ctx)
		}()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: api.router(),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			stop()
			wg.Wait()
			return eris.Wrap(err, "server listen")
		}

		wg.Wait()
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
