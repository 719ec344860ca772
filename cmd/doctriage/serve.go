package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/doctriage/internal/api"
	"github.com/dgallion1/doctriage/internal/pipeline"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  `Start an HTTP server that accepts triage jobs (descriptor plus uploaded documents) and serves their results.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("port", "", "port to listen on (default 8090)")
	serveCmd.Flags().Int("workers", 1, "documents processed in parallel per job")
	addBackendFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateServe(); err != nil {
		return err
	}
	log := newLogger(os.Stdout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := newBackends(cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, b.sim, b.extractor, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, b.stats, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		// Drain HTTP first so no handler submits to a stopped pool.
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", "error", err)
		}
		orch.Stop()
	}()

	log.Info("starting doctriage", "port", cfg.Port,
		"similarity", cfg.SimilarityBackend, "keywords", cfg.KeywordBackend)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	<-done
	return nil
}
