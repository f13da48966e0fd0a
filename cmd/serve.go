package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/triage/internal/archive"
	"github.com/joescharf/triage/internal/git"
	"github.com/joescharf/triage/internal/webhook"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Long: `Start the HTTP server that receives recording webhooks and chat
action callbacks. By default it listens on port 8080. Use --port to
change it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

func serveRun(ctx context.Context) error {
	logger := newLogger()

	store, err := getStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	coordinator, err := newCoordinator(store, logger)
	if err != nil {
		return err
	}
	extractor, err := newExtractor()
	if err != nil {
		return err
	}
	messenger, channel, err := newMessenger()
	if err != nil {
		return err
	}

	secret := viper.GetString("webhook.secret")
	if secret == "" {
		return fmt.Errorf("webhook.secret must be configured (or TRIAGE_WEBHOOK_SECRET)")
	}

	// Transcript archival is optional; enabled by configuring archive.dir.
	var archiver webhook.Archiver
	if dir := viper.GetString("archive.dir"); dir != "" {
		archiver = archive.New(dir, git.NewClient(), viper.GetBool("archive.push"), logger)
	}

	cfg := webhook.Config{
		Secret:    secret,
		TeamID:    viper.GetString("tracker.team_id"),
		ProjectID: viper.GetString("tracker.project_id"),
	}
	server := webhook.NewServer(cfg, coordinator, extractor, archiver, messenger, channel, logger)

	addr := fmt.Sprintf(":%d", viper.GetInt("server.port"))
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("webhook server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
