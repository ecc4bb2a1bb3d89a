package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"finamily/config"
	"finamily/database"
	"finamily/importer"
	"finamily/middleware"
	"finamily/router"
	"finamily/service"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default command)",
		RunE:  runServe,
	}
	cmd.Flags().StringP("port", "p", "", "listen port, e.g. 8080 or :8080")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	if f := cmd.Flags().Lookup("port"); f != nil && f.Value.String() != "" {
		port := f.Value.String()
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		cfg.Server.Port = port
	}
	config.PrintConfig()

	if err := database.Init(cfg); err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	middleware.InitJWT(cfg)

	var publisher importer.EventPublisher
	if cfg.Events.Enabled {
		p, err := service.NewPublisher(cfg.Events)
		if err != nil {
			return fmt.Errorf("connect event broker: %w", err)
		}
		defer p.Close()
		publisher = p
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	store := database.NewStore(database.GetDB())
	srv := &http.Server{
		Addr:    cfg.Server.Port,
		Handler: router.SetupRouter(ctx, cfg, store, publisher),
	}

	g.Go(func() error {
		slog.Info("server listening",
			"addr", cfg.Server.Port,
			"swagger", fmt.Sprintf("http://localhost%s/swagger/index.html", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
