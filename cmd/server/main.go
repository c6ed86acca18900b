package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"friendmap/config"
	"friendmap/internal/database"
	"friendmap/internal/identity"
	"friendmap/internal/router"
	"friendmap/internal/service"
	"friendmap/pkg/logger"

	firebase "firebase.google.com/go/v4"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	root := &cobra.Command{
		Use:           "server",
		Short:         "Friend location sharing API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// A missing .env is fine; the environment may already be set.
			_ = godotenv.Load()
			logger.Init()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP and WebSocket server",
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database schema and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				_, _, err := openDB()
				return err
			},
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error("command failed", "error", err)
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

func openDB() (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.NewDB(&cfg.Database, cfg.Server.Env)
	if err != nil {
		return nil, nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func serve(ctx context.Context) error {
	cfg, db, err := openDB()
	if err != nil {
		return err
	}

	var app *firebase.App
	if cfg.Firebase.ProjectID != "" || cfg.Firebase.ServiceAccountPath != "" {
		app, err = identity.NewFirebaseApp(ctx, cfg.Firebase)
		if err != nil {
			return err
		}
	}
	verifier, err := identity.NewVerifier(ctx, cfg, app)
	if err != nil {
		return err
	}

	deps := router.Deps{DB: db, Verifier: verifier}
	if fcm := service.NewFCMService(ctx, app); fcm != nil {
		deps.Pusher = fcm
		logger.Info("Push notifications enabled")
	} else {
		logger.Info("Push notifications disabled: configure Firebase to enable")
	}

	wired := router.Setup(ctx, cfg, deps)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      wired.Engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", cfg.Server.Port, "env", cfg.Server.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			wired.Close()
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	// Hijacked sockets are not tracked by Shutdown; close them with the sessions.
	wired.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
