package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"workflow-builder/api/pkg/db"
	"workflow-builder/api/pkg/logging"
	"workflow-builder/api/services/catalog"
	"workflow-builder/api/services/credential"
	"workflow-builder/api/services/editor"
	"workflow-builder/api/services/execution"
	"workflow-builder/api/services/properties"
	"workflow-builder/api/services/workflow"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the workflow editor API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.Setup(os.Stdout, cfg.LogLevel)
			return serve(cmd.Context())
		},
	}
}

// backend is the persistence and vault pair the editor runs against.
type backend struct {
	store workflow.Store
	vault credential.Vault
	close func()
}

// openBackend uses Postgres when DATABASE_URL is set and in-memory stores
// otherwise. Both start with the sample workflow.
func openBackend(ctx context.Context) (*backend, error) {
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL is not set, using in-memory stores")
		store := workflow.NewMemoryStore()
		if err := store.Save(ctx, workflow.SampleWorkflow()); err != nil {
			return nil, err
		}
		vault := credential.NewStaticVault(
			credential.Entry{Ref: workflow.CredentialRef{ID: "demo-telegram", Name: "Demo Telegram bot", Provider: "Telegram"}},
			credential.Entry{Ref: workflow.CredentialRef{ID: "demo-gmail", Name: "demo@example.com", Provider: "Gmail"}},
		)
		return &backend{store: store, vault: vault, close: func() {}}, nil
	}

	pool, err := db.Connect(ctx, db.Config{
		URL:            cfg.DatabaseURL,
		ConnectTimeout: 10 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	// Initialize database schema and seed data
	if err := workflow.InitDB(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	creds := credential.NewRepository(pool)
	if err := creds.InitSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &backend{store: workflow.NewRepository(pool), vault: creds, close: pool.Close}, nil
}

func newEngine(vault credential.Vault, cat *catalog.Catalog) *execution.Engine {
	registry := execution.NewBuiltinRegistry(execution.BuiltinOptions{
		Delay:   cfg.NodeDelay,
		Timeout: cfg.NodeTimeout,
	})
	return execution.NewEngine(registry,
		execution.WithCredentials(vault, cat),
		execution.WithConcurrency(cfg.ExecutionConcurrency),
		execution.WithHistoryLimit(cfg.HistoryLimit),
	)
}

func serve(ctx context.Context) error {
	be, err := openBackend(ctx)
	if err != nil {
		return fmt.Errorf("open backend: %w", err)
	}
	defer be.close()

	cat := catalog.Default()
	sessions := editor.NewSessions(editor.Deps{
		Store:    be.store,
		Engine:   newEngine(be.vault, cat),
		Resolver: properties.NewResolver(cat, be.vault),
		Catalog:  cat,
	})

	// setup router
	mainRouter := mux.NewRouter()
	apiRouter := mainRouter.PathPrefix("/api/v1").Subrouter()
	editor.NewService(sessions, cat, cfg.AllowedOrigins).LoadRoutes(apiRouter)

	corsHandler := handlers.CORS(
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-User-Id"}),
		handlers.AllowCredentials(),
	)(mainRouter)

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: corsHandler,
	}

	serverErrors := make(chan error, 1)

	go func() {
		slog.Info("Starting server", "addr", srv.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			return err
		}

	case sig := <-shutdown:
		slog.Info("Shutdown signal received", "signal", sig)

		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("Could not stop server gracefully", "error", err)
			srv.Close()
		}
	}
	return nil
}
