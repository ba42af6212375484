// Command draftboard runs the change-control server for projects and tasks.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/draftboard/draftboard/internal/agent"
	"github.com/draftboard/draftboard/internal/apply"
	"github.com/draftboard/draftboard/internal/config"
	"github.com/draftboard/draftboard/internal/draft"
	"github.com/draftboard/draftboard/internal/server"
	"github.com/draftboard/draftboard/internal/storage/sqlite"
	"github.com/draftboard/draftboard/internal/telemetry"
	"github.com/draftboard/draftboard/internal/tools"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "draftboard",
		Short:         "Change-control core for project and task management",
		Long:          "draftboard serves a draft/apply/audit lifecycle over projects and tasks,\nwith an agent tool registry and a REST facade.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newSeedCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := telemetry.Init(ctx, "draftboard", version); err != nil {
		return err
	}

	store, err := sqlite.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.Seed {
		if err := store.Seed(ctx); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		log.Printf("seeded demo data into %s", cfg.DatabaseURL)
	}

	drafts := draft.NewEngine(store)
	applier := apply.NewEngine(store)
	registry := tools.NewBuiltinRegistry(tools.Deps{Store: store, Apply: applier})

	var runner server.AgentRunner
	if cfg.OpenAIAPIKey != "" {
		client := agent.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel)
		runner = agent.New(client, registry, drafts)
	} else {
		log.Printf("OPENAI_API_KEY not set; /api/ai is disabled")
	}

	srv := server.New(store, drafts, applier, registry, runner)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("draftboard %s listening on %s (db: %s)", version, cfg.Addr(), cfg.DatabaseURL)
		if err := srv.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Printf("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return telemetry.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert demo data (idempotent) and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			store, err := sqlite.New(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Seed(cmd.Context()); err != nil {
				return err
			}
			fmt.Printf("Seeded demo data into %s\n", cfg.DatabaseURL)
			return nil
		},
	}
}
