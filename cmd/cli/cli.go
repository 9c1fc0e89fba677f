// Package cli holds the command line entry points: the HTTP server and the operator commands.
package cli

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

	api "advisor-backend/cmd/api"
	"advisor-backend/internal/agent/mcpserver"
	knowledgedomain "advisor-backend/internal/knowledge/domain"
	knowledge "advisor-backend/internal/knowledge/usecase"
	"advisor-backend/pkg/config"
	"advisor-backend/pkg/database"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"gorm.io/gorm/logger"
)

const shutdownTimeout = 10 * time.Second

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "advisor-backend",
	Short: "Assistant backend for financial advisors",
	Long: `Connects Gmail, Google Calendar and HubSpot, keeps a searchable knowledge base
of the advisor's emails and contacts, and answers chat messages with a tool-calling agent.

Examples:
  advisor-backend serve                               # start the HTTP API (default)
  advisor-backend migrate                             # create or update the schema
  advisor-backend sync --user <id> --kind emails      # embed a user's recent emails now
  advisor-backend mcp --user <id>                     # serve the tool catalog over stdio`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and background workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.NewPostgresConnection(cfg)
		if err != nil {
			return err
		}
		if err := api.Migrate(db, cfg.EmbeddingDimensions); err != nil {
			return err
		}
		log.Println("Database schema is up to date")
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one knowledge base sync for a user in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		kindFlag, _ := cmd.Flags().GetString("kind")
		return runSync(cmd.Context(), userID, kindFlag)
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the agent tool catalog over MCP stdio for one user",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		return runMCP(cmd.Context(), userID)
	},
}

// Execute runs the CLI with the loaded configuration.
func Execute(c *config.Config) {
	cfg = c

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	syncCmd.Flags().String("user", "", "user id to sync")
	syncCmd.Flags().String("kind", "all", "what to sync: emails, contacts or all")
	_ = syncCmd.MarkFlagRequired("user")

	mcpCmd.Flags().String("user", "", "user id the tools act for")
	_ = mcpCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runServe(ctx context.Context) error {
	app, err := api.NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	app.StartBackground(ctx)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: api.NewHandler(app).Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Println("Shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// syncKinds expands the --kind flag.
func syncKinds(flag string) ([]knowledgedomain.Kind, error) {
	if flag == "" || flag == "all" {
		return []knowledgedomain.Kind{knowledgedomain.KindEmails, knowledgedomain.KindContacts}, nil
	}
	kind, ok := knowledgedomain.ParseKind(flag)
	if !ok {
		return nil, fmt.Errorf("unknown sync kind %q (want emails, contacts or all)", flag)
	}
	return []knowledgedomain.Kind{kind}, nil
}

func runSync(ctx context.Context, userID, kindFlag string) error {
	kinds, err := syncKinds(kindFlag)
	if err != nil {
		return err
	}

	app, err := api.NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if _, err := app.Auth.GetUser(userID); err != nil {
		return err
	}
	for _, kind := range kinds {
		result, err := app.Sync.Run(ctx, knowledge.SyncJob{UserID: userID, Kind: kind})
		if err != nil {
			return fmt.Errorf("%s sync failed: %w", kind, err)
		}
		fmt.Printf("%s: fetched %d, skipped %d, stored %d, failed %d in %s\n",
			kind, result.Fetched, result.Skipped, result.Stored, result.Failed, result.Duration.Round(time.Millisecond))
	}
	return nil
}

func runMCP(ctx context.Context, userID string) error {
	app, err := api.NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	// stdout carries the protocol
	app.DB.Logger = logger.New(log.New(os.Stderr, "\r\n", log.LstdFlags), logger.Config{
		SlowThreshold: 200 * time.Millisecond,
		LogLevel:      logger.Warn,
	})

	if _, err := app.Auth.GetUser(userID); err != nil {
		return err
	}

	log.Printf("[MCP] Serving %d tools for user %s on stdio", len(app.Registry.Schemas()), userID)
	stdio := server.NewStdioServer(mcpserver.New(app.Registry, userID))
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
