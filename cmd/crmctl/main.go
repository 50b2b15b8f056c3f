package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"nexacrm/api/internal/authpw"
	"nexacrm/api/internal/config"
	"nexacrm/api/internal/logging"
	"nexacrm/api/internal/search"
	"nexacrm/api/internal/store"
)

var (
	cfg    config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "crmctl",
	Short: "Operator tasks for the NexaCRM API",
	Long: `crmctl runs maintenance tasks against the NexaCRM database using the
same environment (and .env file) as the API server.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		logger = logging.New(cfg.LogLevel, "console", "crmctl")
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd.Context(), func(ctx context.Context, db *sql.DB) error {
			if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
				return err
			}
			logger.Info().Str("dir", cfg.MigrationsDir).Msg("migrations applied")
			return nil
		})
	},
}

var adminFlags struct {
	name     string
	email    string
	password string
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin account",
	Long: `Create an admin account without going through the API. The password
can also be supplied through CRMCTL_PASSWORD.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		password := adminFlags.password
		if password == "" {
			password = os.Getenv("CRMCTL_PASSWORD")
		}
		return withDB(cmd.Context(), func(ctx context.Context, db *sql.DB) error {
			passwords := authpw.NewService(store.NewPostgresStore(db), cfg.OwnerEmail)
			user, err := passwords.Register(ctx, authpw.RegisterRequest{
				Name:     adminFlags.name,
				Email:    adminFlags.email,
				Password: password,
				Role:     "admin",
			})
			if err != nil {
				return fmt.Errorf("create admin: %w", err)
			}
			logger.Info().Str("user_id", user.ID).Str("email", user.Email).Bool("owner", user.IsOwner).Msg("admin created")
			return nil
		})
	},
}

var reindexCmd = &cobra.Command{
	Use:   "reindex-leads",
	Short: "Push every lead to the Meilisearch index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(cfg.MeiliURL) == "" {
			return errors.New("MEILI_URL is not set")
		}
		meiliClient := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		defer meiliClient.Close()
		index := search.NewService(meiliClient, logger)

		return withDB(cmd.Context(), func(ctx context.Context, db *sql.DB) error {
			leads, err := store.NewPostgresStore(db).ListLeads(ctx, store.LeadFilter{})
			if err != nil {
				return err
			}
			records := make([]search.LeadRecord, 0, len(leads))
			for _, lead := range leads {
				records = append(records, search.LeadRecordFrom(lead))
			}
			done, err := index.Reindex(ctx, records)
			if err != nil {
				return fmt.Errorf("reindex stopped after %d leads: %w", done, err)
			}
			logger.Info().Int("leads", done).Msg("lead index rebuilt")
			return nil
		})
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge-revoked",
	Short: "Delete revoked token records that have expired",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd.Context(), func(ctx context.Context, db *sql.DB) error {
			purged, err := store.NewPostgresStore(db).PurgeExpiredTokens(ctx)
			if err != nil {
				return err
			}
			logger.Info().Int64("purged", purged).Msg("expired revocations removed")
			return nil
		})
	},
}

func withDB(ctx context.Context, fn func(context.Context, *sql.DB) error) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()
	return fn(ctx, db)
}

func init() {
	createAdminCmd.Flags().StringVar(&adminFlags.name, "name", "", "display name")
	createAdminCmd.Flags().StringVar(&adminFlags.email, "email", "", "sign-in e-mail")
	createAdminCmd.Flags().StringVar(&adminFlags.password, "password", "", "initial password")
	_ = createAdminCmd.MarkFlagRequired("name")
	_ = createAdminCmd.MarkFlagRequired("email")

	rootCmd.AddCommand(migrateCmd, createAdminCmd, reindexCmd, purgeCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
