package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"clinic/m/domain"
	"clinic/m/internal/api"
	"clinic/m/internal/audit"
	"clinic/m/internal/config"
	"clinic/m/internal/database"
	"clinic/m/internal/inventory"
	"clinic/m/internal/migrations"
	"clinic/m/internal/notify"
	"clinic/m/internal/seed"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "clinic-server",
		Short:        "Clinic pharmacy inventory API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the inventory API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			db, err := open(cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			logger.Info().Str("driver", cfg.DatabaseDriver).Msg("migrations applied")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert reference data and optionally import a drug catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			db, err := open(cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := seed.Reference(db); err != nil {
				return err
			}
			logger.Info().Msg("reference data seeded")

			path, _ := cmd.Flags().GetString("drugs")
			if path == "" {
				return nil
			}
			svc := inventory.NewService(inventory.NewSQLRepository(db), audit.NewStore(db), nil, logger, inventory.Options{})
			system := inventory.Actor{Role: domain.RoleAdmin}
			n, err := seed.LoadDrugs(cmd.Context(), svc, system, path, logger)
			if err != nil {
				return err
			}
			logger.Info().Int("drugs", n).Str("file", path).Msg("drug catalog imported")
			return nil
		},
	}
	cmd.Flags().String("drugs", "", "CSV file of drugs to import")
	return cmd
}

func setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return nil, logger, err
	}
	return cfg, logger, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

// open connects and brings the schema up to date.
func open(cfg *config.Config) (*sqlx.DB, error) {
	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	if err := migrations.Run(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func runServer() error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	db, err := open(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("database setup failed")
		return err
	}
	defer db.Close()
	if err := seed.Reference(db); err != nil {
		return err
	}

	auditStore := audit.NewStore(db)
	inbox := notify.NewStore(db)
	notifiers := notify.Multi{inbox}
	var kafka *notify.KafkaPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafka = notify.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		notifiers = append(notifiers, kafka)
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing notifications to kafka")
	}

	svc := inventory.NewService(inventory.NewSQLRepository(db), auditStore, notifiers, logger, inventory.Options{
		ApprovalRequired: cfg.RestockApprovalRequired,
	})
	handler := api.New(api.Deps{
		DB:            db,
		Secret:        cfg.Secret,
		TokenTTL:      cfg.TokenTTL,
		Inventory:     svc,
		Audit:         auditStore,
		Notifications: inbox,
		Logger:        logger,
		CORSOrigins:   cfg.CORSOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("port", cfg.HTTPPort).
			Str("driver", cfg.DatabaseDriver).
			Bool("restock_approval_required", cfg.RestockApprovalRequired).
			Msg("clinic inventory server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	if kafka != nil {
		if err := kafka.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing kafka writer")
		}
	}
	logger.Info().Msg("server stopped")
	return nil
}
