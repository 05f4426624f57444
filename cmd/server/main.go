// Command agroadmin serves the registry API and its edit-form sessions.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agrodata/agroadmin/internal/config"
	"github.com/agrodata/agroadmin/internal/logging"
	"github.com/agrodata/agroadmin/internal/seed"
	"github.com/agrodata/agroadmin/internal/server"
)

var (
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "agroadmin",
	Short:         "Agricultural registry administration server",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return err
		}
		zap.ReplaceGlobals(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := build(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer app.Close()

		go app.sessions.Run(ctx, cfg.GetCleanupInterval())
		return server.Run(ctx, server.Config{
			Port:            cfg.Server.Port,
			ShutdownTimeout: cfg.GetShutdownTimeout(),
			Handler:         app.router,
			Logger:          logger,
		})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, closeFn, err := openRepository(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer closeFn()
		logger.Info("database migrated", zap.String("driver", cfg.Database.Driver))
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo products, activities, profiles and a producer",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, closeFn, err := openRepository(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer closeFn()
		res, err := seed.Seed(cmd.Context(), repo, logger)
		if err != nil {
			return err
		}
		if res != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "admin=%s technician=%s producer=%s\n", res.Admin, res.Technician, res.Producer)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "agroadmin:", err)
		os.Exit(1)
	}
}
