package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"NewsSum/internal/app"
	"NewsSum/internal/config"
	"NewsSum/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:           "newsum",
		Short:         "News headline ingestion and summary API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(serveCmd(), ingestCmd(), migrateCmd(), jobsCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "newsum:", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the ingestion scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

			application, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.Serve(cmd.Context()); err != nil {
				logger.Error("application stopped", "error", err)
				return err
			}
			return nil
		},
	}
}

func ingestCmd() *cobra.Command {
	var job string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run one ingestion job now and print its counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

			name, err := app.ResolveJob(cfg, job)
			if err != nil {
				return err
			}

			application, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			report, err := application.Ingest(cmd.Context(), name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "job=%s processed=%d added=%d skipped=%d took=%s\n",
				report.Job, report.Processed, report.Added, report.Skipped,
				report.Finished.Sub(report.Started).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVar(&job, "job", "", "job name (defaults to the first configured job)")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			return app.Migrate(cmd.Context(), cfg, logging.New(cfg.Logging.Level, cfg.Logging.Format))
		},
	}
}

func jobsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List configured ingestion jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			for _, j := range cfg.AllJobs() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-36s %-9s %-14s %-20s window=%s grace=%s\n",
					j.Name, j.Source, j.Cron, j.Timezone, j.Window, j.MisfireGrace)
			}
			return nil
		},
	}
}
