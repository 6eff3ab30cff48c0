package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"bluff-lite/apps/server/internal/app"
	"bluff-lite/apps/server/internal/config"
)

var log = logrus.WithField("component", "server")

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:          "bluffd",
		Short:        "Decision service for the bluff card game AI",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file")

	load := func() (config.Config, error) {
		cfg, err := config.Load(envFile)
		if err != nil {
			return cfg, err
		}
		cfg.ConfigureLogging()
		return cfg, nil
	}

	root.AddCommand(serveCmd(load), progressCmd(load), historyCmd(load))
	return root
}

func serveCmd(load func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the decision and monitoring APIs, metrics and the live decision feed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.Build(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := &http.Server{
				Addr:              cfg.ListenAddr,
				Handler:           a.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				log.WithField("addr", cfg.ListenAddr).Info("listening")
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
			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func progressCmd(load func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "progress",
		Short: "Print policy learning progress from the store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			a, err := app.Build(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return printJSON(cmd, a.Decider.LearningProgress())
		},
	}
}

func historyCmd(load func() (config.Config, error)) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recent decision records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			a, err := app.Build(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return printJSON(cmd, map[string]any{
				"performance": a.Decider.PerformanceSnapshot(),
				"decisions":   a.Decider.RecentDecisions(limit),
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of records")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
