// Package main provides the indexer binary: it builds an artifact store from
// a directory of packages and queries built stores.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/GonzoDMX/artifact-index/internal/api"
	"github.com/GonzoDMX/artifact-index/internal/config"
	"github.com/GonzoDMX/artifact-index/internal/ingest"
	"github.com/GonzoDMX/artifact-index/internal/packages"
	"github.com/GonzoDMX/artifact-index/internal/store"
)

const appName = "indexer"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Build and query artifact stores",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		buildCmd(&logLevel),
		inspectCmd(),
		searchCmd(),
		serveCmd(&logLevel),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (schema %s)\n",
					appName, config.CurrentDefaults.AppVersion, config.CurrentDefaults.Store.SchemaVersion)
			},
		},
	)
	return cmd
}

func newLogger(w io.Writer, level string) *slog.Logger {
	l := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

// ---------------------------------------------------------
// build
// ---------------------------------------------------------

func buildCmd(logLevel *string) *cobra.Command {
	var configPath string
	flags := config.RunConfig{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Index every package in a directory into a fresh store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultRunConfig()
			if configPath != "" {
				loaded, err := config.LoadFromFile(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			// Flags win over the file
			f := cmd.Flags()
			if f.Changed("packages") {
				cfg.Packages = flags.Packages
			}
			if f.Changed("output") {
				cfg.Output = flags.Output
			}
			if f.Changed("report") {
				cfg.Report = flags.Report
			}
			if f.Changed("metrics-file") {
				cfg.Metrics = flags.Metrics
			}
			if f.Changed("log-level") {
				cfg.LogLevel = *logLevel
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sum, err := build(ctx, cfg, newLogger(cmd.ErrOrStderr(), cfg.LogLevel))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d packages, %d resources written to %s\n",
				sum.Packages, sum.Resources, cfg.Output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Run config file (YAML)")
	cmd.Flags().StringVar(&flags.Packages, "packages", "", "Directory of .tgz packages or unpacked package folders")
	cmd.Flags().StringVarP(&flags.Output, "output", "o", "", "Store file to create (replaced if present)")
	cmd.Flags().StringVar(&flags.Report, "report", "", "Write the run summary as YAML to this file")
	cmd.Flags().StringVar(&flags.Metrics, "metrics-file", "", "Write run counters in Prometheus text format to this file")
	return cmd
}

func build(ctx context.Context, cfg *config.RunConfig, logger *slog.Logger) (ingest.RunSummary, error) {
	// 1. Open the run
	reg := prometheus.NewRegistry()
	c, err := ingest.Open(cfg.Output, time.Now().UTC(),
		ingest.WithLogger(logger),
		ingest.WithRegisterer(reg),
		ingest.WithExcludedPackages(cfg.Exclude),
	)
	if err != nil {
		return ingest.RunSummary{}, err
	}
	defer c.Close()

	// 2. Feed every package through it
	stats, err := packages.NewWalker(c, logger).Walk(ctx, cfg.Packages)
	if err != nil {
		return ingest.RunSummary{}, fmt.Errorf("run %s abandoned: %w", c.RunID(), err)
	}
	logger.Info("Packages read",
		slog.Int("packages", stats.Packages),
		slog.Int("revisited", stats.Revisited),
		slog.Int("unreadable", stats.Unreadable),
		slog.Int("artifacts", stats.Artifacts))

	// 3. Summary rows
	sum, err := c.Finish()
	if err != nil {
		return sum, err
	}

	// 4. Optional outputs
	if cfg.Report != "" {
		if err := writeReport(cfg.Report, sum); err != nil {
			return sum, err
		}
	}
	if cfg.Metrics != "" {
		if err := prometheus.WriteToTextfile(cfg.Metrics, reg); err != nil {
			return sum, fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return sum, nil
}

func writeReport(path string, sum ingest.RunSummary) error {
	data, err := yaml.Marshal(sum)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// ---------------------------------------------------------
// inspect
// ---------------------------------------------------------

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <store>",
		Short: "Print the stamped state, compatibility and row counts of a store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := store.Open(args[0])
			if err != nil {
				return err
			}
			defer m.Close()

			state, err := m.ReadState()
			if err != nil {
				return err
			}
			status, issues := config.CheckCompatibility(state)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run:        %s (%s)\n", state.RunID, state.Date)
			fmt.Fprintf(out, "built by:   %s, schema %s\n", state.AppVersion, state.SchemaVersion)
			fmt.Fprintf(out, "status:     %s\n", status)
			for _, issue := range issues {
				fmt.Fprintf(out, "  - %s\n", issue)
			}
			for _, table := range []string{"Packages", "Resources", "Categories", "Realms", "Authorities"} {
				n, err := m.Count(table)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%-12s%d\n", strings.ToLower(table)+":", n)
			}
			return nil
		},
	}
}

// ---------------------------------------------------------
// search
// ---------------------------------------------------------

func searchCmd() *cobra.Command {
	var (
		limit int
		codes bool
	)

	cmd := &cobra.Command{
		Use:   "search <store> <query>",
		Short: "Full text search over artifacts, or over code system concepts with --codes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := store.Open(args[0])
			if err != nil {
				return err
			}
			defer m.Close()

			out := cmd.OutOrStdout()
			if codes {
				hits, err := m.SearchCodes(args[1], limit)
				if err != nil {
					return err
				}
				for _, h := range hits {
					fmt.Fprintf(out, "%s\t%s\t%s\n", h.URL, h.Code, h.Display)
				}
				return nil
			}

			hits, err := m.SearchResources(args[1], limit)
			if err != nil {
				return err
			}
			for _, h := range hits {
				fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", h.Package, h.Type, h.URL, h.Title)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of hits")
	cmd.Flags().BoolVar(&codes, "codes", false, "Search code system concepts instead of artifacts")
	return cmd
}

// ---------------------------------------------------------
// serve
// ---------------------------------------------------------

func serveCmd(logLevel *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve <store>",
		Short: "Serve read-only search and content lookups over HTTP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(cmd.ErrOrStderr(), *logLevel)

			m, err := store.Open(args[0])
			if err != nil {
				return err
			}
			defer m.Close()

			state, err := m.ReadState()
			if err != nil {
				return err
			}
			if status, issues := config.CheckCompatibility(state); status == config.StatusIncompatible {
				for _, issue := range issues {
					logger.Warn("Store check", slog.String("issue", issue))
				}
			}

			mux := http.NewServeMux()
			api.NewHandlers(m, logger).Register(mux)

			server := &http.Server{
				Addr:         addr,
				Handler:      api.MiddlewareChain(mux, logger),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 30 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("Server starting", slog.String("addr", addr), slog.String("store", m.Path()))
				errCh <- server.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			logger.Info("Server stopping")
			return server.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	return cmd
}
