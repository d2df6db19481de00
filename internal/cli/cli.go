// Package cli implements the insight command line: batch runs, single
// stage commands, ad-hoc predictions and the background monitor.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Isaadqurashi/mlops-project/config"
	"github.com/Isaadqurashi/mlops-project/internal/artifact"
	"github.com/Isaadqurashi/mlops-project/internal/features"
	"github.com/Isaadqurashi/mlops-project/internal/ingest"
	"github.com/Isaadqurashi/mlops-project/internal/logger"
	"github.com/Isaadqurashi/mlops-project/internal/metrics"
	"github.com/Isaadqurashi/mlops-project/internal/model"
	"github.com/Isaadqurashi/mlops-project/internal/monitor"
	"github.com/Isaadqurashi/mlops-project/internal/notification"
	"github.com/Isaadqurashi/mlops-project/internal/pipeline"
	"github.com/Isaadqurashi/mlops-project/internal/predict"
	"github.com/Isaadqurashi/mlops-project/internal/trainer"
)

// app carries state shared by all commands once the config is loaded.
type app struct {
	cfgFile  string
	logLevel string
	cfg      *config.Config
}

func (a *app) store() *artifact.Store {
	return artifact.NewStore(a.cfg.ModelsDir, a.cfg.ReportsDir)
}

func (a *app) builder() *features.Builder {
	return features.NewBuilder(a.cfg.Features)
}

func (a *app) trainer() *trainer.Trainer {
	return trainer.New(a.cfg.Trainer, a.cfg.Features, a.store())
}

func (a *app) fetcher() *ingest.Fetcher {
	return ingest.NewFetcher(ingest.NewSource(a.cfg.Ingest), a.cfg.Ingest, a.cfg.RawDir)
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "insight",
		Short: "Stock insight pipeline",
		Long: `insight downloads daily prices, builds technical features, trains
price, direction, regime and PCA models per ticker, and monitors live
prices for large expected moves.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.cfgFile)
			if err != nil {
				return err
			}
			if a.logLevel != "" {
				cfg.Log.Level = a.logLevel
			}
			if err := logger.Init(cfg.Log); err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level")

	rootCmd.AddCommand(newRunCmd(a))
	rootCmd.AddCommand(newProcessCmd(a))
	rootCmd.AddCommand(newTrainCmd(a))
	rootCmd.AddCommand(newPredictCmd(a))
	rootCmd.AddCommand(newSymbolsCmd(a))
	rootCmd.AddCommand(newMonitorCmd(a))
	return rootCmd
}

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run [SYMBOL...]",
		Short: "Run fetch, process and train for tickers",
		Long: `Run the full batch for the given tickers, or for every configured
ticker when none is given. A failing ticker does not stop the batch.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m := metrics.New()
			p := pipeline.New(pipeline.Options{
				Fetcher:      a.fetcher(),
				Builder:      a.builder(),
				Trainer:      a.trainer(),
				Notifier:     notification.New(a.cfg.Notify),
				Metrics:      m,
				ProcessedDir: a.cfg.ProcessedDir,
				ReportsDir:   a.cfg.ReportsDir,
				Defaults:     a.cfg.AllTickers(),
			})
			sum, err := p.Run(cmd.Context(), upper(args))
			if sum != nil {
				fmt.Fprintln(cmd.OutOrStdout(), sum.Text())
				for _, f := range sum.Failed {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s failed at %s: %s\n", f.Symbol, f.Stage, f.Err)
				}
			}
			return err
		},
	}
}

func newProcessCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "process RAW_CSV",
		Short: "Build the feature table of a raw price file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := out
			if path == "" {
				path = filepath.Join(a.cfg.ProcessedDir, features.SymbolFromPath(args[0])+"_processed.csv")
			}
			table, err := a.builder().Process(args[0], path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows written to %s\n", table.Symbol, table.Len(), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default <processed_dir>/<SYMBOL>_processed.csv)")
	return cmd
}

func newTrainCmd(a *app) *cobra.Command {
	var symbol string
	cmd := &cobra.Command{
		Use:   "train PROCESSED_CSV",
		Short: "Train and save all models from a feature table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := features.ReadTableFile(args[0])
			if err != nil {
				return err
			}
			if symbol != "" {
				table.Symbol = strings.ToUpper(symbol)
			}
			res, err := a.trainer().Run(cmd.Context(), table)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res.Metrics)
		},
	}
	cmd.Flags().StringVarP(&symbol, "symbol", "s", "", "ticker (default derived from the file name)")
	return cmd
}

func newPredictCmd(a *app) *cobra.Command {
	var raw string
	cmd := &cobra.Command{
		Use:   "predict SYMBOL",
		Short: "Predict the next close of a trained ticker",
		Long: `Predict the next close, direction, regime and PCA projection of a
ticker from recent prices. Prices are downloaded unless --raw names a
local price file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbol := strings.ToUpper(args[0])
			p, err := predict.Load(a.store(), symbol, a.builder())
			if err != nil {
				return err
			}
			p.RegimeWindow = a.cfg.Trainer.RegimeWindow

			var bars []model.Bar
			if raw != "" {
				bars, err = features.ReadBarsFile(raw)
			} else {
				bars, err = a.fetcher().Recent(cmd.Context(), symbol, a.cfg.Monitor.LookbackDays)
			}
			if err != nil {
				return err
			}
			pred, err := p.Predict(bars)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), pred)
		},
	}
	cmd.Flags().StringVar(&raw, "raw", "", "read prices from this CSV instead of the provider")
	return cmd
}

func newSymbolsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "symbols",
		Short: "List tickers with trained models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			symbols, err := a.store().Symbols()
			if err != nil {
				return err
			}
			for _, s := range symbols {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", s, a.cfg.DisplayName(s))
			}
			return nil
		},
	}
}

func newMonitorCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Check trained tickers on a schedule and send alerts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m := metrics.New()
			health := metrics.NewHealthStatus()

			if addr == "" {
				addr = a.cfg.MetricsAddr
			}
			srv := metrics.NewServer(addr, m, health)
			srv.Start()

			mon := monitor.New(a.cfg.Monitor, a.store(), a.builder(), a.fetcher(),
				notification.New(a.cfg.Notify), m, health, a.cfg.Names)
			if err := mon.Start(ctx); err != nil {
				return err
			}

			<-ctx.Done()
			log.Info().Msg("shutting down monitor")
			mon.Stop()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Stop(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "metrics-addr", "", "serve /metrics and /healthz on this address (default from config)")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func upper(symbols []string) []string {
	out := make([]string, len(symbols))
	for i, s := range symbols {
		out[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	return out
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
