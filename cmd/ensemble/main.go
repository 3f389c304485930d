// Command ensemble trains, evaluates and compares multiclass classifiers on
// a tabular dataset.
//
//	ensemble train --config ensemble.yaml
//	ensemble evaluate
//	ensemble predict --model "Random Forest" -n 5
//	ensemble learning-curve --model "Gradient Boosting"
//	ensemble runs --limit 10
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/config"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/log"
)

// app は全コマンドで共有する状態
type app struct {
	configPath string
	root       string
	logLevel   string
	logFormat  string
	noPlots    bool

	cfg *config.Config
	out io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	root := &cobra.Command{
		Use:   "ensemble",
		Short: "Multiclass classification with ensemble models",
		Long: `ensemble runs a tabular classification workflow:

  raw CSV -> preprocessing (variance filter, scaling, K-best selection)
          -> models (random forest, extra trees, gradient boosting, ...)
          -> evaluation and comparison -> plots, JSON results, run log`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(out)
	root.SetErr(out)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "YAML configuration file (default: built-in defaults)")
	flags.StringVar(&a.root, "root", "", "project root for relative paths (default: config file directory)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&a.logFormat, "log-format", "", "log format: json or console")
	flags.BoolVar(&a.noPlots, "no-plots", false, "do not write plots")

	root.AddCommand(
		a.trainCmd(),
		a.evaluateCmd(),
		a.predictCmd(),
		a.learningCurveCmd(),
		a.runsCmd(),
		a.initConfigCmd(),
	)
	return root
}

// setup は設定を読み込み、パスを解決し、ロガーを初期化する
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "init-config" {
		return nil
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Logging.Format = a.logFormat
	}
	if a.noPlots {
		cfg.Evaluation.Plots = false
	}
	if err := cfg.ResolvePaths(a.root); err != nil {
		return err
	}
	if err := log.SetupLogger(cfg.LogOptions()); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	ctx, cancel := signalContext()
	defer cancel()
	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
