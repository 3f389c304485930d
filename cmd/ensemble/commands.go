package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/config"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/store"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/workflow"
)

func (a *app) runner(progress bool) (*workflow.Runner, error) {
	opts := []workflow.Option{workflow.WithOutput(a.out)}
	if progress {
		opts = append(opts, workflow.WithProgress(&barProgress{w: a.out}))
	}
	return workflow.New(a.cfg, opts...)
}

func (a *app) trainCmd() *cobra.Command {
	var noProgress bool
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Preprocess the raw dataset, train every configured model and compare them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := a.runner(!noProgress)
			if err != nil {
				return err
			}
			summary, err := r.Train(cmd.Context())
			if summary != nil && len(summary.Failed) > 0 {
				names := make([]string, 0, len(summary.Failed))
				for name := range summary.Failed {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Fprintf(a.out, "training failed for %s: %v\n", name, summary.Failed[name])
				}
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "\nSelected features (%d): %v\n", len(summary.Features), summary.Features)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "hide the progress bar")
	return cmd
}

func (a *app) evaluateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate the saved models on the processed test split",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := a.runner(false)
			if err != nil {
				return err
			}
			_, err = r.EvaluateSaved(cmd.Context())
			return err
		},
	}
}

func (a *app) predictCmd() *cobra.Command {
	var (
		modelName string
		n         int
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict the first test samples with a saved model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := a.runner(false)
			if err != nil {
				return err
			}
			sample, err := r.PredictExample(cmd.Context(), modelName, n)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(sample)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&modelName, "model", "m", "", "configured model name (required)")
	cmd.Flags().IntVarP(&n, "samples", "n", 5, "number of test samples")
	cmd.Flags().BoolVar(&asJSON, "json", false, "also print the predictions as JSON")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

func (a *app) learningCurveCmd() *cobra.Command {
	var modelName string
	cmd := &cobra.Command{
		Use:   "learning-curve",
		Short: "Compute the cross-validated learning curve of a model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := a.runner(false)
			if err != nil {
				return err
			}
			_, err = r.LearningCurves(cmd.Context(), modelName)
			return err
		},
	}
	cmd.Flags().StringVarP(&modelName, "model", "m", "", "configured model name (required)")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

func (a *app) runsCmd() *cobra.Command {
	var (
		limit int
		best  string
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded training runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := store.Open(a.cfg.Store.Path)
			if err != nil {
				return err
			}
			defer s.Close()

			var runs []store.Run
			if best != "" {
				run, err := s.BestRun(cmd.Context(), best)
				if err != nil {
					return err
				}
				runs = []store.Run{run}
			} else if runs, err = s.ListRuns(cmd.Context(), limit); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "id\ttrained_at\tmodel\taccuracy\tf1_score\tdataset")
			for _, r := range runs {
				id := r.ID
				if len(id) > 8 {
					id = id[:8]
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%.4f\t%.4f\t%s\n",
					id, r.TrainedAt.Local().Format("2006-01-02 15:04"), r.ModelName, r.Accuracy, r.F1Score, r.Dataset)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs (0 = all)")
	cmd.Flags().StringVar(&best, "best", "", "show only the best run by this metric")
	return cmd
}

func (a *app) initConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config <path>",
		Short: "Write the default configuration to a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Default().Save(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "configuration written to %s\n", args[0])
			return nil
		},
	}
}
