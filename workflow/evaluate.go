package workflow

import (
	"context"
	"os"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/config"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/dataset"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/evaluation"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/models"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/log"
)

// EvaluateSaved evaluates saved models with a default Runner.
func EvaluateSaved(ctx context.Context, cfg *config.Config) (*evaluation.Comparison, error) {
	r, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return r.EvaluateSaved(ctx)
}

// EvaluateSaved loads the processed test split and every configured model
// that has been saved, evaluates them and reports the best one. Models
// without a saved bundle are skipped. ErrNoModels is returned when none is found.
func (r *Runner) EvaluateSaved(ctx context.Context) (*evaluation.Comparison, error) {
	r.heading("MULTICLASS CLASSIFICATION - SAVED MODEL EVALUATION")

	p, err := dataset.LoadProcessed(r.cfg.Paths.Processed)
	if err != nil {
		return nil, err
	}
	_, nFeatures := p.XTrain.Dims()
	r.printf("\n1. Processed data loaded: %d training samples, %d features\n", len(p.YTrain), nFeatures)
	r.printf("2. Classes (%d): %v\n", len(p.ClassNames), p.ClassNames)
	r.printf("\n3. Evaluating saved models...\n")

	ev := r.evaluator()
	yTest := dataset.LabelColumn(p.YTest)
	var results []evaluation.Result
	for _, m := range r.cfg.Models {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := models.BundlePath(r.cfg.Paths.Models, m.Name)
		if _, err := os.Stat(path); err != nil {
			r.printf("   model not found: %s\n", path)
			r.logger.Warn("Saved model not found", log.ModelNameKey, m.Name, log.PathKey, path)
			continue
		}
		b, err := r.cache.Load(path)
		if err != nil {
			return nil, err
		}
		classNames := p.ClassNames
		if classNames == nil {
			classNames = b.Metadata.ClassNames
		}

		r.printf("\n   Evaluating %s...\n", m.Name)
		res, err := ev.Evaluate(m.Name, b.Model, p.XTest, yTest, classNames)
		if err != nil {
			return nil, err
		}
		results = append(results, *res)
	}

	if len(results) == 0 {
		r.printf("\nNo trained models found. Run the train command first.\n")
		return nil, ErrNoModels
	}
	r.printf("\n4. Comparing results...\n")
	return r.report(results)
}
