package workflow

import (
	"path/filepath"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/dataset"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/evaluation"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/models"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/log"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/report"
)

// ResultsFile is the JSON file holding the latest evaluation results.
const ResultsFile = "results.json"

// report ranks results, prints the comparison and writes the results JSON
// and the comparison chart.
func (r *Runner) report(results []evaluation.Result) (*evaluation.Comparison, error) {
	c, err := evaluation.NewComparison(results, r.cfg.Evaluation.Metric)
	if err != nil {
		return nil, err
	}
	r.printComparison(c)

	if err := report.SaveResults(c, filepath.Join(r.cfg.Paths.Results, ResultsFile)); err != nil {
		return nil, err
	}
	if r.cfg.Evaluation.Plots {
		path := r.cfg.PlotPath("model_comparison_" + c.Metric)
		if err := report.CompareModels(c.Results, c.Metric, path); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// plotModel は混同行列と特徴量重要度のグラフを保存する
func (r *Runner) plotModel(name string, clf any, res *evaluation.Result, p *dataset.Processed) error {
	slug := models.Slug(name)
	classes := evaluation.TargetNames(res.Labels, p.ClassNames)
	if err := report.PlotConfusionMatrix(res.ConfusionMatrix, classes, "Confusion Matrix - "+name,
		r.cfg.PlotPath("confusion_matrix_"+slug)); err != nil {
		return err
	}

	imp, err := report.FeatureImportances(clf)
	if errors.Is(err, report.ErrNoFeatureImportances) {
		r.logger.Debug("No feature importances", log.ModelNameKey, name)
		return nil
	}
	if err != nil {
		return err
	}
	return report.PlotFeatureImportance(imp, p.FeatureNames, r.cfg.Evaluation.TopFeatures,
		"Feature Importance - "+name, r.cfg.PlotPath("feature_importance_"+slug))
}
