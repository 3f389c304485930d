package workflow

import (
	"context"
	"fmt"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/config"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/dataset"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/model_selection"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/models"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/report"
)

// LearningCurves computes curves with a default Runner.
func LearningCurves(ctx context.Context, cfg *config.Config, modelName string) (*model_selection.LearningCurveResult, error) {
	r, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return r.LearningCurves(ctx, modelName)
}

// LearningCurves computes the learning curve of modelName on the processed
// training split with stratified k-fold CV, prints it and saves the plot.
func (r *Runner) LearningCurves(ctx context.Context, modelName string) (*model_selection.LearningCurveResult, error) {
	m, ok := r.cfg.Model(modelName)
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnknownModel, "model %q is not configured", modelName)
	}
	factory, err := models.Factory(m.Kind, m.Params)
	if err != nil {
		return nil, err
	}
	p, err := dataset.LoadProcessed(r.cfg.Paths.Processed)
	if err != nil {
		return nil, err
	}

	ev := r.cfg.Evaluation
	cv := model_selection.NewStratifiedKFold(ev.CVFolds, true, r.cfg.Split.RandomState)
	curve, err := model_selection.LearningCurve(ctx, factory, p.XTrain, dataset.LabelColumn(p.YTrain), cv,
		model_selection.WithTrainSizes(model_selection.DefaultTrainSizes(ev.CurvePoints)),
		model_selection.WithCurveShuffle(r.cfg.Split.RandomState),
	)
	if err != nil {
		return nil, err
	}

	r.heading("LEARNING CURVES - " + m.Name)
	trainMean, trainStd := curve.TrainMean(), curve.TrainStd()
	valMean, valStd := curve.ValidationMean(), curve.ValidationStd()
	r.printf("%10s  %18s  %18s\n", "size", "training", "validation")
	for i, size := range curve.TrainSizes {
		r.printf("%10d  %18s  %18s\n", size,
			fmt.Sprintf("%.4f ± %.4f", trainMean[i], trainStd[i]),
			fmt.Sprintf("%.4f ± %.4f", valMean[i], valStd[i]))
	}

	if ev.Plots {
		if err := report.PlotLearningCurves(curve, r.cfg.PlotPath("learning_curves_"+models.Slug(m.Name))); err != nil {
			return nil, err
		}
	}
	return curve, nil
}
