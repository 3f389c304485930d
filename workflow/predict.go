package workflow

import (
	"context"
	"strings"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/config"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/dataset"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/models"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/log"
)

// Prediction is one decoded test sample.
type Prediction struct {
	Predicted string `json:"predicted"`
	Actual    string `json:"actual"`
	Correct   bool   `json:"correct"`
}

// PredictionSample is the outcome of PredictExample.
type PredictionSample struct {
	ModelName   string       `json:"model_name"`
	Predictions []Prediction `json:"predictions"`
	Accuracy    float64      `json:"accuracy"`
}

// PredictExample predicts with a default Runner.
func PredictExample(ctx context.Context, cfg *config.Config, modelName string, n int) (*PredictionSample, error) {
	r, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return r.PredictExample(ctx, modelName, n)
}

// PredictExample predicts the first n test samples with the saved model
// modelName and prints predicted against actual class names.
func (r *Runner) PredictExample(ctx context.Context, modelName string, n int) (*PredictionSample, error) {
	if n <= 0 {
		return nil, errors.NewValidationError("n", "must be positive", n)
	}
	m, ok := r.cfg.Model(modelName)
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnknownModel, "model %q is not configured", modelName)
	}
	b, err := r.cache.Load(models.BundlePath(r.cfg.Paths.Models, m.Name))
	if err != nil {
		return nil, errors.Wrapf(err, "model %q has not been trained", m.Name)
	}
	p, err := dataset.LoadProcessed(r.cfg.Paths.Processed)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n = min(n, len(p.YTest))
	if n == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "processed test split has no samples")
	}
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	sub := (&dataset.Dataset{X: p.XTest}).Subset(rows)

	pred, err := b.Model.Predict(sub.X)
	if err != nil {
		return nil, err
	}
	predicted, err := b.Decode(pred)
	if err != nil {
		return nil, err
	}
	actual, err := b.Decode(dataset.LabelColumn(p.YTest[:n]))
	if err != nil {
		return nil, err
	}

	out, err := newPredictionSample(m.Name, predicted, actual)
	if err != nil {
		return nil, err
	}

	r.heading("PREDICTION EXAMPLE - " + m.Name)
	r.printf("\nPredicted vs actual:\n%s\n", strings.Repeat("-", 40))
	for i, pr := range out.Predictions {
		status := "✗"
		if pr.Correct {
			status = "✓"
		}
		r.printf("%s Sample %d: predicted=%s, actual=%s\n", status, i+1, pr.Predicted, pr.Actual)
	}
	r.printf("\nSample accuracy: %.2f%%\n", out.Accuracy*100)

	r.logger.Info("Prediction example",
		log.ModelNameKey, m.Name,
		log.PhaseKey, log.PhaseInference,
		log.SamplesKey, n,
		log.AccuracyKey, out.Accuracy,
	)
	return out, nil
}

// newPredictionSample pairs decoded predictions with the actual class names.
// An empty sample is ErrEmptyData rather than a NaN accuracy.
func newPredictionSample(modelName string, predicted, actual []string) (*PredictionSample, error) {
	if len(predicted) != len(actual) {
		return nil, errors.NewDimensionError("workflow.PredictExample", len(actual), len(predicted), 0)
	}
	if len(actual) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "no samples to predict")
	}
	out := &PredictionSample{ModelName: modelName, Predictions: make([]Prediction, len(actual))}
	correct := 0
	for i := range actual {
		ok := predicted[i] == actual[i]
		out.Predictions[i] = Prediction{Predicted: predicted[i], Actual: actual[i], Correct: ok}
		if ok {
			correct++
		}
	}
	out.Accuracy = float64(correct) / float64(len(actual))
	return out, nil
}
