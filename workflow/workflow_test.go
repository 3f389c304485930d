package workflow

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/config"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/core/model"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/dataset"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/evaluation"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/models"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/log"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/store"
)

// writeDataset は3クラスの分類用CSVを書き出す
func writeDataset(t *testing.T, path string) {
	t.Helper()
	rng := rand.New(rand.NewPCG(7, 7))
	classes := []string{"Normal", "Obese", "Overweight"}
	colors := []string{"red", "green"}

	var b strings.Builder
	b.WriteString("id,f0,f1,f2,const,color,label\n")
	for i := 0; i < 120; i++ {
		c := i % 3
		fmt.Fprintf(&b, "%d,%.4f,%.4f,%.4f,5,%s,%s\n", i,
			float64(c)*2+rng.NormFloat64()*0.4,
			-float64(c)+rng.NormFloat64()*0.4,
			rng.NormFloat64(),
			colors[rng.IntN(2)],
			classes[c])
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Dataset = config.DatasetConfig{File: "data.csv", Target: "label", Drop: []string{"id"}}
	cfg.Preprocessing.KBest = 3
	cfg.Split.TestSize = 0.25
	cfg.Models = []config.ModelConfig{
		{Name: "Random Forest", Kind: models.KindRandomForest, Params: map[string]interface{}{"n_estimators": 15, "random_state": 1}},
		{Name: "Gradient Boosting", Kind: models.KindGradientBoosting, Params: map[string]interface{}{"n_estimators": 15}},
		{Name: "Logistic Regression", Kind: models.KindLogisticRegression},
	}
	cfg.Evaluation.CVFolds = 3
	cfg.Evaluation.CurvePoints = 3
	require.NoError(t, cfg.ResolvePaths(root))
	writeDataset(t, cfg.DatasetPath())
	return cfg
}

type countingProgress struct{ started, done, finished int }

func (p *countingProgress) Start(total int) { p.started = total }
func (p *countingProgress) Increment()      { p.done++ }
func (p *countingProgress) Finish()         { p.finished++ }

func TestWorkflowEndToEnd(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	var out bytes.Buffer
	progress := &countingProgress{}

	r, err := New(cfg, WithOutput(&out), WithProgress(progress))
	require.NoError(t, err)

	summary, err := r.Train(ctx)
	require.NoError(t, err)
	assert.Empty(t, summary.Failed)
	assert.Equal(t, []string{"Normal", "Obese", "Overweight"}, summary.ClassNames)
	assert.Len(t, summary.Features, 3)
	assert.NotContains(t, summary.Features, "const")
	assert.Equal(t, 3, progress.started)
	assert.Equal(t, 3, progress.done)
	assert.Equal(t, 1, progress.finished)

	require.Len(t, summary.Comparison.Results, 3)
	best, ok := summary.Comparison.Best()
	require.True(t, ok)
	assert.Greater(t, best.Accuracy, 0.8)
	assert.Contains(t, out.String(), "EVALUATION METRICS")
	assert.Contains(t, out.String(), "BEST MODEL: "+best.ModelName)

	for _, path := range []string{
		filepath.Join(cfg.Paths.Models, PreprocessorFile),
		filepath.Join(cfg.Paths.Processed, dataset.XTrainFile),
		filepath.Join(cfg.Paths.Processed, dataset.YTestFile),
		models.BundlePath(cfg.Paths.Models, "Random Forest"),
		filepath.Join(cfg.Paths.Results, ResultsFile),
		cfg.PlotPath("model_comparison_accuracy"),
		cfg.PlotPath("confusion_matrix_logistic_regression"),
		cfg.PlotPath("feature_importance_random_forest"),
		cfg.PlotPath("feature_importance_logistic_regression"),
	} {
		assert.FileExists(t, path)
	}

	s, err := store.Open(cfg.Store.Path)
	require.NoError(t, err)
	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.Len(t, runs, 3)
	assert.Len(t, summary.RunIDs, 3)

	t.Run("evaluate saved", func(t *testing.T) {
		out.Reset()
		c, err := r.EvaluateSaved(ctx)
		require.NoError(t, err)
		assert.Len(t, c.Results, 3)
		assert.Contains(t, out.String(), "Classification Report:")

		require.NoError(t, os.Remove(models.BundlePath(cfg.Paths.Models, "Gradient Boosting")))
		out.Reset()
		c, err = r.EvaluateSaved(ctx)
		require.NoError(t, err)
		assert.Len(t, c.Results, 2)
		assert.Contains(t, out.String(), "model not found")
	})

	t.Run("predict example", func(t *testing.T) {
		out.Reset()
		sample, err := r.PredictExample(ctx, "random forest", 5)
		require.NoError(t, err)
		require.Len(t, sample.Predictions, 5)
		for _, p := range sample.Predictions {
			assert.Contains(t, summary.ClassNames, p.Predicted)
			assert.Contains(t, summary.ClassNames, p.Actual)
		}
		assert.Contains(t, out.String(), "Sample accuracy:")

		_, err = r.PredictExample(ctx, "xgboost", 5)
		assert.True(t, errors.Is(err, errors.ErrUnknownModel))
		_, err = r.PredictExample(ctx, "Random Forest", 0)
		assert.Error(t, err)
		_, err = r.PredictExample(ctx, "Gradient Boosting", 5)
		assert.Error(t, err, "bundle was removed")
	})

	t.Run("learning curves", func(t *testing.T) {
		curve, err := r.LearningCurves(ctx, "Logistic Regression")
		require.NoError(t, err)
		assert.Len(t, curve.TrainSizes, 3)
		assert.FileExists(t, cfg.PlotPath("learning_curves_logistic_regression"))
		for _, v := range curve.ValidationMean() {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	})
}

func TestEvaluateSavedWithoutModels(t *testing.T) {
	cfg := testConfig(t)

	_, err := EvaluateSaved(context.Background(), cfg)
	assert.Error(t, err, "processed data is missing")

	p := &dataset.Processed{}
	ds, err := dataset.LoadCSV(cfg.DatasetPath(), dataset.CSVOptions{Target: "label", Drop: []string{"id"}})
	require.NoError(t, err)
	p.XTrain, p.XTest = ds.X, ds.X
	p.YTrain = make([]int, len(ds.Target))
	p.YTest = p.YTrain
	require.NoError(t, dataset.SaveProcessed(cfg.Paths.Processed, p))

	_, err = EvaluateSaved(context.Background(), cfg)
	assert.True(t, errors.Is(err, ErrNoModels))
}

func TestTrainCancelled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Evaluation.Plots = false
	cfg.Store.Enabled = false

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Train(ctx, cfg)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Models = nil
	_, err := New(cfg)
	assert.Error(t, err)
}

// brokenFit は学習時にだけ失敗する分類器
type brokenFit struct {
	model.Classifier
	panics bool
}

var errFitBroken = errors.New("fit broken")

func (b brokenFit) Fit(X, y mat.Matrix) error {
	if b.panics {
		panic("index out of range")
	}
	return errFitBroken
}

func TestTrainReportsFailedModel(t *testing.T) {
	tests := []struct {
		name   string
		panics bool
		check  func(t *testing.T, err error)
	}{
		{"fit returns error", false, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, errFitBroken)
		}},
		{"fit panics", true, func(t *testing.T, err error) {
			var pe *errors.PanicError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, "Logistic Regression.Fit", pe.Operation)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Evaluation.Plots = false
			cfg.Store.Enabled = false
			factory := func(kind string, params map[string]interface{}) (model.Classifier, error) {
				clf, err := models.New(kind, params)
				if err != nil || kind != models.KindLogisticRegression {
					return clf, err
				}
				return brokenFit{Classifier: clf, panics: tt.panics}, nil
			}
			progress := &countingProgress{}

			r, err := New(cfg, WithModelFactory(factory), WithProgress(progress))
			require.NoError(t, err)
			summary, err := r.Train(context.Background())
			require.NoError(t, err)

			require.Len(t, summary.Failed, 1)
			tt.check(t, summary.Failed["Logistic Regression"])
			assert.Equal(t, 3, progress.done)

			require.Len(t, summary.Comparison.Results, 2)
			for _, res := range summary.Comparison.Results {
				assert.NotEqual(t, "Logistic Regression", res.ModelName)
			}
			assert.FileExists(t, models.BundlePath(cfg.Paths.Models, "Random Forest"))
			assert.FileExists(t, models.BundlePath(cfg.Paths.Models, "Gradient Boosting"))
			assert.NoFileExists(t, models.BundlePath(cfg.Paths.Models, "Logistic Regression"))
		})
	}
}

func TestTrainAllModelsFailed(t *testing.T) {
	cfg := testConfig(t)
	cfg.Evaluation.Plots = false
	cfg.Store.Enabled = false
	factory := func(kind string, params map[string]interface{}) (model.Classifier, error) {
		clf, err := models.New(kind, params)
		return brokenFit{Classifier: clf}, err
	}

	r, err := New(cfg, WithModelFactory(factory))
	require.NoError(t, err)
	summary, err := r.Train(context.Background())
	assert.ErrorIs(t, err, ErrNoModels)
	require.NotNil(t, summary)
	assert.Len(t, summary.Failed, 3)
}

func TestNewPredictionSample(t *testing.T) {
	tests := []struct {
		name      string
		predicted []string
		actual    []string
		wantErr   error
		accuracy  float64
	}{
		{"empty", nil, nil, errors.ErrEmptyData, 0},
		{"length mismatch", []string{"Obese"}, []string{"Obese", "Normal"}, nil, 0},
		{"partial", []string{"Obese", "Normal", "Normal"}, []string{"Obese", "Normal", "Overweight"}, nil, 2.0 / 3.0},
		{"all correct", []string{"Normal"}, []string{"Normal"}, nil, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := newPredictionSample("m", tt.predicted, tt.actual)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
				return
			case len(tt.predicted) != len(tt.actual):
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.accuracy, got.Accuracy, 1e-12)
			assert.False(t, math.IsNaN(got.Accuracy))
			require.Len(t, got.Predictions, len(tt.actual))
			assert.Equal(t, tt.predicted[0] == tt.actual[0], got.Predictions[0].Correct)
		})
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestPrintComparisonLogsWriteError(t *testing.T) {
	r, err := New(testConfig(t), WithOutput(failingWriter{}))
	require.NoError(t, err)
	logger, _ := log.NewTestLogger(log.LevelDebug)
	r.logger = logger

	c, err := evaluation.NewComparison([]evaluation.Result{{ModelName: "Random Forest", Metrics: evaluation.Metrics{Accuracy: 0.9}}}, "accuracy")
	require.NoError(t, err)
	r.printComparison(c)

	assert.True(t, logger.ContainsMessage("Failed to write comparison table"))
	assert.True(t, logger.ContainsField(log.ErrAttrKey, "disk full"))
}
