package model_selection

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/core/model"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/log"
)

// Scorer evaluates a fitted classifier on (X, y).
type Scorer func(m model.Classifier, X, y mat.Matrix) (float64, error)

// AccuracyScorer scores with mean accuracy.
func AccuracyScorer(m model.Classifier, X, y mat.Matrix) (float64, error) {
	pred, err := m.Predict(X)
	if err != nil {
		return 0, err
	}
	n, _ := y.Dims()
	if n == 0 {
		return 0, errors.NewValueError("AccuracyScorer", "empty y")
	}
	correct := 0
	for i := 0; i < n; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// CVResult stores cross-validation results
type CVResult struct {
	TrainScores []float64
	TestScores  []float64
	FitTimes    []time.Duration
}

// GetMeanScore returns mean test score
func (cv *CVResult) GetMeanScore() float64 {
	if len(cv.TestScores) == 0 {
		return 0.0
	}
	return stat.Mean(cv.TestScores, nil)
}

// GetStdScore returns the population standard deviation of test scores
func (cv *CVResult) GetStdScore() float64 {
	return popStd(cv.TestScores)
}

// CrossValidate fits a fresh classifier from factory on every fold
// concurrently and scores it on the fold's train and test rows.
func CrossValidate(ctx context.Context, factory model.Factory, X, y mat.Matrix, splitter Splitter, scorer Scorer) (*CVResult, error) {
	if scorer == nil {
		scorer = AccuracyScorer
	}
	folds, err := splitter.Split(X, y)
	if err != nil {
		return nil, err
	}

	result := &CVResult{
		TrainScores: make([]float64, len(folds)),
		TestScores:  make([]float64, len(folds)),
		FitTimes:    make([]time.Duration, len(folds)),
	}
	logger := log.GetLoggerWithName("model_selection")

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, fold := range folds {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			trainX, trainY := Take(X, y, fold.TrainIndices)
			testX, testY := Take(X, y, fold.TestIndices)

			clf := factory()
			start := time.Now()
			err := errors.SafeExecute(fmt.Sprintf("CrossValidate fold %d", i), func() error {
				return clf.Fit(trainX, trainY)
			})
			if err != nil {
				return errors.Wrapf(err, "fold %d training failed", i)
			}
			result.FitTimes[i] = time.Since(start)

			if result.TrainScores[i], err = scorer(clf, trainX, trainY); err != nil {
				return errors.Wrapf(err, "fold %d train scoring failed", i)
			}
			if result.TestScores[i], err = scorer(clf, testX, testY); err != nil {
				return errors.Wrapf(err, "fold %d test scoring failed", i)
			}
			logger.Debug("Fold finished",
				log.FoldKey, i,
				"train_score", result.TrainScores[i],
				"test_score", result.TestScores[i],
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// CrossValScore returns the test score of every fold.
func CrossValScore(ctx context.Context, factory model.Factory, X, y mat.Matrix, splitter Splitter, scorer Scorer) ([]float64, error) {
	res, err := CrossValidate(ctx, factory, X, y, splitter, scorer)
	if err != nil {
		return nil, err
	}
	return res.TestScores, nil
}

func popStd(values []float64) float64 {
	if len(values) <= 1 {
		return 0
	}
	_, variance := stat.PopMeanVariance(values, nil)
	return math.Sqrt(variance)
}
