package model_selection

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/core/model"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
)

// LearningCurveResult holds scores per training size (rows) and fold (columns).
type LearningCurveResult struct {
	TrainSizes       []int       `json:"train_sizes"`
	TrainScores      [][]float64 `json:"train_scores"`
	ValidationScores [][]float64 `json:"validation_scores"`
}

// TrainMean returns the mean training score per size.
func (r *LearningCurveResult) TrainMean() []float64 { return rowMeans(r.TrainScores) }

// TrainStd returns the population std of training scores per size.
func (r *LearningCurveResult) TrainStd() []float64 { return rowStds(r.TrainScores) }

// ValidationMean returns the mean validation score per size.
func (r *LearningCurveResult) ValidationMean() []float64 { return rowMeans(r.ValidationScores) }

// ValidationStd returns the population std of validation scores per size.
func (r *LearningCurveResult) ValidationStd() []float64 { return rowStds(r.ValidationScores) }

func rowMeans(scores [][]float64) []float64 {
	out := make([]float64, len(scores))
	for i, row := range scores {
		out[i] = stat.Mean(row, nil)
	}
	return out
}

func rowStds(scores [][]float64) []float64 {
	out := make([]float64, len(scores))
	for i, row := range scores {
		out[i] = popStd(row)
	}
	return out
}

type learningCurveConfig struct {
	trainSizes []float64
	scorer     Scorer
	shuffle    bool
	seed       int64
}

// LearningCurveOption configures LearningCurve.
type LearningCurveOption func(*learningCurveConfig)

// WithTrainSizes sets the training sizes as fractions in (0, 1] of the
// largest fold training set. Default is 10 points from 0.1 to 1.0.
func WithTrainSizes(fractions []float64) LearningCurveOption {
	return func(c *learningCurveConfig) { c.trainSizes = fractions }
}

// WithCurveScorer sets the scorer (default accuracy).
func WithCurveScorer(s Scorer) LearningCurveOption {
	return func(c *learningCurveConfig) { c.scorer = s }
}

// WithCurveShuffle shuffles each fold's training rows before taking prefixes.
func WithCurveShuffle(seed int64) LearningCurveOption {
	return func(c *learningCurveConfig) {
		c.shuffle = true
		c.seed = seed
	}
}

// DefaultTrainSizes returns n evenly spaced fractions from 0.1 to 1.0.
func DefaultTrainSizes(n int) []float64 {
	return floats.Span(make([]float64, n), 0.1, 1.0)
}

// LearningCurve fits a classifier on growing prefixes of every fold's
// training rows and scores it on that prefix and on the fold's test rows.
func LearningCurve(ctx context.Context, factory model.Factory, X, y mat.Matrix, splitter Splitter, opts ...LearningCurveOption) (*LearningCurveResult, error) {
	cfg := &learningCurveConfig{
		trainSizes: DefaultTrainSizes(10),
		scorer:     AccuracyScorer,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	folds, err := splitter.Split(X, y)
	if err != nil {
		return nil, err
	}
	maxTrain := len(folds[0].TrainIndices)
	for _, f := range folds[1:] {
		maxTrain = min(maxTrain, len(f.TrainIndices))
	}
	sizes, err := absoluteSizes(cfg.trainSizes, maxTrain)
	if err != nil {
		return nil, err
	}

	if cfg.shuffle {
		r := newRand(cfg.seed)
		for i := range folds {
			train := append([]int(nil), folds[i].TrainIndices...)
			r.Shuffle(len(train), func(a, b int) { train[a], train[b] = train[b], train[a] })
			folds[i].TrainIndices = train
		}
	}

	res := &LearningCurveResult{
		TrainSizes:       sizes,
		TrainScores:      make([][]float64, len(sizes)),
		ValidationScores: make([][]float64, len(sizes)),
	}
	for s := range sizes {
		res.TrainScores[s] = make([]float64, len(folds))
		res.ValidationScores[s] = make([]float64, len(folds))
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for f, fold := range folds {
		testX, testY := Take(X, y, fold.TestIndices)
		for s, size := range sizes {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				trainX, trainY := Take(X, y, fold.TrainIndices[:size])
				clf := factory()
				op := fmt.Sprintf("LearningCurve fold %d size %d", f, size)
				if err := errors.SafeExecute(op, func() error { return clf.Fit(trainX, trainY) }); err != nil {
					return errors.Wrap(err, op)
				}
				var err error
				if res.TrainScores[s][f], err = cfg.scorer(clf, trainX, trainY); err != nil {
					return errors.Wrap(err, op)
				}
				if res.ValidationScores[s][f], err = cfg.scorer(clf, testX, testY); err != nil {
					return errors.Wrap(err, op)
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

// absoluteSizes converts fractions to distinct, increasing row counts.
func absoluteSizes(fractions []float64, maxTrain int) ([]int, error) {
	if len(fractions) == 0 {
		return nil, errors.NewValidationError("train_sizes", "must not be empty", fractions)
	}
	sorted := append([]float64(nil), fractions...)
	sort.Float64s(sorted)
	var sizes []int
	for _, f := range sorted {
		if f <= 0 || f > 1 {
			return nil, errors.NewValidationError("train_sizes", "fractions must be in (0, 1]", f)
		}
		n := int(f * float64(maxTrain))
		if n < 1 {
			n = 1
		}
		if len(sizes) > 0 && sizes[len(sizes)-1] >= n {
			continue
		}
		sizes = append(sizes, n)
	}
	return sizes, nil
}
