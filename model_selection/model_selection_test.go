package model_selection

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/core/model"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/sklearn/tree"
)

// labelled returns n rows whose single feature equals the row index and
// whose labels follow counts, class by class.
func labelled(counts ...int) (*mat.Dense, *mat.Dense) {
	n := 0
	for _, c := range counts {
		n += c
	}
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	row := 0
	for label, c := range counts {
		for i := 0; i < c; i++ {
			X.Set(row, 0, float64(row))
			y.Set(row, 0, float64(label))
			row++
		}
	}
	return X, y
}

func blobs(nPerClass int) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewSource(3))
	X := mat.NewDense(3*nPerClass, 2, nil)
	y := mat.NewDense(3*nPerClass, 1, nil)
	for c := 0; c < 3; c++ {
		for i := 0; i < nPerClass; i++ {
			r := c*nPerClass + i
			X.Set(r, 0, float64(4*c)+rng.NormFloat64()*0.5)
			X.Set(r, 1, rng.NormFloat64())
			y.Set(r, 0, float64(c))
		}
	}
	return X, y
}

func assertPartition(t *testing.T, folds []CVFold, n int) {
	t.Helper()
	seen := make([]int, n)
	for _, f := range folds {
		assert.Equal(t, n, len(f.TrainIndices)+len(f.TestIndices))
		inTest := map[int]bool{}
		for _, i := range f.TestIndices {
			seen[i]++
			inTest[i] = true
		}
		for _, i := range f.TrainIndices {
			assert.False(t, inTest[i], "index %d in both train and test", i)
		}
	}
	for i, c := range seen {
		assert.Equal(t, 1, c, "index %d tested %d times", i, c)
	}
}

func TestKFold(t *testing.T) {
	X, y := labelled(10)

	for _, shuffle := range []bool{false, true} {
		folds, err := NewKFold(3, shuffle, 1).Split(X, y)
		require.NoError(t, err)
		require.Len(t, folds, 3)
		assert.Len(t, folds[0].TestIndices, 4)
		assert.Len(t, folds[1].TestIndices, 3)
		assert.Len(t, folds[2].TestIndices, 3)
		assertPartition(t, folds, 10)
	}

	folds, err := NewKFold(3, false, 0).Split(X, y)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, folds[0].TestIndices)

	_, err = NewKFold(11, false, 0).Split(X, y)
	assert.Error(t, err)
	assert.Equal(t, 5, NewKFold(1, false, 0).GetNSplits())
}

func TestStratifiedKFold(t *testing.T) {
	X, y := labelled(8, 4)

	folds, err := NewStratifiedKFold(4, true, 7).Split(X, y)
	require.NoError(t, err)
	assertPartition(t, folds, 12)
	for i, f := range folds {
		counts := map[int]int{}
		for _, idx := range f.TestIndices {
			counts[int(y.At(idx, 0))]++
		}
		assert.Equal(t, map[int]int{0: 2, 1: 1}, counts, "fold %d", i)
	}

	a, err := NewStratifiedKFold(4, true, 7).Split(X, y)
	require.NoError(t, err)
	assert.Equal(t, folds, a, "same seed must give the same folds")
}

func TestTrainTestSplit(t *testing.T) {
	X, y := labelled(60, 30, 10)

	XTrain, XTest, yTrain, yTest, err := TrainTestSplit(X, y, 0.2, true, 42)
	require.NoError(t, err)
	r, _ := XTest.Dims()
	assert.Equal(t, 20, r)
	r, _ = XTrain.Dims()
	assert.Equal(t, 80, r)

	counts := map[int]int{}
	for i := 0; i < 20; i++ {
		counts[int(yTest.At(i, 0))]++
		// 特徴量は行番号なので、ラベルとの対応が保たれていることを確認できる
		row := int(XTest.At(i, 0))
		assert.Equal(t, y.At(row, 0), yTest.At(i, 0))
	}
	assert.Equal(t, map[int]int{0: 12, 1: 6, 2: 2}, counts)
	tr, _ := yTrain.Dims()
	assert.Equal(t, 80, tr)

	train, test, err := TrainTestSplitIndices(10, nil, 0.25, false, 1)
	require.NoError(t, err)
	assert.Len(t, test, 3)
	assert.Len(t, train, 7)

	tests := []struct {
		name     string
		testSize float64
		stratify bool
	}{
		{"zero test size", 0, false},
		{"full test size", 1, false},
		{"too few rows per class", 0.01, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, _, err := TrainTestSplit(X, y, tt.testSize, tt.stratify, 0)
			assert.Error(t, err)
		})
	}
}

func treeFactory() model.Classifier {
	return tree.NewDecisionTreeClassifier(tree.WithMaxDepth(4), tree.WithRandomState(0))
}

func TestCrossValScore(t *testing.T) {
	X, y := blobs(20)

	scores, err := CrossValScore(context.Background(), treeFactory, X, y, NewStratifiedKFold(5, true, 1), nil)
	require.NoError(t, err)
	require.Len(t, scores, 5)
	for _, s := range scores {
		assert.GreaterOrEqual(t, s, 0.8)
	}

	res, err := CrossValidate(context.Background(), treeFactory, X, y, NewKFold(3, true, 2), AccuracyScorer)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.TrainScores[0], 0.05)
	assert.GreaterOrEqual(t, res.GetMeanScore(), 0.8)
	assert.GreaterOrEqual(t, res.GetStdScore(), 0.0)
}

func TestCrossValidateCancelled(t *testing.T) {
	X, y := blobs(10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := CrossValScore(ctx, treeFactory, X, y, NewKFold(3, false, 0), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLearningCurve(t *testing.T) {
	X, y := blobs(20)

	res, err := LearningCurve(context.Background(), treeFactory, X, y,
		NewStratifiedKFold(5, true, 0),
		WithTrainSizes([]float64{0.1, 0.5, 1.0}),
		WithCurveShuffle(3),
	)
	require.NoError(t, err)

	assert.Equal(t, []int{4, 24, 48}, res.TrainSizes)
	require.Len(t, res.TrainScores, 3)
	require.Len(t, res.ValidationScores[2], 5)
	assert.Len(t, res.TrainMean(), 3)
	assert.Len(t, res.ValidationStd(), 3)
	assert.GreaterOrEqual(t, res.ValidationMean()[2], 0.8)
	for _, s := range res.TrainStd() {
		assert.GreaterOrEqual(t, s, 0.0)
	}
}

func TestAbsoluteSizes(t *testing.T) {
	sizes, err := absoluteSizes([]float64{1.0, 0.01, 0.02, 0.5}, 40)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 20, 40}, sizes)

	_, err = absoluteSizes([]float64{0}, 10)
	assert.Error(t, err)
	_, err = absoluteSizes(nil, 10)
	assert.Error(t, err)

	def := DefaultTrainSizes(10)
	assert.Len(t, def, 10)
	assert.InDelta(t, 0.1, def[0], 1e-12)
	assert.InDelta(t, 1.0, def[9], 1e-12)
}
