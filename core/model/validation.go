package model

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
)

// CheckXY validates a training set and returns its shape and integer labels.
// y must be a column vector of non-negative integer class codes.
func CheckXY(op string, X, y mat.Matrix) (nSamples, nFeatures int, labels []int, err error) {
	if X == nil || y == nil {
		return 0, 0, nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	nSamples, nFeatures = X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return 0, 0, nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	yRows, yCols := y.Dims()
	if yRows != nSamples {
		return 0, 0, nil, errors.NewDimensionError(op, nSamples, yRows, 0)
	}
	if yCols != 1 {
		return 0, 0, nil, errors.NewDimensionError(op, 1, yCols, 1)
	}
	labels = make([]int, nSamples)
	for i := 0; i < nSamples; i++ {
		v := y.At(i, 0)
		if v < 0 || v != math.Trunc(v) {
			return 0, 0, nil, errors.NewValueError(op, "y must contain non-negative integer class codes")
		}
		labels[i] = int(v)
	}
	if err := errors.CheckMatrix(op, X, nSamples, nFeatures); err != nil {
		return 0, 0, nil, err
	}
	return nSamples, nFeatures, labels, nil
}

// UniqueSorted returns the distinct labels in ascending order.
func UniqueSorted(labels []int) []int {
	seen := make(map[int]struct{}, len(labels))
	out := make([]int, 0)
	for _, l := range labels {
		if _, ok := seen[l]; !ok {
			seen[l] = struct{}{}
			out = append(out, l)
		}
	}
	sort.Ints(out)
	return out
}

// Argmax returns the index of the largest value, preferring the lowest index on ties.
func Argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

// ScoreAccuracy returns the fraction of rows of X whose prediction equals y.
// It returns 0 if prediction fails.
func ScoreAccuracy(p Predictor, X, y mat.Matrix) float64 {
	pred, err := p.Predict(X)
	if err != nil {
		return 0
	}
	n, _ := y.Dims()
	if pn, _ := pred.Dims(); n == 0 || pn != n {
		return 0
	}
	correct := 0
	for i := 0; i < n; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(n)
}
