// Package model_selection はデータ分割と交差検証を提供します。
package model_selection

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
)

// Splitter defines interface for cross-validation splitters
type Splitter interface {
	Split(X, y mat.Matrix) ([]CVFold, error)
	GetNSplits() int
}

// CVFold represents a single fold in cross-validation
type CVFold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFold implements k-fold cross-validation splitter
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int64
}

// NewKFold creates a new k-fold splitter
func NewKFold(nSplits int, shuffle bool, randomSeed int64) *KFold {
	if nSplits < 2 {
		nSplits = 5 // Default to 5-fold
	}
	return &KFold{NSplits: nSplits, Shuffle: shuffle, RandomSeed: randomSeed}
}

// GetNSplits returns the number of splits
func (kf *KFold) GetNSplits() int {
	return kf.NSplits
}

// Split generates train/test indices for each fold.
// The first n % k folds get one extra test sample.
func (kf *KFold) Split(X, _ mat.Matrix) ([]CVFold, error) {
	if X == nil {
		return nil, errors.NewValueError("KFold.Split", "X is nil")
	}
	nSamples, _ := X.Dims()
	if kf.NSplits > nSamples {
		return nil, errors.NewValueError("KFold.Split",
			fmt.Sprintf("cannot have number of splits n_splits=%d greater than the number of samples: n_samples=%d", kf.NSplits, nSamples))
	}

	indices := arange(nSamples)
	if kf.Shuffle {
		newRand(kf.RandomSeed).Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	folds := make([]CVFold, kf.NSplits)
	foldSize := nSamples / kf.NSplits
	remainder := nSamples % kf.NSplits
	current := 0
	for i := range folds {
		testSize := foldSize
		if i < remainder {
			testSize++
		}
		test := append([]int(nil), indices[current:current+testSize]...)
		train := make([]int, 0, nSamples-testSize)
		train = append(train, indices[:current]...)
		train = append(train, indices[current+testSize:]...)
		sort.Ints(train)
		sort.Ints(test)
		folds[i] = CVFold{TrainIndices: train, TestIndices: test}
		current += testSize
	}
	return folds, nil
}

// StratifiedKFold implements stratified k-fold cross-validation
type StratifiedKFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int64
}

// NewStratifiedKFold creates a new stratified k-fold splitter
func NewStratifiedKFold(nSplits int, shuffle bool, randomSeed int64) *StratifiedKFold {
	if nSplits < 2 {
		nSplits = 5
	}
	return &StratifiedKFold{NSplits: nSplits, Shuffle: shuffle, RandomSeed: randomSeed}
}

// GetNSplits returns the number of splits
func (skf *StratifiedKFold) GetNSplits() int {
	return skf.NSplits
}

// Split generates stratified train/test indices for each fold.
// Each class is dealt across the folds separately so every fold keeps
// roughly the class proportions of y.
func (skf *StratifiedKFold) Split(X, y mat.Matrix) ([]CVFold, error) {
	if X == nil || y == nil {
		return nil, errors.NewValueError("StratifiedKFold.Split", "X and y are required")
	}
	nSamples, _ := X.Dims()
	if r, _ := y.Dims(); r != nSamples {
		return nil, errors.NewDimensionError("StratifiedKFold.Split", nSamples, r, 0)
	}
	if skf.NSplits > nSamples {
		return nil, errors.NewValueError("StratifiedKFold.Split",
			fmt.Sprintf("cannot have number of splits n_splits=%d greater than the number of samples: n_samples=%d", skf.NSplits, nSamples))
	}

	labels, byClass := groupByClass(y, nSamples)
	var r *rand.Rand
	if skf.Shuffle {
		r = newRand(skf.RandomSeed)
	}

	tests := make([][]int, skf.NSplits)
	// 前のクラスで余りを受け取ったフォールドの次から配ることで、フォールドサイズを均す
	offset := 0
	for _, label := range labels {
		indices := byClass[label]
		if r != nil {
			r.Shuffle(len(indices), func(i, j int) {
				indices[i], indices[j] = indices[j], indices[i]
			})
		}
		for k, idx := range indices {
			f := (offset + k) % skf.NSplits
			tests[f] = append(tests[f], idx)
		}
		offset = (offset + len(indices)) % skf.NSplits
	}

	folds := make([]CVFold, skf.NSplits)
	for i, test := range tests {
		sort.Ints(test)
		inTest := make(map[int]bool, len(test))
		for _, idx := range test {
			inTest[idx] = true
		}
		train := make([]int, 0, nSamples-len(test))
		for j := 0; j < nSamples; j++ {
			if !inTest[j] {
				train = append(train, j)
			}
		}
		folds[i] = CVFold{TrainIndices: train, TestIndices: test}
	}
	return folds, nil
}

// TrainTestSplitIndices splits row indices into train and test sets.
// The test set has ceil(testSize*n) rows. With stratify, every class is
// allocated proportionally (largest remainder) so the class ratios are kept.
func TrainTestSplitIndices(nSamples int, y mat.Matrix, testSize float64, stratify bool, seed int64) (train, test []int, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(nSamples)))
	nTrain := nSamples - nTest
	if nTest == 0 || nTrain == 0 {
		return nil, nil, errors.NewValueError("TrainTestSplit",
			fmt.Sprintf("with n_samples=%d and test_size=%g the resulting train set will be empty", nSamples, testSize))
	}
	r := newRand(seed)

	if !stratify {
		perm := arange(nSamples)
		r.Shuffle(len(perm), func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
		return perm[nTest:], perm[:nTest], nil
	}

	if y == nil {
		return nil, nil, errors.NewValueError("TrainTestSplit", "stratify requires y")
	}
	if rows, _ := y.Dims(); rows != nSamples {
		return nil, nil, errors.NewDimensionError("TrainTestSplit", nSamples, rows, 0)
	}
	labels, byClass := groupByClass(y, nSamples)
	if len(labels) > nTest || len(labels) > nTrain {
		return nil, nil, errors.NewValueError("TrainTestSplit",
			fmt.Sprintf("the test_size=%d and train_size=%d should be greater or equal to the number of classes=%d", nTest, nTrain, len(labels)))
	}

	alloc := allocate(labels, byClass, nTest, nSamples)
	for _, label := range labels {
		indices := byClass[label]
		r.Shuffle(len(indices), func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })
		test = append(test, indices[:alloc[label]]...)
		train = append(train, indices[alloc[label]:]...)
	}
	r.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
	r.Shuffle(len(test), func(i, j int) { test[i], test[j] = test[j], test[i] })
	return train, test, nil
}

// allocate distributes nTest test rows over the classes by largest remainder.
func allocate(labels []int, byClass map[int][]int, nTest, nSamples int) map[int]int {
	type share struct {
		label int
		frac  float64
	}
	alloc := make(map[int]int, len(labels))
	shares := make([]share, 0, len(labels))
	assigned := 0
	for _, label := range labels {
		exact := float64(nTest) * float64(len(byClass[label])) / float64(nSamples)
		alloc[label] = int(math.Floor(exact))
		assigned += alloc[label]
		shares = append(shares, share{label, exact - math.Floor(exact)})
	}
	sort.SliceStable(shares, func(a, b int) bool { return shares[a].frac > shares[b].frac })
	for i := 0; assigned < nTest; i = (i + 1) % len(shares) {
		l := shares[i].label
		if alloc[l] < len(byClass[l]) {
			alloc[l]++
			assigned++
		}
	}
	return alloc
}

// TrainTestSplit splits X and y into random train and test subsets.
func TrainTestSplit(X, y mat.Matrix, testSize float64, stratify bool, seed int64) (XTrain, XTest, yTrain, yTest *mat.Dense, err error) {
	if X == nil || y == nil {
		return nil, nil, nil, nil, errors.NewValueError("TrainTestSplit", "X and y are required")
	}
	nSamples, _ := X.Dims()
	if r, _ := y.Dims(); r != nSamples {
		return nil, nil, nil, nil, errors.NewDimensionError("TrainTestSplit", nSamples, r, 0)
	}
	train, test, err := TrainTestSplitIndices(nSamples, y, testSize, stratify, seed)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	XTrain, yTrain = Take(X, y, train)
	XTest, yTest = Take(X, y, test)
	return XTrain, XTest, yTrain, yTest, nil
}

// Take extracts the rows of X and y listed in indices, in that order.
// y may be nil.
func Take(X, y mat.Matrix, indices []int) (*mat.Dense, *mat.Dense) {
	rows := len(indices)
	_, xCols := X.Dims()
	xSubset := mat.NewDense(rows, xCols, nil)
	row := make([]float64, xCols)
	for i, idx := range indices {
		mat.Row(row, idx, X)
		xSubset.SetRow(i, row)
	}
	if y == nil {
		return xSubset, nil
	}
	_, yCols := y.Dims()
	ySubset := mat.NewDense(rows, yCols, nil)
	for i, idx := range indices {
		for j := 0; j < yCols; j++ {
			ySubset.Set(i, j, y.At(idx, j))
		}
	}
	return xSubset, ySubset
}

func groupByClass(y mat.Matrix, n int) ([]int, map[int][]int) {
	byClass := make(map[int][]int)
	for i := 0; i < n; i++ {
		label := int(y.At(i, 0))
		byClass[label] = append(byClass[label], i)
	}
	labels := make([]int, 0, len(byClass))
	for l := range byClass {
		labels = append(labels, l)
	}
	sort.Ints(labels)
	return labels, byClass
}

func arange(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
}
