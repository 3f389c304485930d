package dataset

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/model_selection"
)

// Split divides d into train and test sets. With stratify the class ratios
// of Target are kept in both sets.
func (d *Dataset) Split(testSize float64, stratify bool, seed int64) (train, test *Dataset, err error) {
	n, _ := d.X.Dims()
	trainIdx, testIdx, err := model_selection.TrainTestSplitIndices(n, codeColumn(d.Target), testSize, stratify, seed)
	if err != nil {
		return nil, nil, err
	}
	return d.Subset(trainIdx), d.Subset(testIdx), nil
}

// Subset returns the rows listed in indices, in that order. Target may be nil.
func (d *Dataset) Subset(indices []int) *Dataset {
	X, _ := model_selection.Take(d.X, nil, indices)
	var target []string
	if d.Target != nil {
		target = make([]string, len(indices))
		for i, idx := range indices {
			target[i] = d.Target[idx]
		}
	}
	return &Dataset{X: X, Target: target, FeatureNames: d.FeatureNames}
}

// codeColumn は層化抽出用に文字列ラベルをソート順の整数コードにする
func codeColumn(labels []string) *mat.Dense {
	uniq := map[string]int{}
	for _, l := range labels {
		uniq[l] = 0
	}
	keys := make([]string, 0, len(uniq))
	for k := range uniq {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		uniq[k] = i
	}
	y := mat.NewDense(len(labels), 1, nil)
	for i, l := range labels {
		y.Set(i, 0, float64(uniq[l]))
	}
	return y
}

// LabelColumn converts label codes into an n×1 matrix.
func LabelColumn(codes []int) *mat.Dense {
	y := mat.NewDense(len(codes), 1, nil)
	for i, c := range codes {
		y.Set(i, 0, float64(c))
	}
	return y
}

// Codes converts an n×1 label matrix back to ints.
func Codes(y mat.Matrix) []int {
	r, _ := y.Dims()
	out := make([]int, r)
	for i := range out {
		out[i] = int(y.At(i, 0))
	}
	return out
}
