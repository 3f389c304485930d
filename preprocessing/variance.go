package preprocessing

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/core/model"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
)

// VarianceThreshold は分散が閾値以下の特徴量を取り除く
// scikit-learn の VarianceThreshold と同じく母分散を使い、
// 分散 > Threshold の列だけを残す
type VarianceThreshold struct {
	model.BaseEstimator

	Threshold float64

	// VariancesFit は学習データの列ごとの母分散
	VariancesFit []float64

	// Support は残す列を true で示す
	Support []bool

	NFeatures int
}

// NewVarianceThreshold は新しいVarianceThresholdを作成する
func NewVarianceThreshold(threshold float64) *VarianceThreshold {
	return &VarianceThreshold{Threshold: threshold}
}

// Fit は列ごとの分散を計算し、残す列を決める
// 一つも残らない場合は ValueError を返す
func (v *VarianceThreshold) Fit(X mat.Matrix) error {
	if v.Threshold < 0 {
		return errors.NewValidationError("variance_threshold", "must be non-negative", v.Threshold)
	}
	r, c, err := checkMatrix("VarianceThreshold.Fit", X)
	if err != nil {
		return err
	}

	v.NFeatures = c
	v.VariancesFit = make([]float64, c)
	v.Support = make([]bool, c)

	kept := 0
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		_, v.VariancesFit[j] = stat.PopMeanVariance(col, nil)
		if v.VariancesFit[j] > v.Threshold {
			v.Support[j] = true
			kept++
		}
	}
	if kept == 0 {
		return errors.NewValueError("VarianceThreshold.Fit",
			fmt.Sprintf("no feature in X meets the variance threshold %.5f", v.Threshold))
	}

	v.SetFitted()
	return nil
}

// Transform は学習時に選ばれた列だけを元の順序で返す
func (v *VarianceThreshold) Transform(X mat.Matrix) (mat.Matrix, error) {
	if !v.IsFitted() {
		return nil, errors.NewNotFittedError("VarianceThreshold", "Transform")
	}
	_, c, err := checkMatrix("VarianceThreshold.Transform", X)
	if err != nil {
		return nil, err
	}
	if c != v.NFeatures {
		return nil, errors.NewDimensionError("VarianceThreshold.Transform", v.NFeatures, c, 1)
	}
	return selectColumns(X, v.Support), nil
}

// FitTransform は学習と変換を同時に行う
func (v *VarianceThreshold) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := v.Fit(X); err != nil {
		return nil, err
	}
	return v.Transform(X)
}

// GetSupport は残す列のマスクのコピーを返す
func (v *VarianceThreshold) GetSupport() []bool {
	return append([]bool(nil), v.Support...)
}

// Variances は学習データの列ごとの分散のコピーを返す
func (v *VarianceThreshold) Variances() []float64 {
	return append([]float64(nil), v.VariancesFit...)
}

// selectColumns は support が true の列だけからなる新しい行列を作る
func selectColumns(X mat.Matrix, support []bool) *mat.Dense {
	r, _ := X.Dims()
	idx := supportIndices(support)
	out := mat.NewDense(r, len(idx), nil)
	for k, j := range idx {
		for i := 0; i < r; i++ {
			out.Set(i, k, X.At(i, j))
		}
	}
	return out
}

// supportIndices は support が true の列番号を返す
func supportIndices(support []bool) []int {
	idx := make([]int, 0, len(support))
	for j, keep := range support {
		if keep {
			idx = append(idx, j)
		}
	}
	return idx
}
