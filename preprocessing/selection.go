package preprocessing

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/core/model"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
)

// ScoreFunc は特徴量ごとのスコアとp値を返す単変量の検定関数
type ScoreFunc func(X, y mat.Matrix) (scores, pvalues []float64, err error)

// FClassif は特徴量ごとに一元配置分散分析のF値とp値を計算する
//
// 定数の特徴量は F = NaN, p = NaN になる。
// y は整数にエンコードされたクラスラベルの列ベクトル。
func FClassif(X, y mat.Matrix) ([]float64, []float64, error) {
	n, c, err := checkMatrix("FClassif", X)
	if err != nil {
		return nil, nil, err
	}
	if yr, _ := y.Dims(); yr != n {
		return nil, nil, errors.NewDimensionError("FClassif", n, yr, 0)
	}

	// クラスごとのサンプル番号
	groups := map[float64][]int{}
	var labels []float64
	for i := 0; i < n; i++ {
		lbl := y.At(i, 0)
		if _, ok := groups[lbl]; !ok {
			labels = append(labels, lbl)
		}
		groups[lbl] = append(groups[lbl], i)
	}
	k := len(labels)
	if k < 2 {
		return nil, nil, errors.NewValueError("FClassif", "at least two classes are required")
	}
	if n-k <= 0 {
		return nil, nil, errors.NewValueError("FClassif",
			fmt.Sprintf("need more samples (%d) than classes (%d)", n, k))
	}

	dfBetween := float64(k - 1)
	dfWithin := float64(n - k)
	fdist := distuv.F{D1: dfBetween, D2: dfWithin}

	scores := make([]float64, c)
	pvalues := make([]float64, c)
	for j := 0; j < c; j++ {
		grand := 0.0
		for i := 0; i < n; i++ {
			grand += X.At(i, j)
		}
		grand /= float64(n)

		ssBetween, ssWithin := 0.0, 0.0
		for _, lbl := range labels {
			idx := groups[lbl]
			mean := 0.0
			for _, i := range idx {
				mean += X.At(i, j)
			}
			mean /= float64(len(idx))
			d := mean - grand
			ssBetween += float64(len(idx)) * d * d
			for _, i := range idx {
				e := X.At(i, j) - mean
				ssWithin += e * e
			}
		}

		msb := ssBetween / dfBetween
		msw := ssWithin / dfWithin
		switch {
		case msw == 0 && msb == 0:
			scores[j], pvalues[j] = math.NaN(), math.NaN()
		case msw == 0:
			scores[j], pvalues[j] = math.Inf(1), 0
		default:
			scores[j] = msb / msw
			pvalues[j] = fdist.Survival(scores[j])
		}
	}
	return scores, pvalues, nil
}

// SelectKBest はスコアの高い上位K個の特徴量を選ぶ
//
// K が特徴量数より大きい場合は全特徴量を残す。同点のときは列番号の
// 大きい方を優先し、NaN のスコアは最下位として扱う。選ばれた列は
// 元の順序のまま出力される。
type SelectKBest struct {
	model.BaseEstimator

	K int

	// ScoreFunc が nil の場合は FClassif を使う。gob では保存されない
	ScoreFunc ScoreFunc `json:"-"`

	Scores  []float64
	PValues []float64
	Support []bool

	NFeatures int
}

// NewSelectKBest は新しいSelectKBestを作成する
func NewSelectKBest(k int) *SelectKBest {
	return &SelectKBest{K: k, ScoreFunc: FClassif}
}

// Fit はスコアを計算して残す列を決める
func (s *SelectKBest) Fit(X, y mat.Matrix) error {
	if s.K <= 0 {
		return errors.NewValidationError("k_best", "must be positive", s.K)
	}
	_, c, err := checkMatrix("SelectKBest.Fit", X)
	if err != nil {
		return err
	}

	scoreFunc := s.ScoreFunc
	if scoreFunc == nil {
		scoreFunc = FClassif
	}
	scores, pvalues, err := scoreFunc(X, y)
	if err != nil {
		return errors.Wrap(err, "SelectKBest.Fit")
	}
	if len(scores) != c {
		return errors.NewDimensionError("SelectKBest.Fit", c, len(scores), 1)
	}

	s.Scores = scores
	s.PValues = pvalues
	s.NFeatures = c
	s.Support = make([]bool, c)
	for _, j := range topK(scores, min(s.K, c)) {
		s.Support[j] = true
	}

	s.SetFitted()
	return nil
}

// Transform は選ばれた列だけを返す
func (s *SelectKBest) Transform(X mat.Matrix) (mat.Matrix, error) {
	if !s.IsFitted() {
		return nil, errors.NewNotFittedError("SelectKBest", "Transform")
	}
	_, c, err := checkMatrix("SelectKBest.Transform", X)
	if err != nil {
		return nil, err
	}
	if c != s.NFeatures {
		return nil, errors.NewDimensionError("SelectKBest.Transform", s.NFeatures, c, 1)
	}
	return selectColumns(X, s.Support), nil
}

// FitTransform は学習と変換を同時に行う
func (s *SelectKBest) FitTransform(X, y mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X, y); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// GetSupport は残す列のマスクのコピーを返す
func (s *SelectKBest) GetSupport() []bool {
	return append([]bool(nil), s.Support...)
}

// topK はスコア上位k個の列番号を返す。
// 安定ソートの昇順で末尾k個を取るので、同点なら列番号の大きい方が残る。
// NaN は最小値として扱う。
func topK(scores []float64, k int) []int {
	key := func(j int) float64 {
		if math.IsNaN(scores[j]) {
			return -math.MaxFloat64
		}
		return scores[j]
	}
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return key(order[a]) < key(order[b]) })
	return order[len(order)-k:]
}
