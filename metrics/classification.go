// Package metrics は分類モデルの評価指標を提供します。
// scikit-learn の sklearn.metrics と同じ定義に従います。
package metrics

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
)

// ZeroDivisionWarn は zero_division="warn" 相当の指定です。
// 0 を返しつつ UndefinedMetricWarning を発行します。
const ZeroDivisionWarn = -1.0

// 対数損失で確率をクリップする下限
const logLossEps = 1e-15

// ColumnVec は n×1 行列（先頭列）を VecDense に変換する
func ColumnVec(m mat.Matrix) (*mat.VecDense, error) {
	if m == nil {
		return nil, errors.NewValueError("ColumnVec", "nil matrix")
	}
	if v, ok := m.(*mat.VecDense); ok {
		return v, nil
	}
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewValueError("ColumnVec", "empty matrix")
	}
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v, nil
}

// checkPair は2つのベクトルが空でなく同じ長さであることを確認する
func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError(op, "empty vector")
	}
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// ClassificationError は誤分類率（1 - 正解率）を計算する
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

// AUC は2値分類のROC曲線下面積を計算する。
// 同順位のスコアは平均順位で扱う。片方のクラスしかない場合は 0.5 を返す。
func AUC(yTrue, yScore *mat.VecDense) (float64, error) {
	n, err := checkPair("AUC", yTrue, yScore)
	if err != nil {
		return 0, err
	}

	var nPos, nNeg int
	for i := 0; i < n; i++ {
		switch yTrue.AtVec(i) {
		case 1:
			nPos++
		case 0:
			nNeg++
		default:
			return 0, errors.NewValueError("AUC", fmt.Sprintf("labels must be 0 or 1, got %v", yTrue.AtVec(i)))
		}
	}
	if nPos == 0 || nNeg == 0 {
		return 0.5, nil
	}

	// Mann-Whitney U: 正例の順位和から計算
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return yScore.AtVec(idx[a]) < yScore.AtVec(idx[b]) })

	rankSumPos := 0.0
	for i := 0; i < n; {
		j := i
		for j+1 < n && yScore.AtVec(idx[j+1]) == yScore.AtVec(idx[i]) {
			j++
		}
		avgRank := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			if yTrue.AtVec(idx[k]) == 1 {
				rankSumPos += avgRank
			}
		}
		i = j + 1
	}

	u := rankSumPos - float64(nPos)*float64(nPos+1)/2
	return u / (float64(nPos) * float64(nNeg)), nil
}

// AUCMatrix は行列形式の入力（先頭列）に対してAUCを計算する
func AUCMatrix(yTrue, yScore mat.Matrix) (float64, error) {
	if yTrue == nil || yScore == nil {
		return 0, errors.NewValueError("AUCMatrix", "nil matrix")
	}
	if r, c := yTrue.Dims(); r == 0 || c == 0 {
		return 0, errors.NewValueError("AUCMatrix", "empty matrix")
	}
	t, err := ColumnVec(yTrue)
	if err != nil {
		return 0, err
	}
	s, err := ColumnVec(yScore)
	if err != nil {
		return 0, err
	}
	return AUC(t, s)
}

// BinaryLogLoss は2値交差エントロピーを計算する
func BinaryLogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("BinaryLogLoss", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	loss := 0.0
	for i := 0; i < n; i++ {
		y := yTrue.AtVec(i)
		if y != 0 && y != 1 {
			return 0, errors.NewValueError("BinaryLogLoss", fmt.Sprintf("labels must be 0 or 1, got %v", y))
		}
		p := errors.ClipValue(yPred.AtVec(i), logLossEps, 1-logLossEps)
		loss -= y*math.Log(p) + (1-y)*math.Log(1-p)
	}
	return loss / float64(n), nil
}

// LogLoss は多クラス交差エントロピーを計算する。
// proba の列は labels の順に並んでいる必要がある。各行は和が1になるよう正規化される。
func LogLoss(yTrue *mat.VecDense, proba mat.Matrix, labels []int) (float64, error) {
	if yTrue == nil || yTrue.Len() == 0 || proba == nil {
		return 0, errors.NewValueError("LogLoss", "empty input")
	}
	n := yTrue.Len()
	r, c := proba.Dims()
	if r != n {
		return 0, errors.NewDimensionError("LogLoss", n, r, 0)
	}
	if c != len(labels) {
		return 0, errors.NewDimensionError("LogLoss", len(labels), c, 1)
	}
	col := labelIndex(labels)

	loss := 0.0
	for i := 0; i < n; i++ {
		k, ok := col[int(yTrue.AtVec(i))]
		if !ok {
			return 0, errors.NewValueError("LogLoss", fmt.Sprintf("y_true contains label %v not in labels %v", yTrue.AtVec(i), labels))
		}
		sum := 0.0
		for j := 0; j < c; j++ {
			sum += errors.ClipValue(proba.At(i, j), logLossEps, 1-logLossEps)
		}
		p := errors.ClipValue(proba.At(i, k), logLossEps, 1-logLossEps) / sum
		loss -= math.Log(p)
	}
	return loss / float64(n), nil
}

// ConfusionMatrix は混同行列を計算する（行が正解、列が予測）。
// labels が nil の場合は yTrue と yPred に現れるラベルの昇順を使う。
func ConfusionMatrix(yTrue, yPred *mat.VecDense, labels []int) (*mat.Dense, []int, error) {
	n, err := checkPair("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return nil, nil, err
	}
	if labels == nil {
		labels = unionLabels(yTrue, yPred)
	}
	if len(labels) == 0 {
		return nil, nil, errors.NewValueError("ConfusionMatrix", "labels is empty")
	}
	col := labelIndex(labels)

	cm := mat.NewDense(len(labels), len(labels), nil)
	for i := 0; i < n; i++ {
		t, okT := col[int(yTrue.AtVec(i))]
		p, okP := col[int(yPred.AtVec(i))]
		if !okT || !okP {
			continue
		}
		cm.Set(t, p, cm.At(t, p)+1)
	}
	return cm, labels, nil
}

// PRFS は クラスごとの適合率・再現率・F1・サポートと、指定された平均値を保持する
type PRFS struct {
	Labels    []int
	Precision []float64
	Recall    []float64
	F1        []float64
	Support   []int

	Average      string
	AvgPrecision float64
	AvgRecall    float64
	AvgF1        float64
}

// PrecisionRecallFScoreSupport は適合率・再現率・F1・サポートを計算する。
// average は "micro", "macro", "weighted", "none" のいずれか。
// 分母が0になる場合は zeroDivision を返す（ZeroDivisionWarn なら0を返して警告）。
func PrecisionRecallFScoreSupport(yTrue, yPred *mat.VecDense, average string, zeroDivision float64) (*PRFS, error) {
	switch average {
	case "micro", "macro", "weighted", "none":
	default:
		return nil, errors.NewValidationError("average", "must be micro, macro, weighted or none", average)
	}
	if zeroDivision != ZeroDivisionWarn && (zeroDivision < 0 || zeroDivision > 1) {
		return nil, errors.NewValidationError("zero_division", "must be 0, 1 or ZeroDivisionWarn", zeroDivision)
	}

	cm, labels, err := ConfusionMatrix(yTrue, yPred, nil)
	if err != nil {
		return nil, err
	}
	K := len(labels)
	res := &PRFS{
		Labels:    labels,
		Precision: make([]float64, K),
		Recall:    make([]float64, K),
		F1:        make([]float64, K),
		Support:   make([]int, K),
		Average:   average,
	}

	var tpSum, predSum, trueSum float64
	for k := 0; k < K; k++ {
		tp := cm.At(k, k)
		pred := mat.Sum(cm.ColView(k))
		actual := mat.Sum(cm.RowView(k))
		res.Support[k] = int(actual)
		res.Precision[k] = ratio(tp, pred, zeroDivision, "precision", "no predicted samples", labels[k])
		res.Recall[k] = ratio(tp, actual, zeroDivision, "recall", "no true samples", labels[k])
		res.F1[k] = ratio(2*tp, pred+actual, zeroDivision, "f1-score", "no true nor predicted samples", labels[k])
		tpSum += tp
		predSum += pred
		trueSum += actual
	}

	switch average {
	case "micro":
		res.AvgPrecision = ratio(tpSum, predSum, zeroDivision, "precision", "no predicted samples", -1)
		res.AvgRecall = ratio(tpSum, trueSum, zeroDivision, "recall", "no true samples", -1)
		res.AvgF1 = ratio(2*tpSum, predSum+trueSum, zeroDivision, "f1-score", "no samples", -1)
	case "macro":
		res.AvgPrecision = mean(res.Precision, nil)
		res.AvgRecall = mean(res.Recall, nil)
		res.AvgF1 = mean(res.F1, nil)
	case "weighted":
		res.AvgPrecision = mean(res.Precision, res.Support)
		res.AvgRecall = mean(res.Recall, res.Support)
		res.AvgF1 = mean(res.F1, res.Support)
	}
	return res, nil
}

// Precision は平均化された適合率を返す
func Precision(yTrue, yPred *mat.VecDense, average string, zeroDivision float64) (float64, error) {
	r, err := averaged("Precision", yTrue, yPred, average, zeroDivision)
	if err != nil {
		return 0, err
	}
	return r.AvgPrecision, nil
}

// Recall は平均化された再現率を返す
func Recall(yTrue, yPred *mat.VecDense, average string, zeroDivision float64) (float64, error) {
	r, err := averaged("Recall", yTrue, yPred, average, zeroDivision)
	if err != nil {
		return 0, err
	}
	return r.AvgRecall, nil
}

// F1 は平均化されたF1スコアを返す
func F1(yTrue, yPred *mat.VecDense, average string, zeroDivision float64) (float64, error) {
	r, err := averaged("F1", yTrue, yPred, average, zeroDivision)
	if err != nil {
		return 0, err
	}
	return r.AvgF1, nil
}

func averaged(op string, yTrue, yPred *mat.VecDense, average string, zeroDivision float64) (*PRFS, error) {
	if average == "none" {
		return nil, errors.NewValidationError("average", op+" returns a single value; use PrecisionRecallFScoreSupport for per-class scores", average)
	}
	return PrecisionRecallFScoreSupport(yTrue, yPred, average, zeroDivision)
}

// RocAUCOvR は one-vs-rest の多クラスROC AUCを計算する。
// proba の列は labels の順。2クラスの場合は labels[1] を正例とする通常のAUC。
// average は "macro" か "weighted"。yTrue に現れないクラスは平均から除外される。
func RocAUCOvR(yTrue *mat.VecDense, proba mat.Matrix, labels []int, average string) (float64, error) {
	if average != "macro" && average != "weighted" {
		return 0, errors.NewValidationError("average", "must be macro or weighted", average)
	}
	if yTrue == nil || yTrue.Len() == 0 || proba == nil {
		return 0, errors.NewValueError("RocAUCOvR", "empty input")
	}
	n := yTrue.Len()
	r, c := proba.Dims()
	if r != n {
		return 0, errors.NewDimensionError("RocAUCOvR", n, r, 0)
	}
	if c != len(labels) || c < 2 {
		return 0, errors.NewDimensionError("RocAUCOvR", len(labels), c, 1)
	}
	col := labelIndex(labels)
	for i := 0; i < n; i++ {
		if _, ok := col[int(yTrue.AtVec(i))]; !ok {
			return 0, errors.NewValueError("RocAUCOvR", fmt.Sprintf("y_true contains label %v not in labels %v", yTrue.AtVec(i), labels))
		}
	}

	binary := func(k int) (*mat.VecDense, *mat.VecDense, int) {
		yb := mat.NewVecDense(n, nil)
		score := mat.NewVecDense(n, nil)
		pos := 0
		for i := 0; i < n; i++ {
			if int(yTrue.AtVec(i)) == labels[k] {
				yb.SetVec(i, 1)
				pos++
			}
			score.SetVec(i, proba.At(i, k))
		}
		return yb, score, pos
	}

	if c == 2 {
		yb, score, _ := binary(1)
		return AUC(yb, score)
	}

	total, weightSum := 0.0, 0.0
	for k := range labels {
		yb, score, pos := binary(k)
		if pos == 0 {
			errors.Warn(errors.NewUndefinedMetricWarning("roc_auc", fmt.Sprintf("no positive samples for label %d", labels[k]), math.NaN()))
			continue
		}
		auc, err := AUC(yb, score)
		if err != nil {
			return 0, err
		}
		w := 1.0
		if average == "weighted" {
			w = float64(pos)
		}
		total += w * auc
		weightSum += w
	}
	if weightSum == 0 {
		return 0, errors.NewValueError("RocAUCOvR", "no class has positive samples")
	}
	return total / weightSum, nil
}

func ratio(num, den, zeroDivision float64, metric, condition string, label int) float64 {
	if den > 0 {
		return num / den
	}
	if zeroDivision == ZeroDivisionWarn {
		if label >= 0 {
			condition = fmt.Sprintf("%s for label %d", condition, label)
		}
		errors.Warn(errors.NewUndefinedMetricWarning(metric, condition, 0))
		return 0
	}
	return zeroDivision
}

func mean(values []float64, weights []int) float64 {
	if len(values) == 0 {
		return 0
	}
	if weights == nil {
		s := 0.0
		for _, v := range values {
			s += v
		}
		return s / float64(len(values))
	}
	s, w := 0.0, 0
	for i, v := range values {
		s += v * float64(weights[i])
		w += weights[i]
	}
	if w == 0 {
		return 0
	}
	return s / float64(w)
}

func unionLabels(vs ...*mat.VecDense) []int {
	seen := map[int]bool{}
	for _, v := range vs {
		for i := 0; i < v.Len(); i++ {
			seen[int(v.AtVec(i))] = true
		}
	}
	labels := make([]int, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Ints(labels)
	return labels
}

func labelIndex(labels []int) map[int]int {
	idx := make(map[int]int, len(labels))
	for i, l := range labels {
		idx[l] = i
	}
	return idx
}
