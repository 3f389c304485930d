package metrics

import (
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
)

// ReportRow は classification report の1行
type ReportRow struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1-score"`
	Support   int     `json:"support"`
}

// ClassificationReport は sklearn.metrics.classification_report に相当する集計
type ClassificationReport struct {
	Classes     []ReportRow `json:"classes"`
	Accuracy    float64     `json:"accuracy"`
	MacroAvg    ReportRow   `json:"macro avg"`
	WeightedAvg ReportRow   `json:"weighted avg"`
	Digits      int         `json:"-"`
}

// NewClassificationReport はクラスごとの指標とマクロ・重み付き平均を計算する。
// targetNames を指定した場合、ラベルの昇順に対応する名前として使う。
func NewClassificationReport(yTrue, yPred *mat.VecDense, targetNames []string, digits int, zeroDivision float64) (*ClassificationReport, error) {
	prfs, err := PrecisionRecallFScoreSupport(yTrue, yPred, "weighted", zeroDivision)
	if err != nil {
		return nil, err
	}
	if targetNames != nil && len(targetNames) != len(prfs.Labels) {
		return nil, errors.NewValueError("ClassificationReport",
			fmt.Sprintf("number of classes, %d, does not match size of target_names, %d", len(prfs.Labels), len(targetNames)))
	}
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	if digits <= 0 {
		digits = 2
	}

	rep := &ClassificationReport{Accuracy: acc, Digits: digits}
	total := 0
	for k, label := range prfs.Labels {
		name := strconv.Itoa(label)
		if targetNames != nil {
			name = targetNames[k]
		}
		rep.Classes = append(rep.Classes, ReportRow{
			Label:     name,
			Precision: prfs.Precision[k],
			Recall:    prfs.Recall[k],
			F1:        prfs.F1[k],
			Support:   prfs.Support[k],
		})
		total += prfs.Support[k]
	}
	rep.MacroAvg = ReportRow{
		Label:     "macro avg",
		Precision: mean(prfs.Precision, nil),
		Recall:    mean(prfs.Recall, nil),
		F1:        mean(prfs.F1, nil),
		Support:   total,
	}
	rep.WeightedAvg = ReportRow{
		Label:     "weighted avg",
		Precision: prfs.AvgPrecision,
		Recall:    prfs.AvgRecall,
		F1:        prfs.AvgF1,
		Support:   total,
	}
	return rep, nil
}

// String は scikit-learn と同じレイアウトのテキスト表を返す
func (r *ClassificationReport) String() string {
	width := len(r.WeightedAvg.Label)
	for _, row := range r.Classes {
		width = max(width, len(row.Label))
	}
	width = max(width, r.Digits)

	var b strings.Builder
	fmt.Fprintf(&b, "%*s  %9s %9s %9s %9s\n\n", width, "", "precision", "recall", "f1-score", "support")
	writeRow := func(row ReportRow) {
		fmt.Fprintf(&b, "%*s  %9.*f %9.*f %9.*f %9d\n", width, row.Label,
			r.Digits, row.Precision, r.Digits, row.Recall, r.Digits, row.F1, row.Support)
	}
	for _, row := range r.Classes {
		writeRow(row)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%*s  %9s %9s %9.*f %9d\n", width, "accuracy", "", "", r.Digits, r.Accuracy, r.MacroAvg.Support)
	writeRow(r.MacroAvg)
	writeRow(r.WeightedAvg)
	return b.String()
}
