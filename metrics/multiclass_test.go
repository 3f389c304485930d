package metrics

import (
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gonum.org/v1/gonum/mat"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
)

func vec(v ...float64) *mat.VecDense {
	return mat.NewVecDense(len(v), v)
}

var approx = cmpopts.EquateApprox(0, 1e-4)

func threeClassPredictions() (*mat.VecDense, *mat.VecDense) {
	return vec(0, 0, 1, 1, 2, 2), vec(0, 1, 1, 1, 2, 0)
}

func TestConfusionMatrix(t *testing.T) {
	yTrue, yPred := threeClassPredictions()

	cm, labels, err := ConfusionMatrix(yTrue, yPred, nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{0, 1, 2}, labels); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
	want := mat.NewDense(3, 3, []float64{
		1, 1, 0,
		0, 2, 0,
		1, 0, 1,
	})
	if !mat.Equal(want, cm) {
		t.Errorf("confusion matrix =\n%v\nwant\n%v", mat.Formatted(cm), mat.Formatted(want))
	}

	// 指定ラベルにないサンプルは数えない
	cm, _, err = ConfusionMatrix(yTrue, yPred, []int{2, 1})
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(mat.NewDense(2, 2, []float64{1, 0, 0, 2}), cm) {
		t.Errorf("unexpected matrix with explicit labels:\n%v", mat.Formatted(cm))
	}

	if _, _, err := ConfusionMatrix(vec(0, 1), vec(0), nil); err == nil {
		t.Error("expected dimension error")
	}
}

func TestPrecisionRecallFScoreSupport(t *testing.T) {
	yTrue, yPred := threeClassPredictions()

	tests := []struct {
		average string
		want    [3]float64
	}{
		{"macro", [3]float64{0.72222, 0.66667, 0.65556}},
		{"weighted", [3]float64{0.72222, 0.66667, 0.65556}},
		{"micro", [3]float64{0.66667, 0.66667, 0.66667}},
	}
	for _, tt := range tests {
		t.Run(tt.average, func(t *testing.T) {
			r, err := PrecisionRecallFScoreSupport(yTrue, yPred, tt.average, 0)
			if err != nil {
				t.Fatal(err)
			}
			got := [3]float64{r.AvgPrecision, r.AvgRecall, r.AvgF1}
			if diff := cmp.Diff(tt.want, got, approx); diff != "" {
				t.Errorf("averages mismatch (-want +got):\n%s", diff)
			}
		})
	}

	r, err := PrecisionRecallFScoreSupport(yTrue, yPred, "none", 0)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float64{0.5, 2.0 / 3.0, 1}, r.Precision, approx); diff != "" {
		t.Errorf("precision mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{0.5, 1, 0.5}, r.Recall, approx); diff != "" {
		t.Errorf("recall mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{2, 2, 2}, r.Support); diff != "" {
		t.Errorf("support mismatch (-want +got):\n%s", diff)
	}

	if _, err := PrecisionRecallFScoreSupport(yTrue, yPred, "samples", 0); err == nil {
		t.Error("expected error for unsupported average")
	}
	if _, err := Precision(yTrue, yPred, "none", 0); err == nil {
		t.Error("scalar helpers should reject average=none")
	}
}

func TestZeroDivision(t *testing.T) {
	yTrue := vec(0, 0, 1)
	yPred := vec(0, 0, 0)

	var warnings []error
	errors.SetZerologWarnFunc(nil)
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(func(error) {})

	tests := []struct {
		name         string
		zeroDivision float64
		wantClass1   float64
		wantWarnings int
	}{
		{"zero", 0, 0, 0},
		{"one", 1, 1, 0},
		{"warn", ZeroDivisionWarn, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warnings = nil
			r, err := PrecisionRecallFScoreSupport(yTrue, yPred, "none", tt.zeroDivision)
			if err != nil {
				t.Fatal(err)
			}
			if r.Precision[1] != tt.wantClass1 {
				t.Errorf("precision[1] = %v, want %v", r.Precision[1], tt.wantClass1)
			}
			if len(warnings) != tt.wantWarnings {
				t.Errorf("got %d warnings, want %d", len(warnings), tt.wantWarnings)
			}
		})
	}

	p, err := Precision(yTrue, yPred, "weighted", 0)
	if err != nil {
		t.Fatal(err)
	}
	// class0: 2/3 with support 2, class1: 0 with support 1
	if math.Abs(p-4.0/9.0) > 1e-9 {
		t.Errorf("weighted precision = %v, want %v", p, 4.0/9.0)
	}
}

func TestClassificationReport(t *testing.T) {
	yTrue, yPred := threeClassPredictions()

	rep, err := NewClassificationReport(yTrue, yPred, []string{"a", "b", "c"}, 4, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Classes) != 3 || rep.MacroAvg.Support != 6 {
		t.Fatalf("unexpected report: %+v", rep)
	}

	text := rep.String()
	for _, want := range []string{
		"precision    recall  f1-score   support",
		"a     0.5000    0.5000    0.5000         2",
		"accuracy",
		"macro avg",
		"weighted avg",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing %q:\n%s", want, text)
		}
	}

	if _, err := NewClassificationReport(yTrue, yPred, []string{"a"}, 2, 0); err == nil {
		t.Error("expected error for target_names length mismatch")
	}
}

func TestRocAUCOvR(t *testing.T) {
	yTrue := vec(0, 1, 2, 0, 1, 2)
	perfect := mat.NewDense(6, 3, []float64{
		0.8, 0.1, 0.1,
		0.1, 0.8, 0.1,
		0.1, 0.1, 0.8,
		0.7, 0.2, 0.1,
		0.2, 0.7, 0.1,
		0.2, 0.1, 0.7,
	})
	for _, avg := range []string{"macro", "weighted"} {
		got, err := RocAUCOvR(yTrue, perfect, []int{0, 1, 2}, avg)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(got-1) > 1e-12 {
			t.Errorf("%s AUC = %v, want 1", avg, got)
		}
	}

	binary := mat.NewDense(4, 2, []float64{
		0.9, 0.1,
		0.6, 0.4,
		0.65, 0.35,
		0.2, 0.8,
	})
	got, err := RocAUCOvR(vec(0, 0, 1, 1), binary, []int{0, 1}, "macro")
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got-0.75) > 1e-12 {
		t.Errorf("binary AUC = %v, want 0.75", got)
	}

	if _, err := RocAUCOvR(vec(0, 5), binary.Slice(0, 2, 0, 2), []int{0, 1}, "macro"); err == nil {
		t.Error("expected error for unknown label")
	}
}

func TestLogLoss(t *testing.T) {
	uniform := mat.NewDense(3, 3, []float64{
		1, 1, 1,
		1, 1, 1,
		1, 1, 1,
	})
	uniform.Scale(1.0/3.0, uniform)

	got, err := LogLoss(vec(0, 1, 2), uniform, []int{0, 1, 2})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got-math.Log(3)) > 1e-9 {
		t.Errorf("LogLoss = %v, want log(3)", got)
	}

	if _, err := LogLoss(vec(0, 1), uniform, []int{0, 1, 2}); err == nil {
		t.Error("expected row mismatch error")
	}
	if _, err := LogLoss(vec(0, 1, 7), uniform, []int{0, 1, 2}); err == nil {
		t.Error("expected unknown label error")
	}
}

func TestColumnVec(t *testing.T) {
	v, err := ColumnVec(mat.NewDense(3, 1, []float64{1, 2, 3}))
	if err != nil {
		t.Fatal(err)
	}
	if v.Len() != 3 || v.AtVec(2) != 3 {
		t.Errorf("unexpected vector %v", mat.Formatted(v))
	}
	if _, err := ColumnVec(nil); err == nil {
		t.Error("expected error for nil matrix")
	}
}
