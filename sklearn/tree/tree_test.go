package tree

import (
	"bytes"
	"encoding/gob"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
)

func separableData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(6, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		2, 2,
		2, 3,
		3, 2,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})
	return X, y
}

func threeClassData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(9, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		3, 3,
		3, 4,
		4, 3,
		6, 6,
		6, 7,
		7, 6,
	})
	y := mat.NewDense(9, 1, []float64{0, 0, 0, 1, 1, 1, 2, 2, 2})
	return X, y
}

func TestDecisionTreeClassifier_FitPredict(t *testing.T) {
	X, y := separableData()

	tests := []struct {
		name        string
		opts        []Option
		checkUnseen bool
	}{
		{"gini", []Option{WithCriterion("gini"), WithMaxDepth(5)}, true},
		{"entropy", []Option{WithCriterion("entropy"), WithMaxDepth(3)}, true},
		{"random splitter", []Option{WithSplitter("random"), WithRandomState(7)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dt := NewDecisionTreeClassifier(tt.opts...)
			if err := dt.Fit(X, y); err != nil {
				t.Fatalf("Fit: %v", err)
			}
			if score := dt.Score(X, y); score != 1.0 {
				t.Errorf("training accuracy = %v, want 1", score)
			}
			if !tt.checkUnseen {
				return
			}

			XTest := mat.NewDense(2, 2, []float64{0.2, 0.3, 2.5, 2.5})
			pred, err := dt.Predict(XTest)
			if err != nil {
				t.Fatal(err)
			}
			if pred.At(0, 0) != 0 || pred.At(1, 0) != 1 {
				t.Errorf("unseen predictions = [%v %v], want [0 1]", pred.At(0, 0), pred.At(1, 0))
			}
		})
	}
}

func TestDecisionTreeClassifier_XORLike(t *testing.T) {
	X := mat.NewDense(8, 2, []float64{
		0.0, 0.0,
		0.0, 0.1,
		0.1, 1.0,
		0.0, 0.9,
		1.0, 0.0,
		0.9, 0.0,
		1.0, 1.0,
		0.9, 0.9,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 1, 1, 1, 1, 0, 0})

	dt := NewDecisionTreeClassifier(WithMaxDepth(5), WithMinSamplesLeaf(1))
	if err := dt.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if score := dt.Score(X, y); score != 1.0 {
		t.Errorf("XOR-like training accuracy = %v, want 1", score)
	}
}

func TestDecisionTreeClassifier_Multiclass(t *testing.T) {
	X, y := threeClassData()

	dt := NewDecisionTreeClassifier()
	if err := dt.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if dt.nClasses_ != 3 {
		t.Errorf("nClasses_ = %d, want 3", dt.nClasses_)
	}

	proba, err := dt.PredictProba(X)
	if err != nil {
		t.Fatal(err)
	}
	rows, cols := proba.Dims()
	if cols != 3 {
		t.Fatalf("proba has %d columns, want 3", cols)
	}
	for i := 0; i < rows; i++ {
		row := mat.Row(nil, i, proba)
		sum, best := 0.0, 0
		for j, p := range row {
			if p < 0 || p > 1 {
				t.Errorf("proba(%d,%d) = %v out of range", i, j, p)
			}
			sum += p
			if p > row[best] {
				best = j
			}
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("row %d sums to %v", i, sum)
		}
		if best != int(y.At(i, 0)) {
			t.Errorf("row %d: argmax %d, label %v", i, best, y.At(i, 0))
		}
	}
}

func TestDecisionTreeClassifier_NonContiguousLabels(t *testing.T) {
	X, _ := separableData()
	y := mat.NewDense(6, 1, []float64{3, 3, 3, 7, 7, 7})

	dt := NewDecisionTreeClassifier()
	if err := dt.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if got := dt.Classes(); len(got) != 2 || got[0] != 3 || got[1] != 7 {
		t.Errorf("Classes() = %v, want [3 7]", got)
	}
	if score := dt.Score(X, y); score != 1 {
		t.Errorf("score = %v", score)
	}
}

func TestDecisionTreeClassifier_FeatureImportance(t *testing.T) {
	X := mat.NewDense(8, 3, []float64{
		0, 0, 0,
		0, 1, 1,
		0, 0, 1,
		0, 1, 0,
		1, 0, 0,
		1, 1, 1,
		1, 0, 1,
		1, 1, 0,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})

	dt := NewDecisionTreeClassifier()
	if err := dt.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	imp := dt.GetFeatureImportances()
	if len(imp) != 3 {
		t.Fatalf("got %d importances, want 3", len(imp))
	}
	if imp[0] != 1 || imp[1] != 0 || imp[2] != 0 {
		t.Errorf("importances = %v, want [1 0 0]", imp)
	}
}

func TestDecisionTreeClassifier_Constraints(t *testing.T) {
	X := mat.NewDense(16, 2, nil)
	y := mat.NewDense(16, 1, nil)
	for i := 0; i < 16; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i%4))
		y.Set(i, 0, float64(i%2))
	}

	shallow := NewDecisionTreeClassifier(WithMaxDepth(2))
	if err := shallow.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if d := shallow.GetDepth(); d > 2 {
		t.Errorf("depth %d exceeds max_depth=2", d)
	}

	constrained := NewDecisionTreeClassifier(WithMinSamplesSplit(5), WithMinSamplesLeaf(4))
	if err := constrained.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if n := constrained.GetNLeaves(); n > 4 {
		t.Errorf("%d leaves with min_samples_leaf=4 on 16 samples", n)
	}
	for _, n := range constrained.Nodes() {
		if n.IsLeaf() && n.NSamples < 4 {
			t.Errorf("leaf with %d samples", n.NSamples)
		}
	}
}

func TestDecisionTreeClassifier_SampleWeights(t *testing.T) {
	X, y := separableData()

	// 重み0のサンプルは分割に使われないが、クラスは保持される
	w := []float64{1, 1, 1, 0, 0, 0}
	dt := NewDecisionTreeClassifier()
	if err := dt.FitWeighted(X, y, w); err != nil {
		t.Fatal(err)
	}
	if len(dt.Classes()) != 2 {
		t.Errorf("classes = %v, want both labels", dt.Classes())
	}
	if dt.GetNLeaves() != 1 {
		t.Errorf("only one class carries weight, want a single leaf, got %d", dt.GetNLeaves())
	}
	proba, _ := dt.PredictProba(X)
	if proba.At(5, 0) != 1 || proba.At(5, 1) != 0 {
		t.Errorf("proba row = %v", mat.Row(nil, 5, proba))
	}

	if err := dt.FitWeighted(X, y, []float64{1}); err == nil {
		t.Error("expected DimensionError for short weights")
	}
}

func TestDecisionTreeClassifier_GetSetParams(t *testing.T) {
	dt := NewDecisionTreeClassifier()

	params := dt.GetParams()
	if params["criterion"].(string) != "gini" {
		t.Errorf("default criterion = %v", params["criterion"])
	}
	if params["min_samples_split"].(int) != 2 {
		t.Errorf("default min_samples_split = %v", params["min_samples_split"])
	}

	err := dt.SetParams(map[string]interface{}{
		"criterion":         "entropy",
		"max_depth":         5,
		"min_samples_split": 4,
		"min_samples_leaf":  2.0,
	})
	if err != nil {
		t.Fatal(err)
	}
	if dt.criterion != "entropy" || dt.maxDepth != 5 || dt.minSamplesSplit != 4 || dt.minSamplesLeaf != 2 {
		t.Errorf("params not applied: %s", dt)
	}

	var valErr *errors.ValidationError
	if err := dt.SetParams(map[string]interface{}{"criterion": "mse"}); !errors.As(err, &valErr) {
		t.Errorf("expected ValidationError for criterion, got %v", err)
	}
	if err := dt.SetParams(map[string]interface{}{"bogus": 1}); err == nil {
		t.Error("expected error for unknown parameter")
	}
}

func TestDecisionTreeClassifier_Errors(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	X := mat.NewDense(2, 2, []float64{1, 2, 3, 4})

	var nf *errors.NotFittedError
	if _, err := dt.Predict(X); !errors.As(err, &nf) {
		t.Errorf("Predict before Fit: %v", err)
	}
	if _, err := dt.PredictProba(X); !errors.As(err, &nf) {
		t.Errorf("PredictProba before Fit: %v", err)
	}
	if dt.Score(X, mat.NewDense(2, 1, nil)) != 0 {
		t.Error("Score before Fit should be 0")
	}

	if err := dt.Fit(X, mat.NewDense(3, 1, nil)); err == nil {
		t.Error("expected DimensionError for mismatched y")
	}
	if err := dt.Fit(X, mat.NewDense(2, 1, []float64{0, 1.5})); err == nil {
		t.Error("expected ValueError for fractional labels")
	}

	Xs, ys := separableData()
	if err := dt.Fit(Xs, ys); err != nil {
		t.Fatal(err)
	}
	var dim *errors.DimensionError
	if _, err := dt.Predict(mat.NewDense(1, 3, nil)); !errors.As(err, &dim) {
		t.Errorf("expected DimensionError, got %v", err)
	}
}

func TestDecisionTreeClassifier_GobRoundTrip(t *testing.T) {
	X, y := threeClassData()
	dt := NewDecisionTreeClassifier(WithMaxDepth(4))
	if err := dt.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(dt); err != nil {
		t.Fatal(err)
	}
	var loaded DecisionTreeClassifier
	if err := gob.NewDecoder(&buf).Decode(&loaded); err != nil {
		t.Fatal(err)
	}

	want, _ := dt.PredictProba(X)
	got, err := loaded.PredictProba(X)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(want, got) {
		t.Error("decoded tree predicts differently")
	}
	if loaded.GetParams()["max_depth"].(int) != 4 {
		t.Errorf("max_depth lost: %v", loaded.GetParams())
	}
}
