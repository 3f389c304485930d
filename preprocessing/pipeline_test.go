package preprocessing

import (
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/log"
)

// 5列: informative, constant, informative, noise, near-constant
func pipelineFixture() (*mat.Dense, *mat.Dense, []string) {
	XTrain := mat.NewDense(8, 5, []float64{
		1.0, 3, 10, 0.5, 0.00,
		1.2, 3, 11, 0.1, 0.01,
		0.9, 3, 12, 0.9, 0.00,
		1.1, 3, 10, 0.4, 0.01,
		5.0, 3, 30, 0.6, 0.00,
		5.2, 3, 31, 0.2, 0.01,
		4.9, 3, 29, 0.8, 0.00,
		5.1, 3, 32, 0.3, 0.01,
	})
	XTest := mat.NewDense(2, 5, []float64{
		1.0, 3, 11, 0.5, 0.00,
		5.0, 3, 30, 0.5, 0.01,
	})
	y := []string{"low", "low", "low", "low", "high", "high", "high", "high"}
	return XTrain, XTest, y
}

func TestDataPreprocessorPreprocess(t *testing.T) {
	logger, restore := log.UseTestLogger(log.LevelDebug)
	defer restore()

	XTrain, XTest, y := pipelineFixture()
	p := NewDataPreprocessor(WithKBest(2))

	trainOut, testOut, yEnc, err := p.Preprocess(XTrain, XTest, y)
	if err != nil {
		t.Fatal(err)
	}

	_, trainCols := trainOut.Dims()
	testRows, testCols := testOut.Dims()
	if trainCols != 2 || testCols != 2 || testRows != 2 {
		t.Fatalf("train cols %d, test shape (%d,%d)", trainCols, testRows, testCols)
	}

	// "high" < "low"
	if yEnc[0] != 1 || yEnc[4] != 0 {
		t.Errorf("encoded labels = %v", yEnc)
	}

	names, err := p.SelectedFeatures([]string{"a", "const", "b", "noise", "tiny"})
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("selected features = %v, want [a b]", names)
	}

	again, err := p.Transform(XTest)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.EqualApprox(again, testOut, 1e-12) {
		t.Error("Transform must reproduce the test output of Preprocess")
	}

	if !logger.ContainsMessage("Preprocessing completed") {
		t.Error("expected completion log")
	}
}

func TestDataPreprocessorKBestLargerThanFeatures(t *testing.T) {
	XTrain, XTest, y := pipelineFixture()
	p := NewDataPreprocessor() // k_best=50

	trainOut, _, _, err := p.Preprocess(XTrain, XTest, y)
	if err != nil {
		t.Fatal(err)
	}
	// const と tiny は分散フィルタで除かれる
	if _, c := trainOut.Dims(); c != 3 {
		t.Errorf("got %d columns, want 3", c)
	}
	if p.FeatureSelector.K != 3 {
		t.Errorf("k = %d, want min(50, 3)", p.FeatureSelector.K)
	}
}

func TestDataPreprocessorErrors(t *testing.T) {
	XTrain, XTest, y := pipelineFixture()

	p := NewDataPreprocessor()
	if _, err := p.Transform(XTest); err == nil {
		t.Error("expected NotFittedError before Preprocess")
	}

	_, _, _, err := p.Preprocess(XTrain, mat.NewDense(2, 4, nil), y)
	var dim *errors.DimensionError
	if !errors.As(err, &dim) {
		t.Errorf("expected DimensionError for test columns, got %v", err)
	}

	_, _, _, err = p.Preprocess(XTrain, XTest, y[:3])
	if !errors.As(err, &dim) {
		t.Errorf("expected DimensionError for label count, got %v", err)
	}

	_, _, _, err = NewDataPreprocessor(WithScaler("robust")).Preprocess(XTrain, XTest, y)
	var valErr *errors.ValidationError
	if !errors.As(err, &valErr) {
		t.Errorf("expected ValidationError for scaler, got %v", err)
	}
}

func TestDataPreprocessorSaveLoad(t *testing.T) {
	XTrain, XTest, y := pipelineFixture()
	p := NewDataPreprocessor(WithKBest(2), WithScaler("minmax"))
	_, testOut, _, err := p.Preprocess(XTrain, XTest, y)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "models", "preprocessor.gob")
	if err := p.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadDataPreprocessor(path)
	if err != nil {
		t.Fatal(err)
	}
	got, err := loaded.Transform(XTest)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.EqualApprox(got, testOut, 1e-12) {
		t.Error("loaded preprocessor transforms differently")
	}

	labels, err := loaded.InverseTransformTarget([]int{0, 1})
	if err != nil {
		t.Fatal(err)
	}
	if labels[0] != "high" || labels[1] != "low" {
		t.Errorf("labels = %v", labels)
	}
	if _, ok := loaded.Scaler.(*MinMaxScaler); !ok {
		t.Errorf("scaler type = %T, want *MinMaxScaler", loaded.Scaler)
	}
}
