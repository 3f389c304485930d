package preprocessing

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
)

func TestStandardScaler(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 5,
		2, 5,
		3, 5,
		4, 5,
	})

	s := NewStandardScalerDefault()
	out, err := s.FitTransform(X)
	if err != nil {
		t.Fatal(err)
	}

	if math.Abs(s.Mean[0]-2.5) > 1e-12 {
		t.Errorf("mean = %v, want 2.5", s.Mean[0])
	}
	wantStd := math.Sqrt(1.25)
	if math.Abs(s.Scale[0]-wantStd) > 1e-12 {
		t.Errorf("scale = %v, want %v", s.Scale[0], wantStd)
	}
	if s.Scale[1] != 1.0 {
		t.Errorf("constant column should have scale 1, got %v", s.Scale[1])
	}
	if got := out.At(0, 0); math.Abs(got-(1-2.5)/wantStd) > 1e-12 {
		t.Errorf("scaled value = %v", got)
	}
	if out.At(2, 1) != 0 {
		t.Errorf("constant column should become 0, got %v", out.At(2, 1))
	}

	back, err := s.InverseTransform(out)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.EqualApprox(back, X, 1e-12) {
		t.Errorf("inverse transform mismatch:\n%v", mat.Formatted(back))
	}
}

func TestScalerErrors(t *testing.T) {
	X := mat.NewDense(2, 2, []float64{1, 2, 3, 4})

	for _, s := range []Scaler{NewStandardScalerDefault(), NewMinMaxScalerDefault()} {
		_, err := s.Transform(X)
		var nf *errors.NotFittedError
		if !errors.As(err, &nf) {
			t.Errorf("%T: expected NotFittedError, got %v", s, err)
		}

		if err := s.Fit(X); err != nil {
			t.Fatal(err)
		}
		_, err = s.Transform(mat.NewDense(2, 3, nil))
		var dim *errors.DimensionError
		if !errors.As(err, &dim) {
			t.Errorf("%T: expected DimensionError, got %v", s, err)
		}
	}

	if _, err := NewScaler("robust"); err == nil {
		t.Error("expected ValidationError for unknown scaler")
	}
}

func TestMinMaxScaler(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		0, 10,
		5, 10,
		10, 10,
	})

	m := NewMinMaxScaler([2]float64{-1, 1})
	out, err := m.FitTransform(X)
	if err != nil {
		t.Fatal(err)
	}

	want := []float64{-1, 0, 1}
	for i, w := range want {
		if math.Abs(out.At(i, 0)-w) > 1e-12 {
			t.Errorf("row %d = %v, want %v", i, out.At(i, 0), w)
		}
	}

	back, err := m.InverseTransform(out)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.EqualApprox(back, X, 1e-12) {
		t.Errorf("inverse transform mismatch:\n%v", mat.Formatted(back))
	}

	if err := NewMinMaxScaler([2]float64{1, 1}).Fit(X); err == nil {
		t.Error("expected error for empty feature range")
	}
}
