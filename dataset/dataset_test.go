package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
)

const sample = `id,Gender,Age,Height,label
1,Female,21,1.62,Normal
2,Male,23,1.80,Obese
3,Male,27,1.75,Normal
4,Female,22,1.55,Over
`

func TestReadCSV(t *testing.T) {
	var warned []error
	errors.SetWarningHandler(func(w error) { warned = append(warned, w) })
	defer errors.SetWarningHandler(func(error) {})

	ds, err := ReadCSV(strings.NewReader(sample), CSVOptions{Target: "label", Drop: []string{"id"}})
	require.NoError(t, err)

	wantNames := []string{"Gender=Female", "Gender=Male", "Age", "Height"}
	if diff := cmp.Diff(wantNames, ds.FeatureNames); diff != "" {
		t.Errorf("feature names mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"Normal", "Obese", "Normal", "Over"}, ds.Target)
	assert.Equal(t, []float64{0, 1, 23, 1.80}, ds.X.RawRowView(1))
	assert.Len(t, warned, 1, "one categorical column")
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		opts CSVOptions
	}{
		{"missing target", sample, CSVOptions{Target: "class"}},
		{"header only", "a,label\n", CSVOptions{Target: "label"}},
		{"missing value", "a,label\n1,x\n,y\n", CSVOptions{Target: "label"}},
		{"empty target", "a,label\n1,x\n2,\n", CSVOptions{Target: "label"}},
		{"no features", "id,label\n1,x\n", CSVOptions{Target: "label", Drop: []string{"id"}}},
		{"ragged", "a,label\n1\n", CSVOptions{Target: "label"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.data), tt.opts)
			assert.Error(t, err)
		})
	}
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("a;b;y\n1;2;p\n3;4;q\n"), 0o644))

	ds, err := LoadCSV(path, CSVOptions{Target: "y", Comma: ';'})
	require.NoError(t, err)
	r, c := ds.X.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, c)

	_, err = LoadCSV(filepath.Join(t.TempDir(), "missing.csv"), CSVOptions{Target: "y"})
	assert.Error(t, err)
}

func TestSplit(t *testing.T) {
	n := 40
	X := mat.NewDense(n, 2, nil)
	target := make([]string, n)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		if i%5 == 0 {
			target[i] = "rare"
		} else {
			target[i] = "common"
		}
	}
	ds := &Dataset{X: X, Target: target, FeatureNames: []string{"a", "b"}}

	train, test, err := ds.Split(0.25, true, 42)
	require.NoError(t, err)
	rTrain, _ := train.X.Dims()
	rTest, _ := test.X.Dims()
	assert.Equal(t, 30, rTrain)
	assert.Equal(t, 10, rTest)

	rare := 0
	for _, l := range test.Target {
		if l == "rare" {
			rare++
		}
	}
	assert.Equal(t, 2, rare, "8 of 40 rows are rare, so 2 of 10 test rows")

	// 行と目的変数の対応が保たれる
	for i := 0; i < rTest; i++ {
		orig := int(test.X.At(i, 0))
		assert.Equal(t, target[orig], test.Target[i])
	}
	assert.Equal(t, ds.FeatureNames, test.FeatureNames)

	_, _, err = ds.Split(1.5, false, 0)
	assert.Error(t, err)
}

func TestLabelColumnCodes(t *testing.T) {
	codes := []int{2, 0, 1}
	assert.Equal(t, codes, Codes(LabelColumn(codes)))
}

func TestProcessedRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "processed")
	p := &Processed{
		XTrain:       mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6}),
		XTest:        mat.NewDense(2, 2, []float64{-1, 0.5, 7, 8}),
		YTrain:       []int{0, 1, 2},
		YTest:        []int{2, 0},
		ClassNames:   []string{"a", "b", "c"},
		FeatureNames: []string{"f1", "f3"},
	}
	require.NoError(t, SaveProcessed(dir, p))
	for _, name := range []string{XTrainFile, XTestFile, YTrainFile, YTestFile, MetadataFile} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	got, err := LoadProcessed(dir)
	require.NoError(t, err)
	assert.True(t, mat.Equal(p.XTrain, got.XTrain))
	assert.True(t, mat.Equal(p.XTest, got.XTest))
	assert.Equal(t, p.YTrain, got.YTrain)
	assert.Equal(t, p.YTest, got.YTest)
	assert.Equal(t, p.ClassNames, got.ClassNames)
	assert.Equal(t, p.FeatureNames, got.FeatureNames)

	// metadata.json は無くてもよい
	require.NoError(t, os.Remove(filepath.Join(dir, MetadataFile)))
	got, err = LoadProcessed(dir)
	require.NoError(t, err)
	assert.Nil(t, got.ClassNames)

	// 行数の不一致は検出する
	require.NoError(t, SaveLabels(filepath.Join(dir, YTestFile), []int{1}))
	_, err = LoadProcessed(dir)
	assert.Error(t, err)

	_, err = LoadProcessed(filepath.Join(t.TempDir(), "nothing"))
	assert.Error(t, err)
}
