package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sbinet/npyio/npy"
	"gonum.org/v1/gonum/mat"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/log"
)

// 前処理済みデータのファイル名
const (
	XTrainFile   = "X_train_selected.npy"
	XTestFile    = "X_test_selected.npy"
	YTrainFile   = "y_train_resampled.npy"
	YTestFile    = "y_test.npy"
	MetadataFile = "metadata.json"
)

// Processed is the output of the preprocessing stage.
type Processed struct {
	XTrain *mat.Dense
	XTest  *mat.Dense
	YTrain []int
	YTest  []int

	ClassNames   []string
	FeatureNames []string
}

type processedMetadata struct {
	ClassNames   []string `json:"class_names"`
	FeatureNames []string `json:"feature_names,omitempty"`
}

// SaveProcessed writes p into dir as .npy arrays plus a JSON file with the
// class and feature names.
func SaveProcessed(dir string, p *Processed) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create directory %s", dir)
	}
	if err := SaveMatrix(filepath.Join(dir, XTrainFile), p.XTrain); err != nil {
		return err
	}
	if err := SaveMatrix(filepath.Join(dir, XTestFile), p.XTest); err != nil {
		return err
	}
	if err := SaveLabels(filepath.Join(dir, YTrainFile), p.YTrain); err != nil {
		return err
	}
	if err := SaveLabels(filepath.Join(dir, YTestFile), p.YTest); err != nil {
		return err
	}

	meta, err := json.MarshalIndent(processedMetadata{ClassNames: p.ClassNames, FeatureNames: p.FeatureNames}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal processed metadata")
	}
	if err := os.WriteFile(filepath.Join(dir, MetadataFile), meta, 0o644); err != nil {
		return errors.Wrap(err, "write processed metadata")
	}
	log.GetLoggerWithName("dataset").Info("Processed data saved", log.PathKey, dir, log.OperationKey, log.OperationSave)
	return nil
}

// LoadProcessed reads the arrays written by SaveProcessed. The metadata file
// is optional.
func LoadProcessed(dir string) (*Processed, error) {
	var (
		p   Processed
		err error
	)
	if p.XTrain, err = LoadMatrix(filepath.Join(dir, XTrainFile)); err != nil {
		return nil, err
	}
	if p.XTest, err = LoadMatrix(filepath.Join(dir, XTestFile)); err != nil {
		return nil, err
	}
	if p.YTrain, err = LoadLabels(filepath.Join(dir, YTrainFile)); err != nil {
		return nil, err
	}
	if p.YTest, err = LoadLabels(filepath.Join(dir, YTestFile)); err != nil {
		return nil, err
	}
	if r, _ := p.XTrain.Dims(); r != len(p.YTrain) {
		return nil, errors.NewDimensionError("dataset.LoadProcessed", r, len(p.YTrain), 0)
	}
	if r, _ := p.XTest.Dims(); r != len(p.YTest) {
		return nil, errors.NewDimensionError("dataset.LoadProcessed", r, len(p.YTest), 0)
	}
	_, cTrain := p.XTrain.Dims()
	if _, cTest := p.XTest.Dims(); cTrain != cTest {
		return nil, errors.NewDimensionError("dataset.LoadProcessed", cTrain, cTest, 1)
	}

	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	switch {
	case err == nil:
		var meta processedMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			return nil, errors.Wrap(err, "decode processed metadata")
		}
		p.ClassNames, p.FeatureNames = meta.ClassNames, meta.FeatureNames
	case !os.IsNotExist(err):
		return nil, errors.Wrap(err, "read processed metadata")
	}
	return &p, nil
}

// SaveMatrix writes m as a 2-D float64 .npy array.
func SaveMatrix(path string, m *mat.Dense) error {
	return writeNpy(path, m)
}

// SaveLabels writes label codes as a 1-D int64 .npy array.
func SaveLabels(path string, codes []int) error {
	v := make([]int64, len(codes))
	for i, c := range codes {
		v[i] = int64(c)
	}
	return writeNpy(path, v)
}

func writeNpy(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := npy.Write(f, v); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}

// LoadMatrix reads a 2-D .npy array.
func LoadMatrix(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	var m mat.Dense
	if err := npy.Read(f, &m); err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	r, c := m.Dims()
	if err := errors.CheckMatrix("dataset.LoadMatrix", &m, r, c); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadLabels reads a 1-D integer .npy array. int64, int32 and integral
// float64 arrays are accepted, as written by numpy on different platforms.
func LoadLabels(path string) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	r, err := npy.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	if len(r.Header.Descr.Shape) > 2 || (len(r.Header.Descr.Shape) == 2 && r.Header.Descr.Shape[1] != 1) {
		return nil, errors.NewValueError("dataset.LoadLabels", fmt.Sprintf("%s: expected a 1-D array, got shape %v", path, r.Header.Descr.Shape))
	}

	dtype := r.Header.Descr.Type
	switch {
	case strings.HasSuffix(dtype, "i8"):
		var v []int64
		if err := r.Read(&v); err != nil {
			return nil, errors.Wrapf(err, "read %s", path)
		}
		return convert(v), nil
	case strings.HasSuffix(dtype, "i4"):
		var v []int32
		if err := r.Read(&v); err != nil {
			return nil, errors.Wrapf(err, "read %s", path)
		}
		return convert(v), nil
	case strings.HasSuffix(dtype, "f8"):
		var v []float64
		if err := r.Read(&v); err != nil {
			return nil, errors.Wrapf(err, "read %s", path)
		}
		out := make([]int, len(v))
		for i, x := range v {
			if x != float64(int(x)) || x < 0 {
				return nil, errors.NewValueError("dataset.LoadLabels", fmt.Sprintf("%s: label %g is not a class code", path, x))
			}
			out[i] = int(x)
		}
		return out, nil
	}
	return nil, errors.NewValueError("dataset.LoadLabels", fmt.Sprintf("%s: unsupported dtype %s", path, dtype))
}

func convert[T int32 | int64](v []T) []int {
	out := make([]int, len(v))
	for i, x := range v {
		out[i] = int(x)
	}
	return out
}
