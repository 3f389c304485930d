package models

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/core/model"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/log"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/preprocessing"
)

// BundleVersion is written into the metadata of every saved bundle.
const BundleVersion = "1"

// Bundle is a trained classifier plus what is needed to use it on raw data.
type Bundle struct {
	Model        model.Classifier
	Preprocessor *preprocessing.DataPreprocessor
	Metadata     model.Metadata
}

// NewBundle wraps a fitted classifier.
func NewBundle(name, kind string, clf model.Classifier, p *preprocessing.DataPreprocessor) *Bundle {
	b := &Bundle{
		Model:        clf,
		Preprocessor: p,
		Metadata: model.Metadata{
			Name:            name,
			Kind:            kind,
			Version:         BundleVersion,
			Hyperparameters: Hyperparameters(clf),
			TrainedAt:       time.Now().UTC(),
			IsFitted:        true,
		},
	}
	if p != nil {
		b.Metadata.ClassNames = p.ClassNames()
	}
	return b
}

// BundlePath returns the file a model named name is saved to inside dir,
// e.g. "Random Forest" -> dir/random_forest.gob.
func BundlePath(dir, name string) string {
	return filepath.Join(dir, Slug(name)+".gob")
}

// Slug lower-cases name and replaces runs of non alphanumeric characters with "_".
func Slug(name string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// SaveBundle writes b to path with gob.
func SaveBundle(b *Bundle, path string) error {
	if b == nil || b.Model == nil {
		return errors.NewValueError("models.SaveBundle", "bundle has no model")
	}
	if err := b.Metadata.Validate(); err != nil {
		return err
	}
	if err := model.SaveModel(b, path); err != nil {
		return errors.Wrapf(err, "save bundle %s", b.Metadata.Name)
	}
	log.GetLoggerWithName("models").Info("Model saved",
		log.ModelNameKey, b.Metadata.Name,
		log.OperationKey, log.OperationSave,
		log.PathKey, path,
	)
	return nil
}

// LoadBundle reads a bundle written by SaveBundle.
func LoadBundle(path string) (*Bundle, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(err, "load bundle %s", path)
	}
	b := &Bundle{}
	if err := model.LoadModel(b, path); err != nil {
		return nil, errors.Wrapf(err, "load bundle %s", path)
	}
	if b.Model == nil {
		return nil, errors.NewValueError("models.LoadBundle", path+" contains no model")
	}
	if b.Preprocessor != nil && b.Preprocessor.FeatureSelector != nil {
		b.Preprocessor.FeatureSelector.ScoreFunc = preprocessing.FClassif
	}
	return b, nil
}

// PredictRaw runs raw feature rows through the preprocessor and the model
// and returns decoded class names.
func (b *Bundle) PredictRaw(X mat.Matrix) ([]string, error) {
	if b.Preprocessor == nil {
		return nil, errors.NewValueError("Bundle.PredictRaw", "bundle has no preprocessor")
	}
	Xt, err := b.Preprocessor.Transform(X)
	if err != nil {
		return nil, err
	}
	pred, err := b.Model.Predict(Xt)
	if err != nil {
		return nil, err
	}
	return b.Decode(pred)
}

// Decode maps predicted label codes (n×1) to class names.
func (b *Bundle) Decode(pred mat.Matrix) ([]string, error) {
	r, _ := pred.Dims()
	codes := make([]int, r)
	for i := range codes {
		codes[i] = int(pred.At(i, 0))
	}
	if b.Preprocessor != nil {
		return b.Preprocessor.InverseTransformTarget(codes)
	}
	names := make([]string, r)
	for i, c := range codes {
		if c < 0 || c >= len(b.Metadata.ClassNames) {
			return nil, errors.NewValueError("Bundle.Decode", "label code out of range")
		}
		names[i] = b.Metadata.ClassNames[c]
	}
	return names, nil
}
