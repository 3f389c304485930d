package ensemble

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/core/model"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/log"
)

// NamedClassifier is one member of a VotingClassifier.
type NamedClassifier struct {
	Name  string
	Model model.Classifier
}

// VotingClassifier combines already configured classifiers by majority
// vote ("hard") or by averaging predicted probabilities ("soft").
type VotingClassifier struct {
	state *model.StateManager

	estimators []NamedClassifier
	voting     string
	weights    []float64

	classes_   []int
	nFeatures_ int
}

// VotingOption configures a VotingClassifier.
type VotingOption func(*VotingClassifier)

// WithVoting selects "hard" or "soft" voting (default "hard").
func WithVoting(voting string) VotingOption {
	return func(v *VotingClassifier) { v.voting = voting }
}

// WithWeights weights the votes or probabilities of each estimator.
func WithWeights(weights []float64) VotingOption {
	return func(v *VotingClassifier) { v.weights = weights }
}

// NewVotingClassifier wraps estimators. They are fitted by Fit.
func NewVotingClassifier(estimators []NamedClassifier, opts ...VotingOption) *VotingClassifier {
	v := &VotingClassifier{
		state:      model.NewStateManager(),
		estimators: estimators,
		voting:     "hard",
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *VotingClassifier) validate() error {
	if len(v.estimators) == 0 {
		return errors.NewValidationError("estimators", "at least one estimator is required", 0)
	}
	seen := make(map[string]bool, len(v.estimators))
	for _, e := range v.estimators {
		if e.Model == nil {
			return errors.NewValidationError("estimators", "estimator is nil", e.Name)
		}
		if seen[e.Name] {
			return errors.NewValidationError("estimators", "names must be unique", e.Name)
		}
		seen[e.Name] = true
	}
	if v.voting != "hard" && v.voting != "soft" {
		return errors.NewValidationError("voting", "must be hard or soft", v.voting)
	}
	if v.weights != nil && len(v.weights) != len(v.estimators) {
		return errors.NewValidationError("weights", fmt.Sprintf("expected %d weights", len(v.estimators)), len(v.weights))
	}
	return nil
}

func (v *VotingClassifier) weight(i int) float64 {
	if v.weights == nil {
		return 1
	}
	return v.weights[i]
}

// Fit fits every member concurrently.
func (v *VotingClassifier) Fit(X, y mat.Matrix) error {
	if err := v.validate(); err != nil {
		return err
	}
	nSamples, nFeatures, labels, err := model.CheckXY("VotingClassifier.Fit", X, y)
	if err != nil {
		return err
	}

	logger := log.GetLoggerWithName("ensemble").With(log.ModelNameKey, "VotingClassifier")
	logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.EstimatorsKey, len(v.estimators),
		"voting", v.voting,
	)

	var g errgroup.Group
	for _, e := range v.estimators {
		g.Go(func() error {
			return errors.SafeExecute("VotingClassifier.Fit["+e.Name+"]", func() error {
				if err := e.Model.Fit(X, y); err != nil {
					return errors.Wrapf(err, "estimator %q", e.Name)
				}
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	v.classes_ = model.UniqueSorted(labels)
	v.nFeatures_ = nFeatures
	v.state.SetDimensions(nFeatures, nSamples)
	v.state.SetFitted()
	return nil
}

// PredictProba returns the weighted mean of member probabilities. Only
// available with soft voting.
func (v *VotingClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := v.state.RequireFitted("VotingClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	if v.voting != "soft" {
		return nil, errors.NewValueError("VotingClassifier.PredictProba", "predict_proba is not available when voting=\"hard\"")
	}
	return v.softProba(X)
}

func (v *VotingClassifier) softProba(X mat.Matrix) (*mat.Dense, error) {
	if X == nil {
		return nil, errors.NewModelError("VotingClassifier.PredictProba", "empty data", errors.ErrEmptyData)
	}
	r, _ := X.Dims()
	K := len(v.classes_)
	out := mat.NewDense(r, K, nil)
	total := 0.0
	for m, e := range v.estimators {
		p, err := e.Model.PredictProba(X)
		if err != nil {
			return nil, errors.Wrapf(err, "estimator %q", e.Name)
		}
		cols := v.columnIndex(e.Model.Classes())
		w := v.weight(m)
		total += w
		for i := 0; i < r; i++ {
			for j, k := range cols {
				if k >= 0 {
					out.Set(i, k, out.At(i, k)+w*p.At(i, j))
				}
			}
		}
	}
	if total > 0 {
		out.Scale(1/total, out)
	}
	return out, nil
}

// columnIndex maps a member's class list onto columns of the ensemble's.
func (v *VotingClassifier) columnIndex(memberClasses []int) []int {
	idx := make([]int, len(memberClasses))
	for j, c := range memberClasses {
		idx[j] = -1
		for k, vc := range v.classes_ {
			if vc == c {
				idx[j] = k
				break
			}
		}
	}
	return idx
}

// Predict returns the majority (or highest mean probability) class.
// Ties go to the smallest class label.
func (v *VotingClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := v.state.RequireFitted("VotingClassifier", "Predict"); err != nil {
		return nil, err
	}
	if v.voting == "soft" {
		p, err := v.softProba(X)
		if err != nil {
			return nil, err
		}
		return argmaxClasses(p, v.classes_), nil
	}

	if X == nil {
		return nil, errors.NewModelError("VotingClassifier.Predict", "empty data", errors.ErrEmptyData)
	}
	r, _ := X.Dims()
	votes := mat.NewDense(r, len(v.classes_), nil)
	for m, e := range v.estimators {
		pred, err := e.Model.Predict(X)
		if err != nil {
			return nil, errors.Wrapf(err, "estimator %q", e.Name)
		}
		w := v.weight(m)
		for i := 0; i < r; i++ {
			for k, c := range v.classes_ {
				if int(pred.At(i, 0)) == c {
					votes.Set(i, k, votes.At(i, k)+w)
					break
				}
			}
		}
	}
	return argmaxClasses(votes, v.classes_), nil
}

// Score returns the mean accuracy on (X, y).
func (v *VotingClassifier) Score(X, y mat.Matrix) float64 {
	return model.ScoreAccuracy(v, X, y)
}

// Classes returns the sorted class labels seen during Fit.
func (v *VotingClassifier) Classes() []int {
	return append([]int(nil), v.classes_...)
}

// Estimators returns the members.
func (v *VotingClassifier) Estimators() []NamedClassifier {
	return v.estimators
}

// GetFeatureImportances averages the importances of members that expose them.
func (v *VotingClassifier) GetFeatureImportances() []float64 {
	var out []float64
	for _, e := range v.estimators {
		fi, ok := e.Model.(model.FeatureImportancer)
		if !ok {
			continue
		}
		imp := fi.GetFeatureImportances()
		if out == nil {
			out = make([]float64, len(imp))
		}
		for j := range imp {
			if j < len(out) {
				out[j] += imp[j]
			}
		}
	}
	normalize(out)
	return out
}

// GetParams returns the hyperparameters.
func (v *VotingClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"voting":  v.voting,
		"weights": v.weights,
	}
}

// SetParams sets voting and weights.
func (v *VotingClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "voting":
			s, err := model.StringParam(key, value)
			if err != nil {
				return err
			}
			v.voting = s
		case "weights":
			w, ok := value.([]float64)
			if !ok && value != nil {
				return errors.NewValidationError(key, "must be []float64", value)
			}
			v.weights = w
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	return v.validate()
}

func (v *VotingClassifier) String() string {
	names := make([]string, len(v.estimators))
	for i, e := range v.estimators {
		names[i] = e.Name
	}
	return fmt.Sprintf("VotingClassifier(estimators=[%s], voting=%s)", strings.Join(names, ", "), v.voting)
}

type votingSnapshot struct {
	State      model.ModelState
	Estimators []NamedClassifier
	Voting     string
	Weights    []float64
	Classes    []int
	NFeatures  int
}

// GobEncode implements gob.GobEncoder. Member types must be registered with gob.
func (v *VotingClassifier) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(votingSnapshot{
		State:      v.state.GetState(),
		Estimators: v.estimators,
		Voting:     v.voting,
		Weights:    v.weights,
		Classes:    v.classes_,
		NFeatures:  v.nFeatures_,
	})
	return buf.Bytes(), err
}

// GobDecode implements gob.GobDecoder.
func (v *VotingClassifier) GobDecode(data []byte) error {
	var s votingSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return err
	}
	v.state = model.NewStateManager()
	v.state.SetState(s.State)
	v.estimators = s.Estimators
	v.voting = s.Voting
	v.weights = s.Weights
	v.classes_ = s.Classes
	v.nFeatures_ = s.NFeatures
	return nil
}
