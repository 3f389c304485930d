// Package ensemble implements tree ensembles for multiclass classification:
// random forests, extremely randomized trees, softmax gradient boosting and
// a voting meta-classifier.
package ensemble

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/core/model"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/core/parallel"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/log"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/sklearn/tree"
)

func init() {
	gob.Register(&RandomForestClassifier{})
	gob.Register(&ExtraTreesClassifier{})
	gob.Register(&GradientBoostingClassifier{})
	gob.Register(&VotingClassifier{})
	gob.Register(&tree.DecisionTreeClassifier{})
}

// forest is the shared implementation of RandomForestClassifier and
// ExtraTreesClassifier. They differ only in splitter and bootstrap defaults.
type forest struct {
	name  string
	state *model.StateManager

	// Hyperparameters
	nEstimators     int
	criterion       string
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string // "sqrt", "log2", "all" or an integer
	bootstrap       bool
	splitter        string
	randomState     int64
	nJobs           int

	// Fitted attributes
	estimators_ []*tree.DecisionTreeClassifier
	classes_    []int
	nFeatures_  int
}

// ForestOption configures RandomForestClassifier and ExtraTreesClassifier.
type ForestOption func(*forest)

// WithNEstimators sets the number of trees (default 100).
func WithNEstimators(n int) ForestOption {
	return func(f *forest) { f.nEstimators = n }
}

// WithCriterion sets the split criterion of every tree ("gini" or "entropy").
func WithCriterion(criterion string) ForestOption {
	return func(f *forest) { f.criterion = criterion }
}

// WithMaxDepth limits tree depth. -1 means unlimited.
func WithMaxDepth(depth int) ForestOption {
	return func(f *forest) { f.maxDepth = depth }
}

// WithMinSamplesSplit sets min_samples_split of every tree.
func WithMinSamplesSplit(n int) ForestOption {
	return func(f *forest) { f.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets min_samples_leaf of every tree.
func WithMinSamplesLeaf(n int) ForestOption {
	return func(f *forest) { f.minSamplesLeaf = n }
}

// WithMaxFeatures sets the features tried per split: "sqrt", "log2", "all"
// or an integer count.
func WithMaxFeatures(maxFeatures string) ForestOption {
	return func(f *forest) { f.maxFeatures = maxFeatures }
}

// WithBootstrap enables or disables bootstrap sampling.
func WithBootstrap(bootstrap bool) ForestOption {
	return func(f *forest) { f.bootstrap = bootstrap }
}

// WithRandomState sets the seed from which every tree seed is derived.
func WithRandomState(seed int64) ForestOption {
	return func(f *forest) { f.randomState = seed }
}

// WithNJobs sets the number of trees fitted concurrently. -1 uses all CPUs.
func WithNJobs(n int) ForestOption {
	return func(f *forest) { f.nJobs = n }
}

func newForest(name, splitter string, bootstrap bool, opts []ForestOption) forest {
	f := forest{
		name:            name,
		state:           model.NewStateManager(),
		nEstimators:     100,
		criterion:       "gini",
		maxDepth:        -1,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     "sqrt",
		bootstrap:       bootstrap,
		splitter:        splitter,
		randomState:     -1,
		nJobs:           -1,
	}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// RandomForestClassifier averages bootstrapped CART trees with random
// feature subsets at every split.
type RandomForestClassifier struct {
	forest
}

// NewRandomForestClassifier creates a random forest with scikit-learn defaults.
func NewRandomForestClassifier(opts ...ForestOption) *RandomForestClassifier {
	return &RandomForestClassifier{forest: newForest("RandomForestClassifier", "best", true, opts)}
}

// ExtraTreesClassifier averages extremely randomized trees: thresholds are
// drawn at random and, by default, every tree sees the whole training set.
type ExtraTreesClassifier struct {
	forest
}

// NewExtraTreesClassifier creates an extra-trees ensemble with scikit-learn defaults.
func NewExtraTreesClassifier(opts ...ForestOption) *ExtraTreesClassifier {
	return &ExtraTreesClassifier{forest: newForest("ExtraTreesClassifier", "random", false, opts)}
}

func (f *forest) validate() error {
	if f.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be at least 1", f.nEstimators)
	}
	if _, err := resolveMaxFeatures(f.maxFeatures, 1); err != nil {
		return err
	}
	return nil
}

// resolveMaxFeatures turns the max_features setting into a feature count.
func resolveMaxFeatures(setting string, nFeatures int) (int, error) {
	var n int
	switch setting {
	case "sqrt":
		n = int(math.Sqrt(float64(nFeatures)))
	case "log2":
		n = int(math.Log2(float64(nFeatures)))
	case "all", "":
		n = nFeatures
	default:
		v, err := strconv.Atoi(setting)
		if err != nil || v < 1 {
			return 0, errors.NewValidationError("max_features", "must be sqrt, log2, all or a positive integer", setting)
		}
		n = v
	}
	return max(1, min(n, nFeatures)), nil
}

// Fit grows nEstimators trees concurrently.
func (f *forest) Fit(X, y mat.Matrix) error {
	if err := f.validate(); err != nil {
		return err
	}
	nSamples, nFeatures, labels, err := model.CheckXY(f.name+".Fit", X, y)
	if err != nil {
		return err
	}
	maxFeatures, err := resolveMaxFeatures(f.maxFeatures, nFeatures)
	if err != nil {
		return err
	}

	start := time.Now()
	logger := log.GetLoggerWithName("ensemble").With(log.ModelNameKey, f.name)
	logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		log.EstimatorsKey, f.nEstimators,
	)

	// 各木のシードは学習前にまとめて決め、並列度に依存しないようにする
	seed := f.randomState
	if seed < 0 {
		seed = rand.Int63()
	}
	rng := rand.New(rand.NewSource(seed))
	seeds := make([]int64, f.nEstimators)
	for i := range seeds {
		seeds[i] = rng.Int63()
	}

	Xd := mat.DenseCopyOf(X)
	trees := make([]*tree.DecisionTreeClassifier, f.nEstimators)
	errs := make([]error, f.nEstimators)
	parallel.ParallelizeN(f.nEstimators, f.nJobs, func(lo, hi int) {
		for t := lo; t < hi; t++ {
			dt := tree.NewDecisionTreeClassifier(
				tree.WithCriterion(f.criterion),
				tree.WithSplitter(f.splitter),
				tree.WithMaxDepth(f.maxDepth),
				tree.WithMinSamplesSplit(f.minSamplesSplit),
				tree.WithMinSamplesLeaf(f.minSamplesLeaf),
				tree.WithMaxFeatures(maxFeatures),
				tree.WithRandomState(seeds[t]),
			)
			var weights []float64
			if f.bootstrap {
				weights = bootstrapWeights(nSamples, rand.New(rand.NewSource(seeds[t])))
			}
			errs[t] = errors.SafeExecute(fmt.Sprintf("%s tree %d", f.name, t), func() error {
				return dt.FitWeighted(Xd, y, weights)
			})
			trees[t] = dt
		}
	})
	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	f.estimators_ = trees
	f.classes_ = model.UniqueSorted(labels)
	f.nFeatures_ = nFeatures
	f.state.SetDimensions(nFeatures, nSamples)
	f.state.SetFitted()

	logger.Info("Training completed", log.DurationMsKey, time.Since(start).Milliseconds())
	return nil
}

// bootstrapWeights draws n samples with replacement and returns the draw counts.
func bootstrapWeights(n int, rng *rand.Rand) []float64 {
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		w[rng.Intn(n)]++
	}
	return w
}

// PredictProba averages the class probabilities of all trees.
func (f *forest) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := f.state.RequireFitted(f.name, "PredictProba"); err != nil {
		return nil, err
	}
	if X == nil {
		return nil, errors.NewModelError(f.name+".PredictProba", "empty data", errors.ErrEmptyData)
	}
	if _, c := X.Dims(); c != f.nFeatures_ {
		return nil, errors.NewDimensionError(f.name+".PredictProba", f.nFeatures_, c, 1)
	}

	var sum *mat.Dense
	for _, dt := range f.estimators_ {
		p, err := dt.PredictProba(X)
		if err != nil {
			return nil, err
		}
		if sum == nil {
			sum = mat.DenseCopyOf(p)
			continue
		}
		sum.Add(sum, p)
	}
	sum.Scale(1/float64(len(f.estimators_)), sum)
	return sum, nil
}

// Predict returns the class with the highest mean probability.
func (f *forest) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := f.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return argmaxClasses(proba, f.classes_), nil
}

// Score returns the mean accuracy on (X, y).
func (f *forest) Score(X, y mat.Matrix) float64 {
	return model.ScoreAccuracy(f, X, y)
}

// Classes returns the sorted class labels seen during Fit.
func (f *forest) Classes() []int {
	return append([]int(nil), f.classes_...)
}

// Estimators returns the fitted trees.
func (f *forest) Estimators() []*tree.DecisionTreeClassifier {
	return f.estimators_
}

// GetFeatureImportances returns the mean tree importance, renormalised to sum 1.
func (f *forest) GetFeatureImportances() []float64 {
	if len(f.estimators_) == 0 {
		return nil
	}
	out := make([]float64, f.nFeatures_)
	for _, dt := range f.estimators_ {
		for j, v := range dt.GetFeatureImportances() {
			out[j] += v
		}
	}
	normalize(out)
	return out
}

// GetParams returns the hyperparameters.
func (f *forest) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      f.nEstimators,
		"criterion":         f.criterion,
		"max_depth":         f.maxDepth,
		"min_samples_split": f.minSamplesSplit,
		"min_samples_leaf":  f.minSamplesLeaf,
		"max_features":      f.maxFeatures,
		"bootstrap":         f.bootstrap,
		"random_state":      f.randomState,
		"n_jobs":            f.nJobs,
	}
}

// SetParams sets hyperparameters by scikit-learn name.
func (f *forest) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "n_estimators":
			f.nEstimators, err = model.IntParam(key, value)
		case "criterion":
			f.criterion, err = model.StringParam(key, value)
		case "max_depth":
			if value == nil {
				f.maxDepth = -1
			} else {
				f.maxDepth, err = model.IntParam(key, value)
			}
		case "min_samples_split":
			f.minSamplesSplit, err = model.IntParam(key, value)
		case "min_samples_leaf":
			f.minSamplesLeaf, err = model.IntParam(key, value)
		case "max_features":
			if n, intErr := model.IntParam(key, value); intErr == nil {
				f.maxFeatures = strconv.Itoa(n)
			} else {
				f.maxFeatures, err = model.StringParam(key, value)
			}
		case "bootstrap":
			f.bootstrap, err = model.BoolParam(key, value)
		case "random_state":
			var seed int
			seed, err = model.IntParam(key, value)
			f.randomState = int64(seed)
		case "n_jobs":
			f.nJobs, err = model.IntParam(key, value)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if err != nil {
			return err
		}
	}
	return f.validate()
}

func (f *forest) String() string {
	return fmt.Sprintf("%s(n_estimators=%d, max_depth=%d, max_features=%s, bootstrap=%t)",
		f.name, f.nEstimators, f.maxDepth, f.maxFeatures, f.bootstrap)
}

type forestSnapshot struct {
	Name            string
	State           model.ModelState
	NEstimators     int
	Criterion       string
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     string
	Bootstrap       bool
	Splitter        string
	RandomState     int64
	NJobs           int
	Estimators      []*tree.DecisionTreeClassifier
	Classes         []int
	NFeatures       int
}

// GobEncode implements gob.GobEncoder.
func (f *forest) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(forestSnapshot{
		Name:            f.name,
		State:           f.state.GetState(),
		NEstimators:     f.nEstimators,
		Criterion:       f.criterion,
		MaxDepth:        f.maxDepth,
		MinSamplesSplit: f.minSamplesSplit,
		MinSamplesLeaf:  f.minSamplesLeaf,
		MaxFeatures:     f.maxFeatures,
		Bootstrap:       f.bootstrap,
		Splitter:        f.splitter,
		RandomState:     f.randomState,
		NJobs:           f.nJobs,
		Estimators:      f.estimators_,
		Classes:         f.classes_,
		NFeatures:       f.nFeatures_,
	})
	return buf.Bytes(), err
}

// GobDecode implements gob.GobDecoder.
func (f *forest) GobDecode(data []byte) error {
	var s forestSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return err
	}
	f.name = s.Name
	f.state = model.NewStateManager()
	f.state.SetState(s.State)
	f.nEstimators = s.NEstimators
	f.criterion = s.Criterion
	f.maxDepth = s.MaxDepth
	f.minSamplesSplit = s.MinSamplesSplit
	f.minSamplesLeaf = s.MinSamplesLeaf
	f.maxFeatures = s.MaxFeatures
	f.bootstrap = s.Bootstrap
	f.splitter = s.Splitter
	f.randomState = s.RandomState
	f.nJobs = s.NJobs
	f.estimators_ = s.Estimators
	f.classes_ = s.Classes
	f.nFeatures_ = s.NFeatures
	return nil
}

// argmaxClasses maps each probability row to the class with the highest value.
func argmaxClasses(proba mat.Matrix, classes []int) *mat.Dense {
	r, _ := proba.Dims()
	out := mat.NewDense(r, 1, nil)
	row := make([]float64, len(classes))
	for i := 0; i < r; i++ {
		mat.Row(row, i, proba)
		out.Set(i, 0, float64(classes[model.Argmax(row)]))
	}
	return out
}

// normalize scales v in place to sum 1 when its sum is positive.
func normalize(v []float64) {
	total := 0.0
	for _, x := range v {
		total += x
	}
	if total <= 0 {
		return
	}
	for i := range v {
		v[i] /= total
	}
}
