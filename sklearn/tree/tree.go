// Package tree implements a CART decision tree classifier.
//
// The tree is grown greedily with Gini or entropy impurity. It is used on
// its own and as the base learner of the forests in sklearn/ensemble.
package tree

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/core/model"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
)

// Node is one node of a fitted tree. Leaves have Left == Right == -1.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	// Value holds the weighted class distribution, normalised to sum 1.
	Value    []float64
	Impurity float64
	NSamples int
	Depth    int
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return n.Left < 0 }

// DecisionTreeClassifier is a CART classifier compatible with scikit-learn's
// DecisionTreeClassifier.
type DecisionTreeClassifier struct {
	state *model.StateManager

	// Hyperparameters
	criterion       string  // "gini" or "entropy"
	splitter        string  // "best" or "random"
	maxDepth        int     // -1 means unlimited
	minSamplesSplit int     // minimum samples to split an internal node
	minSamplesLeaf  int     // minimum samples in each leaf
	maxFeatures     int     // features tried per split, 0 means all
	minImpurityDec  float64 // minimum weighted impurity decrease
	randomState     int64   // -1 means non-deterministic

	// Fitted attributes
	classes_            []int
	nClasses_           int
	nFeatures_          int
	nodes_              []Node
	featureImportances_ []float64

	rng *rand.Rand
}

// Option configures a DecisionTreeClassifier.
type Option func(*DecisionTreeClassifier)

// WithCriterion sets the impurity criterion ("gini" or "entropy").
func WithCriterion(criterion string) Option {
	return func(dt *DecisionTreeClassifier) { dt.criterion = criterion }
}

// WithSplitter sets the split strategy ("best" or "random").
func WithSplitter(splitter string) Option {
	return func(dt *DecisionTreeClassifier) { dt.splitter = splitter }
}

// WithMaxDepth limits the depth of the tree. -1 means unlimited.
func WithMaxDepth(depth int) Option {
	return func(dt *DecisionTreeClassifier) { dt.maxDepth = depth }
}

// WithMinSamplesSplit sets the minimum number of samples to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum number of samples in a leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesLeaf = n }
}

// WithMaxFeatures sets how many randomly chosen features are tried per split.
func WithMaxFeatures(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.maxFeatures = n }
}

// WithMinImpurityDecrease sets the minimum impurity decrease for a split.
func WithMinImpurityDecrease(v float64) Option {
	return func(dt *DecisionTreeClassifier) { dt.minImpurityDec = v }
}

// WithRandomState sets the seed used for feature sampling and random splits.
func WithRandomState(seed int64) Option {
	return func(dt *DecisionTreeClassifier) { dt.randomState = seed }
}

// NewDecisionTreeClassifier creates a tree with scikit-learn defaults.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       "gini",
		splitter:        "best",
		maxDepth:        -1,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		randomState:     -1,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

func (dt *DecisionTreeClassifier) validate() error {
	switch {
	case dt.criterion != "gini" && dt.criterion != "entropy":
		return errors.NewValidationError("criterion", "must be gini or entropy", dt.criterion)
	case dt.splitter != "best" && dt.splitter != "random":
		return errors.NewValidationError("splitter", "must be best or random", dt.splitter)
	case dt.minSamplesSplit < 2:
		return errors.NewValidationError("min_samples_split", "must be at least 2", dt.minSamplesSplit)
	case dt.minSamplesLeaf < 1:
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", dt.minSamplesLeaf)
	case dt.maxDepth == 0 || dt.maxDepth < -1:
		return errors.NewValidationError("max_depth", "must be positive or -1", dt.maxDepth)
	case dt.maxFeatures < 0:
		return errors.NewValidationError("max_features", "must be non-negative", dt.maxFeatures)
	}
	return nil
}

// Fit builds the tree from the training set (X, y).
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	return dt.FitWeighted(X, y, nil)
}

// FitWeighted builds the tree with per-sample weights. Samples with zero
// weight are ignored for splitting but their labels still count as classes,
// so bootstrap replicas keep the full class set.
func (dt *DecisionTreeClassifier) FitWeighted(X, y mat.Matrix, sampleWeight []float64) error {
	if err := dt.validate(); err != nil {
		return err
	}
	nSamples, nFeatures, labels, err := model.CheckXY("DecisionTreeClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if sampleWeight != nil && len(sampleWeight) != nSamples {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", nSamples, len(sampleWeight), 0)
	}

	dt.classes_ = model.UniqueSorted(labels)
	dt.nClasses_ = len(dt.classes_)
	dt.nFeatures_ = nFeatures
	classIndex := make(map[int]int, dt.nClasses_)
	for i, c := range dt.classes_ {
		classIndex[c] = i
	}

	if dt.randomState >= 0 {
		dt.rng = rand.New(rand.NewSource(dt.randomState))
	} else {
		dt.rng = rand.New(rand.NewSource(rand.Int63()))
	}

	b := &builder{
		dt:         dt,
		X:          mat.DenseCopyOf(X),
		yIdx:       make([]int, nSamples),
		weight:     make([]float64, nSamples),
		importance: make([]float64, nFeatures),
	}
	samples := make([]int, 0, nSamples)
	for i := 0; i < nSamples; i++ {
		b.yIdx[i] = classIndex[labels[i]]
		w := 1.0
		if sampleWeight != nil {
			w = sampleWeight[i]
		}
		if w < 0 {
			return errors.NewValidationError("sample_weight", "must be non-negative", w)
		}
		b.weight[i] = w
		if w > 0 {
			samples = append(samples, i)
		}
	}
	if len(samples) == 0 {
		return errors.NewModelError("DecisionTreeClassifier.Fit", "all sample weights are zero", errors.ErrEmptyData)
	}

	dt.nodes_ = dt.nodes_[:0]
	b.grow(samples, 0)

	total := 0.0
	for _, v := range b.importance {
		total += v
	}
	dt.featureImportances_ = b.importance
	if total > 0 {
		for j := range dt.featureImportances_ {
			dt.featureImportances_[j] /= total
		}
	}

	dt.state.SetDimensions(nFeatures, nSamples)
	dt.state.SetFitted()
	return nil
}

// builder holds the working state while growing one tree.
type builder struct {
	dt         *DecisionTreeClassifier
	X          *mat.Dense
	yIdx       []int
	weight     []float64
	importance []float64
}

type split struct {
	feature   int
	threshold float64
	gain      float64
	left      []int
	right     []int
	impLeft   float64
	impRight  float64
	wLeft     float64
	wRight    float64
}

// grow appends the subtree for samples and returns its node index.
func (b *builder) grow(samples []int, depth int) int {
	dt := b.dt
	counts, wTotal := b.classCounts(samples)
	impurity := dt.impurity(counts, wTotal)

	value := make([]float64, dt.nClasses_)
	for k, c := range counts {
		value[k] = c / wTotal
	}

	idx := len(dt.nodes_)
	dt.nodes_ = append(dt.nodes_, Node{
		Feature:  -1,
		Left:     -1,
		Right:    -1,
		Value:    value,
		Impurity: impurity,
		NSamples: len(samples),
		Depth:    depth,
	})

	if impurity <= 0 ||
		len(samples) < dt.minSamplesSplit ||
		len(samples) < 2*dt.minSamplesLeaf ||
		(dt.maxDepth > 0 && depth >= dt.maxDepth) {
		return idx
	}

	best, ok := b.findSplit(samples, impurity, wTotal)
	if !ok {
		return idx
	}
	// impurity decrease weighted by the node's share of the root weight
	decrease := wTotal*impurity - best.wLeft*best.impLeft - best.wRight*best.impRight
	if dt.minImpurityDec > 0 && decrease/b.rootWeight() < dt.minImpurityDec {
		return idx
	}
	b.importance[best.feature] += decrease

	left := b.grow(best.left, depth+1)
	right := b.grow(best.right, depth+1)
	n := &dt.nodes_[idx]
	n.Feature = best.feature
	n.Threshold = best.threshold
	n.Left = left
	n.Right = right
	return idx
}

func (b *builder) rootWeight() float64 {
	w := 0.0
	for _, v := range b.weight {
		w += v
	}
	return w
}

func (b *builder) classCounts(samples []int) ([]float64, float64) {
	counts := make([]float64, b.dt.nClasses_)
	total := 0.0
	for _, i := range samples {
		counts[b.yIdx[i]] += b.weight[i]
		total += b.weight[i]
	}
	return counts, total
}

// candidateFeatures returns the features examined at one node.
func (b *builder) candidateFeatures() []int {
	nFeatures := b.dt.nFeatures_
	k := b.dt.maxFeatures
	if k <= 0 || k >= nFeatures {
		all := make([]int, nFeatures)
		for j := range all {
			all[j] = j
		}
		return all
	}
	return b.dt.rng.Perm(nFeatures)[:k]
}

func (b *builder) findSplit(samples []int, parentImp, wTotal float64) (split, bool) {
	dt := b.dt
	best := split{gain: math.Inf(-1)}
	found := false

	sorted := make([]int, len(samples))
	for _, f := range b.candidateFeatures() {
		copy(sorted, samples)
		sort.SliceStable(sorted, func(a, c int) bool {
			return b.X.At(sorted[a], f) < b.X.At(sorted[c], f)
		})
		lo, hi := b.X.At(sorted[0], f), b.X.At(sorted[len(sorted)-1], f)
		if lo == hi {
			continue
		}

		var thresholds []float64
		if dt.splitter == "random" {
			t := lo + dt.rng.Float64()*(hi-lo)
			if t == hi {
				t = lo
			}
			thresholds = []float64{t}
		}

		leftCounts := make([]float64, dt.nClasses_)
		rightCounts, _ := b.classCounts(sorted)
		wLeft := 0.0
		for pos := 0; pos < len(sorted)-1; pos++ {
			i := sorted[pos]
			leftCounts[b.yIdx[i]] += b.weight[i]
			rightCounts[b.yIdx[i]] -= b.weight[i]
			wLeft += b.weight[i]

			v, next := b.X.At(i, f), b.X.At(sorted[pos+1], f)
			if v == next {
				continue
			}
			nLeft := pos + 1
			if nLeft < dt.minSamplesLeaf || len(sorted)-nLeft < dt.minSamplesLeaf {
				continue
			}

			threshold := v + (next-v)/2
			if threshold == next {
				threshold = v
			}
			if thresholds != nil {
				// random splitter: only the position holding the drawn threshold
				if !(v <= thresholds[0] && thresholds[0] < next) {
					continue
				}
				threshold = thresholds[0]
			}

			wRight := wTotal - wLeft
			impL := dt.impurity(leftCounts, wLeft)
			impR := dt.impurity(rightCounts, wRight)
			gain := wTotal*parentImp - wLeft*impL - wRight*impR
			if gain > best.gain {
				best = split{
					feature:   f,
					threshold: threshold,
					gain:      gain,
					impLeft:   impL,
					impRight:  impR,
					wLeft:     wLeft,
					wRight:    wRight,
				}
				found = true
			}
		}
	}
	if !found {
		return best, false
	}

	for _, i := range samples {
		if b.X.At(i, best.feature) <= best.threshold {
			best.left = append(best.left, i)
		} else {
			best.right = append(best.right, i)
		}
	}
	return best, true
}

func (dt *DecisionTreeClassifier) impurity(counts []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	switch dt.criterion {
	case "entropy":
		h := 0.0
		for _, c := range counts {
			if c > 0 {
				p := c / total
				h -= p * math.Log2(p)
			}
		}
		return h
	default:
		g := 1.0
		for _, c := range counts {
			p := c / total
			g -= p * p
		}
		return g
	}
}

// leaf returns the leaf reached by row i of X.
func (dt *DecisionTreeClassifier) leaf(X mat.Matrix, i int) *Node {
	n := &dt.nodes_[0]
	for !n.IsLeaf() {
		if X.At(i, n.Feature) <= n.Threshold {
			n = &dt.nodes_[n.Left]
		} else {
			n = &dt.nodes_[n.Right]
		}
	}
	return n
}

func (dt *DecisionTreeClassifier) checkPredict(op string, X mat.Matrix) (int, error) {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", op); err != nil {
		return 0, err
	}
	if X == nil {
		return 0, errors.NewModelError("DecisionTreeClassifier."+op, "empty data", errors.ErrEmptyData)
	}
	r, c := X.Dims()
	if r == 0 {
		return 0, errors.NewModelError("DecisionTreeClassifier."+op, "empty data", errors.ErrEmptyData)
	}
	if err := dt.state.CheckFeatures("DecisionTreeClassifier."+op, c); err != nil {
		return 0, err
	}
	return r, nil
}

// Predict returns the most probable class for each row of X (n × 1).
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, err := dt.checkPredict("Predict", X)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, float64(dt.classes_[model.Argmax(dt.leaf(X, i).Value)]))
	}
	return out, nil
}

// PredictProba returns class probabilities (n × n_classes) in Classes() order.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	r, err := dt.checkPredict("PredictProba", X)
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(r, dt.nClasses_, nil)
	for i := 0; i < r; i++ {
		out.SetRow(i, dt.leaf(X, i).Value)
	}
	return out, nil
}

// Score returns the mean accuracy on (X, y), or 0 if prediction fails.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	return model.ScoreAccuracy(dt, X, y)
}

// Classes returns the sorted class labels seen during Fit.
func (dt *DecisionTreeClassifier) Classes() []int {
	return append([]int(nil), dt.classes_...)
}

// GetFeatureImportances returns the normalised total impurity decrease per
// feature. All zeros when the tree is a single leaf.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), dt.featureImportances_...)
}

// GetDepth returns the depth of the deepest leaf (root = 0).
func (dt *DecisionTreeClassifier) GetDepth() int {
	depth := 0
	for i := range dt.nodes_ {
		if dt.nodes_[i].Depth > depth {
			depth = dt.nodes_[i].Depth
		}
	}
	return depth
}

// GetNLeaves returns the number of leaves.
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	n := 0
	for i := range dt.nodes_ {
		if dt.nodes_[i].IsLeaf() {
			n++
		}
	}
	return n
}

// Nodes returns the fitted nodes; index 0 is the root.
func (dt *DecisionTreeClassifier) Nodes() []Node {
	return dt.nodes_
}

// GetParams returns the hyperparameters.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":             dt.criterion,
		"splitter":              dt.splitter,
		"max_depth":             dt.maxDepth,
		"min_samples_split":     dt.minSamplesSplit,
		"min_samples_leaf":      dt.minSamplesLeaf,
		"max_features":          dt.maxFeatures,
		"min_impurity_decrease": dt.minImpurityDec,
		"random_state":          dt.randomState,
	}
}

// SetParams sets hyperparameters by scikit-learn name.
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "criterion":
			dt.criterion, err = model.StringParam(key, value)
		case "splitter":
			dt.splitter, err = model.StringParam(key, value)
		case "max_depth":
			if value == nil {
				dt.maxDepth = -1
			} else {
				dt.maxDepth, err = model.IntParam(key, value)
			}
		case "min_samples_split":
			dt.minSamplesSplit, err = model.IntParam(key, value)
		case "min_samples_leaf":
			dt.minSamplesLeaf, err = model.IntParam(key, value)
		case "max_features":
			dt.maxFeatures, err = model.IntParam(key, value)
		case "min_impurity_decrease":
			dt.minImpurityDec, err = model.FloatParam(key, value)
		case "random_state":
			var seed int
			seed, err = model.IntParam(key, value)
			dt.randomState = int64(seed)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if err != nil {
			return err
		}
	}
	return dt.validate()
}

func (dt *DecisionTreeClassifier) String() string {
	return fmt.Sprintf("DecisionTreeClassifier(criterion=%s, max_depth=%d, min_samples_split=%d, min_samples_leaf=%d)",
		dt.criterion, dt.maxDepth, dt.minSamplesSplit, dt.minSamplesLeaf)
}

// treeSnapshot is the gob representation of a DecisionTreeClassifier.
type treeSnapshot struct {
	State              model.ModelState
	Criterion          string
	Splitter           string
	MaxDepth           int
	MinSamplesSplit    int
	MinSamplesLeaf     int
	MaxFeatures        int
	MinImpurityDec     float64
	RandomState        int64
	Classes            []int
	NFeatures          int
	Nodes              []Node
	FeatureImportances []float64
}

// GobEncode implements gob.GobEncoder.
func (dt *DecisionTreeClassifier) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(treeSnapshot{
		State:              dt.state.GetState(),
		Criterion:          dt.criterion,
		Splitter:           dt.splitter,
		MaxDepth:           dt.maxDepth,
		MinSamplesSplit:    dt.minSamplesSplit,
		MinSamplesLeaf:     dt.minSamplesLeaf,
		MaxFeatures:        dt.maxFeatures,
		MinImpurityDec:     dt.minImpurityDec,
		RandomState:        dt.randomState,
		Classes:            dt.classes_,
		NFeatures:          dt.nFeatures_,
		Nodes:              dt.nodes_,
		FeatureImportances: dt.featureImportances_,
	})
	return buf.Bytes(), err
}

// GobDecode implements gob.GobDecoder.
func (dt *DecisionTreeClassifier) GobDecode(data []byte) error {
	var s treeSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return err
	}
	dt.state = model.NewStateManager()
	dt.state.SetState(s.State)
	dt.criterion = s.Criterion
	dt.splitter = s.Splitter
	dt.maxDepth = s.MaxDepth
	dt.minSamplesSplit = s.MinSamplesSplit
	dt.minSamplesLeaf = s.MinSamplesLeaf
	dt.maxFeatures = s.MaxFeatures
	dt.minImpurityDec = s.MinImpurityDec
	dt.randomState = s.RandomState
	dt.classes_ = s.Classes
	dt.nClasses_ = len(s.Classes)
	dt.nFeatures_ = s.NFeatures
	dt.nodes_ = s.Nodes
	dt.featureImportances_ = s.FeatureImportances
	return nil
}
