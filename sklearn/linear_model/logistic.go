// Package linear_model provides a multinomial logistic regression baseline
// for the ensemble comparison.
package linear_model

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/core/model"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/log"
)

func init() {
	gob.Register(&LogisticRegression{})
}

// LogisticRegression implements multinomial logistic regression
// Compatible with scikit-learn's LogisticRegression(solver="lbfgs")
type LogisticRegression struct {
	state *model.StateManager // State management (composition)

	// Hyperparameters
	penalty      string  // Regularization: "l2", "none"
	C            float64 // Inverse regularization strength (1/alpha)
	fitIntercept bool    // Whether to fit intercept
	classWeight  string  // Class weight: "balanced", "none"
	maxIter      int     // Maximum iterations
	tol          float64 // Gradient tolerance for stopping

	// Model parameters
	coef_      [][]float64 // Coefficients (n_classes x n_features)
	intercept_ []float64   // Intercept terms
	classes_   []int       // Unique class labels
	nFeatures_ int         // Number of features
	nIter_     int         // Actual L-BFGS iterations
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		penalty:      "l2",
		C:            1.0,
		fitIntercept: true,
		classWeight:  "none",
		maxIter:      100,
		tol:          1e-4,
	}

	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRPenalty sets the regularization type
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.penalty = penalty
	}
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.C = c
	}
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.fitIntercept = fit
	}
}

// WithLRClassWeight sets class weighting ("balanced" or "none")
func WithLRClassWeight(weight string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.classWeight = weight
	}
}

// WithLRMaxIter sets the maximum number of iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.maxIter = maxIter
	}
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.tol = tol
	}
}

func (lr *LogisticRegression) validate() error {
	switch {
	case lr.penalty != "l2" && lr.penalty != "none":
		return errors.NewValidationError("penalty", "must be l2 or none", lr.penalty)
	case lr.C <= 0:
		return errors.NewValidationError("C", "must be positive", lr.C)
	case lr.classWeight != "balanced" && lr.classWeight != "none" && lr.classWeight != "":
		return errors.NewValidationError("class_weight", "must be balanced or none", lr.classWeight)
	case lr.maxIter < 1:
		return errors.NewValidationError("max_iter", "must be at least 1", lr.maxIter)
	case lr.tol <= 0:
		return errors.NewValidationError("tol", "must be positive", lr.tol)
	}
	return nil
}

// Fit minimises the L2-penalised softmax cross-entropy with L-BFGS.
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	if err := lr.validate(); err != nil {
		return err
	}
	nSamples, nFeatures, labels, err := model.CheckXY("LogisticRegression.Fit", X, y)
	if err != nil {
		return err
	}

	lr.classes_ = model.UniqueSorted(labels)
	K := len(lr.classes_)
	if K < 2 {
		return errors.NewValueError("LogisticRegression.Fit", fmt.Sprintf("needs samples of at least 2 classes in the data, but the data contains only one class: %d", lr.classes_[0]))
	}
	classIndex := make(map[int]int, K)
	for i, c := range lr.classes_ {
		classIndex[c] = i
	}
	yIdx := make([]int, nSamples)
	counts := make([]float64, K)
	for i, l := range labels {
		yIdx[i] = classIndex[l]
		counts[yIdx[i]]++
	}
	sampleWeight := make([]float64, nSamples)
	for i := range sampleWeight {
		sampleWeight[i] = 1
		if lr.classWeight == "balanced" {
			sampleWeight[i] = float64(nSamples) / (float64(K) * counts[yIdx[i]])
		}
	}

	start := time.Now()
	logger := log.GetLoggerWithName("linear_model").With(log.ModelNameKey, "LogisticRegression")

	obj := &softmaxObjective{
		X:            mat.DenseCopyOf(X),
		yIdx:         yIdx,
		weight:       sampleWeight,
		nClasses:     K,
		fitIntercept: lr.fitIntercept,
	}
	if lr.penalty == "l2" {
		obj.alpha = 1 / (lr.C * float64(nSamples))
	}

	x0 := make([]float64, K*(nFeatures+1))
	settings := &optimize.Settings{
		GradientThreshold: lr.tol,
		MajorIterations:   lr.maxIter,
	}
	result, err := optimize.Minimize(optimize.Problem{Func: obj.Func, Grad: obj.Grad}, x0, settings, &optimize.LBFGS{})
	if result == nil {
		return errors.NewModelError("LogisticRegression.Fit", "optimization failed", err)
	}
	if err := errors.CheckNumericalStability("LogisticRegression.Fit", result.X, result.MajorIterations); err != nil {
		return err
	}
	if result.Status == optimize.IterationLimit {
		errors.Warn(errors.NewConvergenceWarning("LogisticRegression", result.MajorIterations, "lbfgs reached max_iter; increase max_iter or scale the data"))
	} else if err != nil {
		errors.Warn(errors.NewConvergenceWarning("LogisticRegression", result.MajorIterations, err.Error()))
	}

	lr.coef_ = make([][]float64, K)
	lr.intercept_ = make([]float64, K)
	for k := 0; k < K; k++ {
		off := k * (nFeatures + 1)
		lr.coef_[k] = append([]float64(nil), result.X[off:off+nFeatures]...)
		lr.intercept_[k] = result.X[off+nFeatures]
	}
	lr.nFeatures_ = nFeatures
	lr.nIter_ = result.MajorIterations
	lr.state.SetDimensions(nFeatures, nSamples)
	lr.state.SetFitted()

	logger.Info("Training completed",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		log.ClassesKey, K,
		log.IterationKey, lr.nIter_,
		log.LossKey, result.F,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// softmaxObjective is the mean weighted cross-entropy plus an L2 term on
// the coefficients. Parameters are laid out class by class, each block
// holding nFeatures coefficients followed by the intercept.
type softmaxObjective struct {
	X            *mat.Dense
	yIdx         []int
	weight       []float64
	nClasses     int
	fitIntercept bool
	alpha        float64
}

func (o *softmaxObjective) scores(params []float64, i int, dst []float64) {
	_, p := o.X.Dims()
	row := o.X.RawRowView(i)
	for k := 0; k < o.nClasses; k++ {
		off := k * (p + 1)
		z := 0.0
		if o.fitIntercept {
			z = params[off+p]
		}
		for j, v := range row {
			z += v * params[off+j]
		}
		dst[k] = z
	}
}

func (o *softmaxObjective) Func(params []float64) float64 {
	n, p := o.X.Dims()
	z := make([]float64, o.nClasses)
	loss, wsum := 0.0, 0.0
	for i := 0; i < n; i++ {
		o.scores(params, i, z)
		loss += o.weight[i] * (errors.LogSumExp(z) - z[o.yIdx[i]])
		wsum += o.weight[i]
	}
	loss /= wsum
	for k := 0; k < o.nClasses; k++ {
		for j := 0; j < p; j++ {
			w := params[k*(p+1)+j]
			loss += 0.5 * o.alpha * w * w
		}
	}
	return loss
}

func (o *softmaxObjective) Grad(grad, params []float64) {
	n, p := o.X.Dims()
	for i := range grad {
		grad[i] = 0
	}
	z := make([]float64, o.nClasses)
	wsum := 0.0
	for i := 0; i < n; i++ {
		wsum += o.weight[i]
	}
	for i := 0; i < n; i++ {
		o.scores(params, i, z)
		errors.Softmax(z, z)
		row := o.X.RawRowView(i)
		for k := 0; k < o.nClasses; k++ {
			r := z[k]
			if o.yIdx[i] == k {
				r--
			}
			r *= o.weight[i] / wsum
			off := k * (p + 1)
			for j, v := range row {
				grad[off+j] += r * v
			}
			if o.fitIntercept {
				grad[off+p] += r
			}
		}
	}
	for k := 0; k < o.nClasses; k++ {
		for j := 0; j < p; j++ {
			grad[k*(p+1)+j] += o.alpha * params[k*(p+1)+j]
		}
	}
}

// DecisionFunction returns the linear class scores.
func (lr *LogisticRegression) DecisionFunction(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.RequireFitted("LogisticRegression", "DecisionFunction"); err != nil {
		return nil, err
	}
	if X == nil {
		return nil, errors.NewModelError("LogisticRegression.DecisionFunction", "empty data", errors.ErrEmptyData)
	}
	nSamples, nFeatures := X.Dims()
	if nFeatures != lr.nFeatures_ {
		return nil, errors.NewDimensionError("LogisticRegression.DecisionFunction", lr.nFeatures_, nFeatures, 1)
	}

	scores := mat.NewDense(nSamples, len(lr.classes_), nil)
	for i := 0; i < nSamples; i++ {
		for k := range lr.classes_ {
			z := lr.intercept_[k]
			for j := 0; j < nFeatures; j++ {
				z += X.At(i, j) * lr.coef_[k][j]
			}
			scores.Set(i, k, z)
		}
	}
	return scores, nil
}

// Predict makes predictions for input data
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	scores, err := lr.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	nSamples, _ := scores.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	row := make([]float64, len(lr.classes_))
	for i := 0; i < nSamples; i++ {
		mat.Row(row, i, scores)
		predictions.Set(i, 0, float64(lr.classes_[model.Argmax(row)]))
	}
	return predictions, nil
}

// PredictProba returns probability estimates for each class
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	scores, err := lr.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	d := scores.(*mat.Dense)
	nSamples, _ := d.Dims()
	for i := 0; i < nSamples; i++ {
		row := d.RawRowView(i)
		errors.Softmax(row, row)
	}
	return d, nil
}

// Score returns the mean accuracy on the given test data and labels
func (lr *LogisticRegression) Score(X, y mat.Matrix) float64 {
	return model.ScoreAccuracy(lr, X, y)
}

// Classes returns the sorted class labels seen during Fit.
func (lr *LogisticRegression) Classes() []int {
	return append([]int(nil), lr.classes_...)
}

// Coef returns the fitted coefficients, one row per class.
func (lr *LogisticRegression) Coef() [][]float64 {
	return lr.coef_
}

// Intercept returns the fitted intercepts.
func (lr *LogisticRegression) Intercept() []float64 {
	return lr.intercept_
}

// NIter returns the number of optimizer iterations used by the last Fit.
func (lr *LogisticRegression) NIter() int {
	return lr.nIter_
}

// GetFeatureImportances returns the mean absolute coefficient per feature,
// normalised to sum 1.
func (lr *LogisticRegression) GetFeatureImportances() []float64 {
	if len(lr.coef_) == 0 {
		return nil
	}
	imp := make([]float64, lr.nFeatures_)
	total := 0.0
	for _, row := range lr.coef_ {
		for j, w := range row {
			imp[j] += math.Abs(w)
			total += math.Abs(w)
		}
	}
	if total > 0 {
		for j := range imp {
			imp[j] /= total
		}
	}
	return imp
}

// GetParams returns the model hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.penalty,
		"C":             lr.C,
		"fit_intercept": lr.fitIntercept,
		"class_weight":  lr.classWeight,
		"max_iter":      lr.maxIter,
		"tol":           lr.tol,
	}
}

// SetParams sets the model hyperparameters
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "penalty":
			lr.penalty, err = model.StringParam(key, value)
		case "C":
			lr.C, err = model.FloatParam(key, value)
		case "fit_intercept":
			lr.fitIntercept, err = model.BoolParam(key, value)
		case "class_weight":
			if value == nil {
				lr.classWeight = "none"
			} else {
				lr.classWeight, err = model.StringParam(key, value)
			}
		case "max_iter":
			lr.maxIter, err = model.IntParam(key, value)
		case "tol":
			lr.tol, err = model.FloatParam(key, value)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if err != nil {
			return err
		}
	}
	return lr.validate()
}

func (lr *LogisticRegression) String() string {
	return fmt.Sprintf("LogisticRegression(penalty=%s, C=%g, max_iter=%d)", lr.penalty, lr.C, lr.maxIter)
}

type logisticSnapshot struct {
	State        model.ModelState
	Penalty      string
	C            float64
	FitIntercept bool
	ClassWeight  string
	MaxIter      int
	Tol          float64
	Coef         [][]float64
	Intercept    []float64
	Classes      []int
	NFeatures    int
	NIter        int
}

// GobEncode implements gob.GobEncoder.
func (lr *LogisticRegression) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(logisticSnapshot{
		State:        lr.state.GetState(),
		Penalty:      lr.penalty,
		C:            lr.C,
		FitIntercept: lr.fitIntercept,
		ClassWeight:  lr.classWeight,
		MaxIter:      lr.maxIter,
		Tol:          lr.tol,
		Coef:         lr.coef_,
		Intercept:    lr.intercept_,
		Classes:      lr.classes_,
		NFeatures:    lr.nFeatures_,
		NIter:        lr.nIter_,
	})
	return buf.Bytes(), err
}

// GobDecode implements gob.GobDecoder.
func (lr *LogisticRegression) GobDecode(data []byte) error {
	var s logisticSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return err
	}
	lr.state = model.NewStateManager()
	lr.state.SetState(s.State)
	lr.penalty = s.Penalty
	lr.C = s.C
	lr.fitIntercept = s.FitIntercept
	lr.classWeight = s.ClassWeight
	lr.maxIter = s.MaxIter
	lr.tol = s.Tol
	lr.coef_ = s.Coef
	lr.intercept_ = s.Intercept
	lr.classes_ = s.Classes
	lr.nFeatures_ = s.NFeatures
	lr.nIter_ = s.NIter
	return nil
}
