package ensemble

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/core/model"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/log"
)

// GradientBoostingClassifier は多クラスソフトマックス損失の勾配ブースティングです。
// 各ラウンドでクラスごとに1本の回帰木を勾配・ヘシアンに当てはめます。
type GradientBoostingClassifier struct {
	state *model.StateManager

	// Hyperparameters
	nEstimators         int
	learningRate        float64
	maxDepth            int
	minSamplesLeaf      int
	subsample           float64
	lambda              float64
	earlyStoppingRounds int
	validationFraction  float64
	tol                 float64
	randomState         int64

	// Fitted attributes
	classes_            []int
	nFeatures_          int
	initScores_         []float64
	trees_              [][]*boostTree // [round][class]
	featureImportances_ []float64
	trainLoss_          []float64
	validLoss_          []float64
	bestIteration_      int
}

// GBOption configures a GradientBoostingClassifier.
type GBOption func(*GradientBoostingClassifier)

// WithGBNEstimators sets the maximum number of boosting rounds (default 100).
func WithGBNEstimators(n int) GBOption {
	return func(gb *GradientBoostingClassifier) { gb.nEstimators = n }
}

// WithLearningRate sets the shrinkage applied to every tree (default 0.1).
func WithLearningRate(lr float64) GBOption {
	return func(gb *GradientBoostingClassifier) { gb.learningRate = lr }
}

// WithGBMaxDepth sets the depth of every regression tree (default 3).
func WithGBMaxDepth(depth int) GBOption {
	return func(gb *GradientBoostingClassifier) { gb.maxDepth = depth }
}

// WithGBMinSamplesLeaf sets the minimum number of samples per leaf.
func WithGBMinSamplesLeaf(n int) GBOption {
	return func(gb *GradientBoostingClassifier) { gb.minSamplesLeaf = n }
}

// WithSubsample sets the fraction of rows drawn without replacement per round.
func WithSubsample(fraction float64) GBOption {
	return func(gb *GradientBoostingClassifier) { gb.subsample = fraction }
}

// WithLambda sets the L2 penalty on leaf values.
func WithLambda(lambda float64) GBOption {
	return func(gb *GradientBoostingClassifier) { gb.lambda = lambda }
}

// WithEarlyStopping holds out validationFraction of the training rows and
// stops after rounds iterations without validation improvement.
func WithEarlyStopping(rounds int, validationFraction float64) GBOption {
	return func(gb *GradientBoostingClassifier) {
		gb.earlyStoppingRounds = rounds
		gb.validationFraction = validationFraction
	}
}

// WithGBRandomState sets the seed for subsampling and the validation split.
func WithGBRandomState(seed int64) GBOption {
	return func(gb *GradientBoostingClassifier) { gb.randomState = seed }
}

// NewGradientBoostingClassifier creates a classifier with scikit-learn defaults.
func NewGradientBoostingClassifier(opts ...GBOption) *GradientBoostingClassifier {
	gb := &GradientBoostingClassifier{
		state:              model.NewStateManager(),
		nEstimators:        100,
		learningRate:       0.1,
		maxDepth:           3,
		minSamplesLeaf:     1,
		subsample:          1.0,
		validationFraction: 0.1,
		tol:                1e-4,
		randomState:        -1,
		bestIteration_:     -1,
	}
	for _, opt := range opts {
		opt(gb)
	}
	return gb
}

func (gb *GradientBoostingClassifier) validate() error {
	switch {
	case gb.nEstimators < 1:
		return errors.NewValidationError("n_estimators", "must be at least 1", gb.nEstimators)
	case gb.learningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be positive", gb.learningRate)
	case gb.maxDepth < 1:
		return errors.NewValidationError("max_depth", "must be at least 1", gb.maxDepth)
	case gb.minSamplesLeaf < 1:
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", gb.minSamplesLeaf)
	case gb.subsample <= 0 || gb.subsample > 1:
		return errors.NewValidationError("subsample", "must be in (0, 1]", gb.subsample)
	case gb.lambda < 0:
		return errors.NewValidationError("lambda", "must be non-negative", gb.lambda)
	case gb.earlyStoppingRounds > 0 && (gb.validationFraction <= 0 || gb.validationFraction >= 1):
		return errors.NewValidationError("validation_fraction", "must be in (0, 1)", gb.validationFraction)
	}
	return nil
}

// Fit runs the boosting rounds.
func (gb *GradientBoostingClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GradientBoostingClassifier.Fit")

	if err := gb.validate(); err != nil {
		return err
	}
	nSamples, nFeatures, labels, err := model.CheckXY("GradientBoostingClassifier.Fit", X, y)
	if err != nil {
		return err
	}

	start := time.Now()
	logger := log.GetLoggerWithName("ensemble").With(log.ModelNameKey, "GradientBoostingClassifier")
	logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		log.EstimatorsKey, gb.nEstimators,
	)

	seed := gb.randomState
	if seed < 0 {
		seed = rand.Int63()
	}
	rng := rand.New(rand.NewSource(seed))

	classes := model.UniqueSorted(labels)
	K := len(classes)
	classIndex := make(map[int]int, K)
	for i, c := range classes {
		classIndex[c] = i
	}
	yIdx := make([]int, nSamples)
	for i, l := range labels {
		yIdx[i] = classIndex[l]
	}

	trainRows, validRows := gb.splitRows(nSamples, rng)
	if len(trainRows) == 0 {
		return errors.NewModelError("GradientBoostingClassifier.Fit", "no rows left for training", errors.ErrEmptyData)
	}

	// 初期スコアは学習行のクラス事前確率の対数
	counts := make([]float64, K)
	for _, i := range trainRows {
		counts[yIdx[i]]++
	}
	initScores := make([]float64, K)
	for k := range counts {
		initScores[k] = errors.StabilizeLog(counts[k] / float64(len(trainRows)))
	}

	Xd := mat.DenseCopyOf(X)
	raw := mat.NewDense(nSamples, K, nil)
	for i := 0; i < nSamples; i++ {
		raw.SetRow(i, initScores)
	}

	grads := make([][]float64, K)
	hess := make([][]float64, K)
	for k := 0; k < K; k++ {
		grads[k] = make([]float64, nSamples)
		hess[k] = make([]float64, nSamples)
	}
	grower := &treeGrower{
		X:              Xd,
		maxDepth:       gb.maxDepth,
		minSamplesLeaf: gb.minSamplesLeaf,
		lambda:         gb.lambda,
	}
	stopper := NewEarlyStopping(gb.earlyStoppingRounds, gb.tol)
	if len(validRows) == 0 {
		stopper = NewEarlyStopping(0, 0)
	}

	gb.trees_ = gb.trees_[:0]
	gb.trainLoss_ = gb.trainLoss_[:0]
	gb.validLoss_ = gb.validLoss_[:0]
	prob := make([]float64, K)

	for iter := 0; iter < gb.nEstimators; iter++ {
		for _, i := range trainRows {
			errors.Softmax(prob, raw.RawRowView(i))
			for k := 0; k < K; k++ {
				target := 0.0
				if yIdx[i] == k {
					target = 1
				}
				grads[k][i] = prob[k] - target
				hess[k][i] = math.Max(prob[k]*(1-prob[k]), 1e-16)
			}
		}

		rows := gb.sampleRows(trainRows, rng)
		round := make([]*boostTree, K)
		for k := 0; k < K; k++ {
			grower.grad = grads[k]
			grower.hess = hess[k]
			round[k] = grower.build(rows)
		}
		for i := 0; i < nSamples; i++ {
			for k := 0; k < K; k++ {
				raw.Set(i, k, raw.At(i, k)+gb.learningRate*round[k].predictRow(Xd, i))
			}
		}
		gb.trees_ = append(gb.trees_, round)

		trainLoss := meanLogLoss(raw, yIdx, trainRows)
		if err := errors.CheckNumericalStability("GradientBoostingClassifier.Fit", []float64{trainLoss}, iter); err != nil {
			return err
		}
		gb.trainLoss_ = append(gb.trainLoss_, trainLoss)

		if stopper.Enabled {
			validLoss := meanLogLoss(raw, yIdx, validRows)
			gb.validLoss_ = append(gb.validLoss_, validLoss)
			if stopper.Update(iter, validLoss) {
				logger.Info("Early stopping",
					log.IterationKey, iter,
					"best_iteration", stopper.BestIteration,
					log.LossKey, stopper.BestScore,
				)
				break
			}
		}
		if iter%10 == 0 {
			logger.Debug("Boosting round", log.IterationKey, iter, log.LossKey, trainLoss)
		}
	}

	gb.bestIteration_ = len(gb.trees_) - 1
	if stopper.Enabled {
		gb.bestIteration_ = stopper.BestIteration
		gb.trees_ = gb.trees_[:stopper.BestIteration+1]
		gb.trainLoss_ = gb.trainLoss_[:stopper.BestIteration+1]
	}

	gb.classes_ = classes
	gb.nFeatures_ = nFeatures
	gb.initScores_ = initScores
	gb.featureImportances_ = gb.computeImportances()
	gb.state.SetDimensions(nFeatures, nSamples)
	gb.state.SetFitted()

	logger.Info("Training completed",
		log.DurationMsKey, time.Since(start).Milliseconds(),
		log.EstimatorsKey, len(gb.trees_),
	)
	return nil
}

// splitRows shuffles the row indices and holds out the validation part
// when early stopping is enabled.
func (gb *GradientBoostingClassifier) splitRows(n int, rng *rand.Rand) (train, valid []int) {
	if gb.earlyStoppingRounds <= 0 {
		train = make([]int, n)
		for i := range train {
			train[i] = i
		}
		return train, nil
	}
	perm := rng.Perm(n)
	nValid := int(math.Round(gb.validationFraction * float64(n)))
	if nValid < 1 || nValid >= n {
		return perm, nil
	}
	return perm[nValid:], perm[:nValid]
}

func (gb *GradientBoostingClassifier) sampleRows(rows []int, rng *rand.Rand) []int {
	if gb.subsample >= 1 {
		return rows
	}
	n := max(1, int(gb.subsample*float64(len(rows))))
	out := make([]int, len(rows))
	copy(out, rows)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out[:n]
}

func meanLogLoss(raw *mat.Dense, yIdx, rows []int) float64 {
	if len(rows) == 0 {
		return 0
	}
	total := 0.0
	for _, i := range rows {
		row := raw.RawRowView(i)
		total += errors.LogSumExp(row) - row[yIdx[i]]
	}
	return total / float64(len(rows))
}

func (gb *GradientBoostingClassifier) computeImportances() []float64 {
	imp := make([]float64, gb.nFeatures_)
	for _, round := range gb.trees_ {
		for _, t := range round {
			for _, n := range t.Nodes {
				if n.Left >= 0 {
					imp[n.Feature] += n.Gain
				}
			}
		}
	}
	normalize(imp)
	return imp
}

// DecisionFunction returns the raw per-class scores.
func (gb *GradientBoostingClassifier) DecisionFunction(X mat.Matrix) (mat.Matrix, error) {
	if err := gb.state.RequireFitted("GradientBoostingClassifier", "DecisionFunction"); err != nil {
		return nil, err
	}
	if X == nil {
		return nil, errors.NewModelError("GradientBoostingClassifier.DecisionFunction", "empty data", errors.ErrEmptyData)
	}
	r, c := X.Dims()
	if c != gb.nFeatures_ {
		return nil, errors.NewDimensionError("GradientBoostingClassifier.DecisionFunction", gb.nFeatures_, c, 1)
	}
	K := len(gb.classes_)
	raw := mat.NewDense(r, K, nil)
	for i := 0; i < r; i++ {
		for k := 0; k < K; k++ {
			v := gb.initScores_[k]
			for _, round := range gb.trees_ {
				v += gb.learningRate * round[k].predictRow(X, i)
			}
			raw.Set(i, k, v)
		}
	}
	return raw, nil
}

// PredictProba returns softmax probabilities, one column per class.
func (gb *GradientBoostingClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	raw, err := gb.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	d := raw.(*mat.Dense)
	r, _ := d.Dims()
	for i := 0; i < r; i++ {
		row := d.RawRowView(i)
		errors.Softmax(row, row)
	}
	return d, nil
}

// Predict returns the most probable class per row.
func (gb *GradientBoostingClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	raw, err := gb.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	return argmaxClasses(raw, gb.classes_), nil
}

// Score returns the mean accuracy on (X, y).
func (gb *GradientBoostingClassifier) Score(X, y mat.Matrix) float64 {
	return model.ScoreAccuracy(gb, X, y)
}

// Classes returns the sorted class labels seen during Fit.
func (gb *GradientBoostingClassifier) Classes() []int {
	return append([]int(nil), gb.classes_...)
}

// GetFeatureImportances returns total split gain per feature, normalised to sum 1.
func (gb *GradientBoostingClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), gb.featureImportances_...)
}

// LossHistory returns the training loss after each kept round.
func (gb *GradientBoostingClassifier) LossHistory() []float64 {
	return append([]float64(nil), gb.trainLoss_...)
}

// ValidationLossHistory returns the held-out loss per round when early stopping ran.
func (gb *GradientBoostingClassifier) ValidationLossHistory() []float64 {
	return append([]float64(nil), gb.validLoss_...)
}

// NEstimatorsFitted returns the number of rounds kept after early stopping.
func (gb *GradientBoostingClassifier) NEstimatorsFitted() int {
	return len(gb.trees_)
}

// BestIteration returns the zero-based index of the last kept round.
func (gb *GradientBoostingClassifier) BestIteration() int {
	return gb.bestIteration_
}

// GetParams returns the hyperparameters.
func (gb *GradientBoostingClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":          gb.nEstimators,
		"learning_rate":         gb.learningRate,
		"max_depth":             gb.maxDepth,
		"min_samples_leaf":      gb.minSamplesLeaf,
		"subsample":             gb.subsample,
		"lambda":                gb.lambda,
		"early_stopping_rounds": gb.earlyStoppingRounds,
		"validation_fraction":   gb.validationFraction,
		"tol":                   gb.tol,
		"random_state":          gb.randomState,
	}
}

// SetParams sets hyperparameters by scikit-learn name.
func (gb *GradientBoostingClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "n_estimators":
			gb.nEstimators, err = model.IntParam(key, value)
		case "learning_rate":
			gb.learningRate, err = model.FloatParam(key, value)
		case "max_depth":
			gb.maxDepth, err = model.IntParam(key, value)
		case "min_samples_leaf":
			gb.minSamplesLeaf, err = model.IntParam(key, value)
		case "subsample":
			gb.subsample, err = model.FloatParam(key, value)
		case "lambda":
			gb.lambda, err = model.FloatParam(key, value)
		case "early_stopping_rounds", "n_iter_no_change":
			gb.earlyStoppingRounds, err = model.IntParam(key, value)
		case "validation_fraction":
			gb.validationFraction, err = model.FloatParam(key, value)
		case "tol":
			gb.tol, err = model.FloatParam(key, value)
		case "random_state":
			var seed int
			seed, err = model.IntParam(key, value)
			gb.randomState = int64(seed)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if err != nil {
			return err
		}
	}
	return gb.validate()
}

func (gb *GradientBoostingClassifier) String() string {
	return fmt.Sprintf("GradientBoostingClassifier(n_estimators=%d, learning_rate=%g, max_depth=%d, subsample=%g)",
		gb.nEstimators, gb.learningRate, gb.maxDepth, gb.subsample)
}

type gbSnapshot struct {
	State              model.ModelState
	Params             map[string]float64
	Classes            []int
	NFeatures          int
	InitScores         []float64
	Trees              [][]*boostTree
	FeatureImportances []float64
	TrainLoss          []float64
	ValidLoss          []float64
	BestIteration      int
}

// GobEncode implements gob.GobEncoder.
func (gb *GradientBoostingClassifier) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(gbSnapshot{
		State: gb.state.GetState(),
		Params: map[string]float64{
			"n_estimators":          float64(gb.nEstimators),
			"learning_rate":         gb.learningRate,
			"max_depth":             float64(gb.maxDepth),
			"min_samples_leaf":      float64(gb.minSamplesLeaf),
			"subsample":             gb.subsample,
			"lambda":                gb.lambda,
			"early_stopping_rounds": float64(gb.earlyStoppingRounds),
			"validation_fraction":   gb.validationFraction,
			"tol":                   gb.tol,
			"random_state":          float64(gb.randomState),
		},
		Classes:            gb.classes_,
		NFeatures:          gb.nFeatures_,
		InitScores:         gb.initScores_,
		Trees:              gb.trees_,
		FeatureImportances: gb.featureImportances_,
		TrainLoss:          gb.trainLoss_,
		ValidLoss:          gb.validLoss_,
		BestIteration:      gb.bestIteration_,
	})
	return buf.Bytes(), err
}

// GobDecode implements gob.GobDecoder.
func (gb *GradientBoostingClassifier) GobDecode(data []byte) error {
	var s gbSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return err
	}
	gb.state = model.NewStateManager()
	gb.state.SetState(s.State)
	gb.nEstimators = int(s.Params["n_estimators"])
	gb.learningRate = s.Params["learning_rate"]
	gb.maxDepth = int(s.Params["max_depth"])
	gb.minSamplesLeaf = int(s.Params["min_samples_leaf"])
	gb.subsample = s.Params["subsample"]
	gb.lambda = s.Params["lambda"]
	gb.earlyStoppingRounds = int(s.Params["early_stopping_rounds"])
	gb.validationFraction = s.Params["validation_fraction"]
	gb.tol = s.Params["tol"]
	gb.randomState = int64(s.Params["random_state"])
	gb.classes_ = s.Classes
	gb.nFeatures_ = s.NFeatures
	gb.initScores_ = s.InitScores
	gb.trees_ = s.Trees
	gb.featureImportances_ = s.FeatureImportances
	gb.trainLoss_ = s.TrainLoss
	gb.validLoss_ = s.ValidLoss
	gb.bestIteration_ = s.BestIteration
	return nil
}
