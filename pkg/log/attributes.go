package log

// Standard attribute keys. They follow a hierarchical naming convention
// ("model.name", "data.samples") so logs from every workflow step can be
// filtered the same way.

// Model and operation context.
const (
	// ModelNameKey identifies the estimator type.
	// Examples: "RandomForestClassifier", "StandardScaler", "DataPreprocessor"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "fit_transform", "score"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the workflow.
	// Examples: "training", "inference", "validation", "preprocessing"
	PhaseKey = "ml.phase"
)

// Data shape and characteristics.
const (
	// SamplesKey is the number of rows in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey is the number of columns in the dataset.
	FeaturesKey = "data.features"

	// ClassesKey is the number of distinct target classes.
	ClassesKey = "data.classes"

	// PathKey is a file system path read or written.
	PathKey = "data.path"
)

// Performance and evaluation.
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// AccuracyKey records accuracy for evaluation operations.
	AccuracyKey = "metrics.accuracy"

	// F1Key records the (averaged) F1 score.
	F1Key = "metrics.f1_score"

	// LossKey records a training loss value.
	LossKey = "metrics.loss"

	// IterationKey records the boosting round or solver iteration.
	IterationKey = "training.iteration"

	// EstimatorsKey records the number of fitted sub-estimators.
	EstimatorsKey = "training.estimators"

	// FoldKey records the cross-validation fold index.
	FoldKey = "cv.fold"
)

// Error context and configuration.
const (
	// ErrorCodeKey provides a structured error code for programmatic handling.
	ErrorCodeKey = "error.code"

	// SuggestionKey provides a hint for resolving the issue.
	SuggestionKey = "error.suggestion"

	// HyperParamsKey contains model hyperparameters.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"

	// RunIDKey identifies a workflow run in the results store.
	RunIDKey = "run.id"
)

// Standard attribute values.
const (
	OperationFit          = "fit"
	OperationPredict      = "predict"
	OperationTransform    = "transform"
	OperationFitTransform = "fit_transform"
	OperationScore        = "score"
	OperationSave         = "save"
	OperationLoad         = "load"

	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseTesting       = "testing"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorEmptyData         = "EMPTY_DATA"
	ErrorInvalidInput      = "INVALID_INPUT"
	ErrorConvergence       = "CONVERGENCE_FAILURE"
)
