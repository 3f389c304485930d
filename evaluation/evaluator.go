// Package evaluation computes classification metrics for fitted models and
// prints the evaluation block used throughout the workflow.
package evaluation

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/core/model"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/metrics"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/log"
)

const banner = "============================================================"

// Metrics are the weighted classification scores of one model.
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1Score   float64 `json:"f1_score"`
}

// Result is the evaluation of one model on a test set.
type Result struct {
	ModelName string `json:"model_name,omitempty"`
	Metrics
	ConfusionMatrix [][]int  `json:"confusion_matrix"`
	Labels          []int    `json:"labels,omitempty"`
	ROCAUC          *float64 `json:"roc_auc,omitempty"`
	TrainingSeconds float64  `json:"training_time_s,omitempty"`
}

// GetClassificationMetrics returns accuracy and averaged precision, recall
// and F1 with zero_division=0.
func GetClassificationMetrics(yTrue, yPred mat.Matrix, average string) (Metrics, error) {
	t, err := metrics.ColumnVec(yTrue)
	if err != nil {
		return Metrics{}, err
	}
	p, err := metrics.ColumnVec(yPred)
	if err != nil {
		return Metrics{}, err
	}
	return classificationMetrics(t, p, average, 0)
}

func classificationMetrics(yTrue, yPred *mat.VecDense, average string, zeroDivision float64) (Metrics, error) {
	acc, err := metrics.Accuracy(yTrue, yPred)
	if err != nil {
		return Metrics{}, err
	}
	prfs, err := metrics.PrecisionRecallFScoreSupport(yTrue, yPred, average, zeroDivision)
	if err != nil {
		return Metrics{}, err
	}
	return Metrics{
		Accuracy:  acc,
		Precision: prfs.AvgPrecision,
		Recall:    prfs.AvgRecall,
		F1Score:   prfs.AvgF1,
	}, nil
}

// Evaluator evaluates fitted models and writes a human readable block.
type Evaluator struct {
	average      string
	zeroDivision float64
	digits       int
	out          io.Writer
	logger       log.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithAverage sets the averaging of precision, recall and F1 (default "weighted").
func WithAverage(average string) Option {
	return func(e *Evaluator) { e.average = average }
}

// WithZeroDivision sets the value used when a metric is ill-defined (default 0).
func WithZeroDivision(v float64) Option {
	return func(e *Evaluator) { e.zeroDivision = v }
}

// WithDigits sets the decimals of the classification report (default 2).
func WithDigits(d int) Option {
	return func(e *Evaluator) { e.digits = d }
}

// WithWriter sets where the evaluation block is printed. nil disables printing.
func WithWriter(w io.Writer) Option {
	return func(e *Evaluator) { e.out = w }
}

// NewEvaluator creates an Evaluator with weighted averaging.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		average: "weighted",
		digits:  2,
		logger:  log.GetLoggerWithName("evaluation"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EvaluateModel evaluates m on (X, y) with the default settings and prints
// the result to w.
func EvaluateModel(m model.Predictor, X, y mat.Matrix, classNames []string, w io.Writer) (*Result, error) {
	return NewEvaluator(WithWriter(w)).Evaluate("", m, X, y, classNames)
}

// Evaluate predicts X, scores the predictions against y and prints the
// metrics block. The classification report is printed when classNames is
// given; classNames[i] names label code i.
func (e *Evaluator) Evaluate(name string, m model.Predictor, X, y mat.Matrix, classNames []string) (*Result, error) {
	start := time.Now()
	pred, err := m.Predict(X)
	if err != nil {
		return nil, errors.Wrapf(err, "evaluate %s", name)
	}
	yTrue, err := metrics.ColumnVec(y)
	if err != nil {
		return nil, err
	}
	yPred, err := metrics.ColumnVec(pred)
	if err != nil {
		return nil, err
	}

	scores, err := classificationMetrics(yTrue, yPred, e.average, e.zeroDivision)
	if err != nil {
		return nil, err
	}
	cm, labels, err := metrics.ConfusionMatrix(yTrue, yPred, nil)
	if err != nil {
		return nil, err
	}

	res := &Result{
		ModelName:       name,
		Metrics:         scores,
		ConfusionMatrix: toInts(cm),
		Labels:          labels,
	}
	if c, ok := m.(model.Classifier); ok {
		if auc, err := e.rocAUC(c, X, yTrue); err == nil {
			res.ROCAUC = &auc
		} else {
			e.logger.Debug("ROC AUC skipped", log.ModelNameKey, name, "reason", err.Error())
		}
	}

	if e.out != nil {
		if err := e.print(res, yTrue, yPred, classNames); err != nil {
			return nil, err
		}
	}

	e.logger.Info("Model evaluated",
		log.ModelNameKey, name,
		log.OperationKey, log.OperationScore,
		log.PhaseKey, log.PhaseTesting,
		log.SamplesKey, yTrue.Len(),
		log.AccuracyKey, scores.Accuracy,
		log.F1Key, scores.F1Score,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (e *Evaluator) rocAUC(c model.Classifier, X mat.Matrix, yTrue *mat.VecDense) (float64, error) {
	proba, err := c.PredictProba(X)
	if err != nil {
		return 0, err
	}
	return metrics.RocAUCOvR(yTrue, proba, c.Classes(), "macro")
}

func (e *Evaluator) print(res *Result, yTrue, yPred *mat.VecDense, classNames []string) error {
	var b strings.Builder
	b.WriteString(banner + "\n")
	b.WriteString("EVALUATION METRICS\n")
	b.WriteString(banner + "\n")
	fmt.Fprintf(&b, "Accuracy:  %.4f\n", res.Accuracy)
	fmt.Fprintf(&b, "Precision: %.4f\n", res.Precision)
	fmt.Fprintf(&b, "Recall:    %.4f\n", res.Recall)
	fmt.Fprintf(&b, "F1-Score:  %.4f\n", res.F1Score)
	b.WriteString("\n" + banner + "\n")

	if classNames != nil {
		report, err := metrics.NewClassificationReport(yTrue, yPred, TargetNames(res.Labels, classNames), e.digits, e.zeroDivision)
		if err != nil {
			return err
		}
		b.WriteString("\nClassification Report:\n")
		b.WriteString(report.String())
		b.WriteString("\n")
	}
	_, err := io.WriteString(e.out, b.String())
	return err
}

// TargetNames maps label codes to class names. Codes without a name keep
// their numeric form.
func TargetNames(labels []int, classNames []string) []string {
	names := make([]string, len(labels))
	for i, l := range labels {
		if l >= 0 && l < len(classNames) {
			names[i] = classNames[l]
		} else {
			names[i] = strconv.Itoa(l)
		}
	}
	return names
}

func toInts(m *mat.Dense) [][]int {
	r, c := m.Dims()
	out := make([][]int, r)
	for i := range out {
		out[i] = make([]int, c)
		for j := range out[i] {
			out[i][j] = int(m.At(i, j))
		}
	}
	return out
}
