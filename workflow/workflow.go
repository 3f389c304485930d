// Package workflow は学習から評価・レポートまでの一連の処理をまとめます。
//
//	raw CSV -> DataPreprocessor -> models -> Evaluator -> Reporter
//
// 各ステージの成果物 (前処理済み配列、モデル、結果JSON、グラフ) は
// 設定のパスに保存され、後のコマンドから再利用されます。
package workflow

import (
	"fmt"
	"io"
	"strings"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/config"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/core/model"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/evaluation"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/models"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/log"
)

// ErrNoModels is returned when no trained model could be found or trained.
var ErrNoModels = errors.New("no trained models found")

// PreprocessorFile is the name of the saved DataPreprocessor inside the models directory.
const PreprocessorFile = "preprocessor.gob"

// Progress receives training progress. The CLI renders it as a progress bar.
type Progress interface {
	Start(total int)
	Increment()
	Finish()
}

type noProgress struct{}

func (noProgress) Start(int)  {}
func (noProgress) Increment() {}
func (noProgress) Finish()    {}

// Runner executes workflow stages for one configuration.
type Runner struct {
	cfg      *config.Config
	out      io.Writer
	progress Progress
	cache    *models.Cache
	newModel ModelFactory
	logger   log.Logger
}

// ModelFactory builds an unfitted classifier from a configured kind and params.
type ModelFactory func(kind string, params map[string]interface{}) (model.Classifier, error)

// Option configures a Runner.
type Option func(*Runner)

// WithOutput sets where the human readable report is printed (default io.Discard).
func WithOutput(w io.Writer) Option {
	return func(r *Runner) { r.out = w }
}

// WithProgress sets the training progress sink.
func WithProgress(p Progress) Option {
	return func(r *Runner) { r.progress = p }
}

// WithCache shares a bundle cache between runners.
func WithCache(c *models.Cache) Option {
	return func(r *Runner) { r.cache = c }
}

// WithModelFactory replaces models.New when the runner builds classifiers to train.
func WithModelFactory(f ModelFactory) Option {
	return func(r *Runner) { r.newModel = f }
}

// New validates cfg and creates a Runner.
func New(cfg *config.Config, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Runner{
		cfg:      cfg,
		out:      io.Discard,
		progress: noProgress{},
		newModel: models.New,
		logger:   log.GetLoggerWithName("workflow"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		c, err := models.NewCache(16)
		if err != nil {
			return nil, err
		}
		r.cache = c
	}
	return r, nil
}

func (r *Runner) evaluator() *evaluation.Evaluator {
	e := r.cfg.Evaluation
	return evaluation.NewEvaluator(
		evaluation.WithAverage(e.Average),
		evaluation.WithZeroDivision(e.ZeroDivision),
		evaluation.WithDigits(e.Digits),
		evaluation.WithWriter(r.out),
	)
}

func (r *Runner) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

func (r *Runner) heading(title string) {
	line := strings.Repeat("=", 80)
	r.printf("\n%s\n%s\n%s\n", line, title, line)
}

// printComparison は比較表と最良モデルを表示する
func (r *Runner) printComparison(c *evaluation.Comparison) {
	r.heading("MODEL COMPARISON")
	if err := c.Table(r.out); err != nil {
		r.logger.Warn("Failed to write comparison table", err)
	}
	if best, ok := c.Best(); ok {
		v, _ := best.Value(c.Metric)
		line := strings.Repeat("=", 80)
		r.printf("\n%s\nBEST MODEL: %s\n   %s: %.4f\n%s\n", line, best.ModelName, c.Metric, v, line)
	}
}
