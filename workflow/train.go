package workflow

import (
	"context"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/config"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/core/model"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/dataset"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/evaluation"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/models"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/log"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/preprocessing"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/store"
)

// TrainSummary is what Train produced.
type TrainSummary struct {
	Comparison *evaluation.Comparison
	// Failed maps model names to the error that stopped their training.
	Failed     map[string]error
	Features   []string
	ClassNames []string
	RunIDs     []string
}

type trained struct {
	cfg      config.ModelConfig
	clf      model.Classifier
	duration time.Duration
}

// Train runs the whole pipeline with a default Runner.
func Train(ctx context.Context, cfg *config.Config) (*TrainSummary, error) {
	r, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return r.Train(ctx)
}

// Train loads the raw dataset, splits and preprocesses it, trains every
// configured model concurrently, evaluates them on the test split and saves
// bundles, results, plots and store runs. A model that fails to train is
// reported in TrainSummary.Failed and does not stop the others.
func (r *Runner) Train(ctx context.Context) (*TrainSummary, error) {
	start := time.Now()
	cfg := r.cfg

	ds, err := dataset.LoadCSV(cfg.DatasetPath(), dataset.CSVOptions{Target: cfg.Dataset.Target, Drop: cfg.Dataset.Drop})
	if err != nil {
		return nil, err
	}
	trainSet, testSet, err := ds.Split(cfg.Split.TestSize, cfg.Split.Stratify, cfg.Split.RandomState)
	if err != nil {
		return nil, err
	}

	p := preprocessing.NewDataPreprocessor(
		preprocessing.WithVarianceThreshold(cfg.Preprocessing.VarianceThreshold),
		preprocessing.WithKBest(cfg.Preprocessing.KBest),
		preprocessing.WithScaler(cfg.Preprocessing.Scaler),
	)
	XTrain, XTest, yTrain, err := p.Preprocess(trainSet.X, testSet.X, trainSet.Target)
	if err != nil {
		return nil, err
	}
	yTest, err := p.TransformTarget(testSet.Target)
	if err != nil {
		return nil, err
	}
	features, err := p.SelectedFeatures(ds.FeatureNames)
	if err != nil {
		return nil, err
	}
	if err := p.Save(filepath.Join(cfg.Paths.Models, PreprocessorFile)); err != nil {
		return nil, err
	}
	processed := &dataset.Processed{
		XTrain:       mat.DenseCopyOf(XTrain),
		XTest:        mat.DenseCopyOf(XTest),
		YTrain:       yTrain,
		YTest:        yTest,
		ClassNames:   p.ClassNames(),
		FeatureNames: features,
	}
	if err := dataset.SaveProcessed(cfg.Paths.Processed, processed); err != nil {
		return nil, err
	}

	fitted, failed, err := r.fitAll(ctx, processed.XTrain, dataset.LabelColumn(yTrain))
	if err != nil {
		return nil, err
	}
	if len(fitted) == 0 {
		return &TrainSummary{Failed: failed, Features: features, ClassNames: processed.ClassNames}, ErrNoModels
	}

	summary := &TrainSummary{Failed: failed, Features: features, ClassNames: processed.ClassNames}
	results := make([]evaluation.Result, 0, len(fitted))
	ev := r.evaluator()
	yTestM := dataset.LabelColumn(yTest)
	for _, t := range fitted {
		r.heading("MODEL: " + t.cfg.Name)
		res, err := ev.Evaluate(t.cfg.Name, t.clf, processed.XTest, yTestM, processed.ClassNames)
		if err != nil {
			summary.Failed[t.cfg.Name] = err
			r.logger.Error("Evaluation failed", err, log.ModelNameKey, t.cfg.Name)
			continue
		}
		res.TrainingSeconds = t.duration.Seconds()
		results = append(results, *res)

		b := models.NewBundle(t.cfg.Name, t.cfg.Kind, t.clf, p)
		b.Metadata.Features = features
		b.Metadata.Metrics = map[string]float64{
			"accuracy":  res.Accuracy,
			"precision": res.Precision,
			"recall":    res.Recall,
			"f1_score":  res.F1Score,
		}
		path := models.BundlePath(cfg.Paths.Models, t.cfg.Name)
		if err := models.SaveBundle(b, path); err != nil {
			return nil, err
		}
		r.cache.Invalidate(path)

		if cfg.Evaluation.Plots {
			if err := r.plotModel(t.cfg.Name, t.clf, res, processed); err != nil {
				return nil, err
			}
		}
	}
	if len(results) == 0 {
		return summary, ErrNoModels
	}

	comparison, err := r.report(results)
	if err != nil {
		return nil, err
	}
	summary.Comparison = comparison

	if cfg.Store.Enabled {
		ids, err := r.recordRuns(ctx, results, len(yTrain))
		if err != nil {
			return nil, err
		}
		summary.RunIDs = ids
	}

	r.logger.Info("Training workflow completed",
		log.EstimatorsKey, len(results),
		log.SamplesKey, len(yTrain),
		log.FeaturesKey, len(features),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return summary, nil
}

// fitAll trains the configured models concurrently. Panics and errors are
// confined to the model that raised them.
func (r *Runner) fitAll(ctx context.Context, X, y mat.Matrix) ([]trained, map[string]error, error) {
	configured := r.cfg.Models
	out := make([]*trained, len(configured))
	failed := map[string]error{}
	var mu sync.Mutex

	r.progress.Start(len(configured))
	defer r.progress.Finish()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, runtime.NumCPU()/2))
	for i, mc := range configured {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			clf, err := r.newModel(mc.Kind, mc.Params)
			if err != nil {
				return err
			}
			started := time.Now()
			err = errors.SafeExecute(mc.Name+".Fit", func() error { return clf.Fit(X, y) })
			mu.Lock()
			r.progress.Increment()
			if err != nil {
				failed[mc.Name] = err
			}
			mu.Unlock()
			if err != nil {
				r.logger.Error("Model training failed", err, log.ModelNameKey, mc.Name)
				return nil
			}
			out[i] = &trained{cfg: mc, clf: clf, duration: time.Since(started)}
			r.logger.Info("Model trained",
				log.ModelNameKey, mc.Name,
				log.OperationKey, log.OperationFit,
				log.PhaseKey, log.PhaseTraining,
				log.DurationMsKey, time.Since(started).Milliseconds(),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	fitted := make([]trained, 0, len(out))
	for _, t := range out {
		if t != nil {
			fitted = append(fitted, *t)
		}
	}
	return fitted, failed, nil
}

func (r *Runner) recordRuns(ctx context.Context, results []evaluation.Result, nTrain int) ([]string, error) {
	s, err := store.Open(r.cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	now := time.Now()
	ids := make([]string, 0, len(results))
	for _, res := range results {
		run := store.RunFromResult(res)
		if m, ok := r.cfg.Model(res.ModelName); ok {
			run.Kind = m.Kind
			run.Params = m.Params
		}
		run.Dataset = r.cfg.Dataset.File
		run.DataPoints = nTrain
		run.TrainedAt = now
		id, err := s.RecordRun(ctx, run)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
