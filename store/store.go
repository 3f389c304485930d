// Package store keeps a SQLite log of evaluated training runs.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/evaluation"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/log"
)

// ErrNoRuns is returned when the store holds no run to answer a query.
var ErrNoRuns = errors.New("no runs recorded")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    model_name VARCHAR(50) NOT NULL,
    kind VARCHAR(50),
    dataset TEXT,
    accuracy REAL,
    precision REAL,
    recall REAL,
    f1_score REAL,
    roc_auc REAL,
    training_seconds REAL,
    data_points INTEGER,
    params TEXT,
    trained_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_trained_at ON runs(trained_at);
`

// metricColumns はランキングに使える列
var metricColumns = map[string]string{
	"accuracy":  "accuracy",
	"precision": "precision",
	"recall":    "recall",
	"f1_score":  "f1_score",
	"f1":        "f1_score",
	"roc_auc":   "roc_auc",
}

// Run is one evaluated model.
type Run struct {
	ID              string                 `json:"id"`
	ModelName       string                 `json:"model_name"`
	Kind            string                 `json:"kind,omitempty"`
	Dataset         string                 `json:"dataset,omitempty"`
	Accuracy        float64                `json:"accuracy"`
	Precision       float64                `json:"precision"`
	Recall          float64                `json:"recall"`
	F1Score         float64                `json:"f1_score"`
	ROCAUC          *float64               `json:"roc_auc,omitempty"`
	TrainingSeconds float64                `json:"training_seconds"`
	DataPoints      int                    `json:"data_points"`
	Params          map[string]interface{} `json:"params,omitempty"`
	TrainedAt       time.Time              `json:"trained_at"`
}

// RunFromResult copies the scores of an evaluation result into a Run.
func RunFromResult(res evaluation.Result) Run {
	return Run{
		ModelName:       res.ModelName,
		Accuracy:        res.Accuracy,
		Precision:       res.Precision,
		Recall:          res.Recall,
		F1Score:         res.F1Score,
		ROCAUC:          res.ROCAUC,
		TrainingSeconds: res.TrainingSeconds,
	}
}

// Store is a run log backed by a SQLite database.
type Store struct {
	db     *sql.DB
	path   string
	logger log.Logger
}

// Open opens (creating when needed) the database at path and ensures the
// runs table exists.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrapf(err, "create directory for %s", path)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open store %s", path)
	}
	// :memory: はコネクションごとに別DBになるため1本に絞る
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create runs table")
	}
	s := &Store{db: db, path: path, logger: log.GetLoggerWithName("store")}
	s.logger.Debug("Store opened", log.PathKey, path)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun inserts r and returns its id. An empty ID gets a new UUID and a
// zero TrainedAt is set to now.
func (s *Store) RecordRun(ctx context.Context, r Run) (string, error) {
	if r.ModelName == "" {
		return "", errors.NewValidationError("model_name", "must not be empty", r.ModelName)
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.TrainedAt.IsZero() {
		r.TrainedAt = time.Now()
	}
	params, err := json.Marshal(r.Params)
	if err != nil {
		return "", errors.Wrap(err, "encode params")
	}

	_, err = s.db.ExecContext(ctx, `
        INSERT INTO runs (
            id, model_name, kind, dataset, accuracy, precision, recall, f1_score,
            roc_auc, training_seconds, data_points, params, trained_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, r.ID, r.ModelName, r.Kind, r.Dataset, r.Accuracy, r.Precision, r.Recall, r.F1Score,
		nullable(r.ROCAUC), r.TrainingSeconds, r.DataPoints, string(params), r.TrainedAt.UTC())
	if err != nil {
		return "", errors.Wrapf(err, "record run %s", r.ModelName)
	}
	s.logger.Info("Run recorded", log.RunIDKey, r.ID, log.ModelNameKey, r.ModelName, log.AccuracyKey, r.Accuracy)
	return r.ID, nil
}

// ListRuns returns up to limit runs, newest first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := selectRuns + ` ORDER BY trained_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, errors.Wrap(rows.Err(), "list runs")
}

// BestRun returns the run with the highest metric. Newer runs win ties.
func (s *Store) BestRun(ctx context.Context, metric string) (Run, error) {
	col, ok := metricColumns[metric]
	if !ok {
		return Run{}, errors.NewValidationError("metric", "must be one of accuracy, precision, recall, f1_score, roc_auc", metric)
	}
	row := s.db.QueryRowContext(ctx, selectRuns+
		` WHERE `+col+` IS NOT NULL ORDER BY `+col+` DESC, trained_at DESC, rowid DESC LIMIT 1`)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNoRuns
	}
	return r, err
}

const selectRuns = `
SELECT id, model_name, kind, dataset, accuracy, precision, recall, f1_score,
       roc_auc, training_seconds, data_points, params, trained_at
FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r      Run
		kind   sql.NullString
		ds     sql.NullString
		auc    sql.NullFloat64
		params sql.NullString
	)
	err := sc.Scan(&r.ID, &r.ModelName, &kind, &ds, &r.Accuracy, &r.Precision, &r.Recall, &r.F1Score,
		&auc, &r.TrainingSeconds, &r.DataPoints, &params, &r.TrainedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, errors.Wrap(err, "scan run")
	}
	r.Kind, r.Dataset = kind.String, ds.String
	if auc.Valid {
		v := auc.Float64
		r.ROCAUC = &v
	}
	if params.Valid && params.String != "" && params.String != "null" {
		if err := json.Unmarshal([]byte(params.String), &r.Params); err != nil {
			return Run{}, errors.Wrapf(err, "decode params of run %s", r.ID)
		}
	}
	return r, nil
}

func nullable(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
