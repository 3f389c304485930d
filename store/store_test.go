package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/evaluation"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndListRuns(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	auc := 0.95
	runs := []Run{
		{ModelName: "random_forest", Kind: "random_forest", Accuracy: 0.9, F1Score: 0.89, TrainedAt: base,
			Params: map[string]interface{}{"n_estimators": 100.0}},
		{ModelName: "gradient_boosting", Accuracy: 0.92, F1Score: 0.91, ROCAUC: &auc, TrainedAt: base.Add(time.Minute)},
		{ModelName: "logistic_regression", Accuracy: 0.8, F1Score: 0.93, TrainedAt: base.Add(2 * time.Minute)},
	}
	ids := make([]string, len(runs))
	for i, r := range runs {
		id, err := s.RecordRun(ctx, r)
		require.NoError(t, err)
		require.NotEmpty(t, id)
		ids[i] = id
	}
	assert.NotEqual(t, ids[0], ids[1])

	all, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "logistic_regression", all[0].ModelName)
	assert.Equal(t, "random_forest", all[2].ModelName)
	assert.True(t, all[2].TrainedAt.Equal(base))
	assert.Equal(t, 100.0, all[2].Params["n_estimators"])
	require.NotNil(t, all[1].ROCAUC)
	assert.InDelta(t, 0.95, *all[1].ROCAUC, 1e-12)
	assert.Nil(t, all[0].ROCAUC)

	limited, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestBestRun(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	_, err := s.BestRun(ctx, "accuracy")
	assert.True(t, errors.Is(err, ErrNoRuns))

	for _, r := range []Run{
		{ModelName: "a", Accuracy: 0.7, F1Score: 0.9},
		{ModelName: "b", Accuracy: 0.95, F1Score: 0.6},
	} {
		_, err := s.RecordRun(ctx, r)
		require.NoError(t, err)
	}

	best, err := s.BestRun(ctx, "accuracy")
	require.NoError(t, err)
	assert.Equal(t, "b", best.ModelName)

	best, err = s.BestRun(ctx, "f1_score")
	require.NoError(t, err)
	assert.Equal(t, "a", best.ModelName)

	_, err = s.BestRun(ctx, "roc_auc")
	assert.True(t, errors.Is(err, ErrNoRuns))

	_, err = s.BestRun(ctx, "accuracy; DROP TABLE runs")
	assert.Error(t, err)
}

func TestRecordRunValidation(t *testing.T) {
	s := openTemp(t)
	_, err := s.RecordRun(context.Background(), Run{})
	assert.Error(t, err)
}

func TestRunFromResult(t *testing.T) {
	auc := 0.8
	r := RunFromResult(evaluation.Result{
		ModelName:       "voting",
		Metrics:         evaluation.Metrics{Accuracy: 0.5, Precision: 0.4, Recall: 0.5, F1Score: 0.45},
		ROCAUC:          &auc,
		TrainingSeconds: 1.5,
	})
	assert.Equal(t, "voting", r.ModelName)
	assert.Equal(t, 0.45, r.F1Score)
	assert.Equal(t, &auc, r.ROCAUC)
	assert.Equal(t, 1.5, r.TrainingSeconds)
}

func TestOpenInMemory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.RecordRun(context.Background(), Run{ModelName: "m"})
	require.NoError(t, err)
	runs, err := s.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
