package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/config"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/store"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/workflow"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

const testYAML = `dataset:
  file: data.csv
  target: label
preprocessing:
  variance_threshold: 0.01
  k_best: 2
  scaler: standard
split:
  test_size: 0.25
  stratify: true
  random_state: 3
models:
  - name: Decision Tree
    kind: decision_tree
    params:
      max_depth: 4
  - name: Logistic Regression
    kind: logistic_regression
evaluation:
  average: weighted
  digits: 2
  metric: f1_score
  cv_folds: 3
  curve_points: 3
  plots: false
  plot_format: png
  top_features: 5
logging:
  level: error
  format: json
`

// writeProject は最小のプロジェクト(設定とCSV)を作成する
func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	var b strings.Builder
	b.WriteString("a,b,label\n")
	for i := 0; i < 60; i++ {
		c := i % 2
		fmt.Fprintf(&b, "%.2f,%.2f,%s\n", float64(c)*3+float64(i%7)*0.1, float64(i%5)*0.2, []string{"no", "yes"}[c])
	}
	require.NoError(t, os.MkdirAll(filepath.Join(root, "datasets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "datasets", "data.csv"), []byte(b.String()), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "ensemble.yaml"), []byte(testYAML), 0o644))
	return root
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "ensemble.yaml")

	out, err := execute(t, "init-config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "configuration written to")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.Models, len(config.Default().Models))
}

func TestInitConfigRequiresPath(t *testing.T) {
	_, err := execute(t, "init-config")
	require.Error(t, err)
}

func TestUnknownCommand(t *testing.T) {
	_, err := execute(t, "deploy")
	require.Error(t, err)
}

func TestRunsOnEmptyStore(t *testing.T) {
	root := t.TempDir()

	out, err := execute(t, "--root", root, "--log-level", "error", "runs")
	require.NoError(t, err)
	assert.Contains(t, out, "model")
	assert.Equal(t, 1, strings.Count(strings.TrimSpace(out), "\n")+1)

	_, err = execute(t, "--root", root, "--log-level", "error", "runs", "--best", "accuracy")
	require.ErrorIs(t, err, store.ErrNoRuns)
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := execute(t, "--root", t.TempDir(), "--log-level", "loud", "runs")
	require.Error(t, err)
}

func TestPredictRequiresModelFlag(t *testing.T) {
	_, err := execute(t, "--root", t.TempDir(), "predict")
	require.Error(t, err)
}

func TestTrainAndPredict(t *testing.T) {
	root := writeProject(t)
	conf := filepath.Join(root, "ensemble.yaml")

	out, err := execute(t, "-c", conf, "train", "--no-progress")
	require.NoError(t, err)
	assert.Contains(t, out, "MODEL COMPARISON")
	assert.Contains(t, out, "Selected features (2)")
	assert.FileExists(t, filepath.Join(root, "models", workflow.PreprocessorFile))
	assert.NoFileExists(t, filepath.Join(root, "results", "model_comparison_f1_score.png"))

	out, err = execute(t, "-c", conf, "predict", "-m", "decision tree", "-n", "3", "--json")
	require.NoError(t, err)
	jsonStart := strings.Index(out, "{")
	require.GreaterOrEqual(t, jsonStart, 0)
	var sample workflow.PredictionSample
	require.NoError(t, json.Unmarshal([]byte(out[jsonStart:]), &sample))
	assert.Equal(t, "Decision Tree", sample.ModelName)
	assert.Len(t, sample.Predictions, 3)

	out, err = execute(t, "-c", conf, "runs", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Decision Tree")
	assert.Contains(t, out, "Logistic Regression")

	_, err = execute(t, "-c", conf, "predict", "-m", "xgboost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownModel))
}
