package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.01, cfg.Preprocessing.VarianceThreshold)
	assert.Equal(t, 50, cfg.Preprocessing.KBest)
	assert.Equal(t, 0.2, cfg.Split.TestSize)
	assert.Equal(t, "weighted", cfg.Evaluation.Average)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ensemble.yaml")
	yml := `
dataset:
  file: obesity.csv
  target: NObeyesdad
  drop: [id]
preprocessing:
  k_best: 10
  scaler: minmax
models:
  - name: Forest
    kind: random_forest
    params:
      n_estimators: 50
      max_features: log2
  - name: Vote
    kind: voting
    params:
      voting: soft
      estimators: [logistic_regression, extra_trees]
      weights: [1, 2]
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, dir, cfg.Paths.Root)
	assert.Equal(t, "NObeyesdad", cfg.Dataset.Target)
	assert.Equal(t, []string{"id"}, cfg.Dataset.Drop)
	assert.Equal(t, 10, cfg.Preprocessing.KBest)
	assert.Equal(t, 0.01, cfg.Preprocessing.VarianceThreshold, "unset keys keep defaults")
	require.Len(t, cfg.Models, 2)
	assert.Equal(t, 50, cfg.Models[0].Params["n_estimators"])
	assert.Equal(t, "debug", cfg.Logging.Level)

	m, ok := cfg.Model("forest")
	require.True(t, ok)
	assert.Equal(t, "random_forest", m.Kind)
	_, ok = cfg.Model("missing")
	assert.False(t, ok)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("models: {"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ENSEMBLE_LOG_LEVEL", "warn")
	t.Setenv("ENSEMBLE_ROOT", "/srv/project")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "/srv/project", cfg.Paths.Root)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"negative threshold", func(c *Config) { c.Preprocessing.VarianceThreshold = -1 }},
		{"zero k", func(c *Config) { c.Preprocessing.KBest = 0 }},
		{"scaler", func(c *Config) { c.Preprocessing.Scaler = "robust" }},
		{"test size", func(c *Config) { c.Split.TestSize = 1 }},
		{"target", func(c *Config) { c.Dataset.Target = "" }},
		{"no models", func(c *Config) { c.Models = nil }},
		{"unnamed model", func(c *Config) { c.Models[0].Name = "" }},
		{"duplicate model", func(c *Config) { c.Models[1].Name = "random forest" }},
		{"unknown kind", func(c *Config) { c.Models[0].Kind = "xgboost" }},
		{"bad params", func(c *Config) { c.Models[0].Params = map[string]interface{}{"n_estimators": "many"} }},
		{"average", func(c *Config) { c.Evaluation.Average = "samples" }},
		{"metric", func(c *Config) { c.Evaluation.Metric = "kappa" }},
		{"cv folds", func(c *Config) { c.Evaluation.CVFolds = 1 }},
		{"curve points", func(c *Config) { c.Evaluation.CurvePoints = 0 }},
		{"plot format", func(c *Config) { c.Evaluation.PlotFormat = "gif" }},
		{"log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"store path", func(c *Config) { c.Store.Path = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestResolvePaths(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.Logging.File = "logs/ensemble.log"
	require.NoError(t, cfg.ResolvePaths(root))

	assert.Equal(t, filepath.Join(root, "datasets"), cfg.Paths.RawData)
	assert.Equal(t, filepath.Join(root, "data", "processed"), cfg.Paths.Processed)
	assert.Equal(t, filepath.Join(root, "models"), cfg.Paths.Models)
	assert.Equal(t, filepath.Join(root, "results", "runs.db"), cfg.Store.Path)
	assert.Equal(t, filepath.Join(root, "logs", "ensemble.log"), cfg.Logging.File)
	assert.Equal(t, filepath.Join(root, "datasets", "dataset.csv"), cfg.DatasetPath())
	assert.Equal(t, filepath.Join(root, "results", "cm.png"), cfg.PlotPath("cm"))

	// 絶対パスはそのまま
	cfg.Paths.Models = "/opt/models"
	require.NoError(t, cfg.ResolvePaths(root))
	assert.Equal(t, "/opt/models", cfg.Paths.Models)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := Default()
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Preprocessing, loaded.Preprocessing)
	assert.Equal(t, len(cfg.Models), len(loaded.Models))
	require.NoError(t, loaded.Validate())
}

func TestLogOptions(t *testing.T) {
	cfg := Default()
	cfg.Logging.File = "x.log"
	opts := cfg.LogOptions()
	assert.Equal(t, "info", opts.Level)
	assert.Equal(t, "x.log", opts.File)
}
