// Package config はワークフローの設定を YAML から読み込みます。
//
// パスはプロジェクトルートからの相対パスで書き、ResolvePaths で絶対パスに変換します。
package config

import (
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/evaluation"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/models"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/log"
)

// Config is the full workflow configuration.
type Config struct {
	Paths         PathsConfig         `yaml:"paths"`
	Dataset       DatasetConfig       `yaml:"dataset"`
	Preprocessing PreprocessingConfig `yaml:"preprocessing"`
	Split         SplitConfig         `yaml:"split"`
	Models        []ModelConfig       `yaml:"models"`
	Evaluation    EvaluationConfig    `yaml:"evaluation"`
	Logging       LoggingConfig       `yaml:"logging"`
	Store         StoreConfig         `yaml:"store"`
}

// PathsConfig はプロジェクトのディレクトリ構成
type PathsConfig struct {
	Root      string `yaml:"root"`
	RawData   string `yaml:"raw_data"`
	Processed string `yaml:"processed"`
	Models    string `yaml:"models"`
	Results   string `yaml:"results"`
}

// DatasetConfig は生データのCSVファイル
type DatasetConfig struct {
	// File は RawData からの相対パス
	File   string   `yaml:"file"`
	Target string   `yaml:"target"`
	Drop   []string `yaml:"drop,omitempty"`
}

// PreprocessingConfig は DataPreprocessor の設定
type PreprocessingConfig struct {
	VarianceThreshold float64 `yaml:"variance_threshold"`
	KBest             int     `yaml:"k_best"`
	Scaler            string  `yaml:"scaler"`
}

// SplitConfig は訓練・テスト分割の設定
type SplitConfig struct {
	TestSize    float64 `yaml:"test_size"`
	Stratify    bool    `yaml:"stratify"`
	RandomState int64   `yaml:"random_state"`
}

// ModelConfig は学習するモデル1つ分
type ModelConfig struct {
	Name   string                 `yaml:"name"`
	Kind   string                 `yaml:"kind"`
	Params map[string]interface{} `yaml:"params,omitempty"`
}

// EvaluationConfig は評価とモデル比較の設定
type EvaluationConfig struct {
	Average      string  `yaml:"average"`
	ZeroDivision float64 `yaml:"zero_division"`
	Digits       int     `yaml:"digits"`
	Metric       string  `yaml:"metric"`
	CVFolds      int     `yaml:"cv_folds"`
	CurvePoints  int     `yaml:"curve_points"`
	Plots        bool    `yaml:"plots"`
	PlotFormat   string  `yaml:"plot_format"`
	TopFeatures  int     `yaml:"top_features"`
}

// LoggingConfig は pkg/log の設定
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
}

// StoreConfig は実行ログのSQLiteデータベース
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			RawData:   "datasets",
			Processed: filepath.Join("data", "processed"),
			Models:    "models",
			Results:   "results",
		},
		Dataset: DatasetConfig{
			File:   "dataset.csv",
			Target: "target",
		},
		Preprocessing: PreprocessingConfig{
			VarianceThreshold: 0.01,
			KBest:             50,
			Scaler:            "standard",
		},
		Split: SplitConfig{
			TestSize:    0.2,
			Stratify:    true,
			RandomState: 42,
		},
		Models: []ModelConfig{
			{Name: "Random Forest", Kind: models.KindRandomForest, Params: map[string]interface{}{"n_estimators": 200, "random_state": 42}},
			{Name: "Extra Trees", Kind: models.KindExtraTrees, Params: map[string]interface{}{"n_estimators": 200, "random_state": 42}},
			{Name: "Gradient Boosting", Kind: models.KindGradientBoosting, Params: map[string]interface{}{"n_estimators": 100, "learning_rate": 0.1, "random_state": 42}},
			{Name: "Logistic Regression", Kind: models.KindLogisticRegression, Params: map[string]interface{}{"max_iter": 1000}},
		},
		Evaluation: EvaluationConfig{
			Average:     "weighted",
			Digits:      2,
			Metric:      "accuracy",
			CVFolds:     5,
			CurvePoints: 10,
			Plots:       true,
			PlotFormat:  "png",
			TopFeatures: 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Store: StoreConfig{
			Enabled: true,
			Path:    filepath.Join("results", "runs.db"),
		},
	}
}

// Load reads path over the defaults. An empty path returns Default().
// ENSEMBLE_ROOT and ENSEMBLE_LOG_LEVEL override the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
		if cfg.Paths.Root == "" {
			cfg.Paths.Root = filepath.Dir(path)
		}
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ENSEMBLE_ROOT"); v != "" {
		c.Paths.Root = v
	}
	if v := os.Getenv("ENSEMBLE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Save writes c as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create directory for %s", path)
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "write config %s", path)
}

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	p := c.Preprocessing
	if p.VarianceThreshold < 0 {
		return errors.NewValidationError("preprocessing.variance_threshold", "must be non-negative", p.VarianceThreshold)
	}
	if p.KBest <= 0 {
		return errors.NewValidationError("preprocessing.k_best", "must be positive", p.KBest)
	}
	if p.Scaler != "standard" && p.Scaler != "minmax" {
		return errors.NewValidationError("preprocessing.scaler", "must be standard or minmax", p.Scaler)
	}
	if c.Split.TestSize <= 0 || c.Split.TestSize >= 1 {
		return errors.NewValidationError("split.test_size", "must be in (0, 1)", c.Split.TestSize)
	}
	if c.Dataset.Target == "" {
		return errors.NewValidationError("dataset.target", "is required", c.Dataset.Target)
	}

	if len(c.Models) == 0 {
		return errors.NewValidationError("models", "at least one model is required", 0)
	}
	seen := map[string]bool{}
	for _, m := range c.Models {
		if m.Name == "" {
			return errors.NewValidationError("models.name", "is required", m.Kind)
		}
		slug := models.Slug(m.Name)
		if seen[slug] {
			return errors.NewValidationError("models.name", "must be unique", m.Name)
		}
		seen[slug] = true
		if _, err := models.New(m.Kind, m.Params); err != nil {
			return errors.Wrapf(err, "model %q", m.Name)
		}
	}

	e := c.Evaluation
	switch e.Average {
	case "micro", "macro", "weighted":
	default:
		return errors.NewValidationError("evaluation.average", "must be micro, macro or weighted", e.Average)
	}
	if !slices.Contains(evaluation.MetricNames, e.Metric) {
		return errors.NewValidationError("evaluation.metric", "unknown metric", e.Metric)
	}
	if e.CVFolds < 2 {
		return errors.NewValidationError("evaluation.cv_folds", "must be at least 2", e.CVFolds)
	}
	if e.CurvePoints < 2 {
		return errors.NewValidationError("evaluation.curve_points", "must be at least 2", e.CurvePoints)
	}
	switch e.PlotFormat {
	case "png", "svg", "pdf", "jpg":
	default:
		return errors.NewValidationError("evaluation.plot_format", "must be png, svg, pdf or jpg", e.PlotFormat)
	}

	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	if c.Store.Enabled && c.Store.Path == "" {
		return errors.NewValidationError("store.path", "is required when the store is enabled", c.Store.Path)
	}
	return nil
}

// ResolvePaths makes every relative path absolute against root. An empty
// root uses Paths.Root, then the working directory.
func (c *Config) ResolvePaths(root string) error {
	if root == "" {
		root = c.Paths.Root
	}
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return errors.Wrapf(err, "resolve root %s", root)
	}
	c.Paths.Root = abs

	for _, p := range []*string{
		&c.Paths.RawData, &c.Paths.Processed, &c.Paths.Models, &c.Paths.Results,
		&c.Store.Path, &c.Logging.File,
	} {
		if *p != "" && *p != ":memory:" && !filepath.IsAbs(*p) {
			*p = filepath.Join(abs, *p)
		}
	}
	return nil
}

// DatasetPath returns the raw CSV file.
func (c *Config) DatasetPath() string {
	if filepath.IsAbs(c.Dataset.File) {
		return c.Dataset.File
	}
	return filepath.Join(c.Paths.RawData, c.Dataset.File)
}

// PlotPath returns results/<name>.<plot_format>.
func (c *Config) PlotPath(name string) string {
	return filepath.Join(c.Paths.Results, name+"."+c.Evaluation.PlotFormat)
}

// Model returns the model configuration named name (matched by slug).
func (c *Config) Model(name string) (ModelConfig, bool) {
	for _, m := range c.Models {
		if models.Slug(m.Name) == models.Slug(name) {
			return m, true
		}
	}
	return ModelConfig{}, false
}

// LogOptions converts the logging section into pkg/log options.
func (c *Config) LogOptions() log.Options {
	return log.Options{
		Level:      c.Logging.Level,
		Format:     c.Logging.Format,
		File:       c.Logging.File,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
	}
}
