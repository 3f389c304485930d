package models

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/core/model"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/preprocessing"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/sklearn/ensemble"
)

// rawData は3クラスの生データ。列2は定数なので分散フィルタで落ちる
func rawData(n int, seed uint64) (*mat.Dense, []string) {
	rng := rand.New(rand.NewPCG(seed, 0))
	names := []string{"high", "low", "mid"}
	X := mat.NewDense(n, 4, nil)
	y := make([]string, n)
	for i := 0; i < n; i++ {
		c := i % 3
		X.Set(i, 0, float64(c)*3+rng.NormFloat64()*0.3)
		X.Set(i, 1, rng.NormFloat64())
		X.Set(i, 2, 1)
		X.Set(i, 3, -float64(c)+rng.NormFloat64()*0.3)
		y[i] = names[c]
	}
	return X, y
}

func TestNew(t *testing.T) {
	for _, kind := range Kinds {
		t.Run(kind, func(t *testing.T) {
			clf, err := New(kind, nil)
			require.NoError(t, err)
			assert.NotNil(t, clf)
		})
	}

	clf, err := New(KindRandomForest, map[string]interface{}{"n_estimators": 7, "max_depth": 4.0})
	require.NoError(t, err)
	params := clf.(model.ParameterGetter).GetParams()
	assert.Equal(t, 7, params["n_estimators"])
	assert.Equal(t, 4, params["max_depth"])

	_, err = New("xgboost", nil)
	assert.True(t, errors.Is(err, errors.ErrUnknownModel))

	_, err = New(KindGradientBoosting, map[string]interface{}{"no_such_param": 1})
	assert.Error(t, err)
}

func TestNewVoting(t *testing.T) {
	clf, err := New(KindVoting, map[string]interface{}{
		"voting": "soft",
		"estimators": []interface{}{
			"logistic_regression",
			map[string]interface{}{"name": "small_forest", "kind": "random_forest", "params": map[string]interface{}{"n_estimators": 5}},
		},
		"weights": []interface{}{1, 2.0},
	})
	require.NoError(t, err)
	v := clf.(*ensemble.VotingClassifier)
	members := v.Estimators()
	require.Len(t, members, 2)
	assert.Equal(t, "logistic_regression", members[0].Name)
	assert.Equal(t, "small_forest", members[1].Name)
	assert.Equal(t, []float64{1, 2}, v.GetParams()["weights"])

	tests := []struct {
		name   string
		params map[string]interface{}
	}{
		{"nested voting", map[string]interface{}{"estimators": []interface{}{"voting"}}},
		{"weights length", map[string]interface{}{"weights": []interface{}{1}}},
		{"bad mode", map[string]interface{}{"voting": "majority"}},
		{"bad estimators", map[string]interface{}{"estimators": "random_forest"}},
		{"unknown key", map[string]interface{}{"n_jobs": 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(KindVoting, tt.params)
			assert.Error(t, err)
		})
	}
}

func TestFactory(t *testing.T) {
	f, err := Factory(KindDecisionTree, map[string]interface{}{"max_depth": 3})
	require.NoError(t, err)
	a, b := f(), f()
	assert.NotSame(t, a, b)

	_, err = Factory("nope", nil)
	assert.Error(t, err)
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Random Forest":        "random_forest",
		"gradient_boosting":    "gradient_boosting",
		"  XGBoost (ensemble)": "xgboost_ensemble",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slug(in), in)
	}
	assert.Equal(t, filepath.Join("models", "random_forest.gob"), BundlePath("models", "Random Forest"))
}

func trainedBundle(t *testing.T) (*Bundle, *mat.Dense, []string) {
	t.Helper()
	X, y := rawData(60, 1)
	p := preprocessing.NewDataPreprocessor(preprocessing.WithKBest(2))
	XTrain, _, codes, err := p.Preprocess(X, X, y)
	require.NoError(t, err)

	clf, err := New(KindRandomForest, map[string]interface{}{"n_estimators": 10, "random_state": 3})
	require.NoError(t, err)
	yVec := mat.NewDense(len(codes), 1, nil)
	for i, c := range codes {
		yVec.Set(i, 0, float64(c))
	}
	require.NoError(t, clf.Fit(XTrain, yVec))
	return NewBundle("Random Forest", KindRandomForest, clf, p), X, y
}

func TestBundleRoundTrip(t *testing.T) {
	b, X, y := trainedBundle(t)
	path := BundlePath(filepath.Join(t.TempDir(), "models"), b.Metadata.Name)
	require.NoError(t, SaveBundle(b, path))

	loaded, err := LoadBundle(path)
	require.NoError(t, err)
	assert.Equal(t, "Random Forest", loaded.Metadata.Name)
	assert.Equal(t, BundleVersion, loaded.Metadata.Version)
	assert.Equal(t, []string{"high", "low", "mid"}, loaded.Metadata.ClassNames)
	assert.Equal(t, 10, loaded.Metadata.Hyperparameters["n_estimators"])

	want, err := b.PredictRaw(X)
	require.NoError(t, err)
	got, err := loaded.PredictRaw(X)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	correct := 0
	for i := range y {
		if got[i] == y[i] {
			correct++
		}
	}
	assert.Greater(t, float64(correct)/float64(len(y)), 0.9)
}

func TestBundleErrors(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, SaveBundle(&Bundle{}, filepath.Join(dir, "x.gob")))

	_, err := LoadBundle(filepath.Join(dir, "missing.gob"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "garbage.gob"), []byte("not gob"), 0o644))
	_, err = LoadBundle(filepath.Join(dir, "garbage.gob"))
	assert.Error(t, err)

	b := &Bundle{Metadata: model.Metadata{ClassNames: []string{"a", "b"}}}
	names, err := b.Decode(mat.NewDense(2, 1, []float64{1, 0}))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, names)
	_, err = b.Decode(mat.NewDense(1, 1, []float64{5}))
	assert.Error(t, err)
	_, err = b.PredictRaw(mat.NewDense(1, 1, nil))
	assert.Error(t, err)
}

func TestCache(t *testing.T) {
	b, _, _ := trainedBundle(t)
	path := filepath.Join(t.TempDir(), "rf.gob")
	require.NoError(t, SaveBundle(b, path))

	c, err := NewCache(2)
	require.NoError(t, err)

	first, err := c.Load(path)
	require.NoError(t, err)
	second, err := c.Load(path)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, c.Len())

	// ファイルが更新されたら読み直す
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))
	third, err := c.Load(path)
	require.NoError(t, err)
	assert.NotSame(t, first, third)

	c.Invalidate(path)
	assert.Equal(t, 0, c.Len())

	require.NoError(t, os.Remove(path))
	_, err = c.Load(path)
	assert.Error(t, err)

	_, err = NewCache(0)
	assert.Error(t, err)
}
