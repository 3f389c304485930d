package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	// y は整数にエンコードされたクラスラベルの列ベクトル (n_samples × 1)
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う (n_samples × 1)
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Classifier は多クラス分類器のインターフェース
type Classifier interface {
	Fitter
	Predictor

	// PredictProba はクラスごとの確率を返す (n_samples × n_classes)
	// 列の順序は Classes() と同じ
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Score は正解率を返す。未学習の場合は 0
	Score(X, y mat.Matrix) float64

	// Classes は学習時に見たクラスラベルを昇順で返す
	Classes() []int
}

// FeatureImportancer は特徴量重要度を公開するモデルのインターフェース
type FeatureImportancer interface {
	// GetFeatureImportances は合計1に正規化された重要度を返す
	GetFeatureImportances() []float64
}

// ParameterGetter はハイパーパラメータを公開するモデルのインターフェース
type ParameterGetter interface {
	GetParams() map[string]interface{}
}

// ParameterSetter はハイパーパラメータを変更できるモデルのインターフェース
type ParameterSetter interface {
	SetParams(params map[string]interface{}) error
}

// Factory は未学習の分類器を新しく作る関数。交差検証の各foldで使う
type Factory func() Classifier
