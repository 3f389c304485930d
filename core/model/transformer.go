package model

import "gonum.org/v1/gonum/mat"

// Transformer は教師なしのデータ変換のインターフェース
type Transformer interface {
	// Fit は変換に必要なパラメータを学習する
	Fit(X mat.Matrix) error

	// Transform はデータを変換する
	Transform(X mat.Matrix) (mat.Matrix, error)

	// FitTransform はFitとTransformを同時に実行する
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// SupervisedTransformer は目的変数を使って学習する変換のインターフェース
// (例: SelectKBest)
type SupervisedTransformer interface {
	Fit(X, y mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
	FitTransform(X, y mat.Matrix) (mat.Matrix, error)
}
