package preprocessing

import (
	"encoding/gob"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/core/model"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/log"
)

func init() {
	gob.Register(&StandardScaler{})
	gob.Register(&MinMaxScaler{})
}

// DataPreprocessor は分類タスク用の前処理パイプライン
//
// Preprocess は次の順で処理する:
//  1. 目的変数のラベルエンコーディング
//  2. 低分散特徴量の除去 (VarianceThreshold)
//  3. スケーリング (StandardScaler / MinMaxScaler)
//  4. SelectKBest(f_classif) による特徴量選択
//
// 各ステップは訓練データで学習し、訓練・テストの両方に同じ変換を適用する。
type DataPreprocessor struct {
	VarianceThreshold float64
	KBest             int
	ScalerKind        string

	LabelEncoder     *LabelEncoder
	VarianceSelector *VarianceThreshold
	Scaler           Scaler
	FeatureSelector  *SelectKBest
}

// PreprocessorOption は DataPreprocessor の設定関数
type PreprocessorOption func(*DataPreprocessor)

// WithVarianceThreshold は低分散除去の閾値を設定する (デフォルト 0.01)
func WithVarianceThreshold(threshold float64) PreprocessorOption {
	return func(p *DataPreprocessor) { p.VarianceThreshold = threshold }
}

// WithKBest は選択する特徴量数を設定する (デフォルト 50)
func WithKBest(k int) PreprocessorOption {
	return func(p *DataPreprocessor) { p.KBest = k }
}

// WithScaler はスケーラーの種類を設定する ("standard" または "minmax")
func WithScaler(kind string) PreprocessorOption {
	return func(p *DataPreprocessor) { p.ScalerKind = kind }
}

// NewDataPreprocessor は新しいDataPreprocessorを作成する
//
// 使用例:
//
//	p := preprocessing.NewDataPreprocessor(preprocessing.WithKBest(20))
//	XTrain, XTest, yTrain, err := p.Preprocess(XTrainRaw, XTestRaw, labels)
func NewDataPreprocessor(opts ...PreprocessorOption) *DataPreprocessor {
	p := &DataPreprocessor{
		VarianceThreshold: 0.01,
		KBest:             50,
		ScalerKind:        "standard",
		LabelEncoder:      NewLabelEncoder(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *DataPreprocessor) logger() log.Logger {
	return log.GetLoggerWithName("preprocessing").With(log.ModelNameKey, "DataPreprocessor")
}

// FitTransformTarget はラベルエンコーダを学習し、目的変数を整数コードに変換する
func (p *DataPreprocessor) FitTransformTarget(y []string) ([]int, error) {
	if p.LabelEncoder == nil {
		p.LabelEncoder = NewLabelEncoder()
	}
	return p.LabelEncoder.FitTransform(y)
}

// TransformTarget は学習済みのエンコーダで目的変数を変換する
func (p *DataPreprocessor) TransformTarget(y []string) ([]int, error) {
	if p.LabelEncoder == nil {
		return nil, errors.NewNotFittedError("DataPreprocessor", "TransformTarget")
	}
	return p.LabelEncoder.Transform(y)
}

// InverseTransformTarget は整数コードを元のクラス名に戻す
func (p *DataPreprocessor) InverseTransformTarget(codes []int) ([]string, error) {
	if p.LabelEncoder == nil {
		return nil, errors.NewNotFittedError("DataPreprocessor", "InverseTransformTarget")
	}
	return p.LabelEncoder.InverseTransform(codes)
}

// ClassNames は学習済みのクラス名を返す
func (p *DataPreprocessor) ClassNames() []string {
	if p.LabelEncoder == nil {
		return nil
	}
	return p.LabelEncoder.Classes()
}

// RemoveLowVariance は訓練データで分散を学習し、両方のデータから低分散列を除く
func (p *DataPreprocessor) RemoveLowVariance(XTrain, XTest mat.Matrix) (mat.Matrix, mat.Matrix, error) {
	p.VarianceSelector = NewVarianceThreshold(p.VarianceThreshold)
	trainOut, err := p.VarianceSelector.FitTransform(XTrain)
	if err != nil {
		return nil, nil, err
	}
	testOut, err := p.VarianceSelector.Transform(XTest)
	if err != nil {
		return nil, nil, err
	}
	return trainOut, testOut, nil
}

// ScaleFeatures は訓練データでスケーラーを学習し、両方のデータに適用する
func (p *DataPreprocessor) ScaleFeatures(XTrain, XTest mat.Matrix) (mat.Matrix, mat.Matrix, error) {
	scaler, err := NewScaler(p.ScalerKind)
	if err != nil {
		return nil, nil, err
	}
	p.Scaler = scaler
	trainOut, err := p.Scaler.FitTransform(XTrain)
	if err != nil {
		return nil, nil, err
	}
	testOut, err := p.Scaler.Transform(XTest)
	if err != nil {
		return nil, nil, err
	}
	return trainOut, testOut, nil
}

// SelectBestFeatures は k = min(KBest, 列数) 個の特徴量を選ぶ
func (p *DataPreprocessor) SelectBestFeatures(XTrain, XTest mat.Matrix, yTrain []int) (mat.Matrix, mat.Matrix, error) {
	r, c, err := checkMatrix("DataPreprocessor.SelectBestFeatures", XTrain)
	if err != nil {
		return nil, nil, err
	}
	if len(yTrain) != r {
		return nil, nil, errors.NewDimensionError("DataPreprocessor.SelectBestFeatures", r, len(yTrain), 0)
	}
	if p.KBest <= 0 {
		return nil, nil, errors.NewValidationError("k_best", "must be positive", p.KBest)
	}
	p.FeatureSelector = NewSelectKBest(min(p.KBest, c))
	trainOut, err := p.FeatureSelector.FitTransform(XTrain, codesToVec(yTrain))
	if err != nil {
		return nil, nil, err
	}
	testOut, err := p.FeatureSelector.Transform(XTest)
	if err != nil {
		return nil, nil, err
	}
	return trainOut, testOut, nil
}

// Preprocess は前処理パイプライン全体を実行する
// 前処理済みの訓練データ、テストデータ、エンコード済みの訓練ラベルを返す
func (p *DataPreprocessor) Preprocess(XTrain, XTest mat.Matrix, yTrain []string) (mat.Matrix, mat.Matrix, []int, error) {
	start := time.Now()
	nTrain, nFeatures, err := checkMatrix("DataPreprocessor.Preprocess", XTrain)
	if err != nil {
		return nil, nil, nil, err
	}
	if _, c, err := checkMatrix("DataPreprocessor.Preprocess", XTest); err != nil {
		return nil, nil, nil, err
	} else if c != nFeatures {
		return nil, nil, nil, errors.NewDimensionError("DataPreprocessor.Preprocess", nFeatures, c, 1)
	}
	if len(yTrain) != nTrain {
		return nil, nil, nil, errors.NewDimensionError("DataPreprocessor.Preprocess", nTrain, len(yTrain), 0)
	}

	logger := p.logger()
	logger.Info("Preprocessing started",
		log.OperationKey, log.OperationFitTransform,
		log.PhaseKey, log.PhasePreprocessing,
		log.SamplesKey, nTrain,
		log.FeaturesKey, nFeatures,
	)

	yEncoded, err := p.FitTransformTarget(yTrain)
	if err != nil {
		return nil, nil, nil, err
	}

	XTrain, XTest, err = p.RemoveLowVariance(XTrain, XTest)
	if err != nil {
		return nil, nil, nil, err
	}
	_, afterVariance := XTrain.Dims()
	logger.Debug("Low variance features removed",
		"removed", nFeatures-afterVariance,
		log.FeaturesKey, afterVariance,
	)

	XTrain, XTest, err = p.ScaleFeatures(XTrain, XTest)
	if err != nil {
		return nil, nil, nil, err
	}

	XTrain, XTest, err = p.SelectBestFeatures(XTrain, XTest, yEncoded)
	if err != nil {
		return nil, nil, nil, err
	}

	_, selected := XTrain.Dims()
	logger.Info("Preprocessing completed",
		log.FeaturesKey, selected,
		log.ClassesKey, len(p.LabelEncoder.ClassNames),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return XTrain, XTest, yEncoded, nil
}

// IsFitted はパイプライン全体が学習済みかどうかを返す
func (p *DataPreprocessor) IsFitted() bool {
	return p.LabelEncoder != nil && p.LabelEncoder.IsFitted() &&
		p.VarianceSelector != nil && p.VarianceSelector.IsFitted() &&
		p.Scaler != nil && p.Scaler.IsFitted() &&
		p.FeatureSelector != nil && p.FeatureSelector.IsFitted()
}

// Transform は学習済みの変換 (分散 → スケーリング → 選択) を新しいデータに適用する
func (p *DataPreprocessor) Transform(X mat.Matrix) (mat.Matrix, error) {
	if !p.IsFitted() {
		return nil, errors.NewNotFittedError("DataPreprocessor", "Transform")
	}
	out, err := p.VarianceSelector.Transform(X)
	if err != nil {
		return nil, err
	}
	if out, err = p.Scaler.Transform(out); err != nil {
		return nil, err
	}
	return p.FeatureSelector.Transform(out)
}

// SelectedFeatures は両方のフィルタを通過した特徴量名を返す
// names は元データの列名
func (p *DataPreprocessor) SelectedFeatures(names []string) ([]string, error) {
	if !p.IsFitted() {
		return nil, errors.NewNotFittedError("DataPreprocessor", "SelectedFeatures")
	}
	if len(names) != p.VarianceSelector.NFeatures {
		return nil, errors.NewDimensionError("DataPreprocessor.SelectedFeatures", p.VarianceSelector.NFeatures, len(names), 1)
	}
	afterVariance := supportIndices(p.VarianceSelector.Support)
	var out []string
	for k, keep := range p.FeatureSelector.Support {
		if keep {
			out = append(out, names[afterVariance[k]])
		}
	}
	return out, nil
}

// Save は前処理器を gob 形式で保存する
func (p *DataPreprocessor) Save(path string) error {
	if err := model.SaveModel(p, path); err != nil {
		return errors.Wrapf(err, "save preprocessor to %s", path)
	}
	p.logger().Info("Preprocessor saved", log.PathKey, path, log.OperationKey, log.OperationSave)
	return nil
}

// LoadDataPreprocessor は保存された前処理器を読み込む
func LoadDataPreprocessor(path string) (*DataPreprocessor, error) {
	p := &DataPreprocessor{}
	if err := model.LoadModel(p, path); err != nil {
		return nil, errors.Wrapf(err, "load preprocessor from %s", path)
	}
	if p.FeatureSelector != nil {
		p.FeatureSelector.ScoreFunc = FClassif
	}
	return p, nil
}

func codesToVec(codes []int) *mat.VecDense {
	data := make([]float64, len(codes))
	for i, c := range codes {
		data[i] = float64(c)
	}
	return mat.NewVecDense(len(data), data)
}
