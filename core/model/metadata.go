package model

import (
	"encoding/json"
	"time"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
)

// Metadata は保存されたモデルに付随する情報（モデルカード）
type Metadata struct {
	// Name は設定ファイル上のモデル名（例: "Random Forest"）
	Name string `json:"name"`

	// Kind はファクトリの種別名（例: "random_forest"）
	Kind string `json:"kind"`

	// Version はバンドル形式のバージョン（互換性チェック用）
	Version string `json:"version"`

	// Features は選択された特徴量の名前
	Features []string `json:"features,omitempty"`

	// ClassNames はエンコード前のクラス名
	ClassNames []string `json:"class_names,omitempty"`

	// Hyperparameters はモデルのハイパーパラメータ
	Hyperparameters map[string]interface{} `json:"hyperparameters,omitempty"`

	// Metrics はテストデータでの評価値
	Metrics map[string]float64 `json:"metrics,omitempty"`

	TrainedAt time.Time `json:"trained_at"`
	IsFitted  bool      `json:"is_fitted"`
}

// ToJSON はMetadataをJSON形式にシリアライズ
func (m *Metadata) ToJSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// FromJSON はJSON形式からMetadataをデシリアライズ
func (m *Metadata) FromJSON(data []byte) error {
	return json.Unmarshal(data, m)
}

// Validate はMetadataの妥当性を検証
func (m *Metadata) Validate() error {
	if m.Kind == "" {
		return errors.NewValidationError("kind", "is required", m.Kind)
	}
	if m.Version == "" {
		return errors.NewValidationError("version", "is required", m.Version)
	}
	if !m.IsFitted && len(m.Metrics) > 0 {
		return errors.NewValidationError("metrics", "unfitted model should not have metrics", len(m.Metrics))
	}
	return nil
}

// Clone はMetadataのディープコピーを作成
func (m *Metadata) Clone() *Metadata {
	clone := *m
	clone.Features = append([]string(nil), m.Features...)
	clone.ClassNames = append([]string(nil), m.ClassNames...)
	clone.Hyperparameters = make(map[string]interface{}, len(m.Hyperparameters))
	for k, v := range m.Hyperparameters {
		clone.Hyperparameters[k] = v
	}
	clone.Metrics = make(map[string]float64, len(m.Metrics))
	for k, v := range m.Metrics {
		clone.Metrics[k] = v
	}
	return &clone
}
