// Package model provides estimator state, shared interfaces and gob
// persistence for the classifiers and transformers of this module.
package model

import (
	"sync"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
)

// BaseEstimator は前処理器 (LabelEncoder, スケーラ, 特徴量選択) に埋め込む学習済みフラグ。
// gob でそのまま保存できるようフィールドを公開している。
type BaseEstimator struct {
	Fitted bool
}

// IsFitted はFit済みかどうかを返す
func (e *BaseEstimator) IsFitted() bool { return e.Fitted }

// SetFitted はFit済みにする
func (e *BaseEstimator) SetFitted() { e.Fitted = true }

// Reset は未学習に戻す
func (e *BaseEstimator) Reset() { e.Fitted = false }

// ModelState は学習時に確定する状態。分類器の GobEncode スナップショットに含める。
type ModelState struct {
	Fitted    bool `json:"fitted"`
	NFeatures int  `json:"n_features,omitempty"`
	NSamples  int  `json:"n_samples,omitempty"`
}

// StateManager は分類器が合成で持つ ModelState のロック付きラッパー。
// 学習済みモデルは複数のgoroutineから同時に Predict されうる。
type StateManager struct {
	mu sync.RWMutex
	st ModelState
}

// NewStateManager returns an unfitted StateManager.
func NewStateManager() *StateManager {
	return &StateManager{}
}

func (s *StateManager) read() ModelState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st
}

func (s *StateManager) update(fn func(*ModelState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.st)
}

// IsFitted reports whether Fit completed.
func (s *StateManager) IsFitted() bool { return s.read().Fitted }

// SetFitted marks the model as fitted.
func (s *StateManager) SetFitted() { s.update(func(st *ModelState) { st.Fitted = true }) }

// Reset forgets everything learned by Fit.
func (s *StateManager) Reset() { s.update(func(st *ModelState) { *st = ModelState{} }) }

// SetDimensions records the training matrix shape.
func (s *StateManager) SetDimensions(nFeatures, nSamples int) {
	s.update(func(st *ModelState) {
		st.NFeatures = nFeatures
		st.NSamples = nSamples
	})
}

// GetDimensions returns the training matrix shape.
func (s *StateManager) GetDimensions() (nFeatures, nSamples int) {
	st := s.read()
	return st.NFeatures, st.NSamples
}

// RequireFitted returns a NotFittedError naming modelName and method until
// SetFitted is called.
func (s *StateManager) RequireFitted(modelName, method string) error {
	if s.IsFitted() {
		return nil
	}
	return errors.NewNotFittedError(modelName, method)
}

// CheckFeatures returns a DimensionError when nFeatures differs from the
// training width.
func (s *StateManager) CheckFeatures(op string, nFeatures int) error {
	if want := s.read().NFeatures; want != nFeatures {
		return errors.NewDimensionError(op, want, nFeatures, 1)
	}
	return nil
}

// GetState returns a copy of the state.
func (s *StateManager) GetState() ModelState { return s.read() }

// SetState replaces the state, typically from a decoded snapshot.
func (s *StateManager) SetState(state ModelState) { s.update(func(st *ModelState) { *st = state }) }
