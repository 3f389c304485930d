package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/rs/zerolog"
)

// 警告は処理を止めずに通知だけ行う。SetupLogger 後は zerolog に流れる。
var (
	warningMu sync.Mutex
	// warningHandler は zerolog 未設定時のフォールバック
	warningHandler = func(w error) { log.Printf("ensemble-warning: %v\n", w) }
	// zerologWarnFunc は pkg/log から注入される (pkg/log -> pkg/errors の循環 import を避ける)
	zerologWarnFunc func(warning error)
)

// SetWarningHandler は zerolog 未設定時に使う警告ハンドラを差し替えます。
//
//	errors.SetWarningHandler(func(w error) {}) // 警告を捨てる
func SetWarningHandler(handler func(w error)) {
	warningMu.Lock()
	defer warningMu.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc は警告の出力先を zerolog にします。nil でフォールバックに戻ります。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMu.Lock()
	defer warningMu.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
func Warn(w error) {
	warningMu.Lock()
	defer warningMu.Unlock()
	switch {
	case zerologWarnFunc != nil:
		zerologWarnFunc(w)
	case warningHandler != nil:
		warningHandler(w)
	}
}

// ConvergenceWarning: 反復最適化が max_iter までに収束しなかった。
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (w *ConvergenceWarning) Error() string {
	if w.Message == "" {
		return fmt.Sprintf("%s failed to converge after %d iterations. Consider increasing max_iter or adjusting parameters.", w.Algorithm, w.Iterations)
	}
	return fmt.Sprintf("%s failed to converge after %d iterations: %s", w.Algorithm, w.Iterations, w.Message)
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (w *ConvergenceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", "ConvergenceWarning").
		Str("algorithm", w.Algorithm).
		Int("iterations", w.Iterations).
		Str("message", w.Message)
}

// NewConvergenceWarning は ConvergenceWarning を作成します。
func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}

// DataConversionWarning: 入力データの型を暗黙に変換した (例: CSV の文字列列を one-hot 化)。
type DataConversionWarning struct {
	FromType string
	ToType   string
	Reason   string
}

func (w *DataConversionWarning) Error() string {
	return fmt.Sprintf("data converted from %s to %s. Reason: %s", w.FromType, w.ToType, w.Reason)
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (w *DataConversionWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", "DataConversionWarning").
		Str("from_type", w.FromType).
		Str("to_type", w.ToType).
		Str("reason", w.Reason)
}

// NewDataConversionWarning は DataConversionWarning を作成します。
func NewDataConversionWarning(from, to, reason string) *DataConversionWarning {
	return &DataConversionWarning{FromType: from, ToType: to, Reason: reason}
}

// UndefinedMetricWarning: 指標の分母が0で、zero_division の値で代用した。
// 例: あるクラスが一度も予測されなかったときの precision。
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64 // 代わりに返した値
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %f due to %s.", w.Metric, w.Result, w.Condition)
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (w *UndefinedMetricWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", "UndefinedMetricWarning").
		Str("metric", w.Metric).
		Str("condition", w.Condition).
		Float64("result", w.Result)
}

// NewUndefinedMetricWarning は UndefinedMetricWarning を作成します。
func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}
