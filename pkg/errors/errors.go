// Package errors はエラー型と警告をまとめたパッケージです。
// cockroachdb/errors でスタックトレースを付与し、zerolog で構造化して出力できます。
//
// 典型的な使い分け:
//
//	NotFittedError  学習前に Predict / Transform を呼んだ
//	DimensionError  行数・特徴量数が合わない
//	ValidationError ハイパーパラメータや設定値が範囲外
//	ValueError      値そのものが不正 (未知のラベル、欠損値など)
//	ModelError      学習・推論中のその他の失敗
package errors

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// よく使う原因エラー。Is で判定する。
var (
	ErrNotImplemented = New("not implemented")
	ErrEmptyData      = New("empty data")
	ErrUnknownModel   = New("unknown model kind")
)

// NotFittedError は学習前のモデル・前処理器を使おうとしたときのエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("ensemble: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("type", "NotFittedError").
		Str("model_name", e.ModelName).
		Str("method", e.Method)
}

// NewNotFittedError はスタック付きの NotFittedError を返します。
func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// DimensionError は行数 (Axis 0) または特徴量数 (Axis 1) の不一致です。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int
}

func axisName(axis int) string {
	if axis == 0 {
		return "rows"
	}
	return "features"
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("ensemble: %s: dimension mismatch on axis %d (%s). Expected %d, got %d",
		e.Op, e.Axis, axisName(e.Axis), e.Expected, e.Got)
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("type", "DimensionError").
		Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", axisName(e.Axis))
}

// NewDimensionError はスタック付きの DimensionError を返します。
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// ValidationError はパラメータや設定値の検証エラーです。
// ParamName には "k_best" や "split.test_size" のような名前が入ります。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("ensemble: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("type", "ValidationError").
		Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value)
}

// NewValidationError はスタック付きの ValidationError を返します。
func NewValidationError(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

// ValueError は入力値そのものが不正なときのエラーです。
// 例: LabelEncoder が学習時に見ていないラベルを受け取った。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("ensemble: %s: %s", e.Op, e.Message)
}

// NewValueError はスタック付きの ValueError を返します。
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ModelError は学習・推論中の失敗を原因エラー付きで表します。
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("ensemble: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("ensemble: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// NewModelError はスタック付きの ModelError を返します。
func NewModelError(op, kind string, err error) error {
	return errors.WithStack(&ModelError{Op: op, Kind: kind, Err: err})
}

// NumericalInstabilityError は NaN / Inf を検出したときのエラーです。
// 行列の検査では Iteration に行番号が入ります。
type NumericalInstabilityError struct {
	Operation string
	Values    []float64
	Iteration int
}

func (e *NumericalInstabilityError) Error() string {
	var b strings.Builder
	for i, v := range e.Values {
		if i > 0 {
			b.WriteString(", ")
		}
		if i >= 5 {
			b.WriteString("...")
			break
		}
		fmt.Fprintf(&b, "%.6g", v)
	}
	return fmt.Sprintf("ensemble: numerical instability detected in %s at iteration %d. Values: [%s]",
		e.Operation, e.Iteration, b.String())
}

// NewNumericalInstabilityError はスタック付きの NumericalInstabilityError を返します。
func NewNumericalInstabilityError(operation string, values []float64, iteration int) error {
	return errors.WithStack(&NumericalInstabilityError{Operation: operation, Values: values, Iteration: iteration})
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Wrap annotates err with message. Wrap(nil, ...) returns nil.
func Wrap(err error, message string) error { return errors.Wrap(err, message) }

// Wrapf annotates err with a formatted message. Wrapf(nil, ...) returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New returns an error with a stack trace.
func New(message string) error { return errors.New(message) }

// Newf returns a formatted error with a stack trace.
func Newf(format string, args ...interface{}) error { return errors.Newf(format, args...) }

// WithStack annotates err with the current stack trace.
func WithStack(err error) error { return errors.WithStack(err) }
