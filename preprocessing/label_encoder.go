package preprocessing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/core/model"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
)

// LabelEncoder はクラス名を 0..n_classes-1 の整数に変換する
// クラスは辞書順にソートされる
type LabelEncoder struct {
	model.BaseEstimator

	// ClassNames はソート済みなので二分探索で引ける
	ClassNames []string
}

// NewLabelEncoder は新しいLabelEncoderを作成する
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{}
}

// Fit はラベルから一意なクラスを学習する
func (e *LabelEncoder) Fit(labels []string) error {
	if len(labels) == 0 {
		return errors.NewModelError("LabelEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		seen[l] = struct{}{}
	}
	e.ClassNames = make([]string, 0, len(seen))
	for l := range seen {
		e.ClassNames = append(e.ClassNames, l)
	}
	sort.Strings(e.ClassNames)
	e.SetFitted()
	return nil
}

// Transform はラベルを整数コードに変換する
// 学習時に存在しなかったラベルは ValueError になる
func (e *LabelEncoder) Transform(labels []string) ([]int, error) {
	if !e.IsFitted() {
		return nil, errors.NewNotFittedError("LabelEncoder", "Transform")
	}
	codes := make([]int, len(labels))
	var unseen []string
	for i, l := range labels {
		code := sort.SearchStrings(e.ClassNames, l)
		if code == len(e.ClassNames) || e.ClassNames[code] != l {
			unseen = append(unseen, fmt.Sprintf("%q", l))
			continue
		}
		codes[i] = code
	}
	if len(unseen) > 0 {
		return nil, errors.NewValueError("LabelEncoder.Transform",
			fmt.Sprintf("y contains previously unseen labels: [%s]", strings.Join(unseen, ", ")))
	}
	return codes, nil
}

// FitTransform は学習と変換を同時に行う
func (e *LabelEncoder) FitTransform(labels []string) ([]int, error) {
	if err := e.Fit(labels); err != nil {
		return nil, err
	}
	return e.Transform(labels)
}

// InverseTransform は整数コードを元のラベルに戻す
func (e *LabelEncoder) InverseTransform(codes []int) ([]string, error) {
	if !e.IsFitted() {
		return nil, errors.NewNotFittedError("LabelEncoder", "InverseTransform")
	}
	out := make([]string, len(codes))
	for i, c := range codes {
		if c < 0 || c >= len(e.ClassNames) {
			return nil, errors.NewValueError("LabelEncoder.InverseTransform",
				fmt.Sprintf("code %d is out of range [0, %d)", c, len(e.ClassNames)))
		}
		out[i] = e.ClassNames[c]
	}
	return out, nil
}

// Classes は学習済みのクラス名のコピーを返す
func (e *LabelEncoder) Classes() []string {
	return append([]string(nil), e.ClassNames...)
}
