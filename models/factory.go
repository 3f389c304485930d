// Package models builds classifiers by name and persists trained models
// together with the preprocessor that produced their inputs.
package models

import (
	"fmt"
	"strings"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/core/model"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/sklearn/ensemble"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/sklearn/linear_model"
	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/sklearn/tree"
)

// Model kinds understood by New.
const (
	KindRandomForest       = "random_forest"
	KindExtraTrees         = "extra_trees"
	KindGradientBoosting   = "gradient_boosting"
	KindLogisticRegression = "logistic_regression"
	KindDecisionTree       = "decision_tree"
	KindVoting             = "voting"
)

// Kinds lists every kind New accepts.
var Kinds = []string{
	KindRandomForest,
	KindExtraTrees,
	KindGradientBoosting,
	KindLogisticRegression,
	KindDecisionTree,
	KindVoting,
}

// defaultVotingMembers は estimators 未指定時の VotingClassifier の構成
var defaultVotingMembers = []string{KindRandomForest, KindExtraTrees, KindGradientBoosting}

// New creates an unfitted classifier of the given kind and applies params
// through its SetParams.
//
// For "voting", params may carry "estimators" (a list of kinds, or of maps
// with name, kind and params), "voting" and "weights".
func New(kind string, params map[string]interface{}) (model.Classifier, error) {
	var clf model.Classifier
	switch kind {
	case KindRandomForest:
		clf = ensemble.NewRandomForestClassifier()
	case KindExtraTrees:
		clf = ensemble.NewExtraTreesClassifier()
	case KindGradientBoosting:
		clf = ensemble.NewGradientBoostingClassifier()
	case KindLogisticRegression:
		clf = linear_model.NewLogisticRegression()
	case KindDecisionTree:
		clf = tree.NewDecisionTreeClassifier()
	case KindVoting:
		return newVoting(params)
	default:
		return nil, errors.Wrapf(errors.ErrUnknownModel, "models.New(%q): expected one of %s", kind, strings.Join(Kinds, ", "))
	}
	if len(params) == 0 {
		return clf, nil
	}
	setter, ok := clf.(model.ParameterSetter)
	if !ok {
		return nil, errors.NewValueError("models.New", fmt.Sprintf("%s does not accept parameters", kind))
	}
	if err := setter.SetParams(params); err != nil {
		return nil, errors.Wrapf(err, "models.New(%q)", kind)
	}
	return clf, nil
}

// Factory returns a model.Factory that builds fresh copies of kind. params
// are validated once up front.
func Factory(kind string, params map[string]interface{}) (model.Factory, error) {
	if _, err := New(kind, params); err != nil {
		return nil, err
	}
	return func() model.Classifier {
		clf, _ := New(kind, params)
		return clf
	}, nil
}

func newVoting(params map[string]interface{}) (model.Classifier, error) {
	members, err := votingMembers(params["estimators"])
	if err != nil {
		return nil, err
	}
	var opts []ensemble.VotingOption
	if v, ok := params["voting"]; ok {
		s, err := model.StringParam("voting", v)
		if err != nil {
			return nil, err
		}
		opts = append(opts, ensemble.WithVoting(s))
	}
	if w, ok := params["weights"]; ok {
		weights, err := floatSlice("weights", w)
		if err != nil {
			return nil, err
		}
		opts = append(opts, ensemble.WithWeights(weights))
	}
	for key, value := range params {
		switch key {
		case "estimators", "voting", "weights":
		default:
			return nil, errors.NewValidationError(key, "unknown parameter", value)
		}
	}

	v := ensemble.NewVotingClassifier(members, opts...)
	// 不正な設定は学習前に検出する
	if err := v.SetParams(map[string]interface{}{}); err != nil {
		return nil, errors.Wrap(err, "models.New(\"voting\")")
	}
	return v, nil
}

func votingMembers(raw interface{}) ([]ensemble.NamedClassifier, error) {
	if raw == nil {
		members := make([]ensemble.NamedClassifier, 0, len(defaultVotingMembers))
		for _, kind := range defaultVotingMembers {
			clf, err := New(kind, nil)
			if err != nil {
				return nil, err
			}
			members = append(members, ensemble.NamedClassifier{Name: kind, Model: clf})
		}
		return members, nil
	}

	items, ok := raw.([]interface{})
	if !ok {
		return nil, errors.NewValidationError("estimators", "must be a list", raw)
	}
	members := make([]ensemble.NamedClassifier, 0, len(items))
	for _, item := range items {
		var name, kind string
		var params map[string]interface{}
		switch it := item.(type) {
		case string:
			name, kind = it, it
		case map[string]interface{}:
			kind, _ = it["kind"].(string)
			name, _ = it["name"].(string)
			if name == "" {
				name = kind
			}
			if p, ok := it["params"].(map[string]interface{}); ok {
				params = p
			}
		default:
			return nil, errors.NewValidationError("estimators", "items must be a kind or a {name, kind, params} map", item)
		}
		if kind == KindVoting {
			return nil, errors.NewValidationError("estimators", "voting cannot be nested", kind)
		}
		clf, err := New(kind, params)
		if err != nil {
			return nil, err
		}
		members = append(members, ensemble.NamedClassifier{Name: name, Model: clf})
	}
	return members, nil
}

func floatSlice(name string, value interface{}) ([]float64, error) {
	switch v := value.(type) {
	case []float64:
		return v, nil
	case []interface{}:
		out := make([]float64, len(v))
		for i, x := range v {
			f, err := model.FloatParam(name, x)
			if err != nil {
				return nil, err
			}
			out[i] = f
		}
		return out, nil
	}
	return nil, errors.NewValidationError(name, "must be a list of numbers", value)
}

// Hyperparameters returns the parameters of clf when it exposes them,
// with nil values dropped so the map can be gob encoded.
func Hyperparameters(clf interface{}) map[string]interface{} {
	g, ok := clf.(model.ParameterGetter)
	if !ok {
		return nil
	}
	out := map[string]interface{}{}
	for k, v := range g.GetParams() {
		if v == nil {
			continue
		}
		if s, ok := v.([]float64); ok && s == nil {
			continue
		}
		out[k] = v
	}
	return out
}
