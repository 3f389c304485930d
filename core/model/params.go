package model

import (
	"math"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
)

// IntParam は SetParams に渡された値を int に変換する
// YAML からは int、JSON からは float64 で届くため両方を受け付ける
func IntParam(name string, value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, errors.NewValidationError(name, "must be an integer", value)
		}
		return int(v), nil
	default:
		return 0, errors.NewValidationError(name, "must be an integer", value)
	}
}

// FloatParam は SetParams に渡された値を float64 に変換する
func FloatParam(name string, value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, errors.NewValidationError(name, "must be a number", value)
	}
}

// StringParam は SetParams に渡された値を string に変換する
func StringParam(name string, value interface{}) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", errors.NewValidationError(name, "must be a string", value)
	}
	return s, nil
}

// BoolParam は SetParams に渡された値を bool に変換する
func BoolParam(name string, value interface{}) (bool, error) {
	b, ok := value.(bool)
	if !ok {
		return false, errors.NewValidationError(name, "must be a boolean", value)
	}
	return b, nil
}
