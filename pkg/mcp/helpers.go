package mcp

import (
	"errors"
	"fmt"
)

var (
	ErrMissingParam = errors.New("missing required parameter")
	ErrParamType    = errors.New("wrong parameter type")
)

// GetStringParam reads a string argument. A JSON null counts as absent.
func GetStringParam(params map[string]interface{}, key string, required bool) (string, error) {
	v, ok := params[key]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("%w: %s", ErrMissingParam, key)
		}
		return "", nil
	}

	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: parameter %s must be a string", ErrParamType, key)
	}
	return s, nil
}

// GetStringParamDefault reads an optional string argument, returning
// defaultValue when it is absent or empty.
func GetStringParamDefault(params map[string]interface{}, key, defaultValue string) (string, error) {
	s, err := GetStringParam(params, key, false)
	if err != nil {
		return "", err
	}
	if s == "" {
		return defaultValue, nil
	}
	return s, nil
}
