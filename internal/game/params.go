package game

import (
	"fmt"
	"strconv"
)

// IntParam extracts an integer from params. JSON numbers arrive as float64.
func IntParam(params map[string]any, key string) (int64, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}

	switch val := v.(type) {
	case int:
		return int64(val), true
	case int64:
		return val, true
	case float64:
		return int64(val), true
	case string:
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// StringParam extracts a string from params. Numbers are formatted so that a
// raw bet amount may be sent either way.
func StringParam(params map[string]any, key string) (string, bool) {
	v, ok := params[key]
	if !ok || v == nil {
		return "", false
	}

	switch val := v.(type) {
	case string:
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	default:
		return fmt.Sprint(val), true
	}
}

// RequireString is StringParam that fails with ErrMissingParam.
func RequireString(params map[string]any, key string) (string, error) {
	s, ok := StringParam(params, key)
	if !ok {
		return "", Invalid(fmt.Errorf("%w: %s", ErrMissingParam, key))
	}
	return s, nil
}
