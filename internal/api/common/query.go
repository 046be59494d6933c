package common

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrMissingParameter is returned when a required query parameter is absent
var ErrMissingParameter = errors.New("missing query parameter")

// GetBoolQueryParam extracts a required boolean query parameter.
// Accepted values (case-insensitive): true/false, 1/0, yes/no, on/off, t/f, y/n.
func GetBoolQueryParam(r *http.Request, paramName string) (bool, error) {
	values, ok := r.URL.Query()[paramName]
	if !ok || len(values) == 0 {
		return false, fmt.Errorf("%w: %s", ErrMissingParameter, paramName)
	}

	switch strings.ToLower(strings.TrimSpace(values[0])) {
	case "true", "t", "1", "yes", "y", "on":
		return true, nil
	case "false", "f", "0", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s must be a boolean, got %q", paramName, values[0])
	}
}
