package kv

import (
	"fmt"
	"strings"

	"github.com/wasilibs/go-re2"
)

var keyRegexp = re2.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*$`)

// ParseSpecs parses KEY=VALUE specs into a map. Later keys override earlier ones
// and values can be empty or contain '='.
func ParseSpecs(specs []string) (map[string]string, error) {
	kvs := make(map[string]string, len(specs))

	for _, spec := range specs {
		if spec == "" {
			return nil, fmt.Errorf("parameter spec cannot be empty")
		}

		key, value, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("parameter %q must be in KEY=VALUE format", spec)
		}

		if !keyRegexp.MatchString(key) {
			return nil, fmt.Errorf("invalid parameter key %q", key)
		}

		kvs[key] = value
	}

	return kvs, nil
}

// MergeMaps returns a new map with the override values on top of the base ones.
func MergeMaps(base map[string]string, override map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}

	return merged
}
