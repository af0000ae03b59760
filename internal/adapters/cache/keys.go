package cache

import (
	"encoding/json"
	"fmt"
)

// BuildKey derives a stable key from an operation and its parameters.
// Map keys are serialized in sorted order, so callers only need to sort set-like slices.
func BuildKey(operation string, params map[string]any) string {
	if len(params) == 0 {
		return operation
	}

	serialized, err := json.Marshal(params)
	if err != nil {
		// Only plain data is passed in
		panic(fmt.Sprintf("failed to serialize cache key params for %s: %v", operation, err))
	}

	return operation + ":" + string(serialized)
}
