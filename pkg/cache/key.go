package cache

import (
	"fmt"
	"sort"
	"strings"
)

// BuildKey derives a deterministic cache key from an operation name and its
// parameters: `<namespace>:<operation>:<sorted "k:v" pairs>`. Example:
// provider:prices:end:2024-01-31:interval:1day:start:2024-01-01:symbol:AAPL
func BuildKey(namespace, operation string, params map[string]string) string {
	if len(params) == 0 {
		return fmt.Sprintf("%s:%s", namespace, operation)
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(namespace)
	b.WriteByte(':')
	b.WriteString(operation)
	for _, k := range keys {
		b.WriteByte(':')
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(params[k])
	}
	return b.String()
}

// BuildPattern creates a match pattern covering every key of an operation.
func BuildPattern(namespace, operation string) string {
	return fmt.Sprintf("%s:%s*", namespace, operation)
}
