// Package fingerprint derives the canonical cache identity of one remote
// task invocation. Two calls that would produce the same remote work must
// produce the same fingerprint regardless of map iteration order or target
// ordering in the input.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Compute returns the hex fingerprint for a task invocation. The identity
// covers the canonical task id, the full input after canonicalization, and
// the depth discriminator, so the same targets requested at different depths
// never collide.
func Compute(taskID string, input map[string]interface{}, depth int) string {
	var b strings.Builder
	b.WriteString(taskID)
	b.WriteString("|")
	writeCanonical(&b, input)
	b.WriteString("|depth=")
	fmt.Fprintf(&b, "%d", depth)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// writeCanonical serializes a value deterministically: map keys sorted
// recursively, slices in given order, scalars via %v. This is stable across
// processes, unlike encoding/json map output fed from interface{} values of
// varying concrete types.
func writeCanonical(b *strings.Builder, v interface{}) {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("{")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(k)
			b.WriteString(":")
			writeCanonical(b, val[k])
		}
		b.WriteString("}")
	case []interface{}:
		b.WriteString("[")
		for i, item := range val {
			if i > 0 {
				b.WriteString(",")
			}
			writeCanonical(b, item)
		}
		b.WriteString("]")
	case []string:
		b.WriteString("[")
		for i, item := range val {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(item)
		}
		b.WriteString("]")
	case nil:
		b.WriteString("null")
	default:
		fmt.Fprintf(b, "%v", val)
	}
}

// LegacyKey reproduces the pre-fingerprint cache key format so old entries
// stay readable: task id joined with the sorted target list.
func LegacyKey(taskID string, targets []string) string {
	sorted := make([]string, len(targets))
	copy(sorted, targets)
	sort.Strings(sorted)
	return taskID + "|" + strings.Join(sorted, ",")
}
