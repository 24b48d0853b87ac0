// Package resolver expands target references between pipeline steps. A job
// handler's later steps name their targets either literally or as references
// into an earlier step's results; resolution happens after that step has run.
package resolver

import (
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
)

// Resolver substitutes step-result references and bounds the expansion.
type Resolver struct {
	maxTargets int
	logger     arbor.ILogger
}

// NewResolver creates a resolver. maxTargets caps the resolved list after
// deduplication; zero or negative disables the cap.
func NewResolver(maxTargets int, logger arbor.ILogger) *Resolver {
	return &Resolver{maxTargets: maxTargets, logger: logger}
}

// Resolve expands a target value against prior step results. The value may
// be a single string or a list; references use the form
// "{{stepName.field}}" and expand to that field of every item the step
// produced. A reference to a step with no recorded result expands to an
// empty list. A malformed reference fails fast with a descriptive error.
//
// The resolved list is deduplicated in encounter order and then capped, in
// that order, so duplicates never consume cap slots.
func (r *Resolver) Resolve(value interface{}, steps map[string][]map[string]interface{}) ([]string, error) {
	raw, err := r.expand(value, steps)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}

	if r.maxTargets > 0 && len(out) > r.maxTargets {
		if r.logger != nil {
			r.logger.Warn().
				Int("resolved", len(out)).
				Int("cap", r.maxTargets).
				Msg("Resolved target list capped")
		}
		out = out[:r.maxTargets]
	}
	return out, nil
}

// expand flattens the value into raw target strings, coercing single values
// to one-element lists.
func (r *Resolver) expand(value interface{}, steps map[string][]map[string]interface{}) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return r.expandString(v, steps)
	case []string:
		var out []string
		for _, s := range v {
			expanded, err := r.expandString(s, steps)
			if err != nil {
				return nil, err
			}
			out = append(out, expanded...)
		}
		return out, nil
	case []interface{}:
		var out []string
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("target list contains non-string value %v", item)
			}
			expanded, err := r.expandString(s, steps)
			if err != nil {
				return nil, err
			}
			out = append(out, expanded...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported target value type %T", value)
	}
}

// expandString resolves one string: either a literal target or a step
// reference.
func (r *Resolver) expandString(s string, steps map[string][]map[string]interface{}) ([]string, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{{") || !strings.HasSuffix(s, "}}") {
		return []string{s}, nil
	}

	ref := strings.TrimSpace(s[2 : len(s)-2])
	stepName, field, ok := strings.Cut(ref, ".")
	if !ok || stepName == "" || field == "" {
		return nil, fmt.Errorf("unresolvable target reference %q: expected {{step.field}}", s)
	}

	items, exists := steps[stepName]
	if !exists {
		// The referenced step produced nothing, which is an empty expansion
		// rather than an error: upstream may legitimately find zero results.
		return nil, nil
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if value, ok := item[field].(string); ok && value != "" {
			out = append(out, value)
		}
	}
	return out, nil
}
