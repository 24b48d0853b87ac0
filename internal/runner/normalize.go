package runner

import (
	"regexp"
	"sort"
	"strings"

	"github.com/vanillabrand/fandom-velocity/internal/models"
)

// usernamePattern matches a canonical platform handle after lowercasing and
// prefix stripping.
var usernamePattern = regexp.MustCompile(`^[a-z0-9._]{1,30}$`)

// normalizeInput canonicalizes a task's input so that equivalent requests
// produce identical maps, and therefore identical fingerprints. It returns
// the normalized input plus the sorted target list used for legacy cache
// keys. models.ErrNoTargets is returned when nothing valid remains.
func normalizeInput(taskID string, input map[string]interface{}) (map[string]interface{}, []string, error) {
	targets := canonicalizeTargets(extractTargets(input))
	if len(targets) == 0 {
		return nil, nil, models.ErrNoTargets
	}

	normalized := map[string]interface{}{
		"usernames": targets,
	}

	// follower-list carries a per-target fetch limit that is part of the
	// request identity.
	if taskID == TaskFollowerList {
		if limit, ok := intValue(input["maxFollowers"]); ok && limit > 0 {
			normalized["maxFollowers"] = limit
		}
	}

	return normalized, targets, nil
}

// extractTargets pulls the raw target list out of the loosely-shaped caller
// input: a "usernames" or "userIds" list, or a single "username" string.
func extractTargets(input map[string]interface{}) []string {
	for _, key := range []string{"usernames", "userIds"} {
		switch v := input[key].(type) {
		case []string:
			return v
		case []interface{}:
			out := make([]string, 0, len(v))
			for _, item := range v {
				if s, ok := item.(string); ok {
					out = append(out, s)
				}
			}
			return out
		}
	}
	if s, ok := input["username"].(string); ok {
		return []string{s}
	}
	return nil
}

// canonicalizeTargets lowercases, strips handle prefixes, drops invalid
// entries, deduplicates, and sorts. Sorting makes target order irrelevant to
// the fingerprint.
func canonicalizeTargets(raw []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.ToLower(strings.TrimSpace(t))
		t = strings.TrimPrefix(t, "@")
		if t == "" || !usernamePattern.MatchString(t) {
			continue
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func intValue(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
