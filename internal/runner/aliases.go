package runner

import (
	"strings"

	"github.com/vanillabrand/fandom-velocity/internal/models"
)

// Logical task families. Handlers submit these names; the alias table maps
// them to the canonical actor ids the platform knows. Fingerprints are always
// computed over the canonical id so an alias rename never invalidates cached
// results.
const (
	TaskProfileEnrich = "profile-enrich"
	TaskFollowerList  = "follower-list"
)

var taskAliases = map[string]string{
	TaskProfileEnrich: "apify~instagram-profile-scraper",
	TaskFollowerList:  "apify~instagram-followers-scraper",
}

// CanonicalTaskID resolves a logical task name to its canonical actor id.
// Names not in the alias table are assumed already canonical.
func CanonicalTaskID(taskID string) string {
	if canonical, ok := taskAliases[taskID]; ok {
		return canonical
	}
	return taskID
}

// dataTypeFor classifies a task's results for cache TTL policy.
func dataTypeFor(taskID string) models.DataType {
	switch {
	case strings.Contains(taskID, "follower"):
		return models.DataTypeFollowerList
	case strings.Contains(taskID, "profile"):
		return models.DataTypeProfileSnapshot
	default:
		return models.DataTypeDefault
	}
}
