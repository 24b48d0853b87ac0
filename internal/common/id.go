package common

import (
	"github.com/google/uuid"
)

// NewJobID generates a unique job ID with the "job_" prefix
// Format: job_<uuid>
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewUsageID generates a unique cost ledger record ID with the "usage_" prefix
func NewUsageID() string {
	return "usage_" + uuid.New().String()
}
