package models

import (
	"time"
)

// UsageRecord is one billed action charged to an owner after a job completes.
type UsageRecord struct {
	ID        string    `json:"id" badgerhold:"key"`
	Owner     string    `json:"owner" badgerhold:"index"`
	JobID     string    `json:"job_id"`
	Action    string    `json:"action"` // e.g. "profile_enrich", "follower_list", "analysis"
	Cost      float64   `json:"cost"`
	CreatedAt time.Time `json:"created_at"`
}
