package models

import (
	"fmt"
	"time"

	"github.com/vanillabrand/fandom-velocity/internal/common"
)

// JobStatus represents the state of a job.
//
// Transitions are one-way: queued -> running -> {completed, failed, aborted}.
// A job is moved to running only by the atomic claim in the job store, so at
// most one worker ever owns a running job. "aborted" is set externally by a
// cancellation request and observed cooperatively by the owning worker.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusAborted   JobStatus = "aborted"
)

// JobType is the closed set of job types the executor can dispatch.
type JobType string

const (
	// JobTypeAudienceSnapshot enriches a set of profiles in one scrape pass.
	JobTypeAudienceSnapshot JobType = "audience_snapshot"
	// JobTypeFollowerGraph enriches profiles, scrapes their follower lists and
	// builds the audience graph with analysis.
	JobTypeFollowerGraph JobType = "follower_graph"
	// JobTypeRecheck re-runs enrichment for profiles that came back incomplete,
	// bounded by a maximum pass count.
	JobTypeRecheck JobType = "recheck"
)

// IsValidJobType reports whether t is a known job type.
func IsValidJobType(t JobType) bool {
	switch t {
	case JobTypeAudienceSnapshot, JobTypeFollowerGraph, JobTypeRecheck:
		return true
	}
	return false
}

// AudienceSnapshotSpec is the input for an audience_snapshot job.
type AudienceSnapshotSpec struct {
	Usernames  []string `json:"usernames" validate:"min=1"`
	ForceFresh bool     `json:"force_fresh,omitempty"` // bypass the fingerprint cache
}

// FollowerGraphSpec is the input for a follower_graph job.
type FollowerGraphSpec struct {
	Usernames    []string `json:"usernames" validate:"min=1"`
	MaxFollowers int      `json:"max_followers,omitempty"` // per-profile follower scrape limit
	ForceFresh   bool     `json:"force_fresh,omitempty"`
}

// RecheckSpec is the input for a recheck job.
type RecheckSpec struct {
	Usernames []string `json:"usernames" validate:"min=1"`
	MaxPasses int      `json:"max_passes,omitempty"` // defaults to 2, hard-capped by the handler
}

// JobMetadata is the per-type input bag. Exactly the variant matching the
// job's type is set; the handlers read only their own variant.
type JobMetadata struct {
	AudienceSnapshot *AudienceSnapshotSpec `json:"audience_snapshot,omitempty"`
	FollowerGraph    *FollowerGraphSpec    `json:"follower_graph,omitempty"`
	Recheck          *RecheckSpec          `json:"recheck,omitempty"`
}

// JobResult is the opaque success payload recorded on completion.
type JobResult struct {
	Items       []map[string]interface{} `json:"items,omitempty"`
	DatasetID   string                   `json:"dataset_id,omitempty"`
	FromCache   bool                     `json:"from_cache"`
	Graph       *Graph                   `json:"graph,omitempty"`
	Analysis    *AnalysisResult          `json:"analysis,omitempty"`
	RecordCount int                      `json:"record_count"`
}

// Job is the durable unit of work persisted in the job store.
//
// Jobs are created queued by an external submitter, claimed exactly once by a
// scheduler poller, and mutated only by the claiming worker while running.
type Job struct {
	ID       string      `json:"id" badgerhold:"key"`
	Owner    string      `json:"owner"`
	Type     JobType     `json:"type"`
	Status   JobStatus   `json:"status" badgerhold:"index"`
	Progress int         `json:"progress"` // 0-100
	Metadata JobMetadata `json:"metadata"`
	Result   *JobResult  `json:"result,omitempty"`
	Error    string      `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewJob creates a queued job for the given owner and type.
func NewJob(owner string, jobType JobType, metadata JobMetadata) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        common.NewJobID(),
		Owner:     owner,
		Type:      jobType,
		Status:    JobStatusQueued,
		Progress:  0,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks job identity and that the metadata variant matches the type.
func (j *Job) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	if j.Owner == "" {
		return fmt.Errorf("job owner is required")
	}
	if !IsValidJobType(j.Type) {
		return fmt.Errorf("unknown job type: %s", j.Type)
	}

	switch j.Type {
	case JobTypeAudienceSnapshot:
		if j.Metadata.AudienceSnapshot == nil {
			return fmt.Errorf("audience_snapshot job requires audience_snapshot metadata")
		}
	case JobTypeFollowerGraph:
		if j.Metadata.FollowerGraph == nil {
			return fmt.Errorf("follower_graph job requires follower_graph metadata")
		}
	case JobTypeRecheck:
		if j.Metadata.Recheck == nil {
			return fmt.Errorf("recheck job requires recheck metadata")
		}
	}
	return nil
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted ||
		j.Status == JobStatusFailed ||
		j.Status == JobStatusAborted
}

// MarkCompleted records a successful result and finishes progress.
func (j *Job) MarkCompleted(result *JobResult) {
	j.Status = JobStatusCompleted
	j.Result = result
	j.Progress = 100
	j.UpdatedAt = time.Now().UTC()
}

// MarkFailed records a failure with a human-readable message.
func (j *Job) MarkFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.Error = errorMsg
	j.UpdatedAt = time.Now().UTC()
}

// MarkAborted records cooperative cancellation.
func (j *Job) MarkAborted() {
	j.Status = JobStatusAborted
	j.UpdatedAt = time.Now().UTC()
}
