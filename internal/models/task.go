package models

// InvocationStatus is the ephemeral state of one actor run as reported by the
// remote platform.
type InvocationStatus string

const (
	InvocationPending   InvocationStatus = "pending"
	InvocationRunning   InvocationStatus = "running"
	InvocationSucceeded InvocationStatus = "succeeded"
	InvocationFailed    InvocationStatus = "failed"
	InvocationAborted   InvocationStatus = "aborted"
	InvocationTimedOut  InvocationStatus = "timed-out"
)

// IsTerminal reports whether the run has stopped, successfully or not.
func (s InvocationStatus) IsTerminal() bool {
	switch s {
	case InvocationSucceeded, InvocationFailed, InvocationAborted, InvocationTimedOut:
		return true
	}
	return false
}

// TaskInvocation tracks one actor run for the duration of a single task
// runner call. It is never persisted; the cache entry it may produce is the
// only durable artifact.
type TaskInvocation struct {
	TaskID     string                 // canonical actor identifier
	Input      map[string]interface{} // normalized input
	Credential string                 // token chosen by rotation
	RunID      string                 // remote run identifier
	DatasetID  string                 // remote result-location identifier
	Status     InvocationStatus
}

// RunResult is what a task runner call returns to its handler.
type RunResult struct {
	Items     []map[string]interface{}
	DatasetID string
	FromCache bool
}
