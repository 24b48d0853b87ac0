package models

// AnalysisContext is the input handed to the analysis provider. The runner
// and executor treat the provider as a pure function and are agnostic to how
// it produces its result.
type AnalysisContext struct {
	Owner    string                   `json:"owner"`
	JobID    string                   `json:"job_id"`
	Profiles []map[string]interface{} `json:"profiles"`
	// Followers maps a profile username to its scraped follower items.
	Followers map[string][]map[string]interface{} `json:"followers,omitempty"`
}

// SegmentScore is one scored audience segment.
type SegmentScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// AnalysisResult is the structured output of one analysis call.
type AnalysisResult struct {
	Summary  string         `json:"summary"`
	Segments []SegmentScore `json:"segments,omitempty"`
	Model    string         `json:"model,omitempty"`
}
