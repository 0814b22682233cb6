package models

// CanRunResult answers whether a specific agent can run right now, and if
// not, why. It is produced from local state only, never from a network call.
type CanRunResult struct {
	CanRun bool   `json:"can_run"`
	Reason string `json:"reason,omitempty"`
}

// AgentRunResult is the structured outcome of one agent run against one
// note. Failures are reported here rather than as errors so that one failed
// agent never aborts its siblings.
type AgentRunResult struct {
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name"`

	Success     bool   `json:"success"`
	ChildNoteID string `json:"child_note_id,omitempty"`
	Error       string `json:"error,omitempty"`
}

// AgentRunSummary aggregates the per-agent results of one auto-run pass.
type AgentRunSummary struct {
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Results   []AgentRunResult `json:"results"`
}

// DependencyReport is a read-only diagnostic over agent/provider
// configuration. It explains why agents are disabled; execution gating
// always goes through CanRunAgent instead.
type DependencyReport struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues"`
}

// ProcessingStatus is transient per-note state that exists only while a
// transcription or agent run is in flight for that note. It is never
// persisted.
type ProcessingStatus struct {
	IsProcessing bool   `json:"is_processing"`
	Status       string `json:"status"`
}
