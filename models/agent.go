package models

import "time"

// Agent is a configured AI processor: a prompt run against a note's
// transcript to produce a derived child note.
type Agent struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Prompt string `json:"prompt"`

	// ModelID pins the agent to a specific model. Empty means "use the
	// registry's current default model".
	ModelID string `json:"model_id,omitempty"`

	Avatar string `json:"avatar"`

	// AutoRun marks the agent for automatic execution once a note's
	// transcript is finalized.
	AutoRun bool `json:"auto_run"`

	// Tags are copied onto every note the agent produces.
	Tags []string `json:"tags"`

	// OutputFormat hints at the shape of the agent's output ("markdown",
	// "list", ...). Informational only.
	OutputFormat string `json:"output_format"`

	// IsBuiltIn agents are immutable and non-deletable. Their ModelID is
	// bound to the registry's default model at initialization time only.
	IsBuiltIn bool `json:"is_built_in"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
