package store

import "errors"

// Sentinel errors returned by store methods to signal well-known failure
// conditions. Callers should use [errors.Is] to match against these values.
var (
	// ErrBlobNotFound is returned when a storage key or reference does not
	// correspond to a stored blob in any backend. It is the only
	// backend-independent "miss" signal; backend-specific errors are never
	// surfaced to callers.
	ErrBlobNotFound = errors.New("blob not found")

	// ErrInvalidStorageRef is returned when a string presented as a storage
	// reference does not carry the blob scheme prefix.
	ErrInvalidStorageRef = errors.New("invalid storage reference")

	// ErrNoteNotFound is returned when a note id does not exist in the
	// repository.
	ErrNoteNotFound = errors.New("note not found")

	// ErrNoteCycle is returned when a mutation would make a note its own
	// ancestor.
	ErrNoteCycle = errors.New("note cannot be its own ancestor")

	// ErrBuiltInAgentImmutable is returned when an update or delete targets
	// a built-in agent.
	ErrBuiltInAgentImmutable = errors.New("built-in agents cannot be modified")

	// ErrAgentNotFound is returned when an agent id does not exist.
	ErrAgentNotFound = errors.New("agent not found")
)
