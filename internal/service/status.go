package service

import (
	"sync"

	"github.com/voicekeep/voicekeep/models"
)

// statusTracker is the in-memory implementation of [StatusTracker]. The
// state is transient by design: it exists only while a transcription or
// agent run is in flight and is never persisted.
type statusTracker struct {
	mu       sync.RWMutex
	statuses map[string]models.ProcessingStatus
}

// NewStatusTracker returns an empty [StatusTracker].
func NewStatusTracker() StatusTracker {
	return &statusTracker{statuses: make(map[string]models.ProcessingStatus)}
}

func (t *statusTracker) Begin(noteID, status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.statuses[noteID] = models.ProcessingStatus{IsProcessing: true, Status: status}
}

func (t *statusTracker) Set(noteID, status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.statuses[noteID]; ok && cur.IsProcessing {
		t.statuses[noteID] = models.ProcessingStatus{IsProcessing: true, Status: status}
	}
}

func (t *statusTracker) Fail(noteID, status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.statuses[noteID] = models.ProcessingStatus{IsProcessing: false, Status: status}
}

func (t *statusTracker) Finish(noteID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.statuses[noteID] = models.ProcessingStatus{IsProcessing: false, Status: ""}
}

func (t *statusTracker) Clear(noteID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.statuses, noteID)
}

func (t *statusTracker) Get(noteID string) models.ProcessingStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.statuses[noteID]
}
