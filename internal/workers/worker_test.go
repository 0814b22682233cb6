// SPDX-License-Identifier: Apache-2.0

package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicekeep/voicekeep/internal/logger"
	"github.com/voicekeep/voicekeep/models"
)

// fakeEngine scripts the engine behavior for worker protocol tests.
type fakeEngine struct {
	mu         sync.Mutex
	loadErr    error
	loadCalls  int
	infer      func(partial func(string)) (string, error)
	inferCalls int
	release    chan struct{} // when set, Transcribe blocks until closed
}

func (f *fakeEngine) LoadModel(_ context.Context, progress func(int)) error {
	f.mu.Lock()
	f.loadCalls++
	f.mu.Unlock()

	if f.loadErr != nil {
		return f.loadErr
	}
	progress(0)
	progress(100)
	return nil
}

func (f *fakeEngine) Transcribe(_ context.Context, _ []float32, _ int, partial func(string)) (string, error) {
	f.mu.Lock()
	f.inferCalls++
	release := f.release
	f.mu.Unlock()

	if release != nil {
		<-release
	}
	if f.infer != nil {
		return f.infer(partial)
	}
	return "final", nil
}

func collect(t *testing.T, ch <-chan models.TranscriptMessage) []models.TranscriptMessage {
	t.Helper()

	var out []models.TranscriptMessage
	timeout := time.After(5 * time.Second)
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, msg)
		case <-timeout:
			t.Fatal("worker did not close its channel")
		}
	}
}

func kinds(msgs []models.TranscriptMessage) []models.TranscriptMessageKind {
	out := make([]models.TranscriptMessageKind, len(msgs))
	for i, m := range msgs {
		out[i] = m.Kind
	}
	return out
}

func TestWorker_ProtocolOrder(t *testing.T) {
	engine := &fakeEngine{
		infer: func(partial func(string)) (string, error) {
			partial("hel")
			partial("hello wor")
			return "hello world", nil
		},
	}
	worker := NewTranscriptionWorker(engine, logger.Nop())

	ch, err := worker.Transcribe(context.Background(), []float32{0}, 16000)
	require.NoError(t, err)

	msgs := collect(t, ch)
	assert.Equal(t, []models.TranscriptMessageKind{
		models.TranscriptInitiate,
		models.TranscriptProgress,
		models.TranscriptProgress,
		models.TranscriptReady,
		models.TranscriptUpdate,
		models.TranscriptUpdate,
		models.TranscriptComplete,
	}, kinds(msgs))

	assert.Equal(t, "hel", msgs[4].Text)
	assert.Equal(t, "hello wor", msgs[5].Text)
	assert.Equal(t, "hello world", msgs[6].Text)
}

func TestWorker_ModelLoadedOnce(t *testing.T) {
	engine := &fakeEngine{}
	worker := NewTranscriptionWorker(engine, logger.Nop())

	for i := 0; i < 2; i++ {
		ch, err := worker.Transcribe(context.Background(), []float32{0}, 16000)
		require.NoError(t, err)
		collect(t, ch)
	}

	assert.Equal(t, 1, engine.loadCalls)
	assert.Equal(t, 2, engine.inferCalls)

	// The second job skips the load phase entirely.
	ch, err := worker.Transcribe(context.Background(), []float32{0}, 16000)
	require.NoError(t, err)
	msgs := collect(t, ch)
	assert.Equal(t, models.TranscriptReady, msgs[0].Kind)
}

func TestWorker_BusyRejectsSecondJob(t *testing.T) {
	release := make(chan struct{})
	engine := &fakeEngine{release: release}
	worker := NewTranscriptionWorker(engine, logger.Nop())

	first, err := worker.Transcribe(context.Background(), []float32{0}, 16000)
	require.NoError(t, err)

	// The first job is still blocked in inference.
	assert.Eventually(t, func() bool {
		engine.mu.Lock()
		defer engine.mu.Unlock()
		return engine.inferCalls == 1
	}, time.Second, 10*time.Millisecond)

	_, err = worker.Transcribe(context.Background(), []float32{0}, 16000)
	assert.ErrorIs(t, err, ErrWorkerBusy)

	close(release)
	collect(t, first)

	// After the first job drains, the slot frees again.
	ch, err := worker.Transcribe(context.Background(), []float32{0}, 16000)
	require.NoError(t, err)
	collect(t, ch)
}

func TestWorker_LoadFailureEmitsError(t *testing.T) {
	engine := &fakeEngine{loadErr: errors.New("model file corrupt")}
	worker := NewTranscriptionWorker(engine, logger.Nop())

	ch, err := worker.Transcribe(context.Background(), []float32{0}, 16000)
	require.NoError(t, err)

	msgs := collect(t, ch)
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1]
	assert.Equal(t, models.TranscriptError, last.Kind)
	assert.Contains(t, last.Err, "model file corrupt")

	// A failed load is retried on the next job.
	ch, err = worker.Transcribe(context.Background(), []float32{0}, 16000)
	require.NoError(t, err)
	collect(t, ch)
	assert.Equal(t, 2, engine.loadCalls)
}

func TestWorker_InferenceFailureEmitsError(t *testing.T) {
	engine := &fakeEngine{
		infer: func(partial func(string)) (string, error) {
			partial("partial text")
			return "", errors.New("decoder blew up")
		},
	}
	worker := NewTranscriptionWorker(engine, logger.Nop())

	ch, err := worker.Transcribe(context.Background(), []float32{0}, 16000)
	require.NoError(t, err)

	msgs := collect(t, ch)
	last := msgs[len(msgs)-1]
	assert.Equal(t, models.TranscriptError, last.Kind)
	assert.Contains(t, last.Err, "decoder blew up")

	// The partial hypothesis was still delivered before the failure.
	assert.Equal(t, models.TranscriptUpdate, msgs[len(msgs)-2].Kind)
}
