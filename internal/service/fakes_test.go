package service

import (
	"context"
	"io"
	"sync"

	"github.com/voicekeep/voicekeep/internal/adapter"
	"github.com/voicekeep/voicekeep/models"
)

// fakeRegistry is a scriptable [ProviderRegistry] for service tests.
type fakeRegistry struct {
	mu           sync.Mutex
	valid        bool
	defaultModel string
	models       []string
	client       adapter.ProviderClient
	sttClient    adapter.ProviderClient
}

func (f *fakeRegistry) AddProvider(_ context.Context, cfg models.LLMProvider) (models.LLMProvider, error) {
	return cfg, nil
}

func (f *fakeRegistry) Validate(context.Context, string) bool { return f.valid }

func (f *fakeRegistry) ValidateAll(context.Context) {}

func (f *fakeRegistry) GetProvider(string) (models.LLMProvider, error) {
	return models.LLMProvider{}, ErrProviderNotFound
}

func (f *fakeRegistry) ListProviders() []models.LLMProvider { return nil }

func (f *fakeRegistry) RemoveProvider(string) error { return ErrProviderNotFound }

func (f *fakeRegistry) GetAvailableModels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.models
}

func (f *fakeRegistry) HasValidProvider() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.valid
}

func (f *fakeRegistry) GetDefaultModel() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.defaultModel
}

func (f *fakeRegistry) SetDefaultModel(model string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defaultModel = model
	return nil
}

func (f *fakeRegistry) CanRunAgents() bool {
	return f.HasValidProvider() && f.GetDefaultModel() != ""
}

func (f *fakeRegistry) ModelClient(model string) (adapter.ProviderClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.models {
		if m == model && f.valid {
			return f.client, nil
		}
	}
	return nil, ErrModelUnavailable
}

func (f *fakeRegistry) TranscriptionClient() (adapter.ProviderClient, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sttClient != nil {
		return f.sttClient, true
	}
	return nil, false
}

func (f *fakeRegistry) ClientFor(string) (adapter.ProviderClient, error) {
	return nil, ErrProviderNotFound
}

func (f *fakeRegistry) Export() ([]byte, error) { return []byte("{}"), nil }

func (f *fakeRegistry) Import([]byte) error { return nil }

// fakeProviderClient scripts provider responses per test.
type fakeProviderClient struct {
	mu             sync.Mutex
	chatFn         func(model, systemPrompt, userContent string) (string, error)
	chatCalls      int
	transcribeFn   func() (string, error)
	transcribeCall int
	transcribeBody []byte
}

func (f *fakeProviderClient) ListModels(context.Context) ([]string, error) { return nil, nil }

func (f *fakeProviderClient) Chat(_ context.Context, model, systemPrompt, userContent string) (string, error) {
	f.mu.Lock()
	f.chatCalls++
	fn := f.chatFn
	f.mu.Unlock()
	if fn == nil {
		return "response", nil
	}
	return fn(model, systemPrompt, userContent)
}

func (f *fakeProviderClient) Transcribe(_ context.Context, _, _ string, audio io.Reader) (string, error) {
	body, err := io.ReadAll(audio)
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	f.transcribeCall++
	f.transcribeBody = body
	fn := f.transcribeFn
	f.mu.Unlock()
	if fn == nil {
		return "", ErrNoValidProvider
	}
	return fn()
}

// fakeWorker replays a scripted message sequence for each job.
type fakeWorker struct {
	mu      sync.Mutex
	script  []models.TranscriptMessage
	err     error
	calls   int
	release chan struct{} // when set, messages flow only after it closes
}

func (f *fakeWorker) Transcribe(_ context.Context, _ []float32, _ int) (<-chan models.TranscriptMessage, error) {
	f.mu.Lock()
	f.calls++
	err := f.err
	script := f.script
	release := f.release
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}

	out := make(chan models.TranscriptMessage)
	go func() {
		defer close(out)
		if release != nil {
			<-release
		}
		for _, msg := range script {
			out <- msg
		}
	}()
	return out, nil
}
