// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/voicekeep/voicekeep/internal/adapter"
	"github.com/voicekeep/voicekeep/internal/logger"
	"github.com/voicekeep/voicekeep/models"
)

// providerRegistry is the in-memory implementation of [ProviderRegistry].
// Validation state is only ever written by explicit Validate calls; the
// query methods derive from it without side effects.
type providerRegistry struct {
	factory adapter.ClientFactory

	mu           sync.RWMutex
	providers    map[string]models.LLMProvider
	defaultModel string

	logger *logger.Logger
}

// NewProviderRegistry constructs an empty registry. factory builds the
// outbound client for each provider's base URL and key.
func NewProviderRegistry(factory adapter.ClientFactory, log *logger.Logger) ProviderRegistry {
	return &providerRegistry{
		factory:   factory,
		providers: make(map[string]models.LLMProvider),
		logger:    log,
	}
}

// AddProvider implements [ProviderRegistry]. The assigned id is a slug of
// the provider name (with a numeric suffix on collision), deliberately not
// time-based so it survives re-imports. Validation starts asynchronously.
func (r *providerRegistry) AddProvider(ctx context.Context, cfg models.LLMProvider) (models.LLMProvider, error) {
	if strings.TrimSpace(cfg.Name) == "" {
		return models.LLMProvider{}, fmt.Errorf("provider name is required")
	}

	r.mu.Lock()
	cfg.ID = r.uniqueIDLocked(slugify(cfg.Name))
	cfg.IsValid = false
	cfg.Models = nil
	cfg.LastError = ""
	r.providers[cfg.ID] = cfg
	r.mu.Unlock()

	go r.Validate(ctx, cfg.ID)

	return cfg, nil
}

// uniqueIDLocked appends -2, -3, ... until the slug is free. Caller must
// hold mu.
func (r *providerRegistry) uniqueIDLocked(slug string) string {
	id := slug
	for n := 2; ; n++ {
		if _, exists := r.providers[id]; !exists {
			return id
		}
		id = fmt.Sprintf("%s-%d", slug, n)
	}
}

func slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteRune('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}

// Validate implements [ProviderRegistry]. It performs one model-list
// request; success stores the models and clears LastError, failure stores
// the classified error. It always resolves to a boolean.
func (r *providerRegistry) Validate(ctx context.Context, providerID string) bool {
	r.mu.RLock()
	provider, ok := r.providers[providerID]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	client := r.factory(provider.BaseURL, provider.APIKey)
	modelIDs, err := client.ListModels(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	// The provider may have been removed while the request was in flight.
	provider, ok = r.providers[providerID]
	if !ok {
		return false
	}

	provider.LastValidated = time.Now()
	if err != nil {
		provider.IsValid = false
		provider.Models = nil
		provider.LastError = adapter.Classify(err)
		r.providers[providerID] = provider
		r.logger.Warn().Err(err).Str("provider", providerID).Str("class", provider.LastError).Msg("provider validation failed")
		return false
	}

	provider.IsValid = true
	provider.Models = modelIDs
	provider.LastError = ""
	r.providers[providerID] = provider
	r.logger.Debug().Str("provider", providerID).Int("models", len(modelIDs)).Msg("provider validated")
	return true
}

// ValidateAll implements [ProviderRegistry].
func (r *providerRegistry) ValidateAll(ctx context.Context) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			r.Validate(ctx, id)
		}(id)
	}
	wg.Wait()
}

// GetProvider implements [ProviderRegistry].
func (r *providerRegistry) GetProvider(providerID string) (models.LLMProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, ok := r.providers[providerID]
	if !ok {
		return models.LLMProvider{}, fmt.Errorf("provider %s: %w", providerID, ErrProviderNotFound)
	}
	return provider, nil
}

// ListProviders implements [ProviderRegistry].
func (r *providerRegistry) ListProviders() []models.LLMProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.LLMProvider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RemoveProvider implements [ProviderRegistry].
func (r *providerRegistry) RemoveProvider(providerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[providerID]; !ok {
		return fmt.Errorf("provider %s: %w", providerID, ErrProviderNotFound)
	}
	delete(r.providers, providerID)
	return nil
}

// GetAvailableModels implements [ProviderRegistry]. Models are the
// deduplicated union across valid providers, sorted for stable display.
func (r *providerRegistry) GetAvailableModels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, p := range r.providers {
		if !p.IsValid {
			continue
		}
		for _, m := range p.Models {
			seen[m] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// HasValidProvider implements [ProviderRegistry].
func (r *providerRegistry) HasValidProvider() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.providers {
		if p.IsValid {
			return true
		}
	}
	return false
}

// GetDefaultModel implements [ProviderRegistry].
func (r *providerRegistry) GetDefaultModel() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultModel
}

// SetDefaultModel implements [ProviderRegistry]. The model does not have to
// be currently available: a provider may simply not be validated yet.
func (r *providerRegistry) SetDefaultModel(model string) error {
	if strings.TrimSpace(model) == "" {
		return fmt.Errorf("default model cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultModel = model
	return nil
}

// CanRunAgents implements [ProviderRegistry].
func (r *providerRegistry) CanRunAgents() bool {
	return r.HasValidProvider() && r.GetDefaultModel() != ""
}

// ModelClient implements [ProviderRegistry].
func (r *providerRegistry) ModelClient(model string) (adapter.ProviderClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.sortedLocked() {
		if !p.IsValid {
			continue
		}
		for _, m := range p.Models {
			if m == model {
				return r.factory(p.BaseURL, p.APIKey), nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrModelUnavailable, model)
}

// TranscriptionClient implements [ProviderRegistry].
func (r *providerRegistry) TranscriptionClient() (adapter.ProviderClient, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.sortedLocked() {
		if p.IsValid && p.SupportsTranscription {
			return r.factory(p.BaseURL, p.APIKey), true
		}
	}
	return nil, false
}

// ClientFor implements [ProviderRegistry].
func (r *providerRegistry) ClientFor(providerID string) (adapter.ProviderClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[providerID]
	if !ok {
		return nil, fmt.Errorf("provider %s: %w", providerID, ErrProviderNotFound)
	}
	return r.factory(p.BaseURL, p.APIKey), nil
}

// registrySnapshot is the JSON shape of a registry export. The default model
// travels with the providers so a re-import restores agent eligibility
// without reconfiguration.
type registrySnapshot struct {
	Providers    []models.LLMProvider `json:"providers"`
	DefaultModel string               `json:"default_model,omitempty"`
}

// Export implements [ProviderRegistry].
func (r *providerRegistry) Export() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := registrySnapshot{
		Providers:    r.sortedLocked(),
		DefaultModel: r.defaultModel,
	}
	return json.MarshalIndent(snapshot, "", "  ")
}

// Import implements [ProviderRegistry]. Validation state is not trusted
// across machines: imported providers are stored unvalidated and must pass
// Validate before any model becomes available again.
func (r *providerRegistry) Import(data []byte) error {
	var snapshot registrySnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("decode provider export: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers = make(map[string]models.LLMProvider, len(snapshot.Providers))
	for _, p := range snapshot.Providers {
		if p.ID == "" {
			return fmt.Errorf("provider %q has no id", p.Name)
		}
		p.IsValid = false
		p.Models = nil
		p.LastError = ""
		r.providers[p.ID] = p
	}
	r.defaultModel = snapshot.DefaultModel
	return nil
}

// sortedLocked returns providers ordered by id so client selection is
// deterministic. Caller must hold mu.
func (r *providerRegistry) sortedLocked() []models.LLMProvider {
	out := make([]models.LLMProvider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
