// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/voicekeep/voicekeep/internal/adapter"
	"github.com/voicekeep/voicekeep/internal/adapter/mocks"
	"github.com/voicekeep/voicekeep/internal/logger"
	"github.com/voicekeep/voicekeep/models"
)

// scriptedClient wraps a MockProviderClient whose ListModels response the
// test can swap at any time. AddProvider validates in the background, so
// expectations must tolerate calls at arbitrary moments.
type scriptedClient struct {
	mock *mocks.MockProviderClient

	mu     sync.Mutex
	models []string
	err    error
}

func newScriptedClient(ctrl *gomock.Controller, modelIDs []string) *scriptedClient {
	c := &scriptedClient{mock: mocks.NewMockProviderClient(ctrl), models: modelIDs}
	c.mock.EXPECT().
		ListModels(gomock.Any()).
		DoAndReturn(func(context.Context) ([]string, error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			return c.models, c.err
		}).
		AnyTimes()
	return c
}

func (c *scriptedClient) set(modelIDs []string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.models = modelIDs
	c.err = err
}

func singleClientRegistry(t *testing.T, modelIDs []string) (ProviderRegistry, *scriptedClient) {
	t.Helper()
	ctrl := gomock.NewController(t)
	client := newScriptedClient(ctrl, modelIDs)
	registry := NewProviderRegistry(func(_, _ string) adapter.ProviderClient {
		return client.mock
	}, logger.Nop())
	return registry, client
}

func waitValidated(t *testing.T, registry ProviderRegistry, id string) models.LLMProvider {
	t.Helper()
	var provider models.LLMProvider
	require.Eventually(t, func() bool {
		p, err := registry.GetProvider(id)
		if err != nil {
			return false
		}
		provider = p
		return !p.LastValidated.IsZero()
	}, 5*time.Second, 10*time.Millisecond, "provider %s never validated", id)
	return provider
}

func TestProviderRegistry_AddProviderAssignsSlugIDs(t *testing.T) {
	registry, _ := singleClientRegistry(t, []string{"gpt-4o"})
	ctx := context.Background()

	first, err := registry.AddProvider(ctx, models.LLMProvider{Name: "OpenAI Cloud", APIKey: "k1"})
	require.NoError(t, err)
	assert.Equal(t, "openai-cloud", first.ID)

	second, err := registry.AddProvider(ctx, models.LLMProvider{Name: "OpenAI Cloud", APIKey: "k2"})
	require.NoError(t, err)
	assert.Equal(t, "openai-cloud-2", second.ID)

	third, err := registry.AddProvider(ctx, models.LLMProvider{Name: "  My  Provider!  ", APIKey: "k3"})
	require.NoError(t, err)
	assert.Equal(t, "my-provider", third.ID)

	_, err = registry.AddProvider(ctx, models.LLMProvider{Name: "   "})
	assert.Error(t, err, "a provider needs a name")

	for _, id := range []string{"openai-cloud", "openai-cloud-2", "my-provider"} {
		provider := waitValidated(t, registry, id)
		assert.True(t, provider.IsValid)
	}
	assert.True(t, registry.HasValidProvider())
}

func TestProviderRegistry_ValidateStoresClassifiedError(t *testing.T) {
	registry, client := singleClientRegistry(t, nil)
	client.set(nil, fmt.Errorf("%w: status 401: invalid key", adapter.ErrUnauthorized))

	added, err := registry.AddProvider(context.Background(), models.LLMProvider{Name: "Broken", APIKey: "bad"})
	require.NoError(t, err)

	provider := waitValidated(t, registry, added.ID)
	assert.False(t, provider.IsValid)
	assert.Equal(t, "unauthorized", provider.LastError)
	assert.Empty(t, provider.Models)
	assert.False(t, registry.HasValidProvider())

	// The key gets fixed; revalidation clears the stored failure.
	client.set([]string{"gpt-4o", "o3"}, nil)
	assert.True(t, registry.Validate(context.Background(), added.ID))

	provider, err = registry.GetProvider(added.ID)
	require.NoError(t, err)
	assert.True(t, provider.IsValid)
	assert.Empty(t, provider.LastError)
	assert.Equal(t, []string{"gpt-4o", "o3"}, provider.Models)
}

func TestProviderRegistry_ValidateUnknownProvider(t *testing.T) {
	registry, _ := singleClientRegistry(t, []string{"gpt-4o"})

	assert.False(t, registry.Validate(context.Background(), "ghost"))

	_, err := registry.GetProvider("ghost")
	assert.ErrorIs(t, err, ErrProviderNotFound)
	assert.ErrorIs(t, registry.RemoveProvider("ghost"), ErrProviderNotFound)
}

func TestProviderRegistry_RemoveProviderDropsModels(t *testing.T) {
	registry, _ := singleClientRegistry(t, []string{"gpt-4o"})

	added, err := registry.AddProvider(context.Background(), models.LLMProvider{Name: "Solo", APIKey: "k"})
	require.NoError(t, err)
	waitValidated(t, registry, added.ID)

	require.NoError(t, registry.RemoveProvider(added.ID))

	assert.False(t, registry.HasValidProvider())
	assert.Empty(t, registry.GetAvailableModels())
	assert.Empty(t, registry.ListProviders())
}

// twoProviderRegistry wires two distinct mock clients selected by base URL.
func twoProviderRegistry(t *testing.T) (ProviderRegistry, *mocks.MockProviderClient, *mocks.MockProviderClient) {
	t.Helper()
	ctrl := gomock.NewController(t)

	alpha := mocks.NewMockProviderClient(ctrl)
	alpha.EXPECT().ListModels(gomock.Any()).Return([]string{"gpt-4o", "o3"}, nil).AnyTimes()
	beta := mocks.NewMockProviderClient(ctrl)
	beta.EXPECT().ListModels(gomock.Any()).Return([]string{"claude-3", "gpt-4o"}, nil).AnyTimes()

	registry := NewProviderRegistry(func(baseURL, _ string) adapter.ProviderClient {
		if baseURL == "https://alpha.example" {
			return alpha
		}
		return beta
	}, logger.Nop())

	ctx := context.Background()
	a, err := registry.AddProvider(ctx, models.LLMProvider{Name: "Alpha", BaseURL: "https://alpha.example", APIKey: "ka"})
	require.NoError(t, err)
	b, err := registry.AddProvider(ctx, models.LLMProvider{
		Name: "Beta", BaseURL: "https://beta.example", APIKey: "kb", SupportsTranscription: true,
	})
	require.NoError(t, err)

	waitValidated(t, registry, a.ID)
	waitValidated(t, registry, b.ID)
	return registry, alpha, beta
}

func TestProviderRegistry_GetAvailableModelsUnion(t *testing.T) {
	registry, _, _ := twoProviderRegistry(t)

	// Deduplicated union, sorted.
	assert.Equal(t, []string{"claude-3", "gpt-4o", "o3"}, registry.GetAvailableModels())
}

func TestProviderRegistry_ModelClientDeterministic(t *testing.T) {
	registry, alpha, beta := twoProviderRegistry(t)

	// Both providers offer gpt-4o; the one with the smaller id wins every
	// time.
	for range 3 {
		client, err := registry.ModelClient("gpt-4o")
		require.NoError(t, err)
		assert.Same(t, alpha, client)
	}

	client, err := registry.ModelClient("claude-3")
	require.NoError(t, err)
	assert.Same(t, beta, client)

	_, err = registry.ModelClient("nonexistent-model")
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestProviderRegistry_TranscriptionClient(t *testing.T) {
	registry, _, beta := twoProviderRegistry(t)

	client, ok := registry.TranscriptionClient()
	require.True(t, ok)
	assert.Same(t, beta, client, "only Beta is speech-capable")
}

func TestProviderRegistry_TranscriptionClientAbsent(t *testing.T) {
	registry, _ := singleClientRegistry(t, []string{"gpt-4o"})

	added, err := registry.AddProvider(context.Background(), models.LLMProvider{Name: "Chat Only", APIKey: "k"})
	require.NoError(t, err)
	waitValidated(t, registry, added.ID)

	_, ok := registry.TranscriptionClient()
	assert.False(t, ok)
}

func TestProviderRegistry_ValidateAll(t *testing.T) {
	registry, client := singleClientRegistry(t, nil)
	client.set(nil, fmt.Errorf("%w: connection refused", adapter.ErrNetwork))

	ctx := context.Background()
	a, err := registry.AddProvider(ctx, models.LLMProvider{Name: "One", APIKey: "k1"})
	require.NoError(t, err)
	b, err := registry.AddProvider(ctx, models.LLMProvider{Name: "Two", APIKey: "k2"})
	require.NoError(t, err)
	waitValidated(t, registry, a.ID)
	waitValidated(t, registry, b.ID)
	assert.False(t, registry.HasValidProvider())

	// The endpoint comes back; ValidateAll returns only after every
	// provider has been rechecked.
	client.set([]string{"gpt-4o"}, nil)
	registry.ValidateAll(ctx)

	for _, id := range []string{a.ID, b.ID} {
		provider, err := registry.GetProvider(id)
		require.NoError(t, err)
		assert.True(t, provider.IsValid, "provider %s", id)
		assert.Empty(t, provider.LastError)
	}
}

func TestProviderRegistry_ClientFor(t *testing.T) {
	registry, client := singleClientRegistry(t, []string{"gpt-4o"})

	added, err := registry.AddProvider(context.Background(), models.LLMProvider{Name: "Main", APIKey: "k"})
	require.NoError(t, err)

	// No validation required; the client is bound to the stored credentials.
	got, err := registry.ClientFor(added.ID)
	require.NoError(t, err)
	assert.Same(t, client.mock, got)

	_, err = registry.ClientFor("ghost")
	assert.ErrorIs(t, err, ErrProviderNotFound)
}

func TestProviderRegistry_ExportImportRoundTrip(t *testing.T) {
	registry, _ := singleClientRegistry(t, []string{"gpt-4o"})
	ctx := context.Background()

	added, err := registry.AddProvider(ctx, models.LLMProvider{
		Name: "Main", APIKey: "k", SupportsTranscription: true,
	})
	require.NoError(t, err)
	waitValidated(t, registry, added.ID)
	require.NoError(t, registry.SetDefaultModel("gpt-4o"))

	payload, err := registry.Export()
	require.NoError(t, err)

	fresh, _ := singleClientRegistry(t, []string{"gpt-4o"})
	require.NoError(t, fresh.Import(payload))

	// Identity and the default model survive; validation state does not.
	provider, err := fresh.GetProvider(added.ID)
	require.NoError(t, err)
	assert.Equal(t, "Main", provider.Name)
	assert.True(t, provider.SupportsTranscription)
	assert.False(t, provider.IsValid)
	assert.Empty(t, provider.Models)
	assert.Equal(t, "gpt-4o", fresh.GetDefaultModel())
	assert.False(t, fresh.HasValidProvider())

	// Revalidation restores availability.
	assert.True(t, fresh.Validate(ctx, added.ID))
	assert.Equal(t, []string{"gpt-4o"}, fresh.GetAvailableModels())
}

func TestProviderRegistry_ImportRejectsBadPayload(t *testing.T) {
	registry, _ := singleClientRegistry(t, nil)

	assert.Error(t, registry.Import([]byte("not json")))
	assert.Error(t, registry.Import([]byte(`{"providers":[{"name":"anonymous"}]}`)))
}

func TestProviderRegistry_DefaultModelAndAgentGate(t *testing.T) {
	registry, _ := singleClientRegistry(t, []string{"gpt-4o"})

	assert.False(t, registry.CanRunAgents(), "no provider, no default model")

	assert.Error(t, registry.SetDefaultModel("   "))
	require.NoError(t, registry.SetDefaultModel("gpt-4o"))
	assert.Equal(t, "gpt-4o", registry.GetDefaultModel())

	assert.False(t, registry.CanRunAgents(), "a default model alone is not enough")

	added, err := registry.AddProvider(context.Background(), models.LLMProvider{Name: "Main", APIKey: "k"})
	require.NoError(t, err)
	waitValidated(t, registry, added.ID)

	assert.True(t, registry.CanRunAgents())
}
