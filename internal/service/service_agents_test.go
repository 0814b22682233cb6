// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicekeep/voicekeep/internal/logger"
	"github.com/voicekeep/voicekeep/internal/store"
	"github.com/voicekeep/voicekeep/models"
)

func newTestAgentService(t *testing.T, registry *fakeRegistry) (AgentService, store.AgentStore, store.NoteRepository) {
	t.Helper()

	agentStore, err := store.NewAgentStore(":memory:", logger.Nop())
	require.NoError(t, err)
	notes, err := store.NewNoteRepository(":memory:", logger.Nop())
	require.NoError(t, err)

	svc, err := NewAgentService(agentStore, notes, registry, NewStatusTracker(), logger.Nop())
	require.NoError(t, err)

	return svc, agentStore, notes
}

func validRegistry(client *fakeProviderClient) *fakeRegistry {
	return &fakeRegistry{
		valid:        true,
		defaultModel: "gpt-4o",
		models:       []string{"gpt-4o"},
		client:       client,
	}
}

func TestAgentService_SeedsBuiltInsBoundToDefaultModel(t *testing.T) {
	_, agentStore, _ := newTestAgentService(t, validRegistry(&fakeProviderClient{}))

	summary, err := agentStore.GetByID("builtin-summary")
	require.NoError(t, err)
	assert.True(t, summary.IsBuiltIn)
	assert.True(t, summary.AutoRun)
	assert.Equal(t, "gpt-4o", summary.ModelID, "bound to the default model at init time")

	actions, err := agentStore.GetByID("builtin-action-items")
	require.NoError(t, err)
	assert.True(t, actions.IsBuiltIn)
}

func TestAgentService_GetAvailableAgents(t *testing.T) {
	registry := validRegistry(&fakeProviderClient{})
	svc, agentStore, _ := newTestAgentService(t, registry)

	_, err := agentStore.Add(models.Agent{Name: "Pinned elsewhere", ModelID: "claude-x", AutoRun: true})
	require.NoError(t, err)

	available := svc.GetAvailableAgents()
	ids := make([]string, 0, len(available))
	for _, a := range available {
		ids = append(ids, a.ID)
	}

	// The custom agent pins a model no valid provider offers.
	assert.ElementsMatch(t, []string{"builtin-summary", "builtin-action-items"}, ids)
}

func TestAgentService_GetAvailableAgentsWithoutValidProvider(t *testing.T) {
	registry := &fakeRegistry{valid: false, defaultModel: "gpt-4o", models: []string{"gpt-4o"}}
	svc, _, _ := newTestAgentService(t, registry)

	assert.Empty(t, svc.GetAvailableAgents(), "defensive short-circuit without a valid provider")
}

func TestAgentService_CanRunAgentLayeredReasons(t *testing.T) {
	client := &fakeProviderClient{}

	t.Run("no valid provider", func(t *testing.T) {
		registry := validRegistry(client)
		registry.valid = false
		svc, _, _ := newTestAgentService(t, registry)

		result := svc.CanRunAgent("builtin-summary")
		assert.False(t, result.CanRun)
		assert.Equal(t, ErrNoValidProvider.Error(), result.Reason)
	})

	t.Run("no default model", func(t *testing.T) {
		registry := validRegistry(client)
		registry.defaultModel = ""
		svc, _, _ := newTestAgentService(t, registry)

		result := svc.CanRunAgent("builtin-summary")
		assert.False(t, result.CanRun)
		assert.Equal(t, ErrNoDefaultModel.Error(), result.Reason)
	})

	t.Run("agent not found", func(t *testing.T) {
		svc, _, _ := newTestAgentService(t, validRegistry(client))

		result := svc.CanRunAgent("ghost")
		assert.False(t, result.CanRun)
		assert.Contains(t, result.Reason, "not found")
	})

	t.Run("pinned model unavailable", func(t *testing.T) {
		svc, agentStore, _ := newTestAgentService(t, validRegistry(client))
		agent, err := agentStore.Add(models.Agent{Name: "Pinned", ModelID: "claude-x"})
		require.NoError(t, err)

		result := svc.CanRunAgent(agent.ID)
		assert.False(t, result.CanRun)
		assert.Contains(t, result.Reason, "claude-x")
	})

	t.Run("all checks pass", func(t *testing.T) {
		svc, _, _ := newTestAgentService(t, validRegistry(client))

		result := svc.CanRunAgent("builtin-summary")
		assert.True(t, result.CanRun)
		assert.Empty(t, result.Reason)
	})
}

func TestAgentService_ProcessNoteWithAgent(t *testing.T) {
	client := &fakeProviderClient{chatFn: func(model, systemPrompt, userContent string) (string, error) {
		assert.Equal(t, "gpt-4o", model)
		assert.NotEmpty(t, systemPrompt)
		assert.Equal(t, "meeting notes about the launch", userContent)
		return "# Launch Plan Summary\n\n- ship the beta\n- collect feedback", nil
	}}
	svc, _, notes := newTestAgentService(t, validRegistry(client))

	note, err := notes.Add(models.Note{
		Title:   "Recording",
		Content: "**meeting notes** about the launch",
		Type:    models.NoteTypeUser,
	})
	require.NoError(t, err)

	result := svc.ProcessNoteWithAgent(context.Background(), note.ID, "builtin-summary")

	require.True(t, result.Success, "error: %s", result.Error)
	require.NotEmpty(t, result.ChildNoteID)
	assert.Equal(t, "Summary", result.AgentName)

	child, err := notes.GetByID(result.ChildNoteID)
	require.NoError(t, err)
	assert.Equal(t, models.NoteTypeAgent, child.Type)
	assert.Equal(t, "Launch Plan Summary", child.Title, "title from the markdown heading")
	assert.Equal(t, note.ID, child.ParentID)
	assert.Equal(t, []string{note.ID}, child.SourceNoteIDs)
	assert.Contains(t, child.Tags, "ai-generated")
	assert.Contains(t, child.Tags, "summary")
	require.NotNil(t, child.GeneratedBy)
	assert.Equal(t, "builtin-summary", child.GeneratedBy.AgentID)
	assert.Equal(t, "gpt-4o", child.GeneratedBy.ModelUsed)

	parent, err := notes.GetByID(note.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{child.ID}, parent.Takeaways)
}

func TestAgentService_ProcessNoteWithAgent_EmptyContent(t *testing.T) {
	svc, _, notes := newTestAgentService(t, validRegistry(&fakeProviderClient{}))

	note, err := notes.Add(models.Note{Title: "Silent", Content: "   \n  "})
	require.NoError(t, err)

	result := svc.ProcessNoteWithAgent(context.Background(), note.ID, "builtin-summary")

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "no content")
	assert.Empty(t, result.ChildNoteID)
}

func TestAgentService_ProcessNoteWithAgent_ChatFailure(t *testing.T) {
	client := &fakeProviderClient{chatFn: func(_, _, _ string) (string, error) {
		return "", errors.New("connection reset")
	}}
	svc, _, notes := newTestAgentService(t, validRegistry(client))

	note, err := notes.Add(models.Note{Title: "Note", Content: "some real transcript content"})
	require.NoError(t, err)

	result := svc.ProcessNoteWithAgent(context.Background(), note.ID, "builtin-summary")

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "connection reset")

	parent, err := notes.GetByID(note.ID)
	require.NoError(t, err)
	assert.Empty(t, parent.Takeaways, "no takeaway without a child note")
}

func TestAgentService_AutoRunPartialFailureIsolation(t *testing.T) {
	// Three auto-run agents in sorted-id order: builtin-action-items,
	// builtin-summary, custom-digest. The middle one fails with a simulated
	// network error; its siblings still produce child notes.
	client := &fakeProviderClient{chatFn: func(_, systemPrompt, _ string) (string, error) {
		if strings.Contains(systemPrompt, "Summarize") {
			return "", errors.New("simulated network error")
		}
		return "## Result Heading\n\nbody text", nil
	}}
	registry := validRegistry(client)
	svc, agentStore, notes := newTestAgentService(t, registry)

	_, err := agentStore.Add(models.Agent{ID: "custom-digest", Name: "Digest", Prompt: "Condense the note.", AutoRun: true})
	require.NoError(t, err)

	note, err := notes.Add(models.Note{Title: "Note", Content: "transcript with plenty of content"})
	require.NoError(t, err)

	summary := svc.ProcessNoteWithAllAutoAgents(context.Background(), note.ID)

	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Results, 3)

	var failed []string
	for _, r := range summary.Results {
		if !r.Success {
			failed = append(failed, r.AgentID)
		}
	}
	assert.Equal(t, []string{"builtin-summary"}, failed)

	parent, err := notes.GetByID(note.ID)
	require.NoError(t, err)
	assert.Len(t, parent.Takeaways, 2, "one takeaway per successful agent, no duplicates")
	assert.Equal(t, len(uniqueStrings(parent.Takeaways)), len(parent.Takeaways))
}

func TestAgentService_AutoRunAppendsExactlyOneTakeawayPerAgent(t *testing.T) {
	client := &fakeProviderClient{chatFn: func(_, _, _ string) (string, error) {
		return "# Derived Document\n\ncontent", nil
	}}
	svc, agentStore, notes := newTestAgentService(t, validRegistry(client))

	_, err := agentStore.Add(models.Agent{ID: "custom-extra", Name: "Extra", Prompt: "do things", AutoRun: true})
	require.NoError(t, err)

	note, err := notes.Add(models.Note{Title: "Note", Content: "transcript body with content"})
	require.NoError(t, err)

	summary := svc.ProcessNoteWithAllAutoAgents(context.Background(), note.ID)
	require.Equal(t, 3, summary.Succeeded)
	require.Zero(t, summary.Failed)

	parent, err := notes.GetByID(note.ID)
	require.NoError(t, err)
	assert.Len(t, parent.Takeaways, 3)
	assert.Equal(t, len(uniqueStrings(parent.Takeaways)), len(parent.Takeaways), "no duplicates, no lost updates")
}

func TestAgentService_AutoRunEmptyEligibleSetIsNoOp(t *testing.T) {
	registry := &fakeRegistry{valid: false}
	svc, _, notes := newTestAgentService(t, registry)

	note, err := notes.Add(models.Note{Title: "Note", Content: "content here"})
	require.NoError(t, err)

	summary := svc.ProcessNoteWithAllAutoAgents(context.Background(), note.ID)

	assert.Zero(t, summary.Succeeded)
	assert.Zero(t, summary.Failed)
	assert.Empty(t, summary.Results)

	parent, err := notes.GetByID(note.ID)
	require.NoError(t, err)
	assert.Empty(t, parent.Takeaways)
}

func TestAgentService_ValidateAgentDependencies(t *testing.T) {
	t.Run("healthy setup", func(t *testing.T) {
		svc, _, _ := newTestAgentService(t, validRegistry(&fakeProviderClient{}))

		report := svc.ValidateAgentDependencies()
		assert.True(t, report.Valid)
		assert.Empty(t, report.Issues)
	})

	t.Run("all problems reported", func(t *testing.T) {
		registry := &fakeRegistry{valid: false}
		svc, agentStore, _ := newTestAgentService(t, registry)

		_, err := agentStore.Add(models.Agent{Name: "Pinned", ModelID: "claude-x"})
		require.NoError(t, err)

		report := svc.ValidateAgentDependencies()
		assert.False(t, report.Valid)
		assert.Contains(t, report.Issues, ErrNoValidProvider.Error())
		assert.Contains(t, report.Issues, ErrNoDefaultModel.Error())

		var pinnedIssue bool
		for _, issue := range report.Issues {
			if strings.Contains(issue, "claude-x") {
				pinnedIssue = true
			}
		}
		assert.True(t, pinnedIssue, "pinned-model issue reported")
	})
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
