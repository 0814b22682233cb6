// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/voicekeep/voicekeep/internal/logger"
	"github.com/voicekeep/voicekeep/internal/store"
	"github.com/voicekeep/voicekeep/models"
)

// agentService runs configured agents against transcribed notes. Runs are
// strictly sequential per note so that writes to the parent's takeaways
// never race.
type agentService struct {
	agents   store.AgentStore
	notes    store.NoteRepository
	registry ProviderRegistry
	status   StatusTracker

	logger *logger.Logger
}

// NewAgentService constructs an [AgentService] and seeds the built-in
// agents. Their model binding is fixed to the default model known at this
// moment; a later default-model change does not rebind them.
func NewAgentService(
	agents store.AgentStore,
	notes store.NoteRepository,
	registry ProviderRegistry,
	status StatusTracker,
	log *logger.Logger,
) (AgentService, error) {
	s := &agentService{
		agents:   agents,
		notes:    notes,
		registry: registry,
		status:   status,
		logger:   log,
	}

	if err := agents.Seed(builtInAgents(registry.GetDefaultModel())); err != nil {
		return nil, fmt.Errorf("seed built-in agents: %w", err)
	}
	return s, nil
}

func builtInAgents(defaultModel string) []models.Agent {
	now := time.Now()
	return []models.Agent{
		{
			ID:           "builtin-summary",
			Name:         "Summary",
			Prompt:       "Summarize the following voice note in a few short paragraphs. Start with a markdown heading that captures the main topic.",
			ModelID:      defaultModel,
			Avatar:       "📝",
			AutoRun:      true,
			Tags:         []string{"summary"},
			OutputFormat: "markdown",
			IsBuiltIn:    true,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		{
			ID:           "builtin-action-items",
			Name:         "Action Items",
			Prompt:       "Extract every actionable task from the following voice note as a markdown checklist. Start with a markdown heading.",
			ModelID:      defaultModel,
			Avatar:       "✅",
			AutoRun:      true,
			Tags:         []string{"action-items"},
			OutputFormat: "markdown",
			IsBuiltIn:    true,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}
}

// GetAvailableAgents implements [AgentService].
func (s *agentService) GetAvailableAgents() []models.Agent {
	if !s.registry.HasValidProvider() {
		return nil
	}

	available := make(map[string]struct{})
	for _, m := range s.registry.GetAvailableModels() {
		available[m] = struct{}{}
	}
	defaultModel := s.registry.GetDefaultModel()

	var out []models.Agent
	for _, agent := range s.agents.List() {
		model := agent.ModelID
		if model == "" {
			model = defaultModel
		}
		if _, ok := available[model]; ok {
			out = append(out, agent)
		}
	}
	return out
}

// GetAutoRunAgents implements [AgentService].
func (s *agentService) GetAutoRunAgents() []models.Agent {
	var out []models.Agent
	for _, agent := range s.GetAvailableAgents() {
		if agent.AutoRun {
			out = append(out, agent)
		}
	}
	return out
}

// CanRunAgent implements [AgentService]. The checks are layered and the
// first failure wins; no network call is ever made here.
func (s *agentService) CanRunAgent(agentID string) models.CanRunResult {
	if !s.registry.HasValidProvider() {
		return models.CanRunResult{Reason: ErrNoValidProvider.Error()}
	}
	if s.registry.GetDefaultModel() == "" {
		return models.CanRunResult{Reason: ErrNoDefaultModel.Error()}
	}

	agent, err := s.agents.GetByID(agentID)
	if err != nil {
		return models.CanRunResult{Reason: fmt.Sprintf("agent %s not found", agentID)}
	}

	if agent.ModelID != "" && !s.modelAvailable(agent.ModelID) {
		return models.CanRunResult{Reason: fmt.Sprintf("model %s is not available", agent.ModelID)}
	}

	return models.CanRunResult{CanRun: true}
}

func (s *agentService) modelAvailable(model string) bool {
	for _, m := range s.registry.GetAvailableModels() {
		if m == model {
			return true
		}
	}
	return false
}

// ProcessNoteWithAgent implements [AgentService].
func (s *agentService) ProcessNoteWithAgent(ctx context.Context, noteID, agentID string) models.AgentRunResult {
	result := models.AgentRunResult{AgentID: agentID}

	agent, err := s.agents.GetByID(agentID)
	if err == nil {
		result.AgentName = agent.Name
	}

	if check := s.CanRunAgent(agentID); !check.CanRun {
		return s.fail(noteID, result, check.Reason)
	}

	note, err := s.notes.GetByID(noteID)
	if err != nil {
		return s.fail(noteID, result, fmt.Sprintf("load note: %v", err))
	}

	content := stripMarkup(note.Content)
	if strings.TrimSpace(content) == "" {
		return s.fail(noteID, result, ErrEmptyNoteContent.Error())
	}

	model := agent.ModelID
	if model == "" {
		model = s.registry.GetDefaultModel()
	}

	client, err := s.registry.ModelClient(model)
	if err != nil {
		return s.fail(noteID, result, fmt.Sprintf("resolve model %s: %v", model, err))
	}

	s.status.Begin(noteID, fmt.Sprintf("running agent %s", agent.Name))

	response, err := client.Chat(ctx, model, agent.Prompt, content)
	if err != nil {
		return s.fail(noteID, result, fmt.Sprintf("model request: %v", err))
	}

	child, err := s.notes.Add(models.Note{
		Title:         extractResponseTitle(response, agent.Name),
		Content:       response,
		Tags:          append(append([]string{}, agent.Tags...), "ai-generated"),
		ParentID:      noteID,
		Type:          models.NoteTypeAgent,
		AgentID:       agent.ID,
		SourceNoteIDs: []string{noteID},
		GeneratedBy: &models.GeneratedBy{
			AgentID:     agent.ID,
			ModelUsed:   model,
			ProcessedAt: time.Now(),
		},
	})
	if err != nil {
		return s.fail(noteID, result, fmt.Sprintf("create child note: %v", err))
	}

	// The takeaway is appended after the child exists so a reader following
	// it never dereferences a missing note.
	if err = s.notes.AppendTakeaway(noteID, child.ID); err != nil {
		return s.fail(noteID, result, fmt.Sprintf("append takeaway: %v", err))
	}

	s.status.Finish(noteID)
	s.logger.Info().Str("note", noteID).Str("agent", agentID).Str("child", child.ID).Msg("agent run completed")

	result.Success = true
	result.ChildNoteID = child.ID
	return result
}

func (s *agentService) fail(noteID string, result models.AgentRunResult, reason string) models.AgentRunResult {
	name := result.AgentName
	if name == "" {
		name = result.AgentID
	}
	s.status.Fail(noteID, fmt.Sprintf("agent %s failed: %s", name, reason))
	s.logger.Warn().Str("note", noteID).Str("agent", result.AgentID).Str("reason", reason).Msg("agent run failed")

	result.Error = reason
	return result
}

// ProcessNoteWithAllAutoAgents implements [AgentService]. The eligible set
// is computed once up front and each agent runs in turn; a failure never
// stops the remaining agents.
func (s *agentService) ProcessNoteWithAllAutoAgents(ctx context.Context, noteID string) models.AgentRunSummary {
	eligible := s.GetAutoRunAgents()
	if len(eligible) == 0 {
		return models.AgentRunSummary{}
	}

	summary := models.AgentRunSummary{Results: make([]models.AgentRunResult, 0, len(eligible))}
	for _, agent := range eligible {
		result := s.ProcessNoteWithAgent(ctx, noteID, agent.ID)
		if result.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
		summary.Results = append(summary.Results, result)
	}

	s.status.Clear(noteID)
	return summary
}

// ValidateAgentDependencies implements [AgentService].
func (s *agentService) ValidateAgentDependencies() models.DependencyReport {
	var issues []string

	if !s.registry.HasValidProvider() {
		issues = append(issues, ErrNoValidProvider.Error())
	}
	if s.registry.GetDefaultModel() == "" {
		issues = append(issues, ErrNoDefaultModel.Error())
	}

	available := make(map[string]struct{})
	for _, m := range s.registry.GetAvailableModels() {
		available[m] = struct{}{}
	}
	for _, agent := range s.agents.List() {
		if agent.ModelID == "" {
			continue
		}
		if _, ok := available[agent.ModelID]; !ok {
			issues = append(issues, fmt.Sprintf("agent %q pins unavailable model %q", agent.Name, agent.ModelID))
		}
	}

	return models.DependencyReport{Valid: len(issues) == 0, Issues: issues}
}
