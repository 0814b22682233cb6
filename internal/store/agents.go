package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"encoding/json"

	"github.com/voicekeep/voicekeep/internal/logger"
	"github.com/voicekeep/voicekeep/internal/utils"
	"github.com/voicekeep/voicekeep/models"
)

// agentStore keeps custom and built-in agent definitions, persisted to a
// JSON file alongside the note repository. Built-in agents are immutable.
type agentStore struct {
	path     string
	inMemory bool
	ids      *utils.UUIDGenerator

	mu     sync.RWMutex
	agents map[string]models.Agent

	logger *logger.Logger
}

// NewAgentStore loads (or creates) the agent store persisted at path.
// Pass ":memory:" for a purely in-memory store.
func NewAgentStore(path string, log *logger.Logger) (AgentStore, error) {
	inMemory := path == ":memory:" || path == "memory"
	s := &agentStore{
		path:     path,
		inMemory: inMemory,
		ids:      utils.NewUUIDGenerator(),
		agents:   make(map[string]models.Agent),
		logger:   log,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *agentStore) load() error {
	if s.inMemory {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read agents file: %w", err)
	}

	var agents []models.Agent
	if err = json.Unmarshal(data, &agents); err != nil {
		return fmt.Errorf("decode agents file: %w", err)
	}

	for _, a := range agents {
		s.agents[a.ID] = a
	}
	return nil
}

// persist rewrites the agents file. Caller must hold mu.
func (s *agentStore) persist() error {
	if s.inMemory {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create agents dir: %w", err)
		}
	}

	agents := make([]models.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		agents = append(agents, a)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })

	payload, err := json.MarshalIndent(agents, "", "  ")
	if err != nil {
		return fmt.Errorf("encode agents: %w", err)
	}

	return writeFileAtomic(s.path, payload, 0o600)
}

// Seed implements [AgentStore]. Built-in agents already present (from a
// previous run's persistence) keep their stored definition, including the
// model binding made at their first initialization.
func (s *agentStore) Seed(agents []models.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range agents {
		if _, exists := s.agents[a.ID]; exists {
			continue
		}
		s.agents[a.ID] = a
	}
	return s.persist()
}

// Add implements [AgentStore].
func (s *agentStore) Add(agent models.Agent) (models.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if agent.ID == "" {
		agent.ID = s.ids.Generate()
	}
	if _, exists := s.agents[agent.ID]; exists {
		return models.Agent{}, fmt.Errorf("agent %s already exists", agent.ID)
	}

	now := time.Now()
	agent.CreatedAt = now
	agent.UpdatedAt = now
	if agent.Tags == nil {
		agent.Tags = []string{}
	}

	s.agents[agent.ID] = agent
	if err := s.persist(); err != nil {
		return models.Agent{}, err
	}
	return agent, nil
}

// Update implements [AgentStore]. Built-in agents are immutable.
func (s *agentStore) Update(id string, agent models.Agent) (models.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.agents[id]
	if !ok {
		return models.Agent{}, fmt.Errorf("agent %s: %w", id, ErrAgentNotFound)
	}
	if existing.IsBuiltIn {
		return models.Agent{}, fmt.Errorf("agent %s: %w", id, ErrBuiltInAgentImmutable)
	}

	agent.ID = id
	agent.IsBuiltIn = false
	agent.CreatedAt = existing.CreatedAt
	agent.UpdatedAt = time.Now()
	if agent.Tags == nil {
		agent.Tags = []string{}
	}

	s.agents[id] = agent
	if err := s.persist(); err != nil {
		return models.Agent{}, err
	}
	return agent, nil
}

// Delete implements [AgentStore]. Built-in agents are non-deletable.
func (s *agentStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.agents[id]
	if !ok {
		return fmt.Errorf("agent %s: %w", id, ErrAgentNotFound)
	}
	if existing.IsBuiltIn {
		return fmt.Errorf("agent %s: %w", id, ErrBuiltInAgentImmutable)
	}

	delete(s.agents, id)
	return s.persist()
}

// GetByID implements [AgentStore].
func (s *agentStore) GetByID(id string) (models.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agent, ok := s.agents[id]
	if !ok {
		return models.Agent{}, fmt.Errorf("agent %s: %w", id, ErrAgentNotFound)
	}
	return agent, nil
}

// List implements [AgentStore]. Agents are returned sorted by id.
func (s *agentStore) List() []models.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agents := make([]models.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		agents = append(agents, a)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })
	return agents
}
