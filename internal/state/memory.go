package state

import (
	"sync"

	"github.com/guildhq/guild/pkg/models"
)

// MemoryStore is a map-backed WorkflowStore used in tests and for ephemeral
// runs. All operations are guarded by a single mutex, which also serializes
// history appends across projects.
type MemoryStore struct {
	mu       sync.RWMutex
	projects map[string]models.ProjectSpecification
	statuses map[string]models.ProjectStatus
	history  map[string][]models.Message
	resolved map[string]bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects: make(map[string]models.ProjectSpecification),
		statuses: make(map[string]models.ProjectStatus),
		history:  make(map[string][]models.Message),
		resolved: make(map[string]bool),
	}
}

// CreateProject stores a new project specification.
func (s *MemoryStore) CreateProject(spec *models.ProjectSpecification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[spec.ID] = *spec
	return nil
}

// GetProject returns a copy of the stored specification.
func (s *MemoryStore) GetProject(id string) (*models.ProjectSpecification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	spec, ok := s.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := spec
	return &cp, nil
}

// UpdateProject replaces a stored specification.
func (s *MemoryStore) UpdateProject(spec *models.ProjectSpecification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[spec.ID]; !ok {
		return ErrNotFound
	}
	s.projects[spec.ID] = *spec
	return nil
}

// SaveStatus stores a project status snapshot.
func (s *MemoryStore) SaveStatus(status *models.ProjectStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[status.ProjectID] = *status.Clone()
	return nil
}

// GetStatus returns a copy of a project's status.
func (s *MemoryStore) GetStatus(projectID string) (*models.ProjectStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.statuses[projectID]
	if !ok {
		return nil, ErrNotFound
	}
	return status.Clone(), nil
}

// ListStatuses returns copies of all project statuses.
func (s *MemoryStore) ListStatuses() ([]models.ProjectStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ProjectStatus, 0, len(s.statuses))
	for _, st := range s.statuses {
		out = append(out, *st.Clone())
	}
	return out, nil
}

// AppendMessage appends a message to its project's history.
func (s *MemoryStore) AppendMessage(msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[msg.ProjectID] = append(s.history[msg.ProjectID], msg)
	return nil
}

// History returns a project's messages in delivery order.
func (s *MemoryStore) History(projectID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Message(nil), s.history[projectID]...), nil
}

// MarkQueryResolved marks a query message as answered.
func (s *MemoryStore) MarkQueryResolved(projectID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolved[messageID] = true
	return nil
}

// UnresolvedQueries returns a project's unanswered queries in delivery order.
func (s *MemoryStore) UnresolvedQueries(projectID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Message
	for _, msg := range s.history[projectID] {
		if msg.Type == models.MessageQuery && !s.resolved[msg.ID] {
			out = append(out, msg)
		}
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
