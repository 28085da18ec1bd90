// Package state provides persistence for Guild workflows: project
// specifications, project statuses, and the append-only per-project workflow
// history. Two backends exist: an in-memory store for tests and a SQLite
// store (.guild/state.db) for production.
package state

import (
	"errors"
	"io"

	"github.com/guildhq/guild/pkg/models"
)

// ErrNotFound is returned when a project or status does not exist.
var ErrNotFound = errors.New("state: not found")

// ProjectStore handles project-specification persistence.
type ProjectStore interface {
	CreateProject(spec *models.ProjectSpecification) error
	GetProject(id string) (*models.ProjectSpecification, error)
	UpdateProject(spec *models.ProjectSpecification) error
}

// StatusStore handles project-status persistence.
type StatusStore interface {
	SaveStatus(status *models.ProjectStatus) error
	GetStatus(projectID string) (*models.ProjectStatus, error)
	ListStatuses() ([]models.ProjectStatus, error)
}

// HistoryStore handles the append-only workflow history. Appends for a given
// project are serialized by the implementation; the log itself is never
// mutated, only the query-resolution mark alongside it.
type HistoryStore interface {
	// AppendMessage records a delivered message in its project's history.
	AppendMessage(msg models.Message) error
	// History returns a project's messages in delivery order.
	History(projectID string) ([]models.Message, error)
	// MarkQueryResolved marks a QUERY message as answered.
	MarkQueryResolved(projectID, messageID string) error
	// UnresolvedQueries returns a project's unanswered QUERY messages in
	// delivery order.
	UnresolvedQueries(projectID string) ([]models.Message, error)
}

// WorkflowStore is the full persistence surface the orchestrator depends on.
// It composes focused sub-interfaces so components can depend on only what
// they use.
type WorkflowStore interface {
	io.Closer
	ProjectStore
	StatusStore
	HistoryStore
}

// Compile-time verification that both backends implement the interfaces.
var (
	_ WorkflowStore = (*MemoryStore)(nil)
	_ WorkflowStore = (*DB)(nil)
)
