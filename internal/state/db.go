package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/guildhq/guild/pkg/models"
)

// DB is the SQLite-backed WorkflowStore. WAL mode is enabled for concurrent
// reads; writes are additionally serialized by a mutex so history appends
// from multiple delivery goroutines never interleave.
type DB struct {
	conn *sql.DB
	path string
	mu   sync.Mutex
}

// ProjectDBPath returns the path to the workspace-local database.
func ProjectDBPath(root string) string {
	return filepath.Join(root, ".guild", "state.db")
}

// Open opens a SQLite database at the given path, creating parent
// directories as needed.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &DB{conn: conn, path: path}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Close()
}

// Path returns the path to the database file.
func (db *DB) Path() string {
	return db.path
}

const migrationV1Workflow = `
CREATE TABLE projects (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	domain TEXT NOT NULL,
	requirements TEXT NOT NULL DEFAULT '[]',
	constraints TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE project_status (
	project_id TEXT PRIMARY KEY REFERENCES projects(id),
	current_phase TEXT NOT NULL,
	completion_percentage REAL NOT NULL,
	active_agents TEXT NOT NULL DEFAULT '[]',
	next_actions TEXT NOT NULL DEFAULT '[]',
	issues TEXT NOT NULL DEFAULT '[]',
	last_updated DATETIME NOT NULL
);
`

const migrationV2History = `
CREATE TABLE workflow_history (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL,
	project_id TEXT NOT NULL,
	from_agent TEXT NOT NULL,
	to_agent TEXT NOT NULL,
	type TEXT NOT NULL,
	content TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	priority TEXT NOT NULL,
	timestamp DATETIME NOT NULL,
	resolved INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX idx_history_project ON workflow_history(project_id, seq);
CREATE INDEX idx_history_queries ON workflow_history(project_id, type, resolved);
`

// Migrate applies all pending schema migrations.
func (db *DB) Migrate() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Workflow},
		{2, migrationV2History},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// CreateProject stores a new project specification.
func (db *DB) CreateProject(spec *models.ProjectSpecification) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	reqs, err := json.Marshal(spec.Requirements)
	if err != nil {
		return fmt.Errorf("marshal requirements: %w", err)
	}
	cons, err := json.Marshal(spec.Constraints)
	if err != nil {
		return fmt.Errorf("marshal constraints: %w", err)
	}

	_, err = db.conn.Exec(`
		INSERT INTO projects (id, title, description, domain, requirements, constraints, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		spec.ID, spec.Title, spec.Description, string(spec.Domain),
		string(reqs), string(cons), spec.CreatedAt, spec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// GetProject returns a stored project specification.
func (db *DB) GetProject(id string) (*models.ProjectSpecification, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	row := db.conn.QueryRow(`
		SELECT id, title, description, domain, requirements, constraints, created_at, updated_at
		FROM projects WHERE id = ?`, id)

	var spec models.ProjectSpecification
	var domain, reqs, cons string
	err := row.Scan(&spec.ID, &spec.Title, &spec.Description, &domain, &reqs, &cons,
		&spec.CreatedAt, &spec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}

	spec.Domain = models.ProjectDomain(domain)
	if err := json.Unmarshal([]byte(reqs), &spec.Requirements); err != nil {
		return nil, fmt.Errorf("unmarshal requirements: %w", err)
	}
	if err := json.Unmarshal([]byte(cons), &spec.Constraints); err != nil {
		return nil, fmt.Errorf("unmarshal constraints: %w", err)
	}
	return &spec, nil
}

// UpdateProject replaces a stored project specification.
func (db *DB) UpdateProject(spec *models.ProjectSpecification) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	reqs, err := json.Marshal(spec.Requirements)
	if err != nil {
		return fmt.Errorf("marshal requirements: %w", err)
	}
	cons, err := json.Marshal(spec.Constraints)
	if err != nil {
		return fmt.Errorf("marshal constraints: %w", err)
	}

	res, err := db.conn.Exec(`
		UPDATE projects SET title = ?, description = ?, domain = ?, requirements = ?, constraints = ?, updated_at = ?
		WHERE id = ?`,
		spec.Title, spec.Description, string(spec.Domain), string(reqs), string(cons),
		time.Now(), spec.ID,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update project rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveStatus inserts or replaces a project status snapshot.
func (db *DB) SaveStatus(status *models.ProjectStatus) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	agents, err := json.Marshal(status.ActiveAgents)
	if err != nil {
		return fmt.Errorf("marshal active agents: %w", err)
	}
	actions, err := json.Marshal(status.NextActions)
	if err != nil {
		return fmt.Errorf("marshal next actions: %w", err)
	}
	issues, err := json.Marshal(status.Issues)
	if err != nil {
		return fmt.Errorf("marshal issues: %w", err)
	}

	_, err = db.conn.Exec(`
		INSERT INTO project_status (project_id, current_phase, completion_percentage, active_agents, next_actions, issues, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET
			current_phase = excluded.current_phase,
			completion_percentage = excluded.completion_percentage,
			active_agents = excluded.active_agents,
			next_actions = excluded.next_actions,
			issues = excluded.issues,
			last_updated = excluded.last_updated`,
		status.ProjectID, status.CurrentPhase, status.CompletionPercentage,
		string(agents), string(actions), string(issues), status.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("save status: %w", err)
	}
	return nil
}

// GetStatus returns a project's status.
func (db *DB) GetStatus(projectID string) (*models.ProjectStatus, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.scanStatus(db.conn.QueryRow(`
		SELECT project_id, current_phase, completion_percentage, active_agents, next_actions, issues, last_updated
		FROM project_status WHERE project_id = ?`, projectID))
}

// ListStatuses returns all project statuses.
func (db *DB) ListStatuses() ([]models.ProjectStatus, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.Query(`
		SELECT project_id, current_phase, completion_percentage, active_agents, next_actions, issues, last_updated
		FROM project_status ORDER BY project_id`)
	if err != nil {
		return nil, fmt.Errorf("list statuses: %w", err)
	}
	defer rows.Close()

	var out []models.ProjectStatus
	for rows.Next() {
		status, err := db.scanStatus(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *status)
	}
	return out, rows.Err()
}

// scanner abstracts sql.Row and sql.Rows for scanStatus.
type scanner interface {
	Scan(dest ...any) error
}

func (db *DB) scanStatus(row scanner) (*models.ProjectStatus, error) {
	var status models.ProjectStatus
	var agents, actions, issues string
	err := row.Scan(&status.ProjectID, &status.CurrentPhase, &status.CompletionPercentage,
		&agents, &actions, &issues, &status.LastUpdated)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan status: %w", err)
	}
	if err := json.Unmarshal([]byte(agents), &status.ActiveAgents); err != nil {
		return nil, fmt.Errorf("unmarshal active agents: %w", err)
	}
	if err := json.Unmarshal([]byte(actions), &status.NextActions); err != nil {
		return nil, fmt.Errorf("unmarshal next actions: %w", err)
	}
	if err := json.Unmarshal([]byte(issues), &status.Issues); err != nil {
		return nil, fmt.Errorf("unmarshal issues: %w", err)
	}
	return &status, nil
}

// AppendMessage records a delivered message in its project's history.
func (db *DB) AppendMessage(msg models.Message) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	meta, err := json.Marshal(msg.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = db.conn.Exec(`
		INSERT INTO workflow_history (id, project_id, from_agent, to_agent, type, content, metadata, priority, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ProjectID, string(msg.From), string(msg.To), string(msg.Type),
		msg.Content, string(meta), string(msg.Priority), msg.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// History returns a project's messages in delivery order.
func (db *DB) History(projectID string) ([]models.Message, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.queryMessages(`
		SELECT id, project_id, from_agent, to_agent, type, content, metadata, priority, timestamp
		FROM workflow_history WHERE project_id = ? ORDER BY seq`, projectID)
}

// MarkQueryResolved marks a query message as answered.
func (db *DB) MarkQueryResolved(projectID, messageID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		UPDATE workflow_history SET resolved = 1
		WHERE project_id = ? AND id = ?`, projectID, messageID)
	if err != nil {
		return fmt.Errorf("mark query resolved: %w", err)
	}
	return nil
}

// UnresolvedQueries returns a project's unanswered queries in delivery order.
func (db *DB) UnresolvedQueries(projectID string) ([]models.Message, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.queryMessages(`
		SELECT id, project_id, from_agent, to_agent, type, content, metadata, priority, timestamp
		FROM workflow_history
		WHERE project_id = ? AND type = ? AND resolved = 0 ORDER BY seq`,
		projectID, string(models.MessageQuery))
}

func (db *DB) queryMessages(query string, args ...any) ([]models.Message, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var msg models.Message
		var from, to, typ, meta, priority string
		err := rows.Scan(&msg.ID, &msg.ProjectID, &from, &to, &typ, &msg.Content,
			&meta, &priority, &msg.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.From = models.AgentType(from)
		msg.To = models.AgentType(to)
		msg.Type = models.MessageType(typ)
		msg.Priority = models.Priority(priority)
		if err := json.Unmarshal([]byte(meta), &msg.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}
