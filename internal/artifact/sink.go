// Package artifact persists documents produced by agents: requirement
// analyses, architecture designs, generated code, and test reports. Artifact
// writes are best-effort; a failed save is logged by the caller and never
// blocks message processing.
package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Sink stores one artifact per call, keyed by project and kind.
type Sink interface {
	SaveArtifact(ctx context.Context, projectID, kind, content string) error
}

// FileSink writes artifacts under root/<project-id>/<kind>-<timestamp>.md.
type FileSink struct {
	root string
}

// NewFileSink creates a sink rooted at the given directory.
func NewFileSink(root string) *FileSink {
	return &FileSink{root: root}
}

// SaveArtifact writes the artifact to disk, creating directories as needed.
func (s *FileSink) SaveArtifact(ctx context.Context, projectID, kind, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Join(s.root, sanitize(projectID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}

	name := fmt.Sprintf("%s-%s.md", sanitize(kind), time.Now().Format("20060102-150405.000"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

// sanitize strips path separators and other unsafe characters from a path
// component.
func sanitize(s string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", "..", "_", " ", "_")
	out := replacer.Replace(s)
	if out == "" {
		out = "unnamed"
	}
	return out
}

// MemorySink records artifacts in memory. Used in tests.
type MemorySink struct {
	mu        sync.Mutex
	artifacts []Saved
}

// Saved is one recorded artifact.
type Saved struct {
	ProjectID string
	Kind      string
	Content   string
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// SaveArtifact records the artifact.
func (s *MemorySink) SaveArtifact(ctx context.Context, projectID, kind, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts = append(s.artifacts, Saved{ProjectID: projectID, Kind: kind, Content: content})
	return nil
}

// All returns a copy of everything saved so far.
func (s *MemorySink) All() []Saved {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Saved(nil), s.artifacts...)
}
