// Package clarify feeds user clarification answers into a running workflow
// through the filesystem. Dropping a file named <project-id>.txt into the
// watched directory delivers its contents as the answer to that project's
// pending question, so a user can reply from any editor or script while the
// system runs.
package clarify

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Responder receives answers read from dropped files. The orchestrator
// implements it.
type Responder interface {
	SendClarification(ctx context.Context, projectID, answer string) error
}

// Watcher monitors the clarifications directory for answer files.
type Watcher struct {
	dir       string
	responder Responder

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup

	closeOnce sync.Once
}

// Dir returns the clarifications directory under a workspace root.
func Dir(root string) string {
	return filepath.Join(root, ".guild", "clarifications")
}

// NewWatcher creates a watcher on dir, creating it if needed, and begins
// delivering answers to the responder. Files already present are delivered
// immediately, so answers written while the system was down are not lost.
func NewWatcher(dir string, responder Responder) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		dir:       dir,
		responder: responder,
		watcher:   fw,
		done:      make(chan struct{}),
	}

	w.sweep()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.watch()
	}()
	return w, nil
}

// watch delivers answers as files appear.
func (w *Watcher) watch() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create != 0 || event.Op&fsnotify.Write != 0 {
				w.deliver(event.Name)
			}
		case <-w.watcher.Errors:
			// Keep watching; the sweep on next start catches missed files.
		}
	}
}

// sweep delivers any answer files already sitting in the directory.
func (w *Watcher) sweep() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			w.deliver(filepath.Join(w.dir, e.Name()))
		}
	}
}

// deliver reads an answer file, hands it to the responder, and removes the
// file. The file name (minus extension) is the project ID. A write and a
// create event for the same drop are harmless: the second delivery finds the
// file gone and does nothing.
func (w *Watcher) deliver(path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		return
	}
	answer := strings.TrimSpace(string(content))
	if answer == "" {
		return
	}

	name := filepath.Base(path)
	projectID := strings.TrimSuffix(name, filepath.Ext(name))

	if err := w.responder.SendClarification(context.Background(), projectID, answer); err != nil {
		log.Printf("[clarify] answer in %s not delivered: %v", name, err)
		return
	}

	if err := os.Remove(path); err != nil {
		log.Printf("[clarify] remove delivered answer %s: %v", name, err)
	}
}

// Close stops the watcher.
func (w *Watcher) Close() {
	w.closeOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
		w.wg.Wait()
	})
}
