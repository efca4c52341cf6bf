package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"

	"github.com/bassista/tasksync/internal/logger"
	"github.com/bassista/tasksync/internal/task"
)

// Metadata holds the version stamp of the document.
type Metadata struct {
	LastUpdate int64 `json:"lastUpdate"` // Unix timestamp in milliseconds
}

// Document is the persisted JSON structure.
type Document struct {
	Metadata Metadata    `json:"metadata"`
	Tasks    []task.Task `json:"tasks" validate:"dive"`
}

// JSONEngine keeps the task table in a single JSON file.
// Every write replaces the file atomically; reads are served from memory.
type JSONEngine struct {
	path      string
	dir       string
	base      string
	validator *validator.Validate

	mu        sync.Mutex
	doc       Document
	closed    bool
	stopWatch context.CancelFunc
}

// OpenJSON loads (or creates) the document at path. When watch is true the
// parent directory is watched and external rewrites are reloaded.
func OpenJSON(ctx context.Context, path string, watch bool) (*JSONEngine, error) {
	if path == "" {
		return nil, errors.New("data file path is required")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if dir == "" || dir == "." {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	e := &JSONEngine{path: path, dir: dir, base: base, validator: validator.New()}

	doc, err := e.loadUnlocked()
	switch {
	case errors.Is(err, os.ErrNotExist):
		doc = &Document{Tasks: []task.Task{}}
		if err := e.saveUnlocked(doc); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}
	e.doc = *doc

	if watch {
		watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		if err := e.startWatcher(watchCtx); err != nil {
			cancel()
			return nil, err
		}
		e.stopWatch = cancel
	}

	logger.WithComponent("storage").Debugf("json engine opened: %s (%d tasks)", path, len(e.doc.Tasks))
	return e, nil
}

func (e *JSONEngine) Tasks() TaskDAO { return e }

func (e *JSONEngine) ClearAllTables(ctx context.Context) error {
	return e.DeleteTasks(ctx)
}

// Close stops the watcher. The file is left in place.
func (e *JSONEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if e.stopWatch != nil {
		e.stopWatch()
	}
	return nil
}

func (e *JSONEngine) GetTasks(_ context.Context) ([]task.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	return slices.Clone(e.doc.Tasks), nil
}

func (e *JSONEngine) GetTaskByID(_ context.Context, id string) (task.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return task.Task{}, ErrClosed
	}
	if i := indexOf(e.doc.Tasks, id); i >= 0 {
		return e.doc.Tasks[i], nil
	}
	return task.Task{}, ErrTaskNotFound
}

func (e *JSONEngine) InsertTask(_ context.Context, t task.Task) error {
	_, err := e.mutate(func(tasks []task.Task) ([]task.Task, int) {
		if i := indexOf(tasks, t.ID); i >= 0 {
			tasks[i] = t
			return tasks, 1
		}
		return append(tasks, t), 1
	})
	return err
}

func (e *JSONEngine) UpdateTask(_ context.Context, t task.Task) (int, error) {
	return e.mutate(func(tasks []task.Task) ([]task.Task, int) {
		if i := indexOf(tasks, t.ID); i >= 0 {
			tasks[i] = t
			return tasks, 1
		}
		return tasks, 0
	})
}

func (e *JSONEngine) UpdateCompleted(_ context.Context, id string, completed bool) (int, error) {
	return e.mutate(func(tasks []task.Task) ([]task.Task, int) {
		if i := indexOf(tasks, id); i >= 0 {
			tasks[i].Completed = completed
			return tasks, 1
		}
		return tasks, 0
	})
}

func (e *JSONEngine) DeleteTaskByID(_ context.Context, id string) (int, error) {
	return e.mutate(func(tasks []task.Task) ([]task.Task, int) {
		if i := indexOf(tasks, id); i >= 0 {
			return slices.Delete(tasks, i, i+1), 1
		}
		return tasks, 0
	})
}

func (e *JSONEngine) DeleteTasks(_ context.Context) error {
	_, err := e.mutate(func(tasks []task.Task) ([]task.Task, int) {
		return []task.Task{}, len(tasks)
	})
	return err
}

func (e *JSONEngine) DeleteCompletedTasks(_ context.Context) (int, error) {
	return e.mutate(func(tasks []task.Task) ([]task.Task, int) {
		before := len(tasks)
		tasks = slices.DeleteFunc(tasks, func(t task.Task) bool { return t.Completed })
		return tasks, before - len(tasks)
	})
}

// ReplaceAll rewrites the document once with the given table.
func (e *JSONEngine) ReplaceAll(_ context.Context, tasks []task.Task) error {
	_, err := e.mutate(func(old []task.Task) ([]task.Task, int) {
		return dedupe(tasks), len(old) + len(tasks)
	})
	return err
}

// mutate applies fn to a copy of the table and persists it. Memory is only
// updated once the file has been replaced. Writes that change nothing are skipped.
func (e *JSONEngine) mutate(fn func([]task.Task) ([]task.Task, int)) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ErrClosed
	}

	tasks, affected := fn(slices.Clone(e.doc.Tasks))
	if affected == 0 {
		return 0, nil
	}

	next := Document{Metadata: Metadata{LastUpdate: nextStamp(e.doc.Metadata.LastUpdate)}, Tasks: tasks}
	if next.Tasks == nil {
		next.Tasks = []task.Task{}
	}
	if err := e.validator.Struct(&next); err != nil {
		return 0, fmt.Errorf("validate before save: %w", err)
	}
	if err := e.saveUnlocked(&next); err != nil {
		return 0, err
	}
	e.doc = next
	return affected, nil
}

// nextStamp returns a millisecond timestamp strictly greater than prev.
func nextStamp(prev int64) int64 {
	now := time.Now().UnixMilli()
	if now <= prev {
		return prev + 1
	}
	return now
}

func indexOf(tasks []task.Task, id string) int {
	return slices.IndexFunc(tasks, func(t task.Task) bool { return t.ID == id })
}

// loadUnlocked reads the JSON file without acquiring the lock (caller must hold it).
func (e *JSONEngine) loadUnlocked() (*Document, error) {
	file, err := os.Open(e.path)
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}
	defer file.Close()

	var doc Document
	if err := json.NewDecoder(file).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode data file: %w", err)
	}
	if doc.Tasks == nil {
		doc.Tasks = []task.Task{}
	}

	if err := e.validator.Struct(&doc); err != nil {
		return nil, fmt.Errorf("validate data file: %w", err)
	}

	return &doc, nil
}

// saveUnlocked writes the document without acquiring the lock (caller must hold it).
func (e *JSONEngine) saveUnlocked(doc *Document) error {
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}

	tmpFile, err := os.CreateTemp(e.dir, e.base+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
	}()

	if _, err := tmpFile.Write(payload); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpFile.Name(), e.path); err != nil {
		return fmt.Errorf("replace data file: %w", err)
	}

	return nil
}

// startWatcher listens for changes to the data file and reloads it after a debounce.
// It watches the parent directory (not the file) so atomic replace sequences
// (temp+rename) are still observed. Events are filtered by basename and debounced
// to avoid double reloads on write+chmod/rename cycles.
func (e *JSONEngine) startWatcher(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	if err := watcher.Add(e.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch dir: %w", err)
	}

	go func() {
		defer watcher.Close()

		var debounce *time.Timer
		schedule := func() {
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, e.reload)
		}

		for {
			select {
			case <-ctx.Done():
				if debounce != nil {
					debounce.Stop()
				}
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != e.base {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Chmod|fsnotify.Remove|fsnotify.Rename) != 0 {
					schedule()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.WithComponent("storage").Errorf("watcher error: %v", err)
			}
		}
	}()

	return nil
}

// reload replaces the in-memory table with the file contents when the file is newer.
func (e *JSONEngine) reload() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	diskDoc, err := e.loadUnlocked()
	if err != nil {
		logger.WithComponent("storage").Warnf("watch reload failed: %v", err)
		return
	}

	memLastUpdate := e.doc.Metadata.LastUpdate
	diskLastUpdate := diskDoc.Metadata.LastUpdate
	if diskLastUpdate < memLastUpdate {
		logger.WithComponent("storage").Debugf("disk version is older than memory: disk=%d memory=%d", diskLastUpdate, memLastUpdate)
		return
	}
	if diskLastUpdate == memLastUpdate && slices.Equal(diskDoc.Tasks, e.doc.Tasks) {
		return
	}

	e.doc = *diskDoc
	logger.WithComponent("storage").Info("task table reloaded from newer disk version")
}
