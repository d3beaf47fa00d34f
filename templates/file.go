package templates

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/hupe1980/promptmesh/core"
	"github.com/hupe1980/promptmesh/logging"
)

// FileOptions configures a FileStore.
type FileOptions struct {
	// Fallback serves names missing on disk. Defaults to Defaults().
	Fallback core.TemplateStore
	Logger   logging.Logger
}

// FileStore loads templates from a directory with per-model overrides.
type FileStore struct {
	root     string
	fallback core.TemplateStore
	logger   logging.Logger

	mu    sync.RWMutex
	cache map[string]string
	// gen counts invalidations so a read that raced one is not cached.
	gen uint64
}

var _ core.TemplateStore = (*FileStore)(nil)

// NewFileStore creates a store reading from root.
func NewFileStore(root string, optFns ...func(o *FileOptions)) *FileStore {
	opts := FileOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Fallback == nil {
		opts.Fallback = Defaults()
	}

	return &FileStore{
		root:     filepath.Clean(root),
		fallback: opts.Fallback,
		logger:   logging.OrNoOp(opts.Logger),
		cache:    make(map[string]string),
	}
}

// Root returns the template directory.
func (s *FileStore) Root() string { return s.root }

// Load implements core.TemplateStore.
func (s *FileStore) Load(name, modelID string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}

	key := modelID + "\x00" + name

	s.mu.RLock()
	t, ok := s.cache[key]
	gen := s.gen
	s.mu.RUnlock()
	if ok {
		return t, nil
	}

	t, err := s.read(name, modelID)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	if s.gen == gen {
		s.cache[key] = t
	}
	s.mu.Unlock()

	return t, nil
}

func (s *FileStore) read(name, modelID string) (string, error) {
	candidates := make([]string, 0, 2)
	if modelID != "" && ValidateName(modelID) == nil {
		candidates = append(candidates, filepath.Join(s.root, modelID, name+Ext))
	}
	candidates = append(candidates, filepath.Join(s.root, name+Ext))

	for _, p := range candidates {
		b, err := os.ReadFile(p)
		if err == nil {
			return string(b), nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("read template %s: %w", name, err)
		}
	}

	return s.fallback.Load(name, modelID)
}

// Invalidate drops all cached templates.
func (s *FileStore) Invalidate() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.gen++
	s.mu.Unlock()
}

// Watch invalidates the cache whenever a file below root changes. It blocks
// until ctx is done. Model directories created after Watch starts are added
// to the watch list.
func (s *FileStore) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create template watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(s.root); err != nil {
		return fmt.Errorf("watch %s: %w", s.root, err)
	}

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("list %s: %w", s.root, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			s.watchDir(w, filepath.Join(s.root, e.Name()))
		}
	}

	s.logger.Debug("templates.watch.started", "root", s.root)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					s.watchDir(w, ev.Name)
				}
			}
			s.Invalidate()
			s.logger.Debug("templates.invalidated", "path", ev.Name, "op", ev.Op.String())
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("templates.watch.error", "error", err.Error())
		}
	}
}

func (s *FileStore) watchDir(w *fsnotify.Watcher, dir string) {
	if err := w.Add(dir); err != nil {
		s.logger.Warn("templates.watch.add_failed", "dir", dir, "error", err.Error())
	}
}
