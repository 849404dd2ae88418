package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Extensions of document files read by LoadDir and Watch.
var Extensions = []string{".yaml", ".yml", ".json"}

// Store holds registry documents by name. It is safe for concurrent use.
// Documents are cloned on the way in and out, so callers may modify what
// they receive.
type Store struct {
	mu        sync.RWMutex
	docs      map[string]*Document
	revs      map[string]uint64 // name -> revision of the stored document
	rev       uint64
	files     map[string][]string // path -> document names
	listeners []func(name string)
	logger    *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets the logger. The default is slog.Default().
func WithStoreLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = l
	}
}

// NewStore returns an empty Store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		docs:   make(map[string]*Document),
		revs:   make(map[string]uint64),
		files:  make(map[string][]string),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add stores a copy of doc with defaults applied. A document with the same
// name is replaced.
func (s *Store) Add(doc *Document) error {
	d := doc.Clone()
	ApplyDefaults(d)
	if d.Name == "" {
		return errors.New("registry: document has neither name nor table_name")
	}
	s.mu.Lock()
	s.docs[d.Name] = d
	s.rev++
	s.revs[d.Name] = s.rev
	s.mu.Unlock()
	s.notify(d.Name)
	return nil
}

// Get returns a copy of the named document.
func (s *Store) Get(name string) (*Document, bool) {
	d, _, ok := s.lookup(name)
	return d, ok
}

// Revision returns the revision of the named document, or 0 when the store
// does not hold it. Every Add gives the document a new, higher revision.
func (s *Store) Revision(name string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revs[name]
}

func (s *Store) lookup(name string) (*Document, uint64, bool) {
	s.mu.RLock()
	d, ok := s.docs[name]
	rev := s.revs[name]
	s.mu.RUnlock()
	if !ok {
		return nil, 0, false
	}
	return d.Clone(), rev, true
}

// Remove deletes the named document.
func (s *Store) Remove(name string) {
	s.mu.Lock()
	_, ok := s.docs[name]
	delete(s.docs, name)
	delete(s.revs, name)
	s.mu.Unlock()
	if ok {
		s.notify(name)
	}
}

// Names returns the sorted document names.
func (s *Store) Names() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.docs))
	for n := range s.docs {
		names = append(names, n)
	}
	s.mu.RUnlock()
	slices.Sort(names)
	return names
}

// Documents returns copies of every document, sorted by name.
func (s *Store) Documents() []*Document {
	names := s.Names()
	docs := make([]*Document, 0, len(names))
	for _, n := range names {
		if d, ok := s.Get(n); ok {
			docs = append(docs, d)
		}
	}
	return docs
}

// OnChange registers fn to be called with the name of every document that
// is added, replaced or removed.
func (s *Store) OnChange(fn func(name string)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Store) notify(name string) {
	s.mu.RLock()
	listeners := append([]func(string){}, s.listeners...)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(name)
	}
}

// LoadFile reads every document in path. Documents the file held before
// and no longer holds are removed.
func (s *Store) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	defer f.Close()
	docs, err := Decode(f)
	if err != nil {
		return fmt.Errorf("registry: %s: %w", path, err)
	}
	var names []string
	for _, d := range docs {
		if err := s.Add(d); err != nil {
			return fmt.Errorf("registry: %s: %w", path, err)
		}
		names = append(names, nameOf(d))
	}
	s.mu.Lock()
	old := s.files[path]
	s.files[path] = names
	s.mu.Unlock()
	for _, n := range old {
		if !slices.Contains(names, n) {
			s.Remove(n)
		}
	}
	s.logger.Debug("registry: loaded", "path", path, "documents", len(names))
	return nil
}

// LoadDir loads every document file in dir. Subdirectories are not read.
func (s *Store) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !isDocumentFile(e.Name()) {
			continue
		}
		if err := s.LoadFile(filepath.Join(dir, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// unloadFile removes the documents read from path.
func (s *Store) unloadFile(path string) {
	s.mu.Lock()
	names := s.files[path]
	delete(s.files, path)
	s.mu.Unlock()
	for _, n := range names {
		s.Remove(n)
	}
	s.logger.Debug("registry: unloaded", "path", path, "documents", len(names))
}

// Watch reloads document files in dir as they change, until ctx is done.
// Load errors are logged and do not stop the watch.
func (s *Store) Watch(ctx context.Context, dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("registry: watch: %w", err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("registry: watch %s: %w", dir, err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			s.handle(ev)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("registry: watch", "dir", dir, "error", err)
		}
	}
}

func (s *Store) handle(ev fsnotify.Event) {
	if !isDocumentFile(ev.Name) {
		return
	}
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		s.unloadFile(ev.Name)
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		if err := s.LoadFile(ev.Name); err != nil {
			s.logger.Warn("registry: reload failed", "path", ev.Name, "error", err)
			return
		}
		s.logger.Info("registry: reloaded", "path", ev.Name)
	}
}

func isDocumentFile(name string) bool {
	return slices.Contains(Extensions, strings.ToLower(filepath.Ext(name)))
}

func nameOf(d *Document) string {
	if d.Name != "" {
		return d.Name
	}
	return NameFromTable(d.TableName)
}
