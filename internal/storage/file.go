package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

const (
	valueExt  = ".val"
	tmpPrefix = ".tmp-"
)

// FileStore keeps each key in its own file. Values are written to a temporary
// file and renamed into place so readers never observe a torn value.
type FileStore struct {
	fs  afero.Fs
	dir string // OS directory; empty when fs is not OS-backed

	mu sync.Mutex

	subsMu  sync.Mutex
	subs    map[int]func(Change)
	nextSub int
}

// NewFileStore opens (creating if needed) a file store in the OS directory dir.
// Changes made by other processes are reported through fsnotify.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	s := NewFileStoreFs(afero.NewBasePathFs(afero.NewOsFs(), dir))
	s.dir = dir
	return s, nil
}

// NewFileStoreFs returns a file store on an arbitrary afero filesystem. Such a
// store only reports its own changes to watchers.
func NewFileStoreFs(fsys afero.Fs) *FileStore {
	return &FileStore{
		fs:   fsys,
		subs: make(map[int]func(Change)),
	}
}

func fileName(key string) string {
	return url.PathEscape(key) + valueExt
}

func keyFromFile(name string) (string, bool) {
	if strings.HasPrefix(name, tmpPrefix) || !strings.HasSuffix(name, valueExt) {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimSuffix(name, valueExt))
	if err != nil {
		return "", false
	}
	return key, true
}

// Get implements Store.
func (s *FileStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := afero.ReadFile(s.fs, fileName(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read %q: %w", key, err)
	}
	return string(data), true, nil
}

// Set implements Store.
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	name := fileName(key)
	tmp := tmpPrefix + name
	if err := afero.WriteFile(s.fs, tmp, []byte(value), 0o600); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to write %q: %w", key, err)
	}
	if err := s.fs.Rename(tmp, name); err != nil {
		_ = s.fs.Remove(tmp)
		s.mu.Unlock()
		return fmt.Errorf("failed to commit %q: %w", key, err)
	}
	s.mu.Unlock()

	s.notify(Change{Key: key, Value: value})
	return nil
}

// Remove implements Store.
func (s *FileStore) Remove(key string) error {
	s.mu.Lock()
	err := s.fs.Remove(fileName(key))
	s.mu.Unlock()

	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to remove %q: %w", key, err)
	}

	s.notify(Change{Key: key, Removed: true})
	return nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	s.subsMu.Lock()
	clear(s.subs)
	s.subsMu.Unlock()
	return nil
}

// notify reports in-process changes. OS-backed stores rely on fsnotify instead,
// which also sees writes from other processes.
func (s *FileStore) notify(c Change) {
	if s.dir != "" {
		return
	}

	s.subsMu.Lock()
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

// Watch implements Watcher.
func (s *FileStore) Watch(ctx context.Context, fn func(Change)) error {
	if s.dir == "" {
		s.subsMu.Lock()
		id := s.nextSub
		s.nextSub++
		s.subs[id] = fn
		s.subsMu.Unlock()

		go func() {
			<-ctx.Done()
			s.subsMu.Lock()
			delete(s.subs, id)
			s.subsMu.Unlock()
		}()
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(s.dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to watch %s: %w", s.dir, err)
	}

	go s.watchLoop(ctx, w, fn)
	return nil
}

func (s *FileStore) watchLoop(ctx context.Context, w *fsnotify.Watcher, fn func(Change)) {
	defer func() { _ = w.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			key, ok := keyFromFile(filepath.Base(ev.Name))
			if !ok {
				continue
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				fn(Change{Key: key, Removed: true})
				continue
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			value, found, err := s.Get(key)
			if err != nil {
				logger.Debug("watch read failed", "key", key, "err", err)
				continue
			}
			if !found {
				fn(Change{Key: key, Removed: true})
				continue
			}
			fn(Change{Key: key, Value: value})
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Warn("watch error", "dir", s.dir, "err", err)
		}
	}
}
