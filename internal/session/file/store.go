// Package file implements session.Store on top of the jobscrape home
// directory, caching each account's blob in memory and watching the
// sessions directory so a session written externally (e.g. by an
// interactive login helper) is picked up without a restart.
package file

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"jobscrape/internal/home"
	"jobscrape/internal/logging"
)

// Store is a file-backed session.Store.
type Store struct {
	dir    home.Dir
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[int]*atomic.Pointer[[]byte]

	watcher     *fsnotify.Watcher
	watcherStop chan struct{}
}

// Config configures a Store.
type Config struct {
	Logger *slog.Logger
}

// New creates a Store rooted at dir. dir is created if it doesn't exist.
func New(dir home.Dir, cfg Config) (*Store, error) {
	if err := dir.EnsureExists(); err != nil {
		return nil, fmt.Errorf("session/file: %w", err)
	}
	s := &Store{
		dir:    dir,
		logger: logging.Default(cfg.Logger).With("component", "session.file"),
		cache:  make(map[int]*atomic.Pointer[[]byte]),
	}
	if err := s.startWatcher(); err != nil {
		s.logger.Warn("session watcher unavailable, external session writes will not be picked up live", "error", err)
	}
	return s, nil
}

func (s *Store) entry(accountID int) *atomic.Pointer[[]byte] {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.cache[accountID]
	if !ok {
		e = &atomic.Pointer[[]byte]{}
		s.cache[accountID] = e
	}
	return e
}

// Load implements session.Store.
func (s *Store) Load(ctx context.Context, accountID int) ([]byte, error) {
	e := s.entry(accountID)
	if cached := e.Load(); cached != nil {
		return *cached, nil
	}

	data, err := os.ReadFile(s.dir.SessionPath(accountID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session/file: read account %d: %w", accountID, err)
	}
	e.Store(&data)
	return data, nil
}

// Save implements session.Store.
func (s *Store) Save(ctx context.Context, accountID int, data []byte) error {
	path := s.dir.SessionPath(accountID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("session/file: write account %d: %w", accountID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("session/file: rename account %d: %w", accountID, err)
	}
	s.entry(accountID).Store(&data)
	return nil
}

func (s *Store) startWatcher() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(s.dir.SessionsDir()); err != nil {
		w.Close()
		return err
	}
	s.watcher = w
	s.watcherStop = make(chan struct{})
	go s.watchLoop(w, s.watcherStop)
	return nil
}

func (s *Store) watchLoop(w *fsnotify.Watcher, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			accountID, ok := accountIDFromPath(ev.Name)
			if !ok {
				continue
			}
			data, err := os.ReadFile(ev.Name)
			if err != nil {
				s.logger.Warn("reload session file failed", "account_id", accountID, "error", err)
				continue
			}
			s.entry(accountID).Store(&data)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Warn("session watcher error", "error", err)
		}
	}
}

func accountIDFromPath(path string) (int, bool) {
	base := path[strings.LastIndex(path, "/")+1:]
	name, ok := strings.CutSuffix(base, ".session")
	if !ok {
		return 0, false
	}
	id, err := strconv.Atoi(name)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Close stops the file watcher.
func (s *Store) Close() error {
	if s.watcherStop != nil {
		close(s.watcherStop)
		s.watcherStop = nil
	}
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}
