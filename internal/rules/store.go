package rules

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
)

// Store holds the current RuleSet and swaps it atomically on reload.
// Readers call Current once per unit of work and keep that snapshot; a
// reload never changes a RuleSet already handed out.
type Store struct {
	path string
	log  Logger
	cur  atomic.Pointer[RuleSet]
}

// NewStore loads path (or the built-in rules when path is empty or invalid).
func NewStore(path string, log Logger) *Store {
	s := &Store{path: path, log: log}
	s.cur.Store(LoadOrDefault(path, log))
	return s
}

// Current returns the active rule set.
func (s *Store) Current() *RuleSet { return s.cur.Load() }

// Path returns the watched rule file, or "" for built-in rules.
func (s *Store) Path() string { return s.path }

// Reload re-reads the rule file. On error the previous rule set stays active.
func (s *Store) Reload() (*RuleSet, error) {
	if s.path == "" {
		return s.Current(), nil
	}
	rs, err := Load(s.path)
	if err != nil {
		return s.Current(), err
	}
	s.cur.Store(rs)
	return rs, nil
}

// ReloadFunc is called after a successful reload with the new rule set.
type ReloadFunc func(*RuleSet)

// Watcher reloads a Store when its rule file changes. Bursts of events
// within the debounce period collapse into one reload.
type Watcher struct {
	store    *Store
	fsw      *fsnotify.Watcher
	target   string
	debounce time.Duration
	onReload ReloadFunc

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
	done   chan struct{}
}

// DefaultDebounce is the quiet period before a changed file is reloaded.
const DefaultDebounce = 250 * time.Millisecond

// Watch starts watching the store's rule file. The parent directory is
// watched so editors that save by rename are still seen.
func (s *Store) Watch(debounce time.Duration, onReload ReloadFunc) (*Watcher, error) {
	if s.path == "" {
		return nil, errors.New("no rule file to watch")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(s.path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", s.path)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create file watcher")
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, errors.Wrapf(err, "watch %s", filepath.Dir(abs))
	}

	w := &Watcher{
		store:    s,
		fsw:      fsw,
		target:   abs,
		debounce: debounce,
		onReload: onReload,
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.store.log != nil {
				w.store.log.Warn("Rule watcher error: %v", err)
			}
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return
	}

	rs, err := w.store.Reload()
	if err != nil {
		if w.store.log != nil {
			w.store.log.Warn("Rule reload failed, keeping %s: %v", rs.Fingerprint(), err)
		}
		return
	}
	if w.store.log != nil {
		w.store.log.Info("Reloaded %d rules from %s (%s)", rs.Len(), rs.Source(), rs.Fingerprint())
	}
	if w.onReload != nil {
		w.onReload(rs)
	}
}

// Close stops the watcher. Pending reloads are dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	err := w.fsw.Close()
	<-w.done
	return err
}
