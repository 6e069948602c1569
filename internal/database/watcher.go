package database

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/papapumpkin/caldera/internal/carrier"
)

// DefaultDebounce is how long a table must stay quiet before a reload.
const DefaultDebounce = 100 * time.Millisecond

// Reload is the outcome of reloading a database after its tables changed.
// Exactly one of Database and Err is set.
type Reload struct {
	Files    []string // tables that changed since the previous reload
	Database *Database
	Err      error
}

// Watcher reloads a database directory whenever one of its tables changes.
type Watcher struct {
	Dir      string
	Debounce time.Duration
	Reloads  <-chan Reload

	opts    []carrier.Option
	reloads chan Reload
	stop    chan struct{}
	done    chan struct{}
	watcher *fsnotify.Watcher
}

// NewWatcher creates a watcher for dir. opts are applied on every reload.
func NewWatcher(dir string, opts ...carrier.Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ch := make(chan Reload, 4)
	return &Watcher{
		Dir:      dir,
		Debounce: DefaultDebounce,
		Reloads:  ch,
		opts:     opts,
		reloads:  ch,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		watcher:  fw,
	}, nil
}

// Start watches the directory and its feedstock and component folders.
// Folders that do not exist are skipped.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.Dir); err != nil {
		return err
	}
	for _, sub := range []string{FeedstocksDir, ComponentsDir} {
		path := filepath.Join(w.Dir, sub)
		if fi, err := os.Stat(path); err != nil || !fi.IsDir() {
			continue
		}
		if err := w.watcher.Add(path); err != nil {
			return err
		}
	}
	go w.loop()
	return nil
}

// Stop closes the watcher and the Reloads channel. A reload nobody
// receives is dropped.
func (w *Watcher) Stop() {
	close(w.stop)
	w.watcher.Close()
	<-w.done
	close(w.reloads)
}

func (w *Watcher) loop() {
	defer close(w.done)

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(debounce)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isTable(event.Name) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				pending[event.Name] = time.Now()
			}

		case now := <-ticker.C:
			if len(pending) == 0 {
				continue
			}
			quiet := true
			for _, t := range pending {
				if now.Sub(t) < debounce {
					quiet = false
					break
				}
			}
			if !quiet {
				continue
			}
			files := make([]string, 0, len(pending))
			for f := range pending {
				files = append(files, f)
			}
			sort.Strings(files)
			clear(pending)
			w.reload(files)

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) reload(files []string) {
	db, err := Load(w.Dir, w.opts...)
	r := Reload{Files: files, Database: db, Err: err}
	if err != nil {
		r.Database = nil
	}
	select {
	case w.reloads <- r:
	case <-w.stop:
	}
}

func isTable(name string) bool {
	return strings.EqualFold(filepath.Ext(name), tableExtension)
}
