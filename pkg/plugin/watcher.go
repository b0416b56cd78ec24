package plugin

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ChangeKind is the kind of plugin directory change
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeRemoved ChangeKind = "removed"
)

// Change is a plugin appearing in or disappearing from the plugin directory
type Change struct {
	Kind ChangeKind
	Name string
	Path string
}

// Watcher reports plugins added to or removed from a directory after
// startup. Aggregated capabilities are fixed for the process lifetime, so a
// change only means a restart is needed.
type Watcher struct {
	logger   zerolog.Logger
	watcher  *fsnotify.Watcher
	dir      string
	prefix   string
	changes  chan Change
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewWatcher creates a watcher for plugins named with prefix in dir
func NewWatcher(dir, prefix string, logger zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if prefix == "" {
		prefix = DefaultPrefix
	}

	return &Watcher{
		logger:  logger.With().Str("component", "plugin-watcher").Logger(),
		watcher: fw,
		dir:     dir,
		prefix:  prefix,
		changes: make(chan Change, 16),
		done:    make(chan struct{}),
	}, nil
}

// Changes returns the channel changes are delivered on. It is closed by Stop.
func (w *Watcher) Changes() <-chan Change {
	return w.changes
}

// Start starts watching the plugin directory
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	w.wg.Add(1)
	go w.eventLoop()

	w.logger.Info().Str("dir", w.dir).Msg("Plugin watcher started")
	return nil
}

// Stop stops the watcher and closes the changes channel
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
		w.wg.Wait()
		close(w.changes)
	})
	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if change, ok := w.classify(event); ok {
				select {
				case w.changes <- change:
				case <-w.done:
					return
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Watcher error")

		case <-w.done:
			return
		}
	}
}

// classify maps a filesystem event to a plugin change
func (w *Watcher) classify(event fsnotify.Event) (Change, bool) {
	// only immediate children are plugins
	if filepath.Clean(filepath.Dir(event.Name)) != filepath.Clean(w.dir) {
		return Change{}, false
	}

	name := filepath.Base(event.Name)
	if !strings.HasPrefix(name, w.prefix) {
		return Change{}, false
	}

	switch {
	case event.Has(fsnotify.Create):
		return Change{Kind: ChangeAdded, Name: name, Path: event.Name}, true
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// a rename is followed by a create for the new name
		return Change{Kind: ChangeRemoved, Name: name, Path: event.Name}, true
	}
	return Change{}, false
}
