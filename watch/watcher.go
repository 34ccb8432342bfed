// Package watch re-evaluates ideas when their files change.
package watch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// eventChannelBuffer is the size of the watch event channel.
const eventChannelBuffer = 100

// Config configures idea file watching.
type Config struct {
	// DebounceDelay is how long to wait for more changes before emitting.
	DebounceDelay string `yaml:"debounce_delay"`

	// FileExtensions lists watched extensions.
	FileExtensions []string `yaml:"file_extensions"`
}

// DefaultConfig returns the default watch configuration.
func DefaultConfig() Config {
	return Config{
		DebounceDelay:  "500ms",
		FileExtensions: []string{".yaml", ".yml"},
	}
}

// GetDebounceDelay returns the debounce delay as a duration.
func (c Config) GetDebounceDelay() time.Duration {
	d, err := time.ParseDuration(c.DebounceDelay)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

// Op is the kind of change reported for a file.
type Op string

// File change kinds.
const (
	OpCreate Op = "create"
	OpModify Op = "modify"
	OpDelete Op = "delete"
)

// Event is one debounced file change.
type Event struct {
	// Path is relative to the watched directory.
	Path    string
	AbsPath string
	Op      Op
}

// Watcher emits debounced changes to idea files under one directory tree.
// Saves that leave the content unchanged are suppressed.
type Watcher struct {
	config     Config
	dir        string
	fsw        *fsnotify.Watcher
	logger     *slog.Logger
	extensions map[string]bool

	pendingMu sync.Mutex
	pending   map[string]fsnotify.Op

	hashMu sync.Mutex
	hashes map[string]string

	events        chan Event
	droppedEvents atomic.Int64
}

// New creates a watcher for dir.
func New(config Config, dir string, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	exts := config.FileExtensions
	if len(exts) == 0 {
		exts = DefaultConfig().FileExtensions
	}
	extensions := make(map[string]bool, len(exts))
	for _, ext := range exts {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		extensions[strings.ToLower(ext)] = true
	}

	return &Watcher{
		config:     config,
		dir:        dir,
		fsw:        fsw,
		logger:     logger,
		extensions: extensions,
		pending:    make(map[string]fsnotify.Op),
		hashes:     make(map[string]string),
		events:     make(chan Event, eventChannelBuffer),
	}, nil
}

// Events returns the channel of debounced events. It is closed when the
// watcher stops.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start seeds content hashes for existing files and begins watching.
func (w *Watcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	err := filepath.WalkDir(w.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			base := d.Name()
			if strings.HasPrefix(base, ".") && path != w.dir {
				return filepath.SkipDir
			}
			if err := w.fsw.Add(path); err != nil {
				w.logger.Warn("Failed to watch directory", "path", path, "error", err)
			}
			return nil
		}
		if w.watched(path) {
			if h, err := fileHash(path); err == nil {
				w.hashes[path] = h
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	go w.processEvents(ctx)

	w.logger.Info("Idea watcher started",
		"dir", w.dir,
		"debounce", w.config.GetDebounceDelay())
	return nil
}

// Stop stops the watcher. The events channel is closed by processEvents.
func (w *Watcher) Stop() error {
	return w.fsw.Close()
}

// DroppedEvents returns the number of events dropped on a full channel.
func (w *Watcher) DroppedEvents() int64 {
	return w.droppedEvents.Load()
}

func (w *Watcher) watched(path string) bool {
	return w.extensions[strings.ToLower(filepath.Ext(path))]
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.events)
	ticker := time.NewTicker(w.config.GetDebounceDelay())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)
		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	if !w.watched(event.Name) {
		if event.Has(fsnotify.Create) {
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !strings.HasPrefix(filepath.Base(event.Name), ".") {
				if err := w.fsw.Add(event.Name); err != nil {
					w.logger.Warn("Failed to watch new directory", "path", event.Name, "error", err)
				}
			}
		}
		return
	}

	w.pendingMu.Lock()
	w.pending[event.Name] |= event.Op
	w.pendingMu.Unlock()
}

func (w *Watcher) flushPending(ctx context.Context) {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	toProcess := w.pending
	w.pending = make(map[string]fsnotify.Op)
	w.pendingMu.Unlock()

	paths := make([]string, 0, len(toProcess))
	for p := range toProcess {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if ctx.Err() != nil {
			return
		}
		rel, _ := filepath.Rel(w.dir, path)
		event := Event{Path: rel, AbsPath: path}

		newHash, err := fileHash(path)
		if err != nil {
			if !os.IsNotExist(err) {
				w.logger.Warn("Failed to read changed file", "path", rel, "error", err)
				continue
			}
			w.hashMu.Lock()
			_, known := w.hashes[path]
			delete(w.hashes, path)
			w.hashMu.Unlock()
			if known {
				event.Op = OpDelete
				w.send(event)
			}
			continue
		}

		w.hashMu.Lock()
		oldHash, hadHash := w.hashes[path]
		w.hashes[path] = newHash
		w.hashMu.Unlock()

		if hadHash && oldHash == newHash {
			continue
		}
		if hadHash {
			event.Op = OpModify
		} else {
			event.Op = OpCreate
		}
		w.send(event)
	}
}

func (w *Watcher) send(event Event) {
	select {
	case w.events <- event:
		w.logger.Debug("Idea changed", "path", event.Path, "op", event.Op)
	default:
		dropped := w.droppedEvents.Add(1)
		w.logger.Warn("Event channel full, dropping event",
			"path", event.Path,
			"total_dropped", dropped)
	}
}

func fileHash(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
