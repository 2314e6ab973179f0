// Package reload applies configuration changes to a running gateway,
// triggered by a SIGHUP or by the config file changing on disk.
package reload

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

const defaultPollInterval = 5 * time.Second

// WatcherConfig tells the watcher which file to poll and how often.
type WatcherConfig struct {
	// ConfigPath is the gateway config file to watch.
	ConfigPath string

	// PollInterval between stat calls. Zero means 5 seconds.
	PollInterval time.Duration
}

// EventType labels a watcher notification.
type EventType string

// EventModified means the config file changed on disk.
const EventModified EventType = "modified"

// Event is one change notification.
type Event struct {
	Type       EventType
	ConfigPath string
}

// Watcher polls the config file's modtime and size and emits an Event
// when either moves. Polling keeps the dependency surface flat; a
// gateway config changes rarely enough that inotify buys nothing.
type Watcher struct {
	cfg     WatcherConfig
	events  chan Event
	stop    chan struct{}
	stopped chan struct{}

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
}

type fileStamp struct {
	modTime time.Time
	size    int64
}

// NewWatcher builds a watcher. Call Start to begin polling.
func NewWatcher(cfg WatcherConfig) *Watcher {
	return &Watcher{
		cfg:     cfg,
		events:  make(chan Event, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start launches the polling goroutine. Repeat calls are no-ops.
func (w *Watcher) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		w.started.Store(true)
		go w.loop(ctx)
	})
}

// Events is the stream of change notifications. Capacity one: a change
// observed while a reload is already pending is folded into it.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Stop halts polling and waits for the goroutine to exit. Idempotent,
// and safe before Start.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
	})
	if w.started.Load() {
		// If Start won the race, the goroutine will observe the closed
		// stop channel as soon as it is scheduled.
		<-w.stopped
	}
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.stopped)

	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()

	last, _ := w.stat()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			current, ok := w.stat()
			if !ok {
				// File briefly missing, e.g. an editor's atomic rename.
				// Keep the old stamp and catch the replacement next tick.
				continue
			}
			if current.modTime.After(last.modTime) || current.size != last.size {
				last = current
				select {
				case w.events <- Event{Type: EventModified, ConfigPath: w.cfg.ConfigPath}:
				default:
				}
			}
		}
	}
}

func (w *Watcher) interval() time.Duration {
	if w.cfg.PollInterval > 0 {
		return w.cfg.PollInterval
	}
	return defaultPollInterval
}

func (w *Watcher) stat() (fileStamp, bool) {
	info, err := os.Stat(w.cfg.ConfigPath)
	if err != nil {
		return fileStamp{}, false
	}
	return fileStamp{modTime: info.ModTime(), size: info.Size()}, true
}
