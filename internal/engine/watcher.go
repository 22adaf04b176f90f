package engine

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// stopFileName is the control file whose creation cancels a running solve.
const stopFileName = "stop"

// SignalWatcher cancels a running solve when a stop file appears in the
// session's signal directory. It lets another process (or the user) halt a
// long recursion without killing the process.
type SignalWatcher struct {
	dir     string
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

// NewSignalWatcher creates the signal directory if needed and starts
// watching it.
func NewSignalWatcher(dir string) (*SignalWatcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	return &SignalWatcher{
		dir:     dir,
		watcher: watcher,
		done:    make(chan struct{}),
	}, nil
}

// Watch runs until Close is called, invoking onStop once if the stop file
// appears. A stop file already present when watching starts counts too.
func (w *SignalWatcher) Watch(onStop func()) {
	if w.checkExisting() {
		w.fire(onStop)
		return
	}

	go func() {
		for {
			select {
			case <-w.done:
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				if strings.EqualFold(filepath.Base(event.Name), stopFileName) {
					w.fire(onStop)
					return
				}
			case _, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
}

// checkExisting returns true if the stop file already exists.
func (w *SignalWatcher) checkExisting() bool {
	_, err := os.Stat(filepath.Join(w.dir, stopFileName))
	return err == nil
}

// fire invokes onStop exactly once.
func (w *SignalWatcher) fire(onStop func()) {
	w.mu.Lock()
	alreadyStopped := w.stopped
	w.stopped = true
	w.mu.Unlock()

	if !alreadyStopped && onStop != nil {
		debugLog("signal: stop requested via %s", filepath.Join(w.dir, stopFileName))
		onStop()
	}
}

// Stopped reports whether a stop signal has been observed.
func (w *SignalWatcher) Stopped() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopped
}

// Close stops watching and releases the underlying watcher.
func (w *SignalWatcher) Close() error {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
	return w.watcher.Close()
}

// RequestStop writes the stop file into the given signal directory. It is
// the counterpart used by other processes to halt a running solve.
func RequestStop(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, stopFileName), []byte("stop\n"), 0644)
}

// ClearStop removes a leftover stop file so a new session can run.
func ClearStop(dir string) error {
	err := os.Remove(filepath.Join(dir, stopFileName))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
