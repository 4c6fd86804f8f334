// Package signal watches the .planweave/signals directory for stop and
// pause control files so a running orchestration can be interrupted
// from outside the process.
package signal

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors the project-local signals directory.
type Watcher struct {
	signalsDir string

	mu          sync.RWMutex
	stopSignal  bool
	pauseSignal bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher creates a signal watcher rooted at the given project
// directory. When the fsnotify watcher cannot be started the Watcher
// still works through the stat fallback in ShouldStop/ShouldPause.
func NewWatcher(projectRoot string) (*Watcher, error) {
	signalsDir := filepath.Join(projectRoot, ".planweave", "signals")
	if err := os.MkdirAll(signalsDir, 0755); err != nil {
		return nil, err
	}

	w := &Watcher{
		signalsDir: signalsDir,
		done:       make(chan struct{}),
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return w, nil
	}
	if err := fsw.Add(signalsDir); err != nil {
		fsw.Close()
		return w, nil
	}
	w.watcher = fsw
	go w.watch()

	return w, nil
}

func (w *Watcher) watch() {
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
			w.mu.Lock()
			switch filepath.Base(event.Name) {
			case "stop":
				w.stopSignal = true
			case "pause":
				w.pauseSignal = true
			}
			w.mu.Unlock()
		case <-w.watcher.Errors:
			// Ignore errors, keep watching
		}
	}
}

// ShouldStop returns true if a stop signal has been received.
func (w *Watcher) ShouldStop() bool {
	// Also check the file directly in case the watcher missed it
	if _, err := os.Stat(filepath.Join(w.signalsDir, "stop")); err == nil {
		w.mu.Lock()
		w.stopSignal = true
		w.mu.Unlock()
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stopSignal
}

// ShouldPause returns true if a pause signal has been received.
func (w *Watcher) ShouldPause() bool {
	if _, err := os.Stat(filepath.Join(w.signalsDir, "pause")); err == nil {
		w.mu.Lock()
		w.pauseSignal = true
		w.mu.Unlock()
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.pauseSignal
}

// SendStop creates a stop signal file.
func (w *Watcher) SendStop() error {
	path := filepath.Join(w.signalsDir, "stop")
	return os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)), 0644)
}

// SendPause creates a pause signal file.
func (w *Watcher) SendPause() error {
	path := filepath.Join(w.signalsDir, "pause")
	return os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)), 0644)
}

// Clear removes all signal files and resets signal state.
func (w *Watcher) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopSignal = false
	w.pauseSignal = false

	os.Remove(filepath.Join(w.signalsDir, "stop"))
	os.Remove(filepath.Join(w.signalsDir, "pause"))
}

// Close shuts down the watcher.
func (w *Watcher) Close() {
	close(w.done)
	if w.watcher != nil {
		w.watcher.Close()
	}
}
