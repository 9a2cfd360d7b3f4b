// Package signals lets operators stop or pause running workers by dropping
// files into a shared signals directory.
package signals

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	killFile  = "kill"
	pauseFile = "pause"
)

// Dir returns the signals directory that sits next to a database file.
func Dir(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), "signals")
}

// Watcher tracks kill and pause files. A kill is latched for the life of the
// watcher; pause follows the file, so removing it resumes work.
type Watcher struct {
	dir string

	mu    sync.RWMutex
	stop  bool
	pause bool

	watcher   *fsnotify.Watcher
	changed   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewWatcher creates the signals directory and starts watching it. When
// fsnotify is unavailable the watcher falls back to stat checks.
func NewWatcher(dir string) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	w := &Watcher{
		dir:     dir,
		changed: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return w, nil
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return w, nil
	}
	w.watcher = fw

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
			present := event.Op&(fsnotify.Create|fsnotify.Write) != 0
			gone := event.Op&(fsnotify.Remove|fsnotify.Rename) != 0

			w.mu.Lock()
			switch filepath.Base(event.Name) {
			case killFile:
				if present {
					w.stop = true
				}
			case pauseFile:
				if present {
					w.pause = true
				} else if gone {
					w.pause = false
				}
			}
			w.mu.Unlock()
			w.notify()
		case <-w.watcher.Errors:
			// Ignore errors, keep watching
		}
	}
}

func (w *Watcher) notify() {
	select {
	case w.changed <- struct{}{}:
	default:
	}
}

// Changed fires after any signal file event so sleeping loops can re-check.
func (w *Watcher) Changed() <-chan struct{} {
	return w.changed
}

// ShouldStop returns true once a kill signal has been seen.
func (w *Watcher) ShouldStop() bool {
	// Also check file directly in case watcher missed it
	if exists(filepath.Join(w.dir, killFile)) {
		w.mu.Lock()
		w.stop = true
		w.mu.Unlock()
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stop
}

// ShouldPause returns true while the pause file exists.
func (w *Watcher) ShouldPause() bool {
	paused := exists(filepath.Join(w.dir, pauseFile))

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pause = paused
	return w.pause
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Close stops the file watcher.
func (w *Watcher) Close() {
	w.closeOnce.Do(func() {
		close(w.done)
		if w.watcher != nil {
			w.watcher.Close()
		}
	})
}

// SendKill asks every worker watching dir to stop.
func SendKill(dir string) error {
	return touch(dir, killFile)
}

// SendPause asks every worker watching dir to stop polling until resumed.
func SendPause(dir string) error {
	return touch(dir, pauseFile)
}

// Resume removes the pause and kill files so paused workers poll again and
// new workers may start. Workers that already saw a kill still exit.
func Resume(dir string) error {
	for _, name := range []string{pauseFile, killFile} {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// KillPending reports whether a kill file is waiting in dir.
func KillPending(dir string) bool {
	return exists(filepath.Join(dir, killFile))
}

func touch(dir, name string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name), []byte(time.Now().Format(time.RFC3339)), 0644)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
