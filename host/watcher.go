package host

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

const defaultQuietPeriod = 5 * time.Second

// SaveWatcher reports saves written into the live save directory. A save touches many
// files, so events closer together than the quiet period are reported once.
type SaveWatcher struct {
	dir     string
	quiet   time.Duration
	onSave  func()
	watcher *fsnotify.Watcher
	log     *logrus.Entry

	mu   sync.Mutex
	last time.Time
	wg   sync.WaitGroup
}

// NewSaveWatcher watches dir and its subdirectories. onSave runs on the watcher goroutine.
func NewSaveWatcher(dir string, quiet time.Duration, onSave func(), log *logrus.Entry) (*SaveWatcher, error) {
	if quiet <= 0 {
		quiet = defaultQuietPeriod
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create save watcher: %w", err)
	}

	w := &SaveWatcher{
		dir:     dir,
		quiet:   quiet,
		onSave:  onSave,
		watcher: watcher,
		log:     log.WithField("dir", dir),
	}
	if err := w.addTree(dir); err != nil {
		watcher.Close()
		return nil, err
	}
	return w, nil
}

func (w *SaveWatcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// Start delivers save notifications on a new goroutine until ctx is done or the watcher is closed.
func (w *SaveWatcher) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

func (w *SaveWatcher) run(ctx context.Context) {
	defer w.wg.Done()

	w.log.Debugln("Starting save directory watcher...")
	defer w.log.Debugln("Save directory watcher stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.WithField("err", err).Errorln("Save watcher error")
		}
	}
}

func (w *SaveWatcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.log.WithField("err", err).Warnln("Could not watch new save subdirectory")
			}
		}
	}

	if !w.shouldEmit(time.Now()) {
		return
	}
	w.log.WithField("file", event.Name).Debugln("Save write detected")
	if w.onSave != nil {
		w.onSave()
	}
}

func (w *SaveWatcher) shouldEmit(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.last.IsZero() && now.Sub(w.last) < w.quiet {
		return false
	}
	w.last = now
	return true
}

// Close stops the watcher and waits for its goroutine to return.
func (w *SaveWatcher) Close() error {
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

// WaitForDir polls until dir exists and is a directory, ctx is done, or timeout passes.
func WaitForDir(ctx context.Context, dir string, poll, timeout time.Duration, log *logrus.Entry) error {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if stat, err := os.Stat(dir); err == nil {
			if stat.IsDir() {
				return nil
			}
			return fmt.Errorf("save path %s is not a directory", dir)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("error checking save directory %s: %w", dir, err)
		}

		if log != nil {
			log.WithField("dir", dir).Debugln("Waiting for save folder to be created by the game...")
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("stopped waiting for save directory %s: %w", dir, ctx.Err())
		case <-time.After(poll):
		}
	}

	return fmt.Errorf("timeout waiting for save directory %s to be created", dir)
}
