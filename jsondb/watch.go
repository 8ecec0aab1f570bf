// Notifies about changes made to a collection file.

package jsondb

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchSettle is how long Watch waits for a burst of filesystem events to
// end before calling back. Rewriting a file emits a truncate and one or more
// writes.
const watchSettle = 50 * time.Millisecond

// Watch calls fn each time the collection file is written, created or
// replaced, by this process or another one. Bursts of events are coalesced
// into one call. fn runs on the watching goroutine.
//
// Watch blocks until ctx is done and then returns ctx.Err().
func (c *Collection) Watch(ctx context.Context, fn func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: failed to create watcher: %w", ErrStorage, err)
	}
	defer func() { _ = w.Close() }()
	// Watch the directory since editors and tools often replace files by
	// renaming over them, which would drop a watch on the file itself.
	if err := w.Add(filepath.Dir(c.path)); err != nil {
		return fmt.Errorf("%w: failed to watch %s: %w", ErrStorage, c.path, err)
	}
	timer := time.NewTimer(watchSettle)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != c.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				timer.Reset(watchSettle)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.WarnContext(ctx, "Error watching collection", "name", c.name, "err", err)
		case <-timer.C:
			fn()
		}
	}
}
