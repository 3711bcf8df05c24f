// Package fswatch implements the directory-change wait primitive that
// throttles the control loop between rounds.
//
// spec.md §6 describes the original mechanism as shelling out to an
// external inotifywait-style binary with `-e moved_to`. This package
// realizes the same wait-for-new-file contract with the idiomatic Go
// library the rest of the retrieved pack reaches for instead,
// github.com/fsnotify/fsnotify (see DESIGN.md), falling back to a
// bounded sleep whenever the watch facility is unavailable.
package fswatch

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher is the capability contract the control loop depends on.
type Watcher interface {
	// WaitForNewFile blocks until a file is created/renamed into dir or
	// timeout elapses, whichever comes first. It returns true on any
	// non-error outcome, including the fallback sleep path.
	WaitForNewFile(ctx context.Context, dir string, timeout time.Duration) bool
}

// FSNotifyWatcher is the production Watcher.
type FSNotifyWatcher struct {
	Log *logrus.Entry
}

func (w *FSNotifyWatcher) log() *logrus.Entry {
	if w.Log == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return w.Log
}

// WaitForNewFile is the sole long-suspending call in the control loop.
func (w *FSNotifyWatcher) WaitForNewFile(ctx context.Context, dir string, timeout time.Duration) bool {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.log().WithError(err).Warn("directory watch unavailable, falling back to sleep")
		return w.sleepFallback(ctx, timeout)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		w.log().WithError(err).WithField("dir", dir).Warn("failed to watch directory, falling back to sleep")
		return w.sleepFallback(ctx, timeout)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return true
			}
			if event.Op&(fsnotify.Create|fsnotify.Rename) != 0 {
				return true
			}
		case err, ok := <-watcher.Errors:
			if !ok || err != nil {
				return true
			}
		case <-timer.C:
			return true
		case <-ctx.Done():
			return true
		}
	}
}

func (w *FSNotifyWatcher) sleepFallback(ctx context.Context, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
	return true
}
