package watch

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// EventKind is the kind of filesystem mutation observed.
type EventKind int

const (
	// EventCreate indicates a file or directory appeared.
	EventCreate EventKind = iota
	// EventDelete indicates a file or directory disappeared or was renamed away.
	EventDelete
)

// String returns a human-readable representation of the kind.
func (k EventKind) String() string {
	switch k {
	case EventCreate:
		return "create"
	case EventDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event is one raw filesystem event.
type Event struct {
	Kind EventKind
	Path string
}

// ErrRootRemoved terminates a stream whose watched root disappeared.
var ErrRootRemoved = stderrors.New("watched root was removed")

// Source produces raw create/delete events for a directory subtree.
type Source interface {
	// Watch sends events for root and everything below it until ctx ends,
	// returning nil, or the stream fails, returning the terminal error. A
	// Source is not restartable: callers create a new Watch call to resume.
	Watch(ctx context.Context, root string, events chan<- Event) error
}

// FSNotifySource is a recursive Source built on fsnotify.
type FSNotifySource struct {
	logger *logrus.Entry
}

// NewFSNotifySource creates an FSNotifySource.
func NewFSNotifySource(logger *logrus.Entry) *FSNotifySource {
	return &FSNotifySource{logger: logger}
}

// Watch implements Source.
func (s *FSNotifySource) Watch(ctx context.Context, root string, events chan<- Event) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(root); err != nil {
		return fmt.Errorf("watch root %s: %w", root, err)
	}
	s.addTree(watcher, root, true)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watch %s: event stream closed", root)
			}

			var kind EventKind
			switch {
			case event.Has(fsnotify.Create):
				kind = EventCreate
				if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
					s.addTree(watcher, event.Name, false)
				}
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				kind = EventDelete
				if filepath.Clean(event.Name) == filepath.Clean(root) {
					return ErrRootRemoved
				}
			default:
				continue
			}

			select {
			case events <- Event{Kind: kind, Path: event.Name}:
			case <-ctx.Done():
				return nil
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watch %s: error stream closed", root)
			}
			if stderrors.Is(err, fsnotify.ErrEventOverflow) {
				s.logger.WithError(err).Warn("Watch queue overflowed, some changes may be missed until the next rescan")
				continue
			}
			return fmt.Errorf("watch %s: %w", root, err)
		}
	}
}

// addTree watches every directory below dir. The root has already been added
// when skipRoot is set. Unreadable subtrees and vanished entries are skipped.
func (s *FSNotifySource) addTree(watcher *fsnotify.Watcher, dir string, skipRoot bool) {
	limitLogged := false
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() || (skipRoot && path == dir) {
			return nil
		}
		if err := watcher.Add(path); err != nil {
			if stderrors.Is(err, syscall.ENOSPC) {
				if !limitLogged {
					s.logger.WithError(err).Warn("Watch limit reached, deeper directories are not watched")
					limitLogged = true
				}
				return filepath.SkipDir
			}
			s.logger.WithError(err).WithField("path", path).Debug("Failed to watch directory")
			return filepath.SkipDir
		}
		return nil
	})
}
