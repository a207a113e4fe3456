package library

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/berrythewa/datalibrary/internal/types"
	"github.com/berrythewa/datalibrary/pkg/utils"
)

const defaultWatchDebounce = 500 * time.Millisecond

// Sync indexes every item below root and prunes records whose files are
// gone. An empty root means the library root. It returns the number of
// items found on disk.
func (l *Library) Sync(ctx context.Context, root string) (int, error) {
	if root == "" {
		root = l.root
	}
	root = utils.NormalizePath(root)

	seen := make(map[string]struct{})
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		p = utils.NormalizePath(p)
		if p == root || p == l.path {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		kind, ok := l.registry.ForPath(p, d.IsDir())
		if !ok {
			return nil
		}
		seen[p] = struct{}{}

		if _, err := l.Record(p); err == nil {
			return nil
		}
		return l.Register(&types.ItemRecord{Path: p, Kind: kind.Name})
	})
	if err != nil {
		return 0, fmt.Errorf("failed to sync library %s: %w", l.path, err)
	}

	records, err := l.Records()
	if err != nil {
		return 0, err
	}
	var pruned int
	for _, rec := range records {
		if !strings.HasPrefix(rec.Path, root+"/") {
			continue
		}
		if _, ok := seen[rec.Path]; ok {
			continue
		}
		if _, err := os.Stat(rec.Path); err == nil {
			continue
		}
		if err := l.Remove(rec.Path); err != nil {
			return 0, err
		}
		pruned++
	}

	if err := l.touchSynced(); err != nil {
		return 0, err
	}

	l.logger.Info("Library synced",
		zap.String("library", l.path),
		zap.String("root", root),
		zap.Int("items", len(seen)),
		zap.Int("pruned", pruned))

	return len(seen), nil
}

// Watch re-syncs root whenever something below it changes, until ctx is
// done. Bursts of events are collapsed into one sync.
func (l *Library) Watch(ctx context.Context, root string, debounce time.Duration) error {
	if root == "" {
		root = l.root
	}
	return WatchTree(ctx, root, debounce, l.logger, func(ctx context.Context) {
		if _, err := l.Sync(ctx, root); err != nil && ctx.Err() == nil {
			l.logger.Error("Library sync failed", zap.Error(err))
		}
	}, l.path)
}

// WatchTree calls onChange once things below root stop changing for
// debounce, until ctx is done. Events on the ignored paths are dropped.
func WatchTree(ctx context.Context, root string, debounce time.Duration, logger *zap.Logger, onChange func(ctx context.Context), ignore ...string) error {
	if debounce <= 0 {
		debounce = defaultWatchDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := addTree(watcher, root); err != nil {
		return err
	}

	logger.Info("Watching library", zap.String("root", root))

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ignored(event.Name, ignore) {
				continue
			}
			if event.Has(fsnotify.Create) && utils.DirExists(event.Name) {
				if err := addTree(watcher, event.Name); err != nil {
					logger.Warn("Failed to watch new folder", zap.String("path", event.Name), zap.Error(err))
				}
			}
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Library watcher error", zap.Error(err))

		case <-timer.C:
			onChange(ctx)
		}
	}
}

// ignored matches paths and files named after them, e.g. data.db.bak.
func ignored(name string, paths []string) bool {
	for _, p := range paths {
		if utils.SamePath(name, p) || strings.HasPrefix(utils.NormalizePath(name), utils.NormalizePath(p)+".") {
			return true
		}
	}
	return false
}

func addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := watcher.Add(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
		return nil
	})
}
