package cli

import (
	"context"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/roach88/noalloc/internal/frontend"
)

// watchDebounce collapses the burst of events an editor save produces.
const watchDebounce = 200 * time.Millisecond

// watchAndCheck checks paths, then again after every change to an input
// file, until ctx is cancelled or the process is interrupted. Check
// failures and load errors are reported but do not stop the loop.
func watchAndCheck(ctx context.Context, s *session, paths []string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start file watcher", err)
	}
	defer watcher.Close()

	dirs, err := watchedDirs(paths)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to scan watched paths", err)
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return WrapExitError(ExitCommandError, "failed to watch "+dir, err)
		}
	}
	s.logger.Info("watching for changes", "dirs", len(dirs))

	rerun := func() {
		if err := s.checkOnce(ctx, paths); err != nil {
			s.logger.Debug("check finished", "exit", GetExitCode(err), "error", err)
		}
	}
	rerun()

	timer := time.NewTimer(watchDebounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevantEvent(ev) {
				continue
			}
			s.logger.Debug("input changed", "file", ev.Name, "op", ev.Op.String())
			timer.Reset(watchDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("watch error", "error", err)
		case <-timer.C:
			rerun()
		}
	}
}

// relevantEvent reports whether ev changes an input Load would read.
func relevantEvent(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	ext := strings.ToLower(filepath.Ext(ev.Name))
	for _, e := range frontend.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// watchedDirs returns every directory fsnotify must watch to see changes
// under paths: the directories themselves, their non-hidden
// subdirectories, and the parent of each named file.
func watchedDirs(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			seen[filepath.Dir(root)] = true
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			seen[path] = true
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	dirs := make([]string, 0, len(seen))
	for dir := range seen {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs, nil
}
