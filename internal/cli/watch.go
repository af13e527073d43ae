package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settle is the quiet period after the last change before a rerun.
// Editors often write a file in several events.
const settle = 150 * time.Millisecond

// watch runs fn, then reruns it each time a description under path
// changes, until ctx is done. Failures of fn are reported, not returned.
func watch(ctx context.Context, p *printer, path string, fn func(context.Context) error) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()

	dir, match, err := watched(path)
	if err != nil {
		return err
	}
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	run := func() {
		if err := fn(ctx); err != nil {
			p.failure(err)
		}
		p.step("watching %s for changes", path)
	}
	run()

	timer := time.NewTimer(settle)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if match(ev.Name) && ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				timer.Reset(settle)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			p.warning("watch: %v", err)
		case <-timer.C:
			p.step("change detected, rerunning")
			run()
		}
	}
}

// watched returns the directory to watch for path and the filter of the
// file names that concern it.
func watched(path string) (string, func(string) bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", nil, err
	}
	if info.IsDir() {
		return path, func(name string) bool {
			return slices.Contains([]string{".yaml", ".yml"}, strings.ToLower(filepath.Ext(name)))
		}, nil
	}
	clean := filepath.Clean(path)
	return filepath.Dir(clean), func(name string) bool {
		return filepath.Clean(name) == clean
	}, nil
}
