package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ci-shared/workflow-secrets/pkg/console"
	"github.com/ci-shared/workflow-secrets/pkg/logger"
	"github.com/fsnotify/fsnotify"
)

var watchLog = logger.New("cli:watch")

// watchDebounce groups the burst of events an editor produces on save into
// one rescan.
const watchDebounce = 300 * time.Millisecond

// RunWatch scans once, then rescans on every workflow change until ctx is
// cancelled. Findings never end the watch; only configuration errors do.
func RunWatch(ctx context.Context, opts CheckOptions) error {
	opts = withDefaultWriters(opts)

	policy, err := resolvePolicy(opts)
	if err != nil {
		return &ExitError{Code: ExitUsage, Err: err}
	}

	files, err := resolveWorkflowFiles(opts.Paths, baseDir(opts))
	if err != nil {
		return &ExitError{Code: ExitUsage, Err: err}
	}
	dirs := watchDirs(opts.Paths, files, baseDir(opts))
	if len(dirs) == 0 {
		return &ExitError{Code: ExitUsage, Err: fmt.Errorf("nothing to watch: no workflow directory found")}
	}

	fmt.Fprintln(opts.Stderr, console.FormatInfoMessage("Watching "+strings.Join(relativePaths(dirs), ", ")+" for changes (Ctrl+C to stop)"))
	return watchAndScan(ctx, dirs, watchDebounce, func() {
		if opts.OutputFile == "" {
			console.ClearScreen(opts.Stdout)
		}
		if _, err := runScan(opts, policy); err != nil {
			fmt.Fprintln(opts.Stderr, console.FormatErrorMessage(err.Error()))
		}
	})
}

// watchAndScan calls rescan once, then again each time a .yml or .yaml file in
// dirs changes, until ctx is cancelled.
func watchAndScan(ctx context.Context, dirs []string, debounce time.Duration, rescan func()) error {
	if len(dirs) == 0 {
		return fmt.Errorf("watch mode needs at least one existing directory to watch")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		watchLog.Printf("Watching %s", dir)
	}

	rescan()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			watchLog.Print("Watch stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isWorkflowFileName(event.Name) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			watchLog.Printf("Change detected: %s", event)
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			rescan()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			watchLog.Printf("Watcher error: %v", err)
		}
	}
}

func relativePaths(paths []string) []string {
	rel := make([]string, len(paths))
	for i, p := range paths {
		rel[i] = console.ToRelativePath(p)
	}
	return rel
}
