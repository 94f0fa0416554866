package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"livecheck/internal/paths"
	"livecheck/internal/watcher"
)

var (
	watchDebounce time.Duration
	watchPoll     time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch <file>...",
	Short: "Rescan files whenever they are saved",
	Long: `Watch files and rescan each one after it is saved. A save during a running
scan supersedes it; only the latest result is printed. Press Ctrl-C to stop.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	defaults := watcher.DefaultConfig()
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", time.Duration(defaults.DebounceMs)*time.Millisecond, "Quiet period after a save before scanning")
	watchCmd.Flags().DurationVar(&watchPoll, "poll", defaults.PollInterval, "Polling interval")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var scans scanGroup
	var w *watcher.Watcher
	rescan := func(ev watcher.Event) {
		if ev.Type == watcher.EventDelete {
			w.Unwatch(ev.Path)
			a.console.ShowWarning("Stopped watching deleted file " + ev.Path)
			if w.Watched() == 0 {
				stop()
			}
			return
		}
		// Ctrl-C cancels the wait; the detached call settles in a.Close
		if _, err := a.orch.Scan(ctx, ev.Path); err != nil {
			a.logger.Warn("Rescan failed", "path", ev.Path, "error", err)
		}
	}

	w = watcher.New(watcher.Config{
		DebounceMs:   int(watchDebounce / time.Millisecond),
		PollInterval: watchPoll,
	}, a.logger, func(ev watcher.Event) {
		scans.Go(func() { rescan(ev) })
	})

	for _, arg := range args {
		path, err := paths.CanonicalizePath(arg)
		if err != nil {
			return err
		}
		w.Watch(path)
	}
	if _, err := a.orch.Restore(ctx); err != nil {
		return shownError{err}
	}
	a.console.ShowInfo(fmt.Sprintf("Watching %d file(s) for changes. Press Ctrl-C to stop.", w.Watched()))
	w.Run(ctx)

	scans.Close()
	return nil
}

// scanGroup runs rescans started from debouncer timers. Go after Close is
// a no-op, so Close never races a late Add.
type scanGroup struct {
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// Go runs fn in a goroutine unless the group is closed.
func (g *scanGroup) Go(fn func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		fn()
	}()
	return true
}

// Close rejects further Go calls and waits for running ones.
func (g *scanGroup) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	g.wg.Wait()
}
