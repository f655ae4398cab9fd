package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchDebounce time.Duration

// watchCmd re-checks a manifest whenever it changes
var watchCmd = &cobra.Command{
	Use:   "watch [manifest]",
	Short: "Re-run the consistency check whenever the manifest changes",
	Long: `Loads the manifest, checks it, and then watches it for changes. Every
save reloads the ontology from scratch and prints the new verdict. A manifest
that fails to load is reported and watching continues.

Stop with Ctrl-C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 300*time.Millisecond, "Quiet period before reloading after a change")
}

func runWatch(cmd *cobra.Command, args []string) error {
	w, err := newManifestWatcher(args[0], cmd.OutOrStdout(), watchDebounce)
	if err != nil {
		return err
	}
	defer w.Close()
	return w.Run(cmd.Context())
}

// manifestWatcher watches the manifest's directory rather than the file so
// that editors which save by rename keep being observed.
type manifestWatcher struct {
	path     string
	out      io.Writer
	debounce time.Duration
	watcher  *fsnotify.Watcher

	pending time.Time // zero when no change is waiting
	checks  int
}

func newManifestWatcher(path string, out io.Writer, debounce time.Duration) (*manifestWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	return &manifestWatcher{path: abs, out: out, debounce: debounce, watcher: fw}, nil
}

// Run checks the manifest once, then again after every debounced change,
// until ctx is cancelled.
func (w *manifestWatcher) Run(ctx context.Context) error {
	w.check()

	interval := w.debounce / 2
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Watch stopped", zap.Int("checks", w.checks))
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("Manifest changed", zap.String("op", event.Op.String()))
			w.pending = time.Now()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error", zap.Error(err))

		case <-tick.C:
			if !w.pending.IsZero() && time.Since(w.pending) >= w.debounce {
				w.pending = time.Time{}
				w.check()
			}
		}
	}
}

// check reloads the manifest and prints one verdict line.
func (w *manifestWatcher) check() {
	w.checks++
	stamp := time.Now().Format(time.TimeOnly)

	s, err := openManifest(w.path)
	if err != nil {
		fmt.Fprintf(w.out, "[%s] load failed: %v\n", stamp, err)
		return
	}
	ok, err := s.r.IsConsistent()
	switch {
	case err != nil:
		fmt.Fprintf(w.out, "[%s] check failed: %v\n", stamp, reportReasoningError(err))
	case ok:
		fmt.Fprintf(w.out, "[%s] consistent (%d axioms)\n", stamp, len(s.r.Ontology().Axioms()))
	default:
		fmt.Fprintf(w.out, "[%s] inconsistent (%d axioms)\n", stamp, len(s.r.Ontology().Axioms()))
	}
}

func (w *manifestWatcher) Close() error {
	return w.watcher.Close()
}
