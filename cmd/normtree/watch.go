package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/fsnotify.v1"

	"github.com/coolbeans/normtree/internal/logging"
)

// watchDebounce groups the bursts of events editors produce on save.
const watchDebounce = 200 * time.Millisecond

func (a *app) watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-structure a document whenever it or the pattern catalog changes",
		Long: `Structure a document, then structure it again every time the input file
is written or a catalog file in the patterns directory changes. Runs until
interrupted.

Examples:
  normtree watch --input arrete.md --out tree.json
  normtree watch --input arrete.html --patterns patterns/ --out tree.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			inputPath, _ := cmd.Flags().GetString("input")
			format, _ := cmd.Flags().GetString("format")
			title, _ := cmd.Flags().GetString("title")
			outPath, _ := cmd.Flags().GetString("out")
			if inputPath == "" {
				return fmt.Errorf("--input flag is required")
			}

			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			run := func(reason string) {
				start := time.Now()
				tree, err := a.structureFile(inputPath, format, title, false)
				if err != nil {
					logging.ErrorContext(ctx, "structuring failed", "input", inputPath, "error", err)
					return
				}
				if err := writeJSONOutput(cmd, outPath, tree); err != nil {
					logging.ErrorContext(ctx, "writing output failed", "error", err)
					return
				}
				logging.LogDuration(ctx, "structure "+inputPath+" ("+reason+")", start)
			}
			return a.watch(ctx, inputPath, run)
		},
	}
	cmd.Flags().String("input", "", "Input document (required)")
	cmd.Flags().String("format", "", "Input format: html, md, docx, txt (default: from extension)")
	cmd.Flags().String("title", "", "Root title (default: first top-level heading or file name)")
	cmd.Flags().String("out", "", "Write the tree to this file instead of stdout")
	return cmd
}

// watch calls run once, then again after each change to inputPath or to the
// pattern catalog, until ctx is done.
func (a *app) watch(ctx context.Context, inputPath string, run func(reason string)) error {
	absInput, err := filepath.Abs(inputPath)
	if err != nil {
		return err
	}

	triggers := make(chan string, 1)
	trigger := func(reason string) {
		select {
		case triggers <- reason:
		default:
		}
	}

	if a.cfg.PatternsDir != "" {
		a.registry.SetOnChange(func(event, path string) {
			trigger("catalog " + event + ": " + filepath.Base(path))
		})
		if err := a.registry.Watch(); err != nil {
			return err
		}
		defer a.registry.StopWatch()
	}

	// Editors often replace the file instead of writing it, so the parent
	// directory is watched and events are filtered by name.
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(absInput)); err != nil {
		return fmt.Errorf("watching %s: %w", inputPath, err)
	}

	run("start")
	logging.InfoContext(ctx, "watching for changes", "input", inputPath, "patterns", a.cfg.PatternsDir)

	var debounce <-chan time.Time
	pending := ""
	for {
		select {
		case <-ctx.Done():
			logging.InfoContext(ctx, "watch stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absInput {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				trigger("input modified")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn("input watcher error", "error", err)

		case reason := <-triggers:
			pending = reason
			debounce = time.After(watchDebounce)

		case <-debounce:
			debounce = nil
			run(pending)
		}
	}
}
