package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fakesociety/RentGuard360/pkg/logger"
	"github.com/fakesociety/RentGuard360/pkg/sanitizer"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

const sanitizedSuffix = ".sanitized.json"

var watchCmd = &cobra.Command{
	Use:   "watch DIR",
	Short: "Sanitize text files as they appear in a directory",
	Long:  `The watch command sanitizes every *.txt file created or changed in DIR and writes the result next to it as <name>.sanitized.json.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		initCLILogger()
		return watchDir(cmd.Context(), args[0], nil)
	},
}

// watchDir runs until ctx is done. onWritten, when set, is called with the
// path of every result file written.
func watchDir(ctx context.Context, dir string, onWritten func(string)) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	logger.Info(ctx, "watching directory", "dir", dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isContractText(event.Name) {
				continue
			}
			out, err := writeSanitized(event.Name)
			if err != nil {
				// The file may vanish or still be half written; the next event retries.
				logger.Warn(ctx, "failed to sanitize file", "file", event.Name, "error", err)
				continue
			}
			logger.Info(ctx, "file sanitized", "file", event.Name, "output", out)
			if onWritten != nil {
				onWritten(out)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				logger.Warn(ctx, "watcher queue overflowed, events were lost")
				continue
			}
			logger.Error(ctx, "watcher error", "error", err)
		}
	}
}

func isContractText(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".txt")
}

// sanitizedPath maps lease.txt to lease.sanitized.json in the same directory
func sanitizedPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + sanitizedSuffix
}

// writeSanitized sanitizes one text file and writes the result next to it
func writeSanitized(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	out := sanitizedPath(path)
	f, err := os.Create(out)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", out, err)
	}
	if err := writeJSON(f, sanitizer.Sanitize(string(data))); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", out, err)
	}
	return out, nil
}
