package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/fakesociety/RentGuard360/model"
	"github.com/fakesociety/RentGuard360/pkg/analysis"
	"github.com/fakesociety/RentGuard360/pkg/logger"
	"github.com/fakesociety/RentGuard360/pkg/riskscore"
	"github.com/fakesociety/RentGuard360/pkg/sanitizer"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var logLevel string

var sanitizeCmd = &cobra.Command{
	Use:   "sanitize FILE...",
	Short: "Sanitize contract text files",
	Long:  `The sanitize command masks personal data in each text file, splits it into clauses and prints the results as JSON in argument order.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		initCLILogger()

		results, err := sanitizeFiles(cmd.Context(), args)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), results)
	},
}

var scoreCmd = &cobra.Command{
	Use:   "score FILE",
	Short: "Recalculate the risk score of an analysis",
	Long:  `The score command reads an analysis report, or raw reviewer output that contains one, and prints it with every score recalculated from its issues.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		initCLILogger()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		return writeJSON(cmd.OutOrStdout(), scoreOutput(cmd.Context(), string(data)))
	},
}

func init() {
	for _, cmd := range []*cobra.Command{sanitizeCmd, scoreCmd, watchCmd} {
		cmd.Flags().StringVar(&logLevel, "log-level", "warn", "log level written to stderr")
	}
}

// initCLILogger keeps stdout for results
func initCLILogger() {
	logger.Init(&logger.Config{
		Level:  logLevel,
		Format: "text",
		Output: os.Stderr,
	})
}

// fileResult is one entry of the sanitize command's output
type fileResult struct {
	File string `json:"file"`
	sanitizer.Result
}

// sanitizeFiles sanitizes every file concurrently. Results keep the order
// of paths; the first read error cancels the rest.
func sanitizeFiles(ctx context.Context, paths []string) ([]fileResult, error) {
	results := make([]fileResult, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			results[i] = fileResult{File: path, Result: sanitizer.Sanitize(string(data))}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// scoreOutput parses a report the same way the pipeline does, falling back
// to the neutral report when no JSON can be recovered.
func scoreOutput(ctx context.Context, raw string) model.AnalysisResult {
	report, err := analysis.ParseOutput(raw)
	if err != nil {
		logger.Warn(ctx, "input not parseable, using fallback", "error", err)
		report = analysis.Fallback(err)
	}
	report.Issues = analysis.Annotate(report.Issues)
	return riskscore.Recalculate(report)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}
