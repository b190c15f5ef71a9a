package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	hc "github.com/gohl7/corrector"
	"github.com/gohl7/corrector/worker"
)

var fixCmd = &cobra.Command{
	Use:   "fix [flags] <file>...",
	Short: "Correct messages until they pass validation",
	Long: `Fix submits each message for validation, corrects the reported
defects, and revalidates until the message passes, no rule makes
progress, or the iteration ceiling is reached. Corrected messages are
written next to their inputs with a -fixed suffix.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFix,
}

func init() {
	fixCmd.Flags().StringP("output-dir", "o", "", "directory for corrected messages (default: next to input)")
	fixCmd.Flags().Bool("report", false, "print the session report for each message")
	fixCmd.Flags().Int("max-iterations", 0, "validation ceiling per message (overrides config)")
	fixCmd.Flags().Int("workers", 0, "concurrent sessions (overrides config)")
}

func runFix(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if n, _ := cmd.Flags().GetInt("max-iterations"); n > 0 {
		cfg.MaxIterations = n
	}
	if n, _ := cmd.Flags().GetInt("workers"); n > 0 {
		cfg.Workers = n
	}
	outputDir, _ := cmd.Flags().GetString("output-dir")
	printReport, _ := cmd.Flags().GetBool("report")

	controller, err := cfg.controller()
	if err != nil {
		return err
	}

	jobs := make([]worker.Job, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		jobs = append(jobs, worker.Job{
			ID:       path,
			Filename: filepath.Base(path),
			Message:  data,
		})
	}

	batch := worker.CorrectBatch(cmd.Context(), controller, jobs, cfg.Workers)

	failures := 0
	for _, result := range batch.Results {
		if result == nil {
			continue
		}
		if result.Error != nil {
			failures++
			fmt.Fprintf(os.Stderr, "%s: %v\n", result.ID, result.Error)
			continue
		}

		session := result.Session
		fmt.Printf("%s: %s after %d validation(s), %d correction(s)\n",
			result.ID, session.Outcome, session.Iterations, len(session.Records))

		if session.Outcome != hc.OutcomePassed {
			failures++
		}
		if printReport {
			fmt.Println()
			fmt.Println(session.Report())
		}

		out := fixedPath(result.ID, outputDir)
		if err := os.WriteFile(out, session.FinalMessage, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d message(s) did not pass", failures, batch.TotalJobs)
	}
	return nil
}

// fixedPath derives the output path for a corrected message, e.g.
// booking.xml becomes booking-fixed.xml.
func fixedPath(input, outputDir string) string {
	dir := filepath.Dir(input)
	if outputDir != "" {
		dir = outputDir
	}
	base := filepath.Base(input)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext) + "-fixed" + ext
	return filepath.Join(dir, name)
}
