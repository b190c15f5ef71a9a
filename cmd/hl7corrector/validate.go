package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gohl7/corrector/hl7msg"
)

var validateCmd = &cobra.Command{
	Use:   "validate [flags] <file>...",
	Short: "Validate messages without correcting them",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	client, err := cfg.client()
	if err != nil {
		return err
	}

	failures := 0
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		normalized, _ := hl7msg.Normalize(data)

		report, err := client.Validate(cmd.Context(), filepath.Base(path), normalized)
		if err != nil {
			return fmt.Errorf("validation of %s failed: %w", path, err)
		}

		fmt.Printf("%s: %s (%d error(s), %d warning(s))\n", path, report.Result, report.Errors, report.Warnings)
		for _, d := range report.Diagnostics {
			fmt.Printf("  [%s/%s] %s: %s\n", d.Severity, d.Priority, d.Location, d.Description)
		}
		if report.Permalink != "" {
			fmt.Printf("  report: %s\n", report.Permalink)
		}
		if !report.Passed() {
			failures++
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d message(s) did not pass", failures, len(args))
	}
	return nil
}
