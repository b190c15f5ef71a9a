// Package main implements the hl7corrector CLI.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "hl7corrector",
	Short: "Correct HL7 v2.xml messages against a Gazelle validation service",
	Long: `hl7corrector submits HL7 v2.xml interchange messages to an external
Gazelle validation service, corrects the defects the validator reports,
and revalidates until the message passes or no progress can be made.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.Version = version

	rootCmd.AddCommand(fixCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(tablesCmd)
	rootCmd.AddCommand(typesCmd)

	rootCmd.PersistentFlags().String("config", "", "path to a TOML configuration file")
	rootCmd.PersistentFlags().String("base-url", "", "EVS base URL")
	rootCmd.PersistentFlags().String("api-key", "", "Gazelle API key (overrides HL7CORRECTOR_API_KEY)")
	rootCmd.PersistentFlags().Bool("verbose", false, "log progress at debug level")

	cobra.OnInitialize(func() {
		logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: false})
		if verbose, _ := rootCmd.PersistentFlags().GetBool("verbose"); verbose {
			logrus.SetLevel(logrus.DebugLevel)
		} else {
			logrus.SetLevel(logrus.WarnLevel)
		}
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
