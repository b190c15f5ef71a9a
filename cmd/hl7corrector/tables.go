package main

import (
	"fmt"

	"github.com/spf13/cobra"

	hc "github.com/gohl7/corrector"
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List the loaded code tables",
	Args:  cobra.NoArgs,
	RunE:  runTables,
}

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List the supported message types",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		for _, mt := range hc.MessageTypes() {
			fmt.Printf("%-8s %-8s %s\n", mt, mt.Root(), mt.Description())
		}
		return nil
	},
}

func init() {
	tablesCmd.Flags().Bool("codes", false, "list the codes of each table")
}

func runTables(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	showCodes, _ := cmd.Flags().GetBool("codes")

	registry := cfg.registry()
	for _, id := range registry.TableIDs() {
		table := registry.Table(id)
		fmt.Printf("%s: %s (%d codes)\n", id, table.Name, table.Len())
		if showCodes {
			for _, code := range table.Codes() {
				fmt.Printf("  %s\n", code)
			}
		}
	}
	return nil
}
