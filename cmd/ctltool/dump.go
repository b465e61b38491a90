package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ctlkit/ctlkit/internal/cli"
)

var dumpFormat string

var dumpCmd = &cobra.Command{
	Use:   "dump [file]",
	Short: "Decode a trust list and print its contents",
	Long: `Decode a trust list file and print the envelope header, every trust
entry and its attributes.

Examples:
  # Human-readable dump
  ctltool dump authroot.stl

  # Machine-readable dump
  ctltool dump --format json disallowedcert.stl`,
	Args: cobra.ExactArgs(1),
	RunE: runDump,
}

func init() {
	dumpCmd.Flags().StringVar(&dumpFormat, "format", "text", "Output format: text or json")
}

func runDump(cmd *cobra.Command, args []string) error {
	c, err := decodeFile(args[0])
	if err != nil {
		return err
	}

	switch dumpFormat {
	case "text":
		return cli.RenderText(os.Stdout, c)
	case "json":
		return cli.RenderJSON(os.Stdout, c)
	default:
		return fmt.Errorf("unknown format %q: want text or json", dumpFormat)
	}
}
