package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ctlkit/ctlkit/internal/cli"
)

var entriesCmd = &cobra.Command{
	Use:   "entries [file]",
	Short: "List trust entries, one per line",
	Long: `Print one line per trust entry: the hex subject identifier followed by
the friendly name, when present.`,
	Args: cobra.ExactArgs(1),
	RunE: runEntries,
}

func runEntries(cmd *cobra.Command, args []string) error {
	c, err := decodeFile(args[0])
	if err != nil {
		return err
	}
	cli.RenderEntries(os.Stdout, c.TrustList)
	return nil
}
