// Command ctltool decodes and verifies Windows Certificate Trust Lists.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build-time variables (injected by GoReleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags
var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ctltool",
	Short: "Inspect and verify Windows Certificate Trust Lists (.stl)",
	Long: `ctltool decodes the signed trust lists Windows uses to distribute its
root program (authroot.stl) and disallowed-certificate list
(disallowedcert.stl), and verifies their embedded signatures.

Verification checks cryptographic consistency against the certificates
embedded in the list itself; it never consults the OS trust store.

Examples:
  # Dump a trust list as text
  ctltool dump authroot.stl

  # Dump as JSON
  ctltool dump --format json authroot.stl

  # One line per entry
  ctltool entries authroot.stl

  # Verify all signers
  ctltool verify authroot.stl`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to a YAML file with decode limits (max_entries, max_depth, entry_errors)")

	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(entriesCmd)
	rootCmd.AddCommand(verifyCmd)
}
