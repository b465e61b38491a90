package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/ctlkit/ctlkit/internal/cli"
	"github.com/ctlkit/ctlkit/pkg/cms"
)

var verifySigner int

var verifyCmd = &cobra.Command{
	Use:   "verify [file]",
	Short: "Verify the signatures embedded in a trust list",
	Long: `Decode a trust list and verify its signature(s) against the certificates
embedded in the envelope. No OS trust store is consulted and no chain is
built: this checks that the list is internally consistent, nothing more.

Exit codes: 0 all checked signers verified, 1 a signature failed,
2 a signer used an algorithm this tool cannot check.

Examples:
  # Verify every signer
  ctltool verify authroot.stl

  # Verify only signer 0
  ctltool verify --signer 0 authroot.stl`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().IntVar(&verifySigner, "signer", -1, "Signer index to verify (default: all)")
}

func runVerify(cmd *cobra.Command, args []string) error {
	c, err := decodeFile(args[0])
	if err != nil {
		return err
	}

	var results []cms.VerifyResult
	if verifySigner >= 0 {
		results = []cms.VerifyResult{c.Verify(verifySigner)}
	} else {
		results = c.VerifyAll()
	}

	exit := 0
	for _, r := range results {
		cli.RenderVerifyResult(os.Stdout, r)
		switch {
		case r.OK():
		case r.Err != nil && errors.Is(r.Err, cms.ErrUnsupportedAlgorithm):
			if exit == 0 {
				exit = 2
			}
		default:
			exit = 1
		}
	}
	if exit != 0 {
		cmd.SilenceUsage = true
		os.Exit(exit)
	}
	return nil
}
