// Package ctl implements ibcolctl, the operator tool for the portal core:
// file reference inspection, catalog validation, admin tokens and a
// command-line upload client.
package ctl

import (
	"github.com/spf13/cobra"

	"github.com/ibcol/portal/internal/buildinfo"
)

// NewRootCommand builds the ibcolctl command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "ibcolctl",
		Short:         "Operator tool for the IBCOL portal core",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newRefCommand(),
		newI18nCommand(),
		newTokenCommand(),
		newUploadCommand(),
		newVersionCommand(),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			buildinfo.PrintBuildData(cmd.OutOrStdout())
		},
	}
}
