package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/segmentation/version"
)

var versionFlags struct {
	full bool
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		if versionFlags.full {
			fmt.Fprintln(cmd.OutOrStdout(), version.GetFullVersion())
			return
		}
		fmt.Fprintln(cmd.OutOrStdout(), version.GetShortVersion())
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionFlags.full, "full", false, "include branch and build date")
}
