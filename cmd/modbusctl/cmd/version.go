// cmd/modbusctl/cmd/version.go
package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if outputFormat == "json" {
			_ = outputJSON(map[string]string{"version": Version, "go": runtime.Version()})
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "modbusctl %s (%s)\n", Version, runtime.Version())
	},
}
