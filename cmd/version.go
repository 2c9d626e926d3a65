package cmd

import (
	"fmt"

	"github.com/kayz/formforge/internal/mcpserver"
	"github.com/spf13/cobra"
)

var build = "unknown"

// SetBuild sets the build string from main
func SetBuild(b string) {
	build = b
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("formforge %s (%s)\n", mcpserver.ServerVersion, build)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
