package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgsd/pgsd/internal/version"
)

var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  "Display the version number of pgsd",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pgsd v%s@%s %s %s\n", version.Version(), version.GetGitCommit(), version.Platform(), version.GetBuildDate())
	},
}
