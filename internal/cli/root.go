package cli

import (
	"os"

	"github.com/BioHazard786/huddle/internal/ui"
	"github.com/BioHazard786/huddle/internal/version"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "huddle",
	Short:   "Peer-to-peer group voice calls over WebRTC",
	Long:    `Huddle joins a named room on a relay server and opens a direct WebRTC audio link to every other participant in it. The relay only introduces peers and forwards their negotiation messages; audio never passes through it.`,
	Version: version.Version,
}

// Execute runs the root command. It is called once by main.main().
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
