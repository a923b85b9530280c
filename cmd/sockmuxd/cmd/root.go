package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const Version = "0.3.1"

var (
	// RootCmd represents the base command when called without any subcommands.
	RootCmd = &cobra.Command{
		Use:   "sockmuxd",
		Short: "channel-multiplexed message transport daemon",
		Long: fmt.Sprintf(`sockmuxd (v%s)

An event-driven message transport: one TCP listener, few sockets, many
logical sessions per socket. Peers frame messages with a compact binary
header carrying a channel id; the daemon demultiplexes channels into
client sessions and dispatches them on a single-threaded event loop.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of sockmuxd",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sockmuxd v%s\n", Version)
		},
	}
)

func init() {
	RootCmd.AddCommand(serveCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called once by main.main().
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
