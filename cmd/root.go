// Package cmd implements the ipreporter command line using cobra.
package cmd

import (
	"github.com/spf13/cobra"
)

// options holds flag values; zero values leave the configuration untouched.
type options struct {
	configFile string
	iface      string
	replay     string
	dump       string
	export     string
	logLevel   string
	headless   bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "ipreporter",
		Short: "Report devices announcing their address on the local network",
		Long: `ipreporter listens for the UDP broadcast (255.255.255.255, port 14236 -> 14235)
that freshly booted devices send, and lists each sender's IPv4 and MAC address.

By default it runs an interactive terminal UI: press s to start or stop listening,
e to export the collected records, enter to open the selected device's web page.
With --headless it starts listening immediately, prints each record as it arrives
and exports everything on exit.`,
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	flags := root.Flags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "config file path")
	flags.StringVarP(&opts.iface, "interface", "i", "", "network interface to listen on (default: first non-loopback device)")
	flags.StringVar(&opts.replay, "replay", "", "read frames from a pcap file instead of a live interface")
	flags.StringVar(&opts.dump, "dump", "", "write matched frames to this pcap file")
	flags.StringVarP(&opts.export, "output", "o", "", "export file path (.txt or .html)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	flags.BoolVar(&opts.headless, "headless", false, "run without the terminal UI")

	root.AddCommand(newDevicesCmd())
	return root
}

// Execute runs the root command. It is called by main.main().
func Execute() error {
	return newRootCmd().Execute()
}
