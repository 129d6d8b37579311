package cmd

import (
	"fmt"
	"strings"

	"ipreporter/internal/capture/live"

	"github.com/spf13/cobra"
)

var (
	listDevices   = live.ListDevices
	defaultDevice = live.DefaultDevice
)

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List network interfaces available for capture",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			devs, err := listDevices()
			if err != nil {
				return err
			}

			// The default is informational only; a host without one can still list devices.
			def, _ := defaultDevice()

			out := cmd.OutOrStdout()
			for _, d := range devs {
				marker := " "
				if d.Name == def {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %-16s %-32s %s\n", marker, d.Name, d.Description, strings.Join(d.Addresses, ", "))
			}
			if len(devs) == 0 {
				fmt.Fprintln(out, "No devices found.")
			}
			return nil
		},
	}
}
