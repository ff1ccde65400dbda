package cmd

import (
	"obdkit/internal/cmd/baud"

	"github.com/spf13/cobra"
)

var baudCmd = &cobra.Command{
	Use:   "set-baud <rate>",
	Short: "Switch the adapter and the serial port to a new baud rate",
	Args:  cobra.ExactArgs(1),
	Run:   baud.Run,
}

func init() {
	rootCmd.AddCommand(baudCmd)
}
