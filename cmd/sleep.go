package cmd

import (
	"obdkit/internal/cmd/sleep"

	"github.com/spf13/cobra"
)

var sleepCmd = &cobra.Command{
	Use:   "sleep",
	Short: "Put the adapter into low power mode",
	Args:  cobra.NoArgs,
	Run:   sleep.Run,
}

func init() {
	rootCmd.AddCommand(sleepCmd)
}
