package cmd

import (
	"obdkit/internal/cmd/cleardtc"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear-dtc",
	Short: "Clear stored diagnostic trouble codes",
	Args:  cobra.NoArgs,
	Run:   cleardtc.Run,
}

func init() {
	rootCmd.AddCommand(clearCmd)
}
