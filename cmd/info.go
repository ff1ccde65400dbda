package cmd

import (
	"obdkit/internal/cmd/info"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print an adapter and vehicle report as YAML",
	Args:  cobra.NoArgs,
	Run:   info.Run,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
