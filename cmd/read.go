package cmd

import (
	"obdkit/internal/cmd/read"

	"github.com/spf13/cobra"
)

var readCmd = &cobra.Command{
	Use:   "read <pid>...",
	Short: "Read PIDs once, or repeatedly with --count",
	Args:  cobra.MinimumNArgs(1),
	Run:   read.Run,
}

func init() {
	readCmd.Flags().Int("count", 1, "Number of reads, 0 for no limit")
	rootCmd.AddCommand(readCmd)
}
