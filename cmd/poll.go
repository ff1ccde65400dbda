package cmd

import (
	"obdkit/internal/cmd/poll"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Poll the adapter and publish readings over MQTT",
	Args:  cobra.NoArgs,
	Run:   poll.Run,
}

func init() {
	pollCmd.Flags().String("broker", "", "MQTT broker URL")
	pollCmd.Flags().String("topic", "", "MQTT topic prefix")
	viper.BindPFlag("mqtt.broker", pollCmd.Flags().Lookup("broker"))
	viper.BindPFlag("mqtt.topic", pollCmd.Flags().Lookup("topic"))
	rootCmd.AddCommand(pollCmd)
}
