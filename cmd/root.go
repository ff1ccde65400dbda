package cmd

import (
	"fmt"
	"os"

	"obdkit/internal/cmd/root"
	"obdkit/internal/config"
	"obdkit/pkg/log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "obdkit",
	Short: "Talk to OBD-II adapters over serial or I2C",
	Run:   root.Run,
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	rootCmd.PersistentFlags().String("config", "", "Config file (default ./obdkit.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	rootCmd.PersistentFlags().Bool("no-tui", false, "Print a summary instead of the dashboard")
	rootCmd.PersistentFlags().Bool("mock", false, "Use the simulated adapter")
	rootCmd.PersistentFlags().String("port", "", "Serial device (detected when empty)")
	rootCmd.PersistentFlags().String("i2c", "", "I2C bus device, e.g. /dev/i2c-1, instead of a serial port")
	rootCmd.PersistentFlags().Int("baud", 38400, "Baud rate for serial connection")
	rootCmd.PersistentFlags().Int("protocol", 0, "Bus protocol number, 0 for automatic")
	rootCmd.PersistentFlags().Bool("legacy-monitor", false, "Decode the monitor status PID the way older firmware did")
	rootCmd.PersistentFlags().Duration("interval", 0, "Polling interval")
	rootCmd.PersistentFlags().StringSlice("pids", nil, "PIDs to poll, in hex")

	for _, name := range []string{"debug", "no-tui", "mock", "port", "i2c", "baud", "protocol", "legacy-monitor", "interval", "pids"} {
		viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}

	config.SetDefaults()
}

func initConfig() {
	path, _ := rootCmd.PersistentFlags().GetString("config")
	if err := config.ReadFile(path); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initLogger() {
	log.InitLogger(viper.GetBool("debug"))
	if f := viper.ConfigFileUsed(); f != "" {
		log.Debug("config loaded", zap.String("file", f))
	}
}

func Execute() {
	defer log.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
