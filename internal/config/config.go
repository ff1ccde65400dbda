package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"obdkit/internal/obd"

	"github.com/spf13/viper"
)

// Config is the merged view of flags, environment and config file.
type Config struct {
	Debug         bool          `mapstructure:"debug"`
	NoTUI         bool          `mapstructure:"no-tui"`
	Mock          bool          `mapstructure:"mock"`
	Port          string        `mapstructure:"port"`
	I2C           string        `mapstructure:"i2c"`
	Baud          int           `mapstructure:"baud"`
	Protocol      int           `mapstructure:"protocol"`
	LegacyMonitor bool          `mapstructure:"legacy-monitor"`
	Interval      time.Duration `mapstructure:"interval"`
	PIDs          []string      `mapstructure:"pids"`
	MQTT          MQTT          `mapstructure:"mqtt"`
}

type MQTT struct {
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client-id"`
	Topic    string `mapstructure:"topic"`
	QoS      byte   `mapstructure:"qos"`
}

// SetDefaults registers the default values with viper.
func SetDefaults() {
	viper.SetDefault("debug", false)
	viper.SetDefault("no-tui", false)
	viper.SetDefault("mock", false)
	viper.SetDefault("port", "")
	viper.SetDefault("i2c", "")
	viper.SetDefault("baud", 38400)
	viper.SetDefault("protocol", 0)
	viper.SetDefault("legacy-monitor", false)
	viper.SetDefault("interval", time.Second)
	viper.SetDefault("pids", []string{"0C", "05", "0D"})
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.client-id", "obdkit")
	viper.SetDefault("mqtt.topic", "obdkit")
	viper.SetDefault("mqtt.qos", 0)
}

// ReadFile loads an optional config file. An empty path searches for
// obdkit.yaml in the working directory and the user's config directory.
func ReadFile(path string) error {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("obdkit")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/obdkit")
	}
	viper.SetEnvPrefix("OBDKIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && path == "" {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load unmarshals the current viper state.
func Load() (Config, error) {
	var c Config
	if err := viper.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decode config: %w", err)
	}
	if c.Protocol < 0 || c.Protocol > int(obd.ProtocolSAEJ1939) {
		return c, fmt.Errorf("protocol %d out of range", c.Protocol)
	}
	return c, nil
}

// BusProtocol returns the configured protocol.
func (c Config) BusProtocol() obd.Protocol {
	return obd.Protocol(c.Protocol)
}

// PIDList parses the configured PIDs.
func (c Config) PIDList() ([]byte, error) {
	return ParsePIDs(c.PIDs)
}

// ParsePIDs parses hexadecimal PIDs such as "0C", "0x0c" or "010C". A four
// digit form carries the mode, which is dropped.
func ParsePIDs(args []string) ([]byte, error) {
	var pids []byte
	for _, arg := range args {
		for _, f := range strings.FieldsFunc(arg, func(r rune) bool { return r == ',' || r == ' ' }) {
			s := strings.TrimPrefix(strings.ToLower(f), "0x")
			if len(s) == 4 {
				s = s[2:]
			}
			v, err := strconv.ParseUint(s, 16, 8)
			if err != nil {
				return nil, fmt.Errorf("invalid pid %q", f)
			}
			pids = append(pids, byte(v))
		}
	}
	return pids, nil
}
