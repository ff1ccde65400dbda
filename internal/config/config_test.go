package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"obdkit/internal/obd"

	"github.com/spf13/viper"
)

func TestParsePIDs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    []byte
		wantErr bool
	}{
		{"plain", []string{"0C", "05"}, []byte{0x0C, 0x05}, false},
		{"prefixed", []string{"0x0d"}, []byte{0x0D}, false},
		{"with mode", []string{"010C"}, []byte{0x0C}, false},
		{"comma list", []string{"0C,0D, 42"}, []byte{0x0C, 0x0D, 0x42}, false},
		{"empty", nil, nil, false},
		{"not hex", []string{"ZZ"}, nil, true},
		{"too wide", []string{"123"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePIDs(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got % X, want % X", got, tt.want)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	SetDefaults()

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Baud != 38400 {
		t.Errorf("baud = %d, want 38400", c.Baud)
	}
	if c.Interval != time.Second {
		t.Errorf("interval = %v, want 1s", c.Interval)
	}
	if c.BusProtocol() != obd.ProtocolAuto {
		t.Errorf("protocol = %v, want auto", c.BusProtocol())
	}
	pids, err := c.PIDList()
	if err != nil {
		t.Fatalf("PIDList: %v", err)
	}
	if !reflect.DeepEqual(pids, []byte{0x0C, 0x05, 0x0D}) {
		t.Errorf("pids = % X", pids)
	}
	if c.MQTT.Topic != "obdkit" {
		t.Errorf("mqtt topic = %q", c.MQTT.Topic)
	}
}

func TestLoadFile(t *testing.T) {
	viper.Reset()
	SetDefaults()

	path := filepath.Join(t.TempDir(), "obdkit.yaml")
	data := []byte("port: /dev/ttyUSB1\nprotocol: 6\ninterval: 250ms\nlegacy-monitor: true\nmqtt:\n  broker: tcp://broker:1883\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := ReadFile(path); err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Port != "/dev/ttyUSB1" {
		t.Errorf("port = %q", c.Port)
	}
	if c.BusProtocol() != obd.ProtocolISO15765_11 {
		t.Errorf("protocol = %v", c.BusProtocol())
	}
	if c.Interval != 250*time.Millisecond {
		t.Errorf("interval = %v", c.Interval)
	}
	if !c.LegacyMonitor {
		t.Error("legacy-monitor not set")
	}
	if c.MQTT.Broker != "tcp://broker:1883" || c.MQTT.ClientID != "obdkit" {
		t.Errorf("mqtt = %+v", c.MQTT)
	}
}

func TestReadFileMissingExplicitPath(t *testing.T) {
	viper.Reset()
	if err := ReadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for a missing config file")
	}
}

func TestLoadRejectsProtocol(t *testing.T) {
	viper.Reset()
	SetDefaults()
	viper.Set("protocol", 0x0B)
	if _, err := Load(); err == nil {
		t.Error("expected error for protocol 0B")
	}
}
