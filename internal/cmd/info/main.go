package info

import (
	"fmt"
	"io"
	"os"

	"obdkit/internal/config"
	"obdkit/internal/models"
	"obdkit/internal/obd"
	"obdkit/internal/session"
	"obdkit/pkg/log"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Report is the adapter and vehicle summary printed by the info command.
type Report struct {
	Adapter Adapter           `yaml:"adapter"`
	Vehicle Vehicle           `yaml:"vehicle"`
	PIDs    []SupportedPID    `yaml:"supported_pids"`
	DTCs    []models.DTCEntry `yaml:"dtcs"`
	Sampler []Sample          `yaml:"sampler,omitempty"`
}

// Sample is a value from the adapter's own sampler, I2C only.
type Sample struct {
	PID       string `yaml:"pid"`
	AgeMillis uint16 `yaml:"age_ms"`
	Value     int16  `yaml:"value"`
}

type Adapter struct {
	Device      string   `yaml:"device,omitempty"`
	Version     string   `yaml:"version"`
	Protocol    string   `yaml:"protocol"`
	Voltage     *float64 `yaml:"voltage,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty"`
	Errors      int      `yaml:"errors"`
}

type Vehicle struct {
	VIN string `yaml:"vin,omitempty"`
	MIL bool   `yaml:"mil"`
}

type SupportedPID struct {
	PID  string `yaml:"pid"`
	Name string `yaml:"name"`
	Unit string `yaml:"unit,omitempty"`
}

func Run(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	s, err := session.Dial(cfg)
	if err != nil {
		log.Fatal("failed to connect", zap.Error(err))
	}
	defer s.Close()

	r := collect(s.Engine, s.Protocol())
	r.Adapter.Device = s.Device()
	if samples, err := s.QueryData(); err == nil {
		for _, q := range samples {
			r.Sampler = append(r.Sampler, Sample{PID: fmt.Sprintf("%02X", q.PID), AgeMillis: q.Age, Value: q.Value})
		}
	}
	if err := write(os.Stdout, r); err != nil {
		log.Fatal("failed to write report", zap.Error(err))
	}
}

// collect queries everything the report needs. Optional values that the
// adapter does not answer are left out.
func collect(e *obd.Engine, protocol obd.Protocol) Report {
	var r Report
	v := e.Version()
	r.Adapter.Version = fmt.Sprintf("%d.%d", v/10, v%10)
	r.Adapter.Protocol = protocol.String()

	if volts, err := e.Voltage(); err == nil {
		r.Adapter.Voltage = &volts
	} else {
		log.Debug("voltage unavailable", zap.Error(err))
	}
	if temp, err := e.Temperature(); err == nil {
		r.Adapter.Temperature = &temp
	} else {
		log.Debug("temperature unavailable", zap.Error(err))
	}

	if vin, err := e.VIN(); err == nil {
		r.Vehicle.VIN = vin
	} else {
		log.Debug("VIN unavailable", zap.Error(err))
	}
	if mil, err := e.IsMILOn(); err == nil {
		r.Vehicle.MIL = mil
	}

	for _, pid := range e.PIDMap().Supported() {
		info := obd.Lookup(pid)
		r.PIDs = append(r.PIDs, SupportedPID{PID: fmt.Sprintf("%02X", pid), Name: info.Name, Unit: info.Unit})
	}

	codes, err := e.ReadDTC()
	if err != nil {
		log.Warn("failed to read trouble codes", zap.Error(err))
	}
	r.DTCs = codes
	if r.DTCs == nil {
		r.DTCs = []models.DTCEntry{}
	}
	r.Adapter.Errors = e.Errors()
	return r
}

func write(w io.Writer, r Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}
