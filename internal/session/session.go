package session

import (
	"context"
	"fmt"
	"io"

	"obdkit/internal/config"
	"obdkit/internal/obd"
	"obdkit/internal/obd/i2c"
	"obdkit/internal/obd/mock"
	"obdkit/internal/obd/serial"
	"obdkit/pkg/log"

	"go.uber.org/zap"
)

// Session ties an engine to the transport selected by the configuration.
type Session struct {
	Engine *obd.Engine
	// Transport is the serial link; nil on an I2C session.
	Transport *serial.Transport
	// I2C is the bus transport; nil on a serial session.
	I2C *i2c.Transport

	protocol obd.Protocol
	device   string
	adapter  *mock.Adapter
	bus      io.Closer
	query    i2c.QuerySet
}

// Open builds the transport and engine without talking to the adapter.
func Open(cfg config.Config) (*Session, error) {
	s := &Session{protocol: cfg.BusProtocol()}
	var t obd.Transport
	switch {
	case cfg.Mock:
		s.adapter = mock.New()
		s.Transport = serial.NewTransport(s.adapter)
		s.device = "mock"
		t = s.Transport
		log.Info("using simulated adapter")
	case cfg.I2C != "":
		pids, err := cfg.PIDList()
		if err != nil {
			return nil, err
		}
		bus, err := i2c.OpenBus(cfg.I2C)
		if err != nil {
			return nil, err
		}
		s.bus = bus
		s.I2C = i2c.New(bus)
		s.device = cfg.I2C
		t = s.I2C
		for _, pid := range pids {
			if !obd.IsPseudoPID(pid) {
				s.query.Add(pid)
			}
		}
		log.Info("i2c bus open", zap.String("device", cfg.I2C))
	default:
		tr, err := serial.Open(serial.Config{Device: cfg.Port, Baud: cfg.Baud})
		if err != nil {
			return nil, err
		}
		s.Transport = tr
		s.device = tr.Device()
		t = tr
		log.Info("serial port open", zap.String("device", tr.Device()), zap.Int("baud", cfg.Baud))
	}

	var opts []obd.Option
	if cfg.LegacyMonitor {
		opts = append(opts, obd.WithLegacyMonitorStatus())
	}
	s.Engine = obd.New(t, opts...)
	return s, nil
}

// Connect reads the adapter version and runs the full handshake. On I2C the
// configured PIDs are then handed to the adapter's own sampler.
func (s *Session) Connect() error {
	s.Engine.Begin()
	if err := s.Engine.Init(s.protocol); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	log.Debug("adapter ready",
		zap.Int("version", s.Engine.Version()),
		zap.Stringer("protocol", s.protocol),
		zap.Int("supported", len(s.Engine.PIDMap().Supported())))

	if s.I2C != nil && s.query.Len() > 0 {
		if err := s.I2C.ApplyQueryPIDs(&s.query); err != nil {
			return fmt.Errorf("apply query set: %w", err)
		}
	}
	return nil
}

// Sample is one value held by the adapter's own sampler.
type Sample struct {
	PID   byte
	Age   uint16
	Value int16
}

// QueryData returns the adapter side samples of an I2C session.
func (s *Session) QueryData() ([]Sample, error) {
	if s.I2C == nil {
		return nil, obd.ErrUnsupported
	}
	data, err := s.I2C.LoadQueryData()
	if err != nil {
		return nil, err
	}
	pids := s.query.PIDs()
	out := make([]Sample, len(pids))
	for i, pid := range pids {
		out[i] = Sample{PID: pid, Age: data[i].Age, Value: data[i].Value}
	}
	return out, nil
}

// Simulate lets the simulated vehicle's values drift until ctx ends. It
// does nothing on a real adapter.
func (s *Session) Simulate(ctx context.Context) {
	if s.adapter != nil {
		s.adapter.Start(ctx)
	}
}

// Protocol returns the configured bus protocol.
func (s *Session) Protocol() obd.Protocol {
	return s.protocol
}

// Device names the port or bus in use.
func (s *Session) Device() string {
	return s.device
}

// Close stops the simulator, if any, and releases the port.
func (s *Session) Close() error {
	if s.adapter != nil {
		s.adapter.Stop()
	}
	err := s.Engine.End()
	if s.bus != nil {
		if cerr := s.bus.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Dial opens the session and connects to the adapter.
func Dial(cfg config.Config) (*Session, error) {
	s, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := s.Connect(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
