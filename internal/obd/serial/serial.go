package serial

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"obdkit/internal/obd"
	"obdkit/pkg/log"

	"github.com/tarm/serial"
	bugst "go.bug.st/serial"
	"go.uber.org/zap"
)

const (
	// DefaultBaud is the factory baud rate of the adapter.
	DefaultBaud = 38400

	// DefaultReadTimeout bounds a single read of the port.
	DefaultReadTimeout = 100 * time.Millisecond
)

// Config describes a serial port.
type Config struct {
	Device      string
	Baud        int
	ReadTimeout time.Duration
}

// Rebauder is implemented by ports that can change baud rate in place.
type Rebauder interface {
	SetBaud(baud int) error
}

// Transport frames adapter replies from a serial port.
type Transport struct {
	*obd.Framer

	cfg  Config
	port io.ReadWriteCloser
	one  [1]byte
}

// Open opens the configured device and returns a transport on it.
func Open(cfg Config) (*Transport, error) {
	if cfg.Baud == 0 {
		cfg.Baud = DefaultBaud
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Device == "" {
		dev, err := DetectPort()
		if err != nil {
			return nil, err
		}
		cfg.Device = dev
	}

	p, err := openPort(cfg)
	if err != nil {
		return nil, err
	}
	t := NewTransport(p)
	t.cfg = cfg
	return t, nil
}

// NewTransport wraps an already open port.
func NewTransport(port io.ReadWriteCloser) *Transport {
	t := &Transport{port: port}
	t.Framer = obd.NewFramer(t)
	return t
}

func openPort(cfg Config) (io.ReadWriteCloser, error) {
	sc := &serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
	}

	var p *serial.Port
	var err error
	maxRetries := 3
	for i := 0; i < maxRetries; i++ {
		p, err = serial.OpenPort(sc)
		if err == nil {
			break
		}
		log.Warn("Failed to open port, retrying...", zap.Error(err), zap.Int("attempt", i+1))
		time.Sleep(time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open port %s after %d attempts: %w", cfg.Device, maxRetries, err)
	}

	log.Info("[Serial] Port opened", zap.String("port", cfg.Device), zap.Int("baud", cfg.Baud))
	return p, nil
}

// TryReadByte returns the next received byte, if any.
func (t *Transport) TryReadByte() (byte, bool) {
	n, err := t.port.Read(t.one[:])
	if err != nil && !errors.Is(err, io.EOF) {
		log.Debug("Read error", zap.Error(err))
	}
	if n == 0 {
		return 0, false
	}
	return t.one[0], true
}

// Write sends a command, retrying short or failed writes.
func (t *Transport) Write(p []byte) error {
	maxRetries := 3
	var writeErr error
	for i := 0; i < maxRetries; i++ {
		n, err := t.port.Write(p)
		if err != nil {
			writeErr = err
			log.Warn("Write failed, retrying...", zap.ByteString("command", p), zap.Error(err), zap.Int("attempt", i+1))
			continue
		}
		if n != len(p) {
			writeErr = fmt.Errorf("incomplete write: %d/%d bytes", n, len(p))
			p = p[n:]
			continue
		}
		return nil
	}
	return fmt.Errorf("[Serial] writing %q: %w", p, writeErr)
}

// SetBaud reopens the port at baud.
func (t *Transport) SetBaud(baud int) error {
	if r, ok := t.port.(Rebauder); ok {
		return r.SetBaud(baud)
	}
	if t.cfg.Device == "" {
		return obd.ErrUnsupported
	}
	if err := t.port.Close(); err != nil {
		log.Warn("Failed to close port before baud change", zap.Error(err))
	}
	t.cfg.Baud = baud
	p, err := openPort(t.cfg)
	if err != nil {
		return err
	}
	t.port = p
	return nil
}

// Close releases the port.
func (t *Transport) Close() error {
	return t.port.Close()
}

// Device returns the path of the opened device.
func (t *Transport) Device() string {
	return t.cfg.Device
}

var preferredPorts = []string{"/dev/rfcomm", "/dev/ttyUSB", "/dev/ttyACM", "/dev/tty.usbserial", "/dev/cu.usbserial", "COM"}

// DetectPort picks the most likely adapter among the system's serial ports.
func DetectPort() (string, error) {
	ports, err := bugst.GetPortsList()
	if err != nil {
		return "", fmt.Errorf("listing serial ports: %w", err)
	}
	if name := pickPort(ports); name != "" {
		log.Debug("Detected serial port", zap.String("port", name), zap.Strings("candidates", ports))
		return name, nil
	}
	return "", errors.New("no serial port found")
}

func pickPort(ports []string) string {
	for _, prefix := range preferredPorts {
		for _, p := range ports {
			if strings.HasPrefix(p, prefix) {
				return p
			}
		}
	}
	return ""
}
