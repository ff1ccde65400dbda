package mock

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"obdkit/internal/models"
	"obdkit/internal/obd"
)

// Adapter simulates an OBD-II adapter behind a serial port. Writes are
// parsed as commands and the replies become readable, prompt included.
type Adapter struct {
	mu      sync.Mutex
	running bool
	out     bytes.Buffer
	pending []byte
	baud    int
	closed  bool
	asleep  bool
	// simulated values
	rpm     int
	coolant int
	speed   int
	errors  []models.DTCEntry
	vin     string

	updateTicker *time.Ticker
	stopCh       chan struct{}
}

// New returns an adapter with an idling engine.
func New() *Adapter {
	return &Adapter{
		baud:    38400,
		rpm:     800,
		coolant: 75,
		vin:     "1G1JC5444R7252367",
		errors:  []models.DTCEntry{{Code: "P0133"}},
		stopCh:  make(chan struct{}),
	}
}

// Start begins a random walk of the simulated values.
func (m *Adapter) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.updateTicker = time.NewTicker(1 * time.Second)
	m.running = true
	go func() {
		for {
			select {
			case <-m.updateTicker.C:
				m.step()
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			}
		}
	}()
}

func (m *Adapter) step() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rpm = clamp(m.rpm+rand.Intn(201)-100, 600, 4000)
	m.coolant = clamp(m.coolant+rand.Intn(3)-1, 60, 110)
	m.speed = clamp(m.speed+rand.Intn(11)-5, 0, 130)
	// randomly add/remove an error
	if rand.Float32() < 0.05 {
		m.errors = append(m.errors, models.DTCEntry{Code: fmt.Sprintf("P0%03d", rand.Intn(999))})
	}
	if len(m.errors) > 0 && rand.Float32() < 0.02 {
		m.errors = m.errors[1:]
	}
}

// Stop ends the random walk.
func (m *Adapter) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.updateTicker.Stop()
	close(m.stopCh)
	m.running = false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Read returns pending reply bytes. It never blocks; an empty read means
// the adapter has nothing to say yet.
func (m *Adapter) Read(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.out.Len() == 0 {
		return 0, nil
	}
	return m.out.Read(b)
}

// Write accepts one or more carriage return terminated commands.
func (m *Adapter) Write(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, fmt.Errorf("adapter closed")
	}
	m.pending = append(m.pending, b...)

	var replies []string
	for {
		i := bytes.IndexByte(m.pending, '\r')
		if i < 0 {
			break
		}
		cmd := strings.ToUpper(strings.TrimSpace(string(m.pending[:i])))
		m.pending = m.pending[i+1:]
		if cmd != "" {
			replies = append(replies, m.reply(cmd))
		}
	}
	if len(replies) > 0 {
		m.out.WriteString(strings.Join(replies, ""))
		m.out.WriteString("\r>")
	}
	return len(b), nil
}

// Close marks the adapter closed.
func (m *Adapter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// SetBaud switches the simulated link speed. Anything not yet read is lost
// with the old rate.
func (m *Adapter) SetBaud(baud int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baud = baud
	m.out.Reset()
	return nil
}

// Asleep reports whether low power mode was requested.
func (m *Adapter) Asleep() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asleep
}

// Baud returns the simulated link speed.
func (m *Adapter) Baud() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.baud
}

// supported lists the mode 01 PIDs the simulated vehicle answers.
var supported = []byte{
	obd.PIDMonitor, obd.PIDEngineLoad, obd.PIDCoolantTemp, obd.PIDEngineRPM,
	obd.PIDVehicleSpeed, obd.PIDIntakeTemp, obd.PIDMAFFlow, obd.PIDThrottle,
	obd.PIDRuntime, obd.PIDFuelLevel, obd.PIDDistance, obd.PIDControlModuleVoltage,
	obd.PIDAmbientTemp, obd.PIDEngineOilTemp,
}

func (m *Adapter) reply(cmd string) string {
	switch {
	case cmd == "ATZ":
		return "\rELM327 v1.5\r"
	case cmd == "ATI":
		return "OBDUART v1.0\r"
	case cmd == "ATRV":
		return "12.6V\r"
	case cmd == "ATTEMP":
		// 30 °C once converted
		return "-2212\r"
	case cmd == "ATACL":
		return "3,-5,1024\r"
	case cmd == "ATGYRO":
		return "0,1,-1\r"
	case cmd == "ATLP":
		m.asleep = true
		return "OK\r"
	case strings.HasPrefix(cmd, "ATBR1"):
		return "OK\r"
	case strings.HasPrefix(cmd, "AT"):
		return "OK\r"
	case cmd == "0902":
		return vinReply(m.vin)
	case cmd == "03":
		return m.dtcReply()
	case cmd == "04":
		m.errors = nil
		return "44\r"
	case len(cmd) == 4 && strings.HasPrefix(cmd, "01"):
		pid, err := strconv.ParseUint(cmd[2:], 16, 8)
		if err != nil {
			return "?\r"
		}
		return m.pidReply(byte(pid))
	}
	return "?\r"
}

func (m *Adapter) pidReply(pid byte) string {
	if pid%0x20 == 0 {
		return fmt.Sprintf("41 %02X %s\r", pid, capabilityBytes(pid))
	}
	data, ok := m.encode(pid)
	if !ok {
		return "NO DATA\r"
	}
	return fmt.Sprintf("41 %02X %s\r", pid, data)
}

// capabilityBytes renders the support bitmap for the 32 PIDs after base.
func capabilityBytes(base byte) string {
	var bits uint32
	for _, pid := range supported {
		if pid > base && pid <= base+0x20 {
			bits |= 1 << (31 - uint(pid-base-1))
		}
	}
	return fmt.Sprintf("%02X %02X %02X %02X", byte(bits>>24), byte(bits>>16), byte(bits>>8), byte(bits))
}

func hex1(v int) string { return fmt.Sprintf("%02X", byte(v)) }

func hex2(v int) string { return fmt.Sprintf("%02X %02X", byte(v>>8), byte(v)) }

func (m *Adapter) encode(pid byte) (string, bool) {
	switch pid {
	case obd.PIDMonitor:
		a := len(m.errors)
		if a > 0 {
			a |= 0x80
		}
		return hex1(a) + " 07 65 04", true
	case obd.PIDEngineLoad:
		return hex1((m.rpm - 600) * 255 / 3400 / 2), true
	case obd.PIDCoolantTemp:
		return hex1(m.coolant + 40), true
	case obd.PIDEngineRPM:
		return hex2(m.rpm * 4), true
	case obd.PIDVehicleSpeed:
		return hex1(m.speed), true
	case obd.PIDIntakeTemp, obd.PIDAmbientTemp:
		return hex1(20 + 40), true
	case obd.PIDEngineOilTemp:
		return hex1(m.coolant + 5 + 40), true
	case obd.PIDMAFFlow:
		return hex2(m.rpm / 200 * 100), true
	case obd.PIDThrottle:
		return hex1((m.rpm - 600) * 255 / 3400), true
	case obd.PIDRuntime:
		return hex2(1200), true
	case obd.PIDFuelLevel:
		return hex1(190), true
	case obd.PIDDistance:
		return hex2(4321), true
	case obd.PIDControlModuleVoltage:
		return hex2(14100), true
	}
	return "", false
}

func (m *Adapter) dtcReply() string {
	if len(m.errors) == 0 {
		return "43 00 00 00 00 00 00\r"
	}
	var sb strings.Builder
	for i := 0; i < len(m.errors); i += 3 {
		sb.WriteString("43")
		for j := i; j < i+3; j++ {
			a, b := 0, 0
			if j < len(m.errors) {
				a, b = encodeDTC(m.errors[j].Code)
			}
			fmt.Fprintf(&sb, " %02X %02X", a, b)
		}
		sb.WriteString("\r")
	}
	return sb.String()
}

// encodeDTC packs a code like P0133 into its two byte form.
func encodeDTC(code string) (int, int) {
	if len(code) != 5 {
		return 0, 0
	}
	letter := strings.IndexByte("PCBU", code[0])
	v, err := strconv.ParseUint(code[1:], 16, 16)
	if letter < 0 || err != nil {
		return 0, 0
	}
	a := letter<<6 | int(v>>8)&0x3F
	return a, int(v & 0xFF)
}

// vinReply lays the VIN out the way CAN adapters print multi-frame replies:
// six bytes on the first line, seven on each continuation line.
func vinReply(vin string) string {
	payload := append([]byte{0x01}, vin...)
	var sb strings.Builder
	sb.WriteString("014\r0: 49 02")
	line, col, width := 0, 2, 6
	for _, b := range payload {
		if col == width {
			line++
			col, width = 0, 7
			fmt.Fprintf(&sb, "\r%d:", line)
		}
		fmt.Fprintf(&sb, " %02X", b)
		col++
	}
	sb.WriteString("\r")
	return sb.String()
}
