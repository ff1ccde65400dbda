// Package i2c drives the adapter over an I2C bus. Text commands travel
// behind a binary command block, and replies are polled in fixed size
// chunks ended by a NUL byte.
package i2c

import (
	"encoding/binary"
	"fmt"
	"time"

	"obdkit/internal/obd"
	"obdkit/pkg/log"

	"go.uber.org/zap"
	"tinygo.org/x/drivers"
)

const (
	// Address is the adapter's 7-bit bus address.
	Address = 0x62

	// MaxPayloadSize is the size of one bus read.
	MaxPayloadSize = 32

	// MaxPIDs is the capacity of the adapter's query set.
	MaxPIDs = 8

	// replies whose first byte is below notReady are not available yet
	notReady = 0x0A

	commandBlockSize = 6
)

// Command is a command block code.
type Command byte

const (
	CmdQueryStatus   Command = 0x10
	CmdSendATCommand Command = 0x11
	CmdApplyOBDPIDs  Command = 0x12
	CmdLoadOBDData   Command = 0x13
)

// CommandBlock heads every write to the adapter.
type CommandBlock struct {
	Time uint32 // milliseconds since the transport was created
	Cmd  Command
	Data byte
}

// AppendTo encodes the block little endian, as the adapter firmware lays it
// out in memory.
func (b CommandBlock) AppendTo(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, b.Time)
	return append(dst, byte(b.Cmd), b.Data)
}

// Transport talks to the adapter over an I2C bus.
type Transport struct {
	bus   drivers.I2C
	addr  uint16
	clock obd.Clock
	epoch time.Time

	// IdleFunc runs while the adapter has no data ready.
	IdleFunc func()
	// Delay pauses after the adapter is asked to apply a new query set.
	Delay func(time.Duration)

	tx    [commandBlockSize + obd.FrameSize]byte
	chunk [MaxPayloadSize]byte
}

// New creates a transport on bus using the system clock.
func New(bus drivers.I2C) *Transport {
	return NewWithClock(bus, obd.SystemClock{})
}

// NewWithClock creates a transport on bus reading time from clock.
func NewWithClock(bus drivers.I2C, clock obd.Clock) *Transport {
	return &Transport{
		bus:      bus,
		addr:     Address,
		clock:    clock,
		epoch:    clock.Now(),
		IdleFunc: obd.DefaultIdle,
		Delay:    time.Sleep,
	}
}

func (t *Transport) millis() uint32 {
	return uint32(t.clock.Now().Sub(t.epoch).Milliseconds())
}

// SendCommandBlock writes a command block followed by payload in a single
// bus transaction.
func (t *Transport) SendCommandBlock(cmd Command, data byte, payload []byte) error {
	if len(payload) > len(t.tx)-commandBlockSize {
		return fmt.Errorf("payload of %d bytes exceeds %d", len(payload), len(t.tx)-commandBlockSize)
	}
	w := CommandBlock{Time: t.millis(), Cmd: cmd, Data: data}.AppendTo(t.tx[:0])
	w = append(w, payload...)
	if err := t.bus.Tx(t.addr, w, nil); err != nil {
		return fmt.Errorf("i2c write command %#02x: %w", byte(cmd), err)
	}
	return nil
}

// Write sends a text command to the adapter's command interpreter.
func (t *Transport) Write(p []byte) error {
	return t.SendCommandBlock(CmdSendATCommand, 0, p)
}

// Idle runs the idle callback.
func (t *Transport) Idle() {
	if t.IdleFunc != nil {
		t.IdleFunc()
	}
}

// Sequential reports that the bus carries one request at a time.
func (t *Transport) Sequential() bool {
	return true
}

// Receive polls the adapter until a NUL terminated reply is complete. It
// returns 0 when the reply does not complete before the timeout.
func (t *Transport) Receive(buf []byte, timeout time.Duration) int {
	start := t.clock.Now()
	offset := 0
	dots := 0
	limit := len(buf) - 1

	for {
		if err := t.bus.Tx(t.addr, nil, t.chunk[:]); err != nil {
			log.Debug("i2c read failed", zap.Error(err))
			t.Idle()
		} else if offset == 0 && t.chunk[0] < notReady {
			t.Idle()
		} else {
			for _, c := range t.chunk {
				if c == '.' {
					dots++
				} else {
					dots = 0
				}
				if dots == 3 {
					offset = 0
					dots = 0
					timeout = obd.TimeoutLong
					start = t.clock.Now()
					continue
				}
				if c == 0 || (buf != nil && offset >= limit) {
					// rest of the chunk is discarded
					terminate(buf, offset)
					return offset
				}
				if buf != nil {
					buf[offset] = c
				}
				offset++
			}
		}
		if t.clock.Now().Sub(start) >= timeout {
			break
		}
	}
	terminate(buf, 0)
	return 0
}

func terminate(buf []byte, n int) {
	if n < len(buf) {
		buf[n] = 0
	}
}

// ApplyQueryPIDs tells the adapter which PIDs to sample continuously.
func (t *Transport) ApplyQueryPIDs(set *QuerySet) error {
	if err := t.SendCommandBlock(CmdApplyOBDPIDs, 0, set.pids[:]); err != nil {
		return err
	}
	t.Delay(200 * time.Millisecond)
	return nil
}

// PIDInfo is the latest sample the adapter holds for one query set entry.
type PIDInfo struct {
	Age   uint16 // milliseconds since the sample was taken
	Value int16
}

const pidInfoSize = 4

// LoadQueryData reads the samples for the whole query set in one
// transaction. Entries follow the order of the applied set.
func (t *Transport) LoadQueryData() ([MaxPIDs]PIDInfo, error) {
	var out [MaxPIDs]PIDInfo
	if err := t.SendCommandBlock(CmdLoadOBDData, 0, nil); err != nil {
		return out, err
	}
	t.Idle()
	if err := t.bus.Tx(t.addr, nil, t.chunk[:]); err != nil {
		return out, fmt.Errorf("i2c read query data: %w", err)
	}
	for i := range out {
		rec := t.chunk[i*pidInfoSize:]
		out[i] = PIDInfo{
			Age:   binary.LittleEndian.Uint16(rec),
			Value: int16(binary.LittleEndian.Uint16(rec[2:])),
		}
	}
	return out, nil
}
