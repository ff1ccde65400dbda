package obd

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"obdkit/pkg/log"

	"go.uber.org/zap"
)

// State is the connection state of an engine.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Protocol selects the vehicle bus protocol of the adapter.
type Protocol byte

const (
	ProtocolAuto          Protocol = 0x0 // Automatic mode
	ProtocolJ1850PWM      Protocol = 0x1 // SAE J1850 PWM
	ProtocolJ1850VPW      Protocol = 0x2 // SAE J1850 VPW
	ProtocolISO9141       Protocol = 0x3 // ISO 9141-2
	ProtocolISO14230_5    Protocol = 0x4 // ISO 14230-4 (KWP 5BAUD)
	ProtocolISO14230      Protocol = 0x5 // ISO 14230-4 (KWP FAST)
	ProtocolISO15765_11   Protocol = 0x6 // ISO 15765-4 (CAN 11/500)
	ProtocolISO15765_29   Protocol = 0x7 // ISO 15765-4 (CAN 29/500)
	ProtocolISO15765_11_2 Protocol = 0x8 // ISO 15765-4 (CAN 11/250)
	ProtocolISO15765_29_2 Protocol = 0x9 // ISO 15765-4 (CAN 29/250)
	ProtocolSAEJ1939      Protocol = 0xA // SAE J1939 (CAN 29/250)
)

var protocolNames = map[Protocol]string{
	ProtocolAuto:          "Auto",
	ProtocolJ1850PWM:      "SAE J1850 PWM (41.6 kbaud)",
	ProtocolJ1850VPW:      "SAE J1850 VPW (10.4 kbaud)",
	ProtocolISO9141:       "ISO 9141-2 (5 baud init)",
	ProtocolISO14230_5:    "ISO 14230-4 KWP (5 baud init)",
	ProtocolISO14230:      "ISO 14230-4 KWP (fast init)",
	ProtocolISO15765_11:   "ISO 15765-4 CAN (11 bit ID, 500 kbaud)",
	ProtocolISO15765_29:   "ISO 15765-4 CAN (29 bit ID, 500 kbaud)",
	ProtocolISO15765_11_2: "ISO 15765-4 CAN (11 bit ID, 250 kbaud)",
	ProtocolISO15765_29_2: "ISO 15765-4 CAN (29 bit ID, 250 kbaud)",
	ProtocolSAEJ1939:      "SAE J1939 CAN (29 bit ID, 250 kbaud)",
}

func (p Protocol) String() string {
	if name, ok := protocolNames[p]; ok {
		return name
	}
	return "Unknown"
}

var initCommands = [...]string{"ATZ\r", "ATE0\r", "ATL1\r", "0100\r"}

// State returns the connection state.
func (e *Engine) State() State {
	return e.state
}

// Begin resynchronizes the link and reads the adapter firmware version.
func (e *Engine) Begin() {
	e.Recover()

	e.version = 0
	n := e.SendCommand("ATI\r", e.scratch[:], 200*time.Millisecond)
	if n == 0 {
		return
	}
	e.version = parseVersion(e.scratch[:n])
	log.Debug("adapter version", zap.Int("version", e.version))
}

// parseVersion decodes "OBDUART v1.0" into 10.
func parseVersion(reply []byte) int {
	i := bytes.Index(reply, []byte("OBDUART"))
	if i < 0 {
		return 0
	}
	p := reply[i+len("OBDUART"):]
	if len(p) < 5 || !isDigit(p[2]) || !isDigit(p[4]) {
		return 0
	}
	return int(p[2]-'0')*10 + int(p[4]-'0')
}

// Version returns the firmware version found by Begin, e.g. 10 for 1.0.
func (e *Engine) Version() int {
	return e.version
}

// Init runs the adapter handshake, selects the protocol and loads the
// supported PID map. Any handshake command with an empty reply leaves the
// engine disconnected.
func (e *Engine) Init(protocol Protocol) error {
	e.state = StateConnecting

	for _, cmd := range initCommands {
		if err := e.write([]byte(cmd)); err != nil {
			e.state = StateDisconnected
			return fmt.Errorf("%q: %w", cmd, err)
		}
		n := e.t.Receive(e.frame[:], TimeoutLong)
		if n == 0 {
			e.state = StateDisconnected
			return fmt.Errorf("%q: %w", cmd, ErrHandshake)
		}
		log.Debug("handshake", zap.String("command", cmd), zap.ByteString("reply", e.frame[:n]))
		e.delay(50 * time.Millisecond)
	}

	if protocol != ProtocolAuto {
		if err := e.SetProtocol(protocol); err != nil {
			log.Warn("protocol selection not acknowledged", zap.Stringer("protocol", protocol), zap.Error(err))
		}
	}

	e.loadPIDMap()

	e.state = StateConnected
	e.errors = 0
	return nil
}

func (e *Engine) loadPIDMap() {
	e.pidMap.Reset()
	for i, pid := range capabilityPIDs {
		if err := e.SendQuery(pid); err != nil {
			break
		}
		if e.sequential() {
			e.t.Idle()
		}
		_, data, ok := e.GetResponse(pid)
		if !ok {
			log.Debug("capability query failed", zap.Uint8("pid", pid))
			break
		}
		e.pidMap.parseCapability(i, data)
		e.delay(100 * time.Millisecond)
	}
}

// SetProtocol selects a bus protocol and checks for the OK acknowledgement.
func (e *Engine) SetProtocol(p Protocol) error {
	cmd := append(e.cmd[:0], "ATSP"...)
	if p == ProtocolAuto {
		cmd = append(cmd, "00"...)
	} else {
		cmd = append(cmd, hexDigits[p&0x0F])
	}
	cmd = append(cmd, '\r')
	if err := e.write(cmd); err != nil {
		return err
	}
	n := e.t.Receive(e.scratch[:], TimeoutLong)
	if n == 0 || !bytes.Contains(e.scratch[:n], []byte("OK")) {
		return fmt.Errorf("ATSP%X: %w", byte(p), ErrBadReply)
	}
	return nil
}

// End disconnects and releases the transport when it can be closed.
func (e *Engine) End() error {
	e.state = StateDisconnected
	if c, ok := e.t.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Recover sends a no-op command and discards the reply to resynchronize
// framing. It does not change the connection state.
func (e *Engine) Recover() {
	e.SendCommand("AT\r", e.drain[:], TimeoutShort)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
