package obd

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// Vector is a three axis sensor reading.
type Vector struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	Z int `json:"z" yaml:"z"`
}

// resultValue returns the first line of reply that starts with a digit or a
// minus sign.
func resultValue(reply []byte) []byte {
	p := reply
	for len(p) > 0 {
		if isDigit(p[0]) || p[0] == '-' {
			return p
		}
		i := bytes.IndexByte(p, '\r')
		if i < 0 {
			break
		}
		p = p[i+1:]
		if len(p) > 0 && p[0] == '\n' {
			p = p[1:]
		}
	}
	return nil
}

// leadingNumber returns the prefix of p made of characters in set.
func leadingNumber(p []byte, set string) []byte {
	n := 0
	for n < len(p) && bytes.IndexByte([]byte(set), p[n]) >= 0 {
		n++
	}
	return p[:n]
}

func atoi(p []byte) (int, []byte, bool) {
	num := leadingNumber(p, "-+0123456789")
	v, err := strconv.Atoi(string(num))
	return v, p[len(num):], err == nil
}

func (e *Engine) query(cmd string) ([]byte, error) {
	n := e.SendCommand(cmd, e.scratch[:], TimeoutShort)
	if n == 0 {
		return nil, fmt.Errorf("%q: %w", cmd[:len(cmd)-1], ErrNoResponse)
	}
	return e.scratch[:n], nil
}

func (e *Engine) valueOf(cmd string) ([]byte, error) {
	reply, err := e.query(cmd)
	if err != nil {
		return nil, err
	}
	p := resultValue(reply)
	if p == nil {
		return nil, fmt.Errorf("%q: %w", cmd[:len(cmd)-1], ErrBadReply)
	}
	return p, nil
}

// Voltage reads the battery voltage seen by the adapter.
func (e *Engine) Voltage() (float64, error) {
	p, err := e.valueOf("ATRV\r")
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(string(leadingNumber(p, "-+.0123456789")), 64)
	if err != nil {
		return 0, fmt.Errorf("ATRV: %w", ErrBadReply)
	}
	return v, nil
}

// Temperature reads the adapter's internal temperature sensor in °C.
func (e *Engine) Temperature() (float64, error) {
	p, err := e.valueOf("ATTEMP\r")
	if err != nil {
		return 0, err
	}
	raw, _, ok := atoi(p)
	if !ok {
		return 0, fmt.Errorf("ATTEMP: %w", ErrBadReply)
	}
	return float64(raw+12412) / 340, nil
}

func (e *Engine) readVector(cmd string) (Vector, error) {
	p, err := e.valueOf(cmd)
	if err != nil {
		return Vector{}, err
	}
	var v [3]int
	for i := range v {
		if i > 0 {
			if len(p) == 0 || p[0] != ',' {
				return Vector{}, fmt.Errorf("%q: %w", cmd[:len(cmd)-1], ErrBadReply)
			}
			p = p[1:]
		}
		var ok bool
		if v[i], p, ok = atoi(p); !ok {
			return Vector{}, fmt.Errorf("%q: %w", cmd[:len(cmd)-1], ErrBadReply)
		}
	}
	return Vector{X: v[0], Y: v[1], Z: v[2]}, nil
}

// Accel reads the adapter accelerometer.
func (e *Engine) Accel() (Vector, error) {
	return e.readVector("ATACL\r")
}

// Gyro reads the adapter gyroscope.
func (e *Engine) Gyro() (Vector, error) {
	return e.readVector("ATGYRO\r")
}

// Sleep puts the adapter into low power mode.
func (e *Engine) Sleep() error {
	_, err := e.query("ATLP\r")
	return err
}

// SetBaudRate asks the adapter to switch baud rate, then reopens the
// transport at that rate and resynchronizes.
func (e *Engine) SetBaudRate(baud int) error {
	r, ok := e.t.(Rebauder)
	if !ok {
		return ErrUnsupported
	}
	cmd := append(e.cmd[:0], "ATBR1 "...)
	cmd = strconv.AppendInt(cmd, int64(baud), 10)
	cmd = append(cmd, '\r')
	if err := e.write(cmd); err != nil {
		return err
	}
	// the OK still comes at the old rate
	e.t.Receive(nil, TimeoutShort)
	e.delay(50 * time.Millisecond)
	if err := r.SetBaud(baud); err != nil {
		return fmt.Errorf("reopen at %d baud: %w", baud, err)
	}
	e.Recover()
	return nil
}

// IsMILOn reports whether the malfunction indicator lamp is lit.
func (e *Engine) IsMILOn() (bool, error) {
	v, err := e.ReadPID(PIDMonitor)
	if err != nil {
		return false, err
	}
	if e.legacyMonitor {
		return v > 126, nil
	}
	return v&0x80 != 0, nil
}

var vinMarker = []byte("0: 49 02")

// VIN reads the vehicle identification number. The reply spans several
// numbered lines, each payload introduced by a colon.
func (e *Engine) VIN() (string, error) {
	n := e.SendCommand("0902\r", e.frame[:], TimeoutShort)
	if n == 0 {
		return "", fmt.Errorf("0902: %w", ErrNoResponse)
	}
	reply := e.frame[:n]
	i := bytes.Index(reply, vinMarker)
	if i < 0 {
		return "", fmt.Errorf("0902: %w", ErrBadReply)
	}

	var vin [FrameSize / 3]byte
	q := 0
	// skip the marker and the item count byte
	p := i + len(vinMarker) + 3
	for p < len(reply) {
		for p < len(reply) && reply[p] == ' ' && p+2 < len(reply) {
			if c := HexToU8(reply[p+1:]); c != 0 && q < len(vin) {
				vin[q] = c
				q++
			}
			p += 3
		}
		next := bytes.IndexByte(reply[p:], ':')
		if next < 0 {
			break
		}
		p += next + 1
	}
	return string(vin[:q]), nil
}
