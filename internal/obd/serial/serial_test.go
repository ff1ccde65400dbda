package serial

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"obdkit/internal/obd"
)

type loopPort struct {
	in     bytes.Buffer
	out    bytes.Buffer
	closed bool
	baud   int
}

func (p *loopPort) Read(b []byte) (int, error) {
	if p.in.Len() == 0 {
		return 0, io.EOF
	}
	return p.in.Read(b)
}

func (p *loopPort) Write(b []byte) (int, error) { return p.out.Write(b) }

func (p *loopPort) Close() error {
	p.closed = true
	return nil
}

type rebaudPort struct {
	loopPort
}

func (p *rebaudPort) SetBaud(baud int) error {
	p.baud = baud
	return nil
}

func TestTransportReceive(t *testing.T) {
	p := &loopPort{}
	p.in.WriteString("41 0C 1A F8\r>")
	tr := NewTransport(p)
	tr.IdleFunc = func() {}

	buf := make([]byte, 32)
	n := tr.Receive(buf, 50*time.Millisecond)
	if got := string(buf[:n]); got != "41 0C 1A F8\r" {
		t.Errorf("frame = %q", got)
	}
}

func TestTransportTryReadByte(t *testing.T) {
	p := &loopPort{}
	p.in.WriteString("O")
	var src obd.ByteSource = NewTransport(p)
	if c, ok := src.TryReadByte(); !ok || c != 'O' {
		t.Errorf("TryReadByte = %q, %v", c, ok)
	}
	if _, ok := src.TryReadByte(); ok {
		t.Error("TryReadByte on an empty port reported a byte")
	}
}

func TestTransportWrite(t *testing.T) {
	p := &loopPort{}
	tr := NewTransport(p)
	if err := tr.Write([]byte("010C\r")); err != nil {
		t.Fatal(err)
	}
	if p.out.String() != "010C\r" {
		t.Errorf("wrote %q", p.out.String())
	}
}

func TestTransportSetBaud(t *testing.T) {
	p := &rebaudPort{}
	tr := NewTransport(p)
	if err := tr.SetBaud(115200); err != nil {
		t.Fatal(err)
	}
	if p.baud != 115200 {
		t.Errorf("baud = %d", p.baud)
	}

	plain := NewTransport(&loopPort{})
	if err := plain.SetBaud(9600); !errors.Is(err, obd.ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
}

func TestEngineOverTransport(t *testing.T) {
	p := &loopPort{}
	p.in.WriteString("41 05 64\r>")
	tr := NewTransport(p)
	tr.IdleFunc = func() {}
	e := obd.New(tr)

	v, err := e.ReadPID(obd.PIDCoolantTemp)
	if err != nil {
		t.Fatal(err)
	}
	if v != 60 {
		t.Errorf("coolant = %d", v)
	}
	if err := e.End(); err != nil || !p.closed {
		t.Errorf("End: %v closed=%v", err, p.closed)
	}
}

func TestPickPort(t *testing.T) {
	tests := []struct {
		ports []string
		want  string
	}{
		{[]string{"/dev/ttyS0", "/dev/ttyUSB0"}, "/dev/ttyUSB0"},
		{[]string{"/dev/ttyUSB0", "/dev/rfcomm0"}, "/dev/rfcomm0"},
		{[]string{"COM3"}, "COM3"},
		{[]string{"/dev/ttyS0"}, ""},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := pickPort(tt.ports); got != tt.want {
			t.Errorf("pickPort(%v) = %q, want %q", tt.ports, got, tt.want)
		}
	}
}
