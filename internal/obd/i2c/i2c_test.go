package i2c

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"obdkit/internal/obd"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

// fakeBus serves queued read chunks. Reads with nothing queued return zeros,
// which the adapter uses for "not ready".
type fakeBus struct {
	writes [][]byte
	chunks [][]byte
	reads  int
}

func (b *fakeBus) Tx(addr uint16, w, r []byte) error {
	if addr != Address {
		panic("wrong address")
	}
	if len(w) > 0 {
		b.writes = append(b.writes, append([]byte(nil), w...))
	}
	if len(r) > 0 {
		b.reads++
		for i := range r {
			r[i] = 0
		}
		if len(b.chunks) > 0 {
			copy(r, b.chunks[0])
			b.chunks = b.chunks[1:]
		}
	}
	return nil
}

func (b *fakeBus) ReadRegister(addr uint8, r uint8, buf []byte) error  { return nil }
func (b *fakeBus) WriteRegister(addr uint8, r uint8, buf []byte) error { return nil }

func newTestTransport(chunks ...string) (*Transport, *fakeBus, *fakeClock, *int) {
	bus := &fakeBus{}
	for _, c := range chunks {
		bus.chunks = append(bus.chunks, []byte(c))
	}
	clock := &fakeClock{now: time.Unix(100, 0)}
	idles := new(int)
	tr := NewWithClock(bus, clock)
	tr.IdleFunc = func() {
		*idles++
		clock.now = clock.now.Add(10 * time.Millisecond)
	}
	tr.Delay = func(time.Duration) {}
	return tr, bus, clock, idles
}

func TestCommandBlockEncoding(t *testing.T) {
	got := CommandBlock{Time: 0x01020304, Cmd: CmdLoadOBDData, Data: 7}.AppendTo(nil)
	want := []byte{0x04, 0x03, 0x02, 0x01, 0x13, 0x07}
	if !bytes.Equal(got, want) {
		t.Errorf("block = % X, want % X", got, want)
	}
}

func TestWriteSendsCommandBlock(t *testing.T) {
	tr, bus, clock, _ := newTestTransport()
	clock.now = clock.now.Add(1500 * time.Millisecond)
	if err := tr.Write([]byte("010C\r")); err != nil {
		t.Fatal(err)
	}
	if len(bus.writes) != 1 {
		t.Fatalf("writes = %d, want one transaction", len(bus.writes))
	}
	w := bus.writes[0]
	if ts := binary.LittleEndian.Uint32(w); ts != 1500 {
		t.Errorf("timestamp = %d, want 1500", ts)
	}
	if Command(w[4]) != CmdSendATCommand || w[5] != 0 {
		t.Errorf("header = % X", w[:6])
	}
	if string(w[6:]) != "010C\r" {
		t.Errorf("payload = %q", w[6:])
	}
}

func TestReceiveWaitsUntilReady(t *testing.T) {
	tr, _, _, idles := newTestTransport("\x00", "41 0C 1A F8\r\x00GARBAGE")
	buf := make([]byte, 64)
	n := tr.Receive(buf, time.Second)
	if got := string(buf[:n]); got != "41 0C 1A F8\r" {
		t.Errorf("frame = %q", got)
	}
	if buf[n] != 0 {
		t.Errorf("frame not NUL terminated")
	}
	if *idles != 1 {
		t.Errorf("idles = %d, want 1", *idles)
	}
}

func TestReceiveAcrossChunks(t *testing.T) {
	first := "41 00 BE 1F A8 13\r41 20 80 01 80"
	second := " 01\r\x00"
	tr, _, _, _ := newTestTransport(first, second)
	buf := make([]byte, 64)
	n := tr.Receive(buf, time.Second)
	if got := string(buf[:n]); got != first+" 01\r" {
		t.Errorf("frame = %q", got)
	}
}

func TestReceiveEllipsis(t *testing.T) {
	tr, _, _, _ := newTestTransport("SEARCHING...41 05 64\r\x00")
	buf := make([]byte, 64)
	n := tr.Receive(buf, time.Second)
	if got := string(buf[:n]); got != "41 05 64\r" {
		t.Errorf("frame = %q", got)
	}
}

func TestReceiveCapacity(t *testing.T) {
	tr, _, _, _ := newTestTransport("0123456789ABCDEFGHIJ\x00")
	buf := bytes.Repeat([]byte{0xEE}, 9)
	n := tr.Receive(buf[:8], time.Second)
	if n != 7 || string(buf[:7]) != "0123456" || buf[7] != 0 || buf[8] != 0xEE {
		t.Errorf("n = %d buf = %q", n, buf)
	}
}

func TestReceiveTimeout(t *testing.T) {
	tr, _, clock, _ := newTestTransport()
	start := clock.now
	buf := make([]byte, 16)
	if n := tr.Receive(buf, 200*time.Millisecond); n != 0 {
		t.Errorf("n = %d, want 0", n)
	}
	if waited := clock.now.Sub(start); waited < 200*time.Millisecond {
		t.Errorf("gave up after %v", waited)
	}
}

func TestEngineOverI2C(t *testing.T) {
	tr, bus, _, idles := newTestTransport("41 0C 1A F8\r\x00")
	e := obd.New(tr)
	v, err := e.ReadPID(obd.PIDEngineRPM)
	if err != nil {
		t.Fatal(err)
	}
	if v != 1726 {
		t.Errorf("rpm = %d", v)
	}
	if *idles == 0 {
		t.Errorf("no idle between query and reply")
	}
	if string(bus.writes[0][6:]) != "010C\r" {
		t.Errorf("query = %q", bus.writes[0][6:])
	}
	if err := e.SetBaudRate(9600); err == nil {
		t.Errorf("baud change accepted on I2C")
	}
}

func TestApplyQueryPIDs(t *testing.T) {
	tr, bus, _, _ := newTestTransport()
	var set QuerySet
	set.Add(obd.PIDEngineRPM)
	set.Add(obd.PIDVehicleSpeed)
	if err := tr.ApplyQueryPIDs(&set); err != nil {
		t.Fatal(err)
	}
	w := bus.writes[0]
	if Command(w[4]) != CmdApplyOBDPIDs {
		t.Errorf("command = %#02x", w[4])
	}
	want := []byte{0x0C, 0x0D, 0, 0, 0, 0, 0, 0}
	if !bytes.Equal(w[6:], want) {
		t.Errorf("payload = % X, want % X", w[6:], want)
	}
}

func TestLoadQueryData(t *testing.T) {
	var rec []byte
	for i := 0; i < MaxPIDs; i++ {
		rec = binary.LittleEndian.AppendUint16(rec, uint16(100*i))
		rec = binary.LittleEndian.AppendUint16(rec, uint16(int16(i-4)))
	}
	tr, bus, _, _ := newTestTransport(string(rec))
	data, err := tr.LoadQueryData()
	if err != nil {
		t.Fatal(err)
	}
	if Command(bus.writes[0][4]) != CmdLoadOBDData {
		t.Errorf("command = %#02x", bus.writes[0][4])
	}
	for i, info := range data {
		if info.Age != uint16(100*i) || info.Value != int16(i-4) {
			t.Errorf("record %d = %+v", i, info)
		}
	}
}
