package obd

import (
	"errors"
	"testing"
	"time"
)

var handshake = map[string]string{
	"ATZ\r":  "\r\rELM327 v1.5\r\r>",
	"ATE0\r": "ATE0\rOK\r\r>",
	"ATL1\r": "OK\r\n\r\n>",
	"0100\r": "SEARCHING...\r41 00 BE 1F A8 13\r\r>",
	"0120\r": "41 20 80 01 80 01\r\r>",
	"0140\r": "41 40 FE D0 04 00\r\r>",
}

func withReplies(base map[string]string, extra map[string]string) map[string]string {
	m := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		m[k] = v
	}
	for k, v := range extra {
		m[k] = v
	}
	return m
}

func TestReadPIDRPM(t *testing.T) {
	l := newFakeLink(map[string]string{"010C\r": "41 0C 1A F8\r>"})
	e := newTestEngine(l)

	v, err := e.ReadPID(PIDEngineRPM)
	if err != nil {
		t.Fatalf("ReadPID: %v", err)
	}
	if v != 1726 {
		t.Errorf("rpm = %d, want 1726", v)
	}
	if l.writes[0] != "010C\r" {
		t.Errorf("query = %q", l.writes[0])
	}
}

func TestReadPIDCoolant(t *testing.T) {
	l := newFakeLink(map[string]string{"0105\r": "41 05 64\r>"})
	e := newTestEngine(l)

	v, err := e.ReadPID(PIDCoolantTemp)
	if err != nil {
		t.Fatalf("ReadPID: %v", err)
	}
	if v != 60 {
		t.Errorf("coolant = %d, want 60", v)
	}
}

func TestReadPIDsMatchesByPID(t *testing.T) {
	l := newFakeLink(map[string]string{"010C\r0105\r": "41 05 64\r41 0C 1A F8\r>"})
	e := newTestEngine(l)

	results := make([]int, 2)
	n := e.ReadPIDs([]byte{PIDEngineRPM, PIDCoolantTemp}, results)
	if n != 2 {
		t.Fatalf("ReadPIDs = %d, want 2", n)
	}
	if results[0] != 1726 || results[1] != 60 {
		t.Errorf("results = %v, want [1726 60]", results)
	}
	if len(l.writes) != 1 {
		t.Errorf("expected one batched write, got %q", l.writes)
	}
}

func TestReadPIDsMissingPIDKeepsBatch(t *testing.T) {
	tests := []struct {
		name  string
		pids  []byte
		reply string
		want  []int
	}{
		{
			name:  "missing middle",
			pids:  []byte{PIDEngineRPM, PIDVehicleSpeed, PIDCoolantTemp},
			reply: "41 0C 1A F8\r41 05 64\r>",
			want:  []int{1726, 0, 60},
		},
		{
			name:  "missing first",
			pids:  []byte{PIDVehicleSpeed, PIDEngineRPM, PIDCoolantTemp},
			reply: "41 0C 1A F8\r41 05 64\r>",
			want:  []int{0, 1726, 60},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var query string
			for _, pid := range tt.pids {
				query += "01" + string(appendHex8(nil, pid)) + "\r"
			}
			l := newFakeLink(map[string]string{query: tt.reply})
			e := newTestEngine(l)

			results := make([]int, len(tt.pids))
			if n := e.ReadPIDs(tt.pids, results); n != 2 {
				t.Fatalf("ReadPIDs = %d, want 2", n)
			}
			for i := range tt.want {
				if results[i] != tt.want[i] {
					t.Errorf("results = %v, want %v", results, tt.want)
					break
				}
			}
			if l.wrote("AT\r") {
				t.Errorf("resync sent while replies were pending: %q", l.writes)
			}
		})
	}
}

func TestReadPIDsSequentialTransport(t *testing.T) {
	l := newFakeLink(map[string]string{
		"010C\r": "41 0C 1A F8\r>",
		"0105\r": "41 05 64\r>",
	})
	l.sequential = true
	e := newTestEngine(l)

	results := make([]int, 2)
	if n := e.ReadPIDs([]byte{PIDEngineRPM, PIDCoolantTemp}, results); n != 2 {
		t.Fatalf("ReadPIDs = %d, want 2", n)
	}
	if len(l.writes) != 2 || l.writes[0] != "010C\r" || l.writes[1] != "0105\r" {
		t.Errorf("writes = %q", l.writes)
	}
}

func TestGetResponseLatchesOnFirstPID(t *testing.T) {
	l := newFakeLink(map[string]string{"010D\r": "41 0D 3C\r>"})
	e := newTestEngine(l)
	if err := e.SendQuery(PIDVehicleSpeed); err != nil {
		t.Fatal(err)
	}
	pid, v, err := e.GetResult(0)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if pid != PIDVehicleSpeed || v != 60 {
		t.Errorf("got pid %02X value %d", pid, v)
	}
}

func TestGetResponseSkipsOtherPIDs(t *testing.T) {
	l := newFakeLink(map[string]string{"0105\r": "41 0C 1A F8\r41 05 64\r>"})
	e := newTestEngine(l)
	v, err := e.ReadPID(PIDCoolantTemp)
	if err != nil || v != 60 {
		t.Errorf("ReadPID = %d, %v", v, err)
	}
}

func TestReadPIDNoResponseRecovers(t *testing.T) {
	l := newFakeLink(map[string]string{"010C\r": "41 0C 1A F8\r>"})
	e := newTestEngine(l)

	_, err := e.ReadPID(PIDVehicleSpeed)
	if !errors.Is(err, ErrNoResponse) {
		t.Fatalf("err = %v, want ErrNoResponse", err)
	}
	if e.Errors() != 1 {
		t.Errorf("errors = %d, want 1", e.Errors())
	}
	if !l.wrote("AT\r") {
		t.Errorf("recover command not sent: %q", l.writes)
	}
	if state := e.State(); state != StateDisconnected {
		t.Errorf("recover changed state to %v", state)
	}

	if _, err := e.ReadPID(PIDEngineRPM); err != nil {
		t.Fatalf("ReadPID: %v", err)
	}
	if e.Errors() != 0 {
		t.Errorf("errors = %d after success, want 0", e.Errors())
	}
}

func TestSendQueryUsesMode(t *testing.T) {
	l := newFakeLink(nil)
	e := newTestEngine(l, WithMode(0x02))
	if err := e.SendQuery(0x0C); err != nil {
		t.Fatal(err)
	}
	if l.writes[0] != "020C\r" {
		t.Errorf("query = %q", l.writes[0])
	}
}

func TestClearDTC(t *testing.T) {
	l := newFakeLink(map[string]string{"04\r": "44\r>"})
	e := newTestEngine(l)
	e.ClearDTC()
	if !l.wrote("04\r") {
		t.Errorf("writes = %q", l.writes)
	}
	if len(l.src.data) != 0 {
		t.Errorf("reply not drained")
	}
}

func TestInit(t *testing.T) {
	l := newFakeLink(handshake)
	e := newTestEngine(l)

	if err := e.Init(ProtocolAuto); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if e.State() != StateConnected {
		t.Errorf("state = %v", e.State())
	}
	for pid, want := range map[byte]bool{
		0x01: true, 0x02: false, 0x03: true, 0x08: false,
		0x0A: false, 0x0C: true, 0x0D: true,
		0x21: true, 0x22: false, 0x41: true,
		0x61: false, 0x7E: false,
	} {
		if got := e.IsSupported(pid); got != want {
			t.Errorf("IsSupported(%02X) = %v, want %v", pid, got, want)
		}
	}
	if l.wrote("ATSP6\r") {
		t.Errorf("protocol selected in auto mode")
	}
}

func TestInitSelectsProtocol(t *testing.T) {
	l := newFakeLink(withReplies(handshake, map[string]string{"ATSP6\r": "OK\r>"}))
	e := newTestEngine(l)

	if err := e.Init(ProtocolISO15765_11); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if !l.wrote("ATSP6\r") {
		t.Errorf("writes = %q", l.writes)
	}
}

func TestInitHandshakeFailure(t *testing.T) {
	replies := withReplies(handshake, nil)
	delete(replies, "ATE0\r")
	l := newFakeLink(replies)
	e := newTestEngine(l)

	err := e.Init(ProtocolAuto)
	if !errors.Is(err, ErrHandshake) {
		t.Fatalf("err = %v, want ErrHandshake", err)
	}
	if e.State() != StateDisconnected {
		t.Errorf("state = %v, want disconnected", e.State())
	}
	if l.wrote("ATL1\r") {
		t.Errorf("handshake continued after failure")
	}
}

func TestInitCapabilityQueriesTimeOut(t *testing.T) {
	l := newFakeLink(map[string]string{
		"ATZ\r":  "ELM327 v1.5\r>",
		"ATE0\r": "OK\r>",
		"ATL1\r": "OK\r>",
	})
	// the handshake answers once, capability queries get nothing
	l.replies["0100\r"] = "SEARCHING...\rUNABLE TO CONNECT\r>"
	e := newTestEngine(l)

	if err := e.Init(ProtocolAuto); err != nil {
		t.Fatalf("Init: %v", err)
	}
	for pid := 0x01; pid < 0x7F; pid++ {
		if e.IsSupported(byte(pid)) {
			t.Fatalf("IsSupported(%02X) = true", pid)
		}
	}
	for _, pid := range []byte{0x7F, 0x80, 0xFF} {
		if !e.IsSupported(pid) {
			t.Errorf("IsSupported(%02X) = false", pid)
		}
	}
}

func TestEnd(t *testing.T) {
	l := newFakeLink(handshake)
	e := newTestEngine(l)
	if err := e.Init(ProtocolAuto); err != nil {
		t.Fatal(err)
	}
	if err := e.End(); err != nil {
		t.Fatal(err)
	}
	if e.State() != StateDisconnected || !l.closed {
		t.Errorf("state = %v closed = %v", e.State(), l.closed)
	}
}

func TestBeginReadsVersion(t *testing.T) {
	l := newFakeLink(map[string]string{
		"AT\r":  "OK\r>",
		"ATI\r": "OBDUART v1.2\r>",
	})
	e := newTestEngine(l)
	e.Begin()
	if e.Version() != 12 {
		t.Errorf("version = %d, want 12", e.Version())
	}
}

func TestSetBaudRate(t *testing.T) {
	l := newFakeLink(map[string]string{"AT\r": "OK\r>"})
	e := newTestEngine(l)
	if err := e.SetBaudRate(115200); err != nil {
		t.Fatal(err)
	}
	if l.writes[0] != "ATBR1 115200\r" || l.baud != 115200 {
		t.Errorf("writes = %q baud = %d", l.writes, l.baud)
	}
	if !l.wrote("AT\r") {
		t.Errorf("no resync after baud change")
	}
}

func TestSetBaudRateStaysInStep(t *testing.T) {
	l := newFakeLink(map[string]string{
		"ATBR1 115200\r": "OK\r>",
		"AT\r":           "OK\r>",
		"ATRV\r":         "ATRV\r12.6V\r>",
	})
	e := newTestEngine(l)
	if err := e.SetBaudRate(115200); err != nil {
		t.Fatal(err)
	}
	v, err := e.Voltage()
	if err != nil {
		t.Fatalf("Voltage after baud change: %v", err)
	}
	if v != 12.6 {
		t.Errorf("voltage = %v, want 12.6", v)
	}
}

type plainLink struct {
	*fakeLink
}

// SetBaud hides the fake's Rebauder implementation.
func (plainLink) SetBaud() {}

func TestSetBaudRateUnsupported(t *testing.T) {
	e := New(plainLink{newFakeLink(nil)}, WithDelay(func(time.Duration) {}))
	if err := e.SetBaudRate(9600); !errors.Is(err, ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
}

func TestEngineTimeoutsUseLongWaitForHandshake(t *testing.T) {
	l := newFakeLink(nil)
	e := newTestEngine(l)
	start := l.clock.now
	_ = e.Init(ProtocolAuto)
	if waited := l.clock.now.Sub(start); waited < TimeoutLong {
		t.Errorf("waited %v, want at least %v", waited, TimeoutLong)
	}
}

func TestIsMILOn(t *testing.T) {
	l := newFakeLink(map[string]string{"0101\r": "41 01 81 07 65 04\r>"})
	e := newTestEngine(l)
	on, err := e.IsMILOn()
	if err != nil || !on {
		t.Errorf("IsMILOn = %v, %v", on, err)
	}

	l = newFakeLink(map[string]string{"0101\r": "41 01 20 07 65 04\r>"})
	e = newTestEngine(l)
	if on, _ := e.IsMILOn(); on {
		t.Errorf("MIL reported on for 32 codes with lamp off")
	}

	// the firmware table misreads the same reply
	e = newTestEngine(newFakeLink(map[string]string{"0101\r": "41 01 20 07 65 04\r>"}), WithLegacyMonitorStatus())
	if on, _ := e.IsMILOn(); !on {
		t.Errorf("legacy decoding expected to report MIL on")
	}
}
