package obd

import (
	"bytes"
	"fmt"
	"time"

	"obdkit/pkg/log"

	"go.uber.org/zap"
)

const (
	// ModeCurrentData is OBD-II service 01.
	ModeCurrentData byte = 0x01

	// FrameSize is the capacity of the reply buffer, terminator included.
	FrameSize = 128

	maxSegments = 32
)

var responseMarker = []byte("41 ")

// Option configures an Engine.
type Option func(*Engine)

// WithMode sets the diagnostic service used by queries.
func WithMode(mode byte) Option {
	return func(e *Engine) { e.mode = mode }
}

// WithLegacyMonitorStatus decodes the monitor status PID with the RPM
// formula, the way the adapter firmware table does.
func WithLegacyMonitorStatus() Option {
	return func(e *Engine) { e.legacyMonitor = true }
}

// WithDelay replaces the pauses between init commands.
func WithDelay(delay func(time.Duration)) Option {
	return func(e *Engine) { e.delay = delay }
}

// Engine speaks the adapter's text protocol over a Transport. It is not safe
// for concurrent use.
type Engine struct {
	t             Transport
	mode          byte
	legacyMonitor bool
	delay         func(time.Duration)

	state   State
	errors  int
	version int
	pidMap  PIDMap

	cmd     [FrameSize]byte
	scratch [32]byte
	drain   [16]byte

	// frame holds the last reply. Segments already handed out are marked in
	// used so a batched reply can be matched PID by PID.
	frame    [FrameSize]byte
	frameLen int
	segments int
	used     uint32
}

// New creates an engine on t. The engine starts disconnected.
func New(t Transport, opts ...Option) *Engine {
	e := &Engine{
		t:     t,
		mode:  ModeCurrentData,
		delay: time.Sleep,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Errors returns the number of consecutive failed reads.
func (e *Engine) Errors() int {
	return e.errors
}

// PIDMap returns the supported PID map loaded by Init.
func (e *Engine) PIDMap() *PIDMap {
	return &e.pidMap
}

// IsSupported reports whether the vehicle supports pid.
func (e *Engine) IsSupported(pid byte) bool {
	return e.pidMap.IsSupported(pid)
}

func (e *Engine) sequential() bool {
	s, ok := e.t.(Sequential)
	return ok && s.Sequential()
}

func (e *Engine) write(p []byte) error {
	e.frameLen = 0
	log.Debug("write", zap.ByteString("command", p))
	return e.t.Write(p)
}

func (e *Engine) appendQuery(dst []byte, pid byte) []byte {
	dst = appendHex8(dst, e.mode)
	dst = appendHex8(dst, pid)
	return append(dst, '\r')
}

// SendQuery sends a query for pid without waiting for the reply.
func (e *Engine) SendQuery(pid byte) error {
	return e.write(e.appendQuery(e.cmd[:0], pid))
}

// SendCommand writes cmd and frames one reply into buf.
func (e *Engine) SendCommand(cmd string, buf []byte, timeout time.Duration) int {
	if err := e.write(append(e.cmd[:0], cmd...)); err != nil {
		log.Warn("failed to send command", zap.String("command", cmd), zap.Error(err))
		return 0
	}
	e.t.Idle()
	n := e.t.Receive(buf, timeout)
	if buf != nil {
		log.Debug("reply", zap.String("command", cmd), zap.ByteString("data", buf[:n]))
	}
	return n
}

func (e *Engine) loadFrame(n int) {
	e.frameLen = n
	e.used = 0
	e.segments = bytes.Count(e.frame[:n], responseMarker)
	if e.segments > maxSegments {
		e.segments = maxSegments
	}
}

// scan looks for the first unused reply segment for pid in the current
// frame. A pid of 0 matches the first segment found and the resolved pid is
// returned either way.
func (e *Engine) scan(pid byte) (byte, []byte, bool) {
	frame := e.frame[:e.frameLen]
	p := 0
	for seg := 0; seg < e.segments; seg++ {
		i := bytes.Index(frame[p:], responseMarker)
		if i < 0 {
			break
		}
		p += i + len(responseMarker)
		if e.used&(1<<seg) != 0 {
			continue
		}
		cur := HexToU8(frame[p:])
		if pid == 0 {
			pid = cur
		}
		if cur != pid {
			continue
		}
		e.errors = 0
		q := p + 2
		if q >= len(frame) || frame[q] != ' ' {
			continue
		}
		data := frame[q+1:]
		if end := bytes.IndexByte(data, '\r'); end >= 0 {
			data = data[:end]
		}
		e.used |= 1 << seg
		if e.used == 1<<e.segments-1 {
			// every segment consumed, the next call reads a fresh frame
			e.frameLen = 0
		}
		return pid, data, true
	}
	return pid, nil, false
}

// GetResponse reads replies until one carries pid and returns its data
// bytes, e.g. "1A F8" for "41 0C 1A F8". A pid of 0 takes the first PID seen.
// The data is valid until the next engine call.
//
// A frame holding replies for other PIDs stays pending when pid is missing
// from it, so the rest of a batch can still be matched.
func (e *Engine) GetResponse(pid byte) (byte, []byte, bool) {
	if e.frameLen > 0 {
		var data []byte
		var ok bool
		if pid, data, ok = e.scan(pid); ok {
			return pid, data, true
		}
		return pid, nil, false
	}
	for {
		n := e.t.Receive(e.frame[:], TimeoutShort)
		e.loadFrame(n)
		if n == 0 {
			return pid, nil, false
		}
		log.Debug("frame", zap.ByteString("data", e.frame[:n]))

		var data []byte
		var ok bool
		if pid, data, ok = e.scan(pid); ok {
			return pid, data, true
		}
		if e.segments > 0 {
			return pid, nil, false
		}
		// no reply segments at all, e.g. "NO DATA"
		e.frameLen = 0
	}
}

func (e *Engine) pending() bool {
	return e.frameLen > 0 && e.used != 1<<e.segments-1
}

func (e *Engine) normalize(pid byte, data []byte) int {
	if e.legacyMonitor {
		return normalizeLegacy(pid, data)
	}
	return NormalizeData(pid, data)
}

// GetResult reads the reply for pid and converts it. On failure the error
// counter grows and the link is resynchronized.
func (e *Engine) GetResult(pid byte) (byte, int, error) {
	pid, data, ok := e.GetResponse(pid)
	if !ok {
		// a pending frame ended at the prompt, so the link is still in step
		if !e.pending() {
			e.Recover()
		}
		e.errors++
		return pid, 0, fmt.Errorf("pid %02X: %w", pid, ErrNoResponse)
	}
	return pid, e.normalize(pid, data), nil
}

// ReadPID queries a single PID.
func (e *Engine) ReadPID(pid byte) (int, error) {
	if err := e.SendQuery(pid); err != nil {
		return 0, fmt.Errorf("pid %02X: %w", pid, err)
	}
	if e.sequential() {
		e.t.Idle()
	}
	_, v, err := e.GetResult(pid)
	return v, err
}

// ReadPIDs queries several PIDs in one transmission and stores the values in
// results, matched by PID. It returns how many reads succeeded.
func (e *Engine) ReadPIDs(pids []byte, results []int) int {
	if len(results) < len(pids) {
		pids = pids[:len(results)]
	}
	ok := 0
	if e.sequential() {
		for i, pid := range pids {
			v, err := e.ReadPID(pid)
			if err != nil {
				continue
			}
			results[i] = v
			ok++
		}
		return ok
	}

	batch := e.cmd[:0]
	for _, pid := range pids {
		batch = e.appendQuery(batch, pid)
	}
	if err := e.write(batch); err != nil {
		log.Warn("failed to send batched query", zap.Error(err))
		return 0
	}
	for i, pid := range pids {
		_, v, err := e.GetResult(pid)
		if err != nil {
			log.Debug("read failed", zap.Error(err))
			continue
		}
		results[i] = v
		ok++
	}
	return ok
}

// ClearDTC clears stored trouble codes. The reply is drained.
func (e *Engine) ClearDTC() {
	e.SendCommand("04\r", e.scratch[:], TimeoutShort)
}
