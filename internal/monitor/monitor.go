package monitor

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"obdkit/internal/models"
	"obdkit/internal/obd"
	"obdkit/pkg/log"

	"go.uber.org/zap"
)

// Provider abstracts live access to the adapter for the UI and publishers.
type Provider interface {
	Start(ctx context.Context) error
	Stop()
	Snapshot() Snapshot
	GetErrors() ([]models.DTCEntry, error)
	ClearDTC(ctx context.Context) error
	IsConnected() bool
}

// Reading is one sampled PID value.
type Reading struct {
	PID   byte
	Name  string
	Unit  string
	Value int
	// Vector is set instead of Value for the motion sensors.
	Vector *obd.Vector
	Time   time.Time
}

// Text formats the value for display.
func (r Reading) Text() string {
	if r.Vector != nil {
		return fmt.Sprintf("%d %d %d", r.Vector.X, r.Vector.Y, r.Vector.Z)
	}
	return fmt.Sprintf("%d", r.Value)
}

// Snapshot is a copy of the latest polled state.
type Snapshot struct {
	State    obd.State
	Version  int
	Readings []Reading
	DTCs     []models.DTCEntry
	MIL      bool
	Voltage  float64
	Errors   int
	Updated  time.Time
}

// Config controls polling and reconnection.
type Config struct {
	PIDs        []byte
	Protocol    obd.Protocol
	Interval    time.Duration
	DTCInterval time.Duration
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
	// MaxErrors consecutive failed polls trigger a new handshake.
	MaxErrors int
}

// DefaultConfig polls engine speed, coolant and vehicle speed.
func DefaultConfig() Config {
	return Config{
		PIDs:        []byte{obd.PIDEngineRPM, obd.PIDCoolantTemp, obd.PIDVehicleSpeed},
		Interval:    time.Second,
		DTCInterval: 30 * time.Second,
		MinBackoff:  time.Second,
		MaxBackoff:  30 * time.Second,
		MaxErrors:   3,
	}
}

const missing = math.MinInt

// Monitor owns an engine from a single goroutine. It (re)connects with
// exponential backoff and samples the configured PIDs on a ticker.
type Monitor struct {
	mu        sync.RWMutex
	engine    *obd.Engine
	cfg       Config
	snap      Snapshot
	listeners []func(Reading)
	running   bool
	stopCh    chan struct{}
	done      chan struct{}
	requests  chan request
}

type request struct {
	fn    func(*obd.Engine) error
	reply chan error
}

// New returns a monitor for e. The engine must not be used elsewhere
// while the monitor runs.
func New(e *obd.Engine, cfg Config) *Monitor {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.DTCInterval <= 0 {
		cfg.DTCInterval = def.DTCInterval
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = def.MinBackoff
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = cfg.MinBackoff
	}
	if cfg.MaxErrors <= 0 {
		cfg.MaxErrors = def.MaxErrors
	}
	if len(cfg.PIDs) == 0 {
		cfg.PIDs = def.PIDs
	}
	return &Monitor{engine: e, cfg: cfg, requests: make(chan request)}
}

// OnReading registers a listener called from the polling goroutine for
// every successful sample.
func (m *Monitor) OnReading(f func(Reading)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, f)
	m.mu.Unlock()
}

func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.done = make(chan struct{})
	m.mu.Unlock()

	go m.run(ctx)
	return nil
}

// Stop ends polling and waits for the goroutine to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	close(m.stopCh)
	m.running = false
	done := m.done
	m.mu.Unlock()
	<-done
}

// Done is closed once the polling goroutine has exited.
func (m *Monitor) Done() <-chan struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.done
}

func (m *Monitor) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap.State == obd.StateConnected
}

func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.snap
	s.Readings = append([]Reading(nil), m.snap.Readings...)
	s.DTCs = append([]models.DTCEntry(nil), m.snap.DTCs...)
	return s
}

func (m *Monitor) GetErrors() ([]models.DTCEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snap.State != obd.StateConnected {
		return nil, obd.ErrNotConnected
	}
	return append([]models.DTCEntry(nil), m.snap.DTCs...), nil
}

// Exec runs fn on the polling goroutine between two samples. It fails with
// obd.ErrNotConnected unless the adapter is connected.
func (m *Monitor) Exec(ctx context.Context, fn func(*obd.Engine) error) error {
	if !m.IsConnected() {
		return obd.ErrNotConnected
	}
	req := request{fn: fn, reply: make(chan error, 1)}
	select {
	case m.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-m.Done():
		return obd.ErrNotConnected
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ClearDTC clears stored codes and refreshes the snapshot.
func (m *Monitor) ClearDTC(ctx context.Context) error {
	return m.Exec(ctx, func(e *obd.Engine) error {
		e.ClearDTC()
		m.readDTCs()
		return nil
	})
}

// wait blocks for d or until the monitor is stopped.
func (m *Monitor) wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-m.stopCh:
		return false
	case <-t.C:
		return true
	}
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	backoff := m.cfg.MinBackoff
	for {
		if err := m.connect(); err != nil {
			log.Warn("adapter connection failed", zap.Error(err), zap.Duration("retry", backoff))
			if !m.wait(ctx, backoff) {
				return
			}
			backoff *= 2
			if backoff > m.cfg.MaxBackoff {
				backoff = m.cfg.MaxBackoff
			}
			continue
		}
		backoff = m.cfg.MinBackoff
		log.Info("adapter connected", zap.Int("version", m.engine.Version()), zap.Int("supported", len(m.engine.PIDMap().Supported())))

		if !m.poll(ctx) {
			return
		}
		log.Warn("adapter stopped responding, reconnecting")
	}
}

func (m *Monitor) connect() error {
	m.setState(obd.StateConnecting)
	m.engine.Begin()
	if err := m.engine.Init(m.cfg.Protocol); err != nil {
		m.setState(obd.StateDisconnected)
		return err
	}
	m.mu.Lock()
	m.snap.State = obd.StateConnected
	m.snap.Version = m.engine.Version()
	m.mu.Unlock()
	return nil
}

// poll samples until the context ends (false) or the adapter drops (true).
func (m *Monitor) poll(ctx context.Context) bool {
	m.sample()
	m.readDTCs()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	lastDTC := time.Now()
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return false
		case <-m.stopCh:
			return false
		case req := <-m.requests:
			req.reply <- req.fn(m.engine)
			continue
		case <-ticker.C:
		}
		if ok, tried := m.sample(); tried > 0 && ok == 0 {
			failures++
			if failures >= m.cfg.MaxErrors {
				m.setState(obd.StateDisconnected)
				return true
			}
		} else {
			failures = 0
		}
		if time.Since(lastDTC) >= m.cfg.DTCInterval {
			m.readDTCs()
			lastDTC = time.Now()
		}
	}
}

// Read samples pids once and returns the successful readings in request
// order. Mode 01 PIDs go out as one batch; the adapter's own sensors are
// read through their commands. It returns how many were attempted.
func Read(e *obd.Engine, pids []byte) ([]Reading, int) {
	var query []byte
	for _, pid := range pids {
		if !obd.IsPseudoPID(pid) {
			query = append(query, pid)
		}
	}
	results := make([]int, len(query))
	for i := range results {
		results[i] = missing
	}
	e.ReadPIDs(query, results)
	values := make(map[byte]int, len(pids))
	for i, pid := range query {
		if results[i] != missing {
			values[pid] = results[i]
		}
	}

	tried := len(query)
	now := time.Now()
	readings := make([]Reading, 0, len(pids))
	for _, pid := range pids {
		v, ok := values[pid]
		var vec *obd.Vector
		switch pid {
		case obd.PIDDeviceTemp:
			tried++
			t, err := e.Temperature()
			v, ok = int(t), err == nil
		case obd.PIDAccelerometer, obd.PIDGyroscope:
			tried++
			sensor := e.Accel
			if pid == obd.PIDGyroscope {
				sensor = e.Gyro
			}
			xyz, err := sensor()
			vec, ok = &xyz, err == nil
		}
		if !ok {
			continue
		}
		info := obd.Lookup(pid)
		readings = append(readings, Reading{PID: pid, Name: info.Name, Unit: info.Unit, Value: v, Vector: vec, Time: now})
	}
	return readings, tried
}

// sample reads the supported configured PIDs and returns how many
// succeeded out of how many were attempted.
func (m *Monitor) sample() (int, int) {
	var pids []byte
	for _, pid := range m.cfg.PIDs {
		if obd.IsPseudoPID(pid) || m.engine.IsSupported(pid) {
			pids = append(pids, pid)
		}
	}
	readings, tried := Read(m.engine, pids)
	volts, verr := m.engine.Voltage()

	m.mu.Lock()
	m.snap.Readings = readings
	if verr == nil {
		m.snap.Voltage = volts
	}
	m.snap.Errors = m.engine.Errors()
	m.snap.Updated = time.Now()
	listeners := slices.Clone(m.listeners)
	m.mu.Unlock()

	for _, r := range readings {
		for _, f := range listeners {
			f(r)
		}
	}
	return len(readings), tried
}

func (m *Monitor) readDTCs() {
	codes, err := m.engine.ReadDTC()
	if err != nil {
		log.Debug("dtc read failed", zap.Error(err))
		return
	}
	mil, err := m.engine.IsMILOn()
	if err != nil {
		log.Debug("monitor status read failed", zap.Error(err))
	}
	m.mu.Lock()
	m.snap.DTCs = codes
	m.snap.MIL = mil
	m.mu.Unlock()
}

func (m *Monitor) setState(s obd.State) {
	m.mu.Lock()
	m.snap.State = s
	m.mu.Unlock()
}
