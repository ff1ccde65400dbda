package obd

import "time"

const (
	// TimeoutShort is the default wait for a reply.
	TimeoutShort = 1000 * time.Millisecond
	// TimeoutLong applies to init commands and after a "please wait" signal.
	TimeoutLong = 15000 * time.Millisecond
)

// Transport moves bytes between the engine and an adapter. Serial and I2C
// links differ only in how they frame replies.
type Transport interface {
	// Write sends a complete command.
	Write(p []byte) error
	// Receive frames one reply into buf and returns its length. buf is
	// NUL-terminated at the returned length. A nil buf drains the reply.
	Receive(buf []byte, timeout time.Duration) int
	// Idle yields while waiting for the adapter.
	Idle()
}

// Rebauder is implemented by transports that can reopen their link at a new
// baud rate.
type Rebauder interface {
	SetBaud(baud int) error
}

// Sequential is implemented by transports that cannot carry more than one
// outstanding query. The engine sends batched reads one PID at a time on them.
type Sequential interface {
	Sequential() bool
}

// Clock is a monotonic time source.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock, which carries Go's monotonic reading.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// IdleSleep returns an idle callback that sleeps for d.
func IdleSleep(d time.Duration) func() {
	return func() { time.Sleep(d) }
}

// DefaultIdle is the pause between polls of an empty transport.
var DefaultIdle = IdleSleep(10 * time.Millisecond)
