package obd

import "time"

const (
	promptByte = '>'
	waitByte   = '.'
)

// ByteSource yields received bytes without blocking. ok is false when no
// byte is available right now.
type ByteSource interface {
	TryReadByte() (b byte, ok bool)
}

// Framer turns a serial byte stream into reply frames ended by the adapter
// prompt.
type Framer struct {
	Source ByteSource
	Clock  Clock
	// IdleFunc runs whenever the source is empty.
	IdleFunc func()
}

// NewFramer creates a framer on src with the system clock and default idling.
func NewFramer(src ByteSource) *Framer {
	return &Framer{Source: src, Clock: SystemClock{}, IdleFunc: DefaultIdle}
}

// Idle runs the idle callback.
func (f *Framer) Idle() {
	if f.IdleFunc != nil {
		f.IdleFunc()
	}
}

// Receive accumulates bytes into buf until the prompt, a full buffer or the
// timeout. Three consecutive dots mean the adapter is still working: the
// frame restarts once per run of dots and the wait is extended to
// TimeoutLong.
func (f *Framer) Receive(buf []byte, timeout time.Duration) int {
	n := 0
	dots := 0
	// waiting is set for the rest of a dot run that already reset the frame
	waiting := false
	limit := len(buf) - 1
	start := f.Clock.Now()

	for {
		if buf != nil && n >= limit {
			break
		}
		c, ok := f.Source.TryReadByte()
		if !ok {
			if f.Clock.Now().Sub(start) > timeout {
				break
			}
			f.Idle()
			continue
		}

		if n > 2 && c == promptByte {
			break
		}

		if c == waitByte {
			if waiting {
				continue
			}
			dots++
		} else {
			dots = 0
			waiting = false
		}
		if dots == 3 {
			n = 0
			dots = 0
			waiting = true
			timeout = TimeoutLong
			start = f.Clock.Now()
			continue
		}

		if buf != nil {
			buf[n] = c
		}
		n++
	}

	if buf != nil && limit >= 0 {
		buf[n] = 0
	}
	return n
}
