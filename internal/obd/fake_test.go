package obd

import "time"

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type scriptSource struct {
	data []byte
}

func (s *scriptSource) TryReadByte() (byte, bool) {
	if len(s.data) == 0 {
		return 0, false
	}
	b := s.data[0]
	s.data = s.data[1:]
	return b, true
}

// fakeLink answers known commands with canned replies. Unknown commands get
// no reply at all.
type fakeLink struct {
	*Framer
	src        *scriptSource
	clock      *fakeClock
	replies    map[string]string
	writes     []string
	idles      int
	sequential bool
	baud       int
	closed     bool
}

func newFakeLink(replies map[string]string) *fakeLink {
	l := &fakeLink{
		src:     &scriptSource{},
		clock:   &fakeClock{now: time.Unix(0, 0)},
		replies: replies,
	}
	l.Framer = &Framer{
		Source: l.src,
		Clock:  l.clock,
		IdleFunc: func() {
			l.idles++
			l.clock.now = l.clock.now.Add(10 * time.Millisecond)
		},
	}
	return l
}

func (l *fakeLink) Write(p []byte) error {
	l.writes = append(l.writes, string(p))
	if r, ok := l.replies[string(p)]; ok {
		l.src.data = append(l.src.data, r...)
	}
	return nil
}

func (l *fakeLink) Sequential() bool { return l.sequential }

func (l *fakeLink) SetBaud(baud int) error {
	l.baud = baud
	return nil
}

func (l *fakeLink) Close() error {
	l.closed = true
	return nil
}

func (l *fakeLink) wrote(cmd string) bool {
	for _, w := range l.writes {
		if w == cmd {
			return true
		}
	}
	return false
}

func newTestEngine(l *fakeLink, opts ...Option) *Engine {
	opts = append([]Option{WithDelay(func(time.Duration) {})}, opts...)
	return New(l, opts...)
}
