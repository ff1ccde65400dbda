package cleardtc

import (
	"bytes"
	"testing"

	"obdkit/internal/config"
	"obdkit/internal/session"
)

func TestClearCodes(t *testing.T) {
	s, err := session.Open(config.Config{Mock: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	s.Transport.IdleFunc = func() {}
	if err := s.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	var buf bytes.Buffer
	if err := clearCodes(&buf, s.Engine); err != nil {
		t.Fatalf("clearCodes: %v", err)
	}
	if got := buf.String(); got != "Cleared 1 trouble code(s).\n" {
		t.Errorf("output = %q", got)
	}
	mil, err := s.Engine.IsMILOn()
	if err != nil || mil {
		t.Errorf("MIL = %v, %v after clearing", mil, err)
	}
}
