//go:build !linux

package i2c

import (
	"fmt"

	"obdkit/internal/obd"
)

// DevBus is only available on Linux.
type DevBus struct{}

func OpenBus(path string) (*DevBus, error) {
	return nil, fmt.Errorf("open %s: %w", path, obd.ErrUnsupported)
}

func (b *DevBus) Tx(addr uint16, w, r []byte) error { return obd.ErrUnsupported }

func (b *DevBus) ReadRegister(addr uint8, reg uint8, buf []byte) error { return obd.ErrUnsupported }

func (b *DevBus) WriteRegister(addr uint8, reg uint8, buf []byte) error { return obd.ErrUnsupported }

func (b *DevBus) Close() error { return nil }
