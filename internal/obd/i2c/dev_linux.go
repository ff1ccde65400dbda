//go:build linux

package i2c

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// ioctl selecting the target address of subsequent reads and writes
const i2cSlave = 0x0703

// DevBus is an I2C bus exposed by the kernel as /dev/i2c-N.
type DevBus struct {
	mu   sync.Mutex
	f    *os.File
	addr uint16
	set  bool
}

// OpenBus opens a Linux I2C character device such as /dev/i2c-1.
func OpenBus(path string) (*DevBus, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &DevBus{f: f}, nil
}

// Tx writes w then reads r, as two separate bus transfers.
func (b *DevBus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	fd := int(b.f.Fd())
	if !b.set || b.addr != addr {
		if err := unix.IoctlSetInt(fd, i2cSlave, int(addr)); err != nil {
			return fmt.Errorf("select address %#x: %w", addr, err)
		}
		b.addr, b.set = addr, true
	}
	if len(w) > 0 {
		if _, err := unix.Write(fd, w); err != nil {
			return fmt.Errorf("i2c write: %w", err)
		}
	}
	if len(r) > 0 {
		if _, err := unix.Read(fd, r); err != nil {
			return fmt.Errorf("i2c read: %w", err)
		}
	}
	return nil
}

func (b *DevBus) ReadRegister(addr uint8, reg uint8, buf []byte) error {
	return b.Tx(uint16(addr), []byte{reg}, buf)
}

func (b *DevBus) WriteRegister(addr uint8, reg uint8, buf []byte) error {
	return b.Tx(uint16(addr), append([]byte{reg}, buf...), nil)
}

func (b *DevBus) Close() error {
	return b.f.Close()
}
