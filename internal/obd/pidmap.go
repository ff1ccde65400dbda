package obd

// PIDMap records which PIDs the vehicle reported as supported. Bit pid-1 is
// stored MSB first.
type PIDMap [32]byte

// capabilityPIDs each return a bitmap of the following 32 PIDs.
var capabilityPIDs = [4]byte{0x00, 0x20, 0x40, 0x60}

// IsSupported reports whether pid is supported. PIDs from 0x7F upward are
// not covered by the map and are always reported as supported.
func (m *PIDMap) IsSupported(pid byte) bool {
	if pid >= 0x7F {
		return true
	}
	pid--
	return m[pid>>3]&(0x80>>(pid&0x07)) != 0
}

// Reset clears every bit.
func (m *PIDMap) Reset() {
	*m = PIDMap{}
}

// setBlock stores the n-th byte of capability block i.
func (m *PIDMap) setBlock(i, n int, bits byte) {
	m[i*4+n] = bits
}

// Supported lists the PIDs with their bit set, in ascending order.
func (m *PIDMap) Supported() []byte {
	var pids []byte
	for pid := 1; pid < 0x7F; pid++ {
		if m.IsSupported(byte(pid)) {
			pids = append(pids, byte(pid))
		}
	}
	return pids
}

// parseCapability copies up to four bitmap bytes from a capability reply.
// data is the payload after "41 XX ", e.g. "BE 1F A8 13".
func (m *PIDMap) parseCapability(i int, data []byte) {
	for n := 0; n < 4; n++ {
		off := n * 3
		if n > 0 && (off-1 >= len(data) || data[off-1] != ' ') {
			break
		}
		if off+2 > len(data) {
			break
		}
		m.setBlock(i, n, HexToU8(data[off:]))
	}
}
