package i2c

// QuerySet is the bounded list of PIDs the adapter samples on its own. It
// never holds duplicates; when full, the oldest entry makes room.
type QuerySet struct {
	pids [MaxPIDs]byte
	n    int
}

// Add appends pid unless it is already present. Re-adding a PID does not
// move it.
func (s *QuerySet) Add(pid byte) {
	if s.Contains(pid) {
		return
	}
	if s.n == MaxPIDs {
		copy(s.pids[:], s.pids[1:])
		s.n--
	}
	s.pids[s.n] = pid
	s.n++
}

// Contains reports whether pid is in the set.
func (s *QuerySet) Contains(pid byte) bool {
	for _, p := range s.pids[:s.n] {
		if p == pid {
			return true
		}
	}
	return false
}

// Len returns the number of entries.
func (s *QuerySet) Len() int {
	return s.n
}

// PIDs returns the entries, oldest first.
func (s *QuerySet) PIDs() []byte {
	return append([]byte(nil), s.pids[:s.n]...)
}
