package obd

// The adapter link is noisy, so hex parsing never fails. Malformed digits
// yield zero or a partial value instead of an error.

// hexNibble returns the value of an ASCII hex digit.
func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}

// HexToU16 accumulates up to four hex digits from data, skipping spaces. It
// stops at the first character that is neither a space nor a hex digit.
func HexToU16(data []byte) uint16 {
	var v uint16
	digits := 0
	for _, c := range data {
		if digits == 4 || c == 0 {
			break
		}
		if c == ' ' {
			continue
		}
		n, ok := hexNibble(c)
		if !ok {
			break
		}
		v = v<<4 | uint16(n)
		digits++
	}
	return v
}

// HexToU8 decodes exactly two hex characters. Anything else yields 0.
func HexToU8(data []byte) byte {
	return ParseHex8(data).Value
}

// HexResult is the outcome of a strict hex parse.
type HexResult struct {
	Value byte
	OK    bool // false when the input was malformed
}

// ParseHex8 decodes two hex characters and reports whether they were valid.
func ParseHex8(data []byte) HexResult {
	if len(data) < 2 {
		return HexResult{}
	}
	hi, ok1 := hexNibble(data[0])
	lo, ok2 := hexNibble(data[1])
	if !ok1 || !ok2 {
		return HexResult{}
	}
	return HexResult{Value: hi<<4 | lo, OK: true}
}

const hexDigits = "0123456789ABCDEF"

// appendHex8 appends b as two uppercase hex digits.
func appendHex8(dst []byte, b byte) []byte {
	return append(dst, hexDigits[b>>4], hexDigits[b&0x0F])
}
