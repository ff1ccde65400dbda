package obd

import (
	"bytes"
	"fmt"

	"obdkit/internal/models"
)

var dtcMarker = []byte("43")

// ReadDTC requests the stored trouble codes (mode 03).
func (e *Engine) ReadDTC() ([]models.DTCEntry, error) {
	n := e.SendCommand("03\r", e.frame[:], TimeoutLong)
	if n == 0 {
		return nil, fmt.Errorf("03: %w", ErrNoResponse)
	}
	return parseDTCs(e.frame[:n]), nil
}

// parseDTCs decodes every "43" reply line into trouble codes. Each code is
// two bytes; 00 00 pads unused slots.
func parseDTCs(reply []byte) []models.DTCEntry {
	var results []models.DTCEntry
	for _, line := range bytes.FieldsFunc(reply, func(r rune) bool { return r == '\r' || r == '\n' }) {
		parts := bytes.Fields(line)
		if len(parts) == 0 || !bytes.Equal(parts[0], dtcMarker) {
			continue
		}
		for j := 1; j+1 < len(parts); j += 2 {
			a := ParseHex8(parts[j])
			b := ParseHex8(parts[j+1])
			if !a.OK || !b.OK {
				break
			}
			if a.Value == 0 && b.Value == 0 {
				continue
			}
			code := DecodeDTC(a.Value, b.Value)
			results = append(results, models.DTCEntry{Code: code, Description: DTCDescription(code)})
		}
	}
	return results
}

// DecodeDTC formats a two byte trouble code per SAE J2012, e.g. 0x01 0x33
// becomes P0133.
func DecodeDTC(a, b byte) string {
	letters := [4]byte{'P', 'C', 'B', 'U'}
	return fmt.Sprintf("%c%X%X%X%X", letters[a>>6], (a&0x30)>>4, a&0x0F, b>>4, b&0x0F)
}

var dtcDescriptions = map[string]string{
	"P0101": "Mass Air Flow Circuit Range/Performance",
	"P0102": "Mass Air Flow Circuit Low Input",
	"P0103": "Mass Air Flow Circuit High Input",
	"P0133": "O2 Sensor Circuit Slow Response (Bank 1 Sensor 1)",
	"P0171": "System Too Lean (Bank 1)",
	"P0172": "System Too Rich (Bank 1)",
	"P0174": "System Too Lean (Bank 2)",
	"P0175": "System Too Rich (Bank 2)",
	"P0300": "Random/Multiple Cylinder Misfire Detected",
	"P0301": "Cylinder 1 Misfire Detected",
	"P0302": "Cylinder 2 Misfire Detected",
	"P0303": "Cylinder 3 Misfire Detected",
	"P0304": "Cylinder 4 Misfire Detected",
	"P0401": "Exhaust Gas Recirculation Flow Insufficient",
	"P0402": "Exhaust Gas Recirculation Flow Excessive",
	"P0420": "Catalyst System Efficiency Below Threshold",
	"P0440": "Evaporative Emission Control System Malfunction",
	"P0442": "Evaporative Emission Control System Leak Detected (Small)",
	"P0455": "Evaporative Emission Control System Leak Detected (Large)",
	"P0500": "Vehicle Speed Sensor Malfunction",
	"P0505": "Idle Control System Malfunction",
	"B1000": "Body Control Module Malfunction",
	"U0001": "High Speed CAN Communication Bus",
	"U0100": "Lost Communication With ECM/PCM",
	"U0101": "Lost Communication With TCM",
	"U0121": "Lost Communication With ABS Module",
}

// DTCDescription returns a description for common trouble codes.
func DTCDescription(code string) string {
	if desc, ok := dtcDescriptions[code]; ok {
		return desc
	}
	return "Unknown DTC"
}
