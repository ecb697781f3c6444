// Package dtmf implements DTMF digit detection and generation, the
// inline per-frame kernel the media pipeline's DTMF_DETECT path and the
// channel's SEND_DTMF command drive (spec §4.5, §4.6). Like the other
// teletone kernels, the original's DTMF mux/demux is out of the core's
// scope (spec §1); this package is the minimal real implementation the
// pipeline needs to be exercisable end to end, built on the same
// Goertzel filter bank as internal/tone.
package dtmf

import "strings"

// rowFreqs and colFreqs are the eight standard DTMF tone frequencies
// (ITU-T Q.23/Q.24), matrixed into the 16-key keypad.
var (
	rowFreqs = [4]float64{697, 770, 852, 941}
	colFreqs = [4]float64{1209, 1336, 1477, 1633}
)

// keypad maps [row][col] to the ASCII digit.
var keypad = [4][4]byte{
	{'1', '2', '3', 'A'},
	{'4', '5', '6', 'B'},
	{'7', '8', '9', 'C'},
	{'*', '0', '#', 'D'},
}

// IsDigit reports whether b is a valid DTMF digit, mirroring the
// original's zap_is_dtmf predicate used by queue_dtmf.
func IsDigit(b byte) bool {
	switch {
	case b >= '0' && b <= '9':
		return true
	case b == '*' || b == '#':
		return true
	case b >= 'A' && b <= 'D':
		return true
	default:
		return false
	}
}

// Filter returns s with every non-DTMF character dropped.
func Filter(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if IsDigit(s[i]) {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// freqsOf returns the row/col frequency pair for a digit, or ok=false
// if b is not a valid DTMF digit.
func freqsOf(b byte) (row, col float64, ok bool) {
	for r, rf := range rowFreqs {
		for c, cf := range colFreqs {
			if keypad[r][c] == b {
				return rf, cf, true
			}
		}
	}
	return 0, 0, false
}
