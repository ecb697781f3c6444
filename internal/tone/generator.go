package tone

import "math"

// Session is a single-channel tone generation session, the equivalent
// of the original's teletone_generation_session_t used by SEND_DTMF
// and progress-tone playback (spec §4.5, §4.7). It synthesises 16-bit
// linear PCM samples for one parsed cadence Pattern at a given sample
// rate, cycling the on/off phase and advancing each oscillator's phase
// across calls so repeated Generate calls produce a continuous tone.
type Session struct {
	rate    int
	pattern *Pattern
	phase   []float64 // radians per oscillator, carried across calls
	onSamp  int
	offSamp int
	inOn    bool
	cursor  int // samples elapsed in the current phase
	volume  float64 // linear amplitude, 0..1
}

// NewSession creates a generation session for pattern at the given
// sample rate (typically channel.rate, 8000 for narrowband telephony).
func NewSession(pattern *Pattern, rate int) *Session {
	return &Session{
		rate:    rate,
		pattern: pattern,
		phase:   make([]float64, len(pattern.Freqs)),
		onSamp:  pattern.OnMs * rate / 1000,
		offSamp: pattern.OffMs * rate / 1000,
		inOn:    true,
		volume:  0.25,
	}
}

// SetVolume sets the linear amplitude of the mixed oscillators (0..1).
func (s *Session) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	s.volume = v
}

// Generate fills buf with n little-endian 16-bit linear PCM samples
// (len(buf) must be n*2) mixing the pattern's frequencies during the
// "on" phase and silence during "off", cycling continuously. A pattern
// with OffMs == 0 never goes silent.
func (s *Session) Generate(buf []byte, n int) {
	amp := s.volume * 32767.0 / float64(max(1, len(s.pattern.Freqs)))

	for i := 0; i < n; i++ {
		var sample float64

		if s.inOn {
			for fi, f := range s.pattern.Freqs {
				step := 2 * math.Pi * f / float64(s.rate)
				sample += amp * math.Sin(s.phase[fi])
				s.phase[fi] += step
				if s.phase[fi] > 2*math.Pi {
					s.phase[fi] -= 2 * math.Pi
				}
			}
		}

		v := int16(sample)
		buf[2*i] = byte(v)
		buf[2*i+1] = byte(v >> 8)

		s.cursor++
		if s.offSamp == 0 {
			continue // continuous tone, never silences
		}
		if s.inOn && s.cursor >= s.onSamp {
			s.inOn, s.cursor = false, 0
		} else if !s.inOn && s.cursor >= s.offSamp {
			s.inOn, s.cursor = true, 0
		}
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
