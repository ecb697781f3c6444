package dtmf

import (
	"fmt"

	"github.com/openzap/openzap/internal/tone"
)

// Generator synthesises DTMF digits into linear PCM, the equivalent of
// teletone_mux_tones against a channel's tone_session (spec §4.6
// handle_dtmf). OnMs/OffMs are the channel's validated DTMF on/off
// periods (10..1000ms, spec §4.5 SET_DTMF_ON/OFF_PERIOD).
type Generator struct {
	Rate   int
	OnMs   int
	OffMs  int
	Volume float64
}

// NewGenerator builds a generator at the given sample rate with the
// channel's configured on/off durations.
func NewGenerator(rate, onMs, offMs int) *Generator {
	return &Generator{Rate: rate, OnMs: onMs, OffMs: offMs, Volume: 0.3}
}

// Synthesize renders one DTMF digit as on-period tone followed by
// off-period silence, returning little-endian 16-bit linear PCM.
func (g *Generator) Synthesize(digit byte) ([]byte, error) {
	row, col, ok := freqsOf(digit)
	if !ok {
		return nil, fmt.Errorf("dtmf: %q is not a valid DTMF digit", digit)
	}

	onSamples := g.OnMs * g.Rate / 1000
	offSamples := g.OffMs * g.Rate / 1000
	out := make([]byte, (onSamples+offSamples)*2)

	sess := tone.NewSession(&tone.Pattern{OnMs: g.OnMs, OffMs: 0, Freqs: []float64{row, col}}, g.Rate)
	sess.SetVolume(g.Volume)
	sess.Generate(out[:onSamples*2], onSamples)
	// trailing offSamples*2 bytes are already zero (silence)

	return out, nil
}

// SynthesizeString renders every valid digit in digits back to back,
// the string form handle_dtmf drains from gen_dtmf_buffer (with the
// leading 'F' flash marker already stripped by the caller).
func (g *Generator) SynthesizeString(digits string) ([]byte, int, error) {
	var out []byte
	n := 0
	for i := 0; i < len(digits); i++ {
		pcm, err := g.Synthesize(digits[i])
		if err != nil {
			return nil, 0, err
		}
		out = append(out, pcm...)
		n++
	}
	return out, n, nil
}
