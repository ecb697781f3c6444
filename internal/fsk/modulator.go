package fsk

import "math"

// frame encodes one byte as an asynchronous 10-bit serial frame: a
// space (0) start bit, 8 data bits least-significant-bit first, and a
// mark (1) stop bit — the framing real caller-ID delivery uses over
// Bell202 at 1200 baud.
func frame(b byte) []bool {
	bits := make([]bool, 0, 10)
	bits = append(bits, false) // start bit
	for i := 0; i < 8; i++ {
		bits = append(bits, (b>>uint(i))&1 == 1)
	}
	bits = append(bits, true) // stop bit
	return bits
}

// Modulator renders a caller-ID DataState as Bell202 AFSK linear PCM,
// the equivalent of zap_fsk_modulator_init + zap_fsk_modulator_send_all
// (spec §4.7 send_fsk_data). lead/trail/prefix mirror the original's
// send_fsk_data parameters (ms of mark-tone preamble, mark-tone
// trailer, and leading silence respectively).
type Modulator struct {
	Rate    int
	LeadMs  int
	TrailMs int
	PrefixMs int
	DBLevel float64
}

// NewModulator builds a modulator with the channel's rate and the
// lead/trail/prefix triple send_fsk_data selects based on token count:
// (80,5,0) for more than one attached token, (180,5,300) otherwise.
func NewModulator(rate, leadMs, trailMs, prefixMs int, dbLevel float64) *Modulator {
	return &Modulator{Rate: rate, LeadMs: leadMs, TrailMs: trailMs, PrefixMs: prefixMs, DBLevel: dbLevel}
}

// Modulate renders ds to linear PCM (little-endian 16-bit samples).
func (m *Modulator) Modulate(ds *DataState) []byte {
	data := Encode(ds)
	return m.modulateBytes(data)
}

func (m *Modulator) modulateBytes(data []byte) []byte {
	samplesPerBit := m.Rate * 1000 / (BaudRate * 1000)
	if samplesPerBit == 0 {
		samplesPerBit = 1
	}

	amp := dbToLinear(m.DBLevel) * 32767.0
	var phase float64
	var out []byte

	appendSilence := func(ms int) {
		n := ms * m.Rate / 1000
		out = append(out, make([]byte, n*2)...)
	}
	appendTone := func(freq float64, ms int) {
		n := ms * m.Rate / 1000
		step := 2 * math.Pi * freq / float64(m.Rate)
		for i := 0; i < n; i++ {
			v := int16(amp * math.Sin(phase))
			out = append(out, byte(v), byte(v>>8))
			phase += step
			if phase > 2*math.Pi {
				phase -= 2 * math.Pi
			}
		}
	}
	appendBit := func(bit bool) {
		freq := SpaceFreq
		if bit {
			freq = MarkFreq
		}
		step := 2 * math.Pi * freq / float64(m.Rate)
		for i := 0; i < samplesPerBit; i++ {
			v := int16(amp * math.Sin(phase))
			out = append(out, byte(v), byte(v>>8))
			phase += step
			if phase > 2*math.Pi {
				phase -= 2 * math.Pi
			}
		}
	}

	appendSilence(m.PrefixMs)
	appendTone(MarkFreq, m.LeadMs)
	for _, b := range data {
		for _, bit := range frame(b) {
			appendBit(bit)
		}
	}
	appendTone(MarkFreq, m.TrailMs)

	return out
}

func dbToLinear(db float64) float64 {
	if db == 0 {
		return 1.0
	}
	return math.Pow(10, db/20)
}

// Encode serializes a DataState into the raw message bytes transmitted
// after the channel-seizure/mark preamble: a message type byte
// (0x80 MDMF, 0x04 SDMF), a length byte, the payload, and a trailing
// two's-complement checksum byte (all message bytes sum to 0 mod 256),
// mirroring the Bellcore GR-30-CORE
// caller-ID message structure zap_channel_send_fsk_data builds via the
// teletone FSK modulator's caller-supplied data state.
func Encode(ds *DataState) []byte {
	var payload []byte
	msgType := byte(0x04)

	if ds.IsMDMF {
		msgType = 0x80
		for _, f := range ds.Fields {
			payload = append(payload, byte(f.Type), byte(len(f.Value)))
			payload = append(payload, f.Value...)
		}
	} else {
		payload = []byte(ds.SDMF)
	}

	msg := make([]byte, 0, len(payload)+2)
	msg = append(msg, msgType, byte(len(payload)))
	msg = append(msg, payload...)

	var sum byte
	for _, b := range msg {
		sum += b
	}
	checksum := byte(0x100 - int(sum)&0xff)
	msg = append(msg, checksum)

	return msg
}
