package tone

import "math"

// goertzelHitThreshold is the minimum normalized Goertzel magnitude
// counted as "tone present" for progress-tone detection.
const goertzelHitThreshold = 5.0

// Detector runs a bank of Goertzel filters, one per frequency in a
// DetectSet, over successive blocks of linear PCM samples. It is the
// multi-tone finder the media pipeline's PROGRESS_DETECT path drives
// per span tone kind (spec §4.6), grounded on the standard single-bin
// Goertzel algorithm (the same building block samoyed's dsp.go uses
// for its mark/space filters, generalized here to arbitrary frequency
// sets instead of two fixed AFSK tones).
type Detector struct {
	rate  int
	freqs []float64
	coefs []float64
}

// NewDetector builds a detector for a tone kind's configured frequency
// set at the given sample rate.
func NewDetector(set DetectSet, rate int) *Detector {
	d := &Detector{rate: rate, freqs: set.Freqs, coefs: make([]float64, len(set.Freqs))}
	for i, f := range set.Freqs {
		d.coefs[i] = 2 * math.Cos(2*math.Pi*f/float64(rate))
	}
	return d
}

// Detect runs the Goertzel filter bank over one block of 16-bit linear
// PCM samples (little-endian) and reports whether every configured
// frequency is present above threshold, matching the original's
// "match all configured freqs in this block" multi-tone semantics.
func (d *Detector) Detect(pcm []byte) bool {
	if len(d.freqs) == 0 {
		return false
	}
	n := len(pcm) / 2
	if n == 0 {
		return false
	}
	samples := make([]float64, n)
	for i := 0; i < n; i++ {
		samples[i] = float64(int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8))
	}

	for _, coef := range d.coefs {
		var q1, q2 float64
		for _, s := range samples {
			q0 := coef*q1 - q2 + s
			q2 = q1
			q1 = q0
		}
		magnitude := math.Sqrt(q1*q1+q2*q2-q1*q2*coef) / float64(n)
		if magnitude < goertzelHitThreshold {
			return false
		}
	}
	return true
}
