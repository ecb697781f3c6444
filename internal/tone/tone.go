// Package tone implements the per-span tone map (spec §4.9) and the
// minimal progress-tone generation/detection kernels the media pipeline
// drives inline on every audio frame (spec §4.6). The teletone DSP
// kernels are listed as deliberately out of the core's scope (spec §1);
// this package supplies just enough of a real implementation — a
// Goertzel multi-frequency detector and a cadence-driven tone
// generator — for the pipeline to be exercised end to end without an
// external DSP library, grounded on the pack's one DSP source
// (samoyed's Goertzel-style multi-tone detector shape in dsp.go).
package tone

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies a tone slot in a span's generation/detection maps.
// Index 0 (None) is unused, matching the original's 1-based
// ZAP_TONEMAP_* enum with slot 0 reserved for "total" bookkeeping.
type Kind int

const (
	None Kind = iota
	Dial
	Ring
	Busy
	Attn
	Callwaiting
	CallwaitingAck
	numKinds
)

var kindNames = map[string]Kind{
	"dial":            Dial,
	"ring":            Ring,
	"busy":            Busy,
	"attn":            Attn,
	"callwaiting":     Callwaiting,
	"callwaiting_ack": CallwaitingAck,
}

// ParseKind maps a tones.conf tone name to its Kind, case-insensitively.
// Returns None, false for an unrecognized name.
func ParseKind(name string) (Kind, bool) {
	k, ok := kindNames[strings.ToLower(name)]
	return k, ok
}

// DetectSet is the set of frequencies (Hz) a progress-tone detector
// looks for under one Kind, mirroring tone_detect_map[kind].freqs.
type DetectSet struct {
	Freqs []float64
}

// Map holds a span's tone generation patterns and detection frequency
// sets, indexed by Kind (spec §3 Span.tone_map / tone_detect_map).
type Map struct {
	Generate [numKinds]string
	Detect   [numKinds]DetectSet
}

// NewDefaultMap builds the hard-coded default tone map a freshly
// created span gets before any tones.conf is loaded, matching
// zap_span_create's DIAL/RING/BUSY/ATTN defaults.
func NewDefaultMap() *Map {
	m := &Map{}
	m.Generate[Dial] = "%(1000,0,350,440)"
	m.Generate[Ring] = "%(2000,4000,440,480)"
	m.Generate[Busy] = "%(500,500,480,620)"
	m.Generate[Attn] = "%(100,100,1400,2060,2450,2600)"
	return m
}

// SetDetect parses a comma-separated list of frequencies (as
// zap_span_load_tones does with atof per token) into kind's detect set.
func (m *Map) SetDetect(kind Kind, csv string) error {
	parts := strings.Split(csv, ",")
	freqs := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return fmt.Errorf("tone: invalid detect frequency %q: %w", p, err)
		}
		freqs = append(freqs, f)
	}
	if len(freqs) == 0 {
		return fmt.Errorf("tone: empty detect list for kind %d", kind)
	}
	m.Detect[kind] = DetectSet{Freqs: freqs}
	return nil
}

// SetGenerate records a raw generation pattern string for kind,
// verbatim, the way zap_span_load_tones copies the config value without
// parsing it (the teletone pattern grammar is interpreted later by the
// generation Session, not at load time).
func (m *Map) SetGenerate(kind Kind, pattern string) {
	m.Generate[kind] = pattern
}
