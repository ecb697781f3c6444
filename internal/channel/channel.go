// Package channel implements a single voice circuit (spec §3 "Channel",
// §4.2-§4.5): its state machine, flag bitset, token list, and the media
// buffers the pipeline in internal/media drains and fills. Grounded on
// zap_io.c's zap_channel_* functions for naming and sequencing, and on
// flowpbx's internal/media.Session for the "mutex-guarded struct with
// atomic counters plus a slog logger" shape.
package channel

import (
	"log/slog"
	"os"
	"sync"

	"github.com/openzap/openzap/internal/codec"
	"github.com/openzap/openzap/internal/driver"
	"github.com/openzap/openzap/internal/dtmf"
	"github.com/openzap/openzap/internal/flags"
	"github.com/openzap/openzap/internal/fsk"
	"github.com/openzap/openzap/internal/status"
	"github.com/openzap/openzap/internal/tone"
)

// Type identifies the hardware/protocol nature of a channel's circuit
// (spec §3 Channel "channel type").
type Type int

const (
	TypeB Type = iota
	TypeDQ921
	TypeDQ931
	TypeFXS
	TypeFXO
	TypeEM
	TypeCAS
)

func (t Type) String() string {
	switch t {
	case TypeB:
		return "B"
	case TypeDQ921:
		return "DQ921"
	case TypeDQ931:
		return "DQ931"
	case TypeFXS:
		return "FXS"
	case TypeFXO:
		return "FXO"
	case TypeEM:
		return "EM"
	case TypeCAS:
		return "CAS"
	default:
		return "UNKNOWN"
	}
}

const (
	// MaxTokens bounds the token list (spec §3 "up to MAX_TOKENS").
	MaxTokens = 10
	// TokenStrlen bounds each token's length.
	TokenStrlen = 255
)

// SpanRef is the narrow view of the owning span a Channel needs: its
// state map (if any), dtmf-hangup string, and active_count bookkeeping
// and STATE_CHANGE flag. internal/span.Span implements this; the
// interface exists so internal/channel never imports internal/span,
// keeping the span -> channel ownership direction one-way.
type SpanRef interface {
	StateMap() StateMapper
	IsSuspended() bool
	AdjustActiveCount(delta int)
	SetStateChange()
	DTMFHangup() string
	ToneMap() *tone.Map
	// Emit dispatches an event through chanCallback if set, else the
	// span's own callback (spec §4.6 "the channel or span callback,
	// channel takes precedence if set on both").
	Emit(chanCallback driver.Callback, chanID uint32, typ driver.EventType, payload any)
}

// Buffers groups the four/five media buffers a Channel owns (spec §3):
// captured DTMF, pending outbound DTMF digits, synthesised DTMF PCM,
// modulated caller-ID PCM, and the rolling DTMF-hangup window.
type Buffers struct {
	DigitBuffer    []byte // captured DTMF queue (ASCII digits)
	GenDTMFBuffer  []byte // pending outbound DTMF digits (ASCII)
	DTMFBuffer     []byte // synthesised PCM (SLIN)
	FSKBuffer      []byte // modulated caller-ID PCM (SLIN)
	DTMFHangupBuf  []byte // rolling window, length == span.DTMFHangupLen()
}

// Channel is one voice circuit within a span (spec §3).
type Channel struct {
	Span   SpanRef
	SpanID uint32
	ChanID uint32
	Type   Type

	mu sync.Mutex

	Flags  flags.Set
	Alarms flags.Alarm

	state     State
	lastState State
	initState State

	tokens     [MaxTokens]string
	tokenCount int

	Caller driver.CallerData

	NativeCodec    codec.Codec
	EffectiveCodec codec.Codec
	NativeInterval int // ms
	EffInterval    int // ms
	PacketLen      int
	SampleRate     int

	DTMFOnMs  int
	DTMFOffMs int

	Buffers Buffers

	// DetectedTones/NeededTones are indexed by tone.Kind; slot 0 is the
	// running total across all kinds (spec §4.6 PROGRESS_DETECT).
	DetectedTones [8]int
	NeededTones   [8]int

	Vars map[string]string

	BufferDelay    int // frames to wait before draining FSK/DTMF (spec §4.6/§4.7)
	SkipReadFrames int // suppress upstream media while synthesising (spec §4.6)

	LastError string

	Logger *slog.Logger

	// EventCallback, when set, takes precedence over the owning span's
	// callback for events raised on this channel (spec §4.6 "the
	// channel or span callback, channel takes precedence if set on
	// both").
	EventCallback driver.Callback

	// Inline DSP kernels, lazily allocated by the command dispatcher
	// (spec §4.5) and driven per-frame by internal/media.
	ToneSession  *tone.Session
	DTMFGen      *dtmf.Generator
	DTMFDetector *dtmf.Detector
	ToneDetect   [8]*tone.Detector // indexed by tone.Kind
	FSKDemod     *fsk.Demodulator

	// TraceIn/TraceOut are the raw capture files opened by the
	// TRACE_INPUT/TRACE_OUTPUT commands (spec §3 "auxiliary fds pair");
	// nil when inactive.
	TraceIn, TraceOut *os.File
}

// New constructs a Channel in its initial DOWN state (spec §3
// Lifecycle: "Channel: created at span configuration").
func New(span SpanRef, spanID, chanID uint32, typ Type, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Channel{
		Span:           span,
		SpanID:         spanID,
		ChanID:         chanID,
		Type:           typ,
		state:          StateDown,
		lastState:      StateDown,
		initState:      StateDown,
		NativeCodec:    codec.SLIN,
		EffectiveCodec: codec.SLIN,
		DTMFOnMs:       100,
		DTMFOffMs:      100,
		Vars:           make(map[string]string),
		Logger:         logger.With("span", spanID, "chan", chanID),
	}
	c.Flags.Set(flags.ChannelConfigured | flags.ChannelReady)
	return c
}

// State returns the channel's current call state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// StateLocked is State for a caller that already holds c's mutex (spec
// §4.6 media pipeline, which locks once per frame).
func (c *Channel) StateLocked() State {
	return c.state
}

// LastState returns the state immediately prior to the current one
// (spec §8 invariant 2).
func (c *Channel) LastState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastState
}

// Reset reverts a Channel to its just-configured state without freeing
// it (spec §3 Lifecycle: "Channel: ... reset (not freed) on close").
func (c *Channel) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = c.initState
	c.lastState = c.initState
	c.tokenCount = 0
	for i := range c.tokens {
		c.tokens[i] = ""
	}
	c.Caller = driver.CallerData{}
	c.Buffers = Buffers{}
	c.SkipReadFrames = 0
	c.BufferDelay = 0
	c.Flags.Clear(flags.ChannelInuse | flags.ChannelOpen | flags.ChannelOutbound)
}

// SetState validates and applies a state transition (spec §4.2).
func (c *Channel) SetState(next State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setStateLocked(next)
}

func (c *Channel) setStateLocked(next State) error {
	cur := c.state
	if !c.Flags.Test(flags.ChannelReady) {
		return status.Errorf(status.Fail, "channel %d:%d not ready", c.SpanID, c.ChanID)
	}
	if next == cur {
		return status.Errorf(status.Fail, "channel %d:%d already in state %s", c.SpanID, c.ChanID, next)
	}
	if c.Span != nil && c.Span.IsSuspended() {
		if next != StateRestart && next != StateDown {
			return status.Errorf(status.Fail, "span suspended, only RESTART/DOWN allowed")
		}
	}

	outbound := c.Flags.Test(flags.ChannelOutbound)
	var m StateMapper
	if c.Span != nil {
		m = c.Span.StateMap()
	}
	if !allowTransition(m, outbound, cur, next) {
		return status.Errorf(status.Fail, "transition %s -> %s rejected", cur, next)
	}

	wasDown := cur == StateDown
	goingDown := next == StateDown
	if c.Span != nil {
		switch {
		case wasDown && !goingDown:
			c.Span.AdjustActiveCount(1)
		case !wasDown && goingDown:
			c.Span.AdjustActiveCount(-1)
		}
	}

	c.lastState = cur
	c.state = next
	c.Flags.Set(flags.ChannelStateChange)
	if c.Span != nil {
		c.Span.SetStateChange()
	}

	if goingDown {
		c.Flags.ClearCallProgress()
	}
	c.completeStateLocked(next)
	return nil
}

// completeStateLocked applies the call-progress flag side effects of
// reaching PROGRESS, PROGRESS_MEDIA, or UP (spec §4.2 complete_state).
func (c *Channel) completeStateLocked(s State) {
	switch s {
	case StateProgress:
		c.Flags.Set(flags.ChannelProgress)
	case StateProgressMedia:
		c.Flags.Set(flags.ChannelProgress | flags.ChannelMedia)
	case StateUp:
		c.Flags.Set(flags.ChannelProgress | flags.ChannelMedia | flags.ChannelAnswered)
	}
}

// AddToken appends a token to the list (spec §3 "ordered set of up to
// MAX_TOKENS"). Fails if the list is full or the token exceeds
// TokenStrlen.
func (c *Channel) AddToken(tok string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(tok) > TokenStrlen {
		return status.Errorf(status.Fail, "token %q exceeds %d bytes", tok, TokenStrlen)
	}
	if c.tokenCount >= MaxTokens {
		return status.Errorf(status.Fail, "token list full")
	}
	c.tokens[c.tokenCount] = tok
	c.tokenCount++
	return nil
}

// ClearToken removes every occurrence of tok, shifting the remaining
// tokens left to keep the list prefix-dense (spec §3 invariant
// "token_count equals the number of non-empty slots at the prefix").
func (c *Channel) ClearToken(tok string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.tokens[:0:0]
	for i := 0; i < c.tokenCount; i++ {
		if c.tokens[i] != tok {
			out = append(out, c.tokens[i])
		}
	}
	n := copy(c.tokens[:], out)
	for i := n; i < MaxTokens; i++ {
		c.tokens[i] = ""
	}
	c.tokenCount = n
}

// Tokens returns a copy of the currently attached tokens in order.
func (c *Channel) Tokens() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, c.tokenCount)
	copy(out, c.tokens[:c.tokenCount])
	return out
}

// TokenCount returns the number of attached tokens.
func (c *Channel) TokenCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokenCount
}

// Lock/Unlock expose the channel mutex directly for the media pipeline
// and command dispatch, which hold it across multi-field updates (spec
// §5 "one per-channel mutex protecting all mutable channel fields").
func (c *Channel) Lock()   { c.mu.Lock() }
func (c *Channel) Unlock() { c.mu.Unlock() }
