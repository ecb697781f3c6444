// Package span implements one trunk line (spec §3 "Span"): the
// container of channels that owns the tone maps, optional
// state-transition map, and active-channel bookkeeping the core
// consults on every channel state change. Grounded on zap_span_*
// naming/sequencing from zap_io.c, with the mutex-guarded struct shape
// borrowed from flowpbx's internal/media.SessionManager.
package span

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/openzap/openzap/internal/channel"
	"github.com/openzap/openzap/internal/driver"
	"github.com/openzap/openzap/internal/flags"
	"github.com/openzap/openzap/internal/status"
	"github.com/openzap/openzap/internal/tone"
)

// MaxChannelsSpan bounds the channel array; slot 0 is unused so channel
// ids run 1..MaxChannelsSpan-1, matching the original's 1-based indexing.
const MaxChannelsSpan = 256

// TrunkType identifies the signalling technology of a span's circuits
// (spec §3 Span "trunk type").
type TrunkType int

const (
	TrunkNone TrunkType = iota
	TrunkFXS
	TrunkFXO
	TrunkEM
	TrunkBRI
	TrunkPRI
)

func (t TrunkType) String() string {
	switch t {
	case TrunkFXS:
		return "FXS"
	case TrunkFXO:
		return "FXO"
	case TrunkEM:
		return "E&M"
	case TrunkBRI:
		return "BRI"
	case TrunkPRI:
		return "PRI"
	default:
		return "NONE"
	}
}

// AnalogStartType identifies how an analog circuit signals a new call
// (spec §3 Span "analog start type").
type AnalogStartType int

const (
	StartNA AnalogStartType = iota
	StartLoop
	StartGround
	StartWink
	StartKewl
	StartImmediate
)

// Span is a container of channels for one trunk (spec §3).
type Span struct {
	ID              uint32
	Name            string
	TrunkType       TrunkType
	AnalogStartType AnalogStartType

	mu       sync.Mutex
	channels [MaxChannelsSpan]*channel.Channel
	chanHigh uint32 // highest configured channel id, for iteration bounds

	toneMap  *tone.Map
	stateMap *Map

	EventCallback driver.Callback
	SigCallback   driver.Callback
	SigData       any

	activeCount int
	flags       flags.SpanSet

	dtmfHangup string

	lastError string

	Logger *slog.Logger
}

// New builds a Span in its just-created, CONFIGURED state with the
// default DIAL/RING/BUSY/ATTN tone map (spec §4.1 create_span).
func New(id uint32, name string, logger *slog.Logger) *Span {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Span{
		ID:        id,
		Name:      name,
		TrunkType: TrunkNone,
		toneMap:   tone.NewDefaultMap(),
		Logger:    logger.With("span", id),
	}
	s.flags.Set(flags.SpanConfigured)
	return s
}

// --- channel.SpanRef ---

var _ channel.SpanRef = (*Span)(nil)

func (s *Span) StateMap() channel.StateMapper {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stateMap == nil {
		return nil
	}
	return s.stateMap
}

func (s *Span) IsSuspended() bool {
	return s.flags.Test(flags.SpanSuspended)
}

func (s *Span) AdjustActiveCount(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeCount += delta
}

func (s *Span) SetStateChange() {
	s.flags.Set(flags.SpanStateChange)
}

func (s *Span) DTMFHangup() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dtmfHangup
}

func (s *Span) ToneMap() *tone.Map {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.toneMap
}

// --- span-owned bookkeeping ---

// SetStateMap installs a custom state-transition map, overriding the
// built-in table for every channel on this span.
func (s *Span) SetStateMap(m *Map) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stateMap = m
}

// SetToneMap replaces the span's tone generation/detection map, as
// loaded by internal/confio.LoadTones (spec §4.9).
func (s *Span) SetToneMap(m *tone.Map) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toneMap = m
}

// SetDTMFHangup configures the rolling-window hangup string (spec §4.6
// queue_dtmf).
func (s *Span) SetDTMFHangup(s2 string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dtmfHangup = s2
}

// ActiveCount returns the number of channels not currently DOWN (spec
// §3 invariant).
func (s *Span) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeCount
}

// Suspend/Resume toggle the span-wide SUSPENDED flag (spec §4.2 rule 2).
func (s *Span) Suspend() { s.flags.Set(flags.SpanSuspended) }
func (s *Span) Resume()  { s.flags.Clear(flags.SpanSuspended) }

// Configured reports whether the span has been configured by a driver.
func (s *Span) Configured() bool {
	return s.flags.Test(flags.SpanConfigured)
}

// ConsumeStateChange reports and clears the span-wide STATE_CHANGE flag,
// the signal the (external) signalling layer polls (spec §5
// "State-change propagation").
func (s *Span) ConsumeStateChange() bool {
	changed := s.flags.Test(flags.SpanStateChange)
	if changed {
		s.flags.Clear(flags.SpanStateChange)
	}
	return changed
}

// AddChannel installs a channel at chanID (1..MaxChannelsSpan-1), failing
// if the slot is already occupied (spec §3 "array of owned Channels
// (1..MAX_CHANNELS_SPAN, slot 0 unused)").
func (s *Span) AddChannel(chanID uint32, c *channel.Channel) error {
	if chanID == 0 || chanID >= MaxChannelsSpan {
		return status.Errorf(status.Fail, "channel id %d out of range", chanID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.channels[chanID] != nil {
		return status.Errorf(status.Fail, "channel %d:%d already exists", s.ID, chanID)
	}
	s.channels[chanID] = c
	if chanID > s.chanHigh {
		s.chanHigh = chanID
	}
	return nil
}

// Channel returns the channel at chanID, or nil if unoccupied.
func (s *Span) Channel(chanID uint32) *channel.Channel {
	if chanID == 0 || chanID >= MaxChannelsSpan {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channels[chanID]
}

// ChannelCount returns the number of channel slots installed on this
// span (spec §4.3 "active_count >= chan_count").
func (s *Span) ChannelCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := uint32(1); i <= s.chanHigh; i++ {
		if s.channels[i] != nil {
			n++
		}
	}
	return n
}

// Channels returns every installed channel id in ascending order.
func (s *Span) Channels() []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uint32
	for i := uint32(1); i <= s.chanHigh; i++ {
		if s.channels[i] != nil {
			ids = append(ids, i)
		}
	}
	return ids
}

// RemoveChannel removes a channel slot, as happens during span teardown
// (spec §5 "Destruction ordering").
func (s *Span) RemoveChannel(chanID uint32) {
	if chanID == 0 || chanID >= MaxChannelsSpan {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[chanID] = nil
}

// Emit dispatches an event to the channel's callback if set, else the
// span's own callback (spec §4.6 "emit an EVENT_DTMF event to the
// channel or span callback, channel takes precedence if set on both" —
// generalized here to every event type, not just DTMF).
func (s *Span) Emit(chanCallback driver.Callback, chanID uint32, typ driver.EventType, payload any) {
	ev := driver.NewEvent(s.ID, chanID, typ, payload)
	if chanCallback != nil {
		chanCallback(ev)
		return
	}
	s.mu.Lock()
	cb := s.EventCallback
	s.mu.Unlock()
	if cb != nil {
		cb(ev)
	}
}

// LastError returns the span's last recorded error message (spec §3
// "last_error buffer").
func (s *Span) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

func (s *Span) setLastError(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = fmt.Sprintf(format, args...)
}
