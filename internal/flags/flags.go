// Package flags implements the channel & span flag bitsets described in
// spec §4.4. Every Set/Clear/Test operation is an atomic bit operation,
// so callers may use them whether or not they hold the owning object's
// mutex; there are no separate locked/unlocked variants.
package flags

import "sync/atomic"

// Channel is a bitset of per-channel flags.
type Channel uint64

const (
	ChannelConfigured Channel = 1 << iota
	ChannelReady
	ChannelOpen
	ChannelDTMFDetect
	ChannelSuppressDTMF
	ChannelTranscode
	ChannelBuffer
	ChannelCallerIDDetect
	ChannelProgressDetect
	ChannelInuse
	ChannelOutbound
	ChannelWink
	ChannelFlash
	ChannelStateChange
	ChannelHold
	ChannelInthread
	ChannelOffhook
	ChannelRinging
	ChannelAnswered
	ChannelProgress
	ChannelMedia
	Channel3Way
	ChannelCallwaiting
	ChannelEvent
)

// callProgressFlags are cleared whenever a channel transitions to DOWN
// (spec §3 invariants).
const callProgressFlags = ChannelProgress | ChannelMedia | ChannelAnswered |
	ChannelRinging | ChannelWink | ChannelFlash | ChannelOffhook |
	ChannelHold | Channel3Way

// Set holds a channel flag bitset. The zero value is empty. All methods
// are safe for concurrent use; Set/Clear/Test additionally accept being
// called while the caller already holds the owning channel's mutex.
type Set struct {
	bits atomic.Uint64
}

// Set sets bits in f.
func (f *Set) Set(bits Channel) {
	f.bits.Or(uint64(bits))
}

// Clear clears bits in f.
func (f *Set) Clear(bits Channel) {
	f.bits.And(^uint64(bits))
}

// Test reports whether every bit in want is set.
func (f *Set) Test(want Channel) bool {
	return uint64(want)&f.bits.Load() == uint64(want)
}

// Load returns the raw bitset value.
func (f *Set) Load() uint64 {
	return f.bits.Load()
}

// ClearCallProgress clears every call-progress flag, used on transition
// to the DOWN state (spec §3 invariant).
func (f *Set) ClearCallProgress() {
	f.bits.And(^uint64(callProgressFlags))
}

// Span is a bitset of per-span flags.
type Span uint64

const (
	SpanConfigured Span = 1 << iota
	SpanSuspended
	SpanStateChange
)

// SpanSet holds a span flag bitset.
type SpanSet struct {
	bits atomic.Uint64
}

// Set sets bits in f.
func (f *SpanSet) Set(bits Span) {
	f.bits.Or(uint64(bits))
}

// Clear clears bits in f.
func (f *SpanSet) Clear(bits Span) {
	f.bits.And(^uint64(bits))
}

// Test reports whether every bit in want is set.
func (f *SpanSet) Test(want Span) bool {
	return uint64(want)&f.bits.Load() == uint64(want)
}

// Alarm is a bitset of channel alarm conditions (§6 get_alarms).
type Alarm uint32

const (
	AlarmRed Alarm = 1 << iota
	AlarmYellow
	AlarmBlue
	AlarmLoopback
	AlarmRecover
)

// Names returns the slash-joined alarm names set in a, in declaration
// order, matching zap_channel_get_alarms's last_error composition
// (e.g. "RED/YELLOW").
func (a Alarm) Names() string {
	order := []struct {
		bit  Alarm
		name string
	}{
		{AlarmRed, "RED"},
		{AlarmYellow, "YELLOW"},
		{AlarmBlue, "BLUE"},
		{AlarmLoopback, "LOOP"},
		{AlarmRecover, "RECOVER"},
	}
	out := ""
	for _, o := range order {
		if a&o.bit != 0 {
			out += o.name + "/"
		}
	}
	if len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out
}
