// Package driver defines the IoDriver vtable contract every hardware or
// software backend implements (spec §6). Dynamic module loading is
// explicitly out of the core's scope (spec §1); this package only
// defines the interface the core calls through and the Invoke* helpers
// that make every call site uniform regardless of which optional
// capabilities a given backend advertises, per spec §9's redesign
// note: "model as an interface/trait with optional methods (return
// NOT_IMPLEMENTED stubs) so the core's call sites remain uniform."
package driver

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/openzap/openzap/internal/flags"
	"github.com/openzap/openzap/internal/status"
)

// IoDriver is the mandatory subset of the vtable every backend must
// implement: open, close, read, write (spec §3 "Capabilities are all
// optional except open, close, read, write").
type IoDriver interface {
	Name() string
	Open(spanID, chanID uint32) error
	Close(spanID, chanID uint32) error
	Read(spanID, chanID uint32, buf []byte) (int, error)
	Write(spanID, chanID uint32, buf []byte) (int, error)
}

// Direction is the hunt/call direction passed to channel allocation and
// ChannelRequest (spec §4.3).
type Direction int

const (
	DirectionInbound Direction = iota
	DirectionOutbound
)

// CallerData holds the ANI/DNIS/CID fields a driver or the FSK
// caller-ID path populates on a channel (spec §3 Channel "caller
// data"). Owned here, not in internal/channel, so optional driver
// interfaces referencing it don't create an import cycle (channel
// imports driver, not the reverse).
type CallerData struct {
	ANI      string
	DNIS     string
	CIDNum   string
	CIDName  string
	CIDDate  string
}

// WaitFlags is the bitset passed to and returned from Wait, mirroring
// the original's ZAP_READ/ZAP_WRITE/ZAP_EVENTS poll flags.
type WaitFlags int

const (
	WaitRead WaitFlags = 1 << iota
	WaitWrite
	WaitEvents
)

// Command identifies a channel-command dispatched to a driver's
// Command method when the core does not handle it natively (spec
// §4.5 "Others: Delegate to driver command").
type Command int

const (
	CmdUnknown Command = iota
	CmdEnableCallerIDDetect
	CmdDisableCallerIDDetect
	CmdEnableProgressDetect
	CmdDisableProgressDetect
	CmdEnableDTMFDetect
	CmdDisableDTMFDetect
	CmdSetInterval
	CmdGetInterval
	CmdSetCodec
	CmdGetCodec
	CmdSetNativeCodec
	CmdGetNativeCodec
	CmdSetDTMFOnPeriod
	CmdGetDTMFOnPeriod
	CmdSetDTMFOffPeriod
	CmdGetDTMFOffPeriod
	CmdSendDTMF
	CmdTraceInput
	CmdTraceOutput
	CmdFlash
)

// Event is the signalling/DTMF/alarm event taxonomy surfaced both raw
// from a driver's PollEvent/NextEvent and, wrapped with a TraceID, to
// external callbacks from the channel/span layer (spec §6 Event
// taxonomy). TraceID is empty on a driver-sourced Event and populated
// by NewEvent when the channel/span layer re-emits it to a callback.
type Event struct {
	TraceID string
	SpanID  uint32
	ChanID  uint32
	Type    EventType
	Payload any
}

// Callback receives events from a span or one of its channels (spec §3
// Span "event callback"/"signalling callback").
type Callback func(Event)

// NewEvent builds a traced Event for dispatch to a Callback.
func NewEvent(spanID, chanID uint32, typ EventType, payload any) Event {
	return Event{
		TraceID: uuid.NewString(),
		SpanID:  spanID,
		ChanID:  chanID,
		Type:    typ,
		Payload: payload,
	}
}

// EventType is the signalling/DTMF/alarm event taxonomy spec §6 names.
type EventType int

const (
	EventNone EventType = iota
	EventDTMF
	EventStart
	EventStop
	EventUp
	EventFlash
	EventProceed
	EventRinging
	EventProgress
	EventProgressMedia
	EventTone
	EventAlarmTrap
	EventAlarmClear
	EventCollectedDigit
	EventAddCall
	EventRestart
	EventSigStatusChanged
)

// SpanConfig is the subset of `[span <driver> [name]]` configuration a
// driver's ConfigureSpan consumes (spec §6 configuration surface).
// internal/confio parses the file into this same shape so registry can
// pass it straight through without re-mapping fields.
type SpanConfig struct {
	Name            string
	Number          string
	TrunkType       string
	AnalogStartType string
	FXOChannels     []string
	FXSChannels     []string
	EMChannels      []string
	BChannels       []string
	DChannels       []string // "lapd:" prefix selects Q.931 over Q.921
	CASChannels     []string
	DTMFHangup      string
}

// --- optional capability interfaces, checked via type assertion ---

type Waiter interface {
	Wait(spanID, chanID uint32, flags WaitFlags, timeout time.Duration) (WaitFlags, error)
}

type EventPoller interface {
	PollEvent(spanID uint32, timeout time.Duration) error
}

type EventReader interface {
	NextEvent(spanID uint32) (*Event, error)
}

type Commander interface {
	Command(spanID, chanID uint32, cmd Command, arg any) (any, error)
}

type SpanConfigurer interface {
	ConfigureSpan(spanID uint32, cfg SpanConfig) error
}

type Configurer interface {
	Configure(spanID, chanID uint32, key, val string) error
}

type SpanStarter interface {
	SpanStart(spanID uint32) error
}

type SpanDestroyer interface {
	SpanDestroy(spanID uint32) error
}

type ChannelDestroyer interface {
	ChannelDestroy(spanID, chanID uint32) error
}

type AlarmGetter interface {
	GetAlarms(spanID, chanID uint32) (flags.Alarm, error)
}

type APIRunner interface {
	API(ctx context.Context, cmd string) (string, error)
}

type ChannelRequester interface {
	ChannelRequest(spanID uint32, direction Direction, caller CallerData) (chanID uint32, err error)
}

type ChanIDSuggester interface {
	SuggestChanID(spanID uint32, direction Direction) (chanID uint32, ok bool)
}

// --- Invoke* helpers: uniform call sites regardless of capability ---

func InvokeWait(d IoDriver, spanID, chanID uint32, want WaitFlags, timeout time.Duration) (WaitFlags, error) {
	w, ok := d.(Waiter)
	if !ok {
		return 0, status.Errorf(status.NotImplemented, "method not implemented")
	}
	return w.Wait(spanID, chanID, want, timeout)
}

func InvokePollEvent(d IoDriver, spanID uint32, timeout time.Duration) error {
	p, ok := d.(EventPoller)
	if !ok {
		return status.Errorf(status.NotImplemented, "method not implemented")
	}
	return p.PollEvent(spanID, timeout)
}

func InvokeNextEvent(d IoDriver, spanID uint32) (*Event, error) {
	r, ok := d.(EventReader)
	if !ok {
		return nil, status.Errorf(status.NotImplemented, "method not implemented")
	}
	return r.NextEvent(spanID)
}

func InvokeCommand(d IoDriver, spanID, chanID uint32, cmd Command, arg any) (any, error) {
	c, ok := d.(Commander)
	if !ok {
		return nil, status.Errorf(status.NotImplemented, "method not implemented")
	}
	return c.Command(spanID, chanID, cmd, arg)
}

func InvokeConfigureSpan(d IoDriver, spanID uint32, cfg SpanConfig) error {
	c, ok := d.(SpanConfigurer)
	if !ok {
		return status.Errorf(status.NotImplemented, "method not implemented")
	}
	return c.ConfigureSpan(spanID, cfg)
}

func InvokeConfigure(d IoDriver, spanID, chanID uint32, key, val string) error {
	c, ok := d.(Configurer)
	if !ok {
		return status.Errorf(status.NotImplemented, "method not implemented")
	}
	return c.Configure(spanID, chanID, key, val)
}

func InvokeSpanStart(d IoDriver, spanID uint32) error {
	s, ok := d.(SpanStarter)
	if !ok {
		return status.Errorf(status.NotImplemented, "method not implemented")
	}
	return s.SpanStart(spanID)
}

func InvokeSpanDestroy(d IoDriver, spanID uint32) error {
	s, ok := d.(SpanDestroyer)
	if !ok {
		return status.Errorf(status.NotImplemented, "method not implemented")
	}
	return s.SpanDestroy(spanID)
}

func InvokeChannelDestroy(d IoDriver, spanID, chanID uint32) error {
	c, ok := d.(ChannelDestroyer)
	if !ok {
		return status.Errorf(status.NotImplemented, "method not implemented")
	}
	return c.ChannelDestroy(spanID, chanID)
}

func InvokeGetAlarms(d IoDriver, spanID, chanID uint32) (flags.Alarm, error) {
	g, ok := d.(AlarmGetter)
	if !ok {
		return 0, status.Errorf(status.NotImplemented, "method not implemented")
	}
	return g.GetAlarms(spanID, chanID)
}

func InvokeAPI(ctx context.Context, d IoDriver, cmd string) (string, error) {
	a, ok := d.(APIRunner)
	if !ok {
		return "", status.Errorf(status.NotImplemented, "method not implemented")
	}
	return a.API(ctx, cmd)
}

func InvokeChannelRequest(d IoDriver, spanID uint32, direction Direction, caller CallerData) (uint32, error) {
	r, ok := d.(ChannelRequester)
	if !ok {
		return 0, status.Errorf(status.NotImplemented, "method not implemented")
	}
	return r.ChannelRequest(spanID, direction, caller)
}

func InvokeSuggestChanID(d IoDriver, spanID uint32, direction Direction) (uint32, bool) {
	s, ok := d.(ChanIDSuggester)
	if !ok {
		return 0, false
	}
	return s.SuggestChanID(spanID, direction)
}
