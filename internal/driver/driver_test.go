package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openzap/openzap/internal/flags"
	"github.com/openzap/openzap/internal/status"
)

// bareDriver implements only the mandatory IoDriver methods.
type bareDriver struct{}

func (bareDriver) Name() string                                   { return "bare" }
func (bareDriver) Open(spanID, chanID uint32) error                { return nil }
func (bareDriver) Close(spanID, chanID uint32) error               { return nil }
func (bareDriver) Read(spanID, chanID uint32, buf []byte) (int, error)  { return len(buf), nil }
func (bareDriver) Write(spanID, chanID uint32, buf []byte) (int, error) { return len(buf), nil }

func isNotImplemented(t *testing.T, err error) {
	t.Helper()
	var se *status.Error
	if !errors.As(err, &se) {
		t.Fatalf("expected *status.Error, got %T: %v", err, err)
	}
	if se.Status != status.NotImplemented {
		t.Fatalf("expected NotImplemented, got %v", se.Status)
	}
}

func TestInvokeHelpersDefaultToNotImplemented(t *testing.T) {
	d := bareDriver{}

	_, err := InvokeWait(d, 1, 1, WaitRead, time.Second)
	isNotImplemented(t, err)

	err = InvokePollEvent(d, 1, time.Second)
	isNotImplemented(t, err)

	_, err = InvokeNextEvent(d, 1)
	isNotImplemented(t, err)

	_, err = InvokeCommand(d, 1, 1, CmdSendDTMF, "7")
	isNotImplemented(t, err)

	err = InvokeConfigureSpan(d, 1, SpanConfig{})
	isNotImplemented(t, err)

	err = InvokeConfigure(d, 1, 1, "k", "v")
	isNotImplemented(t, err)

	err = InvokeSpanStart(d, 1)
	isNotImplemented(t, err)

	err = InvokeSpanDestroy(d, 1)
	isNotImplemented(t, err)

	err = InvokeChannelDestroy(d, 1, 1)
	isNotImplemented(t, err)

	_, err = InvokeGetAlarms(d, 1, 1)
	isNotImplemented(t, err)

	_, err = InvokeAPI(context.Background(), d, "status")
	isNotImplemented(t, err)

	_, err = InvokeChannelRequest(d, 1, DirectionInbound, CallerData{})
	isNotImplemented(t, err)

	if _, ok := InvokeSuggestChanID(d, 1, DirectionInbound); ok {
		t.Fatal("expected ok=false for a driver without SuggestChanID")
	}
}

// fullDriver implements every optional capability.
type fullDriver struct{ bareDriver }

func (fullDriver) Wait(spanID, chanID uint32, want WaitFlags, timeout time.Duration) (WaitFlags, error) {
	return want, nil
}
func (fullDriver) PollEvent(spanID uint32, timeout time.Duration) error { return nil }
func (fullDriver) NextEvent(spanID uint32) (*Event, error) {
	return &Event{SpanID: spanID, Type: EventDTMF}, nil
}
func (fullDriver) Command(spanID, chanID uint32, cmd Command, arg any) (any, error) {
	return arg, nil
}
func (fullDriver) ConfigureSpan(spanID uint32, cfg SpanConfig) error { return nil }
func (fullDriver) Configure(spanID, chanID uint32, key, val string) error { return nil }
func (fullDriver) SpanStart(spanID uint32) error                          { return nil }
func (fullDriver) SpanDestroy(spanID uint32) error                        { return nil }
func (fullDriver) ChannelDestroy(spanID, chanID uint32) error             { return nil }
func (fullDriver) GetAlarms(spanID, chanID uint32) (flags.Alarm, error)   { return flags.AlarmRed, nil }

func TestInvokeHelpersDispatchToImplementedCapability(t *testing.T) {
	d := fullDriver{}

	got, err := InvokeWait(d, 1, 1, WaitRead, time.Second)
	if err != nil || got != WaitRead {
		t.Fatalf("got %v, %v", got, err)
	}

	ev, err := InvokeNextEvent(d, 7)
	if err != nil || ev.SpanID != 7 || ev.Type != EventDTMF {
		t.Fatalf("got %+v, %v", ev, err)
	}

	res, err := InvokeCommand(d, 1, 1, CmdSendDTMF, "7")
	if err != nil || res != "7" {
		t.Fatalf("got %v, %v", res, err)
	}

	alarm, err := InvokeGetAlarms(d, 1, 1)
	if err != nil || alarm != flags.AlarmRed {
		t.Fatalf("got %v, %v", alarm, err)
	}

	chanID, ok := InvokeSuggestChanID(fakeSuggester{}, 1, DirectionOutbound)
	if !ok || chanID != 3 {
		t.Fatalf("got %d, %v", chanID, ok)
	}
}

type fakeSuggester struct{ bareDriver }

func (fakeSuggester) SuggestChanID(spanID uint32, direction Direction) (uint32, bool) {
	return 3, true
}
