package registry

import (
	"errors"
	"testing"

	"github.com/openzap/openzap/internal/channel"
	"github.com/openzap/openzap/internal/driver"
	"github.com/openzap/openzap/internal/flags"
	"github.com/openzap/openzap/internal/loopback"
)

func newTestRegistry(t *testing.T) (*Registry, *loopback.Driver) {
	t.Helper()
	r := New(nil, nil)
	d := loopback.New("loop0")
	if err := r.RegisterDriver(d); err != nil {
		t.Fatal(err)
	}
	return r, d
}

func TestCreateSpanInstallsDefaults(t *testing.T) {
	r, _ := newTestRegistry(t)
	s, err := r.CreateSpan("loop0", "trunk1")
	if err != nil {
		t.Fatal(err)
	}
	if s.ID == 0 {
		t.Fatal("expected non-zero span id")
	}
	if !s.Configured() {
		t.Fatal("expected span CONFIGURED")
	}
	if r.FindSpanByID(s.ID) != s {
		t.Fatal("FindSpanByID mismatch")
	}
	if r.FindSpanByName("trunk1") != s {
		t.Fatal("FindSpanByName mismatch")
	}
}

func TestCreateSpanUnknownDriverFails(t *testing.T) {
	r, _ := newTestRegistry(t)
	if _, err := r.CreateSpan("does-not-exist", ""); err == nil {
		t.Fatal("expected error for unregistered driver with no loader")
	}
}

func TestConfigureSpanCreatesChannels(t *testing.T) {
	r, _ := newTestRegistry(t)
	s, err := r.CreateSpan("loop0", "trunk1")
	if err != nil {
		t.Fatal(err)
	}
	cfg := driver.SpanConfig{
		FXSChannels: []string{"1", "2"},
		FXOChannels: []string{"3"},
		DChannels:   []string{"lapd:4"},
		DTMFHangup:  "**",
	}
	if err := r.ConfigureSpan(s.ID, cfg); err != nil {
		t.Fatal(err)
	}
	if s.ChannelCount() != 4 {
		t.Fatalf("got %d channels, want 4", s.ChannelCount())
	}
	if s.DTMFHangup() != "**" {
		t.Fatalf("dtmf_hangup = %q", s.DTMFHangup())
	}
	var dChan *channel.Channel
	for _, id := range s.Channels() {
		if c := s.Channel(id); c.Type == channel.TypeDQ931 {
			dChan = c
		}
	}
	if dChan == nil {
		t.Fatal("expected a Q.931 D channel from the lapd: prefix")
	}
}

func TestOpenAnyPicksFirstEligibleChannel(t *testing.T) {
	r, d := newTestRegistry(t)
	s, err := r.CreateSpan("loop0", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := r.ConfigureSpan(s.ID, driver.SpanConfig{FXSChannels: []string{"1", "2", "3"}}); err != nil {
		t.Fatal(err)
	}
	s.Channel(1).Flags.Set(flags.ChannelInuse)

	c, err := r.OpenAny(0, TopDown, driver.DirectionInbound, driver.CallerData{ANI: "555"})
	if err != nil {
		t.Fatal(err)
	}
	if c.ChanID != 2 {
		t.Fatalf("expected channel 2 (channel 1 in use), got %d", c.ChanID)
	}
	if !c.Flags.Test(flags.ChannelOpen | flags.ChannelInuse) {
		t.Fatal("expected OPEN|INUSE set on claimed channel")
	}
	if c.Caller.ANI != "555" {
		t.Fatalf("caller data not applied: %+v", c.Caller)
	}
	if _, err := d.Read(s.ID, 2, make([]byte, 1)); err != nil {
		t.Fatal("expected driver-side channel opened too")
	}
}

func TestOpenAnyBottomUpOrder(t *testing.T) {
	r, _ := newTestRegistry(t)
	s, err := r.CreateSpan("loop0", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := r.ConfigureSpan(s.ID, driver.SpanConfig{FXSChannels: []string{"1", "2", "3"}}); err != nil {
		t.Fatal(err)
	}
	c, err := r.OpenAny(0, BottomUp, driver.DirectionInbound, driver.CallerData{})
	if err != nil {
		t.Fatal(err)
	}
	if c.ChanID != 3 {
		t.Fatalf("expected channel 3 under BOTTOM_UP hunt, got %d", c.ChanID)
	}
}

func TestOpenAnySpanHintAllBusy(t *testing.T) {
	r, _ := newTestRegistry(t)
	s, err := r.CreateSpan("loop0", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := r.ConfigureSpan(s.ID, driver.SpanConfig{FXSChannels: []string{"1"}}); err != nil {
		t.Fatal(err)
	}
	s.AdjustActiveCount(1)

	if _, err := r.OpenAny(s.ID, TopDown, driver.DirectionInbound, driver.CallerData{}); err == nil {
		t.Fatal("expected ALL-BUSY error")
	}
}

func TestOpenReopenFXSWithOneToken(t *testing.T) {
	r, _ := newTestRegistry(t)
	s, err := r.CreateSpan("loop0", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := r.ConfigureSpan(s.ID, driver.SpanConfig{FXSChannels: []string{"1"}}); err != nil {
		t.Fatal(err)
	}
	c, err := r.Open(s.ID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.AddToken("sip/call-1"); err != nil {
		t.Fatal(err)
	}

	c2, err := r.Open(s.ID, 1)
	if err != nil {
		t.Fatalf("expected reopen of single-token FXS channel to succeed: %v", err)
	}
	if c2 != c {
		t.Fatal("expected same channel instance returned")
	}
}

func TestOpenRejectsAlreadyOpenNonFXS(t *testing.T) {
	r, _ := newTestRegistry(t)
	s, err := r.CreateSpan("loop0", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := r.ConfigureSpan(s.ID, driver.SpanConfig{FXOChannels: []string{"1"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Open(s.ID, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Open(s.ID, 1); err == nil {
		t.Fatal("expected error re-opening an already-open FXO channel")
	}
}

type failingLoader struct{}

func (failingLoader) Load(name string) (driver.IoDriver, error) {
	return nil, errors.New("no such module")
}

func TestLookupDriverOrAutoloadRateLimited(t *testing.T) {
	r := New(failingLoader{}, nil)
	if _, err := r.CreateSpan("ghost", ""); err == nil {
		t.Fatal("expected first autoload attempt to fail")
	}
	if _, err := r.CreateSpan("ghost", ""); err == nil {
		t.Fatal("expected second attempt within the retry window to fail")
	} else if got := err.Error(); got == "" {
		t.Fatal("expected a rate-limited error message")
	}
}
