// Package loopback implements a concrete, in-process software IoDriver
// (spec SPEC_FULL §1): a point-to-point backend that plays back
// whatever was last written to a channel when that channel is next
// read, standing in for real FXS/FXO/PRI hardware so the core's media
// pipeline, state machine, and registry are exercisable end to end
// without the dynamic module loading the spec places out of scope.
// Grounded on flowpbx's in-memory test doubles (`internal/media`'s
// buffered call sessions) for the "small owned-struct backend with a
// mutex-guarded map" shape.
package loopback

import (
	"context"
	"fmt"
	"sync"

	"github.com/openzap/openzap/internal/driver"
	"github.com/openzap/openzap/internal/flags"
	"github.com/openzap/openzap/internal/status"
)

type chanKey struct {
	span, chn uint32
}

type chanState struct {
	mu     sync.Mutex
	open   bool
	ring   []byte
	alarms flags.Alarm
}

// Driver is a software loopback IoDriver. The zero value is not usable;
// construct with New.
type Driver struct {
	name string

	mu    sync.Mutex
	spans map[uint32]bool
	chans map[chanKey]*chanState
}

// New builds a named loopback driver instance. Multiple instances are
// independent (no shared state), mirroring distinct driver
// registrations for distinct module names in the registry.
func New(name string) *Driver {
	if name == "" {
		name = "loopback"
	}
	return &Driver{
		name:  name,
		spans: make(map[uint32]bool),
		chans: make(map[chanKey]*chanState),
	}
}

var (
	_ driver.IoDriver        = (*Driver)(nil)
	_ driver.SpanConfigurer  = (*Driver)(nil)
	_ driver.SpanStarter     = (*Driver)(nil)
	_ driver.SpanDestroyer   = (*Driver)(nil)
	_ driver.ChannelDestroyer = (*Driver)(nil)
	_ driver.AlarmGetter     = (*Driver)(nil)
	_ driver.APIRunner       = (*Driver)(nil)
)

func (d *Driver) Name() string { return d.name }

func (d *Driver) state(spanID, chanID uint32) *chanState {
	key := chanKey{spanID, chanID}

	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.chans[key]
	if !ok {
		st = &chanState{}
		d.chans[key] = st
	}
	return st
}

func (d *Driver) Open(spanID, chanID uint32) error {
	st := d.state(spanID, chanID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.open {
		return status.Errorf(status.Fail, "channel %d:%d already open", spanID, chanID)
	}
	st.open = true
	return nil
}

func (d *Driver) Close(spanID, chanID uint32) error {
	st := d.state(spanID, chanID)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.open = false
	st.ring = st.ring[:0]
	return nil
}

// maxRing bounds the loopback ring so a test that never reads does not
// grow it without limit.
const maxRing = 1 << 20

func (d *Driver) Read(spanID, chanID uint32, buf []byte) (int, error) {
	st := d.state(spanID, chanID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if !st.open {
		return 0, status.Errorf(status.Fail, "channel %d:%d not open", spanID, chanID)
	}

	n := copy(buf, st.ring)
	st.ring = st.ring[n:]
	for i := n; i < len(buf); i++ {
		buf[i] = 0 // hardware always delivers a full frame, zero-padded
	}
	return len(buf), nil
}

func (d *Driver) Write(spanID, chanID uint32, buf []byte) (int, error) {
	st := d.state(spanID, chanID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if !st.open {
		return 0, status.Errorf(status.Fail, "channel %d:%d not open", spanID, chanID)
	}

	st.ring = append(st.ring, buf...)
	if len(st.ring) > maxRing {
		st.ring = st.ring[len(st.ring)-maxRing:]
	}
	return len(buf), nil
}

func (d *Driver) ConfigureSpan(spanID uint32, cfg driver.SpanConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.spans[spanID] = true
	return nil
}

func (d *Driver) SpanStart(spanID uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.spans[spanID] {
		return status.Errorf(status.Fail, "span %d not configured", spanID)
	}
	return nil
}

func (d *Driver) SpanDestroy(spanID uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.spans, spanID)
	for key := range d.chans {
		if key.span == spanID {
			delete(d.chans, key)
		}
	}
	return nil
}

func (d *Driver) ChannelDestroy(spanID, chanID uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.chans, chanKey{spanID, chanID})
	return nil
}

func (d *Driver) GetAlarms(spanID, chanID uint32) (flags.Alarm, error) {
	st := d.state(spanID, chanID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.alarms, nil
}

// SetAlarms is a test/demo hook with no vtable equivalent: it lets a
// caller simulate a hardware alarm condition becoming visible to the
// next GetAlarms call.
func (d *Driver) SetAlarms(spanID, chanID uint32, a flags.Alarm) {
	st := d.state(spanID, chanID)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.alarms = a
}

func (d *Driver) API(_ context.Context, cmd string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return fmt.Sprintf("loopback driver %q: %d spans, %d channels", d.name, len(d.spans), len(d.chans)), nil
}
