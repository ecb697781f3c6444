package loopback

import (
	"context"
	"testing"

	"github.com/openzap/openzap/internal/driver"
	"github.com/openzap/openzap/internal/flags"
)

func TestOpenWriteReadRoundTrip(t *testing.T) {
	d := New("test")
	if err := d.Open(1, 1); err != nil {
		t.Fatal(err)
	}

	payload := []byte{1, 2, 3, 4}
	n, err := d.Write(1, 1, payload)
	if err != nil || n != len(payload) {
		t.Fatalf("got %d, %v", n, err)
	}

	out := make([]byte, 4)
	n, err = d.Read(1, 1, out)
	if err != nil || n != len(out) {
		t.Fatalf("got %d, %v", n, err)
	}
	for i, b := range payload {
		if out[i] != b {
			t.Fatalf("byte %d: got %d want %d", i, out[i], b)
		}
	}
}

func TestReadZeroPadsWhenEmpty(t *testing.T) {
	d := New("test")
	d.Open(1, 1)

	out := make([]byte, 8)
	n, err := d.Read(1, 1, out)
	if err != nil || n != 8 {
		t.Fatalf("got %d, %v", n, err)
	}
	for _, b := range out {
		if b != 0 {
			t.Fatal("expected zero-padded silence")
		}
	}
}

func TestReadWriteRequireOpen(t *testing.T) {
	d := New("test")
	if _, err := d.Read(1, 1, make([]byte, 4)); err == nil {
		t.Fatal("expected error reading unopened channel")
	}
	if _, err := d.Write(1, 1, []byte{1}); err == nil {
		t.Fatal("expected error writing unopened channel")
	}
}

func TestDoubleOpenFails(t *testing.T) {
	d := New("test")
	if err := d.Open(1, 1); err != nil {
		t.Fatal(err)
	}
	if err := d.Open(1, 1); err == nil {
		t.Fatal("expected error on double open")
	}
}

func TestCloseClearsBuffer(t *testing.T) {
	d := New("test")
	d.Open(1, 1)
	d.Write(1, 1, []byte{9, 9, 9})
	d.Close(1, 1)
	d.Open(1, 1)

	out := make([]byte, 3)
	d.Read(1, 1, out)
	for _, b := range out {
		if b != 0 {
			t.Fatal("expected buffer cleared across close/reopen")
		}
	}
}

func TestSpanLifecycle(t *testing.T) {
	d := New("test")
	if err := d.SpanStart(1); err == nil {
		t.Fatal("expected error starting unconfigured span")
	}
	if err := d.ConfigureSpan(1, driver.SpanConfig{Name: "s1"}); err != nil {
		t.Fatal(err)
	}
	if err := d.SpanStart(1); err != nil {
		t.Fatal(err)
	}

	d.Open(1, 1)
	if err := d.SpanDestroy(1); err != nil {
		t.Fatal(err)
	}
	if err := d.SpanStart(1); err == nil {
		t.Fatal("expected error starting span after destroy")
	}
}

func TestChannelDestroyRemovesState(t *testing.T) {
	d := New("test")
	d.Open(1, 1)
	d.Write(1, 1, []byte{1, 2, 3})
	if err := d.ChannelDestroy(1, 1); err != nil {
		t.Fatal(err)
	}
	// a fresh Open after destroy should start from a clean state.
	if err := d.Open(1, 1); err != nil {
		t.Fatal(err)
	}
	out := make([]byte, 3)
	d.Read(1, 1, out)
	for _, b := range out {
		if b != 0 {
			t.Fatal("expected clean state after ChannelDestroy")
		}
	}
}

func TestAlarms(t *testing.T) {
	d := New("test")
	a, err := d.GetAlarms(1, 1)
	if err != nil || a != 0 {
		t.Fatalf("got %v, %v", a, err)
	}
	d.SetAlarms(1, 1, flags.AlarmRed)
	a, err = d.GetAlarms(1, 1)
	if err != nil || a != flags.AlarmRed {
		t.Fatalf("got %v, %v", a, err)
	}
}

func TestAPI(t *testing.T) {
	d := New("test")
	d.ConfigureSpan(1, driver.SpanConfig{})
	out, err := d.API(context.Background(), "status")
	if err != nil || out == "" {
		t.Fatalf("got %q, %v", out, err)
	}
}
