package media

import (
	"testing"

	"github.com/openzap/openzap/internal/channel"
	"github.com/openzap/openzap/internal/codec"
	"github.com/openzap/openzap/internal/driver"
	"github.com/openzap/openzap/internal/dtmf"
	"github.com/openzap/openzap/internal/flags"
	"github.com/openzap/openzap/internal/fsk"
	"github.com/openzap/openzap/internal/loopback"
	"github.com/openzap/openzap/internal/tone"
)

type fakeSpan struct {
	toneMap *tone.Map
	hangup  string
	events  []driver.Event
}

func (s *fakeSpan) StateMap() channel.StateMapper   { return nil }
func (s *fakeSpan) IsSuspended() bool               { return false }
func (s *fakeSpan) AdjustActiveCount(delta int)     {}
func (s *fakeSpan) SetStateChange()                 {}
func (s *fakeSpan) DTMFHangup() string               { return s.hangup }
func (s *fakeSpan) ToneMap() *tone.Map               { return s.toneMap }
func (s *fakeSpan) Emit(cb driver.Callback, chanID uint32, typ driver.EventType, payload any) {
	ev := driver.NewEvent(1, chanID, typ, payload)
	s.events = append(s.events, ev)
	if cb != nil {
		cb(ev)
	}
}

func newOpenChannel(t *testing.T, d driver.IoDriver) (*channel.Channel, *fakeSpan) {
	t.Helper()
	span := &fakeSpan{toneMap: tone.NewDefaultMap()}
	c := channel.New(span, 1, 1, channel.TypeFXS, nil)
	c.SampleRate = 8000
	c.NativeInterval = 20
	c.EffInterval = 20
	c.PacketLen = 320 // 20ms @ 8kHz SLIN: 160 samples * 2 bytes
	if err := d.Open(1, 1); err != nil {
		t.Fatal(err)
	}
	c.Flags.Set(flags.ChannelOpen)
	return c, span
}

func TestReadRejectsWhenNotOpen(t *testing.T) {
	d := loopback.New("t")
	span := &fakeSpan{toneMap: tone.NewDefaultMap()}
	c := channel.New(span, 1, 1, channel.TypeFXS, nil)
	c.PacketLen = 320
	if _, err := Read(c, d); err == nil {
		t.Fatal("expected error reading unopened channel")
	}
}

func TestReadWriteRoundTripNoTranscode(t *testing.T) {
	d := loopback.New("t")
	c, _ := newOpenChannel(t, d)

	payload := make([]byte, c.PacketLen)
	for i := range payload {
		payload[i] = byte(i)
	}
	if err := Write(c, d, payload); err != nil {
		t.Fatal(err)
	}
	frame, err := Read(c, d)
	if err != nil {
		t.Fatal(err)
	}
	if len(frame) != len(payload) {
		t.Fatalf("got %d bytes, want %d", len(frame), len(payload))
	}
	for i := range payload {
		if frame[i] != payload[i] {
			t.Fatalf("byte %d: got %d want %d", i, frame[i], payload[i])
		}
	}
}

func TestReadAppliesTranscode(t *testing.T) {
	d := loopback.New("t")
	c, _ := newOpenChannel(t, d)
	c.NativeCodec = codec.ULAw
	c.EffectiveCodec = codec.SLIN
	c.PacketLen = 160 // u-law: 1 byte/sample @ 20ms/8kHz
	c.Flags.Set(flags.ChannelTranscode)

	native := make([]byte, c.PacketLen)
	for i := range native {
		native[i] = 0xFF
	}
	d.Write(1, 1, native)

	frame, err := Read(c, d)
	if err != nil {
		t.Fatal(err)
	}
	if len(frame) != len(native)*2 {
		t.Fatalf("got %d bytes, want %d (SLIN expansion)", len(frame), len(native)*2)
	}
}

func TestWriteSuppressedWhileDTMFBufferActive(t *testing.T) {
	d := loopback.New("t")
	c, _ := newOpenChannel(t, d)
	c.Buffers.DTMFBuffer = []byte{1, 2, 3, 4}

	if err := Write(c, d, make([]byte, c.PacketLen)); err != nil {
		t.Fatal(err)
	}
	out := make([]byte, c.PacketLen)
	d.Read(1, 1, out)
	for _, b := range out {
		if b != 0 {
			t.Fatal("expected outbound frame dropped while dtmf_buffer is draining")
		}
	}
}

func TestHandleDTMFDrainsGenBufferAndWrites(t *testing.T) {
	d := loopback.New("t")
	c, _ := newOpenChannel(t, d)
	c.DTMFGen = dtmf.NewGenerator(c.SampleRate, c.DTMFOnMs, c.DTMFOffMs)
	c.Buffers.GenDTMFBuffer = []byte("7")

	c.Lock()
	handleDTMFLocked(c, d)
	c.Unlock()

	if len(c.Buffers.DTMFBuffer) == 0 {
		t.Fatal("expected synthesized PCM queued into dtmf_buffer")
	}
	if c.SkipReadFrames != 200 {
		t.Fatalf("skip_read_frames = %d, want 200", c.SkipReadFrames)
	}
}

func TestHandleDTMFFlashDigitDelegatesToDriver(t *testing.T) {
	flashed := false
	d := &flashTestDriver{Driver: *loopback.New("t")}
	d.onFlash = func() { flashed = true }
	c, _ := newOpenChannel(t, d)
	c.Buffers.GenDTMFBuffer = []byte("F")

	c.Lock()
	handleDTMFLocked(c, d)
	c.Unlock()

	if !flashed {
		t.Fatal("expected 'F' digit to invoke driver flash command")
	}
}

func TestDetectDTMFEnqueuesAndEmits(t *testing.T) {
	d := loopback.New("t")
	c, span := newOpenChannel(t, d)
	c.Flags.Set(flags.ChannelDTMFDetect)
	c.DTMFDetector = dtmf.NewDetector(c.SampleRate)

	gen := dtmf.NewGenerator(c.SampleRate, 100, 100)
	pcm, err := gen.Synthesize('5')
	if err != nil {
		t.Fatal(err)
	}
	onSamples := 100 * c.SampleRate / 1000
	block := pcm[:onSamples*2]

	c.Lock()
	detectDTMFLocked(c, block)
	c.Unlock()

	if string(c.Buffers.DigitBuffer) != "5" {
		t.Fatalf("digit_buffer = %q, want %q", c.Buffers.DigitBuffer, "5")
	}
	if len(span.events) != 1 || span.events[0].Type != driver.EventDTMF {
		t.Fatalf("expected one EVENT_DTMF emitted, got %v", span.events)
	}
}

func TestSendFSKDataPopulatesBufferAndDelay(t *testing.T) {
	d := loopback.New("t")
	c, _ := newOpenChannel(t, d)

	ds := fsk.NewMDMF(fsk.Field{Type: fsk.MDMFPhoneNum, Value: "5551234567"})
	SendFSKData(c, ds, 0)

	if len(c.Buffers.FSKBuffer) == 0 {
		t.Fatal("expected modulated PCM in fsk_buffer")
	}
	if c.BufferDelay != 3500/c.EffInterval {
		t.Fatalf("buffer_delay = %d, want %d", c.BufferDelay, 3500/c.EffInterval)
	}
}

func TestDetectCallerIDAppliesFieldsAndDisables(t *testing.T) {
	d := loopback.New("t")
	c, _ := newOpenChannel(t, d)
	c.Flags.Set(flags.ChannelCallerIDDetect)
	c.FSKDemod = fsk.NewDemodulator(c.SampleRate)

	ds := fsk.NewMDMF(
		fsk.Field{Type: fsk.MDMFPhoneNum, Value: "5551234567"},
		fsk.Field{Type: fsk.MDMFPhoneName, Value: "JANE DOE"},
	)
	mod := fsk.NewModulator(c.SampleRate, 60, 6, 0, 0)
	pcm := mod.Modulate(ds)

	c.Lock()
	detectCallerIDLocked(c, pcm)
	c.Unlock()

	if c.Caller.CIDNum != "5551234567" || c.Caller.ANI != "5551234567" {
		t.Fatalf("caller data = %+v", c.Caller)
	}
	if c.Caller.CIDName != "JANE DOE" {
		t.Fatalf("cid_name = %q", c.Caller.CIDName)
	}
	if c.Flags.Test(flags.ChannelCallerIDDetect) {
		t.Fatal("expected CALLERID_DETECT auto-disabled after decode")
	}
}

func TestDetectProgressClearsNeededAndIncrementsTotal(t *testing.T) {
	d := loopback.New("t")
	c, span := newOpenChannel(t, d)
	c.Flags.Set(flags.ChannelProgressDetect)
	if err := span.toneMap.SetDetect(tone.Dial, "350,440"); err != nil {
		t.Fatal(err)
	}
	c.ToneDetect[tone.Dial] = tone.NewDetector(span.toneMap.Detect[tone.Dial], c.SampleRate)
	c.NeededTones[tone.Dial] = 1

	sess := tone.NewSession(&tone.Pattern{OnMs: 200, Freqs: span.toneMap.Detect[tone.Dial].Freqs}, c.SampleRate)
	buf := make([]byte, 200*c.SampleRate/1000*2)
	sess.Generate(buf, 200*c.SampleRate/1000)

	c.Lock()
	detectProgressLocked(c, buf)
	c.Unlock()

	if c.NeededTones[tone.Dial] != 0 {
		t.Fatal("expected needed_tones[Dial] cleared on detection")
	}
	if c.DetectedTones[tone.Dial] != 1 || c.DetectedTones[0] != 1 {
		t.Fatalf("detected_tones = %v", c.DetectedTones)
	}
}

// flashTestDriver wraps loopback.Driver to add a Commander for CmdFlash.
type flashTestDriver struct {
	loopback.Driver
	onFlash func()
}

func (d *flashTestDriver) Command(spanID, chanID uint32, cmd driver.Command, arg any) (any, error) {
	if cmd == driver.CmdFlash && d.onFlash != nil {
		d.onFlash()
	}
	return nil, nil
}
