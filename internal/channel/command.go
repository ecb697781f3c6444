package channel

import (
	"errors"
	"os"

	"github.com/openzap/openzap/internal/codec"
	"github.com/openzap/openzap/internal/driver"
	"github.com/openzap/openzap/internal/dtmf"
	"github.com/openzap/openzap/internal/flags"
	"github.com/openzap/openzap/internal/fsk"
	"github.com/openzap/openzap/internal/status"
	"github.com/openzap/openzap/internal/tone"
)

// Dispatch routes a command under the channel mutex (spec §4.5). It
// first offers the command to the driver: a driver that advertises
// native handling for cmd (any response other than NOT_IMPLEMENTED)
// takes over and the core's own processing is skipped, matching "each
// no-ops if the driver advertises the equivalent feature, allowing
// driver-native handling". When the driver has no opinion, recognized
// commands run the core logic below; an unrecognized command with no
// driver handler fails NOT_IMPLEMENTED, exactly as the driver's own
// response would have (spec: "If the command is not recognized and no
// driver handler exists, fail with NOT_IMPLEMENTED").
func Dispatch(c *Channel, iod driver.IoDriver, cmd driver.Command, arg any) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if res, err := driver.InvokeCommand(iod, c.SpanID, c.ChanID, cmd, arg); !isNotImplemented(err) {
		return res, err
	}

	switch cmd {
	case driver.CmdEnableCallerIDDetect:
		c.FSKDemod = fsk.NewDemodulator(c.SampleRate)
		c.Flags.Set(flags.ChannelCallerIDDetect)
		return nil, nil

	case driver.CmdDisableCallerIDDetect:
		c.FSKDemod = nil
		c.Flags.Clear(flags.ChannelCallerIDDetect)
		return nil, nil

	case driver.CmdEnableProgressDetect:
		if c.Span == nil {
			return nil, status.Errorf(status.Fail, "channel has no span")
		}
		tm := c.Span.ToneMap()
		if tm == nil {
			return nil, status.Errorf(status.Fail, "span has no tone map")
		}
		for _, k := range []tone.Kind{tone.Dial, tone.Ring, tone.Busy} {
			c.ToneDetect[k] = tone.NewDetector(tm.Detect[k], c.SampleRate)
		}
		c.DetectedTones = [8]int{}
		c.NeededTones = [8]int{}
		c.Flags.Set(flags.ChannelProgressDetect)
		return nil, nil

	case driver.CmdDisableProgressDetect:
		c.ToneDetect = [8]*tone.Detector{}
		c.Flags.Clear(flags.ChannelProgressDetect)
		return nil, nil

	case driver.CmdEnableDTMFDetect:
		if arg != "TONE_DTMF" {
			return nil, status.Errorf(status.Fail, "unsupported DTMF detect type %v", arg)
		}
		c.DTMFDetector = dtmf.NewDetector(c.SampleRate)
		c.Flags.Set(flags.ChannelDTMFDetect | flags.ChannelSuppressDTMF)
		return nil, nil

	case driver.CmdDisableDTMFDetect:
		// Open question: the original falls through into
		// GET_DTMF_ON_PERIOD here (a missing `break`); this core
		// treats the two as distinct commands and does not replicate
		// the fall-through.
		c.DTMFDetector = nil
		c.Flags.Clear(flags.ChannelDTMFDetect | flags.ChannelSuppressDTMF)
		return nil, nil

	case driver.CmdSetInterval:
		ms, ok := arg.(int)
		if !ok || ms <= 0 {
			return nil, status.Errorf(status.Fail, "invalid interval %v", arg)
		}
		c.EffInterval = ms
		if ms != c.NativeInterval {
			c.Flags.Set(flags.ChannelBuffer)
		} else {
			c.Flags.Clear(flags.ChannelBuffer)
		}
		c.recomputePacketLenLocked()
		return nil, nil

	case driver.CmdGetInterval:
		return c.EffInterval, nil

	case driver.CmdSetCodec:
		cd, ok := arg.(codec.Codec)
		if !ok {
			return nil, status.Errorf(status.Fail, "invalid codec %v", arg)
		}
		c.EffectiveCodec = cd
		c.syncTranscodeFlagLocked()
		c.recomputePacketLenLocked()
		return nil, nil

	case driver.CmdGetCodec:
		return c.EffectiveCodec, nil

	case driver.CmdSetNativeCodec:
		cd, ok := arg.(codec.Codec)
		if !ok {
			return nil, status.Errorf(status.Fail, "invalid codec %v", arg)
		}
		c.NativeCodec = cd
		c.syncTranscodeFlagLocked()
		c.recomputePacketLenLocked()
		return nil, nil

	case driver.CmdGetNativeCodec:
		return c.NativeCodec, nil

	case driver.CmdSetDTMFOnPeriod:
		ms, ok := arg.(int)
		if !ok || ms < 10 || ms > 1000 {
			return nil, status.Errorf(status.Fail, "dtmf on-period %v out of range [10,1000]", arg)
		}
		c.DTMFOnMs = ms
		return nil, nil

	case driver.CmdGetDTMFOnPeriod:
		return c.DTMFOnMs, nil

	case driver.CmdSetDTMFOffPeriod:
		ms, ok := arg.(int)
		if !ok || ms < 10 || ms > 1000 {
			return nil, status.Errorf(status.Fail, "dtmf off-period %v out of range [10,1000]", arg)
		}
		c.DTMFOffMs = ms
		return nil, nil

	case driver.CmdGetDTMFOffPeriod:
		// Open question: the original returns dtmf_on here (presumed
		// bug); this core returns dtmf_off.
		return c.DTMFOffMs, nil

	case driver.CmdSendDTMF:
		digits, ok := arg.(string)
		if !ok {
			return nil, status.Errorf(status.Fail, "SEND_DTMF requires a digit string arg")
		}
		if c.ToneSession == nil {
			c.ToneSession = tone.NewSession(&tone.Pattern{OnMs: c.DTMFOnMs, OffMs: c.DTMFOffMs, Freqs: []float64{350, 440}}, c.SampleRate)
		}
		if c.DTMFGen == nil {
			c.DTMFGen = dtmf.NewGenerator(c.SampleRate, c.DTMFOnMs, c.DTMFOffMs)
		}
		c.Buffers.GenDTMFBuffer = append(c.Buffers.GenDTMFBuffer, []byte(digits)...)
		return nil, nil

	case driver.CmdTraceInput, driver.CmdTraceOutput:
		path, ok := arg.(string)
		if !ok || path == "" {
			return nil, status.Errorf(status.Fail, "trace command requires a file path arg")
		}
		f, err := os.Create(path)
		if err != nil {
			return nil, status.Errorf(status.Fail, "opening trace file: %v", err)
		}
		if cmd == driver.CmdTraceInput {
			old := c.TraceIn
			c.TraceIn = f
			if old != nil {
				old.Close()
			}
		} else {
			old := c.TraceOut
			c.TraceOut = f
			if old != nil {
				old.Close()
			}
		}
		return nil, nil

	default:
		return nil, status.Errorf(status.NotImplemented, "command %v not recognized", cmd)
	}
}

func isNotImplemented(err error) bool {
	var se *status.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Status == status.NotImplemented
}

func (c *Channel) syncTranscodeFlagLocked() {
	if c.EffectiveCodec != c.NativeCodec {
		c.Flags.Set(flags.ChannelTranscode)
	} else {
		c.Flags.Clear(flags.ChannelTranscode)
	}
}

// recomputePacketLenLocked applies spec §4.5's
// "packet_len = native_interval × (SLIN? 16 : 8)".
func (c *Channel) recomputePacketLenLocked() {
	bytesPerMs := 8
	if c.EffectiveCodec == codec.SLIN {
		bytesPerMs = 16
	}
	c.PacketLen = c.NativeInterval * bytesPerMs
}
