package media

import (
	"github.com/openzap/openzap/internal/channel"
	"github.com/openzap/openzap/internal/codec"
	"github.com/openzap/openzap/internal/driver"
	"github.com/openzap/openzap/internal/flags"
	"github.com/openzap/openzap/internal/tone"
)

// maxGenDrain bounds how many ASCII digits handle_dtmf drains from
// gen_dtmf_buffer per call (spec §4.6 handle_dtmf step 1).
const maxGenDrain = 127

// handleDTMFLocked drains any queued outbound DTMF into dtmf_buffer (or
// relays a flash digit straight to the driver), then mixes whichever
// buffer is active down to native codec and writes it out (spec §4.6
// "handle_dtmf (drain + mix)"). c must already be locked.
func handleDTMFLocked(c *channel.Channel, iod driver.IoDriver) {
	if len(c.Buffers.GenDTMFBuffer) > 0 {
		n := len(c.Buffers.GenDTMFBuffer)
		if n > maxGenDrain {
			n = maxGenDrain
		}
		digits := c.Buffers.GenDTMFBuffer[:n]
		c.Buffers.GenDTMFBuffer = c.Buffers.GenDTMFBuffer[n:]

		count := 0
		for _, d := range digits {
			if d == 'F' {
				driver.InvokeCommand(iod, c.SpanID, c.ChanID, driver.CmdFlash, nil)
				continue
			}
			if c.DTMFGen == nil {
				continue
			}
			pcm, err := c.DTMFGen.Synthesize(d)
			if err != nil {
				continue
			}
			c.Buffers.DTMFBuffer = append(c.Buffers.DTMFBuffer, pcm...)
			count++
		}
		c.SkipReadFrames = 200 * count
	}

	if c.BufferDelay > 0 {
		c.BufferDelay--
		return
	}

	active := &c.Buffers.DTMFBuffer
	if len(*active) == 0 {
		active = &c.Buffers.FSKBuffer
	}
	if len(*active) == 0 {
		return
	}

	slinLen := c.PacketLen
	if c.NativeCodec != codec.SLIN {
		slinLen *= 2
	}
	n := slinLen
	if n > len(*active) {
		n = len(*active)
	}
	chunk := make([]byte, slinLen) // zero-padded remainder
	copy(chunk, (*active)[:n])
	*active = (*active)[n:]

	out := chunk
	if c.NativeCodec != codec.SLIN {
		if fn := codec.Lookup(codec.SLIN, c.NativeCodec); fn != nil {
			out = fn(chunk)
		}
	}
	iod.Write(c.SpanID, c.ChanID, out)
}

// detectDTMFLocked runs the DTMF detector over one SLIN block, routing
// a recognized digit either into the CALLWAITING_ACK tone counter or
// into digit_buffer plus an EVENT_DTMF callback, and arming
// skip_read_frames when SUPPRESS_DTMF is set (spec §4.6 step 6
// DTMF_DETECT).
func detectDTMFLocked(c *channel.Channel, sln []byte) {
	if !c.Flags.Test(flags.ChannelDTMFDetect) || c.DTMFDetector == nil {
		return
	}
	digit, ok := c.DTMFDetector.Detect(sln)
	if !ok {
		return
	}

	if c.StateLocked() == channel.StateCallwaiting && (digit == 'D' || digit == 'A') {
		c.DetectedTones[tone.CallwaitingAck]++
		c.DetectedTones[0]++
		return
	}

	c.QueueDTMFLocked(string(digit))
	if c.Span != nil {
		c.Span.Emit(c.EventCallback, c.ChanID, driver.EventDTMF, string(digit))
	}
	if c.Flags.Test(flags.ChannelSuppressDTMF) {
		c.SkipReadFrames = 20
	}
}
