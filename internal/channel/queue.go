package channel

import "github.com/openzap/openzap/internal/dtmf"

// maxDigitBuffer bounds digit_buffer; the oldest captured digit is
// dropped on overflow (spec §4.6 "DTMF queueing").
const maxDigitBuffer = 256

// QueueDTMF appends each valid DTMF character in ascii to digit_buffer
// and maintains the rolling dtmf_hangup_buf window, transitioning the
// channel to HANGUP the moment that window matches the span's
// configured hangup string (spec §4.6 queue_dtmf). The digit that
// completes the match, and any input after it, is not appended.
func (c *Channel) QueueDTMF(ascii string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.QueueDTMFLocked(ascii)
}

// QueueDTMFLocked is QueueDTMF for a caller that already holds c's
// mutex (spec §4.6 read-path DTMF detect, which enqueues digits while
// the media pipeline holds the channel locked for the whole frame).
func (c *Channel) QueueDTMFLocked(ascii string) {
	hangup := ""
	if c.Span != nil {
		hangup = c.Span.DTMFHangup()
	}

	for i := 0; i < len(ascii); i++ {
		d := ascii[i]
		if !dtmf.IsDigit(d) {
			continue
		}

		if hangup != "" {
			c.Buffers.DTMFHangupBuf = append(c.Buffers.DTMFHangupBuf, d)
			if over := len(c.Buffers.DTMFHangupBuf) - len(hangup); over > 0 {
				c.Buffers.DTMFHangupBuf = c.Buffers.DTMFHangupBuf[over:]
			}
			if string(c.Buffers.DTMFHangupBuf) == hangup {
				c.setStateLocked(StateHangup)
				return
			}
		}

		c.Buffers.DigitBuffer = append(c.Buffers.DigitBuffer, d)
		if over := len(c.Buffers.DigitBuffer) - maxDigitBuffer; over > 0 {
			c.Buffers.DigitBuffer = c.Buffers.DigitBuffer[over:]
		}
	}
}

// DequeueDTMF pops up to max bytes from the front of digit_buffer.
func (c *Channel) DequeueDTMF(max int) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if max > len(c.Buffers.DigitBuffer) {
		max = len(c.Buffers.DigitBuffer)
	}
	out := string(c.Buffers.DigitBuffer[:max])
	c.Buffers.DigitBuffer = c.Buffers.DigitBuffer[max:]
	return out
}
