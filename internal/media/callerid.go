package media

import (
	"github.com/openzap/openzap/internal/channel"
	"github.com/openzap/openzap/internal/flags"
	"github.com/openzap/openzap/internal/fsk"
)

// detectCallerIDLocked feeds one SLIN block to the channel's FSK
// demodulator; once a full message decodes, its fields are applied to
// caller_data and CALLERID_DETECT is auto-disabled (spec §4.6 step 6
// CALLERID_DETECT).
func detectCallerIDLocked(c *channel.Channel, sln []byte) {
	if !c.Flags.Test(flags.ChannelCallerIDDetect) || c.FSKDemod == nil {
		return
	}
	c.FSKDemod.Feed(sln)
	ds, err := c.FSKDemod.Decode()
	if err != nil {
		return
	}
	applyCallerID(c, ds)
	c.Flags.Clear(flags.ChannelCallerIDDetect)
	c.FSKDemod = nil
}

// applyCallerID maps a decoded MDMF/SDMF message onto caller_data, per
// spec §4.6's field table: DDN/PHONE_NUM -> ani+cid_num, NO_NUM ->
// cid_num ("private"/"unknown"), PHONE_NAME -> cid_name, NO_NAME ->
// cid_name ("private"/"unknown"), DATETIME -> cid_date. A NO_NUM or
// NO_NAME reason value of "P" maps to "private", any other to "unknown".
func applyCallerID(c *channel.Channel, ds *fsk.DataState) {
	if !ds.IsMDMF {
		c.Caller.CIDNum = ds.SDMF
		return
	}
	for _, f := range ds.Fields {
		switch f.Type {
		case fsk.MDMFDDN, fsk.MDMFPhoneNum:
			c.Caller.ANI = f.Value
			c.Caller.CIDNum = f.Value
		case fsk.MDMFNoNum:
			c.Caller.CIDNum = "unknown"
			if f.Value == "P" {
				c.Caller.CIDNum = "private"
			}
		case fsk.MDMFPhoneName:
			c.Caller.CIDName = f.Value
		case fsk.MDMFNoName:
			c.Caller.CIDName = "unknown"
			if f.Value == "P" {
				c.Caller.CIDName = "private"
			}
		case fsk.MDMFDateTime:
			c.Caller.CIDDate = f.Value
		}
	}
}

// fskSendParams selects send_fsk_data's lead/trail/prefix/buffer_delay
// quadruple based on the channel's attached token count (spec §4.7,
// verbatim from zap_channel_send_fsk_data): more than one token gets a
// short preamble since the far end is already bridged and listening;
// exactly one (or zero) gets a long preamble plus a settling delay to
// give the line time to come up.
func fskSendParams(c *channel.Channel, tokenCount int) (lead, trail, prefix, bufferDelay int) {
	if tokenCount > 1 {
		return 80, 5, 0, 0
	}
	interval := c.EffInterval
	if interval <= 0 {
		interval = 20
	}
	return 180, 5, 300, 3500 / interval
}

// SendFSKData modulates ds as Bell202 AFSK into fsk_buffer for the
// write-path mixer to drain (spec §4.7 send_fsk_data).
func SendFSKData(c *channel.Channel, ds *fsk.DataState, dbLevel float64) {
	tokenCount := c.TokenCount()

	c.Lock()
	defer c.Unlock()

	lead, trail, prefix, bufferDelay := fskSendParams(c, tokenCount)
	mod := fsk.NewModulator(c.SampleRate, lead, trail, prefix, dbLevel)
	c.Buffers.FSKBuffer = mod.Modulate(ds)
	c.BufferDelay = bufferDelay
}
