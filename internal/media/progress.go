package media

import (
	"github.com/openzap/openzap/internal/channel"
	"github.com/openzap/openzap/internal/flags"
)

// detectProgressLocked runs each configured progress tone's detector
// over one SLIN block; a hit clears that tone's needed_tones slot and
// bumps both its own and the running total detected_tones counter
// (spec §4.6 step 6 PROGRESS_DETECT).
func detectProgressLocked(c *channel.Channel, sln []byte) {
	if !c.Flags.Test(flags.ChannelProgressDetect) {
		return
	}
	for _, k := range progressKinds {
		if c.NeededTones[k] <= 0 {
			continue
		}
		det := c.ToneDetect[k]
		if det == nil {
			continue
		}
		if det.Detect(sln) {
			c.NeededTones[k] = 0
			c.DetectedTones[k]++
			c.DetectedTones[0]++
		}
	}
}
