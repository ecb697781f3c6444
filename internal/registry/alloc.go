package registry

import (
	"sort"

	"github.com/openzap/openzap/internal/channel"
	"github.com/openzap/openzap/internal/driver"
	"github.com/openzap/openzap/internal/flags"
	"github.com/openzap/openzap/internal/span"
	"github.com/openzap/openzap/internal/status"
)

// HuntOrder selects the iteration order open_any walks spans and
// channels in (spec §4.3). This is a hunt-order concept, distinct from
// driver.Direction (inbound/outbound call direction), which OpenAny
// also takes and forwards to the driver unchanged.
type HuntOrder int

const (
	TopDown HuntOrder = iota
	BottomUp
)

// OpenAny implements spec §4.3 open_any: if spanHint is non-zero the
// search is restricted to that span (failing ALL-BUSY if it's already
// at capacity); if the bound driver offers ChannelRequester but not
// ChanIDSuggester, selection is delegated to the driver wholesale;
// otherwise spans (and, within each, channels) are walked in order and
// the first READY ∧ ¬INUSE ∧ ¬SUSPENDED ∧ DOWN channel is opened.
func (r *Registry) OpenAny(spanHint uint32, order HuntOrder, direction driver.Direction, caller driver.CallerData) (*channel.Channel, error) {
	var candidates []*span.Span
	if spanHint != 0 {
		s := r.FindSpanByID(spanHint)
		if s == nil {
			return nil, status.Errorf(status.Fail, "span %d not found", spanHint)
		}
		if s.ActiveCount() >= s.ChannelCount() {
			return nil, status.Errorf(status.Fail, "span %d ALL-BUSY", spanHint)
		}
		candidates = []*span.Span{s}
	} else {
		candidates = r.orderedSpans(order)
	}

	for _, s := range candidates {
		d, ok := r.driverFor(s.ID)
		if !ok {
			continue
		}

		if _, isRequester := d.(driver.ChannelRequester); isRequester {
			if _, isSuggester := d.(driver.ChanIDSuggester); !isSuggester {
				chanID, err := driver.InvokeChannelRequest(d, s.ID, direction, caller)
				if err != nil {
					return nil, err
				}
				return r.claim(s, d, chanID, direction, caller)
			}
		}

		for _, chanID := range r.orderedChannels(s, order) {
			c := s.Channel(chanID)
			if !eligible(s, c) {
				continue
			}
			return r.claim(s, d, chanID, direction, caller)
		}
	}

	return nil, status.Errorf(status.Fail, "no eligible channel (ALL-BUSY)")
}

// Open implements spec §4.3 open: direct span/channel selection,
// permitted to re-open an already-open FXS channel carrying exactly
// one token (the 3-way / call-waiting attach case).
func (r *Registry) Open(spanID, chanID uint32) (*channel.Channel, error) {
	s := r.FindSpanByID(spanID)
	if s == nil {
		return nil, status.Errorf(status.Fail, "span %d not found", spanID)
	}
	d, ok := r.driverFor(spanID)
	if !ok {
		return nil, status.Errorf(status.Fail, "span %d has no bound driver", spanID)
	}
	c := s.Channel(chanID)
	if c == nil {
		return nil, status.Errorf(status.Fail, "channel %d:%d not found", spanID, chanID)
	}

	if c.Flags.Test(flags.ChannelOpen) {
		if c.Type != channel.TypeFXS || c.TokenCount() != 1 {
			return nil, status.Errorf(status.Fail, "channel %d:%d already open", spanID, chanID)
		}
		return c, nil
	}

	if err := d.Open(spanID, chanID); err != nil {
		return nil, err
	}
	c.Flags.Set(flags.ChannelInuse | flags.ChannelOpen)
	return c, nil
}

func eligible(s *span.Span, c *channel.Channel) bool {
	if c == nil {
		return false
	}
	if s.IsSuspended() {
		return false
	}
	if !c.Flags.Test(flags.ChannelReady) {
		return false
	}
	if c.Flags.Test(flags.ChannelInuse) {
		return false
	}
	return c.State() == channel.StateDown
}

func (r *Registry) claim(s *span.Span, d driver.IoDriver, chanID uint32, direction driver.Direction, caller driver.CallerData) (*channel.Channel, error) {
	c := s.Channel(chanID)
	if c == nil {
		return nil, status.Errorf(status.Fail, "channel %d:%d not found", s.ID, chanID)
	}
	if err := d.Open(s.ID, chanID); err != nil {
		return nil, err
	}
	c.Flags.Set(flags.ChannelInuse | flags.ChannelOpen)
	if direction == driver.DirectionOutbound {
		c.Flags.Set(flags.ChannelOutbound)
	}
	c.Caller = caller
	return c, nil
}

// orderedSpans returns every registered span sorted by id, ascending
// for TOP_DOWN and descending for BOTTOM_UP (spec §4.3).
func (r *Registry) orderedSpans(order HuntOrder) []*span.Span {
	r.mu.Lock()
	ids := make([]uint32, 0, len(r.spans))
	for id := range r.spans {
		ids = append(ids, id)
	}
	spans := r.spans
	r.mu.Unlock()

	sortUint32s(ids, order)
	out := make([]*span.Span, 0, len(ids))
	for _, id := range ids {
		out = append(out, spans[id])
	}
	return out
}

// orderedChannels returns s's installed channel ids in the requested
// hunt order.
func (r *Registry) orderedChannels(s *span.Span, order HuntOrder) []uint32 {
	ids := s.Channels()
	sortUint32s(ids, order)
	return ids
}

func sortUint32s(ids []uint32, order HuntOrder) {
	sort.Slice(ids, func(i, j int) bool {
		if order == BottomUp {
			return ids[i] > ids[j]
		}
		return ids[i] < ids[j]
	})
}
