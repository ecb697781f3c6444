package tone

import (
	"fmt"
	"strconv"
	"strings"
)

// Pattern is a parsed teletone-style cadence pattern: "on" milliseconds
// of the given frequencies mixed together, then "off" milliseconds of
// silence, repeating. A Pattern with OffMs == 0 plays continuously.
type Pattern struct {
	OnMs  int
	OffMs int
	Freqs []float64
}

// ParsePattern parses a "%(on,off,f1[,f2...])" cadence string, the
// subset of the teletone pattern grammar the span's default tone map
// and tones.conf generation entries use (e.g. "%(1000,0,350,440)").
func ParsePattern(s string) (*Pattern, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "%(") || !strings.HasSuffix(s, ")") {
		return nil, fmt.Errorf("tone: malformed pattern %q", s)
	}
	body := s[2 : len(s)-1]
	fields := strings.Split(body, ",")
	if len(fields) < 3 {
		return nil, fmt.Errorf("tone: pattern %q needs on,off,freq...", s)
	}

	nums := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("tone: invalid pattern field %q: %w", f, err)
		}
		nums = append(nums, v)
	}

	return &Pattern{
		OnMs:  int(nums[0]),
		OffMs: int(nums[1]),
		Freqs: nums[2:],
	}, nil
}
