package confio

import (
	"fmt"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/openzap/openzap/internal/tone"
)

// LoadTones parses a tones.conf-shaped file's `[<mapName>]` section
// (spec §4.9 zap_span_load_tones): each `detect-<kind>` key is a
// comma-separated frequency list, each `generate-<kind>` key a raw
// teletone pattern string. An unrecognized tone kind or a section that
// yields zero loaded tones is a failure, matching the original.
func LoadTones(path, mapName string) (*tone.Map, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("confio: loading %s: %w", path, err)
	}
	sec, err := cfg.GetSection(mapName)
	if err != nil {
		return nil, fmt.Errorf("confio: %s: no tone map %q", path, mapName)
	}

	m := tone.NewDefaultMap()
	loaded := 0
	for _, key := range sec.Keys() {
		name := key.Name()
		switch {
		case strings.HasPrefix(name, "detect-"):
			kindName := strings.TrimPrefix(name, "detect-")
			kind, ok := tone.ParseKind(kindName)
			if !ok {
				return nil, fmt.Errorf("confio: %s: unknown tone kind %q", path, kindName)
			}
			if err := m.SetDetect(kind, key.Value()); err != nil {
				return nil, fmt.Errorf("confio: %s: %w", path, err)
			}
			loaded++
		case strings.HasPrefix(name, "generate-"):
			kindName := strings.TrimPrefix(name, "generate-")
			kind, ok := tone.ParseKind(kindName)
			if !ok {
				return nil, fmt.Errorf("confio: %s: unknown tone kind %q", path, kindName)
			}
			m.SetGenerate(kind, key.Value())
			loaded++
		}
	}
	if loaded == 0 {
		return nil, fmt.Errorf("confio: %s: tone map %q loaded zero tones", path, mapName)
	}
	return m, nil
}
