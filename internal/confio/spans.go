// Package confio reads the openzap.conf/tones.conf/modules.conf family
// (spec §6 configuration surface; SPEC_FULL §4.10), all INI-shaped and
// all parsed with gopkg.in/ini.v1 rather than a hand-rolled scanner —
// the teacher pulls in the same library (indirectly, via its own
// dependency tree) for structured config; this core promotes it to a
// direct dependency and gives it the actual job.
package confio

import (
	"fmt"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/openzap/openzap/internal/driver"
)

// LoadSpans parses an openzap.conf-shaped file: one `[span <driver>
// [name]]` section per trunk, each becoming one driver.SpanConfig
// (spec §6, transcribed from zap_io.c's load_config). Section headers
// with fewer than two space-separated tokens are rejected; "span" is
// required verbatim as the first token.
func LoadSpans(path string) ([]driver.SpanConfig, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{AllowShadows: true}, path)
	if err != nil {
		return nil, fmt.Errorf("confio: loading %s: %w", path, err)
	}

	var out []driver.SpanConfig
	for _, sec := range cfg.Sections() {
		header := sec.Name()
		if header == ini.DefaultSection {
			continue
		}
		fields := strings.Fields(header)
		if len(fields) < 2 || fields[0] != "span" {
			return nil, fmt.Errorf("confio: %s: invalid span section header %q", path, header)
		}

		sc := driver.SpanConfig{
			TrunkType: fields[1],
		}
		if len(fields) >= 3 {
			sc.Name = strings.Join(fields[2:], " ")
		}

		if k := sec.Key("name"); k.Value() != "" {
			sc.Name = k.Value()
		}
		sc.Number = sec.Key("number").Value()
		sc.AnalogStartType = sec.Key("analog-start-type").Value()
		sc.DTMFHangup = sec.Key("dtmf_hangup").Value()

		sc.FXOChannels = sec.Key("fxo-channel").ValueWithShadows()
		sc.FXSChannels = sec.Key("fxs-channel").ValueWithShadows()
		sc.EMChannels = sec.Key("em-channel").ValueWithShadows()
		sc.BChannels = sec.Key("b-channel").ValueWithShadows()
		sc.DChannels = sec.Key("d-channel").ValueWithShadows()
		sc.CASChannels = sec.Key("cas-channel").ValueWithShadows()

		out = append(out, sc)
	}
	return out, nil
}

// LoadModules parses a modules.conf-shaped file's `[modules]` section:
// repeated `load = <name>` keys become a load-order name list (spec §1
// puts actually dynamically loading a shared object out of scope;
// internal/registry consumes this list only to know what names a
// caller-supplied driver map should satisfy).
func LoadModules(path string) ([]string, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{AllowShadows: true}, path)
	if err != nil {
		return nil, fmt.Errorf("confio: loading %s: %w", path, err)
	}
	sec, err := cfg.GetSection("modules")
	if err != nil {
		return nil, fmt.Errorf("confio: %s: missing [modules] section", path)
	}
	return sec.Key("load").ValueWithShadows(), nil
}
