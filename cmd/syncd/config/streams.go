package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/HatiCode/tempalign/pkg/align"
	"github.com/HatiCode/tempalign/pkg/storage"
)

// EnvPrefix prefixes the environment overrides of the streams file.
const EnvPrefix = "TEMPALIGN_"

// StreamConfig declares one telemetry stream of a site.
//
// ValueColumn selects the column holding the stream's readings; it
// defaults to the adapter's "value" column and may name an extra column
// of the HTTP adapter.
type StreamConfig struct {
	Name          string            `koanf:"name"`
	Role          string            `koanf:"role"`
	Required      bool              `koanf:"required"`
	Adapter       string            `koanf:"adapter"`
	AdapterConfig map[string]string `koanf:"config"`
	ValueColumn   string            `koanf:"value_column"`
}

// Site is the content of a streams file:
//
//	site: plant-a
//	mode: grid
//	streams:
//	  - name: chwst
//	    role: CHWST
//	    required: true
//	    adapter: prometheus
//	    config:
//	      query: avg(chiller_supply_temp_f)
type Site struct {
	Site    string         `koanf:"site"`
	Mode    align.Mode     `koanf:"mode"`
	Streams []StreamConfig `koanf:"streams"`
}

// Required returns the names of the required streams in file order.
func (s *Site) Required() []string {
	var out []string
	for _, st := range s.Streams {
		if st.Required {
			out = append(out, st.Name)
		}
	}
	return out
}

// LoadStreams reads a streams file and applies TEMPALIGN_SITE and
// TEMPALIGN_MODE overrides from the environment.
func LoadStreams(path string) (*Site, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load streams file %s: %w", path, err)
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment overrides: %w", err)
	}

	site := &Site{Mode: align.ModeGrid}
	if err := k.UnmarshalWithConf("", site, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode streams file %s: %w", path, err)
	}
	if err := site.Validate(); err != nil {
		return nil, err
	}
	return site, nil
}

// Validate checks the site name, mode and stream declarations. An empty
// mode is normalized to grid.
func (s *Site) Validate() error {
	if err := storage.ValidateSite(s.Site); err != nil {
		return err
	}
	mode, err := align.ParseMode(string(s.Mode))
	if err != nil {
		return err
	}
	s.Mode = mode
	if len(s.Streams) == 0 {
		return fmt.Errorf("site %q declares no streams", s.Site)
	}

	seen := make(map[string]bool, len(s.Streams))
	for i := range s.Streams {
		st := &s.Streams[i]
		if st.Name == "" {
			return fmt.Errorf("stream[%d]: name cannot be empty", i)
		}
		if seen[st.Name] {
			return fmt.Errorf("stream %q: declared twice", st.Name)
		}
		seen[st.Name] = true
		if st.Adapter == "" {
			return fmt.Errorf("stream %q: adapter cannot be empty", st.Name)
		}
		if st.ValueColumn == "" {
			st.ValueColumn = "value"
		}
	}
	if len(s.Required()) == 0 {
		return fmt.Errorf("site %q: at least one stream must be required", s.Site)
	}
	return nil
}
