// Package preset holds named layout configurations for the compositor and
// loads custom ones from YAML files.
package preset

import (
	"fmt"
	"os"
	"sort"

	"github.com/AnyUserName/apix-cli/internal/compositor"
	"gopkg.in/yaml.v3"
)

// Preset is a named compositor.Spec.
type Preset struct {
	Name string
	Spec compositor.Spec
}

// DefaultName is used when no preset is requested.
const DefaultName = "contact-sheet"

// Built-in presets.
var presets = map[string]Preset{
	"contact-sheet": {
		Name: "contact-sheet",
		Spec: compositor.Spec{
			Layout:          compositor.LayoutGrid,
			Gap:             16,
			BackgroundColor: "#ffffff",
		},
	},
	"lookbook": {
		Name: "lookbook",
		Spec: compositor.Spec{
			Layout:          compositor.LayoutGrid,
			Gap:             24,
			BackgroundColor: "#ffffff",
			Labels:          compositor.Labels{Enabled: true, FontColor: "#222222", BackgroundColor: "#ffffff", BaseFontSize: 28},
		},
	},
	"strip": {
		Name: "strip",
		Spec: compositor.Spec{
			Layout:          compositor.LayoutRow,
			Gap:             8,
			BackgroundColor: "#000000",
		},
	},
	"comparison": {
		Name: "comparison",
		Spec: compositor.Spec{
			Layout:          compositor.LayoutRow,
			Gap:             20,
			BackgroundColor: "#ffffff",
			Labels:          compositor.Labels{Enabled: true, BaseFontSize: 24},
		},
	},
	"story": {
		Name: "story",
		Spec: compositor.Spec{
			Layout:          compositor.LayoutColumn,
			Gap:             12,
			BackgroundColor: "#ffffff",
			Labels:          compositor.Labels{Enabled: true, BaseFontSize: 22},
		},
	},
}

// Get returns a preset by name. Unknown names report ok=false.
func Get(name string) (Preset, bool) {
	if name == "" {
		name = DefaultName
	}
	p, ok := presets[name]
	return p, ok
}

// Names lists the built-in presets in alphabetical order.
func Names() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// File is the YAML layout file format. Base names a built-in preset whose
// values apply before the file's own. Items is optional; the CLI appends
// positional arguments to it.
type File struct {
	Base  string            `yaml:"base"`
	Spec  compositor.Spec   `yaml:"spec"`
	Items []compositor.Item `yaml:"items"`
}

// LoadFile reads a layout file and resolves it against its base preset.
func LoadFile(path string) (compositor.Spec, []compositor.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return compositor.Spec{}, nil, err
	}
	return Parse(data)
}

// Parse decodes a layout document. Fields absent from the document keep
// the base preset's values.
func Parse(data []byte) (compositor.Spec, []compositor.Item, error) {
	var head struct {
		Base string `yaml:"base"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return compositor.Spec{}, nil, fmt.Errorf("parse layout: %w", err)
	}
	base, ok := Get(head.Base)
	if !ok {
		return compositor.Spec{}, nil, fmt.Errorf("unknown base preset %q", head.Base)
	}

	f := File{Spec: base.Spec}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return compositor.Spec{}, nil, fmt.Errorf("parse layout: %w", err)
	}
	return f.Spec, f.Items, nil
}
