package manifest

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"

	"github.com/atriumdesk/bundlectl/pkg/constraint"
)

// Document is a decoded but not yet platform-resolved manifest file. The
// required sections are the primary dependency table and the application
// metadata block with its runtime dependency table:
//
//	[dependencies]
//	requests = "^2.28"
//
//	[atrium]
//	name = "publisher"
//	version = "1.2.0"
//
//	[atrium.runtime]
//	ffmpeg = { win32 = { version = "4.4" }, version = "4.3" }
type Document struct {
	Dependencies map[string]any `toml:"dependencies"`
	Atrium       Section        `toml:"atrium"`
}

// Section is the addon-defined metadata block of a manifest document.
type Section struct {
	Name    string         `toml:"name"`
	Version string         `toml:"version"`
	Runtime map[string]any `toml:"runtime"`
}

// ParseDocument decodes and validates a manifest document.
//
// A table that is present but empty decodes to a nil map on the struct,
// indistinguishable from an absent one. Presence is therefore checked on the
// raw document, and seen-but-empty tables are normalized to empty maps so
// only truly missing sections fail validation. Addons with no runtime
// dependencies ship an empty [atrium.runtime] table all the time.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}

	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	if _, ok := raw["dependencies"]; ok && doc.Dependencies == nil {
		doc.Dependencies = map[string]any{}
	}
	if atrium, ok := raw["atrium"].(map[string]any); ok {
		if _, ok := atrium["runtime"]; ok && doc.Atrium.Runtime == nil {
			doc.Atrium.Runtime = map[string]any{}
		}
	}

	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks that both required sections are present. A missing section
// is reported by its path.
func (d *Document) Validate() error {
	if d.Dependencies == nil {
		return &ValidationError{Path: "dependencies"}
	}
	if d.Atrium.Runtime == nil {
		return &ValidationError{Path: "atrium.runtime"}
	}
	return nil
}

// Resolve selects the platform branch of every variant-shaped entry and
// parses all constraints, producing a Manifest the merger can consume.
// Variant selection always happens here, before any cross-manifest merge.
func (d *Document) Resolve(platform string) (*Manifest, error) {
	m := New()
	for name, raw := range d.Dependencies {
		c, err := resolveEntry(name, raw, platform)
		if err != nil {
			return nil, err
		}
		m.Primary[name] = c
	}
	for name, raw := range d.Atrium.Runtime {
		c, err := resolveEntry(name, raw, platform)
		if err != nil {
			return nil, err
		}
		m.Runtime[name] = c
	}
	return m, nil
}

func resolveEntry(name string, raw any, platform string) (constraint.Constraint, error) {
	selected, err := ResolveVariant(name, raw, platform)
	if err != nil {
		return constraint.Constraint{}, err
	}
	c, err := constraint.ParseEntry(selected)
	if err != nil {
		return constraint.Constraint{}, fmt.Errorf("dependency %s: %w", name, err)
	}
	return c, nil
}

// MarshalTOML renders a resolved manifest back into document form, with
// every constraint in its canonical textual spelling. The resolver engine
// adapter feeds this to the external solver.
func MarshalTOML(m *Manifest, appName, appVersion string) ([]byte, error) {
	doc := struct {
		Dependencies map[string]string `toml:"dependencies"`
		Atrium       struct {
			Name    string            `toml:"name"`
			Version string            `toml:"version"`
			Runtime map[string]string `toml:"runtime"`
		} `toml:"atrium"`
	}{
		Dependencies: map[string]string{},
	}
	doc.Atrium.Name = appName
	doc.Atrium.Version = appVersion
	doc.Atrium.Runtime = map[string]string{}

	for name, c := range m.Primary {
		doc.Dependencies[name] = c.String()
	}
	for name, c := range m.Runtime {
		doc.Atrium.Runtime[name] = c.String()
	}
	return toml.Marshal(doc)
}
