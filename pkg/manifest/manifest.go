package manifest

import (
	"fmt"
	"sort"

	"github.com/atriumdesk/bundlectl/pkg/constraint"
)

// InterpreterName is the reserved dependency name pinning the embedded
// language runtime. It is carried through merges like any other primary
// dependency but never appears in a resolver closure.
const InterpreterName = "python"

// Manifest is one platform-resolved dependency manifest: what the
// application's entry points import directly (Primary) and what is required
// only at execution time (Runtime). All platform variants have already been
// selected; values are plain constraints.
type Manifest struct {
	Primary map[string]constraint.Constraint
	Runtime map[string]constraint.Constraint
}

// New returns an empty manifest with initialized maps.
func New() *Manifest {
	return &Manifest{
		Primary: map[string]constraint.Constraint{},
		Runtime: map[string]constraint.Constraint{},
	}
}

// FromPins builds a manifest from pinned version maps, as delivered by the
// directory service for an installer. Values are constraint expressions;
// empty strings mean unconstrained.
func FromPins(primary, runtime map[string]string) (*Manifest, error) {
	m := New()
	for name, text := range primary {
		c, err := constraint.Parse(text)
		if err != nil {
			return nil, fmt.Errorf("installer dependency %s: %w", name, err)
		}
		m.Primary[name] = c
	}
	for name, text := range runtime {
		c, err := constraint.Parse(text)
		if err != nil {
			return nil, fmt.Errorf("installer runtime dependency %s: %w", name, err)
		}
		m.Runtime[name] = c
	}
	return m, nil
}

// Clone returns a deep copy. Merge works on a clone so the input manifest is
// never mutated.
func (m *Manifest) Clone() *Manifest {
	out := New()
	for name, c := range m.Primary {
		out.Primary[name] = c
	}
	for name, c := range m.Runtime {
		out.Runtime[name] = c
	}
	return out
}

// PrimaryNames returns the primary dependency names in byte order.
func (m *Manifest) PrimaryNames() []string {
	return sortedNames(m.Primary)
}

// RuntimeNames returns the runtime dependency names in byte order.
func (m *Manifest) RuntimeNames() []string {
	return sortedNames(m.Runtime)
}

func sortedNames(set map[string]constraint.Constraint) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AddonContribution is one addon's manifest document plus its identity.
// Contributions are merged into an accumulating base manifest one at a time;
// callers sort them by addon name so re-merges are reproducible.
type AddonContribution struct {
	Name    string
	Version string
	Doc     *Document
}

// ID renders the addon identity used in conflict reports.
func (a AddonContribution) ID() string {
	if a.Version == "" {
		return a.Name
	}
	return a.Name + "@" + a.Version
}

// ValidationError reports a structurally invalid manifest document, naming
// the missing section path.
type ValidationError struct {
	Path string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("manifest is missing required section %q", e.Path)
}
