package constraint

import (
	"fmt"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// Kind discriminates the constraint union.
type Kind int

const (
	// KindAny accepts every version.
	KindAny Kind = iota
	// KindExact accepts a single version.
	KindExact
	// KindRange accepts versions between two (possibly open) bounds.
	KindRange
	// KindEmpty accepts nothing; it is the result of intersecting
	// non-overlapping constraints.
	KindEmpty
	// KindSource pins a dependency to a non-versioned source reference
	// (git repository, direct URL or local path).
	KindSource
)

// SourceKind identifies the flavor of a source reference.
type SourceKind string

const (
	SourceGit  SourceKind = "git"
	SourceURL  SourceKind = "url"
	SourcePath SourceKind = "path"
)

// Source is a non-versioned pin. Sources are never blended with version
// ranges: once declared, a source wins every intersection it takes part in.
type Source struct {
	Kind     SourceKind
	Location string
	Revision string
}

// String renders the canonical textual form of a source reference, which is
// also what fingerprints use when a package has no pinned version.
func (s Source) String() string {
	var b strings.Builder
	if s.Kind == SourceGit {
		b.WriteString("git+")
	}
	b.WriteString(s.Location)
	if s.Revision != "" {
		b.WriteString("@")
		b.WriteString(s.Revision)
	}
	return b.String()
}

// Constraint is a version requirement: unconstrained, an exact version, a
// bounded range, unsatisfiable, or a source reference.
type Constraint struct {
	kind Kind

	exact     *goversion.Version
	exactText string

	min, max         *goversion.Version
	minText, maxText string
	incMin, incMax   bool

	src *Source
}

// Any returns the unconstrained constraint.
func Any() Constraint { return Constraint{kind: KindAny} }

// Empty returns the unsatisfiable constraint.
func Empty() Constraint { return Constraint{kind: KindEmpty} }

// Exact returns a constraint pinned to exactly v.
func Exact(v string) (Constraint, error) {
	parsed, err := goversion.NewVersion(v)
	if err != nil {
		return Constraint{}, &MalformedConstraintError{Text: v, Reason: err.Error()}
	}
	return Constraint{kind: KindExact, exact: parsed, exactText: v}, nil
}

// FromSource returns a constraint pinned to the given source reference.
func FromSource(src Source) Constraint {
	return Constraint{kind: KindSource, src: &src}
}

// Kind reports which member of the union this constraint is.
func (c Constraint) Kind() Kind { return c.kind }

// IsEmpty reports whether no version can satisfy the constraint.
func (c Constraint) IsEmpty() bool { return c.kind == KindEmpty }

// IsAny reports whether the constraint is unconstrained.
func (c Constraint) IsAny() bool { return c.kind == KindAny }

// IsSource reports whether the constraint is a source reference.
func (c Constraint) IsSource() bool { return c.kind == KindSource }

// Source returns the source reference of a KindSource constraint.
func (c Constraint) Source() (Source, bool) {
	if c.src == nil {
		return Source{}, false
	}
	return *c.src, true
}

// ExactVersion returns the pinned version text of a KindExact constraint.
func (c Constraint) ExactVersion() (string, bool) {
	if c.kind != KindExact {
		return "", false
	}
	return c.exactText, true
}

// String renders the constraint in its canonical textual form.
func (c Constraint) String() string {
	switch c.kind {
	case KindAny:
		return "*"
	case KindEmpty:
		return "<empty>"
	case KindExact:
		return c.exactText
	case KindSource:
		return c.src.String()
	case KindRange:
		var parts []string
		if c.min != nil {
			op := ">"
			if c.incMin {
				op = ">="
			}
			parts = append(parts, op+c.minText)
		}
		if c.max != nil {
			op := "<"
			if c.incMax {
				op = "<="
			}
			parts = append(parts, op+c.maxText)
		}
		if len(parts) == 0 {
			return "*"
		}
		return strings.Join(parts, ",")
	}
	return "<invalid>"
}

// Allows reports whether the given version satisfies the constraint. Source
// constraints allow nothing by version.
func (c Constraint) Allows(v *goversion.Version) bool {
	switch c.kind {
	case KindAny:
		return true
	case KindExact:
		return c.exact.Equal(v)
	case KindRange:
		if c.min != nil {
			cmp := v.Compare(c.min)
			if cmp < 0 || (cmp == 0 && !c.incMin) {
				return false
			}
		}
		if c.max != nil {
			cmp := v.Compare(c.max)
			if cmp > 0 || (cmp == 0 && !c.incMax) {
				return false
			}
		}
		return true
	}
	return false
}

// Intersect returns the constraint satisfied by exactly the versions allowed
// by both a and b. It is commutative and associative for version constraints.
// A source reference is never blended: intersecting anything with a source
// returns the source unchanged, the earlier operand winning when both are
// sources.
func Intersect(a, b Constraint) Constraint {
	if a.kind == KindSource {
		return a
	}
	if b.kind == KindSource {
		return b
	}
	if a.kind == KindEmpty || b.kind == KindEmpty {
		return Empty()
	}
	if a.kind == KindAny {
		return b
	}
	if b.kind == KindAny {
		return a
	}

	if a.kind == KindExact && b.kind == KindExact {
		if a.exact.Equal(b.exact) {
			// Equal versions may still be spelled differently ("1.5" vs
			// "1.5.0"); pick the canonical spelling so the result does not
			// depend on operand order.
			if preferText(b.exactText, a.exactText) {
				return b
			}
			return a
		}
		return Empty()
	}
	if a.kind == KindExact {
		if b.Allows(a.exact) {
			return a
		}
		return Empty()
	}
	if b.kind == KindExact {
		if a.Allows(b.exact) {
			return b
		}
		return Empty()
	}

	return intersectRanges(a, b)
}

func intersectRanges(a, b Constraint) Constraint {
	out := Constraint{kind: KindRange}

	out.min, out.minText, out.incMin = a.min, a.minText, a.incMin
	if tighterMin(b, out) {
		out.min, out.minText, out.incMin = b.min, b.minText, b.incMin
	}
	out.max, out.maxText, out.incMax = a.max, a.maxText, a.incMax
	if tighterMax(b, out) {
		out.max, out.maxText, out.incMax = b.max, b.maxText, b.incMax
	}

	if out.min != nil && out.max != nil {
		cmp := out.min.Compare(out.max)
		if cmp > 0 {
			return Empty()
		}
		if cmp == 0 {
			if out.incMin && out.incMax {
				return Constraint{kind: KindExact, exact: out.min, exactText: out.minText}
			}
			return Empty()
		}
	}
	if out.min == nil && out.max == nil {
		return Any()
	}
	return out
}

func tighterMin(b, cur Constraint) bool {
	if b.min == nil {
		return false
	}
	if cur.min == nil {
		return true
	}
	cmp := b.min.Compare(cur.min)
	if cmp != 0 {
		return cmp > 0
	}
	if b.incMin != cur.incMin {
		return !b.incMin
	}
	return preferText(b.minText, cur.minText)
}

func tighterMax(b, cur Constraint) bool {
	if b.max == nil {
		return false
	}
	if cur.max == nil {
		return true
	}
	cmp := b.max.Compare(cur.max)
	if cmp != 0 {
		return cmp < 0
	}
	if b.incMax != cur.incMax {
		return !b.incMax
	}
	return preferText(b.maxText, cur.maxText)
}

// preferText reports whether x is the canonical spelling of two texts
// naming the same version: the shorter one, falling back to byte order.
func preferText(x, y string) bool {
	if len(x) != len(y) {
		return len(x) < len(y)
	}
	return x < y
}

// MalformedConstraintError reports a version expression that could not be
// parsed. The merge layer annotates it with the dependency and addon that
// produced it.
type MalformedConstraintError struct {
	Text   string
	Reason string
}

func (e *MalformedConstraintError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("malformed version constraint %q", e.Text)
	}
	return fmt.Sprintf("malformed version constraint %q: %s", e.Text, e.Reason)
}
