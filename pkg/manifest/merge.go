package manifest

import (
	"fmt"

	"github.com/atriumdesk/bundlectl/pkg/constraint"
)

// VersionConflictError reports two contributors requiring mutually exclusive
// versions of the same dependency. It is an expected business failure, never
// auto-resolved by picking one side.
type VersionConflictError struct {
	Dependency string
	Addon      string
	Base       constraint.Constraint
	Incoming   constraint.Constraint
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf(
		"dependency %s: constraint %s from addon %s cannot be reconciled with accumulated constraint %s",
		e.Dependency, e.Incoming, e.Addon, e.Base,
	)
}

// Merge folds one addon contribution into an accumulated base manifest and
// returns the result. The base is never mutated, so merges in different
// orders stay independently testable; the production caller applies addons
// in a fixed name-sorted order.
//
// Addon runtime entries whose name already exists as a primary dependency
// are merged into the primary slot: primary is the canonical slot for a
// name, and runtime-only never shadows it.
func Merge(base *Manifest, addon AddonContribution, platform string) (*Manifest, error) {
	resolved, err := addon.Doc.Resolve(platform)
	if err != nil {
		return nil, fmt.Errorf("addon %s: %w", addon.ID(), err)
	}

	out := base.Clone()

	for _, name := range resolved.PrimaryNames() {
		incoming := resolved.Primary[name]

		// An addon promoting a runtime-only name to primary folds the
		// accumulated runtime constraint into the primary slot.
		if prior, ok := out.Runtime[name]; ok {
			merged, err := reconcile(name, addon.ID(), prior, incoming)
			if err != nil {
				return nil, err
			}
			incoming = merged
			delete(out.Runtime, name)
		}

		if err := mergeInto(out.Primary, name, addon.ID(), incoming); err != nil {
			return nil, err
		}
	}

	for _, name := range resolved.RuntimeNames() {
		incoming := resolved.Runtime[name]
		if _, ok := out.Primary[name]; ok {
			if err := mergeInto(out.Primary, name, addon.ID(), incoming); err != nil {
				return nil, err
			}
			continue
		}
		if err := mergeInto(out.Runtime, name, addon.ID(), incoming); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func mergeInto(slot map[string]constraint.Constraint, name, addonID string, incoming constraint.Constraint) error {
	prior, ok := slot[name]
	if !ok {
		slot[name] = incoming
		return nil
	}
	merged, err := reconcile(name, addonID, prior, incoming)
	if err != nil {
		return err
	}
	slot[name] = merged
	return nil
}

func reconcile(name, addonID string, prior, incoming constraint.Constraint) (constraint.Constraint, error) {
	if priorSrc, ok := prior.Source(); ok {
		if incomingSrc, ok := incoming.Source(); ok {
			// The first declared source is immutable; a differing kind or
			// location from a later contributor is a conflict.
			if incomingSrc.Kind != priorSrc.Kind || incomingSrc.Location != priorSrc.Location {
				return constraint.Constraint{}, &VersionConflictError{
					Dependency: name,
					Addon:      addonID,
					Base:       prior,
					Incoming:   incoming,
				}
			}
		}
		return prior, nil
	}

	merged := constraint.Intersect(prior, incoming)
	if merged.IsEmpty() {
		return constraint.Constraint{}, &VersionConflictError{
			Dependency: name,
			Addon:      addonID,
			Base:       prior,
			Incoming:   incoming,
		}
	}
	return merged, nil
}
