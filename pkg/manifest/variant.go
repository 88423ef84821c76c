package manifest

import "fmt"

// reservedEntryKeys are the table keys that describe a constraint itself
// rather than a platform branch.
var reservedEntryKeys = map[string]bool{
	"version": true,
	"git":     true,
	"url":     true,
	"path":    true,
	"rev":     true,
}

// NoApplicablePlatformVariantError reports a platform-conditional entry with
// neither a branch for the target platform nor an unqualified fallback.
type NoApplicablePlatformVariantError struct {
	Dependency string
	Platform   string
}

func (e *NoApplicablePlatformVariantError) Error() string {
	return fmt.Sprintf(
		"dependency %s has no variant applicable on platform %q and no fallback",
		e.Dependency, e.Platform,
	)
}

// ResolveVariant selects the branch of a raw dependency entry that applies
// on the target platform. Plain constraint entries pass through unchanged.
// For a platform-keyed table, the platform's branch wins; otherwise the
// unqualified keys of the table form the fallback.
func ResolveVariant(name string, raw any, platform string) (any, error) {
	table, ok := raw.(map[string]any)
	if !ok {
		return raw, nil
	}

	variant := false
	for key := range table {
		if !reservedEntryKeys[key] {
			variant = true
			break
		}
	}
	if !variant {
		return table, nil
	}

	if branch, ok := table[platform]; ok {
		return branch, nil
	}

	fallback := map[string]any{}
	for key, value := range table {
		if reservedEntryKeys[key] {
			fallback[key] = value
		}
	}
	if len(fallback) == 0 {
		return nil, &NoApplicablePlatformVariantError{Dependency: name, Platform: platform}
	}
	return fallback, nil
}
