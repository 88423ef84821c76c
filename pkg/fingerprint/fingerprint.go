// Package fingerprint computes the canonical identity of a resolved
// manifest's primary dependency set. Two bundles with equal fingerprints are
// interchangeable for reuse, regardless of merge order, contributing addons
// or runtime-only content.
package fingerprint

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Separator joins the rendered name=value entries.
const Separator = ";"

// Compute renders the order-independent fingerprint of a pinned primary
// dependency set. Entries are sorted by name in byte order; values are the
// exact pinned version strings, or the canonical source reference text for
// packages resolved without a version. Byte equality of two fingerprints is
// the sole admission test for bundle reuse.
func Compute(primary map[string]string) string {
	names := make([]string, 0, len(primary))
	for name := range primary {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]string, 0, len(names))
	for _, name := range names {
		entries = append(entries, name+"="+primary[name])
	}
	return strings.Join(entries, Separator)
}

// Digest returns a compact xxhash rendering of a fingerprint, used for
// logging and artifact naming. Matching decisions always use the full
// fingerprint, never the digest.
func Digest(fp string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(fp))
}
