package closure

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atriumdesk/bundlectl/pkg/constraint"
	"github.com/atriumdesk/bundlectl/pkg/manifest"
)

func manifestWith(t *testing.T, primary ...string) *manifest.Manifest {
	t.Helper()
	m := manifest.New()
	for _, name := range primary {
		c, err := constraint.Parse("*")
		require.NoError(t, err)
		m.Primary[name] = c
	}
	return m
}

func TestClassifyReachability(t *testing.T) {
	m := manifestWith(t, "alpha", manifest.InterpreterName)
	resolved := Resolved{
		{Name: "alpha", Version: "1.0.0"},
		{Name: "beta", Version: "2.0.0", RequiredBy: []string{"alpha"}},
		{Name: "gamma", Version: "3.0.0", RequiredBy: []string{"beta"}},
		{Name: "ffmpeg", Version: "4.4"},
		{Name: "libx264", Version: "0.164", RequiredBy: []string{"ffmpeg"}},
	}

	got, err := Classify(m, resolved)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"alpha", "beta", "gamma"}, keys(got.Primary))

	wantRuntimeOnly := map[string]Package{
		"ffmpeg":  {Name: "ffmpeg", Version: "4.4"},
		"libx264": {Name: "libx264", Version: "0.164", RequiredBy: []string{"ffmpeg"}},
	}
	if diff := cmp.Diff(wantRuntimeOnly, got.RuntimeOnly); diff != "" {
		t.Errorf("unexpected runtime-only partition (-want, +got):\n%s", diff)
	}
}

func TestClassifyRuntimeOnlyChain(t *testing.T) {
	// a package reachable only through a runtime-only root stays runtime-only
	m := manifestWith(t, "app-lib")
	resolved := Resolved{
		{Name: "app-lib", Version: "1.0.0"},
		{Name: "native-root", Version: "5.0"},
		{Name: "native-leaf", Version: "1.2", RequiredBy: []string{"native-root"}},
	}

	got, err := Classify(m, resolved)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"native-root", "native-leaf"}, keys(got.RuntimeOnly))

	for name := range got.RuntimeOnly {
		_, shadowed := got.Primary[name]
		assert.False(t, shadowed)
	}
}

func TestClassifySpellingVariants(t *testing.T) {
	m := manifestWith(t, "My_Lib")
	resolved := Resolved{
		{Name: "my-lib", Version: "1.0.0"},
		{Name: "helper", Version: "0.1", RequiredBy: []string{"my-lib"}},
	}

	got, err := Classify(m, resolved)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"my-lib", "helper"}, keys(got.Primary))
	assert.Empty(t, got.RuntimeOnly)
}

func TestClassifyMissingPrimary(t *testing.T) {
	m := manifestWith(t, "vanished")
	resolved := Resolved{
		{Name: "present", Version: "1.0.0"},
	}

	_, err := Classify(m, resolved)
	var missing *UnresolvedPrimaryDependencyError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "vanished", missing.Name)
}

func TestPackagePin(t *testing.T) {
	assert.Equal(t, "1.2.3", Package{Name: "a", Version: "1.2.3"}.Pin())
	assert.Equal(t,
		"git+https://example.com/acme/lib.git@v2",
		Package{Name: "a", Source: "git+https://example.com/acme/lib.git@v2"}.Pin(),
	)
}

func keys(set map[string]Package) []string {
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	return out
}
