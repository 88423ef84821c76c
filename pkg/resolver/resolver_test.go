package resolver

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atriumdesk/bundlectl/pkg/constraint"
	"github.com/atriumdesk/bundlectl/pkg/manifest"
)

func TestExecResolver(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test engine is a shell one-liner")
	}

	m := manifest.New()
	c, err := constraint.Parse("^2.28")
	require.NoError(t, err)
	m.Primary["requests"] = c

	engine := &ExecResolver{
		Command: []string{
			"sh", "-c",
			`echo '{"packages":[{"name":"requests","version":"2.28.1"},{"name":"urllib3","version":"1.26.9","requiredBy":["requests"]}]}'`,
		},
		WorkDir:    t.TempDir(),
		AppName:    "atrium",
		AppVersion: "1.0.0",
	}

	resolved, err := engine.Resolve(context.Background(), m)
	require.NoError(t, err)
	require.Len(t, resolved, 2)
	assert.Equal(t, "requests", resolved[0].Name)
	assert.Equal(t, []string{"requests"}, resolved[1].RequiredBy)
}

func TestExecResolverFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test engine is a shell one-liner")
	}

	engine := &ExecResolver{
		Command: []string{"sh", "-c", "echo 'no solution' >&2; exit 3"},
		WorkDir: t.TempDir(),
	}

	_, err := engine.Resolve(context.Background(), manifest.New())
	require.ErrorContains(t, err, "resolver engine failed")
	require.ErrorContains(t, err, "no solution")
}

func TestExecResolverUnconfigured(t *testing.T) {
	engine := &ExecResolver{}
	_, err := engine.Resolve(context.Background(), manifest.New())
	require.Error(t, err)
}
