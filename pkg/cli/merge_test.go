package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atriumdesk/bundlectl/pkg/manifest"
)

func writeManifest(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runMerge(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := cmdMerge()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMergeCommandIntersectsConstraints(t *testing.T) {
	a := writeManifest(t, "a.toml", `
[dependencies]
alembic = "^1.0"

[atrium]
name = "addon-a"
version = "1.0.0"

[atrium.runtime]
`)
	b := writeManifest(t, "b.toml", `
[dependencies]
alembic = "1.5"

[atrium]
name = "addon-b"
version = "2.0.0"

[atrium.runtime]
ffmpeg = "4.4"
`)

	out, err := runMerge(t, "--platform", "linux", a, b)
	require.NoError(t, err)

	assert.Contains(t, out, `alembic = '1.5'`)
	assert.Contains(t, out, `ffmpeg = '4.4'`)
}

func TestMergeCommandSelectsPlatformVariant(t *testing.T) {
	path := writeManifest(t, "variant.toml", `
[dependencies]

[atrium]
name = "variant-addon"
version = "1.0.0"

[atrium.runtime]
oiio = { win32 = { version = "3.0" }, version = "2.0" }
`)

	out, err := runMerge(t, "--platform", "win32", path)
	require.NoError(t, err)
	assert.Contains(t, out, `oiio = '3.0'`)

	out, err = runMerge(t, "--platform", "linux", path)
	require.NoError(t, err)
	assert.Contains(t, out, `oiio = '2.0'`)
}

func TestMergeCommandReportsConflict(t *testing.T) {
	a := writeManifest(t, "a.toml", `
[dependencies]
alembic = "3.6.1"

[atrium]
name = "addon-a"
version = "1.0.0"

[atrium.runtime]
`)
	b := writeManifest(t, "b.toml", `
[dependencies]
alembic = "^3.9"

[atrium]
name = "addon-b"
version = "2.0.0"

[atrium.runtime]
`)

	_, err := runMerge(t, "--platform", "linux", a, b)
	require.Error(t, err)

	var conflict *manifest.VersionConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "alembic", conflict.Dependency)
	assert.Equal(t, "addon-b@2.0.0", conflict.Addon)
}
