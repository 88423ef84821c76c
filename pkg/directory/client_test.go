package directory

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const addonManifestTOML = `
[dependencies]
requests = "^2.28"

[atrium]
name = "publisher"
version = "1.2.0"

[atrium.runtime]
ffmpeg = "4.4"
`

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{BaseURL: server.URL, APIKey: "secret"})
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresURL(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}

func TestListBundles(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/bundles", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"bundles": []map[string]any{
				{
					"name":             "release-2024",
					"installerVersion": "1.3.0",
					"addons":           map[string]string{"publisher": "1.2.0"},
				},
			},
		})
	}))

	bundles, err := client.ListBundles(context.Background())
	require.NoError(t, err)
	require.Contains(t, bundles, "release-2024")
	assert.Equal(t, "1.3.0", bundles["release-2024"].InstallerVersion)
}

func TestListAddonManifests(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("details"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"addons": []map[string]any{
				{
					"name": "publisher",
					"versions": map[string]any{
						"1.2.0": map[string]string{"clientManifest": addonManifestTOML},
						"1.1.0": map[string]string{},
					},
				},
			},
		})
	}))

	manifests, err := client.ListAddonManifests(context.Background())
	require.NoError(t, err)
	require.Len(t, manifests, 1)
	am, ok := manifests["publisher_1.2.0"]
	require.True(t, ok)
	assert.Contains(t, am.Doc.Dependencies, "requests")
}

func TestFindInstaller(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"installers": []map[string]any{
				{"version": "1.3.0", "platform": "linux", "pythonVersion": "3.9.12"},
				{"version": "1.3.0", "platform": "windows", "pythonVersion": "3.9.12"},
			},
		})
	}))

	installer, err := client.FindInstaller(context.Background(), "1.3.0", "windows")
	require.NoError(t, err)
	assert.Equal(t, "windows", installer.Platform)

	_, err = client.FindInstaller(context.Background(), "9.9.9", "linux")
	require.ErrorIs(t, err, ErrInstallerNotFound)
}

func TestUpdateBundlePackage(t *testing.T) {
	var got map[string]map[string]string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/bundles/release-2024", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))

	err := client.UpdateBundlePackage(context.Background(), "release-2024", "linux", "atrium_2403011200_linux.zip")
	require.NoError(t, err)
	assert.Equal(t, "atrium_2403011200_linux.zip", got["dependencyPackages"]["linux"])
}

func TestUploadPackage(t *testing.T) {
	artifact := filepath.Join(t.TempDir(), "pkg.zip")
	require.NoError(t, os.WriteFile(artifact, []byte("payload"), 0o644))

	var body []byte
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/dependency-packages/pkg.zip/linux", r.URL.Path)
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))

	err := client.UploadPackage(context.Background(), artifact, "pkg.zip", "linux")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))
}

func TestEnrollEventNothingPending(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	event, err := client.EnrollEvent(context.Background(), "src", "dst", "worker", "desc")
	require.NoError(t, err)
	assert.Nil(t, event)
}

func TestErrorStatusSurfaced(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := client.ListPackageRecords(context.Background())
	require.ErrorContains(t, err, "unexpected status")
}
