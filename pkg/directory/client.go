// Package directory is the client for the central directory service: the
// remote API providing bundles, addon manifests, installer metadata and
// dependency package records, and accepting uploads and bundle updates.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/chainguard-dev/clog"
	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"

	bundlehttp "github.com/atriumdesk/bundlectl/pkg/http"
	"github.com/atriumdesk/bundlectl/pkg/manifest"
)

// ErrInstallerNotFound is returned when no installer matches the requested
// version and platform.
var ErrInstallerNotFound = errors.New("installer not found")

// Config carries the connection settings for the directory service. It is
// passed in explicitly; the client never reads or mutates process
// environment on its own.
type Config struct {
	BaseURL string
	APIKey  string

	// RequestsPerSecond caps the request rate; zero means the default.
	RequestsPerSecond float64
}

const defaultRequestsPerSecond = 10

// Client talks to the directory service over JSON.
type Client struct {
	baseURL *url.URL
	apiKey  string
	http    *bundlehttp.RLHTTPClient
}

// NewClient validates the config and returns a connected client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("directory service URL is not set")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing directory service URL: %w", err)
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}
	return &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		http:    bundlehttp.NewClient(rate.NewLimiter(rate.Limit(rps), 1)),
	}, nil
}

// ListBundles returns all bundles keyed by name.
func (c *Client) ListBundles(ctx context.Context) (map[string]Bundle, error) {
	var payload struct {
		Bundles []Bundle `json:"bundles"`
	}
	if err := c.get(ctx, "/api/bundles", &payload); err != nil {
		return nil, err
	}
	out := make(map[string]Bundle, len(payload.Bundles))
	for _, b := range payload.Bundles {
		out[b.Name] = b
	}
	return out, nil
}

// ListAddonManifests returns the dependency manifest of every addon version
// that declares one, keyed by the composite addon identity. Addon versions
// without a manifest are skipped.
func (c *Client) ListAddonManifests(ctx context.Context) (map[string]AddonManifest, error) {
	log := clog.FromContext(ctx)

	var payload struct {
		Addons []struct {
			Name     string `json:"name"`
			Versions map[string]struct {
				ClientManifest string `json:"clientManifest"`
			} `json:"versions"`
		} `json:"addons"`
	}
	if err := c.get(ctx, "/api/addons?details=1", &payload); err != nil {
		return nil, err
	}

	out := map[string]AddonManifest{}
	for _, addon := range payload.Addons {
		for version, v := range addon.Versions {
			if v.ClientManifest == "" {
				continue
			}
			doc, err := manifest.ParseDocument([]byte(v.ClientManifest))
			if err != nil {
				return nil, fmt.Errorf("addon %s_%s: %w", addon.Name, version, err)
			}
			am := AddonManifest{Addon: addon.Name, Version: version, Doc: doc}
			out[am.FullName()] = am
		}
	}
	log.Debugf("fetched %d addon manifests", len(out))
	return out, nil
}

// FindInstaller returns the installer matching the version and platform, or
// ErrInstallerNotFound.
func (c *Client) FindInstaller(ctx context.Context, version, platform string) (Installer, error) {
	var payload struct {
		Installers []Installer `json:"installers"`
	}
	if err := c.get(ctx, "/api/installers", &payload); err != nil {
		return Installer{}, err
	}
	for _, installer := range payload.Installers {
		if installer.Version == version && installer.Platform == platform {
			return installer, nil
		}
	}
	return Installer{}, fmt.Errorf("version %s on %s: %w", version, platform, ErrInstallerNotFound)
}

// ListPackageRecords returns the metadata records of all existing dependency
// packages.
func (c *Client) ListPackageRecords(ctx context.Context) ([]PackageRecord, error) {
	var payload struct {
		Packages []PackageRecord `json:"packages"`
	}
	if err := c.get(ctx, "/api/dependency-packages", &payload); err != nil {
		return nil, err
	}
	return payload.Packages, nil
}

// CreatePackageRecord registers a newly built dependency package.
func (c *Client) CreatePackageRecord(ctx context.Context, record PackageRecord) error {
	return c.send(ctx, http.MethodPost, "/api/dependency-packages", record, nil)
}

// UploadPackage streams a built artifact to the directory service under the
// given record filename.
func (c *Client) UploadPackage(ctx context.Context, path, filename, platform string) error {
	log := clog.FromContext(ctx)

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening artifact: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat artifact: %w", err)
	}
	log.Infof("uploading %s (%s)", filename, humanize.Bytes(uint64(info.Size())))

	endpoint := fmt.Sprintf("/api/dependency-packages/%s/%s", url.PathEscape(filename), url.PathEscape(platform))
	req, err := c.newRequest(ctx, http.MethodPut, endpoint, f)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.ContentLength = info.Size()
	return c.do(req, nil)
}

// UpdateBundlePackage assigns a dependency package filename to the bundle
// for one platform. It is only called once a fingerprint match or a fully
// built artifact exists.
func (c *Client) UpdateBundlePackage(ctx context.Context, bundleName, platform, filename string) error {
	body := map[string]any{
		"dependencyPackages": map[string]string{platform: filename},
	}
	endpoint := fmt.Sprintf("/api/bundles/%s", url.PathEscape(bundleName))
	return c.send(ctx, http.MethodPatch, endpoint, body, nil)
}

// EnrollEvent claims the next pending job on sourceTopic, creating a
// follow-up event on targetTopic. A nil event means nothing is pending.
func (c *Client) EnrollEvent(ctx context.Context, sourceTopic, targetTopic, workerID, description string) (*Event, error) {
	body := map[string]string{
		"sourceTopic": sourceTopic,
		"targetTopic": targetTopic,
		"sender":      workerID,
		"description": description,
	}
	var event Event
	if err := c.send(ctx, http.MethodPost, "/api/events/enroll", body, &event); err != nil {
		return nil, err
	}
	if event.ID == "" {
		return nil, nil
	}
	return &event, nil
}

// UpdateEvent reports a job's status and description upstream.
func (c *Client) UpdateEvent(ctx context.Context, eventID, sender, status, description string) error {
	body := map[string]string{
		"sender":      sender,
		"status":      status,
		"description": description,
	}
	endpoint := fmt.Sprintf("/api/events/%s", url.PathEscape(eventID))
	return c.send(ctx, http.MethodPatch, endpoint, body, nil)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) send(ctx context.Context, method, endpoint string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := c.newRequest(ctx, method, endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	ref, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing endpoint %q: %w", endpoint, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.ResolveReference(ref).String(), body)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("directory service: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("directory service: %s %s: unexpected status %s", req.Method, req.URL.Path, resp.Status)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("directory service: decoding %s response: %w", req.URL.Path, err)
	}
	return nil
}
