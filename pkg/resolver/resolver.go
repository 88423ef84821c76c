// Package resolver isolates the external resolver engine behind a single
// call: a merged manifest goes in, a consistent pinned closure comes out.
// No transitive graph solving happens in this repository.
package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/chainguard-dev/clog"

	"github.com/atriumdesk/bundlectl/pkg/closure"
	"github.com/atriumdesk/bundlectl/pkg/manifest"
)

// Resolver produces the resolved closure for a merged manifest.
type Resolver interface {
	Resolve(ctx context.Context, m *manifest.Manifest) (closure.Resolved, error)
}

// ExecResolver runs the resolver engine as an external process. The merged
// manifest is written as a TOML document into the work directory and its
// path appended to the configured command; the engine reports the closure as
// JSON on stdout:
//
//	{"packages": [{"name": ..., "version": ..., "requiredBy": [...]}, ...]}
type ExecResolver struct {
	// Command is the engine invocation, e.g. {"atrium-solve", "--offline"}.
	Command []string

	// WorkDir hosts the manifest handed to the engine. A temp directory is
	// used when empty.
	WorkDir string

	AppName    string
	AppVersion string
}

// Resolve invokes the engine and decodes its closure.
func (r *ExecResolver) Resolve(ctx context.Context, m *manifest.Manifest) (closure.Resolved, error) {
	if len(r.Command) == 0 {
		return nil, fmt.Errorf("resolver engine command is not configured")
	}
	log := clog.FromContext(ctx)

	workDir := r.WorkDir
	if workDir == "" {
		tmp, err := os.MkdirTemp("", "bundlectl-resolve")
		if err != nil {
			return nil, fmt.Errorf("creating resolver work dir: %w", err)
		}
		defer os.RemoveAll(tmp)
		workDir = tmp
	}

	data, err := manifest.MarshalTOML(m, r.AppName, r.AppVersion)
	if err != nil {
		return nil, fmt.Errorf("rendering merged manifest: %w", err)
	}
	manifestPath := filepath.Join(workDir, "manifest.toml")
	if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing merged manifest: %w", err)
	}

	args := append(append([]string{}, r.Command[1:]...), manifestPath)
	cmd := exec.CommandContext(ctx, r.Command[0], args...)
	cmd.Dir = workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Infof("invoking resolver engine: %s", r.Command[0])
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("resolver engine failed: %w: %s", err, stderr.String())
	}

	var payload struct {
		Packages closure.Resolved `json:"packages"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &payload); err != nil {
		return nil, fmt.Errorf("decoding resolver engine output: %w", err)
	}
	log.Debugf("resolver engine returned %d packages", len(payload.Packages))
	return payload.Packages, nil
}
