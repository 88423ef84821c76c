package bundle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/atriumdesk/bundlectl/pkg/closure"
	"github.com/atriumdesk/bundlectl/pkg/manifest"
)

// ExecExecutor delegates the artifact build to an external command. The
// command receives the merged manifest path, the closure path and the output
// archive path as trailing arguments, and must leave the finished archive at
// the output path.
type ExecExecutor struct {
	// Command is the builder invocation, e.g. {"atrium-pack"}.
	Command []string

	// WorkDir hosts the inputs and the produced archive. A temp directory
	// that outlives the call is used when empty.
	WorkDir string

	Platform   string
	AppName    string
	AppVersion string

	// now is replaceable in tests.
	now func() time.Time
}

// Build writes the build inputs, runs the builder command and returns the
// path of the produced archive.
func (e *ExecExecutor) Build(ctx context.Context, m *manifest.Manifest, cls *closure.Classified) (string, error) {
	if len(e.Command) == 0 {
		return "", fmt.Errorf("builder command is not configured")
	}
	log := clog.FromContext(ctx)

	workDir := e.WorkDir
	ownsWorkDir := workDir == ""
	if ownsWorkDir {
		tmp, err := os.MkdirTemp("", "bundlectl-build")
		if err != nil {
			return "", fmt.Errorf("creating build work dir: %w", err)
		}
		workDir = tmp
	}

	manifestData, err := manifest.MarshalTOML(m, e.AppName, e.AppVersion)
	if err != nil {
		return "", fmt.Errorf("rendering merged manifest: %w", err)
	}
	manifestPath := filepath.Join(workDir, "manifest.toml")
	if err := os.WriteFile(manifestPath, manifestData, 0o644); err != nil {
		return "", err
	}

	closureData, err := json.MarshalIndent(cls, "", "  ")
	if err != nil {
		return "", fmt.Errorf("rendering classified closure: %w", err)
	}
	closurePath := filepath.Join(workDir, "closure.json")
	if err := os.WriteFile(closurePath, closureData, 0o644); err != nil {
		return "", err
	}

	nowFn := e.now
	if nowFn == nil {
		nowFn = time.Now
	}
	out := filepath.Join(workDir, PackageBasename(e.Platform, nowFn())+".zip")

	args := append(append([]string{}, e.Command[1:]...), manifestPath, closurePath, out)
	cmd := exec.CommandContext(ctx, e.Command[0], args...)
	cmd.Dir = workDir

	var stderr bytes.Buffer
	cmd.Stdout = os.Stderr
	cmd.Stderr = &stderr

	log.Infof("invoking package builder: %s", e.Command[0])
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("package builder failed: %w: %s", err, stderr.String())
	}
	if _, err := os.Stat(out); err != nil {
		return "", fmt.Errorf("package builder produced no archive at %s: %w", out, err)
	}

	// In an owned temp dir only the archive must outlive this call; the
	// builder removes it (and the then-empty dir) once the upload is done.
	if ownsWorkDir {
		_ = os.Remove(manifestPath)
		_ = os.Remove(closurePath)
	}
	return out, nil
}
