// Package bundle drives the dependency package pipeline for one bundle:
// merge the installer and addon manifests, resolve, classify the closure,
// fingerprint the primary set, and either reuse an existing package record
// or hand off to the build executor and register the new artifact.
package bundle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/chainguard-dev/clog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/atriumdesk/bundlectl/pkg/closure"
	"github.com/atriumdesk/bundlectl/pkg/constraint"
	"github.com/atriumdesk/bundlectl/pkg/directory"
	"github.com/atriumdesk/bundlectl/pkg/fingerprint"
	"github.com/atriumdesk/bundlectl/pkg/manifest"
	"github.com/atriumdesk/bundlectl/pkg/resolver"
)

// ErrUnknownBundle is returned when the directory service has no bundle with
// the requested name.
var ErrUnknownBundle = errors.New("bundle not found on directory service")

// ErrNoInstaller is returned when the bundle has no installer assigned, so
// no base manifest exists to merge against.
var ErrNoInstaller = errors.New("bundle has no installer set")

// ErrBuildRequired is returned when no existing package matches the computed
// fingerprint and no build executor is configured.
var ErrBuildRequired = errors.New("no reusable dependency package and no build executor configured")

// Directory is the slice of the directory service the builder consumes.
type Directory interface {
	ListBundles(ctx context.Context) (map[string]directory.Bundle, error)
	ListAddonManifests(ctx context.Context) (map[string]directory.AddonManifest, error)
	FindInstaller(ctx context.Context, version, platform string) (directory.Installer, error)
	ListPackageRecords(ctx context.Context) ([]directory.PackageRecord, error)
	CreatePackageRecord(ctx context.Context, record directory.PackageRecord) error
	UploadPackage(ctx context.Context, path, filename, platform string) error
	UpdateBundlePackage(ctx context.Context, bundleName, platform, filename string) error
}

// Executor builds the distributable artifact for a merged manifest and its
// classified closure, returning the path of the produced archive. The
// process orchestration behind it lives outside this repository.
type Executor interface {
	Build(ctx context.Context, m *manifest.Manifest, cls *closure.Classified) (string, error)
}

// Builder wires the pipeline's collaborators together. It holds no mutable
// state, so one Builder may serve concurrent calls for different bundles.
type Builder struct {
	Directory Directory
	Resolver  resolver.Resolver

	// Executor may be nil, in which case a fingerprint miss returns
	// ErrBuildRequired instead of building.
	Executor Executor

	Platform string
}

// Result reports what CreatePackage did for a bundle.
type Result struct {
	Filename    string
	Fingerprint string
	Reused      bool
}

// plan is the read-only half of the pipeline: everything up to and including
// the fingerprint match, with no directory mutation.
type plan struct {
	bundle     directory.Bundle
	installer  directory.Installer
	merged     *manifest.Manifest
	classified *closure.Classified
	pins       map[string]string
	fp         string

	match   directory.PackageRecord
	matched bool
}

// CreatePackage runs the pipeline for the named bundle. The directory
// service is not touched beyond reads until either a fingerprint match or a
// fully built artifact exists.
func (b *Builder) CreatePackage(ctx context.Context, bundleName string) (*Result, error) {
	log := clog.FromContext(ctx)

	p, err := b.plan(ctx, bundleName)
	if err != nil {
		return nil, err
	}

	if p.matched {
		log.Infof("reusing dependency package %s", p.match.Filename)
		if err := b.Directory.UpdateBundlePackage(ctx, p.bundle.Name, b.Platform, p.match.Filename); err != nil {
			return nil, err
		}
		return &Result{Filename: p.match.Filename, Fingerprint: p.fp, Reused: true}, nil
	}

	if b.Executor == nil {
		return nil, fmt.Errorf("bundle %s: %w", bundleName, ErrBuildRequired)
	}

	artifact, err := b.Executor.Build(ctx, p.merged, p.classified)
	if err != nil {
		return nil, fmt.Errorf("building dependency package: %w", err)
	}

	record, err := b.registerArtifact(ctx, p, artifact)
	if err != nil {
		return nil, err
	}
	removeUploaded(ctx, artifact)
	return &Result{Filename: record.Filename, Fingerprint: p.fp}, nil
}

// removeUploaded deletes a successfully uploaded artifact and, when that
// leaves its directory empty, the directory too. Shared work dirs with other
// contents survive the rmdir.
func removeUploaded(ctx context.Context, artifact string) {
	if err := os.Remove(artifact); err != nil && !os.IsNotExist(err) {
		clog.FromContext(ctx).Warnf("removing uploaded artifact %s: %v", artifact, err)
		return
	}
	_ = os.Remove(filepath.Dir(artifact))
}

// Fingerprint runs the read-only pipeline for the named bundle and reports
// the computed fingerprint and any reusable record, touching nothing.
func (b *Builder) Fingerprint(ctx context.Context, bundleName string) (string, *directory.PackageRecord, error) {
	p, err := b.plan(ctx, bundleName)
	if err != nil {
		return "", nil, err
	}
	if p.matched {
		return p.fp, &p.match, nil
	}
	return p.fp, nil, nil
}

func (b *Builder) plan(ctx context.Context, bundleName string) (*plan, error) {
	log := clog.FromContext(ctx)

	var (
		bundles map[string]directory.Bundle
		addons  map[string]directory.AddonManifest
		records []directory.PackageRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		bundles, err = b.Directory.ListBundles(gctx)
		return err
	})
	g.Go(func() (err error) {
		addons, err = b.Directory.ListAddonManifests(gctx)
		return err
	})
	g.Go(func() (err error) {
		records, err = b.Directory.ListPackageRecords(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	bndl, ok := bundles[bundleName]
	if !ok {
		return nil, fmt.Errorf("%s: %w", bundleName, ErrUnknownBundle)
	}
	if bndl.InstallerVersion == "" {
		return nil, fmt.Errorf("%s: %w", bundleName, ErrNoInstaller)
	}

	installer, err := b.Directory.FindInstaller(ctx, bndl.InstallerVersion, b.Platform)
	if err != nil {
		return nil, err
	}

	merged, err := b.mergeAll(ctx, bndl, installer, addons)
	if err != nil {
		return nil, err
	}

	resolved, err := b.Resolver.Resolve(ctx, merged)
	if err != nil {
		return nil, err
	}

	classified, err := closure.Classify(merged, resolved)
	if err != nil {
		return nil, err
	}

	pins := pinsOf(classified.Primary)
	fp := fingerprint.Compute(pins)
	log.Infof("primary set fingerprint %s (%d packages, %d runtime-only)",
		fingerprint.Digest(fp), len(classified.Primary), len(classified.RuntimeOnly))

	p := &plan{
		bundle:     bndl,
		installer:  installer,
		merged:     merged,
		classified: classified,
		pins:       pins,
		fp:         fp,
	}
	p.match, p.matched = matchRecord(records, b.Platform, fp)
	return p, nil
}

// mergeAll folds every enabled addon's manifest into the installer's base
// manifest, in name-sorted order so re-merges are reproducible.
func (b *Builder) mergeAll(
	ctx context.Context,
	bndl directory.Bundle,
	installer directory.Installer,
	addons map[string]directory.AddonManifest,
) (*manifest.Manifest, error) {
	log := clog.FromContext(ctx)

	base, err := manifest.FromPins(installer.Modules, installer.RuntimeModules)
	if err != nil {
		return nil, err
	}
	interp, err := constraint.Exact(installer.InterpreterVersion)
	if err != nil {
		return nil, fmt.Errorf("installer interpreter version: %w", err)
	}
	base.Primary[manifest.InterpreterName] = interp

	enabled := lo.PickBy(bndl.Addons, func(_, version string) bool { return version != "" })
	names := lo.Keys(enabled)
	sort.Strings(names)

	merged := base
	for _, name := range names {
		am, ok := addons[fmt.Sprintf("%s_%s", name, enabled[name])]
		if !ok {
			// addon ships no client dependencies
			continue
		}
		log.Infof("merging dependencies of %s", am.FullName())
		merged, err = manifest.Merge(merged, manifest.AddonContribution{
			Name:    am.Addon,
			Version: am.Version,
			Doc:     am.Doc,
		}, b.Platform)
		if err != nil {
			return nil, err
		}
	}
	return merged, nil
}

// registerArtifact records, uploads and assigns a freshly built package.
func (b *Builder) registerArtifact(ctx context.Context, p *plan, artifact string) (directory.PackageRecord, error) {
	checksum, size, err := FileChecksum(artifact)
	if err != nil {
		return directory.PackageRecord{}, err
	}

	record := directory.PackageRecord{
		Filename:          filepath.Base(artifact),
		Platform:          b.Platform,
		Checksum:          checksum,
		ChecksumAlgorithm: "sha256",
		Size:              size,
		InstallerVersion:  p.installer.Version,
		SourceAddons:      p.bundle.Addons,
		Modules:           p.pins,
		RuntimeModules:    pinsOf(p.classified.RuntimeOnly),
	}

	if err := b.Directory.CreatePackageRecord(ctx, record); err != nil {
		return directory.PackageRecord{}, err
	}
	if err := b.Directory.UploadPackage(ctx, artifact, record.Filename, b.Platform); err != nil {
		return directory.PackageRecord{}, err
	}
	if err := b.Directory.UpdateBundlePackage(ctx, p.bundle.Name, b.Platform, record.Filename); err != nil {
		return directory.PackageRecord{}, err
	}
	return record, nil
}

// matchRecord finds an existing package whose pinned primary set fingerprint
// is byte-identical to the new one. Records for other platforms describe
// differently resolved closures and are never candidates.
func matchRecord(records []directory.PackageRecord, platform, fp string) (directory.PackageRecord, bool) {
	for _, record := range records {
		if record.Platform != platform {
			continue
		}
		if fingerprint.Compute(record.Modules) == fp {
			return record, true
		}
	}
	return directory.PackageRecord{}, false
}

func pinsOf(set map[string]closure.Package) map[string]string {
	return lo.MapValues(set, func(pkg closure.Package, _ string) string { return pkg.Pin() })
}
