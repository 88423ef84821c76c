package directory

import (
	"fmt"

	"github.com/atriumdesk/bundlectl/pkg/manifest"
)

// Bundle is a named release composition on the directory service: the set of
// enabled addon versions, the installer they run on, and the dependency
// package assigned per platform.
type Bundle struct {
	Name               string            `json:"name"`
	InstallerVersion   string            `json:"installerVersion"`
	Addons             map[string]string `json:"addons"`
	DependencyPackages map[string]string `json:"dependencyPackages"`
	IsProduction       bool              `json:"isProduction"`
	IsStaging          bool              `json:"isStaging"`
}

// Installer describes one platform build of the desktop application: the
// interpreter it embeds and the dependency pins it already ships with.
type Installer struct {
	Version            string            `json:"version"`
	Platform           string            `json:"platform"`
	InterpreterVersion string            `json:"pythonVersion"`
	Modules            map[string]string `json:"pythonModules"`
	RuntimeModules     map[string]string `json:"runtimePythonModules"`
}

// AddonManifest is one addon version's dependency manifest document.
type AddonManifest struct {
	Addon   string
	Version string
	Doc     *manifest.Document
}

// FullName is the directory service's composite addon identity.
func (a AddonManifest) FullName() string {
	return fmt.Sprintf("%s_%s", a.Addon, a.Version)
}

// PackageRecord is the metadata record of a built dependency package. It is
// read to find reusable bundles and written once a new artifact exists;
// nothing in between mutates it.
type PackageRecord struct {
	Filename          string            `json:"filename"`
	Platform          string            `json:"platform"`
	Checksum          string            `json:"checksum"`
	ChecksumAlgorithm string            `json:"checksumAlgorithm"`
	Size              int64             `json:"size"`
	InstallerVersion  string            `json:"installerVersion"`
	SourceAddons      map[string]string `json:"sourceAddons"`
	Modules           map[string]string `json:"pythonModules"`
	RuntimeModules    map[string]string `json:"runtimePythonModules"`
}

// Event is a job-queue event consumed by the listener.
type Event struct {
	ID        string `json:"id"`
	Topic     string `json:"topic"`
	DependsOn string `json:"dependsOn"`
	Status    string `json:"status"`
}
