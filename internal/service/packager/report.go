package packager

import (
	"crypto"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/lambda-packager/internal/config"
	"github.com/oshokin/lambda-packager/internal/installer"
	"github.com/oshokin/lambda-packager/internal/version"

	// Ensure SHA512 is available for manifest checksums.
	_ "crypto/sha512"
)

const (
	// ReportFilename is written to the output directory after a successful run.
	ReportFilename = "packaging-report.yaml"

	// ChecksumFunction hashes the merged manifests recorded in the report.
	ChecksumFunction crypto.Hash = crypto.SHA512
)

var errHashUnavailable = errors.New("hash function unavailable")

// Report describes the archive directories produced by one run.
type Report struct {
	// Version is the packager version that produced the archives.
	Version string `yaml:"version"`
	// Platform is the GOOS/GOARCH of the build host.
	Platform string `yaml:"platform"`
	// Strategy is where dependencies were installed.
	Strategy string `yaml:"strategy"`
	// Modules lists the packaged modules in packaging order.
	Modules []ModuleReport `yaml:"modules"`
}

// ModuleReport describes one archive directory.
type ModuleReport struct {
	// Name is the module directory name.
	Name string `yaml:"name"`
	// Source is the module directory under the functions root.
	Source string `yaml:"source"`
	// Archive is the produced archive directory.
	Archive string `yaml:"archive"`
	// ManifestChecksum is the base64 SHA-512 of the merged manifest.
	ManifestChecksum string `yaml:"manifest_checksum"`
	// Warnings counts non-fatal installer stderr lines.
	Warnings int `yaml:"warnings"`
}

func newReport(strategy installer.Strategy) *Report {
	return &Report{
		Version:  version.Short(),
		Platform: version.Platform(),
		Strategy: strategy.String(),
		Modules:  make([]ModuleReport, 0),
	}
}

// add records a packaged module.
func (r *Report) add(module Module, mergedManifest string, outcome *installer.Outcome) {
	entry := ModuleReport{
		Name:    module.Name,
		Source:  module.SourcePath,
		Archive: module.ArchivePath,
	}

	if checksum, err := Checksum([]byte(mergedManifest)); err == nil {
		entry.ManifestChecksum = base64.StdEncoding.EncodeToString(checksum)
	}

	if outcome != nil {
		entry.Warnings = len(outcome.Warnings)
	}

	r.Modules = append(r.Modules, entry)
}

// save writes the report to outputDir and returns its path.
func (r *Report) save(outputDir string) (string, error) {
	contents, err := yaml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}

	path := filepath.Join(outputDir, ReportFilename)
	if err = os.WriteFile(path, contents, config.DefaultFilePermissions); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	return path, nil
}

// Checksum returns the ChecksumFunction digest of data.
func Checksum(data []byte) ([]byte, error) {
	if !ChecksumFunction.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	hasher := ChecksumFunction.New()
	if _, err := hasher.Write(data); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), nil
}
