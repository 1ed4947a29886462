package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// UseDocker selects when dependency installation runs inside a container.
type UseDocker string

const (
	// UseDockerNoLinux installs directly on Linux hosts and in a container elsewhere.
	UseDockerNoLinux UseDocker = "no-linux"
	// UseDockerTrue always installs in a container.
	UseDockerTrue UseDocker = "true"
	// UseDockerFalse always installs directly on the host.
	UseDockerFalse UseDocker = "false"
)

// Language selects the manifest file convention of the function modules.
type Language string

const (
	// LanguagePython uses requirements.txt and pip.
	LanguagePython Language = "python"
	// LanguageTS uses package.json. Packaging is not implemented yet.
	LanguageTS Language = "ts"
	// LanguageJS uses package.json. Packaging is not implemented yet.
	LanguageJS Language = "js"
)

const (
	// DefaultFunctionsDir is the functions root used when none is given.
	DefaultFunctionsDir = "./functions"
	// DefaultOutputDir is where archive directories are created by default.
	DefaultOutputDir = "./archives"
	// DefaultDockerImage is the build image used for containerized installs.
	DefaultDockerImage = "lambci/lambda:build-python3.8"
	// DefaultContainerRuntime is the container CLI binary.
	DefaultContainerRuntime = "docker"
	// DefaultPipBinary is the installer used for direct installs.
	DefaultPipBinary = "pip"
	// DefaultContainerPython is the interpreter invoked inside the build image.
	DefaultContainerPython = "python"

	// DefaultFilePermissions is used for files the packager writes itself.
	DefaultFilePermissions = 0o644
	// DefaultDirPermissions is used for directories the packager creates.
	DefaultDirPermissions = 0o755
)

var (
	// ErrFunctionsDirMissing is returned when the functions root is not a directory.
	ErrFunctionsDirMissing = errors.New("directory of code to package does not exist")
	// ErrCommonDirMissing is returned when a configured common directory is not a directory.
	ErrCommonDirMissing = errors.New(`directory of "common" code to include with all functions does not exist`)
	// ErrUnsupportedLanguage is returned for languages that cannot be packaged.
	ErrUnsupportedLanguage = errors.New("unsupported language")
	// ErrInvalidUseDocker is returned for a useDocker value outside no-linux/true/false.
	ErrInvalidUseDocker = errors.New("invalid useDocker value")
	// ErrOutputDirRequired is returned when the output directory is explicitly empty.
	ErrOutputDirRequired = errors.New("output directory must be provided")
	// ErrEmptySetting is returned when a required tool setting is blank.
	ErrEmptySetting = errors.New("setting must not be empty")
)

// Config is a fully resolved packaging configuration.
type Config struct {
	// FunctionsDir holds one function module per immediate subdirectory.
	FunctionsDir string
	// CommonDir is shared code and dependencies; nil when not configured.
	CommonDir *string
	// OutputDir is the root of the per-module archive directories.
	OutputDir string
	// UseDocker decides between direct and containerized installs.
	UseDocker UseDocker
	// Language selects the manifest convention.
	Language Language
	// DockerImage is the image containerized installs run in.
	DockerImage string
	// ContainerRuntime is the container CLI binary (docker or a compatible one).
	ContainerRuntime string
	// PipBinary is the installer executed for direct installs.
	PipBinary string
	// ContainerPython is the interpreter that runs pip inside the image.
	ContainerPython string
}

// Defaults returns the documented default configuration.
func Defaults() Config {
	return Config{
		FunctionsDir:     DefaultFunctionsDir,
		CommonDir:        nil,
		OutputDir:        DefaultOutputDir,
		UseDocker:        UseDockerNoLinux,
		Language:         LanguagePython,
		DockerImage:      DefaultDockerImage,
		ContainerRuntime: DefaultContainerRuntime,
		PipBinary:        DefaultPipBinary,
		ContainerPython:  DefaultContainerPython,
	}
}

// Common returns the common directory and whether one is configured.
func (c Config) Common() (string, bool) {
	if c.CommonDir == nil {
		return "", false
	}

	return *c.CommonDir, true
}

// ParseUseDocker converts a flag or settings value to UseDocker.
func ParseUseDocker(s string) (UseDocker, error) {
	switch v := UseDocker(strings.TrimSpace(s)); v {
	case UseDockerNoLinux, UseDockerTrue, UseDockerFalse:
		return v, nil
	default:
		return "", fmt.Errorf("%w: %q (expected no-linux, true or false)", ErrInvalidUseDocker, s)
	}
}

// Validate checks that cfg can be packaged. It only reads the filesystem.
func Validate(cfg Config) error {
	if err := checkDirExists(cfg.FunctionsDir); err != nil {
		return fmt.Errorf("%w: %w", ErrFunctionsDirMissing, err)
	}

	if commonDir, ok := cfg.Common(); ok {
		if err := checkDirExists(commonDir); err != nil {
			return fmt.Errorf("%w: %w", ErrCommonDirMissing, err)
		}
	}

	if cfg.Language != LanguagePython {
		return fmt.Errorf("%w: %q", ErrUnsupportedLanguage, cfg.Language)
	}

	if _, err := ParseUseDocker(string(cfg.UseDocker)); err != nil {
		return err
	}

	if strings.TrimSpace(cfg.OutputDir) == "" {
		return ErrOutputDirRequired
	}

	settings := []struct {
		name  string
		value string
	}{
		{"docker image", cfg.DockerImage},
		{"container runtime", cfg.ContainerRuntime},
		{"pip binary", cfg.PipBinary},
		{"container python", cfg.ContainerPython},
	}

	for _, s := range settings {
		if strings.TrimSpace(s.value) == "" {
			return fmt.Errorf("%s: %w", s.name, ErrEmptySetting)
		}
	}

	return nil
}

// errNotDirectory is wrapped when a path exists but is a regular file.
var errNotDirectory = errors.New("not a directory")

func checkDirExists(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%q does not exist", dir)
		}

		return fmt.Errorf("stat %q: %w", dir, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%q: %w", dir, errNotDirectory)
	}

	return nil
}
