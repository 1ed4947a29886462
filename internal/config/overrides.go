package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSettingsFilename is the settings file written by init-config.
const DefaultSettingsFilename = "lambda-packager.yaml"

// Overrides is one configuration layer. A nil field was not supplied;
// a non-nil field replaces the value below it, even when it is empty.
type Overrides struct {
	FunctionsDir     *string `yaml:"functions_dir,omitempty"`
	CommonDir        *string `yaml:"common_dir,omitempty"`
	OutputDir        *string `yaml:"output_dir,omitempty"`
	UseDocker        *string `yaml:"use_docker,omitempty"`
	Language         *string `yaml:"language,omitempty"`
	DockerImage      *string `yaml:"docker_image,omitempty"`
	ContainerRuntime *string `yaml:"container_runtime,omitempty"`
	PipBinary        *string `yaml:"pip,omitempty"`
	ContainerPython  *string `yaml:"container_python,omitempty"`
}

// Ptr returns a pointer to v. Handy for building Overrides literals.
func Ptr[T any](v T) *T {
	return &v
}

// Merge returns a new layer where every field set in higher wins over o.
func (o *Overrides) Merge(higher *Overrides) *Overrides {
	merged := new(Overrides)
	if o != nil {
		*merged = *o
	}

	if higher == nil {
		return merged
	}

	pick(&merged.FunctionsDir, higher.FunctionsDir)
	pick(&merged.CommonDir, higher.CommonDir)
	pick(&merged.OutputDir, higher.OutputDir)
	pick(&merged.UseDocker, higher.UseDocker)
	pick(&merged.Language, higher.Language)
	pick(&merged.DockerImage, higher.DockerImage)
	pick(&merged.ContainerRuntime, higher.ContainerRuntime)
	pick(&merged.PipBinary, higher.PipBinary)
	pick(&merged.ContainerPython, higher.ContainerPython)

	return merged
}

// Apply returns base with every supplied field of o replacing the base value.
// base is not modified.
func (o *Overrides) Apply(base Config) Config {
	if o == nil {
		return base
	}

	cfg := base

	if o.FunctionsDir != nil {
		cfg.FunctionsDir = *o.FunctionsDir
	}

	if o.CommonDir != nil {
		cfg.CommonDir = Ptr(*o.CommonDir)
	}

	if o.OutputDir != nil {
		cfg.OutputDir = *o.OutputDir
	}

	if o.UseDocker != nil {
		cfg.UseDocker = UseDocker(*o.UseDocker)
	}

	if o.Language != nil {
		cfg.Language = Language(*o.Language)
	}

	if o.DockerImage != nil {
		cfg.DockerImage = *o.DockerImage
	}

	if o.ContainerRuntime != nil {
		cfg.ContainerRuntime = *o.ContainerRuntime
	}

	if o.PipBinary != nil {
		cfg.PipBinary = *o.PipBinary
	}

	if o.ContainerPython != nil {
		cfg.ContainerPython = *o.ContainerPython
	}

	return cfg
}

// FromConfig returns a layer that sets every field of cfg.
func FromConfig(cfg Config) *Overrides {
	o := &Overrides{
		FunctionsDir:     Ptr(cfg.FunctionsDir),
		OutputDir:        Ptr(cfg.OutputDir),
		UseDocker:        Ptr(string(cfg.UseDocker)),
		Language:         Ptr(string(cfg.Language)),
		DockerImage:      Ptr(cfg.DockerImage),
		ContainerRuntime: Ptr(cfg.ContainerRuntime),
		PipBinary:        Ptr(cfg.PipBinary),
		ContainerPython:  Ptr(cfg.ContainerPython),
	}

	if commonDir, ok := cfg.Common(); ok {
		o.CommonDir = Ptr(commonDir)
	}

	return o
}

// Load reads a settings file. Keys absent from the file stay nil.
func Load(path string) (*Overrides, error) {
	if path == "" {
		path = DefaultSettingsFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(contents))
	decoder.KnownFields(true)

	overrides := new(Overrides)
	if err = decoder.Decode(overrides); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	return overrides, nil
}

// Save writes o as a settings file.
func Save(path string, o *Overrides) error {
	if o == nil {
		return errSettingsNotSet
	}

	if path == "" {
		path = DefaultSettingsFilename
	}

	data, err := yaml.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

var errSettingsNotSet = errors.New("settings are not set")

func pick(dst **string, src *string) {
	if src != nil {
		*dst = Ptr(*src)
	}
}
