package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestDefaults checks the documented default values.
func TestDefaults(t *testing.T) {
	t.Parallel()

	cfg := Defaults()

	require.Equal(t, "./functions", cfg.FunctionsDir)
	require.Equal(t, "./archives", cfg.OutputDir)
	require.Nil(t, cfg.CommonDir)
	require.Equal(t, UseDockerNoLinux, cfg.UseDocker)
	require.Equal(t, LanguagePython, cfg.Language)
}

// TestApply_DistinguishesOmittedFromEmpty ensures nil fields keep defaults while explicit empties override them.
func TestApply_DistinguishesOmittedFromEmpty(t *testing.T) {
	t.Parallel()

	base := Defaults()

	cfg := (&Overrides{}).Apply(base)
	require.Equal(t, base, cfg)

	cfg = (&Overrides{
		OutputDir: Ptr(""),
		CommonDir: Ptr(""),
	}).Apply(base)

	require.Empty(t, cfg.OutputDir)

	commonDir, ok := cfg.Common()
	require.True(t, ok)
	require.Empty(t, commonDir)

	// The defaults record itself is untouched.
	require.Equal(t, DefaultOutputDir, Defaults().OutputDir)
	require.Equal(t, DefaultOutputDir, base.OutputDir)
}

// TestMerge_HigherLayerWins checks field-by-field precedence of two layers.
func TestMerge_HigherLayerWins(t *testing.T) {
	t.Parallel()

	file := &Overrides{
		OutputDir:   Ptr("file-out"),
		DockerImage: Ptr("file-image"),
	}
	flags := &Overrides{
		OutputDir: Ptr("flag-out"),
		UseDocker: Ptr("true"),
	}

	merged := file.Merge(flags)

	cfg := merged.Apply(Defaults())
	require.Equal(t, "flag-out", cfg.OutputDir)
	require.Equal(t, "file-image", cfg.DockerImage)
	require.Equal(t, UseDockerTrue, cfg.UseDocker)
	require.Equal(t, "file-out", *file.OutputDir)

	var nilLayer *Overrides

	require.Equal(t, "flag-out", *nilLayer.Merge(flags).OutputDir)
}

// TestParseUseDocker accepts the three documented values only.
func TestParseUseDocker(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"no-linux", "true", "false"} {
		v, err := ParseUseDocker(s)
		require.NoError(t, err)
		require.Equal(t, UseDocker(s), v)
	}

	for _, s := range []string{"", "yes", "TRUE"} {
		_, err := ParseUseDocker(s)
		require.ErrorIs(t, err, ErrInvalidUseDocker)
	}
}

// TestValidate covers each configuration error.
func TestValidate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	functionsDir := filepath.Join(dir, "functions")
	require.NoError(t, os.Mkdir(functionsDir, DefaultDirPermissions))

	aFile := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(aFile, []byte("x"), DefaultFilePermissions))

	valid := Defaults()
	valid.FunctionsDir = functionsDir
	require.NoError(t, Validate(valid))

	cases := map[string]struct {
		mutate func(*Config)
		want   error
	}{
		"missing functions dir": {
			mutate: func(c *Config) { c.FunctionsDir = filepath.Join(dir, "nope") },
			want:   ErrFunctionsDirMissing,
		},
		"functions dir is a file": {
			mutate: func(c *Config) { c.FunctionsDir = aFile },
			want:   ErrFunctionsDirMissing,
		},
		"missing common dir": {
			mutate: func(c *Config) { c.CommonDir = Ptr(filepath.Join(dir, "common")) },
			want:   ErrCommonDirMissing,
		},
		"explicit empty common dir": {
			mutate: func(c *Config) { c.CommonDir = Ptr("") },
			want:   ErrCommonDirMissing,
		},
		"ts is not packaged yet": {
			mutate: func(c *Config) { c.Language = LanguageTS },
			want:   ErrUnsupportedLanguage,
		},
		"unknown language": {
			mutate: func(c *Config) { c.Language = "ruby" },
			want:   ErrUnsupportedLanguage,
		},
		"malformed useDocker": {
			mutate: func(c *Config) { c.UseDocker = "maybe" },
			want:   ErrInvalidUseDocker,
		},
		"empty output dir": {
			mutate: func(c *Config) { c.OutputDir = "" },
			want:   ErrOutputDirRequired,
		},
		"empty docker image": {
			mutate: func(c *Config) { c.DockerImage = " " },
			want:   ErrEmptySetting,
		},
	}

	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cfg := valid
			tc.mutate(&cfg)
			require.ErrorIs(t, Validate(cfg), tc.want)
		})
	}
}

// TestSaveLoadRoundtrip ensures a settings file keeps explicit empties and omits unset fields.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")

	saved := &Overrides{
		FunctionsDir: Ptr("src/functions"),
		CommonDir:    Ptr(""),
		UseDocker:    Ptr("false"),
	}

	require.NoError(t, Save(path, saved))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, saved, loaded)
	require.Nil(t, loaded.OutputDir)
}

// TestLoad_RejectsUnknownKeys makes typos in the settings file visible.
func TestLoad_RejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output_directory: out\n"), DefaultFilePermissions))

	_, err := Load(path)
	require.Error(t, err)
}

// TestLoad_EmptyFile yields an empty layer.
func TestLoad_EmptyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, nil, DefaultFilePermissions))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, new(Overrides), loaded)
}

// TestFromConfig_RoundTripsThroughApply checks that a full layer reproduces its config.
func TestFromConfig_RoundTripsThroughApply(t *testing.T) {
	t.Parallel()

	cfg := Defaults()
	cfg.CommonDir = Ptr("common")

	require.Equal(t, cfg, FromConfig(cfg).Apply(Config{}))
}
