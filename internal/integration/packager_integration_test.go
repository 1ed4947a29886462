package integration

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/lambda-packager/internal/config"
	"github.com/oshokin/lambda-packager/internal/installer"
	"github.com/oshokin/lambda-packager/internal/service/packager"
)

// workspace is a throwaway project with a functions root, a common dir and an output dir.
type workspace struct {
	root      string
	functions string
	common    string
	output    string
	calls     string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("fake installers are shell scripts")
	}

	root := t.TempDir()
	ws := &workspace{
		root:      root,
		functions: filepath.Join(root, "functions"),
		common:    filepath.Join(root, "common"),
		output:    filepath.Join(root, "archives"),
		calls:     filepath.Join(root, "installer-calls.log"),
	}

	require.NoError(t, os.MkdirAll(ws.functions, config.DefaultDirPermissions))

	return ws
}

// write creates a file relative to the workspace root.
func (w *workspace) write(t *testing.T, rel, contents string) {
	t.Helper()

	path := filepath.Join(w.root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), config.DefaultDirPermissions))
	require.NoError(t, os.WriteFile(path, []byte(contents), config.DefaultFilePermissions))
}

// read returns a file relative to the output directory.
func (w *workspace) read(t *testing.T, rel string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(w.output, rel))
	require.NoError(t, err)

	return string(data)
}

// installer writes an executable script that logs its arguments before running body.
func (w *workspace) installer(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(w.root, "bin", "fake-installer")
	script := "#!/bin/sh\necho \"$*\" >> \"" + w.calls + "\"\n" + body

	require.NoError(t, os.MkdirAll(filepath.Dir(path), config.DefaultDirPermissions))
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))

	return path
}

func (w *workspace) installerCalls(t *testing.T) []string {
	t.Helper()

	data, err := os.ReadFile(w.calls)
	if os.IsNotExist(err) {
		return nil
	}

	require.NoError(t, err)

	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

// directOptions packages with pip on the host through the fake installer.
func (w *workspace) directOptions(pip string) *packager.Options {
	return &packager.Options{
		Overrides: &config.Overrides{
			FunctionsDir: config.Ptr(w.functions),
			OutputDir:    config.Ptr(w.output),
			UseDocker:    config.Ptr("false"),
			PipBinary:    config.Ptr(pip),
		},
	}
}

// TestPackager_ModulesWithoutCommon covers modules with and without their own manifest.
func TestPackager_ModulesWithoutCommon(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t)
	ws.write(t, "functions/a/requirements.txt", "flask")
	ws.write(t, "functions/a/handler.py", "def handler(event, context): pass\n")
	ws.write(t, "functions/b/handler.py", "def handler(event, context): pass\n")
	ws.write(t, "functions/notes.txt", "not a module")

	pip := ws.installer(t, "exit 0\n")

	require.NoError(t, packager.Run(context.Background(), ws.directOptions(pip)))

	require.Equal(t, "\nflask", ws.read(t, "a/requirements.txt"))
	require.Equal(t, "\n", ws.read(t, "b/requirements.txt"))
	require.Equal(t, "def handler(event, context): pass\n", ws.read(t, "a/handler.py"))
	require.NoFileExists(t, filepath.Join(ws.output, "notes.txt"))

	entries, err := os.ReadDir(ws.output)
	require.NoError(t, err)

	var dirs []string

	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}

	require.Equal(t, []string{"a", "b"}, dirs)

	require.Equal(t, []string{
		"install -r " + filepath.Join(ws.output, "a", "requirements.txt") + " -t " + filepath.Join(ws.output, "a"),
		"install -r " + filepath.Join(ws.output, "b", "requirements.txt") + " -t " + filepath.Join(ws.output, "b"),
	}, ws.installerCalls(t))
}

// TestPackager_CommonOverlay merges the common manifest and lets common files win.
func TestPackager_CommonOverlay(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t)
	ws.write(t, "common/requirements.txt", "requests")
	ws.write(t, "common/shared/db.py", "COMMON = True\n")
	ws.write(t, "functions/a/shared/db.py", "COMMON = False\n")
	ws.write(t, "functions/a/handler.py", "import shared.db\n")
	ws.write(t, "functions/b/requirements.txt", "boto3\n")

	opts := ws.directOptions(ws.installer(t, "exit 0\n"))
	opts.Overrides.CommonDir = config.Ptr(ws.common)

	require.NoError(t, packager.Run(context.Background(), opts))

	require.Equal(t, "requests\n", ws.read(t, "a/requirements.txt"))
	require.Equal(t, "requests\nboto3\n", ws.read(t, "b/requirements.txt"))
	require.Equal(t, "COMMON = True\n", ws.read(t, "a/shared/db.py"))
	require.Equal(t, "COMMON = True\n", ws.read(t, "b/shared/db.py"))
	require.Equal(t, "import shared.db\n", ws.read(t, "a/handler.py"))
}

// TestPackager_RerunIsIdempotent recreates archive directories instead of merging stale contents.
func TestPackager_RerunIsIdempotent(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t)
	ws.write(t, "functions/a/requirements.txt", "flask")
	ws.write(t, "functions/a/handler.py", "v1\n")

	opts := ws.directOptions(ws.installer(t, "exit 0\n"))

	require.NoError(t, packager.Run(context.Background(), opts))

	first := ws.read(t, "a/requirements.txt")

	// Junk left in the archive from an earlier run must disappear.
	require.NoError(t, os.WriteFile(filepath.Join(ws.output, "a", "stale.py"), []byte("old"), config.DefaultFilePermissions))

	require.NoError(t, packager.Run(context.Background(), opts))

	require.Equal(t, first, ws.read(t, "a/requirements.txt"))
	require.Equal(t, "v1\n", ws.read(t, "a/handler.py"))
	require.NoFileExists(t, filepath.Join(ws.output, "a", "stale.py"))
}

// TestPackager_ContainerizedOnAnyPlatform uses the container runtime when useDocker is true.
func TestPackager_ContainerizedOnAnyPlatform(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t)
	ws.write(t, "functions/a/requirements.txt", "numpy")

	dockerBin := ws.installer(t, "exit 0\n")

	err := packager.Run(context.Background(), &packager.Options{
		Overrides: &config.Overrides{
			FunctionsDir:     config.Ptr(ws.functions),
			OutputDir:        config.Ptr(ws.output),
			UseDocker:        config.Ptr("true"),
			ContainerRuntime: config.Ptr(dockerBin),
			DockerImage:      config.Ptr("example/build-python:3.12"),
		},
		Platform:        "linux",
		SkipDaemonCheck: true,
	})
	require.NoError(t, err)

	archive, err := filepath.Abs(filepath.Join(ws.output, "a"))
	require.NoError(t, err)

	calls := ws.installerCalls(t)
	require.Len(t, calls, 1)
	require.Equal(t,
		"run --rm -v "+archive+":/var/task:z example/build-python:3.12 "+
			"python -m pip install -t /var/task/ -r /var/task/requirements.txt",
		calls[0])
}

// TestPackager_CommandNotFoundAbortsRun stops before later modules are touched.
func TestPackager_CommandNotFoundAbortsRun(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t)
	ws.write(t, "functions/a/requirements.txt", "flask")
	ws.write(t, "functions/b/requirements.txt", "flask")

	pip := ws.installer(t, "echo \"/bin/sh: 1: pip: command not found\" >&2\nexit 127\n")

	err := packager.Run(context.Background(), ws.directOptions(pip))
	require.ErrorIs(t, err, installer.ErrToolMissing)
	require.Contains(t, err.Error(), `"a"`)

	require.Len(t, ws.installerCalls(t), 1)
	require.NoDirExists(t, filepath.Join(ws.output, "b"))
	require.NoFileExists(t, filepath.Join(ws.output, packager.ReportFilename))
}

// TestPackager_NonZeroExitAbortsRun carries the installer exit code to the caller.
func TestPackager_NonZeroExitAbortsRun(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t)
	ws.write(t, "functions/a/requirements.txt", "nope==0")
	ws.write(t, "functions/b/requirements.txt", "flask")

	pip := ws.installer(t, "echo \"ERROR: No matching distribution found for nope==0\" >&2\nexit 1\n")

	err := packager.Run(context.Background(), ws.directOptions(pip))

	var exitErr *installer.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 1, exitErr.Code)
	require.NoDirExists(t, filepath.Join(ws.output, "b"))
}

// TestPackager_MissingFunctionsDir fails before anything is written.
func TestPackager_MissingFunctionsDir(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t)
	opts := ws.directOptions(ws.installer(t, "exit 0\n"))
	opts.Overrides.FunctionsDir = config.Ptr(filepath.Join(ws.root, "does-not-exist"))

	err := packager.Run(context.Background(), opts)
	require.ErrorIs(t, err, config.ErrFunctionsDirMissing)
	require.NoDirExists(t, ws.output)
	require.Empty(t, ws.installerCalls(t))
}

// TestPackager_UnsupportedLanguage rejects ts before writing anything.
func TestPackager_UnsupportedLanguage(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t)
	ws.write(t, "functions/a/package.json", "{}")

	opts := ws.directOptions(ws.installer(t, "exit 0\n"))
	opts.Overrides.Language = config.Ptr("ts")

	err := packager.Run(context.Background(), opts)
	require.ErrorIs(t, err, config.ErrUnsupportedLanguage)
	require.NoDirExists(t, ws.output)
}
