package packager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/lambda-packager/internal/config"
	"github.com/oshokin/lambda-packager/internal/logger"
)

// MarkerFilename marks an output directory that a packager is writing to right now.
const MarkerFilename = ".lambda-packager.lock"

// ErrPackagerRunning indicates that another live packager owns the output directory.
var ErrPackagerRunning = errors.New("another packager is writing to the output directory")

// runMarker is the PID file guarding one output directory.
type runMarker struct {
	path string
}

// acquireMarker writes this process's PID into outputDir.
// A marker left by a process that no longer exists is replaced.
func acquireMarker(ctx context.Context, outputDir string) (*runMarker, error) {
	path := filepath.Join(outputDir, MarkerFilename)

	logger.Debug(ctx, "Checking for the presence of a run marker")

	contents, err := os.ReadFile(filepath.Clean(path))

	switch {
	case err == nil:
		pid, parseErr := strconv.Atoi(strings.TrimSpace(string(contents)))
		if parseErr == nil && pid != os.Getpid() {
			if process, alive := findProcess(pid); alive {
				return nil, fmt.Errorf("%w: pid %d (%s), marker %s",
					ErrPackagerRunning, pid, process.Executable(), path)
			}
		}

		logger.InfoKV(ctx, "Replacing stale run marker", "path", path)
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read run marker: %w", err)
	}

	pid := strconv.Itoa(os.Getpid())
	if err = os.WriteFile(path, []byte(pid+"\n"), config.DefaultFilePermissions); err != nil {
		return nil, fmt.Errorf("write run marker: %w", err)
	}

	return &runMarker{path: path}, nil
}

// release removes the marker. Failures are only logged.
func (m *runMarker) release(ctx context.Context) {
	if err := os.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WarnKV(ctx, "Unable to remove run marker", "path", m.path, "error", err)
	}
}

// findProcess looks pid up in the process table.
func findProcess(pid int) (ps.Process, bool) {
	process, err := ps.FindProcess(pid)
	if err != nil || process == nil {
		return nil, false
	}

	return process, true
}
