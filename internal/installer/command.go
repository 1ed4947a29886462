package installer

import (
	"fmt"
	"path"
	"path/filepath"

	"github.com/oshokin/lambda-packager/internal/manifest"
)

const (
	// ContainerTaskDir is where the archive directory is mounted inside the build image.
	ContainerTaskDir = "/var/task"

	// mountLabel asks the runtime to relabel the bind mount for SELinux hosts.
	mountLabel = "z"
)

// Command is a resolved installer invocation.
type Command struct {
	// Name is the executable, looked up in PATH unless it contains a separator.
	Name string
	// Args are the arguments passed to Name.
	Args []string
}

// String renders the command for logs.
func (c Command) String() string {
	return fmt.Sprintf("%s %v", c.Name, c.Args)
}

// DirectCommand installs the archive manifest into the archive directory with pip on the host.
//
// Generated command: <pip> install -r <archiveDir>/requirements.txt -t <archiveDir>
func DirectCommand(pipBinary, archiveDir string) Command {
	return Command{
		Name: pipBinary,
		Args: []string{
			"install",
			"-r", filepath.Join(archiveDir, manifest.RequirementsFilename),
			"-t", archiveDir,
		},
	}
}

// ContainerOptions describe a containerized installation.
type ContainerOptions struct {
	// Runtime is the container CLI binary.
	Runtime string
	// Image is the build image.
	Image string
	// Python is the interpreter that runs pip inside the image.
	Python string
}

// ContainerCommand installs the archive manifest inside a throwaway build container.
// archiveDir is made absolute because bind mounts require absolute host paths.
//
// Generated command: <runtime> run --rm -v <abs archiveDir>:/var/task:z <image>
// <python> -m pip install -t /var/task/ -r /var/task/requirements.txt
func ContainerCommand(opts ContainerOptions, archiveDir string) (Command, error) {
	hostPath, err := filepath.Abs(archiveDir)
	if err != nil {
		return Command{}, fmt.Errorf("resolve absolute path of %s: %w", archiveDir, err)
	}

	args := []string{
		"run",
		"--rm",
		"-v", hostPath + ":" + ContainerTaskDir + ":" + mountLabel,
		opts.Image,
		opts.Python, "-m", "pip", "install",
		"-t", ContainerTaskDir + "/",
		"-r", path.Join(ContainerTaskDir, manifest.RequirementsFilename),
	}

	return Command{Name: opts.Runtime, Args: args}, nil
}
