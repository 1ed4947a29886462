package installer

import (
	"github.com/oshokin/lambda-packager/internal/config"
)

// Strategy is where dependency installation runs.
type Strategy int

const (
	// StrategyDirect runs the installer on the build host.
	StrategyDirect Strategy = iota
	// StrategyContainerized runs the installer inside the build image.
	StrategyContainerized
)

// PlatformLinux is the GOOS value of hosts that can install directly under no-linux.
const PlatformLinux = "linux"

// String returns the name used in logs and in the packaging report.
func (s Strategy) String() string {
	switch s {
	case StrategyDirect:
		return "direct"
	case StrategyContainerized:
		return "containerized"
	default:
		return "unknown"
	}
}

// SelectStrategy applies the useDocker rule table for the given host platform (a GOOS value).
//
//	false    → direct
//	true     → containerized
//	no-linux → direct on linux, containerized elsewhere
func SelectStrategy(useDocker config.UseDocker, platform string) (Strategy, error) {
	choice, err := config.ParseUseDocker(string(useDocker))
	if err != nil {
		return StrategyDirect, err
	}

	switch choice {
	case config.UseDockerFalse:
		return StrategyDirect, nil
	case config.UseDockerTrue:
		return StrategyContainerized, nil
	default:
		if platform == PlatformLinux {
			return StrategyDirect, nil
		}

		return StrategyContainerized, nil
	}
}
