package installer

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/client"
)

// daemonPingTimeout bounds the preflight ping only; installs themselves are not time-bounded.
const daemonPingTimeout = 10 * time.Second

// DockerProbe pings the Docker Engine API configured by DOCKER_HOST and friends.
type DockerProbe struct {
	// Opts are extra client options, such as client.WithHost in tests.
	Opts []client.Opt
}

// Ping fails with ErrDaemonUnavailable when the daemon does not answer.
func (p DockerProbe) Ping(ctx context.Context) error {
	opts := append([]client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}, p.Opts...)

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return fmt.Errorf("%w: create docker client: %w", ErrDaemonUnavailable, err)
	}

	defer func() {
		_ = cli.Close()
	}()

	pingCtx, cancel := context.WithTimeout(ctx, daemonPingTimeout)
	defer cancel()

	if _, err = cli.Ping(pingCtx); err != nil {
		return fmt.Errorf("%w: %w", ErrDaemonUnavailable, err)
	}

	return nil
}
