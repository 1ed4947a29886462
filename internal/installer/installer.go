package installer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oshokin/lambda-packager/internal/logger"
)

const (
	// waitDelay bounds how long Wait keeps the output pipes open after the
	// subprocess has been killed.
	waitDelay = 5 * time.Second

	// maxLineSize is the longest stdout/stderr line the scanner accepts.
	maxLineSize = 1024 * 1024
)

// ExitError reports that the installer exited with a non-zero code.
type ExitError struct {
	// Code is the process exit code.
	Code int
}

// Error implements error.
func (e *ExitError) Error() string {
	return fmt.Sprintf("subprocess error exit %d", e.Code)
}

// Outcome summarises one installer run.
type Outcome struct {
	// ExitCode is the process exit code; 0 means success.
	ExitCode int
	// Warnings are the stderr lines classified as SeverityWarning.
	Warnings []string
	// Ignored counts stderr lines classified as SeverityIgnorable.
	Ignored int
}

// DaemonProbe checks that the container daemon answers before any container is started.
type DaemonProbe interface {
	Ping(ctx context.Context) error
}

// Installer runs dependency installation for archive directories.
type Installer struct {
	pipBinary string
	container ContainerOptions
	probe     DaemonProbe
}

// Option configures an Installer.
type Option func(*Installer)

// WithDaemonProbe enables the daemon check done by Preflight.
func WithDaemonProbe(probe DaemonProbe) Option {
	return func(i *Installer) {
		i.probe = probe
	}
}

// New creates an Installer using pipBinary for direct installs and container for containerized ones.
func New(pipBinary string, container ContainerOptions, opts ...Option) *Installer {
	i := &Installer{
		pipBinary: pipBinary,
		container: container,
	}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

// Preflight verifies, once per run, that strategy can work at all.
// Only containerized installs with a configured probe are checked.
func (i *Installer) Preflight(ctx context.Context, strategy Strategy) error {
	if strategy != StrategyContainerized || i.probe == nil {
		return nil
	}

	logger.Debug(ctx, "Checking that the container daemon is reachable")

	return i.probe.Ping(ctx)
}

// Command returns the invocation Install would run for archiveDir.
func (i *Installer) Command(archiveDir string, strategy Strategy) (Command, error) {
	switch strategy {
	case StrategyDirect:
		return DirectCommand(i.pipBinary, archiveDir), nil
	case StrategyContainerized:
		return ContainerCommand(i.container, archiveDir)
	default:
		return Command{}, fmt.Errorf("unknown install strategy %d", strategy)
	}
}

// Install installs the dependencies listed in archiveDir's manifest into archiveDir.
// It blocks until the subprocess exits. A fatal stderr line kills the
// subprocess and is returned wrapping ErrToolMissing or ErrDaemonUnavailable;
// a non-zero exit code is returned as *ExitError.
func (i *Installer) Install(ctx context.Context, archiveDir string, strategy Strategy) (*Outcome, error) {
	command, err := i.Command(archiveDir, strategy)
	if err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Installing dependencies", "strategy", strategy.String(), "command", command.String())

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	//nolint:gosec // The command is built from validated settings.
	cmd := exec.CommandContext(runCtx, command.Name, command.Args...)
	cmd.WaitDelay = waitDelay

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("attach stdout: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("attach stderr: %w", err)
	}

	if err = cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: %w", ErrToolMissing, command.Name, err)
		}

		return nil, fmt.Errorf("start %s: %w", command.Name, err)
	}

	outcome := new(Outcome)

	var group errgroup.Group

	group.Go(func() error {
		return streamStdout(ctx, stdout)
	})

	group.Go(func() error {
		streamErr := streamStderr(ctx, stderr, outcome)
		if streamErr != nil {
			// Do not wait for a doomed install to finish.
			cancel()
		}

		return streamErr
	})

	streamsDone := make(chan error, 1)

	go func() {
		streamsDone <- group.Wait()
	}()

	var (
		streamErr      error
		streamsDrained bool
	)

	select {
	case streamErr = <-streamsDone:
		streamsDrained = true
	case <-runCtx.Done():
		// The process is being killed. Wait closes our ends of the pipes, which
		// releases the readers even if a grandchild still holds the write ends.
	}

	waitErr := cmd.Wait()

	if !streamsDrained {
		streamErr = <-streamsDone
	}

	if streamErr != nil {
		return outcome, streamErr
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return outcome, ctxErr
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			outcome.ExitCode = exitErr.ExitCode()

			return outcome, &ExitError{Code: outcome.ExitCode}
		}

		return outcome, fmt.Errorf("wait for %s: %w", command.Name, waitErr)
	}

	logger.InfoKV(ctx, "Dependencies installed", "warnings", len(outcome.Warnings))

	return outcome, nil
}

// streamStdout logs every installer stdout line.
func streamStdout(ctx context.Context, r io.Reader) error {
	scanner := newLineScanner(r)
	for scanner.Scan() {
		if line := scanner.Text(); strings.TrimSpace(line) != "" {
			logger.Info(ctx, line)
		}
	}

	return scanErr(scanner.Err())
}

// streamStderr classifies every installer stderr line and stops at the first fatal one.
func streamStderr(ctx context.Context, r io.Reader, outcome *Outcome) error {
	scanner := newLineScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		severity := Classify(line)

		switch {
		case severity.Fatal():
			logger.ErrorKV(ctx, "Installer reported a fatal condition", "line", line)

			return fmt.Errorf("%w: %s", severity.Err(), line)
		case severity == SeverityIgnorable:
			outcome.Ignored++
			logger.DebugKV(ctx, "Ignoring installer notice", "line", line)
		default:
			outcome.Warnings = append(outcome.Warnings, line)
			logger.Warn(ctx, line)
		}
	}

	return scanErr(scanner.Err())
}

func newLineScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineSize)

	return scanner
}

// scanErr drops the error produced when Wait closes a pipe of a killed process.
func scanErr(err error) error {
	if err == nil || errors.Is(err, os.ErrClosed) {
		return nil
	}

	return fmt.Errorf("read installer output: %w", err)
}
