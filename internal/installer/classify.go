package installer

import (
	"errors"
	"strings"
)

// Severity is the classification of one installer stderr line.
type Severity int

const (
	// SeverityWarning is reported and packaging continues.
	SeverityWarning Severity = iota
	// SeverityIgnorable is installer noise such as a self-upgrade notice.
	SeverityIgnorable
	// SeverityToolMissing means the installer or container binary is not installed.
	SeverityToolMissing
	// SeverityDaemonUnavailable means the container runtime is not running.
	SeverityDaemonUnavailable
)

var (
	// ErrToolMissing is returned when installer tooling cannot be found.
	ErrToolMissing = errors.New("installer tooling not found, please install it")
	// ErrDaemonUnavailable is returned when the container daemon cannot be reached.
	ErrDaemonUnavailable = errors.New("docker daemon not running, please start it")
)

type rule struct {
	substring string
	severity  Severity
}

// rules are checked in order; fatal rules come first so a fatal line is never
// swallowed by a noise pattern.
//
//nolint:gochecknoglobals // Read-only lookup table.
var rules = []rule{
	{"command not found", SeverityToolMissing},
	{"Cannot connect to the Docker daemon", SeverityDaemonUnavailable},
	{"WARNING: You are using pip version", SeverityIgnorable},
	{"[notice] A new release of pip", SeverityIgnorable},
	{"[notice] To update, run:", SeverityIgnorable},
}

// Classify returns the severity of a single stderr line.
func Classify(line string) Severity {
	for _, r := range rules {
		if strings.Contains(line, r.substring) {
			return r.severity
		}
	}

	return SeverityWarning
}

// Fatal reports whether s aborts the installation.
func (s Severity) Fatal() bool {
	return s == SeverityToolMissing || s == SeverityDaemonUnavailable
}

// Err returns the sentinel error of a fatal severity and nil otherwise.
func (s Severity) Err() error {
	switch s {
	case SeverityToolMissing:
		return ErrToolMissing
	case SeverityDaemonUnavailable:
		return ErrDaemonUnavailable
	default:
		return nil
	}
}
