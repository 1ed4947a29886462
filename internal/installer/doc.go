// Package installer installs the merged dependencies of an archive directory.
//
// SelectStrategy decides between running pip on the host and running it in a
// build container. Installer spawns the chosen command, logs its stdout and
// feeds every stderr line to Classify. A fatal line (missing tooling or an
// unreachable container daemon) kills the subprocess at once; a non-zero exit
// code is returned as *ExitError.
package installer
