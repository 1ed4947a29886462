// Package fsutil mirrors directory trees into archive directories.
//
// Copies are deliberately plain: no exclusion patterns and no symlink
// handling. Existing destination files are overwritten, which is what lets
// a later copy (the common tree) win over an earlier one (the module tree).
package fsutil
