// Package packager turns a directory of function modules into deployable
// archive directories.
//
// For every immediate subdirectory of the functions root, in name order, it
// recreates <output>/<module>, copies the module source and then the common
// tree into it, writes the merged requirements.txt and installs the
// dependencies next to the code, either with pip on the host or inside a
// build container. The first fatal error stops the run. After a successful
// run a YAML report with a checksum of every merged manifest is written to
// the output directory.
package packager
