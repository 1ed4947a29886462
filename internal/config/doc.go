// Package config defines the packaging configuration, its defaults and the
// layered overrides applied on top of them.
//
// Defaults is an immutable value. Each layer (settings file, CLI flags) is
// an Overrides value whose nil fields mean "not supplied", so an explicit
// empty string still replaces the default. Validate reports configuration
// errors before anything touches the filesystem.
package config
