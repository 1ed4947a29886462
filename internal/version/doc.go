// Package version exposes build metadata injected through -ldflags.
//
// The host platform is part of the full version string because it decides
// whether dependencies are installed directly or inside a container.
package version
