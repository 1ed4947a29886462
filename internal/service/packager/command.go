package packager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/oshokin/lambda-packager/internal/config"
	"github.com/oshokin/lambda-packager/internal/fsutil"
	"github.com/oshokin/lambda-packager/internal/installer"
	"github.com/oshokin/lambda-packager/internal/logger"
	"github.com/oshokin/lambda-packager/internal/manifest"
)

// Options contains inputs for the packager entry point.
type Options struct {
	// Overrides are the caller-supplied settings layered over config.Defaults.
	Overrides *config.Overrides
	// Platform is the host GOOS used to pick the install strategy. Empty means runtime.GOOS.
	Platform string
	// SkipDaemonCheck disables the container daemon ping before containerized installs.
	SkipDaemonCheck bool
	// DaemonProbe replaces the Docker Engine API ping. Nil means installer.DockerProbe.
	DaemonProbe installer.DaemonProbe
}

// Module is one function module found under the functions root.
type Module struct {
	// Name is the directory basename.
	Name string
	// SourcePath is the module directory under the functions root.
	SourcePath string
	// ArchivePath is <output>/<Name>.
	ArchivePath string
}

// packager holds the resolved configuration of a single run.
// It is unexported; callers use Run, which validates first.
type packager struct {
	// cfg is the validated configuration.
	cfg config.Config
	// strategy is where dependencies are installed, fixed for the whole run.
	strategy installer.Strategy
	// installer runs pip for each archive directory.
	installer *installer.Installer
	// commonManifest is the shared manifest text, read once; empty without a common dir.
	commonManifest string
	// report collects the per-module results written after a successful run.
	report *Report
}

// ErrCommonManifestMissing is returned when a configured common directory has no manifest.
var ErrCommonManifestMissing = errors.New("error reading common requirements file")

// Run validates the configuration and packages every function module.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "lambda-packager")

	if opts == nil {
		opts = new(Options)
	}

	cfg := opts.Overrides.Apply(config.Defaults())
	if err := config.Validate(cfg); err != nil {
		return err
	}

	platform := opts.Platform
	if platform == "" {
		platform = runtime.GOOS
	}

	strategy, err := installer.SelectStrategy(cfg.UseDocker, platform)
	if err != nil {
		return err
	}

	inst := newInstaller(ctx, cfg, strategy, opts)
	if err = inst.Preflight(ctx, strategy); err != nil {
		return err
	}

	pkg, err := newPackager(ctx, cfg, strategy, inst)
	if err != nil {
		return fmt.Errorf("initialize packager: %w", err)
	}

	marker, err := acquireMarker(ctx, cfg.OutputDir)
	if err != nil {
		return err
	}

	defer marker.release(ctx)

	if err = pkg.Run(ctx); err != nil {
		return fmt.Errorf("packager failed: %w", err)
	}

	logger.Info(ctx, "Packaging completed successfully")

	return nil
}

// newInstaller wires the configured tools and the optional daemon probe.
// The probe speaks the Docker Engine API, so other container runtimes are not pinged.
func newInstaller(
	ctx context.Context,
	cfg config.Config,
	strategy installer.Strategy,
	opts *Options,
) *installer.Installer {
	var installerOpts []installer.Option

	checkDaemon := !opts.SkipDaemonCheck
	if checkDaemon && filepath.Base(cfg.ContainerRuntime) != config.DefaultContainerRuntime {
		if strategy == installer.StrategyContainerized {
			logger.WarnKV(ctx, "Skipping daemon check for a non-Docker container runtime",
				"runtime", cfg.ContainerRuntime)
		}

		checkDaemon = false
	}

	if checkDaemon {
		probe := opts.DaemonProbe
		if probe == nil {
			probe = installer.DockerProbe{}
		}

		installerOpts = append(installerOpts, installer.WithDaemonProbe(probe))
	}

	return installer.New(
		cfg.PipBinary,
		installer.ContainerOptions{
			Runtime: cfg.ContainerRuntime,
			Image:   cfg.DockerImage,
			Python:  cfg.ContainerPython,
		},
		installerOpts...,
	)
}

// newPackager prepares the output directory and loads the shared manifest.
func newPackager(
	ctx context.Context,
	cfg config.Config,
	strategy installer.Strategy,
	inst *installer.Installer,
) (*packager, error) {
	if err := fsutil.EnsureDir(cfg.OutputDir); err != nil {
		return nil, err
	}

	pkg := &packager{
		cfg:       cfg,
		strategy:  strategy,
		installer: inst,
		report:    newReport(strategy),
	}

	commonDir, ok := cfg.Common()
	if !ok {
		return pkg, nil
	}

	manifestPath, err := manifest.Path(commonDir, cfg.Language)
	if err != nil {
		return nil, err
	}

	common, err := manifest.Read(manifestPath)
	if err != nil {
		return nil, err
	}

	if !common.Found {
		logger.InfoKV(ctx, "No common requirements file found", "path", manifestPath)

		return nil, fmt.Errorf("%w: file not found: %s", ErrCommonManifestMissing, manifestPath)
	}

	pkg.commonManifest = common.Text

	return pkg, nil
}

// Run packages the modules one after another and stops at the first failure.
func (p *packager) Run(ctx context.Context) error {
	modules, err := p.modules()
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Packaging function modules",
		"count", len(modules),
		"strategy", p.strategy.String(),
		"output", p.cfg.OutputDir)

	for _, module := range modules {
		if err = p.packageModule(ctx, module); err != nil {
			return fmt.Errorf("package module %q: %w", module.Name, err)
		}
	}

	path, err := p.report.save(p.cfg.OutputDir)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Saved packaging report", "path", path)

	return nil
}

// modules lists the immediate subdirectories of the functions root in name order.
func (p *packager) modules() ([]Module, error) {
	entries, err := os.ReadDir(p.cfg.FunctionsDir)
	if err != nil {
		return nil, fmt.Errorf("list function modules: %w", err)
	}

	modules := make([]Module, 0, len(entries))

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		modules = append(modules, Module{
			Name:        entry.Name(),
			SourcePath:  filepath.Join(p.cfg.FunctionsDir, entry.Name()),
			ArchivePath: filepath.Join(p.cfg.OutputDir, entry.Name()),
		})
	}

	return modules, nil
}

// packageModule builds one archive directory and installs its dependencies.
func (p *packager) packageModule(ctx context.Context, module Module) error {
	ctx = logger.WithKV(ctx, "module", module.Name)

	logger.InfoKV(ctx, "Recreating archive directory", "path", module.ArchivePath)

	if err := fsutil.RecreateDir(module.ArchivePath); err != nil {
		return err
	}

	if err := fsutil.CopyTree(module.SourcePath, module.ArchivePath); err != nil {
		return fmt.Errorf("copy module source: %w", err)
	}

	manifestPath, err := manifest.Path(module.SourcePath, p.cfg.Language)
	if err != nil {
		return err
	}

	own, err := manifest.Read(manifestPath)
	if err != nil {
		return err
	}

	if !own.Found {
		logger.InfoKV(ctx, "No requirements file found", "path", module.SourcePath)
	}

	merged := manifest.Merge(p.commonManifest, own.Text)
	logger.DebugKV(ctx, "Merged requirements", "contents", merged)

	// Common files are copied last so they win over module files at the same path.
	if commonDir, ok := p.cfg.Common(); ok {
		if err = fsutil.CopyTree(commonDir, module.ArchivePath); err != nil {
			return fmt.Errorf("copy common source: %w", err)
		}
	}

	// The merged manifest replaces whatever either tree carried.
	if _, err = manifest.Write(module.ArchivePath, p.cfg.Language, merged); err != nil {
		return err
	}

	outcome, err := p.installer.Install(ctx, module.ArchivePath, p.strategy)
	if err != nil {
		return fmt.Errorf("install dependencies: %w", err)
	}

	p.report.add(module, merged, outcome)

	return nil
}
