package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/lambda-packager/internal/config"
	"github.com/oshokin/lambda-packager/internal/logger"
	"github.com/oshokin/lambda-packager/internal/service/packager"
	"github.com/oshokin/lambda-packager/internal/version"
)

// flagValues receives the raw flag values; only flags the user set are applied.
type flagValues struct {
	configPath       string
	commonDir        string
	outputDir        string
	useDocker        string
	language         string
	dockerImage      string
	containerRuntime string
	pipBinary        string
	containerPython  string
	logLevel         string
	skipDaemonCheck  bool
}

// Execute runs the lambda-packager CLI and exits with non-zero status on error.
func Execute() {
	defer logger.Sync()

	if err := NewRootCommand().Execute(); err != nil {
		logger.Error(context.Background(), err)
		logger.Sync()
		os.Exit(1)
	}
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(new(flagValues))
}

func newRootCommand(flags *flagValues) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lambda-packager [functions-dir]",
		Short: "Package serverless function modules with their pip dependencies",
		Long: "Copies every subdirectory of the functions directory into its own archive directory,\n" +
			"merges its requirements.txt with the common one and installs the dependencies next to the code,\n" +
			"directly with pip or inside a build container.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(flags.logLevel)
			if !ok {
				return fmt.Errorf("%w: %q", errUnknownLogLevel, flags.logLevel)
			}

			logger.SetLevel(level)

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			overrides, err := resolveOverrides(cmd, flags, args)
			if err != nil {
				return err
			}

			return packager.Run(ctx, &packager.Options{
				Overrides:       overrides,
				SkipDaemonCheck: flags.skipDaemonCheck,
			})
		},
	}

	defaults := config.Defaults()

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", config.DefaultSettingsFilename, "path to settings file")
	pf.StringVar(&flags.logLevel, "log-level", "info", "log level: debug, info, warn or error")

	f := rootCmd.Flags()
	f.StringVar(&flags.commonDir, "common", "", "common shared code directory path")
	f.StringVarP(&flags.outputDir, "output", "o", defaults.OutputDir, "output directory for archive directories")
	f.StringVarP(&flags.useDocker, "useDocker", "u", string(defaults.UseDocker), "install inside a container: no-linux, true or false")
	f.StringVarP(&flags.language, "language", "l", string(defaults.Language), "function language: python, ts or js")
	f.StringVar(&flags.dockerImage, "docker-image", defaults.DockerImage, "build image for containerized installs")
	f.StringVar(&flags.containerRuntime, "container-runtime", defaults.ContainerRuntime, "container CLI binary")
	f.StringVar(&flags.pipBinary, "pip", defaults.PipBinary, "pip binary for direct installs")
	f.StringVar(&flags.containerPython, "container-python", defaults.ContainerPython, "python binary inside the build image")
	f.BoolVar(&flags.skipDaemonCheck, "skip-daemon-check", false, "do not ping the Docker daemon before containerized installs (never pinged for other runtimes)")

	rootCmd.AddCommand(newInitConfigCommand(flags), version.NewCommand())

	return rootCmd
}

var (
	errUnknownLogLevel = errors.New("unknown log level")
	errSettingsExist   = errors.New("settings file already exists")
)

// resolveOverrides layers the settings file, the flags the user set and the positional functions dir.
func resolveOverrides(cmd *cobra.Command, flags *flagValues, args []string) (*config.Overrides, error) {
	fileLayer, err := loadSettings(cmd, flags.configPath)
	if err != nil {
		return nil, err
	}

	flagLayer := new(config.Overrides)

	changed := func(name string, value string, dst **string) {
		if cmd.Flags().Changed(name) {
			*dst = config.Ptr(value)
		}
	}

	changed("common", flags.commonDir, &flagLayer.CommonDir)
	changed("output", flags.outputDir, &flagLayer.OutputDir)
	changed("useDocker", flags.useDocker, &flagLayer.UseDocker)
	changed("language", flags.language, &flagLayer.Language)
	changed("docker-image", flags.dockerImage, &flagLayer.DockerImage)
	changed("container-runtime", flags.containerRuntime, &flagLayer.ContainerRuntime)
	changed("pip", flags.pipBinary, &flagLayer.PipBinary)
	changed("container-python", flags.containerPython, &flagLayer.ContainerPython)

	if len(args) > 0 {
		flagLayer.FunctionsDir = config.Ptr(args[0])
	}

	return fileLayer.Merge(flagLayer), nil
}

// loadSettings reads the settings file. The default file is optional; an explicit --config is not.
func loadSettings(cmd *cobra.Command, path string) (*config.Overrides, error) {
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return new(config.Overrides), nil
		}
	}

	overrides, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load settings %s: %w", path, err)
	}

	logger.Debugf(cmd.Context(), "Loaded settings from %s", path)

	return overrides, nil
}

// newInitConfigCommand writes a settings file filled with the defaults.
func newInitConfigCommand(flags *flagValues) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write a settings file with the default configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(flags.configPath); err == nil && !force {
				return fmt.Errorf("%w: %s (use --force to overwrite)", errSettingsExist, flags.configPath)
			}

			if err := config.Save(flags.configPath, config.FromConfig(config.Defaults())); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Settings written to %s\n", flags.configPath)

			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing settings file")

	return cmd
}
