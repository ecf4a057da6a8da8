package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"go_styletransfer/assets"
	"go_styletransfer/core"
	"go_styletransfer/logging"
	"go_styletransfer/stylenet"
	"go_styletransfer/styletransfer"
)

// app carries what every subcommand needs once the root command has loaded
// the environment.
type app struct {
	envFile string
	assets  string
	verbose bool

	envErr   error
	cfg      *core.Config
	styleCfg styletransfer.Config
	logger   *logging.Logger
}

// NewCLI builds the root command.
func NewCLI() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "styletransfer",
		Short:         "Neural style transfer over five bundled ncnn models",
		Version:       core.VersionInfo(stylenet.BackendName()),
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.envFile, "env-file", ".env", "environment file to load before reading STYLE_* variables")
	flags.StringVar(&a.assets, "assets", "", "model asset directory (overrides STYLE_ASSETS_DIR)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log at the configured level instead of warnings only")

	rootCmd.AddCommand(
		newTransferCmd(a),
		newStylesCmd(a),
		newVerifyCmd(a),
		newServeCmd(a),
		newHistoryCmd(a),
		newServiceCmd(a),
		newHashKeyCmd(),
	)
	return rootCmd
}

// setup loads .env, the process and engine configuration, and the logger.
// Only the long-running commands log at the configured level by default; the
// one-shot commands keep the console quiet unless --verbose is set.
func (a *app) setup(cmd *cobra.Command) error {
	if err := godotenv.Load(a.envFile); err != nil {
		if cmd.Flags().Changed("env-file") {
			return core.ErrEnvFileMissing(a.envFile)
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", a.envFile, err)
		}
		a.envErr = err
	}

	cfg, err := core.LoadConfig()
	if err != nil {
		return err
	}
	if a.assets != "" {
		cfg.AssetsDir = a.assets
	}
	a.cfg = cfg

	if a.styleCfg, err = styletransfer.LoadConfig(); err != nil {
		return err
	}

	level := logging.ParseLogLevelString(cfg.LogLevel, zapcore.InfoLevel)
	loud := a.verbose || cmd.Name() == "serve" || cmd.CommandPath() == "styletransfer service run"
	if !loud && level < zapcore.WarnLevel {
		level = zapcore.WarnLevel
	}
	if a.logger, err = logging.NewLogger(cfg.DevMode && loud, cfg.LogFile, level); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if a.envErr != nil {
		a.logger.Debug("No .env file loaded", zap.String("path", a.envFile))
	}
	return nil
}

// source returns the configured asset directory after checking it exists.
func (a *app) source() (assets.Source, error) {
	info, err := os.Stat(a.cfg.AssetsDir)
	if err != nil {
		return nil, core.ErrAssetsMissing(a.cfg.AssetsDir, err.Error())
	}
	if !info.IsDir() {
		return nil, core.ErrAssetsMissing(a.cfg.AssetsDir, "not a directory")
	}
	return assets.Dir(a.cfg.AssetsDir), nil
}
