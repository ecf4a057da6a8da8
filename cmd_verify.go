package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"go_styletransfer/assets"
	"go_styletransfer/core"
	"go_styletransfer/core/validation"
	"go_styletransfer/logging"
	"go_styletransfer/stylenet"
	"go_styletransfer/styletransfer"
)

func newVerifyCmd(a *app) *cobra.Command {
	var failFast bool

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Run the preflight checks: configuration, assets, models, GPU and history storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result := a.preflight(cmd).WithFailFast(failFast).Run(cmd.Context())
			if !result.Success {
				return fmt.Errorf("preflight failed: %w", result.Err())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop at the first failed check")
	return cmd
}

// preflight builds the verify suite. Checks that need the assets are skipped
// once an earlier check has failed.
func (a *app) preflight(cmd *cobra.Command) *validation.Suite {
	var (
		src      assets.Source
		manifest *assets.Manifest
	)

	return validation.NewSuite("Style Transfer Preflight").
		WithOutput(cmd.OutOrStdout()).
		Add("Environment File", func(context.Context) validation.CheckResult {
			if a.envErr != nil {
				return validation.Warn("%s not found, using the process environment", a.envFile)
			}
			return validation.Pass("loaded %s", a.envFile)
		}).
		Add("Configuration", func(context.Context) validation.CheckResult {
			return validation.Pass("%s", a.styleCfg.String())
		}).
		Add("Asset Directory", func(context.Context) validation.CheckResult {
			if err := validation.CheckDirExists(a.cfg.AssetsDir); err != nil {
				return validation.Fail(core.ErrAssetsMissing(a.cfg.AssetsDir, err.Error()))
			}
			src = assets.Dir(a.cfg.AssetsDir)
			return validation.Pass("%s", a.cfg.AssetsDir)
		}).
		AddDependent("Asset Manifest", func(context.Context) validation.CheckResult {
			var err error
			if manifest, err = assets.LoadManifest(src); err != nil {
				return validation.Fail(err)
			}
			return validation.Pass("%d styles: %s", len(manifest.Styles), strings.Join(manifest.Names(), ", "))
		}).
		AddDependent("Asset Files", func(context.Context) validation.CheckResult {
			statuses, err := assets.Verify(src, manifest)
			if err != nil {
				return validation.Fail(err)
			}
			var total, pinned int64
			for _, st := range statuses {
				total += int64(st.Size)
				if st.Pinned() {
					pinned++
				}
			}
			return validation.Pass("%d files, %s, %d pinned", len(statuses), core.FormatBytes(total), pinned)
		}).
		AddDependent("Style Models", func(ctx context.Context) validation.CheckResult {
			stylenet.CreateGPUInstance()
			defer stylenet.DestroyGPUInstance()

			rt := styletransfer.NewRuntime(a.styleCfg, a.logger.Named(logging.ModuleName))
			defer rt.Close()
			if err := rt.InitContext(ctx, src); err != nil {
				return validation.Fail(err)
			}
			reg := rt.Registry()
			ready := reg.ReadyCount()
			switch {
			case ready == 0:
				return validation.Fail(fmt.Errorf("no style could be loaded"))
			case ready < styletransfer.NumStyles:
				var failed []string
				for _, st := range reg.Status() {
					if !st.Ready {
						failed = append(failed, st.Name)
					}
				}
				return validation.Warn("%d/%d ready, failed: %s", ready, styletransfer.NumStyles, strings.Join(failed, ", "))
			}
			return validation.Pass("%d/%d ready", ready, styletransfer.NumStyles)
		}).
		Add("GPU", func(context.Context) validation.CheckResult {
			if stylenet.BackendName() != "ncnn" {
				return validation.Skip("%s", stylenet.BackendInfo())
			}
			stylenet.CreateGPUInstance()
			defer stylenet.DestroyGPUInstance()
			if n := stylenet.GPUCount(); n > 0 {
				return validation.Pass("%d compute device(s)", n)
			}
			return validation.Warn("no compute device, transfers run on the CPU")
		}).
		Add("History Database", func(context.Context) validation.CheckResult {
			if !a.cfg.HistoryEnabled() {
				return validation.Skip("STYLE_DB_PATH is empty")
			}
			if err := validation.CheckWritable(a.cfg.DBPath); err != nil {
				return validation.Fail(err)
			}
			info, err := validation.GetDiskSpace(a.cfg.DBPath)
			if err != nil {
				return validation.Warn("%s, free space unknown: %v", a.cfg.DBPath, err)
			}
			if info.Free < validation.MinHistoryFreeBytes {
				return validation.Warn("%s, only %s free", a.cfg.DBPath, info.FreeFormatted)
			}
			return validation.Pass("%s, %s free", a.cfg.DBPath, info.FreeFormatted)
		})
}
