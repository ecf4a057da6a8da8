package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"go_styletransfer/logging"
	"go_styletransfer/stylenet"
	"go_styletransfer/styletransfer"
)

func newStylesCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "styles",
		Short: "Load every style slot and report its state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, err := a.source()
			if err != nil {
				return err
			}

			stylenet.CreateGPUInstance()
			defer stylenet.DestroyGPUInstance()

			rt := styletransfer.NewRuntime(a.styleCfg, a.logger.Named(logging.ModuleName))
			defer rt.Close()
			if err := rt.InitContext(cmd.Context(), src); err != nil {
				return err
			}
			reg := rt.Registry()

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"backend":   stylenet.BackendInfo(),
					"gpu_count": reg.GPUCount(),
					"ready":     reg.ReadyCount(),
					"styles":    reg.Status(),
				})
			}
			printSlots(cmd.OutOrStdout(), reg)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func printSlots(w io.Writer, reg *styletransfer.Registry) {
	header := color.New(color.FgCyan, color.Bold)
	dim := color.New(color.FgHiBlack)

	header.Fprintln(w, "Style Models")
	dim.Fprintf(w, "%s, %d GPU device(s)\n\n", stylenet.BackendInfo(), reg.GPUCount())

	for _, st := range reg.Status() {
		state := color.New(color.FgGreen).Sprint("ready ")
		if !st.Ready {
			state = color.New(color.FgRed).Sprint("failed")
		}
		fmt.Fprintf(w, "  [%d] %-14s %s  ", st.Index, st.Name, state)
		dim.Fprintf(w, "param=%d model=%d %v", st.ParamRet, st.ModelRet, st.LoadDuration.Round(time.Microsecond))
		if st.Error != "" {
			color.New(color.FgRed).Fprintf(w, "  %s", st.Error)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w)
	ready := reg.ReadyCount()
	summary := color.New(color.FgGreen, color.Bold)
	if ready < styletransfer.NumStyles {
		summary = color.New(color.FgYellow, color.Bold)
	}
	if ready == 0 {
		summary = color.New(color.FgRed, color.Bold)
	}
	summary.Fprintf(w, "%d/%d styles ready\n", ready, styletransfer.NumStyles)
}
