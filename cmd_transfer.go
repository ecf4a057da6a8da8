package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go_styletransfer/db"
	"go_styletransfer/logging"
	"go_styletransfer/pixel"
	"go_styletransfer/stylenet"
	"go_styletransfer/styletransfer"
)

func newTransferCmd(a *app) *cobra.Command {
	var (
		styleArg string
		useGPU   bool
		format   string
	)

	cmd := &cobra.Command{
		Use:   "transfer INPUT OUTPUT",
		Short: "Apply a style to an image file",
		Long: `Apply a style to an image file.

The transfer is recorded in the history database unless STYLE_DB_PATH is empty.`,
		Example: `  styletransfer transfer --style mosaic photo.jpg photo-mosaic.png
  styletransfer transfer -s 4 --gpu in.png out.jpg`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			style, err := styletransfer.ParseStyle(styleArg)
			if err != nil {
				return err
			}
			src, err := a.source()
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			bmp, inFormat, err := pixel.DecodeLimit(data, a.cfg.MaxPixels)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			stylenet.CreateGPUInstance()
			defer stylenet.DestroyGPUInstance()

			var observers []styletransfer.Observer
			if a.cfg.HistoryEnabled() {
				database, err := db.NewDatabase(a.cfg.DBPath)
				if err != nil {
					return fmt.Errorf("open history database: %w", err)
				}
				defer database.Close()
				observers = append(observers, db.NewRepository(database, nil, a.logger))
			}

			rt := styletransfer.NewRuntime(a.styleCfg, a.logger.Named(logging.ModuleName), observers...)
			defer rt.Close()
			if err := rt.InitContext(cmd.Context(), src); err != nil {
				return err
			}
			if err := rt.Run(cmd.Context(), bmp, style, useGPU); err != nil {
				return &transferError{err: err}
			}

			if format == "" {
				format = pixel.FormatFromPath(args[1])
			}
			if err := writeImage(args[1], bmp, format); err != nil {
				return err
			}

			a.logger.Info("Transfer written",
				zap.String("input", args[0]),
				zap.String("output", args[1]),
				zap.String("style", styletransfer.StyleName(style)),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) -> %s (%s) with %s, %dx%d\n",
				args[0], inFormat, args[1], format, styletransfer.StyleName(style), bmp.Width, bmp.Height)
			return nil
		},
	}

	cmd.Flags().StringVarP(&styleArg, "style", "s", "candy", "style index (0-4) or name")
	cmd.Flags().BoolVar(&useGPU, "gpu", false, "run on the GPU compute path")
	cmd.Flags().StringVarP(&format, "format", "f", "", "output format: png, jpeg, bmp or tiff (default from the output extension)")
	return cmd
}

func writeImage(path string, bmp *pixel.Bitmap, format string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := pixel.Encode(w, bmp, format); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", format, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write output: %w", err)
	}
	return f.Close()
}
