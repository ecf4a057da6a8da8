// Package styletransfer is the style transfer runtime: a fixed table of five
// style models sharing one network architecture, a loader that fills it from
// an asset source, and a dispatcher that runs one bitmap through one model.
//
// Typical use:
//
//	reg, err := styletransfer.NewLoader(cfg, logger).Initialize(ctx, assets.Dir("./assets"))
//	if err != nil {
//		return err
//	}
//	defer reg.Close()
//
//	d := styletransfer.NewDispatcher(reg, cfg, logger)
//	if err := d.Run(ctx, bmp, styletransfer.StyleCandy, false); err != nil {
//		return err
//	}
//
// Runtime wraps the two in the boolean Init/StyleTransfer surface.
package styletransfer
