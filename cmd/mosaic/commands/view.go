package commands

import (
	"image/png"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tilegrid/mosaic/internal/config"
	"github.com/tilegrid/mosaic/internal/printer"
	"github.com/tilegrid/mosaic/internal/reconcile"
	"github.com/tilegrid/mosaic/pkg/board"
)

var (
	viewCanvasID string
	viewOut      string
	viewRefresh  time.Duration
)

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Maintain a live reconciled image of a canvas",
	Long: `Reconcile a canvas the way a viewer client does: load the latest
snapshot as the base, follow the delta feed, and keep a composited image
current. On Ctrl-C the reconciled image is written to the output file.`,
	RunE: runView,
}

func init() {
	viewCmd.Flags().StringVar(&viewCanvasID, "canvas", config.DefaultCanvasID, "canvas to reconcile")
	viewCmd.Flags().StringVarP(&viewOut, "out", "o", "view.png", "output file written on exit")
	viewCmd.Flags().DurationVar(&viewRefresh, "refresh", time.Minute, "periodic snapshot refresh interval")
	rootCmd.AddCommand(viewCmd)
}

func runView(cmd *cobra.Command, args []string) error {
	client, err := boardFromEnv(cmd)
	if err != nil {
		return err
	}
	defer client.Close()
	ctx := cmd.Context()

	width, height := canvasSize(cmd, client)

	r := reconcile.NewReconciler(client, &reconcile.StoreSnapshotSource{Board: client},
		viewCanvasID, width, height, viewRefresh)

	runCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	printer.Step("Reconciling canvas %s at %dx%d (Ctrl-C to stop and save)\n",
		viewCanvasID, width, height)
	r.Run(runCtx)

	view := r.View()
	printer.Info("Base watermark %d, %d live delta(s) overlaid\n",
		view.Watermark(), view.OverlaySize())

	out, err := os.Create(viewOut)
	if err != nil {
		return printer.Error("Failed to create output file", err.Error(), nil)
	}
	defer out.Close()
	if err := png.Encode(out, view.Image()); err != nil {
		return printer.Error("Failed to encode image", err.Error(), nil)
	}

	printer.Success("Wrote reconciled image to %s\n", viewOut)
	return nil
}

// canvasSize reads dimensions from the stored canvas record, falling back
// to the defaults when the canvas is not materialized.
func canvasSize(cmd *cobra.Command, client *board.Client) (int, int) {
	canvas, err := client.GetCanvas(cmd.Context(), viewCanvasID)
	if err != nil {
		return config.DefaultCanvasWidth, config.DefaultCanvasHeight
	}
	return canvas.Width, canvas.Height
}
