package commands

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/tilegrid/mosaic/internal/config"
	"github.com/tilegrid/mosaic/internal/printer"
	"github.com/tilegrid/mosaic/pkg/board"
)

var (
	statusCanvasID string
	statusActorID  string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show canvas and actor state",
	Long: `Show the state of a canvas: dimensions, version, number of placed
pixels and snapshot freshness. With --actor, also show that actor's
placement count and cooldown state.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusCanvasID, "canvas", config.DefaultCanvasID, "canvas to inspect")
	statusCmd.Flags().StringVar(&statusActorID, "actor", "", "actor to inspect")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := boardFromEnv(cmd)
	if err != nil {
		return err
	}
	defer client.Close()
	ctx := cmd.Context()

	canvas, err := client.GetCanvas(ctx, statusCanvasID)
	if err != nil {
		if board.IsNotFound(err) {
			printer.Warning("canvas %s not materialized yet (no mosaicd has run against this instance)\n", statusCanvasID)
		} else {
			return printer.Error("Failed to read canvas", err.Error(), nil)
		}
	} else {
		printer.Info("Canvas %s\n", canvas.ID)
		printer.Info("  dimensions:    %dx%d\n", canvas.Width, canvas.Height)
		printer.Info("  version:       %d\n", canvas.Version)
		printer.Info("  placed pixels: %d\n", canvas.TotalPixels)
	}

	obj, err := client.GetObject(ctx, board.LatestSnapshotPath(statusCanvasID))
	switch {
	case err == nil && obj.Meta != nil:
		age := time.Since(time.UnixMilli(obj.Meta.CreatedAtMs)).Round(time.Second)
		printer.Info("  snapshot:      %d bytes, rendered %s ago (watermark %d)\n",
			len(obj.Data), age, obj.Meta.WatermarkMs)
	case err == nil:
		printer.Info("  snapshot:      %d bytes (no metadata)\n", len(obj.Data))
	case board.IsNotFound(err):
		printer.Info("  snapshot:      none\n")
	default:
		return printer.Error("Failed to read snapshot", err.Error(), nil)
	}

	if statusActorID != "" {
		actor, err := client.GetActor(ctx, statusActorID)
		if err != nil {
			if board.IsNotFound(err) {
				printer.Warning("actor %s has never placed a pixel\n", statusActorID)
				return nil
			}
			return printer.Error("Failed to read actor", err.Error(), nil)
		}

		printer.Info("Actor %s", actor.ID)
		if actor.DisplayName != "" {
			printer.Info(" (%s)", actor.DisplayName)
		}
		printer.Info("\n  placements:  %d\n", actor.PixelCount)
		if actor.LastPlacedMs > 0 {
			printer.Info("  last placed: %s\n", time.UnixMilli(actor.LastPlacedMs).Format(time.RFC3339))
		}
	}
	return nil
}
