package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tilegrid/mosaic/internal/config"
	"github.com/tilegrid/mosaic/internal/printer"
)

var watchCanvasID string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the live delta feed of a canvas",
	Long: `Subscribe to a canvas's delta feed and print each committed placement
as it happens. The feed is at-most-once: a gap in the sequence numbers is
reported so viewers know to re-fetch a snapshot. Ctrl-C to stop.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchCanvasID, "canvas", config.DefaultCanvasID, "canvas to watch")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	client, err := boardFromEnv(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	sub, err := client.SubscribeDeltas(cmd.Context(), watchCanvasID, 0)
	if err != nil {
		return printer.Error("Failed to subscribe", err.Error(), nil)
	}
	defer sub.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	printer.Step("Watching canvas %s (Ctrl-C to stop)\n", watchCanvasID)

	var lastSeq int64
	for {
		select {
		case <-sigCh:
			printer.Info("\nStopped.\n")
			return nil

		case err, ok := <-sub.Errors():
			if !ok {
				continue
			}
			printer.Warning("feed error: %v\n", err)

		case delta, ok := <-sub.Events():
			if !ok {
				return printer.Error("Feed closed",
					"The delta subscription ended unexpectedly.",
					[]string{"Check Redis connectivity and re-run watch"})
			}
			if lastSeq > 0 && delta.Seq > lastSeq+1 {
				printer.Warning("missed %d event(s), snapshot re-fetch recommended\n",
					delta.Seq-lastSeq-1)
			}
			if delta.Seq > lastSeq {
				lastSeq = delta.Seq
			}
			printer.Placement(delta.X, delta.Y, delta.Color, delta.ActorID)
		}
	}
}
