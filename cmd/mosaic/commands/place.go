package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/tilegrid/mosaic/internal/config"
	"github.com/tilegrid/mosaic/internal/consumer"
	"github.com/tilegrid/mosaic/internal/printer"
)

var (
	placeCanvasID string
	placeActorID  string
	placeName     string
)

var placeCmd = &cobra.Command{
	Use:   "place <x> <y> <color>",
	Short: "Queue a pixel placement",
	Long: `Queue a pixel placement onto the canvas. The placement travels through
the write queue and is committed by a running mosaicd, subject to the
actor's cooldown. Color is a hex RGB value like ff0000 or #ff0000.`,
	Args: cobra.ExactArgs(3),
	RunE: runPlace,
}

func init() {
	placeCmd.Flags().StringVar(&placeCanvasID, "canvas", config.DefaultCanvasID, "target canvas")
	placeCmd.Flags().StringVar(&placeActorID, "actor", "", "actor ID placing the pixel (required)")
	placeCmd.Flags().StringVar(&placeName, "name", "", "display name for the actor")
	placeCmd.MarkFlagRequired("actor")
	rootCmd.AddCommand(placeCmd)
}

func runPlace(cmd *cobra.Command, args []string) error {
	x, err := strconv.Atoi(args[0])
	if err != nil {
		return printer.Error("Invalid x coordinate", "x must be an integer, got '"+args[0]+"'", nil)
	}
	y, err := strconv.Atoi(args[1])
	if err != nil {
		return printer.Error("Invalid y coordinate", "y must be an integer, got '"+args[1]+"'", nil)
	}
	colorValue, err := parseHexColor(args[2])
	if err != nil {
		return printer.Error("Invalid color", err.Error(),
			[]string{"Use a hex RGB value like ff0000 or #00ff00"})
	}

	client, err := boardFromEnv(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	payload, err := consumer.EncodeEnvelope(&consumer.Envelope{
		RequestID:   uuid.NewString(),
		CanvasID:    placeCanvasID,
		ActorID:     placeActorID,
		DisplayName: placeName,
		X:           &x,
		Y:           &y,
		Color:       &colorValue,
	})
	if err != nil {
		return printer.Error("Failed to encode placement", err.Error(), nil)
	}

	messageID, err := client.EnqueueWrite(cmd.Context(), payload)
	if err != nil {
		return printer.Error("Failed to queue placement", err.Error(), nil)
	}

	printer.Success("Queued %s at (%d,%d) on %s (message %s)\n",
		printer.Swatch(colorValue), x, y, placeCanvasID, messageID)
	return nil
}

// parseHexColor parses "ff0000", "#ff0000" or "0xff0000" into an RGB int.
func parseHexColor(s string) (int, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(strings.ToLower(s), "#"), "0x")
	value, err := strconv.ParseInt(trimmed, 16, 32)
	if err != nil || value < 0 || value > 0xFFFFFF {
		return 0, fmt.Errorf("'%s' is not a 24-bit hex RGB value", s)
	}
	return int(value), nil
}
