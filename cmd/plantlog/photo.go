package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var photoCmd = &cobra.Command{
	Use:     "photo",
	Short:   "Manage plant photos",
	GroupID: "events",
}

var photoAddCmd = &cobra.Command{
	Use:   "add <plant-id> <file>",
	Short: "Upload a photo of a plant",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		plant, err := parsePlantID(args[0])
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		now := time.Now()
		takenAt := now.UTC()
		if s, _ := cmd.Flags().GetString("taken-at"); s != "" {
			if takenAt, err = parseTime(s, now); err != nil {
				return err
			}
		}
		contentType, _ := cmd.Flags().GetString("content-type")
		if contentType == "" {
			contentType = http.DetectContentType(data)
		}

		photo, ev, err := plantClient.AddPhoto(context.Background(), plant, contentType, takenAt, data)
		if err != nil {
			return fmt.Errorf("uploading photo: %w", err)
		}
		if jsonOutput {
			printJSON(map[string]any{"photo": photo, "event": ev})
			return nil
		}
		fmt.Printf("Uploaded %s\n", photo)
		return nil
	},
}

func init() {
	photoAddCmd.Flags().String("taken-at", "", "when the photo was taken (default now)")
	photoAddCmd.Flags().String("content-type", "", "image content type (default: sniffed)")
	photoCmd.AddCommand(photoAddCmd)
}
