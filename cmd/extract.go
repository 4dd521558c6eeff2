package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"topicdrift/internal"
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Discover channel videos and fetch transcripts into the local database",
	Long: `Enumerate the configured channel's catalog, record every video, and attach
captions where the platform has them. Videos without captions are marked
transcript_missing.

Re-running is safe: known videos keep their pipeline status and no rows are
duplicated.`,
	Example: `  # Extract the configured channel
  topicdrift extract

  # Cap the catalog walk at 50 videos
  topicdrift extract --max-videos 50`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if maxVideos, _ := cmd.Flags().GetInt("max-videos"); maxVideos > 0 {
			config.MaxVideos = maxVideos
		}
		if err := config.Validate(true); err != nil {
			return err
		}

		internal.EnsureYtdlp(cmd.Context())

		app, err := internal.NewApp(config)
		if err != nil {
			return err
		}
		defer app.Close()

		fmt.Printf("Extracting videos for channel: %s\n", config.Channel)
		summary, err := app.Extract(cmd.Context())
		if summary != nil {
			fmt.Print(internal.RenderBatchSummary(summary))
		}
		return err
	},
}

func init() {
	extractCmd.Flags().Int("max-videos", 0, "Maximum number of channel videos to process")
	rootCmd.AddCommand(extractCmd)
}
