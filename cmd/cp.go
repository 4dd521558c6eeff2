package cmd

import (
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"topicdrift/internal"
)

// cpCmd copies a stored transcript to the system clipboard instead of printing to stdout.
var cpCmd = &cobra.Command{
	Use:   "cp [VIDEO_ID]",
	Short: "Copy a stored transcript to the clipboard",
	Example: `  topicdrift cp tAP1eZYEuKA`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := internal.NewApp(config)
		if err != nil {
			return err
		}
		defer app.Close()

		transcript, err := app.Store().GetTranscript(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("loading transcript for %s: %w", args[0], err)
		}

		if err := clipboard.WriteAll(transcript.Text); err != nil {
			return fmt.Errorf("copying transcript to clipboard: %w", err)
		}

		if !config.Quiet {
			fmt.Println("Transcript copied to clipboard")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(cpCmd)
}
