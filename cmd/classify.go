package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"topicdrift/internal"
)

// classifyCmd represents the classify command
var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify stored transcripts into topic categories using an LLM",
	Long: `Run the classification engine over every video with a transcript awaiting a
verdict, including videos whose previous classification attempt failed.
Responses are validated against the closed taxonomy; transient failures retry
with backoff, schema violations retry with a stricter prompt. A video that
exhausts its attempts is marked classification_failed and the batch moves on.`,
	Example: `  # Classify everything pending
  topicdrift classify

  # Use a specific model and more workers
  topicdrift classify --model gpt-4o --workers 8`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := internal.HandleClassifyFlags(cmd, config); err != nil {
			return err
		}
		if err := config.Validate(false); err != nil {
			return err
		}

		app, err := internal.NewApp(config)
		if err != nil {
			return err
		}
		defer app.Close()

		summary, err := app.ClassifyPending(cmd.Context())
		if summary != nil {
			fmt.Print(internal.RenderBatchSummary(summary))
		}
		return err
	},
}

func init() {
	internal.AddClassifyFlags(classifyCmd)
	rootCmd.AddCommand(classifyCmd)
}
