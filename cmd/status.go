package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"topicdrift/internal"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline state and category distribution",
	Example: `  topicdrift status`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := internal.NewApp(config)
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := cmd.Context()
		statusCounts, err := app.Store().StatusCounts(ctx)
		if err != nil {
			return err
		}
		fmt.Println("Videos by status:")
		fmt.Print(internal.RenderStatusCounts(statusCounts))

		counts, err := app.Store().CategoryCounts(ctx)
		if err != nil {
			return err
		}
		if len(counts) == 0 {
			fmt.Println("\nNo classified videos yet.")
			return nil
		}
		fmt.Println("\nClassified videos by category:")
		fmt.Print(internal.RenderCategoryCounts(counts))

		monthly, err := app.Store().CategoryCountsByMonth(ctx)
		if err != nil {
			return err
		}
		if len(monthly) > 0 {
			fmt.Println("\nCategories by month:")
			fmt.Print(internal.RenderCategoryCountsByMonth(monthly))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
