package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"topicdrift/internal"
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Project classified transcripts into a manifold and measure topic drift",
	Long: `Embed classified transcripts, reduce them to a low-dimensional coordinate
space, bucket by publication date, and report centroid displacement between
consecutive buckets normalized by the corpus dispersion.

Embeddings are cached per (video, model), so repeated runs only pay for new
videos. The reduction is deterministic for a fixed seed, recorded in the
snapshot.`,
	Example: `  # Drift report across all topics, monthly buckets
  topicdrift analyze

  # One topic with quarterly buckets
  topicdrift analyze --topic economics --bucket quarterly

  # Save the raw snapshot alongside the rendered report
  topicdrift analyze --topic politics --json snapshot.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Validate(false); err != nil {
			return err
		}

		bucket, _ := cmd.Flags().GetString("bucket")
		granularity, err := internal.ParseGranularity(bucket)
		if err != nil {
			return err
		}
		if dims, _ := cmd.Flags().GetInt("dims"); dims > 0 {
			config.ReduceDims = dims
		}
		if cmd.Flags().Changed("seed") {
			seed, _ := cmd.Flags().GetInt64("seed")
			config.ReduceSeed = seed
		}
		if minBucket, _ := cmd.Flags().GetInt("min-bucket"); minBucket > 0 {
			config.MinBucketSize = minBucket
		}

		app, err := internal.NewApp(config)
		if err != nil {
			return err
		}
		defer app.Close()

		labels, _ := cmd.Flags().GetStringSlice("topic")
		snapshot, err := app.AnalyzeDrift(cmd.Context(), labels, granularity)
		if err != nil {
			return err
		}

		if jsonPath, _ := cmd.Flags().GetString("json"); jsonPath != "" {
			data, err := json.MarshalIndent(snapshot, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding snapshot: %w", err)
			}
			if err := os.WriteFile(jsonPath, data, 0644); err != nil {
				return fmt.Errorf("writing snapshot: %w", err)
			}
			fmt.Printf("Snapshot written to %s\n", jsonPath)
		}

		if config.Quiet {
			fmt.Print(internal.RenderSnapshotTables(snapshot))
			return nil
		}

		rendered, err := internal.RenderMarkdown(internal.SnapshotMarkdown(snapshot))
		if err != nil {
			// Fall back to plain tables if the terminal renderer fails.
			fmt.Print(internal.RenderSnapshotTables(snapshot))
			return nil
		}
		fmt.Println(rendered)
		fmt.Print(internal.RenderSnapshotTables(snapshot))
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringSliceP("topic", "t", nil, "Topic label(s) to filter by (repeatable; empty for all)")
	analyzeCmd.Flags().StringP("bucket", "b", "monthly", "Time bucket granularity (monthly or quarterly)")
	analyzeCmd.Flags().Int("dims", 0, "Reduced dimensionality (1-3)")
	analyzeCmd.Flags().Int64("seed", 0, "Random seed for the reduction")
	analyzeCmd.Flags().Int("min-bucket", 0, "Minimum videos per bucket for defined drift")
	analyzeCmd.Flags().String("json", "", "Write the raw snapshot JSON to a file")
	rootCmd.AddCommand(analyzeCmd)
}
