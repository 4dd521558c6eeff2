package internal

import (
	"fmt"

	"github.com/spf13/cobra"
)

// AddClassifyFlags adds flags shared by commands that call the LLM
func AddClassifyFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("model", "m", "", "Model to use for classification")
	cmd.Flags().IntP("workers", "w", 0, "Number of concurrent workers")
	cmd.Flags().StringP("prompt", "p", "", "Custom classification prompt (string or file path)")
}

// HandleClassifyFlags applies classification flag overrides to the config
func HandleClassifyFlags(cmd *cobra.Command, config *Config) error {
	if model, _ := cmd.Flags().GetString("model"); model != "" {
		config.ClassifyModel = model
	}
	if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
		config.Workers = workers
	}
	if prompt, _ := cmd.Flags().GetString("prompt"); prompt != "" {
		config.Prompt = prompt
	}
	return nil
}

// HandleVerboseFlag processes the --verbose flag to update config
func HandleVerboseFlag(cmd *cobra.Command, config *Config) error {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return fmt.Errorf("failed to get verbose flag: %w", err)
	}
	config.Verbose = verbose

	quiet, err := cmd.Flags().GetBool("quiet")
	if err == nil {
		config.Quiet = quiet
	}
	return nil
}
