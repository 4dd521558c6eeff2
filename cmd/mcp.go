package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"topicdrift/internal"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run MCP server exposing the classification pipeline as tools",
	Long: `Run a Model Context Protocol (MCP) server that exposes pipeline functionality as tools.

The MCP server provides three tools:
- get_video_transcript: Return the stored transcript for a video
- classify_video: Classify one stored video into the taxonomy
- analyze_drift: Produce a topic drift report over classified videos

Transport options:
- stdio (default): Standard MCP transport via stdin/stdout
- http: HTTP transport on specified port (use --port to configure)`,
	Example: `  # stdio transport (e.g. for desktop AI assistants)
  topicdrift mcp

  # HTTP transport on port 8080
  topicdrift mcp --transport=http --port=8080`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		// MCP uses stdio protocol, so disable verbose logging
		config.Verbose = false
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		app, err := internal.NewApp(config)
		if err != nil {
			return err
		}
		defer app.Close()

		mcpServer := internal.NewMCPServer(app)

		if transport == "http" && !config.Quiet {
			fmt.Printf("Starting MCP server on HTTP port %d...\n", port)
		}

		// Blocks until the context is cancelled.
		return mcpServer.Start(cmd.Context(), transport, port)
	},
}

func init() {
	mcpCmd.Flags().String("transport", "stdio", "Transport protocol (stdio or http)")
	mcpCmd.Flags().Int("port", 8080, "Port for HTTP transport (only used with --transport=http)")
	rootCmd.AddCommand(mcpCmd)
}
