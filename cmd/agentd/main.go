// Command agentd serves the agent scaffold REST API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	envFile string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "agentd",
		Short: "Conversational agent server built on langgraphgo",
		Long: `agentd hosts configurable LLM agents behind a REST API.

Agents run on ReAct, RAG, supervisor or human-in-the-loop state graphs.
Settings come from the environment and an optional .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to an optional .env file")

	rootCmd.AddCommand(serveCmd(), configCmd(), toolsCmd(), versionCmd())
	return rootCmd
}
