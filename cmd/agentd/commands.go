package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/smallnest/agentscaffold/app"
	"github.com/smallnest/agentscaffold/config"
	"github.com/smallnest/agentscaffold/log"
	"github.com/smallnest/agentscaffold/rag"
	"github.com/smallnest/agentscaffold/tool"
)

func loadConfig() (*config.Config, error) {
	return config.Load(envFile)
}

func serveCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			level, err := log.ParseLevel(cfg.LogLevel)
			if err != nil {
				return err
			}
			logger := log.NewGologLoggerWithLevel("agentd", level)
			log.SetDefaultLogger(logger)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.Warn("close: %v", err)
				}
			}()

			logger.Info("llm provider %s, checkpoints %s, streaming %t, persistence %t",
				cfg.LLMProvider, cfg.MemoryBackend, cfg.EnableStreaming, cfg.EnableMemoryPersistence)
			return a.Run(ctx)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (overrides PORT)")
	return cmd
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			printTable(cmd.OutOrStdout(), "agentd configuration", cfg.Redacted())
			if err := cfg.Validate(); err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), errorStyle.Render("invalid: ")+err.Error())
				return fmt.Errorf("configuration is invalid")
			}
			return nil
		},
	}
}

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the builtin tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			kb := rag.NewKnowledgeBase(rag.NewHashEmbedder(0), rag.Options{})
			defs, err := tool.Builtins(tool.BuiltinOptions{BraveAPIKey: cfg.BraveAPIKey, Knowledge: kb})
			if err != nil {
				return err
			}
			rows := make([][2]string, 0, len(defs))
			for _, d := range defs {
				rows = append(rows, [2]string{d.Name, d.Description})
			}
			printTable(cmd.OutOrStdout(), "builtin tools", rows)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "agentd %s (%s %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
