// Package main 是应用程序的入口点。
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sql-smart-go",
		Short: "Natural-language questions over a SQL database",
		Long: `sql-smart-go seeds an LLM agent's memory with the database schema at startup
and serves natural-language questions over HTTP and WebSocket.

Examples:
  sql-smart-go
  sql-smart-go serve --config ./configs/config.yaml
  sql-smart-go schema`,
		SilenceUsage: true,
		// 不带子命令时等同于 serve
		RunE: runServe,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "./configs/config.yaml", "配置文件路径（文件不存在时只使用环境变量）")
	root.AddCommand(newServeCmd(), newSchemaCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
