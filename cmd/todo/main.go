package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"todoManager/internal/app"
	"todoManager/internal/config"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "todo",
	Short: "Todo list manager with MCP stdio server",
	Long: `Persistent todo list stored in a single YAML file (~/.todos.yaml by default).

Without a subcommand the MCP server is started on stdin/stdout.
The other subcommands work on the same file directly.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newApp загружает конфигурацию и собирает приложение
func newApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	a := app.New(cfg)
	if err := a.Init(ctx); err != nil {
		a.Shutdown()
		return nil, err
	}
	return a, nil
}

// callTool выполняет инструмент локально и печатает его текст; ошибка инструмента - ненулевой код выхода
func callTool(cmd *cobra.Command, tool string, args map[string]any) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	raw, err := json.Marshal(args)
	if err != nil {
		return err
	}

	res := a.Server().CallTool(ctx, tool, raw)
	if res.IsError {
		return fmt.Errorf("%s", res.Text())
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Text())
	return nil
}
