package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"os/user"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"sysconsole/internal/app"
	"sysconsole/internal/console"
	"sysconsole/internal/core"
	"sysconsole/internal/modules/resource"
	"sysconsole/internal/parse"
	"sysconsole/internal/platform"
	"sysconsole/internal/privilege"
	"sysconsole/internal/storage"
	"sysconsole/internal/table"
	"sysconsole/internal/transports/common"
)

// Factory строит приложение по пути к конфигу.
type Factory func(ctx context.Context, configPath string) (*app.App, error)

var ensurePrivileges = privilege.Ensure

// New создает корневую CLI-команду; без подкоманды открывается меню.
func New(factory Factory, version string) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "sysconsole",
		Short:         "Консоль системного администрирования",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE:       requireElevation,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMenu(cmd, factory, configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("SYSCONSOLE_CONFIG"), "путь к YAML-конфигу")

	root.AddCommand(newMenuCmd(factory, &configPath))
	root.AddCommand(newRunCmd(factory, &configPath))
	root.AddCommand(newModulesCmd())
	root.AddCommand(newLogCmd(factory, &configPath))
	root.AddCommand(newServeCmd(factory, &configPath))
	root.AddCommand(newVersionCmd(version))

	return root
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Показать версию",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", version)
		},
	}
}

func newMenuCmd(factory Factory, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:     "menu",
		Short:   "Интерактивное меню",
		Args:    cobra.NoArgs,
		PreRunE: requireElevation,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMenu(cmd, factory, *configPath)
		},
	}
}

func newRunCmd(factory Factory, configPath *string) *cobra.Command {
	var answers []string
	cmd := &cobra.Command{
		Use:     "run <module> <action> [args...]",
		Short:   "Выполнить одно действие и напечатать вывод",
		Args:    cobra.MinimumNArgs(2),
		PreRunE: requireElevation,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := factory(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			color.NoColor = color.NoColor || a.Config.Console.NoColor

			res, err := a.Service("cli").Execute(cmd.Context(), common.Request{
				Subject: currentUser(),
				Module:  args[0],
				Action:  args[1],
				Args:    args[2:],
				Answers: answers,
			})
			if res.Output != "" {
				fmt.Fprintln(cmd.OutOrStdout(), res.Output)
			}
			if err != nil {
				return fmt.Errorf("%s %s: %w", args[0], args[1], err)
			}
			if res.Response.Status == core.StatusError {
				return fmt.Errorf("%s %s: %s", args[0], args[1], res.Response.ErrorCode)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&answers, "answer", "a", nil, "ответ на запрос действия (по порядку)")
	return cmd
}

func newModulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "modules",
		Short: "Список модулей и действий",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := core.NewRegistry()
			for _, m := range app.Modules(platform.Current(), resource.New(nil)) {
				if err := r.Register(cmd.Context(), m); err != nil {
					return err
				}
			}
			printCatalog(cmd.OutOrStdout(), r.Catalog())
			return nil
		},
	}
}

func printCatalog(w io.Writer, catalog []core.ModuleInfo) {
	for _, m := range catalog {
		fmt.Fprintf(w, "%s (%s)\n", m.Name, m.Title)
		for _, a := range m.Actions {
			line := fmt.Sprintf("  %-16s %s", a.Name, a.Title)
			if len(a.Params) > 0 {
				line += " [" + strings.Join(a.Params, ", ") + "]"
			}
			if a.Destructive {
				line += " *"
			}
			fmt.Fprintln(w, line)
		}
	}
}

var logColumns = table.Spec{
	Columns: []table.Column{
		{Field: "ts", Header: "Time", Width: 20},
		{Field: "source", Header: "Source", Width: 6},
		{Field: "subject", Header: "Subject", Width: 12},
		{Field: "component", Header: "Component", Width: 12},
		{Field: "action", Header: "Action", Width: 24},
		{Field: "status", Header: "Status", Width: 9},
		{Field: "outcome", Header: "Outcome", Width: 40},
	},
	Empty: "Action log is empty.",
}

func newLogCmd(factory Factory, configPath *string) *cobra.Command {
	var (
		component string
		limit     int
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Показать журнал действий",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := factory(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.Store.QueryActions(cmd.Context(), storage.ActionQuery{Component: component, Limit: limit})
			if err != nil {
				return err
			}
			return printLog(cmd.OutOrStdout(), entries, asJSON)
		},
	}
	cmd.Flags().StringVar(&component, "component", "", "фильтр по компоненту")
	cmd.Flags().IntVar(&limit, "limit", 50, "максимум записей")
	cmd.Flags().BoolVar(&asJSON, "json", false, "вывод в JSON")
	return cmd
}

func printLog(w io.Writer, entries []storage.ActionEntry, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	records := make([]parse.Record, 0, len(entries))
	for _, e := range entries {
		records = append(records, parse.Record{
			"ts":        e.TS.Local().Format("2006-01-02 15:04:05"),
			"source":    e.Source,
			"subject":   e.Subject,
			"component": e.Component,
			"action":    e.Action,
			"status":    e.Status,
			"outcome":   e.Outcome,
		})
	}
	fmt.Fprintln(w, logColumns.Render(records))
	return nil
}

func newServeCmd(factory Factory, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Short:   "Запустить web-транспорт и планировщик",
		Args:    cobra.NoArgs,
		PreRunE: requireElevation,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := factory(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Serve(ctx)
		},
	}
}

func runMenu(cmd *cobra.Command, factory Factory, configPath string) error {
	a, err := factory(cmd.Context(), configPath)
	if err != nil {
		return err
	}
	defer a.Close()
	color.NoColor = color.NoColor || a.Config.Console.NoColor

	in, closeIn := newLineReader(a.Config.Console.HistoryFile)
	defer closeIn()

	menu := &Menu{
		Registry:   a.Registry,
		Exec:       a.Exec,
		Authorizer: a.Authorizer,
		Sink:       a.Store,
		Subject:    currentUser(),
		Out:        console.NewInteractive(cmd.OutOrStdout(), in),
	}
	return menu.Run(cmd.Context())
}

func newLineReader(historyFile string) (console.LineReader, func()) {
	rl, err := readline.NewEx(&readline.Config{
		HistoryFile:     historyFile,
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline is unavailable, falling back to plain input: %v\n", err)
		return &plainReader{sc: bufio.NewScanner(os.Stdin)}, func() {}
	}
	return rl, func() { _ = rl.Close() }
}

// plainReader построчный ввод без редактирования и истории.
type plainReader struct {
	sc *bufio.Scanner
}

func (r *plainReader) SetPrompt(prompt string) { fmt.Print(prompt) }

func (r *plainReader) Readline() (string, error) {
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.sc.Text(), nil
}

func requireElevation(cmd *cobra.Command, args []string) error {
	err := ensurePrivileges()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, privilege.ErrRelaunched):
		// Повышенная копия уже работает в отдельном окне.
		os.Exit(0)
	}
	fmt.Fprintln(cmd.ErrOrStderr(), color.RedString(privilege.Hint(os.Args)))
	return err
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "local"
}
