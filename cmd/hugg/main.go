package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"hugg-cli/internal/app"
	"hugg-cli/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

const version = "1.0.0"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:     "hugg",
		Short:   "Hugg - terminal client for the Hugg chat backend",
		Long:    "Hugg is a terminal chat client. It keeps multiple conversations in sync with the Hugg inference backend and opens a TUI when run without arguments.",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApplication(cmd, configPath)
			if err != nil {
				return err
			}

			model := tui.New(application)
			p := tea.NewProgram(model, tea.WithAltScreen())
			application.OnChange = func() { p.Send(tui.RefreshMsg{}) }
			if _, err := p.Run(); err != nil {
				return err
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	root.PersistentFlags().String("backend", "", "backend base URL (overrides config)")
	root.PersistentFlags().String("token", "", "bearer token (overrides config)")
	root.PersistentFlags().String("user", "", "user id (overrides config)")

	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "List chat sessions without opening the TUI",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApplication(cmd, configPath)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), application.Config.Timeout())
			defer cancel()

			if err := application.SessionSync.LoadInitial(ctx); err != nil {
				return err
			}
			printSessions(os.Stdout, application.Sessions.Sessions())
			return nil
		},
	}
	root.AddCommand(sessionsCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApplication(cmd *cobra.Command, configPath string) (*app.Application, error) {
	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if v, _ := cmd.Flags().GetString("backend"); v != "" {
		cfg.BackendURL = v
	}
	if v, _ := cmd.Flags().GetString("token"); v != "" {
		cfg.APIToken = v
	}
	if v, _ := cmd.Flags().GetString("user"); v != "" {
		cfg.UserID = v
	}
	return app.NewApplication(cfg), nil
}

func printSessions(out *os.File, sessions []app.ChatSession) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tMESSAGES\tUPDATED")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.ID, s.Title, s.MessageCount, s.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	w.Flush()
}
