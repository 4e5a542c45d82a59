package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"narrate/pkg/config"
	"narrate/pkg/journal"
)

//nolint:gochecknoglobals // fixed palette
var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
)

func newInitCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration for --base-url",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := filepath.Join(a.dir, config.ConfigFile)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			cfg := config.Default()
			cfg.BaseURL = strings.TrimSuffix(a.baseURL, "/")
			cfg.JournalPath = config.JournalFile
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration")
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	var actionName string
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently dispatched actions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if cfg.JournalPath == "" {
				return errors.New("journal is disabled (journal_path is empty)")
			}
			if _, err := os.Stat(cfg.JournalPath); errors.Is(err, os.ErrNotExist) {
				fmt.Fprintln(cmd.OutOrStdout(), "No actions recorded yet.")
				return nil
			}

			store, err := journal.Open(cfg.JournalPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			entries, err := store.Recent(cmd.Context(), journal.Query{Action: actionName, Limit: limit})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%-20s %-22s %-14s %-6s %s", "WHEN", "ACTION", "OUTCOME", "STATUS", "MESSAGE")))
			for _, e := range entries {
				outcome := fmt.Sprintf("%-14s", e.Outcome)
				if e.Outcome == "success" {
					outcome = okStyle.Render(outcome)
				} else {
					outcome = failStyle.Render(outcome)
				}
				fmt.Fprintf(out, "%-20s %-22s %s %-6d %s\n",
					e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.Action, outcome, e.Status, e.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&actionName, "action", "", "only show this action")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries")
	return cmd
}
