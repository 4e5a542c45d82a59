package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"narrate/pkg/config"
	"narrate/pkg/journal"
	"narrate/pkg/logx"
	"narrate/pkg/metrics"
	"narrate/pkg/notify"
	"narrate/pkg/panel"
	"narrate/pkg/poll"
	"narrate/pkg/transport"
	"narrate/pkg/validate"
	"narrate/pkg/version"
	"narrate/pkg/workflow"
)

// SessionPasswordEnv enables the encrypted session store.
const SessionPasswordEnv = "NARRATE_SESSION_PASSWORD"

// errReported marks a failure whose notice has already been printed.
var errReported = errors.New("action failed")

// app holds the flags and the wiring shared by every subcommand.
type app struct {
	dir         string
	baseURL     string
	showMetrics bool
	debug       bool
	quiet       bool
	started     time.Time

	cfg      *config.Config
	http     *transport.HTTP
	console  *notify.Console
	recorder *metrics.PrometheusRecorder
	journal  *journal.Store
	wf       *workflow.Workflow
	panel    *panel.Panel
	stdin    *bufio.Reader
	logger   *logx.Logger
}

func newApp() *app {
	return &app{dir: defaultDir(), logger: logx.NewLogger("narratectl")}
}

func defaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return config.ConfigDir
	}
	return filepath.Join(home, config.ConfigDir)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "narratectl",
		Short:         "Command-line client for the NARRATE cataloguing panel",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.started = time.Now()
			if a.quiet {
				logx.SetOutput(io.Discard)
			} else {
				logx.SetOutput(cmd.ErrOrStderr())
			}
			if a.debug {
				logx.SetDebug(true)
			}
		},
	}
	root.PersistentFlags().StringVar(&a.dir, "dir", a.dir, "configuration directory")
	root.PersistentFlags().StringVar(&a.baseURL, "base-url", "", "backend base URL (overrides config)")
	root.PersistentFlags().BoolVar(&a.showMetrics, "metrics", false, "print Prometheus metrics after the command")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")
	root.PersistentFlags().BoolVarP(&a.quiet, "quiet", "q", false, "hold log output unless the command fails")

	root.AddCommand(
		newInitCmd(a),
		newSignInCmd(a),
		newSignOutCmd(a),
		newRegisterCmd(a),
		newActivateCmd(a),
		newForgotPasswordCmd(a),
		newResetPasswordCmd(a),
		newUpdatePasswordCmd(a),
		newUpdateProfileCmd(a),
		newTreasuresCmd(a),
		newMediaCmd(a),
		newLogsCmd(a),
		newHistoryCmd(a),
	)
	return root
}

// loadConfig reads the config file, falling back to defaults when absent.
func (a *app) loadConfig() (*config.Config, error) {
	path := filepath.Join(a.dir, config.ConfigFile)
	cfg := config.FromEnv(a.dir)
	if _, err := os.Stat(path); err == nil {
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if a.baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(a.baseURL, "/")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration (run 'narratectl init --base-url ...'): %w", err)
	}
	return cfg, nil
}

// connect wires transport, workflow and panel for cmd. Callers must defer close.
func (a *app) connect(cmd *cobra.Command) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.http, err = transport.NewHTTP(cfg.BaseURL, transport.WithTimeout(cfg.RequestTimeout()))
	if err != nil {
		return err
	}
	a.restoreSession()

	if cfg.JournalPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.JournalPath), 0755); err != nil {
			return fmt.Errorf("failed to create journal directory: %w", err)
		}
		a.journal, err = journal.Open(cfg.JournalPath)
		if err != nil {
			return err
		}
	}

	var forms validate.FormSet
	if cfg.FormsPath != "" {
		forms, err = validate.LoadForms(cfg.FormsPath)
		if err != nil {
			return err
		}
	}

	a.console = notify.NewConsole(cmd.OutOrStdout())
	a.recorder = metrics.NewPrometheusRecorder()

	opts := []workflow.Option{
		workflow.WithRecorder(a.recorder),
		workflow.WithSuccessDismiss(cfg.SuccessDismiss()),
		workflow.WithNavigateDelay(cfg.NavigateDelay()),
	}
	if a.journal != nil {
		opts = append(opts, workflow.WithJournal(a.journal))
	}
	a.wf = workflow.New(a.http, a.console, a.console, opts...)

	poller := poll.NewPoller(a.http, a.console, a.recorder, poll.Config{
		Interval:           cfg.PollInterval(),
		MaxNetworkFailures: cfg.Poll.MaxNetworkFailures,
		SuccessDismiss:     cfg.SuccessDismiss(),
	})
	a.panel = panel.New(a.wf, poller, panel.WithForms(forms), panel.WithSignInDelay(cfg.SignInDelay()))
	return nil
}

// close persists the session and releases resources.
func (a *app) close(cmd *cobra.Command) {
	if a.panel != nil && a.panel.Poller() != nil {
		a.panel.Poller().Stop()
	}
	if a.http != nil {
		a.saveSession()
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.Warn("Failed to close journal: %v", err)
		}
	}
	if a.showMetrics && a.recorder != nil {
		if err := metrics.WriteText(cmd.OutOrStdout(), a.recorder.Gatherer()); err != nil {
			a.logger.Warn("Failed to write metrics: %v", err)
		}
	}
}

func (a *app) restoreSession() {
	password := os.Getenv(SessionPasswordEnv)
	if password == "" || !config.SessionExists(a.dir) {
		return
	}
	s, err := config.LoadSession(a.dir, password)
	if err != nil {
		a.logger.Warn("Ignoring saved session: %v", err)
		return
	}
	if s.BaseURL != a.cfg.BaseURL {
		a.logger.Debug("Saved session is for %s, not %s", s.BaseURL, a.cfg.BaseURL)
		return
	}
	a.http.SetCookies(s.HTTPCookies(time.Now()))
}

func (a *app) saveSession() {
	password := os.Getenv(SessionPasswordEnv)
	cookies := a.http.Cookies()
	if password == "" || len(cookies) == 0 {
		return
	}
	s := config.Session{BaseURL: a.cfg.BaseURL, Cookies: config.CookiesFrom(cookies)}
	if err := config.SaveSession(a.dir, password, s); err != nil {
		a.logger.Warn("Failed to save session: %v", err)
	}
}

// readSecret prompts for a hidden value on a terminal, or reads one line
// from piped input.
func (a *app) readSecret(cmd *cobra.Command, label string) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: ", label)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
		}
		return string(b), nil
	}
	return a.readLine(in)
}

func (a *app) readLine(in io.Reader) (string, error) {
	if a.stdin == nil {
		a.stdin = bufio.NewReader(in)
	}
	line, err := a.stdin.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// finish turns a workflow result into the command's exit status. Notices
// are already on screen, so only validation failures carry their text.
func finish(res workflow.Result, err error) error {
	if err != nil {
		return err
	}
	if res.Validation != nil {
		return res.Validation
	}
	if res.Err() != nil {
		return errReported
	}
	return nil
}

// fieldMarks reports invalid fields on stderr.
type fieldMarks struct {
	out io.Writer
}

func (f fieldMarks) ClearInvalid() {}

func (f fieldMarks) MarkInvalid(fields ...string) {
	fmt.Fprintf(f.out, "invalid: %s\n", strings.Join(fields, ", "))
}

func (f fieldMarks) Focus(field string) {
	logx.Debug(context.Background(), "ui", "focus %s", field)
}

// ui binds an action to a fresh lock and the terminal field marks.
func (a *app) ui(cmd *cobra.Command) panel.UI {
	return panel.UI{Lock: workflow.NewLock(nil), Fields: fieldMarks{out: cmd.ErrOrStderr()}}
}
