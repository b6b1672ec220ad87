/*
Package cli is the nyscmate command-line client.

Each command opens the client state, resolves the stored session and performs one task. Command
output goes to stdout; notifications and logs go to stderr.
*/
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"nyscmate/internal/app/desk"
	"nyscmate/internal/app/notify"
	"nyscmate/internal/configs"
	"nyscmate/internal/pkg/errs"
	"nyscmate/internal/pkg/logx"
)

// Env is what the commands run against.
type Env struct {
	// Open assembles the client. It is called once per command; sink receives notifications.
	Open func(sink notify.Sink) (*desk.App, error)

	In  io.Reader
	Out io.Writer
	Err io.Writer

	inOnce sync.Once
	lines  *bufio.Reader
}

// DefaultEnv reads configuration on first use and talks to the configured service.
func DefaultEnv() *Env {
	return &Env{
		Open: func(sink notify.Sink) (*desk.App, error) {
			cfg, err := configs.LoadClientConfig()
			if err != nil {
				return nil, err
			}
			logx.InitGlobalLogger(logx.Options{
				Development: cfg.Environment == "development",
				Level:       cfg.LogLevel,
				Output:      os.Stderr,
			})
			return desk.Open(cfg, notify.Multi(sink, notify.NewLogSink(logx.Component("notify"))))
		},
		In:  os.Stdin,
		Out: os.Stdout,
		Err: os.Stderr,
	}
}

// Execute runs the client with the default environment and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := DefaultEnv()
	root := NewRootCommand(env)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(env.Err, "Error:", describe(err))
		return 1
	}
	return 0
}

// NewRootCommand builds the command tree.
func NewRootCommand(env *Env) *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "nyscmate",
		Short:         "NYSC assistant in your terminal",
		Long:          "Ask the NYSC assistant, follow the news and your camp timeline, and manage clearance from the command line.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if configFile != "" {
				return os.Setenv(configs.ConfigFileEnv, configFile)
			}
			return nil
		},
	}
	root.SetIn(env.In)
	root.SetOut(env.Out)
	root.SetErr(env.Err)
	root.PersistentFlags().StringVar(&configFile, "config", "", "TOML config file (overrides "+configs.ConfigFileEnv+")")

	root.AddCommand(
		newLoginCmd(env),
		newSignupCmd(env),
		newSocialLoginCmd(env),
		newLogoutCmd(env),
		newWhoamiCmd(env),
		newProfileCmd(env),
		newAskCmd(env),
		newChatCmd(env),
		newNewsCmd(env),
		newDashboardCmd(env),
		newNavigateCmd(env),
		newChecklistCmd(env),
		newResourcesCmd(env),
		newClearanceCmd(env),
		newAdminCmd(env),
	)
	return root
}

// printSink writes notifications to w, one per line.
type printSink struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *printSink) Notify(e notify.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "[%s] %s\n", e.Level, e.Message)
}

// sessionMode controls whether a command resolves the stored session before running.
type sessionMode int

const (
	offline sessionMode = iota
	online
)

// run opens the client, optionally resolves the session, and calls fn.
func (env *Env) run(cmd *cobra.Command, mode sessionMode, fn func(ctx context.Context, app *desk.App) error) error {
	app, err := env.Open(&printSink{w: env.Err})
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if mode == online {
		if err := app.Start(ctx); err != nil {
			return err
		}
	}
	return fn(ctx, app)
}

// describe renders an error for the terminal, field messages included.
func describe(err error) string {
	var ce *errs.CustomError
	if !errors.As(err, &ce) {
		return err.Error()
	}
	if len(ce.Fields) == 0 {
		return ce.Message
	}
	parts := make([]string, 0, len(ce.Fields))
	for _, f := range ce.Fields {
		if f.Field != "" {
			parts = append(parts, f.Field+": "+f.Message)
		} else {
			parts = append(parts, f.Message)
		}
	}
	return strings.Join(parts, "; ")
}

// readLine prints prompt and reads one line of input. It returns io.EOF once input is exhausted.
func (env *Env) readLine(prompt string) (string, error) {
	env.inOnce.Do(func() { env.lines = bufio.NewReader(env.In) })

	if prompt != "" {
		fmt.Fprint(env.Out, prompt)
	}
	line, err := env.lines.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
