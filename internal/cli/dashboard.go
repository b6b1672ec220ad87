package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"nyscmate/internal/app/desk"
	"nyscmate/internal/app/feed"
	"nyscmate/internal/app/router"
	"nyscmate/internal/pkg/errs"
)

// navigateTo moves to view and fails if a gate sent the user elsewhere.
func navigateTo(app *desk.App, view router.View) error {
	d := app.Navigate(view)
	if d.View == view {
		return nil
	}
	if d.Denied != nil {
		return d.Denied
	}
	return errs.NewError(errs.ErrRouterDenied, view)
}

func newNavigateCmd(env *Env) *cobra.Command {
	names := make([]string, len(router.Views))
	for i, v := range router.Views {
		names[i] = string(v)
	}

	return &cobra.Command{
		Use:       "navigate <view>",
		Short:     "Show which view a navigation request lands on",
		Long:      "Resolve a navigation request against the current session. Views: " + strings.Join(names, ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: names,
		RunE: func(cmd *cobra.Command, args []string) error {
			view, ok := router.ParseView(args[0])
			if !ok {
				return errs.NewError(errs.ErrInvalidParams).WithMessage("Unknown view " + args[0])
			}
			return env.run(cmd, online, func(_ context.Context, app *desk.App) error {
				d := app.Navigate(view)
				fmt.Fprintln(env.Out, d.String())
				if d.Denied != nil {
					fmt.Fprintln(env.Err, d.Denied.Message)
				}
				return nil
			})
		},
	}
}

func newNewsCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "news",
		Short: "Show the latest news and your camp timeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return env.run(cmd, online, func(ctx context.Context, app *desk.App) error {
				if err := requireSession(app); err != nil {
					return err
				}
				snap := refresh(ctx, app)
				printSnapshot(env.Out, snap)
				if snap.Err != nil && snap.News == nil && snap.Timeline == nil {
					return snap.Err
				}
				return nil
			})
		},
	}
}

// refresh fetches both feeds once under the authenticated scope.
func refresh(ctx context.Context, app *desk.App) feed.Snapshot {
	ctx, cancel := app.Gate.Bind(ctx)
	defer cancel()
	return app.Dashboard.Refresh(ctx)
}

func newDashboardCmd(env *Env) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Open the dashboard; with --watch keep it refreshing until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return env.run(cmd, online, func(ctx context.Context, app *desk.App) error {
				if err := requireSession(app); err != nil {
					return err
				}
				if err := navigateTo(app, router.ViewDashboard); err != nil {
					return err
				}
				if !watch {
					printSnapshot(env.Out, refresh(ctx, app))
					return nil
				}

				updates := make(chan feed.Snapshot, 1)
				stop := app.Dashboard.OnUpdate(func(s feed.Snapshot) {
					select {
					case updates <- s:
					default:
						// The printer is behind; it will catch up with a later snapshot.
					}
				})
				defer stop()

				// The poller started with the session and may have ticked already.
				if s := app.Dashboard.Snapshot(); s.Loaded {
					printSnapshot(env.Out, s)
				}
				for {
					select {
					case <-ctx.Done():
						return nil
					case <-app.Gate.Scope().Done():
						return errs.NewError(errs.ErrUnauthorized)
					case s := <-updates:
						printSnapshot(env.Out, s)
					}
				}
			})
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep polling and print every update")
	return cmd
}

func printSnapshot(w io.Writer, s feed.Snapshot) {
	fmt.Fprintf(w, "== Dashboard (%s) ==\n", s.UpdatedAt.Format(time.Kitchen))

	if t := s.Timeline; t != nil {
		stale := ""
		if s.TimelineStale {
			stale = " (stale)"
		}
		fmt.Fprintf(w, "Days to camp: %d  Registration: %s  Deployment: %s%s\n",
			t.DaysToCamp, t.RegistrationStatus, t.DeploymentState, stale)
	} else {
		fmt.Fprintln(w, "Timeline unavailable.")
	}

	switch {
	case len(s.News) > 0:
		if s.NewsStale {
			fmt.Fprintln(w, "News (stale):")
		} else {
			fmt.Fprintln(w, "News:")
		}
		for _, n := range s.News {
			fmt.Fprintf(w, "  - [%s] %s (%s)\n", n.Type, n.Title, n.Date)
		}
	case s.NewsStale:
		fmt.Fprintln(w, "News unavailable.")
	default:
		fmt.Fprintln(w, "No news yet.")
	}

	if s.Err != nil {
		fmt.Fprintf(w, "Last refresh failed: %s\n", s.Err.Message)
	}
}
