package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"nyscmate/internal/app/checklist"
	"nyscmate/internal/app/desk"
	"nyscmate/internal/pkg/errs"
)

// The checklist lives in the local store, so none of these commands need a session.
func newChecklistCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checklist",
		Short: "Show and edit your camp packing checklist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return env.run(cmd, offline, func(_ context.Context, app *desk.App) error {
				printChecklist(env.Out, app.Checklist.Items())
				return nil
			})
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "toggle <n>",
			Short: "Check or uncheck item n",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				i, err := itemIndex(args[0])
				if err != nil {
					return err
				}
				return env.run(cmd, offline, func(_ context.Context, app *desk.App) error {
					checked, err := app.Checklist.Toggle(i)
					if err != nil {
						return checklistErr(err, args[0])
					}
					state := "unchecked"
					if checked {
						state = "checked"
					}
					fmt.Fprintf(env.Out, "Item %d %s. Progress: %d%%\n", i+1, state, app.Checklist.Progress())
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "add <text>",
			Short: "Add an item",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return env.run(cmd, offline, func(_ context.Context, app *desk.App) error {
					if err := app.Checklist.Add(strings.Join(args, " ")); err != nil {
						return checklistErr(err, "")
					}
					printChecklist(env.Out, app.Checklist.Items())
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "remove <n>",
			Short: "Remove item n",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				i, err := itemIndex(args[0])
				if err != nil {
					return err
				}
				return env.run(cmd, offline, func(_ context.Context, app *desk.App) error {
					if err := app.Checklist.Remove(i); err != nil {
						return checklistErr(err, args[0])
					}
					printChecklist(env.Out, app.Checklist.Items())
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Restore the default list",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return env.run(cmd, offline, func(_ context.Context, app *desk.App) error {
					if err := app.Checklist.Reset(); err != nil {
						return err
					}
					printChecklist(env.Out, app.Checklist.Items())
					return nil
				})
			},
		},
	)
	return cmd
}

// itemIndex turns a 1-based item number into a list index.
func itemIndex(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return 0, errs.NewError(errs.ErrInvalidParams).WithMessage("Item number must be a positive integer")
	}
	return n - 1, nil
}

func checklistErr(err error, arg string) error {
	switch {
	case errs.IsCode(err, errs.ErrNotFound):
		return errs.NewError(errs.ErrNotFound).WithMessage("No item " + arg)
	case errs.IsCode(err, errs.ErrInvalidParams):
		return errs.NewError(errs.ErrInvalidParams).WithMessage("Item text is required")
	}
	return err
}

func printChecklist(w io.Writer, items []checklist.Item) {
	for i, it := range items {
		mark := " "
		if it.Checked {
			mark = "x"
		}
		fmt.Fprintf(w, "%2d. [%s] %s\n", i+1, mark, it.Text)
	}
	fmt.Fprintf(w, "Progress: %d%%\n", checklist.Progress(items))
}
