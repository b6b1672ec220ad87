package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"nyscmate/internal/app/desk"
	"nyscmate/internal/app/portal"
	"nyscmate/internal/pkg/errs"
)

// portalCmd builds a leaf command that runs fn against a resolved session.
func portalCmd(env *Env, use, short string, args cobra.PositionalArgs, fn func(ctx context.Context, app *desk.App, args []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.run(cmd, online, func(ctx context.Context, app *desk.App) error {
				if err := requireSession(app); err != nil {
					return err
				}
				return fn(ctx, app, args)
			})
		},
	}
}

func newResourcesCmd(env *Env) *cobra.Command {
	list := func(ctx context.Context, app *desk.App, _ []string) error {
		res, err := app.Portal.Resources(ctx)
		if err != nil {
			return err
		}
		if len(res) == 0 {
			fmt.Fprintln(env.Out, "The resource library is empty.")
			return nil
		}
		tw := tabwriter.NewWriter(env.Out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTITLE\tCATEGORY\tURL\tADDED")
		for _, r := range res {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", r.ID, r.Title, r.Category, r.URL, r.DateAdded)
		}
		return tw.Flush()
	}

	cmd := portalCmd(env, "resources", "List the resource library", cobra.NoArgs, list)

	var draft portal.ResourceDraft
	add := portalCmd(env, "add", "Add a document to the library (officials and admins)", cobra.NoArgs,
		func(ctx context.Context, app *desk.App, _ []string) error {
			return app.Portal.AddResource(ctx, draft)
		})
	add.Flags().StringVar(&draft.Title, "title", "", "document title")
	add.Flags().StringVar(&draft.Category, "category", "", "category, e.g. Orientation")
	add.Flags().StringVar(&draft.URL, "url", "", "link to the document")

	cmd.AddCommand(add)
	return cmd
}

func newClearanceCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clearance",
		Short: "Monthly clearance",
	}

	var month, file string
	request := portalCmd(env, "request", "Request clearance for a month (corps members)", cobra.NoArgs,
		func(ctx context.Context, app *desk.App, _ []string) error {
			var letter *portal.Attachment
			if file != "" {
				a, err := portal.LoadAttachment(file)
				if err != nil {
					return err
				}
				letter = a
			}
			id, err := app.Portal.RequestClearance(ctx, month, letter)
			if err != nil {
				return err
			}
			fmt.Fprintf(env.Out, "Clearance request %d submitted for %s.\n", id, month)
			return nil
		})
	request.Flags().StringVarP(&month, "month", "m", "", "month the clearance is for, e.g. March")
	request.Flags().StringVarP(&file, "file", "f", "", "clearance letter (PDF, JPEG or PNG)")

	history := portalCmd(env, "history", "List your clearance requests", cobra.NoArgs,
		func(ctx context.Context, app *desk.App, _ []string) error {
			list, err := app.Portal.ClearanceHistory(ctx)
			if err != nil {
				return err
			}
			return printClearances(env.Out, list, "You have not requested clearance yet.")
		})

	pending := portalCmd(env, "pending", "List requests awaiting review (officials and admins)", cobra.NoArgs,
		func(ctx context.Context, app *desk.App, _ []string) error {
			list, err := app.Portal.PendingClearances(ctx)
			if err != nil {
				return err
			}
			return printClearances(env.Out, list, "No requests are awaiting review.")
		})

	cmd.AddCommand(request, history, pending,
		newReviewCmd(env, "approve", portal.StatusApproved),
		newReviewCmd(env, "reject", portal.StatusRejected))
	return cmd
}

func newReviewCmd(env *Env, verb, status string) *cobra.Command {
	var comment string
	cmd := portalCmd(env, verb+" <id>", "Mark a clearance request "+status, cobra.ExactArgs(1),
		func(ctx context.Context, app *desk.App, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id < 1 {
				return errs.NewError(errs.ErrInvalidParams).WithMessage("Clearance id must be a positive integer")
			}
			if err := app.Portal.ActOnClearance(ctx, id, portal.ClearanceAction{Status: status, Comment: comment}); err != nil {
				return err
			}
			fmt.Fprintf(env.Out, "Clearance %d %s.\n", id, status)
			return nil
		})
	cmd.Flags().StringVarP(&comment, "comment", "c", "", "comment shown to the corps member")
	return cmd
}

func printClearances(w io.Writer, list []portal.Clearance, empty string) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, empty)
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATE CODE\tMONTH\tSUBMITTED\tSTATUS\tCOMMENT")
	for _, c := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			c.ID, c.UserName, c.StateCode, c.Month, c.DateSubmitted, c.Status, c.OfficialComment)
	}
	return tw.Flush()
}

func newAdminCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Admin console",
	}

	stats := portalCmd(env, "stats", "Show user numbers", cobra.NoArgs,
		func(ctx context.Context, app *desk.App, _ []string) error {
			s, err := app.Portal.AdminStats(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(env.Out, "Total users:   %d\nCorps members: %d\nPCMs:          %d\nActive today:  %d\n",
				s.TotalUsers, s.CorpsMembers, s.PCMs, s.ActiveToday)
			return nil
		})

	users := portalCmd(env, "users", "List registered users", cobra.NoArgs,
		func(ctx context.Context, app *desk.App, _ []string) error {
			list, err := app.Portal.AdminUsers(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(env.Out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE\tSTATE CODE")
			for _, u := range list {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Role, u.StateCode)
			}
			return tw.Flush()
		})

	var post portal.NewsPost
	news := portalCmd(env, "news", "Push an update to the news feed", cobra.NoArgs,
		func(ctx context.Context, app *desk.App, _ []string) error {
			return app.Portal.PostNews(ctx, post)
		})
	news.Flags().StringVar(&post.Title, "title", "", "headline")
	news.Flags().StringVar(&post.Type, "type", "General", "category, e.g. Mobilization")
	news.Flags().StringVar(&post.Content, "content", "", "body text")
	news.Flags().StringVar(&post.URL, "url", "", "optional link")

	cmd.AddCommand(stats, users, news)
	return cmd
}
