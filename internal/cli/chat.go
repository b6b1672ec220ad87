package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"nyscmate/internal/app/chat"
	"nyscmate/internal/app/desk"
	"nyscmate/internal/app/router"
)

func newAskCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the assistant one question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.run(cmd, online, func(ctx context.Context, app *desk.App) error {
				turn, err := app.Ask(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				// A failed ask still has a reply; it is shown like any other.
				reply, _ := turn.Wait(ctx)
				fmt.Fprintln(env.Out, reply.Text)
				return nil
			})
		},
	}
}

const chatHelp = "Type a question and press Enter. /new starts a new chat, /quit leaves."

func newChatCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant interactively",
		Long:  "Chat with the assistant. " + chatHelp,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return env.run(cmd, online, func(ctx context.Context, app *desk.App) error {
				if err := requireSession(app); err != nil {
					return err
				}
				if err := navigateTo(app, router.ViewChat); err != nil {
					return err
				}
				return chatLoop(ctx, env, app)
			})
		},
	}
}

// chatLoop reads questions until /quit or end of input. Questions are sent as soon as they
// are typed; replies are printed in the order the questions were asked.
func chatLoop(ctx context.Context, env *Env, app *desk.App) error {
	stop := app.Chat.OnMessage(func(m chat.Message) {
		if m.Origin != chat.OriginAssistant {
			return
		}
		fmt.Fprintf(env.Out, "assistant> %s\n", m.Text)
	})
	defer stop()

	fmt.Fprintln(env.Out, chatHelp)

	var last *chat.Turn
loop:
	for {
		line, err := env.readLine("")
		if err == io.EOF {
			break loop
		}
		if err != nil {
			return err
		}

		switch q := strings.TrimSpace(line); q {
		case "":
			continue
		case "/quit", "/exit":
			break loop
		case "/new":
			app.Chat.Reset()
			last = nil
			continue
		default:
			turn, err := app.Ask(ctx, q)
			if err != nil {
				fmt.Fprintln(env.Err, "Error:", describe(err))
				if !app.Gate.State().Authenticated() {
					return err
				}
				continue
			}
			last = turn
		}
	}

	// Let the outstanding replies arrive before leaving.
	if last != nil {
		_, _ = last.Wait(ctx)
	}
	return nil
}
