package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/petal-labs/dify/dify"
)

func (a *App) newMessagesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "messages",
		Aliases: []string{"msg"},
		Short:   "Read the message history of a conversation",
	}

	cmd.AddCommand(a.newMessagesListCommand())
	cmd.AddCommand(a.newMessagesSuggestedCommand())
	return cmd
}

func (a *App) newMessagesListCommand() *cobra.Command {
	var p dify.ListMessagesParams

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List messages of a conversation, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, func(ctx context.Context, c *dify.Client) error {
				p.User = a.user
				list, err := c.Messages.List(ctx, p)
				if err != nil {
					return fail(err)
				}
				if a.jsonOutput {
					return a.printJSON(list)
				}

				for _, m := range list.Data {
					fmt.Fprintf(a.stdout, "[%s] %s\n", formatUnix(m.CreatedAt), m.ID)
					fmt.Fprintf(a.stdout, "> %s\n", m.Query)
					fmt.Fprintln(a.stdout, m.Answer)
					if m.Feedback != nil && m.Feedback.Rating != "" {
						fmt.Fprintf(a.stdout, "(rated %s)\n", m.Feedback.Rating)
					}
					fmt.Fprintln(a.stdout)
				}
				if list.HasMore && len(list.Data) > 0 {
					fmt.Fprintf(a.stderr, "Older messages: --first-id %s\n", list.Data[0].ID)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&p.ConversationID, "conversation", "", "conversation id (required)")
	cmd.Flags().StringVar(&p.FirstID, "first-id", "", "id of the first message of the current page")
	cmd.Flags().IntVar(&p.Limit, "limit", 20, "page size")
	_ = cmd.MarkFlagRequired("conversation")
	return cmd
}

func (a *App) newMessagesSuggestedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "suggested <message-id>",
		Short: "Show follow-up questions proposed for a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, func(ctx context.Context, c *dify.Client) error {
				sq, err := c.Messages.Suggested(ctx, args[0], a.user)
				if err != nil {
					return fail(err)
				}
				if a.jsonOutput {
					return a.printJSON(sq)
				}
				for _, q := range sq.Data {
					fmt.Fprintf(a.stdout, "- %s\n", q)
				}
				return nil
			})
		},
	}
}
