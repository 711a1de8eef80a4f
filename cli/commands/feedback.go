package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/petal-labs/dify/dify"
)

func (a *App) newFeedbackCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Rate messages and review feedback left on the app",
	}

	cmd.AddCommand(a.newFeedbackRateCommand())
	cmd.AddCommand(a.newFeedbackListCommand())
	return cmd
}

func (a *App) newFeedbackRateCommand() *cobra.Command {
	var content string

	cmd := &cobra.Command{
		Use:   "rate <message-id> <like|dislike|clear>",
		Short: "Rate a message, or clear a previous rating",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rating := args[1]
			if rating == "clear" {
				rating = ""
			}
			return a.withClient(cmd, func(ctx context.Context, c *dify.Client) error {
				if err := c.Messages.Feedback(ctx, args[0], rating, a.user, content); err != nil {
					return fail(err)
				}
				if a.jsonOutput {
					return a.printJSON(dify.Result{Result: "success"})
				}
				fmt.Fprintf(a.stdout, "Rated message %s: %s\n", args[0], args[1])
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&content, "content", "", "optional feedback text")
	return cmd
}

func (a *App) newFeedbackListCommand() *cobra.Command {
	var page, limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List feedback left on the app's messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, func(ctx context.Context, c *dify.Client) error {
				list, err := c.Feedbacks.List(ctx, page, limit)
				if err != nil {
					return fail(err)
				}
				if a.jsonOutput {
					return a.printJSON(list)
				}
				for _, fb := range list.Data {
					fmt.Fprintf(a.stdout, "%s\t%s\t%s\n", fb.MessageID, fb.Rating, fb.Content)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", 20, "page size")
	return cmd
}
