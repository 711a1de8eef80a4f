package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/petal-labs/dify/dify"
)

func (a *App) newConversationsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "List, rename and delete conversations of the current user",
	}

	cmd.AddCommand(a.newConversationsListCommand())
	cmd.AddCommand(a.newConversationsDeleteCommand())
	cmd.AddCommand(a.newConversationsRenameCommand())
	return cmd
}

func (a *App) newConversationsListCommand() *cobra.Command {
	var (
		p      dify.ListConversationsParams
		pinned bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List conversations, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, func(ctx context.Context, c *dify.Client) error {
				p.User = a.user
				if cmd.Flags().Changed("pinned") {
					p.Pinned = &pinned
				}
				list, err := c.Conversations.List(ctx, p)
				if err != nil {
					return fail(err)
				}
				if a.jsonOutput {
					return a.printJSON(list)
				}

				w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tUPDATED")
				for _, conv := range list.Data {
					fmt.Fprintf(w, "%s\t%s\t%s\n", conv.ID, conv.Name, formatUnix(conv.UpdatedAt))
				}
				if err := w.Flush(); err != nil {
					return err
				}
				if list.HasMore && len(list.Data) > 0 {
					fmt.Fprintf(a.stderr, "More results: --last-id %s\n", list.Data[len(list.Data)-1].ID)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&p.LastID, "last-id", "", "id of the last conversation of the previous page")
	cmd.Flags().IntVar(&p.Limit, "limit", 20, "page size (1-100)")
	cmd.Flags().StringVar(&p.SortBy, "sort-by", "", "created_at, -created_at, updated_at or -updated_at")
	cmd.Flags().BoolVar(&pinned, "pinned", false, "only pinned conversations (--pinned=false for unpinned only)")
	return cmd
}

func (a *App) newConversationsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <conversation-id>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, func(ctx context.Context, c *dify.Client) error {
				if err := c.Conversations.Delete(ctx, args[0], a.user); err != nil {
					return fail(err)
				}
				if a.jsonOutput {
					return a.printJSON(dify.Result{Result: "success"})
				}
				fmt.Fprintf(a.stdout, "Deleted conversation %s\n", args[0])
				return nil
			})
		},
	}
}

func (a *App) newConversationsRenameCommand() *cobra.Command {
	var auto bool

	cmd := &cobra.Command{
		Use:   "rename <conversation-id> [name]",
		Short: "Rename a conversation",
		Long: `Rename a conversation. With --auto the service generates the name and
no name argument is needed.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &dify.RenameConversationRequest{
				AutoGenerate: auto,
				User:         a.user,
			}
			if len(args) == 2 {
				req.Name = args[1]
			}
			return a.withClient(cmd, func(ctx context.Context, c *dify.Client) error {
				conv, err := c.Conversations.Rename(ctx, args[0], req)
				if err != nil {
					return fail(err)
				}
				if a.jsonOutput {
					return a.printJSON(conv)
				}
				fmt.Fprintf(a.stdout, "Renamed %s to %q\n", conv.ID, conv.Name)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&auto, "auto", false, "let the service generate the name")
	return cmd
}

func formatUnix(sec int64) string {
	if sec <= 0 {
		return "-"
	}
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}
