package commands

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/petal-labs/dify/dify"
)

func (a *App) newAnnotationsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "annotations",
		Aliases: []string{"ann"},
		Short:   "Manage annotations and annotation replies",
	}

	cmd.AddCommand(a.newAnnotationsListCommand())
	cmd.AddCommand(a.newAnnotationsReplyCommand())
	return cmd
}

func (a *App) newAnnotationsListCommand() *cobra.Command {
	var p dify.ListAnnotationsParams

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List annotations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, func(ctx context.Context, c *dify.Client) error {
				list, err := c.Annotations.List(ctx, p)
				if err != nil {
					return fail(err)
				}
				if a.jsonOutput {
					return a.printJSON(list)
				}

				w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tHITS\tQUESTION")
				for _, ann := range list.Data {
					fmt.Fprintf(w, "%s\t%d\t%s\n", ann.ID, ann.HitCount, ann.Question)
				}
				if err := w.Flush(); err != nil {
					return err
				}
				if list.HasMore {
					fmt.Fprintf(a.stderr, "Page %d of %d annotations: --page %d for more\n", list.Page, list.Total, list.Page+1)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&p.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&p.Limit, "limit", 20, "page size")
	cmd.Flags().StringVar(&p.Keyword, "keyword", "", "filter by keyword")
	return cmd
}

func (a *App) newAnnotationsReplyCommand() *cobra.Command {
	var (
		settings dify.AnnotationReplySettings
		wait     bool
	)

	cmd := &cobra.Command{
		Use:   "reply <enable|disable>",
		Short: "Enable or disable annotation replies",
		Long: `Start the job that enables or disables annotation replies. Enabling needs
the embedding provider and model used to match questions against
annotations. With --wait the command polls until the job finishes.

Example:
  dify annotations reply enable --provider openai --model text-embedding-3-small --threshold 0.9 --wait`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			action := args[0]
			return a.withClient(cmd, func(ctx context.Context, c *dify.Client) error {
				job, err := c.Annotations.SetReply(ctx, action, settings)
				if err != nil {
					return fail(err)
				}
				if wait {
					job, err = a.waitReplyJob(ctx, c, action, job)
					if err != nil {
						return err
					}
				}
				if a.jsonOutput {
					return a.printJSON(job)
				}
				fmt.Fprintf(a.stdout, "Job %s: %s\n", job.JobID, job.JobStatus)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&settings.EmbeddingProviderName, "provider", "", "embedding model provider")
	cmd.Flags().StringVar(&settings.EmbeddingModelName, "model", "", "embedding model name")
	cmd.Flags().Float64Var(&settings.ScoreThreshold, "threshold", 0.9, "minimum similarity score for a reply")
	cmd.Flags().BoolVar(&wait, "wait", false, "poll until the job completes")
	return cmd
}

func (a *App) waitReplyJob(ctx context.Context, c *dify.Client, action string, job *dify.AnnotationReplyJob) (*dify.AnnotationReplyJob, error) {
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		switch job.JobStatus {
		case "completed":
			return job, nil
		case "error":
			return nil, exitWithCode(ExitAPI, fmt.Errorf("annotation reply job %s failed: %s", job.JobID, job.ErrorMsg))
		}

		a.logger.WithField("job_id", job.JobID).WithField("status", job.JobStatus).Debug("waiting for annotation reply job")

		select {
		case <-ctx.Done():
			return nil, exitWithCode(ExitNetwork, errors.Join(errors.New("stopped waiting for annotation reply job"), ctx.Err()))
		case <-ticker.C:
		}

		next, err := c.Annotations.ReplyStatus(ctx, action, job.JobID)
		if err != nil {
			return nil, fail(err)
		}
		job = next
	}
}
