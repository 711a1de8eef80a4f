package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/petal-labs/dify/dify"
)

// appSummary gathers everything the app command reports.
type appSummary struct {
	Info       *dify.AppInfo       `json:"info"`
	Parameters *dify.AppParameters `json:"parameters"`
	Meta       *dify.AppMeta       `json:"meta"`
	Site       *dify.AppSite       `json:"site,omitempty"`
}

func (a *App) newAppCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "app",
		Short: "Show the app behind the API key",
		Long: `Show the name, mode, input form and WebApp settings of the app the API key
belongs to. The four endpoints are fetched concurrently.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, func(ctx context.Context, c *dify.Client) error {
				summary, err := fetchAppSummary(ctx, c)
				if err != nil {
					return fail(err)
				}
				if a.jsonOutput {
					return a.printJSON(summary)
				}
				a.printAppSummary(summary)
				return nil
			})
		},
	}
}

func fetchAppSummary(ctx context.Context, c *dify.Client) (*appSummary, error) {
	var s appSummary
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		s.Info, err = c.App.Info(ctx)
		return err
	})
	g.Go(func() (err error) {
		s.Parameters, err = c.App.Parameters(ctx)
		return err
	})
	g.Go(func() (err error) {
		s.Meta, err = c.App.Meta(ctx)
		return err
	})
	g.Go(func() (err error) {
		s.Site, err = c.App.Site(ctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (a *App) printAppSummary(s *appSummary) {
	fmt.Fprintf(a.stdout, "%s\n", s.Info.Name)
	if s.Info.Description != "" {
		fmt.Fprintf(a.stdout, "  description: %s\n", s.Info.Description)
	}
	if s.Info.Mode != "" {
		fmt.Fprintf(a.stdout, "  mode:        %s\n", s.Info.Mode)
	}
	if len(s.Info.Tags) > 0 {
		fmt.Fprintf(a.stdout, "  tags:        %s\n", strings.Join(s.Info.Tags, ", "))
	}
	if s.Site != nil && s.Site.Title != "" {
		fmt.Fprintf(a.stdout, "  site title:  %s\n", s.Site.Title)
	}
	fmt.Fprintf(a.stdout, "  tool icons:  %d\n", len(s.Meta.ToolIcons))
	if s.Parameters.OpeningStatement != "" {
		fmt.Fprintf(a.stdout, "\n%s\n", s.Parameters.OpeningStatement)
	}
	for _, q := range s.Parameters.SuggestedQuestions {
		fmt.Fprintf(a.stdout, "- %s\n", q)
	}
}
