package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/petal-labs/dify/dify"
)

func (a *App) newUploadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <path>",
		Short: "Upload a file for use in a chat message",
		Long: `Upload a local file. The printed id can be attached to a message with
dify chat --file-id.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return exitWithCode(ExitValidation, err)
			}
			defer f.Close()

			return a.withClient(cmd, func(ctx context.Context, c *dify.Client) error {
				file, err := c.Files.Upload(ctx, filepath.Base(args[0]), f, a.user)
				if err != nil {
					return fail(err)
				}
				if a.jsonOutput {
					return a.printJSON(file)
				}
				fmt.Fprintf(a.stdout, "%s\t%s\t%d bytes\n", file.ID, file.Name, file.Size)
				return nil
			})
		},
	}
}
