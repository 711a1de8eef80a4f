package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petal-labs/dify/dify"
)

type chatOptions struct {
	conversation string
	inputs       map[string]string
	fileIDs      []string
	stream       bool
}

func (a *App) newChatCommand() *cobra.Command {
	var opts chatOptions

	cmd := &cobra.Command{
		Use:   "chat <query>",
		Short: "Send a message to a chat app",
		Long: `Send a message to a chat, agent or chatflow app.

Pass --conversation to continue an existing conversation; the id of a new
one is printed with --verbose or included in --json output.

Examples:
  dify chat "What can you do?"
  dify chat "And then?" --conversation 45701982-8118-4bc5-8e9b-64562b4555f2
  dify chat "Summarize" --input topic=go --stream
  dify chat "Hello" --json --select answer`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runChat(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVar(&opts.conversation, "conversation", "", "conversation id to continue")
	cmd.Flags().StringToStringVar(&opts.inputs, "input", nil, "app input variable as key=value (repeatable)")
	cmd.Flags().StringSliceVar(&opts.fileIDs, "file-id", nil, "id of an uploaded file to attach (repeatable)")
	cmd.Flags().BoolVar(&opts.stream, "stream", false, "print the answer as it is generated")

	return cmd
}

func (a *App) runChat(cmd *cobra.Command, query string, opts chatOptions) error {
	c, err := a.client()
	if err != nil {
		return err
	}
	defer c.Close()

	req := &dify.ChatRequest{
		Query:          query,
		User:           a.user,
		ConversationID: opts.conversation,
	}
	if len(opts.inputs) > 0 {
		req.Inputs = make(map[string]any, len(opts.inputs))
		for k, v := range opts.inputs {
			req.Inputs[k] = v
		}
	}
	for _, id := range opts.fileIDs {
		req.Files = append(req.Files, dify.InputFile{
			Type:           "image",
			TransferMethod: "local_file",
			UploadFileID:   id,
		})
	}

	ctx := cmd.Context()

	if !opts.stream {
		resp, err := c.Chat.Send(ctx, req)
		if err != nil {
			return fail(err)
		}
		if a.jsonOutput {
			return a.printJSON(resp)
		}
		fmt.Fprintln(a.stdout, resp.Answer)
		a.logUsage(resp.ConversationID, resp.Metadata)
		return nil
	}

	stream, err := c.Chat.Stream(ctx, req)
	if err != nil {
		return fail(err)
	}
	defer stream.Close()

	if a.jsonOutput {
		for ev, err := range stream.All() {
			if err != nil {
				return fail(err)
			}
			if err := a.printJSONLine(ev); err != nil {
				return err
			}
			if err := ev.Err(); err != nil {
				return fail(err)
			}
		}
		return nil
	}

	var (
		conversationID string
		metadata       *dify.Metadata
		printed        bool
	)
	for stream.Next() {
		ev := stream.Current()
		if ev.ConversationID != "" {
			conversationID = ev.ConversationID
		}
		switch ev.Event {
		case dify.EventMessage, dify.EventAgentMessage:
			fmt.Fprint(a.stdout, ev.Answer)
			printed = true
		case dify.EventMessageReplace:
			if printed {
				fmt.Fprintln(a.stdout)
			}
			fmt.Fprint(a.stdout, ev.Answer)
			printed = true
		case dify.EventAgentThought:
			if ev.Tool != "" {
				a.logger.WithField("tool", ev.Tool).Debug("agent used a tool")
			}
		case dify.EventMessageEnd:
			metadata = ev.Metadata
		case dify.EventError:
			if printed {
				fmt.Fprintln(a.stdout)
			}
			return fail(ev.Err())
		}
	}
	if printed {
		fmt.Fprintln(a.stdout)
	}
	if err := stream.Err(); err != nil {
		return fail(err)
	}
	if !printed && metadata == nil {
		return exitWithCode(ExitAPI, errors.New("stream ended without an answer"))
	}

	a.logUsage(conversationID, metadata)
	return nil
}

func (a *App) logUsage(conversationID string, md *dify.Metadata) {
	if !a.verbose {
		return
	}
	if conversationID != "" {
		fmt.Fprintf(a.stderr, "Conversation: %s\n", conversationID)
	}
	if md != nil && md.Usage != nil {
		fmt.Fprintf(a.stderr, "Usage: %d prompt + %d completion = %d total tokens\n",
			md.Usage.PromptTokens,
			md.Usage.CompletionTokens,
			md.Usage.TotalTokens)
	}
}
