package cmds

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/generation"
	"github.com/go-go-golems/parley/pkg/inference/engine"
	"github.com/go-go-golems/parley/pkg/transcript"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newSendCommand() *cobra.Command {
	var threadID string
	var files []string
	cmd := &cobra.Command{
		Use:   "send [text...]",
		Short: "Send a message to the current thread and print the reply",
		RunE: func(cmd *cobra.Command, args []string) error {
			attachments := make([]conversation.FileData, 0, len(files))
			for _, path := range files {
				f, err := readAttachment(path)
				if err != nil {
					return err
				}
				attachments = append(attachments, f)
			}
			text := strings.Join(args, " ")
			return withApp(cmd.Context(), func(app *App) error {
				id := app.threadID(threadID)
				return app.runGeneration(cmd.Context(), func(o *generation.Orchestrator, _ *generation.Navigator) (*generation.Generation, error) {
					return o.Submit(cmd.Context(), id, text, attachments)
				})
			})
		},
	}
	cmd.Flags().StringVar(&threadID, "thread", "", "Thread id (default: current thread)")
	cmd.Flags().StringArrayVar(&files, "file", nil, "Attach a file (repeatable)")
	return cmd
}

func readAttachment(path string) (conversation.FileData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return conversation.FileData{}, errors.Wrapf(err, "could not read %s", path)
	}
	return conversation.FileData{
		Name:     filepath.Base(path),
		MimeType: detectMimeType(path, data),
		Data:     data,
	}, nil
}

// detectMimeType sniffs the content and falls back to the file extension when
// the content is not recognised beyond plain text or binary.
func detectMimeType(path string, data []byte) string {
	detected := mimetype.Detect(data)
	if !detected.Is("application/octet-stream") && !detected.Is("text/plain") {
		return baseMediaType(detected.String())
	}
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return baseMediaType(t)
	}
	return baseMediaType(detected.String())
}

// baseMediaType drops parameters such as charset.
func baseMediaType(t string) string {
	mt, _, err := mime.ParseMediaType(t)
	if err != nil {
		return t
	}
	return mt
}

func newRetryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "retry <message-id>",
		Short: "Regenerate the reply to a user message, or add a version to a model message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *App) error {
				return app.runGeneration(cmd.Context(), func(_ *generation.Orchestrator, n *generation.Navigator) (*generation.Generation, error) {
					return n.RetryMessage(cmd.Context(), args[0])
				})
			})
		},
	}
}

func newSwitchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "switch <message-id> <index>",
		Short: "Activate another version of a model message, dropping the messages after it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return errors.Wrapf(err, "invalid index %q", args[1])
			}
			return withApp(cmd.Context(), func(app *App) error {
				n := generation.NewNavigator(app.orchestrator())
				return n.SwitchVersion(args[0], index)
			})
		},
	}
}

func newEditCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <message-id> <text>",
		Short: "Replace the text of a message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *App) error {
				return app.Store.UpdateMessagePrimaryText(args[0], strings.Join(args[1:], " "))
			})
		},
	}
}

func newRemoveMessageCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rm-message <message-id>",
		Short: "Delete a single message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *App) error {
				return app.Store.DeleteMessage(args[0])
			})
		},
	}
}

func newShowCommand() *cobra.Command {
	var threadID string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the history of a thread",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *App) error {
				c, t, err := app.Store.Thread(app.threadID(threadID))
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "# %s / %s\n\n", c.Name, t.Name)
				for idx, m := range t.History {
					if err := printMessage(w, idx, m); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&threadID, "thread", "", "Thread id (default: current thread)")
	return cmd
}

type compiledRequest struct {
	Options    engine.Options         `json:"options"`
	Transcript *transcript.Transcript `json:"transcript"`
}

func newTranscriptCommand() *cobra.Command {
	var threadID string
	cmd := &cobra.Command{
		Use:   "transcript",
		Short: "Print the transcript the next request would send",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *App) error {
				return printTranscript(cmd, app, app.threadID(threadID))
			})
		},
	}
	cmd.Flags().StringVar(&threadID, "thread", "", "Thread id (default: current thread)")
	return cmd
}

func printTranscript(cmd *cobra.Command, app *App, threadID string) error {
	c, t, err := app.Store.Thread(threadID)
	if err != nil {
		return err
	}
	return printYAML(cmd.OutOrStdout(), compiledRequest{
		Options:    engine.OptionsFromConfig(c.Config, app.Settings.DefaultModel),
		Transcript: transcript.Compile(c, t),
	})
}
