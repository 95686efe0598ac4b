package cmds

import (
	"fmt"
	"strconv"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newThreadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thread",
		Short: "Manage the threads of a channel",
	}
	cmd.AddCommand(
		newThreadListCommand(),
		newThreadAddCommand(),
		newThreadRemoveCommand(),
		newThreadSelectCommand(),
		newThreadRenameCommand(),
		newThreadPromptCommand(),
		newThreadFilesCommand(),
	)
	return cmd
}

func newThreadListCommand() *cobra.Command {
	var channelID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the threads of a channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *App) error {
				c, err := app.Store.Channel(app.channelID(channelID))
				if err != nil {
					return err
				}
				current := app.Store.CurrentThread().ID
				for _, t := range c.Threads {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\t%s\t%d messages\n",
						marker(t.ID == current), t.ID, t.Name, len(t.History))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&channelID, "channel", "", "Channel id (default: current channel)")
	return cmd
}

func newThreadAddCommand() *cobra.Command {
	var channelID string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a thread and select it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *App) error {
				t, err := app.Store.AddThread(app.channelID(channelID))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", t.ID, t.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&channelID, "channel", "", "Channel id (default: current channel)")
	return cmd
}

func newThreadRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <thread-id>",
		Short: "Delete a thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *App) error {
				return app.Store.DeleteThread(args[0])
			})
		},
	}
}

func newThreadSelectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "select <thread-id>",
		Short: "Make a thread current",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *App) error {
				return app.Store.SelectThread(args[0])
			})
		},
	}
}

func newThreadRenameCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <thread-id> <name>",
		Short: "Rename a thread",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *App) error {
				return app.Store.RenameThread(args[0], args[1])
			})
		},
	}
}

func newThreadPromptCommand() *cobra.Command {
	var threadID string
	var text string
	var enabled bool
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Show or set the system prompt of a thread",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *App) error {
				id := app.threadID(threadID)
				_, t, err := app.Store.Thread(id)
				if err != nil {
					return err
				}
				prompt := t.SystemPrompt
				if cmd.Flags().Changed("text") {
					prompt.Text = text
				}
				if cmd.Flags().Changed("enabled") {
					prompt.Enabled = enabled
				}
				if prompt != t.SystemPrompt {
					if err := app.Store.UpdateThreadSystemPrompt(id, prompt); err != nil {
						return err
					}
				}
				return printYAML(cmd.OutOrStdout(), prompt)
			})
		},
	}
	cmd.Flags().StringVar(&threadID, "thread", "", "Thread id (default: current thread)")
	cmd.Flags().StringVar(&text, "text", "", "Prompt text")
	cmd.Flags().BoolVar(&enabled, "enabled", false, "Enable the prompt")
	return cmd
}

func newThreadFilesCommand() *cobra.Command {
	var threadID string
	cmd := &cobra.Command{
		Use:   "files <on|off>",
		Short: "Attach the channel's shared files to this thread's requests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := parseOnOff(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(app *App) error {
				return app.Store.SetThreadUseChannelFiles(app.threadID(threadID), enabled)
			})
		},
	}
	cmd.Flags().StringVar(&threadID, "thread", "", "Thread id (default: current thread)")
	return cmd
}

func parseOnOff(s string) (bool, error) {
	switch s {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, errors.Wrapf(&conversation.ValidationError{Field: "value", Reason: "expected on or off"}, "invalid value %q", s)
	}
	return b, nil
}
