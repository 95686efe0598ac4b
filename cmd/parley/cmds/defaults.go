package cmds

import (
	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/spf13/cobra"
)

func newDefaultsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "defaults",
		Short: "Settings applied to new channels and threads",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *App) error {
				return printYAML(cmd.OutOrStdout(), app.Store.DefaultSettings())
			})
		},
	}

	var threadPrompt string
	var threadPromptEnabled bool
	set := &cobra.Command{
		Use:   "set",
		Short: "Change the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *App) error {
				if anyConfigFlagChanged(cmd) {
					var applyErr error
					err := app.Store.UpdateDefaultChannelSettings(func(cfg *conversation.ChannelConfig) {
						applyErr = applyConfigFlags(cmd, cfg)
					})
					if applyErr != nil {
						return applyErr
					}
					if err != nil {
						return err
					}
				}
				if cmd.Flags().Changed("thread-prompt") || cmd.Flags().Changed("thread-prompt-enabled") {
					d := app.Store.DefaultSettings().Thread
					if cmd.Flags().Changed("thread-prompt") {
						d.SystemPrompt.Text = threadPrompt
					}
					if cmd.Flags().Changed("thread-prompt-enabled") {
						d.SystemPrompt.Enabled = threadPromptEnabled
					}
					app.Store.UpdateDefaultThreadSettings(d)
				}
				return printYAML(cmd.OutOrStdout(), app.Store.DefaultSettings())
			})
		},
	}
	addConfigFlags(set)
	set.Flags().StringVar(&threadPrompt, "thread-prompt", "", "System prompt of new threads")
	set.Flags().BoolVar(&threadPromptEnabled, "thread-prompt-enabled", false, "Enable the system prompt of new threads")

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Restore the built-in defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *App) error {
				app.Store.ResetDefaultSettings()
				return nil
			})
		},
	}

	cmd.AddCommand(show, set, reset)
	return cmd
}
