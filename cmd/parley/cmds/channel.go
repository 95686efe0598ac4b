package cmds

import (
	"fmt"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/spf13/cobra"
)

func newChannelCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channel",
		Short: "Manage channels",
	}
	cmd.AddCommand(
		newChannelListCommand(),
		newChannelAddCommand(),
		newChannelRemoveCommand(),
		newChannelSelectCommand(),
		newChannelRenameCommand(),
		newChannelConfigCommand(),
	)
	return cmd
}

func newChannelListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List channels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *App) error {
				current := app.Store.CurrentChannel().ID
				for _, c := range app.Store.Channels() {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\t%s\t%d threads\tmodel=%s\n",
						marker(c.ID == current), c.ID, c.Name, len(c.Threads), c.Config.Model())
				}
				return nil
			})
		},
	}
}

func newChannelAddCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add",
		Short: "Create a channel and select it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *App) error {
				c := app.Store.AddChannel()
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", c.ID, c.Name)
				return nil
			})
		},
	}
}

func newChannelRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <channel-id>",
		Short: "Delete a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *App) error {
				return app.Store.DeleteChannel(args[0])
			})
		},
	}
}

func newChannelSelectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "select <channel-id>",
		Short: "Make a channel current",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *App) error {
				return app.Store.SelectChannel(args[0])
			})
		},
	}
}

func newChannelRenameCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <channel-id> <name>",
		Short: "Rename a channel",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *App) error {
				return app.Store.RenameChannel(args[0], args[1])
			})
		},
	}
}

func newChannelConfigCommand() *cobra.Command {
	var channelID string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the configuration of a channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *App) error {
				id := app.channelID(channelID)
				if anyConfigFlagChanged(cmd) {
					var applyErr error
					err := app.Store.UpdateChannelConfig(id, func(cfg *conversation.ChannelConfig) {
						applyErr = applyConfigFlags(cmd, cfg)
					})
					if applyErr != nil {
						return applyErr
					}
					if err != nil {
						return err
					}
				}
				c, err := app.Store.Channel(id)
				if err != nil {
					return err
				}
				return printYAML(cmd.OutOrStdout(), c.Config)
			})
		},
	}
	cmd.Flags().StringVar(&channelID, "channel", "", "Channel id (default: current channel)")
	addConfigFlags(cmd)
	return cmd
}
