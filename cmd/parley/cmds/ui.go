package cmds

import (
	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newUiCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Icon and background settings",
	}

	var channelID, threadID string
	var background, userIcon, modelIcon string
	var override bool
	set := &cobra.Command{
		Use:   "set",
		Short: "Set the background image, or the icons of a channel or thread",
		Long: "Without --channel or --thread only --background applies. With --channel the icons " +
			"become the channel's. With --thread they become the thread's, and --override " +
			"decides whether the thread uses them instead of the channel's.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			return withApp(cmd.Context(), func(app *App) error {
				if f.Changed("background") {
					s := app.Store.Snapshot().GlobalUiSettings
					s.BackgroundImage = optional(background)
					app.Store.UpdateGlobalUiSettings(s)
				}
				iconsChanged := f.Changed("user-icon") || f.Changed("model-icon")
				switch {
				case threadID != "":
					_, t, err := app.Store.Thread(threadID)
					if err != nil {
						return err
					}
					if iconsChanged {
						if err := app.Store.UpdateThreadUiSettings(threadID, mergeIcons(cmd, t.UiSettings, userIcon, modelIcon)); err != nil {
							return err
						}
					}
					if f.Changed("override") {
						return app.Store.SetThreadIconOverride(threadID, override)
					}
				case channelID != "":
					c, err := app.Store.Channel(channelID)
					if err != nil {
						return err
					}
					if iconsChanged {
						return app.Store.UpdateChannelUiSettings(channelID, mergeIcons(cmd, c.UiSettings, userIcon, modelIcon))
					}
				case iconsChanged || f.Changed("override"):
					return errors.New("icons need --channel or --thread")
				}
				return nil
			})
		},
	}
	set.Flags().StringVar(&channelID, "channel", "", "Channel whose icons to set")
	set.Flags().StringVar(&threadID, "thread", "", "Thread whose icons to set")
	set.Flags().StringVar(&background, "background", "", "Background image, empty to clear")
	set.Flags().StringVar(&userIcon, "user-icon", "", "User icon, empty to clear")
	set.Flags().StringVar(&modelIcon, "model-icon", "", "Model icon, empty to clear")
	set.Flags().BoolVar(&override, "override", false, "Use the thread's icons instead of the channel's")

	cmd.AddCommand(set)
	return cmd
}

func mergeIcons(cmd *cobra.Command, icons conversation.IconSettings, userIcon string, modelIcon string) conversation.IconSettings {
	if cmd.Flags().Changed("user-icon") {
		icons.UserIcon = optional(userIcon)
	}
	if cmd.Flags().Changed("model-icon") {
		icons.ModelIcon = optional(modelIcon)
	}
	return icons
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
