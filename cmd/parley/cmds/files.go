package cmds

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFilesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Manage the files shared by every thread of a channel",
	}
	var channelID string
	cmd.PersistentFlags().StringVar(&channelID, "channel", "", "Channel id (default: current channel)")

	add := &cobra.Command{
		Use:   "add <path>...",
		Short: "Share files with a channel",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *App) error {
				id := app.channelID(channelID)
				for _, path := range args {
					f, err := readAttachment(path)
					if err != nil {
						return err
					}
					sf, err := app.Store.AddSharedFile(id, f.Name, f.MimeType, f.Data)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%d\n", sf.ID, sf.Name, sf.Type, sf.Size)
				}
				return nil
			})
		},
	}

	rm := &cobra.Command{
		Use:   "rm <file-id>",
		Short: "Remove a shared file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *App) error {
				return app.Store.RemoveSharedFile(app.channelID(channelID), args[0])
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List shared files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *App) error {
				c, err := app.Store.Channel(app.channelID(channelID))
				if err != nil {
					return err
				}
				for _, f := range c.SharedFiles {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%d\t%s\n",
						f.ID, f.Name, f.Type, f.Size, f.UploadDate.Format("2006-01-02 15:04:05"))
				}
				return nil
			})
		},
	}

	cmd.AddCommand(add, rm, list)
	return cmd
}
