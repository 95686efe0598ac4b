package cmds

import (
	"fmt"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/inference/engine"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newModelsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Inspect the model catalogue",
	}

	refresh := &cobra.Command{
		Use:   "refresh",
		Short: "Fetch the list of available models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *App) error {
				lister, ok := app.Engine.(engine.ModelLister)
				if !ok {
					return errors.New("the configured engine cannot list models")
				}
				models, err := lister.ListModels(cmd.Context())
				if err != nil {
					return err
				}
				infos := make([]conversation.ModelInfo, 0, len(models))
				for _, m := range models {
					infos = append(infos, conversation.ModelInfo{
						ID:               m.ID,
						DisplayName:      m.DisplayName,
						Description:      m.Description,
						Version:          m.Version,
						InputTokenLimit:  m.InputTokenLimit,
						OutputTokenLimit: m.OutputTokenLimit,
					})
				}
				app.Store.SetAvailableModels(infos)
				fmt.Fprintf(cmd.OutOrStdout(), "%d models available\n", len(infos))
				return nil
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the cached models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *App) error {
				s := app.Store.Snapshot()
				if !s.ModelsLoaded {
					fmt.Fprintln(cmd.OutOrStdout(), "no models loaded, run `parley models refresh`")
					return nil
				}
				selected := app.Store.CurrentChannel().Config.Model()
				for _, m := range s.AvailableModels {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\t%s\tin=%d out=%d\n",
						marker(m.ID == selected), m.ID, m.DisplayName, m.InputTokenLimit, m.OutputTokenLimit)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(refresh, list)
	return cmd
}
