package cmds

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSearchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "search <term>",
		Short: "Search every thread for a term",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *App) error {
				hits := app.Store.Search(strings.Join(args, " "))
				for _, h := range hits {
					fmt.Fprintf(cmd.OutOrStdout(), "%s / %s\t%s\t%s\n", h.ChannelName, h.ThreadName, h.MessageID, snippet(h.HitText, 80))
				}
				if len(hits) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no matches")
				}
				return nil
			})
		},
	}
}

func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
