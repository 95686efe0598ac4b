package cmds

import (
	"fmt"
	"io"
	"os"

	"github.com/go-go-golems/parley/pkg/persistence"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tcnksm/go-input"
)

func newExportCommand() *cobra.Command {
	var format string
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the whole state to a file or stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := persistence.FormatForPath(output)
			if cmd.Flags().Changed("format") || output == "" {
				var err error
				f, err = persistence.ParseFormat(format)
				if err != nil {
					return err
				}
			}
			return withApp(cmd.Context(), func(app *App) error {
				b, err := persistence.Encode(app.Store.Snapshot(), f)
				if err != nil {
					return err
				}
				if output == "" {
					_, err = cmd.OutOrStdout().Write(b)
					return err
				}
				if err := os.WriteFile(output, b, 0o600); err != nil {
					return errors.Wrapf(err, "could not write %s", output)
				}
				log.Info().Str("path", output).Str("format", string(f)).Msg("exported state")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "Output format (json, yaml)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

// confirm asks a yes/no question on the terminal.
var confirm = func(in io.Reader, out io.Writer, query string) (bool, error) {
	ui := &input.UI{Writer: out, Reader: in}
	answer, err := ui.Ask(query, &input.Options{
		Default:  "n",
		Required: true,
		Loop:     true,
		ValidateFunc: func(answer string) error {
			switch answer {
			case "y", "Y", "n", "N":
				return nil
			default:
				return fmt.Errorf("please enter 'y' or 'n'")
			}
		},
	})
	if err != nil {
		return false, err
	}
	return answer == "y" || answer == "Y", nil
}

func newImportCommand() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "import <path>",
		Short: "Replace the whole state with an exported file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			b, err := os.ReadFile(path)
			if err != nil {
				return errors.Wrapf(err, "could not read %s", path)
			}
			state, err := persistence.Decode(b, persistence.FormatForPath(path))
			if err != nil {
				return errors.Wrapf(err, "could not import %s", path)
			}

			if !yes {
				if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
					return errors.New("refusing to replace the state without confirmation, pass --yes")
				}
				ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(),
					fmt.Sprintf("Replace all channels and threads with the %d channel(s) from %s? [y/n]", len(state.Channels), path))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "import cancelled")
					return nil
				}
			}

			return withApp(cmd.Context(), func(app *App) error {
				app.Store.Import(state)
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d channel(s)\n", len(state.Channels))
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}
