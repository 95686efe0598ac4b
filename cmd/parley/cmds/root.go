package cmds

import "github.com/spf13/cobra"

// AddCommands registers every parley subcommand on root.
func AddCommands(root *cobra.Command) {
	root.AddCommand(
		newChannelCommand(),
		newThreadCommand(),
		newSendCommand(),
		newRetryCommand(),
		newSwitchCommand(),
		newEditCommand(),
		newRemoveMessageCommand(),
		newShowCommand(),
		newTranscriptCommand(),
		newFilesCommand(),
		newModelsCommand(),
		newSearchCommand(),
		newDefaultsCommand(),
		newUiCommand(),
		newExportCommand(),
		newImportCommand(),
	)
}
