package console

import (
	"github.com/spf13/cobra"
)

func NewConsoleCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Chat into the game server from the terminal",
		Long: `Connects to the game server and injects chat lines, printing chat seen
in the game. Useful for checking the relay end to end.`,
		Args: cobra.NoArgs,
		Example: `  gamelink console
  gamelink console --channel Trade --echo`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return consoleCmd(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.channel, "channel", "c", "General", "Game chat channel to write to")
	cmd.Flags().StringVar(&opts.author, "as", "", "Author name (default: the configured relay name)")
	cmd.Flags().BoolVar(&opts.echo, "echo", false, "Append the echo marker so the relay forwards the line to Discord")
	cmd.Flags().BoolVarP(&opts.debug, "debug", "d", false, "Enable debug logging")

	return cmd
}
