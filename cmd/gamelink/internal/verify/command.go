package verify

import (
	"time"

	"github.com/spf13/cobra"
)

func NewVerifyCommand() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that every configured link resolves to a Discord channel",
		Args:  cobra.NoArgs,
		Example: `  gamelink verify
  gamelink verify --timeout 1m`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return verifyCmd(cmd.Context(), cmd.OutOrStdout(), timeout)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "How long to wait for the Discord gateway")

	return cmd
}
