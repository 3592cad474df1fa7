package auth

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/gamelink/cmd/gamelink/internal"
	"github.com/tinyland-inc/gamelink/pkg/auth"
	"github.com/tinyland-inc/gamelink/pkg/config"
)

func NewAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "auth <discord|game>",
		Short:     "Store a Discord bot token or game server token in the config",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{auth.ServiceDiscord, auth.ServiceGame},
		Example: `  gamelink auth discord
  gamelink auth game --config ./config.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return authCmd(args[0], cmd.InOrStdin(), cmd.OutOrStdout(), internal.GetConfigPath())
		},
	}
	return cmd
}

func authCmd(service string, in io.Reader, out io.Writer, path string) error {
	cred, err := auth.LoginPasteToken(service, in, out)
	if err != nil {
		return err
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	cred.Apply(cfg)
	if err := config.SaveConfig(path, cfg); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}
	fmt.Fprintf(out, "\n✓ %s token %s saved to %s\n", service, auth.Mask(cred.Token), path)
	return nil
}
