// gamelink - Game server to Discord chat bridge
// Relays chat both ways and keeps live server displays in sync
// License: MIT
//
// Copyright (c) 2026 gamelink contributors

// gamelink bridges a game server's chat and events with a Discord guild.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/gamelink/cmd/gamelink/internal"
	"github.com/tinyland-inc/gamelink/cmd/gamelink/internal/auth"
	"github.com/tinyland-inc/gamelink/cmd/gamelink/internal/console"
	"github.com/tinyland-inc/gamelink/cmd/gamelink/internal/gateway"
	"github.com/tinyland-inc/gamelink/cmd/gamelink/internal/verify"
	"github.com/tinyland-inc/gamelink/cmd/gamelink/internal/version"
)

func NewGamelinkCommand() *cobra.Command {
	short := fmt.Sprintf("%s gamelink - game server to Discord bridge v%s\n\n", internal.Logo, internal.GetVersion())
	var configPath string

	cmd := &cobra.Command{
		Use:     "gamelink",
		Short:   short,
		Example: "gamelink gateway",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			internal.SetConfigPath(configPath)
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.gamelink/config.json)")

	cmd.AddCommand(
		gateway.NewGatewayCommand(),
		verify.NewVerifyCommand(),
		console.NewConsoleCommand(),
		auth.NewAuthCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewGamelinkCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
