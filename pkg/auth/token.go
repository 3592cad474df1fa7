// Package auth captures bot and game server credentials from a terminal.
package auth

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tinyland-inc/gamelink/pkg/config"
)

// Services a credential can be stored for.
const (
	ServiceDiscord = "discord"
	ServiceGame    = "game"
)

var ErrUnknownService = errors.New("unknown service")

type Credential struct {
	Service string
	Token   string
}

// LoginPasteToken prompts on w and reads one token line from r.
func LoginPasteToken(service string, r io.Reader, w io.Writer) (*Credential, error) {
	name, ok := serviceDisplayName(service)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownService, service)
	}
	fmt.Fprintf(w, "Paste your %s:\n", name)
	fmt.Fprint(w, "> ")

	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading token: %w", err)
		}
		return nil, errors.New("no input received")
	}

	token := strings.TrimSpace(scanner.Text())
	if service == ServiceDiscord {
		token = strings.TrimSpace(strings.TrimPrefix(token, "Bot "))
	}
	if token == "" {
		return nil, errors.New("token cannot be empty")
	}
	return &Credential{Service: service, Token: token}, nil
}

// Apply writes the credential into the matching config section.
func (c *Credential) Apply(cfg *config.Config) {
	switch c.Service {
	case ServiceDiscord:
		cfg.Discord.Token = c.Token
	case ServiceGame:
		cfg.Game.Token = c.Token
	}
}

// Mask shows only the last four characters of a token.
func Mask(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", 8) + token[len(token)-4:]
}

func serviceDisplayName(service string) (string, bool) {
	switch service {
	case ServiceDiscord:
		return "Discord bot token (discord.com/developers/applications)", true
	case ServiceGame:
		return "game server bridge token", true
	default:
		return "", false
	}
}
