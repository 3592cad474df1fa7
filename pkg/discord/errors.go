package discord

import (
	"errors"
	"net"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/tinyland-inc/gamelink/pkg/remote"
)

// classify wraps a discordgo error with the matching remote sentinel.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) {
		if rest.Message != nil {
			switch rest.Message.Code {
			case discordgo.ErrCodeUnknownMessage, discordgo.ErrCodeUnknownChannel, discordgo.ErrCodeUnknownGuild:
				return remote.Wrap(remote.ErrNotFound, err)
			case discordgo.ErrCodeMissingAccess, discordgo.ErrCodeMissingPermissions, discordgo.ErrCodeCannotSendMessagesToThisUser:
				return remote.Wrap(remote.ErrPermission, err)
			}
		}
		if rest.Response != nil {
			switch rest.Response.StatusCode {
			case http.StatusNotFound:
				return remote.Wrap(remote.ErrNotFound, err)
			case http.StatusForbidden, http.StatusUnauthorized:
				return remote.Wrap(remote.ErrPermission, err)
			}
		}
		return remote.Wrap(remote.ErrTransient, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return remote.Wrap(remote.ErrTransient, err)
	}
	if errors.Is(err, discordgo.ErrWSNotFound) {
		return remote.Wrap(remote.ErrNotConnected, err)
	}
	return remote.Wrap(remote.ErrTransient, err)
}
