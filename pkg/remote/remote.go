// Package remote defines the boundary to the external messaging platform.
//
// Workers talk to the platform only through Platform, so the Discord session
// can be swapped for a fake in tests.
package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/tinyland-inc/gamelink/pkg/render"
)

var (
	// ErrNotFound marks an edit/delete/send whose target no longer exists.
	ErrNotFound = errors.New("remote: not found")
	// ErrPermission marks a call rejected for missing capabilities.
	ErrPermission = errors.New("remote: permission denied")
	// ErrTransient marks network or server side failures.
	ErrTransient = errors.New("remote: transient failure")
	// ErrNotConnected is returned when no session is open.
	ErrNotConnected = errors.New("remote: not connected")
)

// MessageRef addresses a message previously sent by the bot.
type MessageRef struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

func (r MessageRef) IsZero() bool {
	return r.MessageID == ""
}

func (r MessageRef) String() string {
	return r.ChannelID + "/" + r.MessageID
}

type Guild struct {
	ID   string
	Name string
}

type Channel struct {
	ID      string
	GuildID string
	Name    string
}

type User struct {
	ID       string
	Username string
	Bot      bool
}

// ChatMessage is a message posted in a Discord channel.
type ChatMessage struct {
	ID         string
	GuildID    string
	ChannelID  string
	AuthorID   string
	AuthorName string
	AuthorBot  bool
	Roles      []string
	Content    string
	// Mentions maps mentioned user ids to display names.
	Mentions map[string]string
}

// Reaction is an emoji added to or removed from a message.
type Reaction struct {
	Message MessageRef
	GuildID string
	UserID  string
	Emoji   string
}

// SendOptions tunes a single send. AllowEveryone permits @everyone/@here to
// ping; user mentions are always allowed.
type SendOptions struct {
	AllowEveryone bool
}

type Platform interface {
	Send(ctx context.Context, channelID, text string, content *render.Content, opts SendOptions) (MessageRef, error)
	Edit(ctx context.Context, ref MessageRef, text string, content *render.Content) error
	Delete(ctx context.Context, ref MessageRef) error
	ResolveGuild(ctx context.Context, nameOrID string) (Guild, bool)
	ResolveChannel(ctx context.Context, guildID, nameOrID string) (Channel, bool)
	ResolveUser(ctx context.Context, guildID, userID string) (User, bool)
	SelfID() string
	SetActivity(ctx context.Context, text string) error
}

// Classify maps an error onto one of the sentinel errors. Unknown errors are
// treated as transient.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrPermission):
		return ErrPermission
	case errors.Is(err, ErrNotConnected):
		return ErrNotConnected
	default:
		return ErrTransient
	}
}

// Wrap attaches a sentinel to an underlying SDK error.
func Wrap(kind, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", kind, err)
}
