package verify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/tinyland-inc/gamelink/cmd/gamelink/internal"
	"github.com/tinyland-inc/gamelink/pkg/bus"
	"github.com/tinyland-inc/gamelink/pkg/discord"
	"github.com/tinyland-inc/gamelink/pkg/links"
)

var ErrLinksFailed = errors.New("some links could not be verified")

// discardBus drops gateway events; verify only needs the session state.
type discardBus struct{}

func (discardBus) Publish(kind bus.EventKind, payload ...any) (bus.Event, error) {
	return bus.Event{Kind: kind, Payload: payload}, nil
}

func verifyCmd(ctx context.Context, out io.Writer, timeout time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := internal.LoadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if len(cfg.Links) == 0 {
		fmt.Fprintln(out, "No links configured.")
		return nil
	}

	ready := make(chan struct{}, 1)
	session, err := discord.New(cfg.Discord.Token, discardBus{}, discord.WithStateHook(func(up bool) {
		if up {
			select {
			case ready <- struct{}{}:
			default:
			}
		}
	}))
	if err != nil {
		return err
	}
	if err := session.Open(); err != nil {
		return err
	}
	defer session.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	select {
	case <-ready:
	case <-ctx.Done():
		return fmt.Errorf("waiting for discord gateway: %w", ctx.Err())
	}

	reg, err := links.NewRegistry(cfg.Links)
	if err != nil {
		return err
	}
	report := reg.Verify(ctx, session)
	printReport(out, report)
	if !report.OK() {
		return ErrLinksFailed
	}
	return nil
}

func printReport(out io.Writer, report links.Report) {
	ok := color.New(color.FgGreen).SprintFunc()
	bad := color.New(color.FgRed, color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	for _, e := range report.Entries {
		l := e.Link
		if e.OK() {
			fmt.Fprintf(out, "%s %s  %s -> #%s %s\n", ok("✓"), l.Name, l.LocalChannel, l.ChannelRef,
				dim(fmt.Sprintf("(%s, %s)", l.ChannelID, l.Direction)))
			continue
		}
		fmt.Fprintf(out, "%s %s  %s -> %s/#%s: %s\n", bad("✗"), l.Name, l.LocalChannel, l.GuildRef, l.ChannelRef, e.Problem)
	}
	fmt.Fprintf(out, "\n%d links, %d failed\n", len(report.Entries), report.Failed())
}
