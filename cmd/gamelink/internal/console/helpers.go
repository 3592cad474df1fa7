package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/tinyland-inc/gamelink/cmd/gamelink/internal"
	"github.com/tinyland-inc/gamelink/pkg/bus"
	"github.com/tinyland-inc/gamelink/pkg/gameserver"
)

type options struct {
	channel string
	author  string
	echo    bool
	debug   bool
}

type action int

const (
	actSay action = iota
	actChannel
	actUsers
	actHelp
	actQuit
	actNone
)

type input struct {
	act  action
	text string
}

func parseInput(line string) input {
	line = strings.TrimSpace(line)
	if line == "" {
		return input{act: actNone}
	}
	if !strings.HasPrefix(line, "/") {
		return input{act: actSay, text: line}
	}
	cmd, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(cmd) {
	case "channel", "c":
		if arg == "" {
			return input{act: actHelp}
		}
		return input{act: actChannel, text: arg}
	case "users", "who":
		return input{act: actUsers}
	case "quit", "exit", "q":
		return input{act: actQuit}
	case "say":
		return input{act: actSay, text: arg}
	default:
		return input{act: actHelp}
	}
}

// outgoing builds the chat text actually sent for a say line.
func outgoing(text string, echo bool, marker string) string {
	if echo && marker != "" {
		return text + " " + marker
	}
	return text
}

const help = `Commands:
  /channel <name>  switch game channel
  /users           list online players
  /say <text>      send text starting with a slash
  /quit            leave`

func consoleCmd(ctx context.Context, opts options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := internal.LoadConfig()
	if err != nil {
		return err
	}
	internal.SetupLogging(cfg, opts.debug)
	if cfg.Game.WSURL == "" {
		return errors.New("game.ws_url is not configured")
	}
	author := opts.author
	if author == "" {
		author = cfg.Game.RelayName
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt(opts.channel),
		HistoryFile:     filepath.Join(os.TempDir(), ".gamelink_console_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("error initializing readline: %w", err)
	}
	defer rl.Close()

	events := bus.NewEventBus()
	events.Register(bus.DispatcherFunc(func(e bus.Event) {
		if msg, ok := bus.Find[gameserver.ChatMessage](e); ok && e.Kind.Has(bus.MessageSent) {
			fmt.Fprintf(rl.Stdout(), "[%s] %s: %s\n", msg.Channel, msg.Author, msg.Text)
		}
	}))
	defer events.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	game := gameserver.NewClient(cfg.Game, events, gameserver.WithStateHook(func(up bool) {
		state := "disconnected"
		if up {
			state = "connected"
		}
		fmt.Fprintf(rl.Stdout(), "%s game server %s\n", internal.Logo, state)
	}))
	go func() { _ = game.Run(ctx) }()

	fmt.Printf("%s Console for %s (Ctrl+C to exit, /help for commands)\n\n", internal.Logo, cfg.Game.WSURL)
	channel := opts.channel
	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				fmt.Println("\nGoodbye!")
				return nil
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		in := parseInput(line)
		switch in.act {
		case actNone:
		case actQuit:
			fmt.Println("Goodbye!")
			return nil
		case actHelp:
			fmt.Println(help)
		case actChannel:
			channel = in.text
			rl.SetPrompt(prompt(channel))
		case actUsers:
			online := game.Online()
			names := make([]string, 0, len(online))
			for _, u := range online {
				names = append(names, u.Name)
			}
			fmt.Printf("%d online: %s\n", len(names), strings.Join(names, ", "))
		case actSay:
			sendCtx, done := context.WithTimeout(ctx, 5*time.Second)
			err := game.SendChat(sendCtx, channel, author, outgoing(in.text, opts.echo, cfg.Game.EchoMarker))
			done()
			if err != nil {
				fmt.Printf("Error: %v\n", err)
			}
		}
	}
}

func prompt(channel string) string {
	return fmt.Sprintf("%s [%s]> ", internal.Logo, channel)
}
