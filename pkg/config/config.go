package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Link directions accepted in configuration.
const (
	DirectionGameToDiscord = "game_to_discord"
	DirectionDiscordToGame = "discord_to_game"
	DirectionDuplex        = "duplex"
)

// Mention policies accepted in configuration.
const (
	MentionsForbidden = "forbidden"
	MentionsAdminOnly = "admin_only"
	MentionsAnyUser   = "any_user"
)

// Duration is a time.Duration that reads either a Go duration string ("1s")
// or a number of milliseconds from JSON and YAML.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return d.parse(s)
	}
	var ms int64
	if err := json.Unmarshal(data, &ms); err != nil {
		return fmt.Errorf("duration must be a string or milliseconds: %w", err)
	}
	*d = Duration(time.Duration(ms) * time.Millisecond)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var ms int64
	if err := node.Decode(&ms); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.parse(s)
}

// UnmarshalText lets caarlos0/env parse GAMELINK_* duration overrides.
func (d *Duration) UnmarshalText(text []byte) error {
	return d.parse(string(text))
}

func (d *Duration) parse(s string) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

type Config struct {
	Discord  DiscordConfig  `json:"discord"  yaml:"discord"`
	Game     GameConfig     `json:"game"     yaml:"game"`
	Links    []LinkConfig   `json:"links"    yaml:"links"`
	Features FeaturesConfig `json:"features" yaml:"features"`
	Timers   TimersConfig   `json:"timers"   yaml:"timers"`
	Storage  StorageConfig  `json:"storage"  yaml:"storage"`
	Gateway  GatewayConfig  `json:"gateway"  yaml:"gateway"`
	Log      LogConfig      `json:"log"      yaml:"log"`
}

type DiscordConfig struct {
	Token         string `env:"GAMELINK_DISCORD_TOKEN"          json:"token"          yaml:"token"`
	CommandPrefix string `env:"GAMELINK_DISCORD_COMMAND_PREFIX" json:"command_prefix" yaml:"command_prefix"`
	Activity      string `env:"GAMELINK_DISCORD_ACTIVITY"       json:"activity"       yaml:"activity"` // format string, %d = online players
}

type GameConfig struct {
	WSURL      string   `env:"GAMELINK_GAME_WS_URL"      json:"ws_url"      yaml:"ws_url"`
	Token      string   `env:"GAMELINK_GAME_TOKEN"       json:"token"       yaml:"token"`
	ServerName string   `env:"GAMELINK_GAME_SERVER_NAME" json:"server_name" yaml:"server_name"`
	RelayName  string   `env:"GAMELINK_GAME_RELAY_NAME"  json:"relay_name"  yaml:"relay_name"`  // synthetic author used for relayed chat
	EchoMarker string   `env:"GAMELINK_GAME_ECHO_MARKER" json:"echo_marker" yaml:"echo_marker"` // lets relay-authored text be echoed on purpose
	Reconnect  Duration `env:"GAMELINK_GAME_RECONNECT"   json:"reconnect"   yaml:"reconnect"`
}

// LinkConfig binds a game chat channel to a Discord guild channel. Guild and
// Channel accept either a name or a snowflake id.
type LinkConfig struct {
	Name         string   `json:"name"                yaml:"name"`
	GameChannel  string   `json:"game_channel"        yaml:"game_channel"`
	Guild        string   `json:"guild"               yaml:"guild"`
	Channel      string   `json:"channel"             yaml:"channel"`
	Direction    string   `json:"direction,omitempty" yaml:"direction,omitempty"`
	Mentions     string   `json:"mentions,omitempty"  yaml:"mentions,omitempty"`
	Feeds        []string `json:"feeds,omitempty"     yaml:"feeds,omitempty"`
	Displays     []string `json:"displays,omitempty"  yaml:"displays,omitempty"`
	AllowedRoles []string `json:"allowed_roles,omitempty" yaml:"allowed_roles,omitempty"`
}

type FeaturesConfig struct {
	ChatRelay    bool `env:"GAMELINK_FEATURES_CHAT_RELAY"    json:"chat_relay"    yaml:"chat_relay"`
	ServerStatus bool `env:"GAMELINK_FEATURES_SERVER_STATUS" json:"server_status" yaml:"server_status"`
	TradeFeed    bool `env:"GAMELINK_FEATURES_TRADE_FEED"    json:"trade_feed"    yaml:"trade_feed"`
	LoginFeed    bool `env:"GAMELINK_FEATURES_LOGIN_FEED"    json:"login_feed"    yaml:"login_feed"`
	ElectionFeed bool `env:"GAMELINK_FEATURES_ELECTION_FEED" json:"election_feed" yaml:"election_feed"`
	Activity     bool `env:"GAMELINK_FEATURES_ACTIVITY"      json:"activity"      yaml:"activity"`
}

type TimersConfig struct {
	DisplayRefresh   Duration `env:"GAMELINK_TIMERS_DISPLAY_REFRESH"   json:"display_refresh"   yaml:"display_refresh"`
	RefreshCron      string   `env:"GAMELINK_TIMERS_REFRESH_CRON"      json:"refresh_cron"      yaml:"refresh_cron"` // overrides display_refresh when set
	ActivityRefresh  Duration `env:"GAMELINK_TIMERS_ACTIVITY_REFRESH"  json:"activity_refresh"  yaml:"activity_refresh"`
	AggregationFlush Duration `env:"GAMELINK_TIMERS_AGGREGATION_FLUSH" json:"aggregation_flush" yaml:"aggregation_flush"`
}

type StorageConfig struct {
	RedisAddr     string `env:"GAMELINK_STORAGE_REDIS_ADDR"     json:"redis_addr"     yaml:"redis_addr"` // empty keeps tracking in memory
	RedisPassword string `env:"GAMELINK_STORAGE_REDIS_PASSWORD" json:"redis_password" yaml:"redis_password"`
	RedisDB       int    `env:"GAMELINK_STORAGE_REDIS_DB"       json:"redis_db"       yaml:"redis_db"`
	Instance      string `env:"GAMELINK_STORAGE_INSTANCE"       json:"instance"       yaml:"instance"`
}

type GatewayConfig struct {
	Host string `env:"GAMELINK_GATEWAY_HOST" json:"host" yaml:"host"`
	Port int    `env:"GAMELINK_GATEWAY_PORT" json:"port" yaml:"port"`
}

type LogConfig struct {
	Level string `env:"GAMELINK_LOG_LEVEL" json:"level" yaml:"level"`
	JSON  bool   `env:"GAMELINK_LOG_JSON"  json:"json"  yaml:"json"`
}

func DefaultConfig() *Config {
	return &Config{
		Discord: DiscordConfig{
			CommandPrefix: "!",
			Activity:      "%d players online",
		},
		Game: GameConfig{
			WSURL:      "ws://127.0.0.1:3001/gamelink",
			ServerName: "Game Server",
			RelayName:  "Discord",
			EchoMarker: "[echo]",
			Reconnect:  Duration(10 * time.Second),
		},
		Features: FeaturesConfig{
			ChatRelay:    true,
			ServerStatus: true,
			TradeFeed:    true,
			LoginFeed:    false,
			ElectionFeed: true,
			Activity:     true,
		},
		Timers: TimersConfig{
			DisplayRefresh:   Duration(60 * time.Second),
			ActivityRefresh:  Duration(30 * time.Second),
			AggregationFlush: Duration(time.Second),
		},
		Storage: StorageConfig{
			Instance: "default",
		},
		Gateway: GatewayConfig{
			Host: "127.0.0.1",
			Port: 18791,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// LoadConfig reads a JSON or YAML config (by extension), applies GAMELINK_*
// environment overrides and validates the result. A missing file yields the
// defaults with overrides applied.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if isYAML(path) {
			err = yaml.Unmarshal(data, cfg)
		} else {
			err = json.Unmarshal(data, cfg)
		}
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks link definitions for required fields, unique names and
// known direction/mention values. Empty direction and mentions are filled
// with duplex and forbidden.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Links))
	for i := range c.Links {
		l := &c.Links[i]
		if l.Name == "" {
			l.Name = l.GameChannel
		}
		if err := l.validate(); err != nil {
			return fmt.Errorf("%w: links[%d]: %w", ErrInvalidConfig, i, err)
		}
		if seen[l.Name] {
			return fmt.Errorf("%w: links[%d]: duplicate link name %q", ErrInvalidConfig, i, l.Name)
		}
		seen[l.Name] = true
	}
	if c.Timers.AggregationFlush.Std() < 0 || c.Timers.DisplayRefresh.Std() < 0 || c.Timers.ActivityRefresh.Std() < 0 {
		return fmt.Errorf("%w: timers must not be negative", ErrInvalidConfig)
	}
	if c.Timers.RefreshCron != "" && !gronx.New().IsValid(c.Timers.RefreshCron) {
		return fmt.Errorf("%w: timers.refresh_cron %q is not a cron expression", ErrInvalidConfig, c.Timers.RefreshCron)
	}
	return nil
}

func (l *LinkConfig) validate() error {
	if l.GameChannel == "" {
		return errors.New("game_channel is required")
	}
	if l.Guild == "" {
		return errors.New("guild is required")
	}
	if l.Channel == "" {
		return errors.New("channel is required")
	}
	if strings.ContainsAny(l.Name, " \t\n") {
		return fmt.Errorf("name %q must not contain whitespace", l.Name)
	}

	switch l.Direction {
	case "":
		l.Direction = DirectionDuplex
	case DirectionGameToDiscord, DirectionDiscordToGame, DirectionDuplex:
	default:
		return fmt.Errorf("unknown direction %q", l.Direction)
	}

	switch l.Mentions {
	case "":
		l.Mentions = MentionsForbidden
	case MentionsForbidden, MentionsAdminOnly, MentionsAnyUser:
	default:
		return fmt.Errorf("unknown mention policy %q", l.Mentions)
	}
	return nil
}

// GatewayAddr returns host:port for the health and metrics listener.
func (c *Config) GatewayAddr() string {
	return fmt.Sprintf("%s:%d", c.Gateway.Host, c.Gateway.Port)
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}

// ExpandPath resolves a leading ~ in user supplied paths.
func ExpandPath(path string) string {
	return expandHome(path)
}
