package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/tinyland-inc/gamelink/pkg/config"
	"github.com/tinyland-inc/gamelink/pkg/logger"
)

const Logo = "🎮"

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string

	configPath string
)

// SetConfigPath overrides the default config location. Set from the root
// --config flag.
func SetConfigPath(path string) {
	configPath = path
}

func GetConfigPath() string {
	if configPath != "" {
		return config.ExpandPath(configPath)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".gamelink", "config.json")
}

func LoadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(GetConfigPath())
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	return cfg, nil
}

// SetupLogging applies the config's log settings; debug wins over the level.
func SetupLogging(cfg *config.Config, debug bool) {
	logger.Configure(os.Stderr, cfg.Log.JSON)
	if cfg.Log.Level != "" {
		logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	}
	if debug {
		logger.SetLevel(logger.DEBUG)
		fmt.Println("🔍 Debug mode enabled")
	}
}

// FormatVersion returns the version string with optional git commit
func FormatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

// FormatBuildInfo returns build time and go version info
func FormatBuildInfo() (string, string) {
	build := buildTime
	goVer := goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	return build, goVer
}

func GetVersion() string {
	return version
}
