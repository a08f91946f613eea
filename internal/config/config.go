// Package config handles application configuration and command-line argument parsing.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alexflint/go-arg"

	"github.com/joe/scpi/internal/browser"
	scperrors "github.com/joe/scpi/pkg/errors"
	"github.com/joe/scpi/pkg/filesystem"
)

// Exported constants.
const (
	// DefaultDebugLog is where --debug writes its log.
	DefaultDebugLog = "debug.log"
	maxPort         = 65535
)

// UIMode selects how progress and browsing are presented.
type UIMode int

const (
	// UIAuto uses the TUI when stdout is a terminal and plain output otherwise.
	UIAuto UIMode = iota
	// UIInteractive always uses the TUI.
	UIInteractive
	// UIPlain never browses and reports progress with console bars.
	UIPlain
)

// String returns the string representation of UIMode
func (m UIMode) String() string {
	switch m {
	case UIAuto:
		return "auto"
	case UIInteractive:
		return "tui"
	case UIPlain:
		return "plain"
	default:
		return "unknown"
	}
}

// ParseUIMode parses a string into a UIMode
func ParseUIMode(s string) (UIMode, error) {
	s = strings.ToLower(s)
	switch s {
	case "auto", "":
		return UIAuto, nil
	case "tui", "interactive":
		return UIInteractive, nil
	case "plain", "console", "batch":
		return UIPlain, nil
	default:
		return UIAuto, fmt.Errorf("invalid ui mode: %s (valid: auto, tui, plain)", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler for go-arg
func (m *UIMode) UnmarshalText(text []byte) error {
	parsed, err := ParseUIMode(string(text))
	if err != nil {
		return err
	}

	*m = parsed

	return nil
}

// Config holds the application configuration
type Config struct {
	Source           string `arg:"positional,required" help:"source file or directory (local path or user@host[:port]:path)"`
	Target           string `arg:"positional,required" help:"target file or directory (local path or user@host[:port]:path)"`
	Port             int    `arg:"-P,--port,env:SCPI_PORT" default:"22" help:"port to connect to on the remote host" placeholder:"PORT"`
	IdentityFile     string `arg:"-i,--identity-file,env:SCPI_IDENTITY" help:"private key for public key authentication" placeholder:"FILE"`
	Password         string `arg:"-p,--password,env:SCPI_PASSWORD" help:"password for authentication"`
	Recursive        bool   `arg:"-r,--recursive" help:"recursively copy entire directories"`
	Verbose          bool   `arg:"-v,--verbose" help:"verbose output"`
	InteractiveRight bool   `arg:"-R,--interactive-right" help:"browse the local side instead of the remote side"`
	Debug            bool   `arg:"--debug" help:"write debug logging to the debug log"`
	DebugLog         string `arg:"--debug-log" default:"debug.log" help:"file used by --debug"`
	UI               UIMode `arg:"--ui" default:"auto" help:"presentation: auto|tui|plain"`

	// Filled in by PostProcessConfig.
	Endpoints       filesystem.Endpoints `arg:"-"`
	InteractiveSide browser.Side         `arg:"-"`
}

// Description returns the program description for go-arg
func (Config) Description() string {
	return "Interactive scp: copy files between this machine and a remote host over SFTP"
}

// Version returns the version string for go-arg
func (Config) Version() string {
	return "scpi 1.0.0"
}

// Parse parses args (without the program name). Help and version requests come back as
// arg.ErrHelp and arg.ErrVersion.
func Parse(args []string) (*Config, error) {
	cfg := &Config{
		Port:     filesystem.DefaultSSHPort,
		DebugLog: DefaultDebugLog,
	}

	parser, err := arg.NewParser(arg.Config{Program: "scpi"}, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build argument parser: %w", err)
	}

	err = parser.Parse(args)
	if errors.Is(err, arg.ErrHelp) || errors.Is(err, arg.ErrVersion) {
		return nil, err //nolint:wrapcheck // sentinel for the caller to compare
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %w", scperrors.ErrInvalidSpec, err)
	}

	return PostProcessConfig(cfg)
}

// PostProcessConfig applies post-processing logic to a parsed config:
// it validates the port, resolves both endpoints and decides which side is browsed.
func PostProcessConfig(cfg *Config) (*Config, error) {
	if cfg.Port < 1 || cfg.Port > maxPort {
		return nil, fmt.Errorf("%w: port %d out of range (1-%d)", scperrors.ErrInvalidSpec, cfg.Port, maxPort)
	}

	if cfg.DebugLog == "" {
		cfg.DebugLog = DefaultDebugLog
	}

	endpoints, err := filesystem.Resolve(cfg.Source, cfg.Target, filesystem.ResolveOptions{
		DefaultPort:  cfg.Port,
		IdentityFile: cfg.IdentityFile,
		Password:     cfg.Password,
	})
	if err != nil {
		return nil, err //nolint:wrapcheck // Resolve errors already name the side
	}

	cfg.Endpoints = endpoints
	cfg.InteractiveSide = interactiveSide(endpoints, cfg.InteractiveRight)

	return cfg, nil
}

// interactiveSide browses the remote side by default and the other side with -R.
// Without a remote side the source is browsed.
func interactiveSide(endpoints filesystem.Endpoints, flip bool) browser.Side {
	side := browser.SideSource
	if endpoints.IsUpload() {
		side = browser.SideTarget
	}

	if flip {
		if side == browser.SideSource {
			return browser.SideTarget
		}

		return browser.SideSource
	}

	return side
}

// InteractiveEndpoint returns the endpoint the browser opens on.
func (cfg *Config) InteractiveEndpoint() filesystem.Endpoint {
	if cfg.InteractiveSide == browser.SideTarget {
		return cfg.Endpoints.Target
	}

	return cfg.Endpoints.Source
}

// BrowseMode returns what the browser commits: sources on the source side, a destination
// directory on the target side.
func (cfg *Config) BrowseMode() browser.Mode {
	if cfg.InteractiveSide == browser.SideTarget {
		return browser.SelectDestination
	}

	return browser.SelectSources
}
