package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/tomaslejdung/stagesync/pkg/codec"
	"github.com/tomaslejdung/stagesync/pkg/scene"
)

// DefaultSignalServer is the default remote relay
const DefaultSignalServer = "wss://stagesync.tineestudio.se"

// LocalSignalServer is the URL of a relay started with --serve on this machine
const LocalSignalServer = "ws://localhost:8080"

// Config holds runtime configuration
type Config struct {
	ServeMode bool
	Port      int
	SignalURL string
	LocalMode bool // run an embedded relay in this process
	Room      string
	Name      string
	Scene     string
	FPS       int
	Rate      time.Duration
	Codec     string
	LogLevel  string
	Help      bool

	// set reports which flags were given explicitly, so saved settings only
	// fill the rest
	set map[string]bool
}

func parseFlags(args []string) (Config, error) {
	config := Config{set: make(map[string]bool)}
	var fps, rate string

	flagSet := pflag.NewFlagSet("stagesync", pflag.ContinueOnError)
	flagSet.Usage = func() {}
	flagSet.BoolVarP(&config.ServeMode, "serve", "s", false, "Run as relay server only")
	flagSet.IntVarP(&config.Port, "port", "p", 8080, "Relay server port")
	flagSet.StringVar(&config.SignalURL, "signal", "", "Custom relay URL (overrides default)")
	flagSet.BoolVar(&config.LocalMode, "local", false, "Run an embedded relay on --port and join it")
	flagSet.StringVar(&config.Room, "room", "", "Room code to join (generated if empty)")
	flagSet.StringVar(&config.Name, "name", "", "Display name")
	flagSet.StringVar(&config.Scene, "scene", "", "Scene to load")
	flagSet.StringVar(&fps, "fps", "", "Render framerate")
	flagSet.StringVar(&rate, "rate", "", "Camera sampling interval (e.g. 100ms, fast, low)")
	flagSet.StringVar(&config.Codec, "codec", "", "Relay wire codec (json|cbor)")
	flagSet.StringVar(&config.LogLevel, "log-level", "info", "Log level (debug|info|warn|error)")
	flagSet.BoolVarP(&config.Help, "help", "h", false, "Show help")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			config.Help = true
			return config, nil
		}
		return config, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return config, fmt.Errorf("unexpected argument: %s", rest[0])
	}

	flagSet.Visit(func(f *pflag.Flag) {
		config.set[f.Name] = true
	})

	if fps != "" {
		config.FPS = ParseFPSFlag(fps)
	}
	if rate != "" {
		config.Rate = ParseRateFlag(rate)
	}
	if config.Codec != "" {
		if _, err := codec.ByName(config.Codec); err != nil {
			return config, err
		}
	}
	return config, nil
}

// IsSet reports whether a flag was given on the command line
func (c Config) IsSet(name string) bool {
	return c.set[name]
}

func printHelp() {
	fmt.Fprint(os.Stderr, `StageSync - shared 3D stage presence

Usage: stagesync [options]

By default, StageSync connects to the relay at:
  `+DefaultSignalServer+`

Everyone in the same room sees each other as avatars. One participant at a
time can take control; everyone else's camera then follows theirs.

Options:
  --room <code>          Room code to join (a new one is generated if empty)
  --name <name>          Display name (saved for next time)
  --scene <name>         Scene: `+sceneNames()+`
  --local                Run an embedded relay on --port and join it; others
                         join with --signal ws://<your-host>:<port> --room <code>
  --signal <url>         Custom relay URL (overrides default)
  --serve, -s            Run as relay server only
  --port, -p <port>      Relay server port (default: 8080)
  --fps <rate>           Render framerate: 15, 24, 30, 60, 120 (default: 60)
  --rate <interval>      Camera sampling: fast, normal, low, minimal or a duration (default: 100ms)
  --codec <name>         Wire codec: json, cbor (default: json)
  --log-level <level>    debug, info, warn, error (default: info)
  --help, -h             Show help

Examples:
  stagesync                         # New room on the remote relay
  stagesync --room CALM-STAGE-42    # Join an existing room
  stagesync --serve                 # Run a relay on :8080
  stagesync --signal `+LocalSignalServer+`

Controls:
  ↑/↓ or w/s    Move forward/back
  ←/→ or a/d    Strafe
  q/e           Turn
  c             Take or release control
  i             Toggle inking (controller only)
  space         Draw at the camera position
  f             Cycle render framerate
  t             Cycle camera sampling rate
  p             Cycle pen colour
  r             Reconnect after the relay dropped
  ctrl+c        Quit
`)
}

func sceneNames() string {
	var names string
	for i, p := range scene.Catalog {
		if i > 0 {
			names += ", "
		}
		names += p.Name
	}
	return names
}
