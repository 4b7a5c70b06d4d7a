// Package main is the entry point for the glimmer LED effect engine.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dshills/glimmer/internal/color"
	"github.com/dshills/glimmer/internal/config"
	"github.com/dshills/glimmer/internal/effect"
	"github.com/dshills/glimmer/internal/openrgb"
	"github.com/dshills/glimmer/internal/plugin"
	"github.com/dshills/glimmer/internal/preview"
	"github.com/dshills/glimmer/internal/zone"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

type options struct {
	ConfigPath  string
	Address     string
	Port        int
	Device      string
	Effect      string
	Color       string
	ListDevices bool
	Status      bool
	PluginsDir  string
	Preview     int
	LogLevel    string
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		return 1
	}
	applyOverrides(&cfg, opts)

	log, err := newLogger(cfg.LogLevel, opts.Preview > 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	// Actions that never touch the LED server.
	if opts.Status {
		return showStatus(ctx, cfg.PluginsDir, log)
	}
	if opts.ListDevices {
		return listDevices(ctx, cfg.ServerAddr(), log)
	}

	if opts.Effect != "" {
		return runEffect(ctx, cfg, opts, log)
	}
	return setColor(ctx, cfg, opts, log)
}

func showStatus(ctx context.Context, pluginsDir string, log *zap.Logger) int {
	cat, err := plugin.BuildCatalog(ctx, pluginsDir, log, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to build plugin catalog: %v\n", err)
		return 1
	}
	defer cat.Close()

	out, err := json.MarshalIndent(cat.Status(), "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Println(string(out))
	return 0
}

func listDevices(ctx context.Context, addr string, log *zap.Logger) int {
	client, err := openrgb.Connect(ctx, addr, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to connect to %s: %v\n", addr, err)
		return 1
	}
	defer client.Close()

	devices, err := client.Devices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to list devices: %v\n", err)
		return 1
	}

	for _, dev := range devices {
		fmt.Printf("[%d] %s (%d LEDs)\n", dev.ID, dev.Name, len(dev.LEDs))
		for _, z := range dev.Zones {
			fmt.Printf("    zone %d: %s type=%s leds=%d\n", z.Index, z.Name, zoneTypeName(z.Type), z.LEDCount)
		}
	}
	return 0
}

func zoneTypeName(t int32) string {
	switch t {
	case openrgb.ZoneTypeSingle:
		return "single"
	case openrgb.ZoneTypeLinear:
		return "linear"
	case openrgb.ZoneTypeMatrix:
		return "matrix"
	default:
		return "unknown"
	}
}

// selectTarget resolves the zone the requested action renders into, either
// a terminal preview strip or a zone on a device behind the LED server.
// The returned cleanup releases whichever resource was acquired.
func selectTarget(ctx context.Context, cfg config.Config, opts options, log *zap.Logger) (zone.Zone, *preview.Strip, func(), error) {
	if opts.Preview > 0 {
		strip, err := preview.New(opts.Preview)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("start preview: %w", err)
		}
		return strip.Zone(), strip, strip.Close, nil
	}

	if opts.Device == "" {
		return nil, nil, nil, fmt.Errorf("--device is required unless --preview is set")
	}

	client, err := openrgb.Connect(ctx, cfg.ServerAddr(), log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to %s: %w", cfg.ServerAddr(), err)
	}

	dev, err := client.DeviceByName(opts.Device)
	if err != nil {
		client.Close()
		return nil, nil, nil, err
	}

	z, err := openrgb.SelectZone(client, dev)
	if err != nil {
		client.Close()
		return nil, nil, nil, err
	}
	return z, nil, func() { client.Close() }, nil
}

func runEffect(ctx context.Context, cfg config.Config, opts options, log *zap.Logger) int {
	z, strip, cleanup, err := selectTarget(ctx, cfg, opts, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer cleanup()

	cat, err := plugin.BuildCatalog(ctx, cfg.PluginsDir, log, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to build plugin catalog: %v\n", err)
		return 1
	}
	defer cat.Close()

	ctl := effect.NewController(runCatalog{cat}, log)
	if err := ctl.Run(ctx, opts.Effect, z, z.Len()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if _, running := ctl.Running(); !running && strip == nil {
		// Single-shot effect on hardware: colors are pushed, nothing to wait on.
		return 0
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if strip != nil {
		select {
		case <-signals:
		case <-strip.Done():
		}
	} else {
		<-signals
	}

	ctl.Stop()
	if err := ctl.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func setColor(ctx context.Context, cfg config.Config, opts options, log *zap.Logger) int {
	c, err := color.Parse(opts.Color)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	z, strip, cleanup, err := selectTarget(ctx, cfg, opts, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer cleanup()

	zone.Fill(z, c)
	if err := z.Show(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if strip != nil {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-signals:
		case <-strip.Done():
		}
	}
	return 0
}

// newLogger builds the process logger. The preview strip owns the terminal,
// so logging is suppressed while it is on screen.
func newLogger(level string, previewing bool) (*zap.Logger, error) {
	if previewing {
		return zap.NewNop(), nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

func applyOverrides(cfg *config.Config, opts options) {
	if opts.Address != "" {
		cfg.Address = opts.Address
	}
	if opts.Port != 0 {
		cfg.Port = opts.Port
	}
	if opts.PluginsDir != "" {
		cfg.PluginsDir = opts.PluginsDir
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
}

// runCatalog adapts the plugin catalog to the controller's lookup interface.
type runCatalog struct {
	cat *plugin.Catalog
}

func (r runCatalog) Lookup(key string) (effect.Runnable, error) {
	desc, err := r.cat.Lookup(key)
	if err != nil {
		return nil, err
	}
	return desc, nil
}

func parseFlags() options {
	var opts options
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.Address, "address", "", "OpenRGB server address")
	flag.IntVar(&opts.Port, "port", 0, "OpenRGB server port")
	flag.StringVar(&opts.Device, "device", "", "Target device name")
	flag.StringVar(&opts.Device, "d", "", "Target device name (shorthand)")
	flag.StringVar(&opts.Effect, "effect", "", "Effect to run as plugin.function")
	flag.StringVar(&opts.Effect, "e", "", "Effect to run as plugin.function (shorthand)")
	flag.StringVar(&opts.Color, "color", "", "Set a static color (R,G,B or #RRGGBB)")
	flag.BoolVar(&opts.ListDevices, "list-devices", false, "List devices known to the server")
	flag.BoolVar(&opts.Status, "status", false, "Print plugin catalog status as JSON")
	flag.StringVar(&opts.PluginsDir, "plugins", "", "Plugin directory")
	flag.IntVar(&opts.Preview, "preview", 0, "Render into a terminal strip of N LEDs instead of hardware")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Glimmer - plugin-driven LED effect engine\n\n")
		fmt.Fprintf(os.Stderr, "Usage: glimmer [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  glimmer --list-devices                        Show devices on the server\n")
		fmt.Fprintf(os.Stderr, "  glimmer --status                              Show loaded plugins\n")
		fmt.Fprintf(os.Stderr, "  glimmer -d \"Corsair Strip\" --color 255,0,0    Set a static color\n")
		fmt.Fprintf(os.Stderr, "  glimmer -d \"Corsair Strip\" -e core.rainbow_cycle   Run a looped effect\n")
		fmt.Fprintf(os.Stderr, "  glimmer --preview 30 -e core.rainbow_cycle    Run an effect in the terminal\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("Glimmer %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	actions := 0
	for _, set := range []bool{opts.Effect != "", opts.Color != "", opts.ListDevices, opts.Status} {
		if set {
			actions++
		}
	}
	if actions != 1 {
		fmt.Fprintf(os.Stderr, "Error: exactly one of --effect, --color, --list-devices, --status is required\n\n")
		flag.Usage()
		os.Exit(2)
	}

	return opts
}
