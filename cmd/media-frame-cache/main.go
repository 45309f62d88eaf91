package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/vertextoedge/media-frame-cache/internal/config"
	"github.com/vertextoedge/media-frame-cache/internal/logger"
)

const version = "0.1.0"

// command is one CLI subcommand
type command struct {
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"scan":    {"scan [-r] [--hidden] [--no-catalog] PATH...", runScan},
	"list":    {"list [--kind KIND] [--limit N]", runList},
	"inspect": {"inspect [--frame N] PATH", runInspect},
	"play":    {"play [--from N] [--frames N] [--fps F] [--direction D] PATH", runPlay},
	"watch":   {"watch [--no-catalog] PATH", runWatch},
	"prune":   {"prune", runPrune},
	"formats": {"formats", runFormats},
}

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()

	if err != nil {
		if !errors.Is(err, errUsage) && !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// run parses global flags, builds the application and dispatches to the
// subcommand named by the first positional argument.
func run(ctx context.Context, args []string, out io.Writer) error {
	flags := pflag.NewFlagSet("media-frame-cache", pflag.ContinueOnError)
	flags.SetInterspersed(false)
	configPath := flags.StringP("config", "c", "config.yaml", "Path to configuration file")
	catalogPath := flags.String("catalog", "", "Override catalog.path")
	logLevel := flags.String("log-level", "", "Override logging.level")
	showVersion := flags.Bool("version", false, "Print version and exit")
	flags.Usage = func() { printUsage(out, flags) }

	if err := flags.Parse(args); err != nil {
		return err
	}
	if *showVersion {
		fmt.Fprintf(out, "media-frame-cache %s\n", version)
		return nil
	}
	if flags.NArg() == 0 {
		printUsage(out, flags)
		return errUsage
	}

	name := flags.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		printUsage(out, flags)
		return fmt.Errorf("unknown command %q", name)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if *catalogPath != "" {
		cfg.Catalog.Path = *catalogPath
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	zapLogger, err := logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	zapLogger.Debug("starting media-frame-cache",
		zap.String("version", version),
		zap.String("command", name),
		zap.String("config", *configPath))

	a := newApp(cfg, zapLogger, out)
	return cmd.run(ctx, a, flags.Args()[1:])
}

func printUsage(out io.Writer, flags *pflag.FlagSet) {
	fmt.Fprintf(out, "Usage: media-frame-cache [global flags] COMMAND [flags]\n\nCommands:\n")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %s\n", commands[name].usage)
	}
	fmt.Fprintf(out, "\nGlobal flags:\n%s", flags.FlagUsages())
}
