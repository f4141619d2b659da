package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/MrSnakeDoc/staywatch/internal/app"
	"github.com/MrSnakeDoc/staywatch/internal/config"
	"github.com/MrSnakeDoc/staywatch/internal/logger"
	"github.com/MrSnakeDoc/staywatch/internal/version"
)

const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

const usage = `Usage: staywatch <command> [flags]

Commands:
  run             scrape every search once, notify and persist
  serve           run on STAYWATCH_SCHEDULE and expose /healthz /readyz /status /run
  create-config   write a config scaffold
  version         print the version

Run "staywatch <command> --help" for the flags of a command.
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprint(stderr, usage)
		return exitUsage
	}

	if err := config.LoadDotEnv(os.Getenv("STAYWATCH_ENV_FILE")); err != nil {
		_, _ = fmt.Fprintf(stderr, "staywatch: %v\n", err)
		return exitFatal
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "run":
		return runCmd(rest, stderr)
	case "serve":
		return serveCmd(rest, stderr)
	case "create-config":
		return createConfigCmd(rest, stdout, stderr)
	case "version", "--version":
		_, _ = fmt.Fprintf(stdout, "staywatch %s (commit=%s, built=%s, go=%s)\n",
			version.Version, version.Commit, version.BuildDate, version.GoVersion)
		return exitOK
	case "help", "-h", "--help":
		_, _ = fmt.Fprint(stdout, usage)
		return exitOK
	}
	_, _ = fmt.Fprintf(stderr, "staywatch: unknown command %q\n\n%s", cmd, usage)
	return exitUsage
}

// runFlags are shared by run and serve; they override the environment.
type runFlags struct {
	configPath      string
	dataStore       string
	noNotifications bool
	prune           bool
}

func newRunFlagSet(name string, stderr io.Writer, f *runFlags) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&f.configPath, "config", "c", "", "config file (default $STAYWATCH_CONFIG or config.yaml)")
	fs.StringVar(&f.dataStore, "data-store", "", "JSON state file for the file backend (default $STAYWATCH_DATA_STORE)")
	fs.BoolVar(&f.noNotifications, "no-notifications", false, "persist snapshots without notifying")
	fs.BoolVar(&f.prune, "prune", false, "drop snapshots of searches no longer configured")
	return fs
}

// parse returns the exit code to use when parsing did not succeed.
func parse(fs *pflag.FlagSet, args []string, stderr io.Writer) (int, bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK, false
		}
		return exitUsage, false
	}
	if fs.NArg() > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", fs.Args())
		return exitUsage, false
	}
	return 0, true
}

// setup loads the runtime config, applies the flags and builds the app.
func setup(ctx context.Context, fs *pflag.FlagSet, f runFlags, stderr io.Writer) (*app.App, logger.Logger, int) {
	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "staywatch: %v\n", err)
		return nil, nil, exitFatal
	}
	if fs.Changed("config") {
		cfg.ConfigPath = f.configPath
	}
	if fs.Changed("data-store") {
		cfg.DataStore = f.dataStore
	}
	if fs.Changed("no-notifications") {
		cfg.NoNotifications = f.noNotifications
	}

	log := logger.New(cfg.LogLevel, cfg.PrettyLog)
	log.Debug("runtime configuration", logger.String("config", fmt.Sprintf("%+v", cfg.Redacted())))

	a, err := app.New(ctx, cfg, app.Options{Prune: f.prune}, log)
	if err != nil {
		log.Error("startup failed", logger.Error(err))
		_ = log.Sync()
		return nil, nil, exitFatal
	}
	return a, log, exitOK
}

func runCmd(args []string, stderr io.Writer) int {
	var f runFlags
	fs := newRunFlagSet("run", stderr, &f)
	if code, ok := parse(fs, args, stderr); !ok {
		return code
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, log, code := setup(ctx, fs, f, stderr)
	if a == nil {
		return code
	}
	defer func() { _ = log.Sync() }()
	defer closeApp(a, log)

	if _, err := a.RunOnce(ctx); err != nil {
		log.Error("run failed", logger.Error(err))
		return exitFatal
	}
	return exitOK
}

func serveCmd(args []string, stderr io.Writer) int {
	var f runFlags
	fs := newRunFlagSet("serve", stderr, &f)
	if code, ok := parse(fs, args, stderr); !ok {
		return code
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, log, code := setup(ctx, fs, f, stderr)
	if a == nil {
		return code
	}
	defer func() { _ = log.Sync() }()
	defer closeApp(a, log)

	if err := a.Serve(ctx); err != nil {
		log.Error("serve failed", logger.Error(err))
		return exitFatal
	}
	return exitOK
}

func createConfigCmd(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("create-config", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	path := fs.StringP("config", "c", "config.yaml", "where to write the scaffold")
	force := fs.Bool("force", false, "overwrite an existing file")
	if code, ok := parse(fs, args, stderr); !ok {
		return code
	}

	if err := config.WriteScaffold(*path, *force); err != nil {
		if errors.Is(err, config.ErrConfigExists) {
			_, _ = fmt.Fprintf(stderr, "staywatch: %s already exists, use --force to overwrite\n", *path)
			return exitFatal
		}
		_, _ = fmt.Fprintf(stderr, "staywatch: %v\n", err)
		return exitFatal
	}
	_, _ = fmt.Fprintf(stdout, "config scaffold written to %s\n", *path)
	return exitOK
}

func closeApp(a *app.App, log logger.Logger) {
	if err := a.Close(); err != nil {
		log.Warn("failed to close state backend", logger.Error(err))
	}
}
