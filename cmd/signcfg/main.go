package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/eugenenazirov/signcfg/internal/application"
	"github.com/eugenenazirov/signcfg/internal/artifact"
	"github.com/eugenenazirov/signcfg/internal/buildenv"
	"github.com/eugenenazirov/signcfg/internal/config"
	"github.com/eugenenazirov/signcfg/internal/logging"
)

// Exit codes for failures of signcfg itself; exec passes the child's code through.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

var signalNotify = signal.Notify

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr, buildenv.OSLookup()))
}

type cli struct {
	app *kingpin.Application

	configFile     *string
	environment    *string
	propertiesFile *string
	keystoreDir    *string
	outputPrefix   *string
	logLevel       *string
	port           *string
	rateLimitRPS   *float64
	rateLimitBurst *int

	resolve      *kingpin.CmdClause
	format       *string
	keepKeystore *bool

	exec     *kingpin.CmdClause
	execArgs *[]string

	outputName  *kingpin.CmdClause
	outputFiles *[]string

	rename    *kingpin.CmdClause
	renameDir *string

	serve *kingpin.CmdClause
}

func newCLI(stderr io.Writer) *cli {
	app := kingpin.New("signcfg", "Release signing configuration resolver for Android builds")
	app.UsageWriter(stderr)
	app.ErrorWriter(stderr)

	c := &cli{app: app}
	c.configFile = app.Flag("config", "Path to YAML configuration file").String()
	c.environment = app.Flag("environment", "Force the build environment instead of detecting it").Enum("ci", "local")
	c.propertiesFile = app.Flag("properties", "Path to the local keystore properties file").String()
	c.keystoreDir = app.Flag("keystore-dir", "Directory for the temporary CI keystore").String()
	c.outputPrefix = app.Flag("output-prefix", "Prefix of per-architecture output names").String()
	c.logLevel = app.Flag("log-level", "Log level (debug, info, warn, error)").String()
	c.port = app.Flag("port", "HTTP port exposed by serve").String()
	c.rateLimitRPS = app.Flag("rate-limit-rps", "Requests per second allowed by serve (set 0 to disable)").Default("-1").Float64()
	c.rateLimitBurst = app.Flag("rate-limit-burst", "Burst capacity for the serve rate limiter (set 0 to disable)").Default("-1").Int()

	c.resolve = app.Command("resolve", "Resolve and print the signing configuration").Default()
	c.format = c.resolve.Flag("format", "Output format").Default(application.FormatText).Enum(application.Formats()...)
	c.keepKeystore = c.resolve.Flag("keep-keystore", "Keep the temporary CI keystore after exit (implied by --format=properties)").Bool()

	c.exec = app.Command("exec", "Run a build command with the signing configuration in its environment")
	c.execArgs = c.exec.Arg("command", "Command and arguments to run").Required().Strings()

	c.outputName = app.Command("output-name", "Print the published name of build outputs")
	c.outputFiles = c.outputName.Arg("file", "Default output file names").Required().Strings()

	c.rename = app.Command("rename", "Rename per-architecture outputs in a directory")
	c.renameDir = c.rename.Arg("dir", "Directory holding build outputs").Required().ExistingDir()

	c.serve = app.Command("serve", "Serve the resolved signing summary over a local HTTP API")

	return c
}

func (c *cli) overrides() *config.CLIOverrides {
	overrides := &config.CLIOverrides{
		ConfigFile: *c.configFile,
	}

	for _, f := range []struct {
		dst **string
		src *string
	}{
		{&overrides.Environment, c.environment},
		{&overrides.PropertiesFile, c.propertiesFile},
		{&overrides.KeystoreDir, c.keystoreDir},
		{&overrides.OutputPrefix, c.outputPrefix},
		{&overrides.LogLevel, c.logLevel},
		{&overrides.Port, c.port},
	} {
		if *f.src != "" {
			*f.dst = f.src
		}
	}

	if *c.rateLimitRPS >= 0 {
		overrides.RateLimitRPS = c.rateLimitRPS
	}

	if *c.rateLimitBurst >= 0 {
		overrides.RateLimitBurst = c.rateLimitBurst
	}

	return overrides
}

// run executes one command and returns the process exit code. Deferred
// cleanup, such as removing the temporary keystore, happens before return.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer, lookup buildenv.LookupFunc) int {
	c := newCLI(stderr)
	command, err := c.app.Parse(args)
	if err != nil {
		fmt.Fprintf(stderr, "signcfg: %v\n", err)
		return exitUsage
	}

	cfg, err := config.LoadWithLookup(c.overrides(), lookup)
	if err != nil {
		fmt.Fprintf(stderr, "signcfg: failed to load configuration: %v\n", err)
		return exitUsage
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "signcfg: failed to initialize logger: %v\n", err)
		return exitFailure
	}
	defer func() {
		_ = logger.Sync()
	}()

	switch command {
	case c.resolve.FullCommand():
		err = runResolve(cfg, *c.format, *c.keepKeystore, stdout, logger)
	case c.exec.FullCommand():
		var code int
		code, err = runExec(cfg, *c.execArgs, stdin, stdout, stderr, logger)
		if err == nil {
			return code
		}
	case c.outputName.FullCommand():
		err = runOutputName(cfg, *c.outputFiles, stdout)
	case c.rename.FullCommand():
		err = runRename(cfg, *c.renameDir, stdout, logger)
	case c.serve.FullCommand():
		err = runServe(cfg, logger)
	default:
		err = fmt.Errorf("unknown command %q", command)
	}

	if err != nil {
		logger.Error("command failed", zap.String("command", command), zap.Error(err))
		fmt.Fprintf(stderr, "signcfg: %v\n", err)
		return exitFailure
	}
	return exitOK
}

func runResolve(cfg config.Config, format string, keep bool, stdout io.Writer, logger *zap.Logger) error {
	res, err := application.NewService(cfg, nil, logger).Resolve()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := res.Close(); closeErr != nil {
			logger.Warn("failed to remove temporary keystore", zap.Error(closeErr))
		}
	}()

	// The properties output names the keystore file, so it must outlive signcfg.
	if format == application.FormatProperties {
		keep = true
	}
	if keep && res.Keystore != nil {
		res.Keystore.Keep()
		logger.Info("keeping temporary keystore", zap.String("path", res.Keystore.Path()))
	}

	return application.WriteResolution(stdout, res, format)
}

func runExec(cfg config.Config, argv []string, stdin io.Reader, stdout, stderr io.Writer, logger *zap.Logger) (int, error) {
	res, err := application.NewService(cfg, nil, logger).Resolve()
	if err != nil {
		return exitFailure, err
	}
	defer func() {
		if closeErr := res.Close(); closeErr != nil {
			logger.Warn("failed to remove temporary keystore", zap.Error(closeErr))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return application.Exec(ctx, res, application.Command{
		Path:   argv[0],
		Args:   argv[1:],
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
	}, logger)
}

func runOutputName(cfg config.Config, files []string, stdout io.Writer) error {
	var errs error
	for _, file := range files {
		name, err := artifact.OutputName(file, cfg.OutputPrefix)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", file, err))
			continue
		}
		fmt.Fprintln(stdout, name)
	}
	return errs
}

func runRename(cfg config.Config, dir string, stdout io.Writer, logger *zap.Logger) error {
	renames, err := artifact.RenameOutputs(dir, cfg.OutputPrefix, logger)
	for _, r := range renames {
		fmt.Fprintf(stdout, "%s -> %s\n", r.From, r.To)
	}
	return err
}

func runServe(cfg config.Config, logger *zap.Logger) error {
	app, err := application.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}

	if err := app.Start(); err != nil {
		return multierr.Append(fmt.Errorf("start server: %w", err), app.Shutdown(context.Background()))
	}

	return shutdown(app, cfg.ShutdownGracePeriod, logger)
}

type server interface {
	Err() <-chan error
	Shutdown(ctx context.Context) error
}

// shutdown waits for a termination signal or a server failure, then stops srv
// within timeout. The server failure, if any, is returned.
func shutdown(srv server, timeout time.Duration, logger *zap.Logger) error {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case <-quit:
		logger.Info("shutting down server")
	case serveErr = <-srv.Err():
		logger.Error("server stopped unexpectedly", zap.Error(serveErr))
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
		return multierr.Append(serveErr, err)
	}
	return serveErr
}
