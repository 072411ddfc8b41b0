package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"go.uber.org/zap"

	"github.com/eugenenazirov/signcfg/internal/signing"
)

// Variables exported to the child build process.
const (
	EnvSigningStoreFile     = "SIGNING_STORE_FILE"
	EnvSigningKeyAlias      = "SIGNING_KEY_ALIAS"
	EnvSigningKeyPassword   = "SIGNING_KEY_PASSWORD"
	EnvSigningStorePassword = "SIGNING_STORE_PASSWORD"
)

// Command describes the child build process run by Exec.
type Command struct {
	Path string
	Args []string
	// Env is the base environment; nil means the current process environment.
	Env    []string
	Dir    string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// ErrNoCommand is returned when Exec is called without a command.
var ErrNoCommand = errors.New("no command to run")

// SigningEnv returns the variables that hand the credentials to a child process.
func SigningEnv(creds signing.Credentials) []string {
	return []string{
		EnvSigningStoreFile + "=" + creds.StoreFile,
		EnvSigningKeyAlias + "=" + creds.KeyAlias,
		EnvSigningKeyPassword + "=" + creds.KeyPassword,
		EnvSigningStorePassword + "=" + creds.StorePassword,
	}
}

// Exec runs cmd with the resolved credentials in its environment and returns
// the child's exit code. An exit code other than zero is not an error; errors
// are reserved for failures to start or wait on the child. The resolution is
// not closed here.
func Exec(ctx context.Context, res *signing.Resolution, cmd Command, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cmd.Path == "" {
		return 0, ErrNoCommand
	}
	if res == nil {
		return 0, fmt.Errorf("%w: nothing resolved", signing.ErrIncompleteCredentials)
	}
	if err := res.Credentials.Validate(); err != nil {
		return 0, err
	}

	child := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	base := cmd.Env
	if base == nil {
		base = os.Environ()
	}
	child.Env = append(append([]string(nil), base...), SigningEnv(res.Credentials)...)
	child.Dir = cmd.Dir
	child.Stdin = cmd.Stdin
	child.Stdout = cmd.Stdout
	child.Stderr = cmd.Stderr

	logger.Info("running build command with signing configuration",
		zap.String("command", cmd.Path),
		zap.String("environment", res.Environment.String()),
	)

	err := child.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code < 0 {
			code = 1
		}
		logger.Warn("build command failed", zap.Int("exit_code", code))
		return code, nil
	}
	if err != nil {
		return 0, fmt.Errorf("run %s: %w", cmd.Path, err)
	}
	return 0, nil
}
