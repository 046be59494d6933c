// Package mirror runs a single delete-reconciling directory mirror between two
// volumes by shelling out to rsync with elevated privileges.
package mirror

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/drive-mirror/internal/otel"
)

//go:generate mockgen -destination=mocks/mock_executor.go -package=mocks -source=executor.go Executor

const (
	// TracerName is the name of the tracer used for mirror operations
	TracerName = "github.com/stacklok/drive-mirror/mirror"

	redacted = "[REDACTED]"
)

// Credential is the elevation secret handed to sudo. It redacts itself when
// formatted or logged.
type Credential string

func (Credential) String() string { return redacted }

// GoString keeps %#v from printing the secret
func (Credential) GoString() string { return redacted }

// LogValue implements slog.LogValuer
func (Credential) LogValue() slog.Value { return slog.StringValue(redacted) }

// Executor runs one mirror operation from source onto target
type Executor interface {
	// Execute mirrors source onto target and returns the utility's standard output.
	// It blocks until the external process exits.
	Execute(ctx context.Context, source, target string, credential Credential, dryRun bool) (string, error)
}

// RsyncExecutor mirrors volumes with `sudo -S rsync -av --delete`
type RsyncExecutor struct {
	baseDir    string
	sudoPath   string
	rsyncPath  string
	newCommand CommandFactory
	tracer     trace.Tracer
}

var _ Executor = (*RsyncExecutor)(nil)

// Option configures the RsyncExecutor
type Option func(*RsyncExecutor)

// WithSudoPath sets the elevation helper binary
func WithSudoPath(path string) Option {
	return func(e *RsyncExecutor) {
		e.sudoPath = path
	}
}

// WithRsyncPath sets the rsync binary
func WithRsyncPath(path string) Option {
	return func(e *RsyncExecutor) {
		e.rsyncPath = path
	}
}

// WithTracerProvider enables a span around every mirror operation
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *RsyncExecutor) {
		e.tracer = otel.Tracer(tp, TracerName)
	}
}

// WithCommandFactory replaces process creation, primarily for testing
func WithCommandFactory(factory CommandFactory) Option {
	return func(e *RsyncExecutor) {
		e.newCommand = factory
	}
}

// NewRsyncExecutor creates an executor resolving volumes under baseDir
func NewRsyncExecutor(baseDir string, opts ...Option) *RsyncExecutor {
	e := &RsyncExecutor{
		baseDir:    baseDir,
		sudoPath:   "sudo",
		rsyncPath:  "rsync",
		newCommand: ExecCommandContext,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// VolumePath resolves a volume identifier to its directory with a trailing
// separator, so rsync copies the directory contents rather than the directory.
func (e *RsyncExecutor) VolumePath(volume string) string {
	return strings.TrimRight(e.baseDir, "/") + "/" + volume + "/"
}

// Command returns the binary and arguments for one mirror operation
func (e *RsyncExecutor) Command(source, target string, dryRun bool) (string, []string) {
	args := []string{"-S", e.rsyncPath, "-av", "--delete"}
	if dryRun {
		args = append(args, "--dry-run")
	}
	args = append(args, e.VolumePath(source), e.VolumePath(target))
	return e.sudoPath, args
}

// Execute implements Executor
func (e *RsyncExecutor) Execute(
	ctx context.Context, source, target string, credential Credential, dryRun bool,
) (string, error) {
	if err := validatePair(source, target); err != nil {
		return "", err
	}

	ctx, span := otel.StartSpan(ctx, e.tracer, "mirror.execute", trace.WithAttributes(
		otel.AttrSource.String(source),
		otel.AttrTarget.String(target),
		otel.AttrDryRun.Bool(dryRun),
	))
	defer span.End()

	name, args := e.Command(source, target, dryRun)
	commandLine := strings.Join(append([]string{name}, args...), " ")
	slog.InfoContext(ctx, "Executing command", "command", commandLine)

	var stdout, stderr bytes.Buffer
	cmd := e.newCommand(ctx, name, args...)
	// The credential only ever travels over stdin, never argv
	cmd.SetStdin(strings.NewReader(string(credential) + "\n"))
	cmd.SetStdout(&stdout)
	cmd.SetStderr(&stderr)

	if err := cmd.Run(); err != nil {
		execErr := &ExecutionError{
			Source:   source,
			Target:   target,
			Command:  commandLine,
			ExitCode: errToExitCode(err),
			Stderr:   stderr.String(),
			Err:      err,
		}
		span.SetAttributes(otel.AttrExitCode.Int(execErr.ExitCode))
		otel.RecordError(span, execErr, "mirror failed")
		return stdout.String(), execErr
	}

	otel.EndStatus(span, nil, "")
	return stdout.String(), nil
}

func validatePair(source, target string) error {
	for _, v := range []string{source, target} {
		if v == "" || v == "." || v == ".." || strings.ContainsRune(v, '/') {
			return fmt.Errorf("%w: %q", ErrInvalidVolume, v)
		}
	}
	if source == target {
		return fmt.Errorf("%w: source and target are both %q", ErrInvalidVolume, source)
	}
	return nil
}
