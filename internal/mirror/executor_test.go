package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

const testCredential = Credential("s3cret")

type exitError struct{ code int }

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }
func (e *exitError) ExitCode() int { return e.code }

// fakeCmd records what the executor hands to the process and replays a canned result
type fakeCmd struct {
	name   string
	args   []string
	stdin  string
	stdout string
	stderr string
	err    error

	stdoutW io.Writer
	stderrW io.Writer
	stdinR  io.Reader
}

func (c *fakeCmd) SetStdin(r io.Reader)  { c.stdinR = r }
func (c *fakeCmd) SetStdout(w io.Writer) { c.stdoutW = w }
func (c *fakeCmd) SetStderr(w io.Writer) { c.stderrW = w }

func (c *fakeCmd) Run() error {
	in, _ := io.ReadAll(c.stdinR)
	c.stdin = string(in)
	_, _ = io.WriteString(c.stdoutW, c.stdout)
	_, _ = io.WriteString(c.stderrW, c.stderr)
	return c.err
}

func newFakeExecutor(t *testing.T, result *fakeCmd, opts ...Option) (*RsyncExecutor, *[]*fakeCmd) {
	t.Helper()
	var calls []*fakeCmd
	factory := func(_ context.Context, name string, arg ...string) Cmd {
		c := &fakeCmd{name: name, args: arg}
		if result != nil {
			c.stdout, c.stderr, c.err = result.stdout, result.stderr, result.err
		}
		calls = append(calls, c)
		return c
	}
	opts = append([]Option{WithCommandFactory(factory)}, opts...)
	return NewRsyncExecutor("/media/nas_drives", opts...), &calls
}

func TestCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		dryRun   bool
		wantArgs []string
	}{
		{
			name:   "real run",
			dryRun: false,
			wantArgs: []string{
				"-S", "rsync", "-av", "--delete",
				"/media/nas_drives/nas1/", "/media/nas_drives/nas2/",
			},
		},
		{
			name:   "dry run",
			dryRun: true,
			wantArgs: []string{
				"-S", "rsync", "-av", "--delete", "--dry-run",
				"/media/nas_drives/nas1/", "/media/nas_drives/nas2/",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := NewRsyncExecutor("/media/nas_drives")
			name, args := e.Command("nas1", "nas2", tt.dryRun)
			assert.Equal(t, "sudo", name)
			assert.Equal(t, tt.wantArgs, args)
			assert.Equal(t, tt.dryRun, slices.Contains(args, "--dry-run"))
		})
	}
}

func TestVolumePathKeepsTrailingSeparator(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/media/nas_drives/nas1/", NewRsyncExecutor("/media/nas_drives").VolumePath("nas1"))
	assert.Equal(t, "/media/nas_drives/nas1/", NewRsyncExecutor("/media/nas_drives/").VolumePath("nas1"))
}

func TestCustomBinaries(t *testing.T) {
	t.Parallel()

	e := NewRsyncExecutor("/mnt", WithSudoPath("/usr/bin/sudo"), WithRsyncPath("/opt/bin/rsync"))
	name, args := e.Command("a", "b", false)
	assert.Equal(t, "/usr/bin/sudo", name)
	assert.Equal(t, "/opt/bin/rsync", args[1])
}

func TestExecuteSuccess(t *testing.T) {
	t.Parallel()

	e, calls := newFakeExecutor(t, &fakeCmd{stdout: "sending incremental file list\n"})

	out, err := e.Execute(context.Background(), "nas1", "nas2", testCredential, true)
	require.NoError(t, err)
	assert.Equal(t, "sending incremental file list\n", out)

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, "sudo", call.name)
	assert.Equal(t, "s3cret\n", call.stdin, "credential must be written to stdin followed by a newline")
	for _, arg := range call.args {
		assert.NotContains(t, arg, "s3cret", "credential must never appear in argv")
	}
	assert.True(t, slices.Contains(call.args, "--dry-run"))
}

func TestExecuteFailure(t *testing.T) {
	t.Parallel()

	e, _ := newFakeExecutor(t, &fakeCmd{
		stdout: "partial\n",
		stderr: "rsync: change_dir failed: No such file or directory (2)\n",
		err:    &exitError{code: 23},
	})

	_, err := e.Execute(context.Background(), "nas1", "nas2", testCredential, false)
	require.Error(t, err)

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "nas1", execErr.Source)
	assert.Equal(t, "nas2", execErr.Target)
	assert.Equal(t, 23, execErr.ExitCode)
	assert.Contains(t, execErr.Stderr, "change_dir failed")
	assert.NotContains(t, execErr.Command, "s3cret")
	assert.NotContains(t, err.Error(), "s3cret")
	assert.Contains(t, err.Error(), "nas1 -> nas2")
	assert.Contains(t, err.Error(), "exit code 23")
}

func TestExecuteStartFailure(t *testing.T) {
	t.Parallel()

	e, _ := newFakeExecutor(t, &fakeCmd{err: errors.New("executable file not found in $PATH")})

	_, err := e.Execute(context.Background(), "nas1", "nas2", testCredential, false)

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, -1, execErr.ExitCode)
	assert.Contains(t, err.Error(), "executable file not found")
}

func TestExecuteSpans(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	e, _ := newFakeExecutor(t, &fakeCmd{stderr: "boom\n", err: &exitError{code: 12}}, WithTracerProvider(tp))
	_, err := e.Execute(context.Background(), "nas1", "nas2", testCredential, true)
	require.Error(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "mirror.execute", span.Name)
	assert.Equal(t, codes.Error, span.Status.Code)
	assert.Equal(t, "mirror failed", span.Status.Description)
	assert.Contains(t, span.Attributes, attribute.String("mirror.source", "nas1"))
	assert.Contains(t, span.Attributes, attribute.String("mirror.target", "nas2"))
	assert.Contains(t, span.Attributes, attribute.Bool("sync.dry_run", true))
	assert.Contains(t, span.Attributes, attribute.Int("mirror.exit_code", 12))
}

// spanLogHandler keeps the span context of the last record
type spanLogHandler struct{ last trace.SpanContext }

func (h *spanLogHandler) Enabled(context.Context, slog.Level) bool { return true }
func (h *spanLogHandler) Handle(ctx context.Context, _ slog.Record) error {
	h.last = trace.SpanContextFromContext(ctx)
	return nil
}
func (h *spanLogHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *spanLogHandler) WithGroup(string) slog.Handler      { return h }

//nolint:paralleltest // replaces the default logger
func TestExecuteLogCarriesSpan(t *testing.T) {
	handler := &spanLogHandler{}
	previous := slog.Default()
	slog.SetDefault(slog.New(handler))
	t.Cleanup(func() { slog.SetDefault(previous) })

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	e, _ := newFakeExecutor(t, &fakeCmd{}, WithTracerProvider(tp))
	_, err := e.Execute(context.Background(), "nas1", "nas2", testCredential, true)
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, spans[0].SpanContext.SpanID(), handler.last.SpanID())
	assert.Equal(t, spans[0].SpanContext.TraceID(), handler.last.TraceID())
}

func TestExecuteRejectsInvalidVolumes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		source string
		target string
	}{
		{name: "empty source", source: "", target: "nas2"},
		{name: "traversal", source: "nas1", target: ".."},
		{name: "nested path", source: "nas1", target: "nas2/sub"},
		{name: "same volume", source: "nas1", target: "nas1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, calls := newFakeExecutor(t, nil)
			_, err := e.Execute(context.Background(), tt.source, tt.target, testCredential, false)
			assert.ErrorIs(t, err, ErrInvalidVolume)
			assert.Empty(t, *calls, "no process may be started for an invalid pair")
		})
	}
}

func TestCredentialRedaction(t *testing.T) {
	t.Parallel()

	assert.Equal(t, redacted, testCredential.String())
	assert.Equal(t, redacted, fmt.Sprintf("%#v", testCredential))
	assert.NotContains(t, fmt.Sprintf("%v %s %+v", testCredential, testCredential, testCredential), "s3cret")
	assert.Equal(t, redacted, testCredential.LogValue().String())
}

func TestExecCommandContextRunsRealProcess(t *testing.T) {
	t.Parallel()

	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	// Stand in for sudo+rsync: succeed only when the expected credential arrives on stdin
	script := `read pw; if [ "$pw" = "s3cret" ]; then echo synced; else echo "bad credential" >&2; exit 7; fi`
	factory := func(ctx context.Context, _ string, _ ...string) Cmd {
		return ExecCommandContext(ctx, sh, "-c", script)
	}

	e := NewRsyncExecutor("/media/nas_drives", WithCommandFactory(factory))

	out, err := e.Execute(context.Background(), "nas1", "nas2", testCredential, false)
	require.NoError(t, err)
	assert.Equal(t, "synced", strings.TrimSpace(out))

	_, err = e.Execute(context.Background(), "nas1", "nas2", Credential("wrong"), false)
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, 7, execErr.ExitCode)
	assert.Equal(t, "bad credential", strings.TrimSpace(execErr.Stderr))
}
