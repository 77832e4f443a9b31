// Package host is the sandbox collaborator: it executes an approved
// artifact's WASM entry under wazero and returns a host_run_receipt. The
// sandbox has no network surface and its filesystem is scoped to a scratch
// directory; captured output is bounded and only its digests reach the
// receipt. On timeout the runner returns a reason code, never a partial
// receipt.
package host

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"

	"github.com/diblac17-eng/weftend/internal/digest"
	"github.com/diblac17-eng/weftend/internal/reason"
	"github.com/diblac17-eng/weftend/internal/schema"
)

// captureLimit bounds each captured stream.
const captureLimit = 1 << 20 // 1 MiB

// DefaultDeadline applies when a request carries none.
const DefaultDeadline = 30 * time.Second

// Request asks the runner to execute one entry of an artifact.
type Request struct {
	// ArtifactPath is the examined input (file or directory).
	ArtifactPath string

	// Entry is the entry hint to execute, relative to the artifact when it
	// is a directory.
	Entry string

	// Deadline bounds the execution. Zero means DefaultDeadline.
	Deadline time.Duration
}

// Runner executes sandbox requests under one build identity.
type Runner struct {
	build   digest.Build
	scratch string
	logger  *slog.Logger
}

// NewRunner creates a runner. scratchRoot is where per-run scratch
// directories are created; empty means the system temp dir
// (WEFTEND_HOST_OUT_ROOT overrides it at the config layer).
func NewRunner(build digest.Build, scratchRoot string) *Runner {
	if scratchRoot == "" {
		scratchRoot = os.TempDir()
	}
	return &Runner{
		build:   build,
		scratch: scratchRoot,
		logger:  slog.Default().With("component", "host"),
	}
}

// Run executes the request and returns a complete host_run_receipt. The
// receipt's verdict is ALLOW for a clean exit, DENY for a non-zero exit,
// and WITHHELD for unsupported entries and timeouts.
func (r *Runner) Run(ctx context.Context, req Request) (*schema.HostRunReceipt, error) {
	rec := &schema.HostRunReceipt{
		Header:       schema.NewHeader(schema.SchemaHostRunReceipt, r.build),
		Entry:        req.Entry,
		ExitStatus:   -1,
		StdoutDigest: digest.ComputeArtifactDigestV0(nil),
		StderrDigest: digest.ComputeArtifactDigestV0(nil),
		ReasonCodes:  []string{},
	}

	if !strings.HasSuffix(strings.ToLower(req.Entry), ".wasm") {
		rec.Verdict = schema.VerdictWithheld
		rec.ReasonCodes = []string{string(reason.HostEntryUnsupported)}
		return rec, nil
	}

	wasmPath := req.ArtifactPath
	if info, err := os.Stat(req.ArtifactPath); err == nil && info.IsDir() {
		wasmPath = filepath.Join(req.ArtifactPath, filepath.FromSlash(req.Entry))
	}
	wasmBytes, err := os.ReadFile(wasmPath)
	if err != nil {
		rec.Verdict = schema.VerdictWithheld
		rec.ReasonCodes = []string{string(reason.HostExecFailed)}
		return rec, nil
	}

	deadline := req.Deadline
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	scratch, err := os.MkdirTemp(r.scratch, "weftend-host-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(scratch)

	stdout := newBoundedBuffer(captureLimit)
	stderr := newBoundedBuffer(captureLimit)

	rt := wazero.NewRuntime(runCtx)
	defer rt.Close(context.Background())
	wasi_snapshot_preview1.MustInstantiate(runCtx, rt)

	cfg := wazero.NewModuleConfig().
		WithName("artifact").
		WithArgs(req.Entry).
		WithStdout(stdout).
		WithStderr(stderr).
		WithFSConfig(wazero.NewFSConfig().WithDirMount(scratch, "/"))

	mod, runErr := rt.InstantiateWithConfig(runCtx, wasmBytes, cfg)
	if mod != nil {
		defer mod.Close(context.Background())
	}

	rec.StdoutDigest = digest.ComputeArtifactDigestV0(stdout.Bytes())
	rec.StderrDigest = digest.ComputeArtifactDigestV0(stderr.Bytes())

	switch {
	case runErr == nil:
		rec.ExitStatus = 0
		rec.Verdict = schema.VerdictAllow
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		rec.Verdict = schema.VerdictWithheld
		rec.ReasonCodes = []string{string(reason.HostExecTimeout)}
	default:
		var exit *sys.ExitError
		if errors.As(runErr, &exit) {
			rec.ExitStatus = int64(exit.ExitCode())
			if exit.ExitCode() == 0 {
				rec.Verdict = schema.VerdictAllow
				break
			}
		}
		rec.Verdict = schema.VerdictDeny
		rec.ReasonCodes = []string{string(reason.HostExecFailed)}
	}

	r.logger.Debug("sandbox run finished", "verdict", rec.Verdict, "exit", rec.ExitStatus)
	return rec, nil
}
