// Package pipeline orchestrates the evidence engine end to end: examine an
// input, evaluate it under a policy, optionally execute it in the sandbox,
// and finalize the evidence root atomically. Commands in internal/cli are
// thin wrappers over the operations here.
package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/diblac17-eng/weftend/internal/adapter"
	"github.com/diblac17-eng/weftend/internal/canon"
	"github.com/diblac17-eng/weftend/internal/config"
	"github.com/diblac17-eng/weftend/internal/digest"
	"github.com/diblac17-eng/weftend/internal/evidence"
	"github.com/diblac17-eng/weftend/internal/examine"
	"github.com/diblac17-eng/weftend/internal/host"
	"github.com/diblac17-eng/weftend/internal/reason"
	"github.com/diblac17-eng/weftend/internal/schema"
	"github.com/diblac17-eng/weftend/internal/trust"
)

// Deps are the process-wide collaborators, computed once at startup and
// passed explicitly. Nothing here is mutable module-level state.
type Deps struct {
	Build    digest.Build
	Env      config.Env
	Registry *adapter.Registry
	Examiner *examine.Examiner
	Host     *host.Runner

	// ImageProbe reports whether an immutable container reference is in the
	// local store. Nil means no daemon is reachable.
	ImageProbe func(ref string) bool
}

// Options steer one pipeline run.
type Options struct {
	Input        string
	Out          string
	PolicyPath   string
	Profile      string
	Mode         string
	Script       bool
	Execute      bool
	WithholdExec bool
	EmitCapture  bool
}

// Outcome is a completed run: the exit code the process should return and
// the decision that produced it.
type Outcome struct {
	Exit     int
	Decision *schema.Decision
}

// SafeRun performs intake plus the optional execute step and commits a
// safe_run_receipt evidence root. Observation failures (a tampered archive)
// withhold the artifact and still commit; precondition failures commit
// nothing — except the container precondition, which by contract records
// its denial in a committed receipt before failing closed.
func SafeRun(ctx context.Context, deps Deps, opts Options) (*Outcome, *reason.Error) {
	w, werr := evidence.NewWriter(opts.Out, deps.Build, evidence.Options{})
	if werr != nil {
		return nil, werr
	}

	policy, perr := resolvePolicy(opts)
	if perr != nil {
		w.Abort()
		return nil, perr
	}
	policyID, pidErr := policy.PolicyID()
	if pidErr != nil {
		w.Abort()
		return nil, reason.Internal(pidErr)
	}

	res, failure := deps.Examiner.Examine(ctx, opts.Input, examineOptions(deps, opts))
	if failure != nil {
		return handleExamineFailure(w, deps, policyID, failure)
	}

	if _, aerr := deps.Registry.Select(res.AdapterClass); aerr != nil {
		w.Abort()
		return nil, aerr
	}

	decision := trust.Evaluate(res.Mint, policy)

	rec := &schema.SafeRunReceipt{
		Header:          schema.NewHeader(schema.SchemaSafeRunReceipt, deps.Build),
		AnalysisVerdict: decision.Verdict,
		Action:          decision.Action,
		TopReasonCodes:  decision.ReasonCodes,
		ArtifactDigest:  res.Mint.InputDigest,
		PolicyDigest:    policyID,
		Mint:            res.Mint,
		Warnings:        []string{},
	}

	if execRec, hostReceipt := executeStep(ctx, deps, opts, res, &decision); execRec != nil {
		rec.Execute = execRec
		if hostReceipt != nil {
			if err := w.StageReceipt("host_run_receipt.json", "host_run_receipt", hostReceipt); err != nil {
				w.Abort()
				return nil, reason.Internal(err)
			}
		}
	}

	if err := stageDecisionArtifacts(w, res.Mint, &decision); err != nil {
		w.Abort()
		return nil, reason.Internal(err)
	}
	if err := w.StageReceipt("safe_run_receipt.json", "safe_run_receipt", rec); err != nil {
		w.Abort()
		return nil, reason.Internal(err)
	}
	if _, cerr := w.Commit(); cerr != nil {
		return nil, cerr
	}
	return &Outcome{Exit: decision.ExitCode(), Decision: &decision}, nil
}

// Run is the full strict/compatible/legacy record: the intake artifacts
// (mint, decision, disclosure, appeal bundle) plus the run receipt. It
// performs no execute step and writes no safe-run or host-run receipt.
func Run(ctx context.Context, deps Deps, opts Options) (*Outcome, *reason.Error) {
	if merr := config.ValidateMode(opts.Mode); merr != nil {
		return nil, merr
	}

	w, werr := evidence.NewWriter(opts.Out, deps.Build, evidence.Options{})
	if werr != nil {
		return nil, werr
	}

	policy, perr := resolvePolicy(opts)
	if perr != nil {
		w.Abort()
		return nil, perr
	}
	policyID, pidErr := policy.PolicyID()
	if pidErr != nil {
		w.Abort()
		return nil, reason.Internal(pidErr)
	}

	res, failure := deps.Examiner.Examine(ctx, opts.Input, examineOptions(deps, opts))
	if failure != nil {
		return handleExamineFailure(w, deps, policyID, failure)
	}
	if _, aerr := deps.Registry.Select(res.AdapterClass); aerr != nil {
		w.Abort()
		return nil, aerr
	}

	decision := trust.Evaluate(res.Mint, policy)

	rec := &schema.RunReceipt{
		Header:         schema.NewHeader(schema.SchemaRunReceipt, deps.Build),
		Mode:           opts.Mode,
		Decision:       decision,
		ArtifactDigest: res.Mint.InputDigest,
		PolicyDigest:   policyID,
		Mint:           res.Mint,
		Warnings:       []string{},
	}

	if err := stageDecisionArtifacts(w, res.Mint, &decision); err != nil {
		w.Abort()
		return nil, reason.Internal(err)
	}
	if err := w.StageReceipt("run_receipt.json", "run_receipt", rec); err != nil {
		w.Abort()
		return nil, reason.Internal(err)
	}
	if _, cerr := w.Commit(); cerr != nil {
		return nil, cerr
	}
	return &Outcome{Exit: decision.ExitCode(), Decision: &decision}, nil
}

// Examine mints the observation package only, without evaluating a policy.
func Examine(ctx context.Context, deps Deps, opts Options) (*Outcome, *reason.Error) {
	w, werr := evidence.NewWriter(opts.Out, deps.Build, evidence.Options{})
	if werr != nil {
		return nil, werr
	}

	res, failure := deps.Examiner.Examine(ctx, opts.Input, examineOptions(deps, opts))
	if failure != nil {
		w.Abort()
		exit := reason.ExitViolated
		if !failure.Precondition {
			exit = reason.ExitHold
		}
		return nil, reason.Failf(failure.Code, exit, "%s", failure.Message)
	}

	if err := w.StageJSON("weftend_mint_v1.json", "mint", res.Mint); err != nil {
		w.Abort()
		return nil, reason.Internal(err)
	}
	if err := w.StageText("weftend_mint_v1.txt", "mint_text", renderMintText(res.Mint)); err != nil {
		w.Abort()
		return nil, reason.Internal(err)
	}
	if opts.EmitCapture {
		capture := map[string]any{
			"schema":           "weftend.capture/0",
			"externalRefs":     res.Mint.ExternalRefs,
			"entryHints":       res.Mint.EntryHints,
			"fileCountsByKind": res.Mint.FileCountsByKind,
			"adapterClass":     res.AdapterClass,
		}
		if err := w.StageJSON("weftend_capture_v0.json", "capture", capture); err != nil {
			w.Abort()
			return nil, reason.Internal(err)
		}
	}
	if _, cerr := w.Commit(); cerr != nil {
		return nil, cerr
	}
	return &Outcome{Exit: reason.ExitSuccess}, nil
}

func examineOptions(deps Deps, opts Options) examine.Options {
	return examine.Options{
		Profile:         opts.Profile,
		ScriptHint:      opts.Script,
		DockerHost:      deps.Env.DockerHost,
		LocalImageProbe: deps.ImageProbe,
	}
}

func resolvePolicy(opts Options) (*schema.Policy, *reason.Error) {
	if opts.PolicyPath == "" {
		return DefaultPolicy(opts.Profile), nil
	}
	return LoadPolicy(opts.PolicyPath)
}

// handleExamineFailure maps an examiner failure onto the writer. A
// container precondition failure records a DENY receipt before failing
// closed; any other precondition aborts; an observation failure commits a
// WITHHELD receipt and holds.
func handleExamineFailure(w *evidence.Writer, deps Deps, policyID string, f *examine.Failure) (*Outcome, *reason.Error) {
	if f.Precondition && !strings.HasPrefix(string(f.Code), "DOCKER_") {
		w.Abort()
		return nil, reason.Failf(f.Code, reason.ExitViolated, "%s", f.Message)
	}

	verdict := schema.VerdictWithheld
	action := schema.ActionHold
	exit := reason.ExitHold
	var surfaced *reason.Error
	if f.Precondition {
		verdict = schema.VerdictDeny
		action = schema.ActionReject
		exit = reason.ExitViolated
		surfaced = reason.Failf(f.Code, reason.ExitViolated, "%s", f.Message)
	}

	rec := &schema.SafeRunReceipt{
		Header:          schema.NewHeader(schema.SchemaSafeRunReceipt, deps.Build),
		AnalysisVerdict: verdict,
		Action:          action,
		TopReasonCodes:  canon.StableSortUniqueV0([]string{string(f.Code)}),
		ArtifactDigest:  digest.ComputeArtifactDigestV0(nil),
		PolicyDigest:    policyID,
		Warnings:        []string{},
	}
	if err := w.StageReceipt("safe_run_receipt.json", "safe_run_receipt", rec); err != nil {
		w.Abort()
		return nil, reason.Internal(err)
	}
	if _, cerr := w.Commit(); cerr != nil {
		return nil, cerr
	}
	if surfaced != nil {
		return &Outcome{Exit: exit}, surfaced
	}
	return &Outcome{Exit: exit}, nil
}

// executeStep runs the sandbox when asked and allowed. The execute record
// is present whenever execution was requested, including the withheld case.
func executeStep(ctx context.Context, deps Deps, opts Options, res *examine.Result, decision *schema.Decision) (*schema.ExecuteRecord, *schema.HostRunReceipt) {
	if opts.WithholdExec {
		return &schema.ExecuteRecord{
			Attempted:   false,
			Verdict:     schema.VerdictWithheld,
			ReasonCodes: []string{string(reason.CapWithheldExec)},
		}, nil
	}
	if !opts.Execute {
		return nil, nil
	}
	if decision.Action != schema.ActionApprove {
		return &schema.ExecuteRecord{
			Attempted:   false,
			Verdict:     schema.VerdictWithheld,
			ReasonCodes: decision.ReasonCodes,
		}, nil
	}

	entry := pickEntry(res.Mint.EntryHints)
	rec, err := deps.Host.Run(ctx, host.Request{ArtifactPath: opts.Input, Entry: entry})
	if err != nil {
		slog.Default().Warn("sandbox run failed", "component", "pipeline")
		return &schema.ExecuteRecord{
			Attempted:   true,
			Verdict:     schema.VerdictWithheld,
			ReasonCodes: []string{string(reason.HostExecFailed)},
		}, nil
	}
	return &schema.ExecuteRecord{
		Attempted:   true,
		Verdict:     rec.Verdict,
		ReasonCodes: rec.ReasonCodes,
	}, rec
}

// pickEntry chooses the execution entry from the sorted hints: the first
// wasm hint, else the first hint.
func pickEntry(hints []string) string {
	for _, h := range hints {
		if strings.HasSuffix(h, ".wasm") {
			return h
		}
	}
	if len(hints) > 0 {
		return hints[0]
	}
	return ""
}
