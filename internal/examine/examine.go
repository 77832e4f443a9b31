// Package examine classifies an input artifact — a file, a directory tree,
// an archive, an email, or an immutable container image reference — and
// mints the normalized MintPackage the trust algebra consumes. The examiner
// is deterministic: the same input bytes under the same build always yield
// the same mint.
package examine

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/diblac17-eng/weftend/internal/digest"
	"github.com/diblac17-eng/weftend/internal/reason"
	"github.com/diblac17-eng/weftend/internal/schema"
)

// Result is a successful examination: the mint plus the adapter class that
// produced it.
type Result struct {
	Mint         *schema.MintPackage
	AdapterClass string
}

// Failure is a structured examination failure. Precondition failures are
// surfaced fail-closed (exit 40); observation failures flow into the trust
// decision as reason codes and yield a committed receipt.
type Failure struct {
	Code         reason.Code
	Message      string
	Precondition bool
}

// Options steer an examination.
type Options struct {
	// Profile is the target kind the caller intends to evaluate the mint
	// under (web, mod, generic, container, email).
	Profile string

	// ScriptHint marks the input's entry as script-typed even when the
	// extension alone would not classify it.
	ScriptHint bool

	// DockerHost is the DOCKER_HOST value captured at startup; only local
	// socket forms are supported on the evidence path.
	DockerHost string

	// LocalImageProbe reports whether an immutable image reference is
	// present in the local store. Nil means no daemon is reachable.
	LocalImageProbe func(ref string) bool
}

// Examiner walks inputs and mints observation packages.
type Examiner struct {
	logger *slog.Logger
}

// New creates an Examiner.
func New() *Examiner {
	return &Examiner{logger: slog.Default().With("component", "examine")}
}

// Examine resolves input as either an immutable container reference or a
// filesystem path and mints the observation package.
func (e *Examiner) Examine(ctx context.Context, input string, opts Options) (*Result, *Failure) {
	if looksLikeImageRef(input) {
		return e.examineContainer(input, opts)
	}

	info, err := os.Stat(input)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &Failure{Code: reason.InputMissing, Message: "input does not exist", Precondition: true}
		}
		return nil, &Failure{Code: reason.InputUnreadable, Message: "input cannot be read", Precondition: true}
	}

	if info.IsDir() {
		return e.examineDir(ctx, input, opts)
	}
	return e.examineFile(input, info.Size(), opts)
}

// looksLikeImageRef distinguishes container references from paths. A path
// that exists on disk always wins; otherwise a registry/repo form with a
// tag or digest separator is treated as an image reference.
func looksLikeImageRef(input string) bool {
	if _, err := os.Stat(input); err == nil {
		return false
	}
	if strings.ContainsAny(input, " \t\n") {
		return false
	}
	if strings.Contains(input, "@sha256:") {
		return true
	}
	// repo:tag form, but not a Windows drive or relative path.
	slash := strings.Contains(input, "/")
	colon := strings.Contains(input, ":")
	return colon && (slash || !strings.ContainsAny(input, `\./`))
}

func targetKindFor(profile string) string {
	switch profile {
	case schema.TargetWeb, schema.TargetMod, schema.TargetContainer, schema.TargetEmail:
		return profile
	default:
		return schema.TargetGeneric
	}
}

func (e *Examiner) examineFile(path string, size int64, opts Options) (*Result, *Failure) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &Failure{Code: reason.InputUnreadable, Message: "input cannot be read", Precondition: true}
	}

	kind := classifyName(path, isBinaryContent(b))
	if opts.ScriptHint {
		kind = schema.KindScript
	}

	mint := &schema.MintPackage{
		Schema:            schema.SchemaMint,
		ArtifactKind:      kind,
		TargetKind:        targetKindFor(opts.Profile),
		InputDigest:       digest.ComputeArtifactDigestV0(b),
		TotalFiles:        1,
		TotalBytesBounded: size,
		FileCountsByKind:  map[string]int64{kind: 1},
		HasScripts:        kind == schema.KindScript,
		HasNativeBinaries: kind == schema.KindNative,
		HasHTML:           kind == schema.KindHTML,
		EntryHints:        entryHints(path),
	}

	if kind == schema.KindArchive {
		arch, f := probeArchive(path, b)
		if f != nil {
			return nil, f
		}
		mint.ArchiveDepthMax = arch.DepthMax
		mint.NestedArchiveCount = arch.NestedCount
		mint.BoundednessMarkers = arch.Markers
	}

	if kind != schema.KindNative && kind != schema.KindArchive && !isBinaryContent(b) {
		mint.ExternalRefs = extractExternalRefs(string(b))
		if strings.Contains(string(b), "-----BEGIN") && strings.Contains(string(b), "SIGNATURE") {
			mint.Signing.SignaturePresent = true
		}
	}

	mint.Normalize()
	e.logger.Debug("minted file artifact", "kind", kind, "bytes", size)
	return &Result{Mint: mint, AdapterClass: adapterClassFor(kind)}, nil
}

func adapterClassFor(kind string) string {
	switch kind {
	case schema.KindArchive:
		return "archive"
	case schema.KindEmail:
		return "email"
	case schema.KindContainer:
		return "container"
	case schema.KindHTML:
		return "web"
	default:
		return "generic"
	}
}
