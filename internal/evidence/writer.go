// Package evidence implements the staged atomic output finalizer. A run
// owns exactly one evidence root; every file is written into <root>.stage,
// validated, digested into the operator receipt, and made visible by a
// single rename. Any failure before that rename leaves the user-visible
// root byte-identical to its pre-run state.
package evidence

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/diblac17-eng/weftend/internal/canon"
	"github.com/diblac17-eng/weftend/internal/digest"
	"github.com/diblac17-eng/weftend/internal/reason"
	"github.com/diblac17-eng/weftend/internal/schema"
)

// state is the writer's linear state machine.
type state int

const (
	stateStaging state = iota
	stateCommitted
	stateAborted
)

// validatable is any staged receipt that can report schema issues.
type validatable interface {
	Validate() []reason.Code
}

type stagedReceipt struct {
	relPath string
	doc     validatable
}

// Writer stages an evidence root and finalizes it atomically.
type Writer struct {
	root    string
	stage   string
	build   digest.Build
	orphan  bool
	kinds   map[string]string
	planned []stagedReceipt
	state   state
	logger  *slog.Logger
}

// Options carries the operation-specific precondition codes so that a
// safe-run, compare, or export failure surfaces under its own vocabulary.
type Options struct {
	NotDirectoryCode       reason.Code
	ParentNotDirectoryCode reason.Code
}

// NewWriter validates the target root and creates a fresh stage directory.
// A pre-existing stage from a killed run is removed first. A pre-existing
// non-empty root is remembered so the operator receipt can carry the orphan
// warning.
func NewWriter(root string, build digest.Build, opts Options) (*Writer, *reason.Error) {
	if opts.NotDirectoryCode == "" {
		opts.NotDirectoryCode = reason.SafeRunOutPathNotDirectory
	}
	if opts.ParentNotDirectoryCode == "" {
		opts.ParentNotDirectoryCode = reason.SafeRunOutPathParentNotDirectory
	}

	clean := filepath.Clean(root)
	if root == "" || clean == "." || clean == ".." {
		return nil, reason.Surface(opts.NotDirectoryCode, "output root must be a fresh directory path", nil)
	}

	orphan := false
	if info, err := os.Stat(clean); err == nil {
		if !info.IsDir() {
			return nil, reason.Surface(opts.NotDirectoryCode, "output root exists and is not a directory", nil)
		}
		entries, readErr := os.ReadDir(clean)
		if readErr != nil {
			return nil, reason.Surface(opts.NotDirectoryCode, "output root is unreadable", readErr)
		}
		orphan = len(entries) > 0
	}

	parent := filepath.Dir(clean)
	if info, err := os.Stat(parent); err != nil || !info.IsDir() {
		return nil, reason.Surface(opts.ParentNotDirectoryCode, "output root parent is not a directory", err)
	}

	stage := clean + ".stage"
	if err := os.RemoveAll(stage); err != nil {
		return nil, reason.Internal(err)
	}
	if err := os.MkdirAll(stage, 0755); err != nil {
		return nil, reason.Internal(err)
	}

	return &Writer{
		root:   clean,
		stage:  stage,
		build:  build,
		orphan: orphan,
		kinds:  map[string]string{},
		logger: slog.Default().With("component", "evidence"),
	}, nil
}

// Root returns the target root path.
func (w *Writer) Root() string { return w.root }

// Build returns the build identity receipts are minted under.
func (w *Writer) Build() digest.Build { return w.build }

// StageReceipt seals a receipt (embedding its self-digest) and stages its
// canonical bytes. The receipt is re-validated before commit.
func (w *Writer) StageReceipt(relPath, kind string, r validatable) error {
	b, _, err := schema.Seal(r)
	if err != nil {
		return err
	}
	w.planned = append(w.planned, stagedReceipt{relPath: relPath, doc: r})
	return w.StageBytes(relPath, kind, append(b, '\n'))
}

// StageJSON canonicalizes a non-receipt document and stages it with a
// trailing newline.
func (w *Writer) StageJSON(relPath, kind string, doc any) error {
	b, err := schema.CanonicalBytes(doc)
	if err != nil {
		return err
	}
	return w.StageBytes(relPath, kind, append(b, '\n'))
}

// StageText stages a plain-text evidence file.
func (w *Writer) StageText(relPath, kind, text string) error {
	return w.StageBytes(relPath, kind, []byte(text))
}

// StageBytes writes bytes under the stage using the per-file staged
// protocol: write <path>.stage, sync best-effort, rename into place. No
// partially written file is ever visible inside the stage either.
func (w *Writer) StageBytes(relPath, kind string, b []byte) error {
	if w.state != stateStaging {
		return reason.Internal(nil)
	}
	dst := filepath.Join(w.stage, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	tmp := dst + ".stage"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		return err
	}
	_ = f.Sync()
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		return err
	}
	w.kinds[filepath.ToSlash(relPath)] = kind
	return nil
}

// Commit runs the VALIDATED and DIGESTED transitions and then makes the
// root visible: every planned receipt is re-validated, the privacy lint
// sweep runs over the staged tree, the operator receipt is assembled from a
// sorted digest walk, and finally the stage is renamed over the root. The
// final rename is the only irreversible step; a pre-existing root is parked
// at <root>.prev until the rename lands and restored if it fails.
func (w *Writer) Commit() (*schema.OperatorReceipt, *reason.Error) {
	if w.state != stateStaging {
		return nil, reason.Internal(nil)
	}

	// VALIDATED
	for _, p := range w.planned {
		if issues := p.doc.Validate(); len(issues) > 0 {
			w.Abort()
			return nil, reason.Surface(issues[0], "staged receipt "+p.relPath+" failed validation", nil)
		}
	}

	// The privacy lint sweep covers everything staged so far; its result is
	// itself evidence and lands in the root.
	lint := Lint(w.stage)
	if err := w.StageJSON("weftend/privacy_lint_v0.json", "privacy_lint", &lint); err != nil {
		w.Abort()
		return nil, reason.Internal(err)
	}

	// DIGESTED
	op, err := w.assembleOperatorReceipt()
	if err != nil {
		w.Abort()
		return nil, reason.Internal(err)
	}
	if err := w.StageReceipt("operator_receipt.json", "operator_receipt", op); err != nil {
		w.Abort()
		return nil, reason.Internal(err)
	}

	// COMMITTED
	prev := w.root + ".prev"
	hadPrev := false
	if _, statErr := os.Stat(w.root); statErr == nil {
		if err := os.RemoveAll(prev); err != nil {
			w.Abort()
			return nil, reason.Internal(err)
		}
		if err := os.Rename(w.root, prev); err != nil {
			w.Abort()
			return nil, reason.Internal(err)
		}
		hadPrev = true
	}
	if err := os.Rename(w.stage, w.root); err != nil {
		if hadPrev {
			_ = os.Rename(prev, w.root)
		}
		w.Abort()
		return nil, reason.Internal(err)
	}
	if hadPrev {
		_ = os.RemoveAll(prev)
	}
	w.state = stateCommitted
	w.logger.Debug("evidence root committed", "files", len(op.Receipts)+1)
	return op, nil
}

// Abort removes the stage best-effort. The visible root is untouched.
func (w *Writer) Abort() {
	if w.state != stateStaging {
		return
	}
	_ = os.RemoveAll(w.stage)
	w.state = stateAborted
}

// assembleOperatorReceipt walks the stage in sorted path order and digests
// every regular file. The operator receipt indexes every evidence file
// other than itself.
func (w *Writer) assembleOperatorReceipt() (*schema.OperatorReceipt, error) {
	var entries []schema.OperatorEntry
	err := filepath.WalkDir(w.stage, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, relErr := filepath.Rel(w.stage, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		b, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}
		kind := w.kinds[rel]
		if kind == "" {
			kind = "text"
		}
		entries = append(entries, schema.OperatorEntry{
			RelPath: rel,
			Kind:    kind,
			Digest:  digest.ComputeArtifactDigestV0(b),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return canon.LessV0(entries[i].RelPath, entries[j].RelPath)
	})

	warnings := []string{}
	if w.orphan {
		warnings = append(warnings, string(reason.SafeRunEvidenceOrphanOutput))
	}

	return &schema.OperatorReceipt{
		Header:   schema.NewHeader(schema.SchemaOperatorReceipt, w.build),
		Receipts: entries,
		Warnings: warnings,
	}, nil
}

// CheckCompareRoots rejects an output root that equals, contains, or is
// contained by either compare input root.
func CheckCompareRoots(out, left, right string) *reason.Error {
	for _, in := range []string{left, right} {
		if pathsOverlap(out, in) {
			return reason.Surface(reason.CompareOutConflictsInput, "compare output root overlaps an input root", nil)
		}
	}
	return nil
}

func pathsOverlap(a, b string) bool {
	aa, errA := filepath.Abs(a)
	bb, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return true
	}
	aa = filepath.Clean(aa)
	bb = filepath.Clean(bb)
	if aa == bb {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(aa, bb+sep) || strings.HasPrefix(bb, aa+sep)
}
