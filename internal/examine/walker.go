package examine

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"

	"github.com/diblac17-eng/weftend/internal/canon"
	"github.com/diblac17-eng/weftend/internal/digest"
	"github.com/diblac17-eng/weftend/internal/reason"
	"github.com/diblac17-eng/weftend/internal/schema"
)

// fileObservation is the per-file record collected during a directory walk.
// The walk's concurrency never reaches the mint: observations are merged in
// CompareV0 path order after every worker has finished.
type fileObservation struct {
	relPath      string
	kind         string
	size         int64
	digest       string
	externalRefs []string
	entryHints   []string
	archive      *archiveObservation
	signature    bool
}

// examineDir walks the tree rooted at root and mints a directory artifact.
// The walk skips VCS metadata and honors a .gitignore at the root, reading
// file contents with bounded concurrency.
func (e *Examiner) examineDir(ctx context.Context, root string, opts Options) (*Result, *Failure) {
	var matcher *ignore.GitIgnore
	if gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
		matcher = gi
	}

	var rels []string
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			if matcher != nil && rel != "." && matcher.MatchesPath(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if matcher != nil && matcher.MatchesPath(rel) {
			return nil
		}
		rels = append(rels, rel)
		return nil
	})
	if walkErr != nil {
		return nil, &Failure{Code: reason.InputUnreadable, Message: "walking input tree", Precondition: true}
	}

	obs := make([]*fileObservation, len(rels))
	var mu sync.Mutex
	var failure *Failure

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, rel := range rels {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			o, f := e.observeFile(root, rel, opts)
			if f != nil {
				mu.Lock()
				if failure == nil || canon.LessV0(string(f.Code), string(failure.Code)) {
					failure = f
				}
				mu.Unlock()
				return nil
			}
			obs[i] = o
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &Failure{Code: reason.InputUnreadable, Message: "reading input tree", Precondition: true}
	}
	if failure != nil {
		return nil, failure
	}

	sort.SliceStable(obs, func(i, j int) bool { return canon.LessV0(obs[i].relPath, obs[j].relPath) })
	return e.mintFromObservations(obs, opts)
}

func (e *Examiner) observeFile(root, rel string, opts Options) (*fileObservation, *Failure) {
	b, err := os.ReadFile(filepath.Join(root, rel))
	if err != nil {
		return nil, &Failure{Code: reason.InputUnreadable, Message: "input file cannot be read", Precondition: true}
	}

	kind := classifyName(rel, isBinaryContent(b))
	o := &fileObservation{
		relPath:    rel,
		kind:       kind,
		size:       int64(len(b)),
		digest:     digest.ComputeArtifactDigestV0(b),
		entryHints: entryHints(rel),
	}

	switch kind {
	case schema.KindArchive:
		arch, f := probeArchive(rel, b)
		if f != nil {
			return nil, f
		}
		o.archive = arch
	case schema.KindNative:
	default:
		if !isBinaryContent(b) {
			o.externalRefs = extractExternalRefs(string(b))
			if strings.Contains(string(b), "-----BEGIN") && strings.Contains(string(b), "SIGNATURE") {
				o.signature = true
			}
		}
	}
	return o, nil
}

// mintFromObservations folds the sorted per-file observations into a mint.
func (e *Examiner) mintFromObservations(obs []*fileObservation, opts Options) (*Result, *Failure) {
	counts := map[string]int64{}
	var totalBytes int64
	var refs, hints, markers []string
	var depthMax, nestedCount int64
	var signature bool

	// The input digest of a tree is the digest of its canonical file table.
	table := make([]any, 0, len(obs))

	for _, o := range obs {
		counts[o.kind]++
		totalBytes += o.size
		refs = append(refs, o.externalRefs...)
		hints = append(hints, o.entryHints...)
		if o.signature {
			signature = true
		}
		if o.archive != nil {
			if o.archive.DepthMax > depthMax {
				depthMax = o.archive.DepthMax
			}
			nestedCount += o.archive.NestedCount
			markers = append(markers, o.archive.Markers...)
		}
		table = append(table, map[string]any{"p": o.relPath, "d": o.digest})
	}

	tableBytes, err := canon.MarshalV0(table)
	if err != nil {
		return nil, &Failure{Code: reason.InputInvalid, Message: "canonicalizing file table", Precondition: true}
	}

	kind := dominantKind(counts)
	if opts.ScriptHint {
		kind = schema.KindScript
	}

	mint := &schema.MintPackage{
		Schema:             schema.SchemaMint,
		ArtifactKind:       kind,
		TargetKind:         targetKindFor(opts.Profile),
		InputDigest:        digest.ComputeArtifactDigestV0(tableBytes),
		TotalFiles:         int64(len(obs)),
		TotalBytesBounded:  totalBytes,
		FileCountsByKind:   counts,
		BoundednessMarkers: markers,
		HasScripts:         counts[schema.KindScript] > 0 || opts.ScriptHint,
		HasNativeBinaries:  counts[schema.KindNative] > 0,
		HasHTML:            counts[schema.KindHTML] > 0,
		ExternalRefs:       refs,
		ArchiveDepthMax:    depthMax,
		NestedArchiveCount: nestedCount,
		Signing:            schema.SigningSummary{SignaturePresent: signature},
		EntryHints:         hints,
	}
	mint.Normalize()
	e.logger.Debug("minted directory artifact", "kind", kind, "files", len(obs))
	return &Result{Mint: mint, AdapterClass: adapterClassFor(kind)}, nil
}

// dominantKind picks the artifact kind of a tree with a fixed priority:
// the most capable content present names the artifact.
func dominantKind(counts map[string]int64) string {
	for _, k := range []string{
		schema.KindContainer, schema.KindNative, schema.KindArchive,
		schema.KindScript, schema.KindHTML, schema.KindEmail, schema.KindText,
	} {
		if counts[k] > 0 {
			return k
		}
	}
	return schema.KindOther
}
