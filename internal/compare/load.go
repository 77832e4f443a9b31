// Package compare loads two evidence roots, normalizes each into a summary,
// and emits a deterministic delta with bucket classification. Nothing here
// re-examines artifacts; only committed receipts are read.
package compare

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/diblac17-eng/weftend/internal/canon"
	"github.com/diblac17-eng/weftend/internal/digest"
	"github.com/diblac17-eng/weftend/internal/reason"
	"github.com/diblac17-eng/weftend/internal/schema"
)

// Side identifies which input root a loader failure belongs to.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

func (s Side) missingCode() reason.Code {
	if s == SideLeft {
		return reason.CompareLeftReceiptMissing
	}
	return reason.CompareRightReceiptMissing
}

func (s Side) invalidCode() reason.Code {
	if s == SideLeft {
		return reason.CompareLeftReceiptInvalid
	}
	return reason.CompareRightReceiptInvalid
}

// LoadedSource is one side of a comparison: the receipts found in its root
// and the build identity chosen from them.
type LoadedSource struct {
	Root         string
	Build        digest.Build
	ReceiptKinds []string
	SafeRun      *schema.SafeRunReceipt
	Run          *schema.RunReceipt
	HostRun      *schema.HostRunReceipt
	Operator     *schema.OperatorReceipt
}

// Load reads both sides concurrently. The two loads are independent reads
// of committed roots, so concurrency cannot affect the result.
func Load(leftRoot, rightRoot string) (left, right *LoadedSource, lerr *reason.Error) {
	var g errgroup.Group
	var l, r *LoadedSource
	var le, re *reason.Error
	g.Go(func() error { l, le = LoadSide(leftRoot, SideLeft); return nil })
	g.Go(func() error { r, re = LoadSide(rightRoot, SideRight); return nil })
	_ = g.Wait()
	if le != nil {
		return nil, nil, le
	}
	if re != nil {
		return nil, nil, re
	}
	return l, r, nil
}

// LoadSide reads every receipt in an evidence root. Receipt files are
// visited in sorted path order; within a family the first receipt wins,
// which is only relevant for malformed roots.
func LoadSide(root string, side Side) (*LoadedSource, *reason.Error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, reason.Surface(side.missingCode(), "evidence root missing or not a directory", err)
	}

	var paths []string
	walkErr := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if walkErr != nil {
		return nil, reason.Surface(side.missingCode(), "evidence root unreadable", walkErr)
	}
	sort.SliceStable(paths, func(i, j int) bool { return canon.LessV0(paths[i], paths[j]) })

	src := &LoadedSource{Root: root, ReceiptKinds: []string{}}
	for _, p := range paths {
		b, readErr := os.ReadFile(p)
		if readErr != nil {
			return nil, reason.Surface(side.invalidCode(), "evidence file unreadable", readErr)
		}
		rec, decErr := schema.DecodeReceipt(b)
		if decErr != nil {
			// Non-receipt JSON (mints, lint results) lives in the same root.
			continue
		}

		// An absent schemaVersion decodes as 0, so look for the key itself.
		var keys map[string]json.RawMessage
		_ = json.Unmarshal(b, &keys)
		_, hasVersion := keys["schemaVersion"]

		h := rec.Header()
		if !hasVersion || h.SchemaVersion != schema.SchemaVersion || h.WeftendBuild.Digest == "" {
			return nil, reason.Surface(reason.ReceiptOldContract, "receipt predates the current contract", nil)
		}
		if issues := rec.Issues(); len(issues) > 0 {
			return nil, reason.Surface(side.invalidCode(), "receipt failed validation: "+issues[0], nil)
		}

		src.ReceiptKinds = append(src.ReceiptKinds, string(rec.Kind))
		switch rec.Kind {
		case schema.KindSafeRunReceipt:
			if src.SafeRun == nil {
				src.SafeRun = rec.SafeRun
			}
		case schema.KindRunReceipt:
			if src.Run == nil {
				src.Run = rec.Run
			}
		case schema.KindHostRunReceipt:
			if src.HostRun == nil {
				src.HostRun = rec.HostRun
			}
		case schema.KindOperatorReceipt:
			if src.Operator == nil {
				src.Operator = rec.Operator
			}
		}
	}
	src.ReceiptKinds = canon.StableSortUniqueV0(src.ReceiptKinds)
	src.Build = chooseBuild(src)
	return src, nil
}

// chooseBuild picks the build identity in the fixed precedence order:
// safe-run, run, host-run, operator; the fallback identity when none is
// present.
func chooseBuild(src *LoadedSource) digest.Build {
	switch {
	case src.SafeRun != nil:
		return src.SafeRun.WeftendBuild
	case src.Run != nil:
		return src.Run.WeftendBuild
	case src.HostRun != nil:
		return src.HostRun.WeftendBuild
	case src.Operator != nil:
		return src.Operator.WeftendBuild
	default:
		return digest.FallbackBuild()
	}
}
