package evidence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diblac17-eng/weftend/internal/digest"
	"github.com/diblac17-eng/weftend/internal/reason"
	"github.com/diblac17-eng/weftend/internal/schema"
)

func testBuild() digest.Build {
	return digest.Build{
		Algo:   "sha256",
		Digest: digest.ComputeArtifactDigestV0([]byte("writer-test")),
		Source: string(digest.BuildSourceExecutable),
	}
}

func safeRunFixture() *schema.SafeRunReceipt {
	return &schema.SafeRunReceipt{
		Header:          schema.NewHeader(schema.SchemaSafeRunReceipt, testBuild()),
		AnalysisVerdict: schema.VerdictAllow,
		Action:          schema.ActionApprove,
		ArtifactDigest:  digest.ComputeArtifactDigestV0([]byte("artifact")),
		TopReasonCodes:  []string{},
		Warnings:        []string{},
	}
}

func TestWriter_CommitListsEveryFile(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "out")
	w, werr := NewWriter(root, testBuild(), Options{})
	require.Nil(t, werr)

	require.NoError(t, w.StageReceipt("safe_run_receipt.json", "safe_run_receipt", safeRunFixture()))
	require.NoError(t, w.StageText("disclosure.txt", "disclosure", "no capabilities requested\n"))

	op, cerr := w.Commit()
	require.Nil(t, cerr)
	assert.Empty(t, op.Warnings)

	// Every regular file except the operator receipt appears exactly once
	// with a matching digest.
	listed := map[string]string{}
	for _, e := range op.Receipts {
		_, dup := listed[e.RelPath]
		assert.False(t, dup, "duplicate entry %s", e.RelPath)
		listed[e.RelPath] = e.Digest
	}
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		require.NoError(t, err)
		if d.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		rel = filepath.ToSlash(rel)
		if rel == "operator_receipt.json" {
			return nil
		}
		b, readErr := os.ReadFile(path)
		require.NoError(t, readErr)
		assert.Equal(t, digest.ComputeArtifactDigestV0(b), listed[rel], rel)
		delete(listed, rel)
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, listed, "operator receipt lists files that do not exist")

	// No stage residue.
	_, statErr := os.Stat(root + ".stage")
	assert.True(t, os.IsNotExist(statErr))

	// The privacy lint result was swept in.
	b, readErr := os.ReadFile(filepath.Join(root, "weftend", "privacy_lint_v0.json"))
	require.NoError(t, readErr)
	var lint schema.PrivacyLintResult
	require.NoError(t, json.Unmarshal(b, &lint))
	assert.Equal(t, "PASS", lint.Verdict)
}

func TestWriter_CommitIsDeterministic(t *testing.T) {
	t.Parallel()

	emit := func(root string) []byte {
		w, werr := NewWriter(root, testBuild(), Options{})
		require.Nil(t, werr)
		require.NoError(t, w.StageReceipt("safe_run_receipt.json", "safe_run_receipt", safeRunFixture()))
		_, cerr := w.Commit()
		require.Nil(t, cerr)
		b, err := os.ReadFile(filepath.Join(root, "operator_receipt.json"))
		require.NoError(t, err)
		return b
	}

	r1 := emit(filepath.Join(t.TempDir(), "a"))
	r2 := emit(filepath.Join(t.TempDir(), "b"))
	assert.Equal(t, r1, r2, "identical runs must produce byte-identical operator receipts")
}

func TestWriter_AbortLeavesRootUntouched(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.MkdirAll(root, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep.txt"), []byte("keep"), 0644))

	w, werr := NewWriter(root, testBuild(), Options{})
	require.Nil(t, werr)
	require.NoError(t, w.StageText("new.txt", "text", "staged"))
	w.Abort()

	b, err := os.ReadFile(filepath.Join(root, "keep.txt"))
	require.NoError(t, err)
	assert.Equal(t, "keep", string(b))
	_, statErr := os.Stat(root + ".stage")
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(root, "new.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestWriter_InvalidReceiptAborts(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "out")
	w, werr := NewWriter(root, testBuild(), Options{})
	require.Nil(t, werr)

	bad := safeRunFixture()
	bad.Action = "MAYBE"
	require.NoError(t, w.StageReceipt("safe_run_receipt.json", "safe_run_receipt", bad))

	_, cerr := w.Commit()
	require.NotNil(t, cerr)
	assert.Equal(t, reason.ExitViolated, cerr.Exit)
	_, statErr := os.Stat(root)
	assert.True(t, os.IsNotExist(statErr), "aborted commit must not create the root")
}

func TestWriter_OrphanWarning(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.MkdirAll(root, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.txt"), []byte("stray"), 0644))

	w, werr := NewWriter(root, testBuild(), Options{})
	require.Nil(t, werr)
	require.NoError(t, w.StageReceipt("safe_run_receipt.json", "safe_run_receipt", safeRunFixture()))

	op, cerr := w.Commit()
	require.Nil(t, cerr)
	assert.Contains(t, op.Warnings, string(reason.SafeRunEvidenceOrphanOutput))

	// The pre-existing content was replaced, not merged.
	_, statErr := os.Stat(filepath.Join(root, "stray.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestWriter_RemovesLeftoverStage(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "out")
	stale := root + ".stage"
	require.NoError(t, os.MkdirAll(stale, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(stale, "stale.txt"), []byte("stale"), 0644))

	w, werr := NewWriter(root, testBuild(), Options{})
	require.Nil(t, werr)
	require.NoError(t, w.StageReceipt("safe_run_receipt.json", "safe_run_receipt", safeRunFixture()))
	op, cerr := w.Commit()
	require.Nil(t, cerr)

	for _, e := range op.Receipts {
		assert.NotEqual(t, "stale.txt", e.RelPath)
	}
}

func TestNewWriter_RejectsBadRoots(t *testing.T) {
	t.Parallel()

	t.Run("dot", func(t *testing.T) {
		t.Parallel()
		_, err := NewWriter(".", testBuild(), Options{})
		require.NotNil(t, err)
		assert.Equal(t, reason.ExitViolated, err.Exit)
	})

	t.Run("existing file", func(t *testing.T) {
		t.Parallel()
		f := filepath.Join(t.TempDir(), "f")
		require.NoError(t, os.WriteFile(f, []byte("x"), 0644))
		_, err := NewWriter(f, testBuild(), Options{NotDirectoryCode: reason.CompareOutPathNotDirectory})
		require.NotNil(t, err)
		assert.Equal(t, reason.CompareOutPathNotDirectory, err.Code)
	})

	t.Run("missing parent", func(t *testing.T) {
		t.Parallel()
		_, err := NewWriter(filepath.Join(t.TempDir(), "a", "b", "c"), testBuild(), Options{})
		require.NotNil(t, err)
		assert.Equal(t, reason.SafeRunOutPathParentNotDirectory, err.Code)
	})
}

func TestCheckCompareRoots(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	left := filepath.Join(base, "left")
	right := filepath.Join(base, "right")

	assert.Nil(t, CheckCompareRoots(filepath.Join(base, "out"), left, right))

	for _, out := range []string{left, filepath.Join(left, "sub"), base} {
		err := CheckCompareRoots(out, left, right)
		require.NotNil(t, err, out)
		assert.Equal(t, reason.CompareOutConflictsInput, err.Code)
	}
}

func TestLint(t *testing.T) {
	t.Parallel()

	t.Run("clean tree passes", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "ok.txt"), []byte("relative/path only"), 0644))
		res := Lint(dir)
		assert.Equal(t, "PASS", res.Verdict)
		assert.Empty(t, res.ReasonCodes)
	})

	t.Run("leaks fail", func(t *testing.T) {
		t.Parallel()
		tests := []struct {
			name    string
			content string
			code    reason.Code
		}{
			{"drive letter", `seen at C:\Temp\x`, reason.PrivacyLintPathLeak},
			{"users path", "/Users/someone/artifact", reason.PrivacyLintPathLeak},
			{"home path", "/home/someone/artifact", reason.PrivacyLintPathLeak},
			{"env marker", "HOME=/somewhere", reason.PrivacyLintEnvLeak},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()
				dir := t.TempDir()
				require.NoError(t, os.WriteFile(filepath.Join(dir, "leak.json"), []byte(tt.content), 0644))
				res := Lint(dir)
				assert.Equal(t, "FAIL", res.Verdict)
				assert.Contains(t, res.ReasonCodes, string(tt.code))
			})
		}
	})

	t.Run("non text files ignored", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "blob.bin"), []byte("/home/x"), 0644))
		assert.Equal(t, "PASS", Lint(dir).Verdict)
	})
}
