package compare

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diblac17-eng/weftend/internal/digest"
	"github.com/diblac17-eng/weftend/internal/evidence"
	"github.com/diblac17-eng/weftend/internal/reason"
	"github.com/diblac17-eng/weftend/internal/schema"
	"github.com/diblac17-eng/weftend/internal/testutil"
)

func testBuild() digest.Build {
	return digest.Build{
		Algo:   "sha256",
		Digest: digest.ComputeArtifactDigestV0([]byte("compare-test")),
		Source: string(digest.BuildSourceExecutable),
	}
}

func mintFixture() *schema.MintPackage {
	m := &schema.MintPackage{
		Schema:            schema.SchemaMint,
		ArtifactKind:      schema.KindText,
		TargetKind:        schema.TargetWeb,
		InputDigest:       digest.ComputeArtifactDigestV0([]byte("artifact")),
		TotalFiles:        3,
		TotalBytesBounded: 100,
		FileCountsByKind:  map[string]int64{schema.KindText: 3},
	}
	m.Normalize()
	return m
}

// commitRoot writes a committed evidence root holding one safe-run receipt.
func commitRoot(t *testing.T, root string, mutate func(*schema.SafeRunReceipt)) {
	t.Helper()
	r := &schema.SafeRunReceipt{
		Header:          schema.NewHeader(schema.SchemaSafeRunReceipt, testBuild()),
		AnalysisVerdict: schema.VerdictAllow,
		Action:          schema.ActionApprove,
		ArtifactDigest:  digest.ComputeArtifactDigestV0([]byte("artifact")),
		TopReasonCodes:  []string{},
		Mint:            mintFixture(),
		Warnings:        []string{},
	}
	if mutate != nil {
		mutate(r)
	}
	w, werr := evidence.NewWriter(root, testBuild(), evidence.Options{})
	require.Nil(t, werr)
	require.NoError(t, w.StageReceipt("safe_run_receipt.json", "safe_run_receipt", r))
	_, cerr := w.Commit()
	require.Nil(t, cerr)
}

func TestLoadSide_Missing(t *testing.T) {
	t.Parallel()

	_, err := LoadSide(filepath.Join(t.TempDir(), "absent"), SideLeft)
	require.NotNil(t, err)
	assert.Equal(t, reason.CompareLeftReceiptMissing, err.Code)

	_, err = LoadSide(filepath.Join(t.TempDir(), "absent"), SideRight)
	require.NotNil(t, err)
	assert.Equal(t, reason.CompareRightReceiptMissing, err.Code)
}

func TestLoadSide_ReadsCommittedRoot(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "run")
	commitRoot(t, root, nil)

	src, err := LoadSide(root, SideLeft)
	require.Nil(t, err)
	require.NotNil(t, src.SafeRun)
	require.NotNil(t, src.Operator)
	assert.Equal(t, testBuild(), src.Build)
	assert.Equal(t, []string{"operator_receipt", "safe_run_receipt"}, src.ReceiptKinds)
}

func TestLoadSide_OldContract(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	// A hand-written receipt without weftendBuild predates the contract.
	require.NoError(t, os.WriteFile(filepath.Join(root, "safe_run_receipt.json"), []byte(
		`{"schema":"weftend.safeRunReceipt/0","schemaVersion":0,"analysisVerdict":"ALLOW","action":"APPROVE"}`), 0644))

	_, err := LoadSide(root, SideLeft)
	require.NotNil(t, err)
	assert.Equal(t, reason.ReceiptOldContract, err.Code)
}

func TestLoadSide_FallbackBuild(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.json"), []byte(`{"schema":"other/0"}`), 0644))

	src, err := LoadSide(root, SideRight)
	require.Nil(t, err)
	assert.Equal(t, "fnv1a32", src.Build.Algo)
	assert.Contains(t, src.Build.ReasonCodes, string(reason.BuildDigestUnavailable))
}

func TestCompare_SameRoots(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	leftRoot := filepath.Join(base, "left")
	rightRoot := filepath.Join(base, "right")
	commitRoot(t, leftRoot, nil)
	commitRoot(t, rightRoot, nil)

	l, r, err := Load(leftRoot, rightRoot)
	require.Nil(t, err)

	delta := Diff(Normalize(l), Normalize(r))
	assert.Equal(t, "SAME", delta.Verdict)
	assert.Empty(t, delta.Buckets)

	rec := delta.Receipt(testBuild())
	assert.Empty(t, rec.Validate())
	assert.Equal(t, "SAME", rec.Verdict)
}

func TestDiff_Buckets(t *testing.T) {
	t.Parallel()

	base := func(t *testing.T) *Summary {
		root := filepath.Join(t.TempDir(), "r")
		commitRoot(t, root, nil)
		src, err := LoadSide(root, SideLeft)
		require.Nil(t, err)
		return Normalize(src)
	}

	tests := []struct {
		name   string
		mutate func(*Summary)
		want   string
	}{
		{"kind", func(s *Summary) { s.ArtifactKind = schema.KindScript }, BucketKindProfile},
		{"content", func(s *Summary) { s.TotalFiles++ }, BucketContent},
		{"refs", func(s *Summary) { s.ExternalRefCount++ }, BucketExternalRefs},
		{"digest", func(s *Summary) { s.ArtifactDigest = digest.ComputeArtifactDigestV0([]byte("other")) }, BucketDigest},
		{"reasons", func(s *Summary) { s.ReasonCodes = []string{"CAP_DENY_NET"} }, BucketReasons},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l, r := base(t), base(t)
			tt.mutate(r)
			delta := Diff(l, r)
			assert.Equal(t, "CHANGED", delta.Verdict)
			assert.Contains(t, delta.Buckets, tt.want)
		})
	}
}

func TestNormalize_ReasonUnionAndDomains(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "r")
	commitRoot(t, root, func(r *schema.SafeRunReceipt) {
		r.AnalysisVerdict = schema.VerdictDeny
		r.Action = schema.ActionQueue
		r.TopReasonCodes = []string{"CAP_DENY_NET"}
		r.Execute = &schema.ExecuteRecord{Attempted: true, Verdict: schema.VerdictWithheld, ReasonCodes: []string{"HOST_ENTRY_UNSUPPORTED", "CAP_DENY_NET"}}
		r.Mint.ExternalRefs = []string{
			"https://a.example/one",
			"https://a.example/two",
			"https://b.example/x",
		}
	})

	src, err := LoadSide(root, SideLeft)
	require.Nil(t, err)
	s := Normalize(src)

	assert.Equal(t, "DENY:WITHHELD", s.Result)
	assert.Equal(t, []string{"CAP_DENY_NET", "HOST_ENTRY_UNSUPPORTED"}, s.ReasonCodes)
	assert.Equal(t, int64(3), s.ExternalRefCount)
	assert.Equal(t, int64(2), s.UniqueDomainCount)
	assert.Equal(t, []string{"a.example", "b.example"}, s.TopDomains)
}

func TestReport_Golden(t *testing.T) {
	root := filepath.Join(t.TempDir(), "r")
	commitRoot(t, root, nil)
	src, err := LoadSide(root, SideLeft)
	require.Nil(t, err)

	s := Normalize(src)
	delta := Diff(s, s)
	testutil.Golden(t, "compare_report_same", []byte(delta.Report()))
}

func TestReport_ASCIIOnly(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "r")
	commitRoot(t, root, nil)
	src, err := LoadSide(root, SideLeft)
	require.Nil(t, err)
	s := Normalize(src)
	for _, c := range Diff(s, s).Report() {
		assert.Less(t, int(c), 128, "report must be ASCII only")
	}
}
