package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diblac17-eng/weftend/internal/adapter"
	"github.com/diblac17-eng/weftend/internal/config"
	"github.com/diblac17-eng/weftend/internal/digest"
	"github.com/diblac17-eng/weftend/internal/examine"
	"github.com/diblac17-eng/weftend/internal/host"
	"github.com/diblac17-eng/weftend/internal/reason"
	"github.com/diblac17-eng/weftend/internal/schema"
)

func testDeps() Deps {
	build := digest.Build{
		Algo:   "sha256",
		Digest: digest.ComputeArtifactDigestV0([]byte("pipeline-test")),
		Source: string(digest.BuildSourceExecutable),
	}
	return Deps{
		Build:    build,
		Env:      config.Env{},
		Registry: adapter.NewRegistry(adapter.Maintenance{}, func(string) bool { return true }),
		Examiner: examine.New(),
		Host:     host.NewRunner(build, ""),
	}
}

// safeNoCaps is a fixture tree with no scripts, refs, or binaries.
func safeNoCaps(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("nothing here"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.txt"), []byte("plain data"), 0644))
	return dir
}

// netAttempt is a fixture tree whose content reaches for the network.
func netAttempt(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "beacon.txt"),
		[]byte("POST https://collector.example.com/v1/beacon"), 0644))
	return dir
}

func readSafeRunReceipt(t *testing.T, root string) *schema.SafeRunReceipt {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(root, "safe_run_receipt.json"))
	require.NoError(t, err)
	var r schema.SafeRunReceipt
	require.NoError(t, json.Unmarshal(b, &r))
	return &r
}

func TestSafeRun_NoCapsApprove(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "out")
	outcome, err := SafeRun(context.Background(), testDeps(), Options{
		Input:   safeNoCaps(t),
		Out:     out,
		Profile: schema.TargetWeb,
	})
	require.Nil(t, err)
	assert.Equal(t, 0, outcome.Exit)
	assert.Equal(t, schema.ActionApprove, outcome.Decision.Action)

	rec := readSafeRunReceipt(t, out)
	assert.Equal(t, schema.VerdictAllow, rec.AnalysisVerdict)
	assert.Empty(t, rec.TopReasonCodes)

	var op schema.OperatorReceipt
	b, rerr := os.ReadFile(filepath.Join(out, "operator_receipt.json"))
	require.NoError(t, rerr)
	require.NoError(t, json.Unmarshal(b, &op))
	assert.NotContains(t, op.Warnings, string(reason.SafeRunEvidenceOrphanOutput))
}

func TestSafeRun_NetAttemptQueues(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "out")
	outcome, err := SafeRun(context.Background(), testDeps(), Options{
		Input:   netAttempt(t),
		Out:     out,
		Profile: schema.TargetWeb,
	})
	require.Nil(t, err)
	assert.Equal(t, 10, outcome.Exit)

	rec := readSafeRunReceipt(t, out)
	assert.Equal(t, schema.ActionQueue, rec.Action)
	assert.Contains(t, rec.TopReasonCodes, string(reason.CapDenyNet))
}

func TestSafeRun_TamperedZipHolds(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("payload.txt")
	require.NoError(t, err)
	_, err = f.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	tampered := bytes.ReplaceAll(buf.Bytes(), []byte{'P', 'K', 0x05, 0x06}, []byte{'P', 'K', 0x00, 0x00})

	dir := t.TempDir()
	input := filepath.Join(dir, "tampered.zip")
	require.NoError(t, os.WriteFile(input, tampered, 0644))

	out := filepath.Join(t.TempDir(), "out")
	outcome, rerr := SafeRun(context.Background(), testDeps(), Options{
		Input:   input,
		Out:     out,
		Profile: schema.TargetGeneric,
	})
	require.Nil(t, rerr)
	assert.Equal(t, 30, outcome.Exit)

	rec := readSafeRunReceipt(t, out)
	assert.Equal(t, schema.ActionHold, rec.Action)
	assert.Contains(t, rec.TopReasonCodes, string(reason.ZipEOCDMissing))
}

func TestSafeRun_MutableContainerRef(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "out")
	outcome, err := SafeRun(context.Background(), testDeps(), Options{
		Input:   "ubuntu:latest",
		Out:     out,
		Profile: schema.TargetGeneric,
	})
	require.NotNil(t, err)
	assert.Equal(t, reason.DockerImageRefNotImmutable, err.Code)
	assert.Equal(t, reason.ExitViolated, err.Exit)
	require.NotNil(t, outcome)
	assert.Equal(t, reason.ExitViolated, outcome.Exit)

	// The denial is recorded in committed evidence even though the run
	// fails closed.
	rec := readSafeRunReceipt(t, out)
	assert.Equal(t, schema.VerdictDeny, rec.AnalysisVerdict)
	assert.Contains(t, rec.TopReasonCodes, string(reason.DockerImageRefNotImmutable))
}

func TestSafeRun_MissingInputFailsClosed(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "out")
	_, err := SafeRun(context.Background(), testDeps(), Options{
		Input: filepath.Join(t.TempDir(), "absent"),
		Out:   out,
	})
	require.NotNil(t, err)
	assert.Equal(t, reason.InputMissing, err.Code)

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "no evidence on precondition failure")
}

func TestSafeRun_WithholdExec(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "out")
	outcome, err := SafeRun(context.Background(), testDeps(), Options{
		Input:        safeNoCaps(t),
		Out:          out,
		Profile:      schema.TargetWeb,
		WithholdExec: true,
	})
	require.Nil(t, err)
	assert.Equal(t, 0, outcome.Exit)

	rec := readSafeRunReceipt(t, out)
	require.NotNil(t, rec.Execute)
	assert.False(t, rec.Execute.Attempted)
	assert.Equal(t, schema.VerdictWithheld, rec.Execute.Verdict)
}

func TestSafeRun_DisabledAdapterFailsClosed(t *testing.T) {
	t.Parallel()

	deps := testDeps()
	deps.Registry = adapter.NewRegistry(adapter.LoadMaintenance("generic", ""), func(string) bool { return true })

	out := filepath.Join(t.TempDir(), "out")
	_, err := SafeRun(context.Background(), deps, Options{Input: safeNoCaps(t), Out: out})
	require.NotNil(t, err)
	assert.Equal(t, reason.AdapterTemporarilyUnavailable, err.Code)
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRun_StrictModeWritesRunReceipt(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "out")
	outcome, err := Run(context.Background(), testDeps(), Options{
		Input:   safeNoCaps(t),
		Out:     out,
		Profile: schema.TargetWeb,
		Mode:    "strict",
	})
	require.Nil(t, err)
	assert.Equal(t, 0, outcome.Exit)

	b, rerr := os.ReadFile(filepath.Join(out, "run_receipt.json"))
	require.NoError(t, rerr)
	var rec schema.RunReceipt
	require.NoError(t, json.Unmarshal(b, &rec))
	assert.Equal(t, "strict", rec.Mode)
	assert.Empty(t, rec.Validate())

	for _, name := range []string{"intake_decision.json", "disclosure.txt", "appeal_bundle.json", "weftend_mint_v1.json"} {
		_, statErr := os.Stat(filepath.Join(out, name))
		assert.NoError(t, statErr, name)
	}
}

func TestRun_UnsupportedMode(t *testing.T) {
	t.Parallel()

	_, err := Run(context.Background(), testDeps(), Options{
		Input: safeNoCaps(t),
		Out:   filepath.Join(t.TempDir(), "out"),
		Mode:  "paranoid",
	})
	require.NotNil(t, err)
	assert.Equal(t, reason.ModeUnsupported, err.Code)
}

func TestExamine_WritesMintPair(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "out")
	outcome, err := Examine(context.Background(), testDeps(), Options{
		Input:   safeNoCaps(t),
		Out:     out,
		Profile: schema.TargetGeneric,
	})
	require.Nil(t, err)
	assert.Equal(t, 0, outcome.Exit)

	b, rerr := os.ReadFile(filepath.Join(out, "weftend_mint_v1.json"))
	require.NoError(t, rerr)
	var m schema.MintPackage
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Empty(t, m.Validate())

	txt, terr := os.ReadFile(filepath.Join(out, "weftend_mint_v1.txt"))
	require.NoError(t, terr)
	assert.True(t, strings.HasPrefix(string(txt), "weftend mint v1\n"))
}

func TestSafeRun_DeterministicReceipts(t *testing.T) {
	t.Parallel()

	input := safeNoCaps(t)
	emit := func() []byte {
		out := filepath.Join(t.TempDir(), "out")
		_, err := SafeRun(context.Background(), testDeps(), Options{
			Input: input, Out: out, Profile: schema.TargetWeb,
		})
		require.Nil(t, err)
		b, rerr := os.ReadFile(filepath.Join(out, "safe_run_receipt.json"))
		require.NoError(t, rerr)
		return b
	}
	assert.Equal(t, emit(), emit(), "identical inputs must yield byte-identical receipts")
}

func TestLoadPolicy_RoundTrip(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy(schema.TargetWeb)
	b, err := schema.CanonicalBytes(p)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "policy.json")
	require.NoError(t, os.WriteFile(path, b, 0644))

	loaded, lerr := LoadPolicy(path)
	require.Nil(t, lerr)

	id1, err := p.PolicyID()
	require.NoError(t, err)
	id2, err := loaded.PolicyID()
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
}

func TestLoadPolicy_Invalid(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "policy.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"schema":"weftend.policy/1","profile":"lunar"}`), 0644))
	_, err := LoadPolicy(path)
	require.NotNil(t, err)
	assert.Equal(t, reason.PolicyInvalid, err.Code)
	assert.Equal(t, reason.ExitViolated, err.Exit)
}
// Guard: the orphan warning flows through a pre-existing output root.
func TestSafeRun_OrphanWarning(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.MkdirAll(out, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(out, "stray.txt"), []byte("stray"), 0644))

	_, err := SafeRun(context.Background(), testDeps(), Options{
		Input: safeNoCaps(t), Out: out, Profile: schema.TargetWeb,
	})
	require.Nil(t, err)

	b, rerr := os.ReadFile(filepath.Join(out, "operator_receipt.json"))
	require.NoError(t, rerr)
	var op schema.OperatorReceipt
	require.NoError(t, json.Unmarshal(b, &op))
	assert.Contains(t, op.Warnings, string(reason.SafeRunEvidenceOrphanOutput))
}
