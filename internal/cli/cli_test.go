package cli

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diblac17-eng/weftend/internal/reason"
	"github.com/diblac17-eng/weftend/internal/schema"
)

// execWeftend drives the root command the way main does and returns the
// process exit code plus captured stdout.
func execWeftend(t *testing.T, args ...string) (int, string) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(context.Background())
	code := reason.ExitSuccess
	if err != nil {
		var rerr *reason.Error
		var action *actionExit
		switch {
		case errors.As(err, &rerr):
			code = rerr.Exit
		case errors.As(err, &action):
			code = action.code
		default:
			code = reason.ExitError
		}
	}
	return code, out.String()
}

func safeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("nothing to see"), 0644))
	return dir
}

func TestCLI_SafeRunThenCompareSame(t *testing.T) {
	input := safeFixture(t)
	base := t.TempDir()
	leftRoot := filepath.Join(base, "left")
	rightRoot := filepath.Join(base, "right")

	code, _ := execWeftend(t, "safe-run", input, "--out", leftRoot, "--profile", "web")
	require.Equal(t, 0, code)
	code, _ = execWeftend(t, "safe-run", input, "--out", rightRoot, "--profile", "web")
	require.Equal(t, 0, code)

	compareOut := filepath.Join(base, "cmp")
	code, _ = execWeftend(t, "compare", leftRoot, rightRoot, "--out", compareOut)
	require.Equal(t, 0, code)

	b, err := os.ReadFile(filepath.Join(compareOut, "compare_receipt.json"))
	require.NoError(t, err)
	var rec schema.CompareReceipt
	require.NoError(t, json.Unmarshal(b, &rec))
	assert.Equal(t, "SAME", rec.Verdict)
	assert.Empty(t, rec.Buckets)

	report, err := os.ReadFile(filepath.Join(compareOut, "compare_report.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(report), "evidence.verdict=[POL] SAME")
}

func TestCLI_CompareOutOverlapsInput(t *testing.T) {
	input := safeFixture(t)
	base := t.TempDir()
	leftRoot := filepath.Join(base, "left")
	rightRoot := filepath.Join(base, "right")

	code, _ := execWeftend(t, "safe-run", input, "--out", leftRoot, "--profile", "web")
	require.Equal(t, 0, code)
	code, _ = execWeftend(t, "safe-run", input, "--out", rightRoot, "--profile", "web")
	require.Equal(t, 0, code)

	code, _ = execWeftend(t, "compare", leftRoot, rightRoot, "--out", leftRoot)
	assert.Equal(t, reason.ExitViolated, code)

	code, _ = execWeftend(t, "compare", leftRoot, rightRoot, "--out", filepath.Join(leftRoot, "nested"))
	assert.Equal(t, reason.ExitViolated, code)
}

func TestCLI_UnsupportedProfile(t *testing.T) {
	code, _ := execWeftend(t, "examine", safeFixture(t),
		"--out", filepath.Join(t.TempDir(), "out"), "--profile", "lunar")
	assert.Equal(t, reason.ExitViolated, code)
}

func TestCLI_AdapterList(t *testing.T) {
	code, out := execWeftend(t, "adapter", "list")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, `"schema":"weftend.adapterList/0"`)
	assert.Contains(t, out, `"name":"generic"`)
}

func TestCLI_AdapterDoctorStrictUnknownToken(t *testing.T) {
	t.Setenv("WEFTEND_ADAPTER_DISABLE", "mystery")

	code, _ := execWeftend(t, "adapter", "doctor", "--strict")
	assert.Equal(t, reason.ExitViolated, code)

	code, out := execWeftend(t, "adapter", "doctor", "--strict=false")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "ADAPTER_DOCTOR_STRICT_POLICY_UNKNOWN_TOKEN")
}

func TestCLI_AdapterDoctorWritePolicy(t *testing.T) {
	t.Setenv("WEFTEND_ADAPTER_DISABLE", "archive")

	policyPath := filepath.Join(t.TempDir(), "maintenance.json")
	code, _ := execWeftend(t, "adapter", "doctor", "--write-policy", policyPath)
	assert.Equal(t, 0, code)

	b, err := os.ReadFile(policyPath)
	require.NoError(t, err)
	var doc schema.AdapterMaintenance
	require.NoError(t, json.Unmarshal(b, &doc))
	assert.Equal(t, schema.SchemaAdapterMaintenance, doc.Schema)
	assert.Equal(t, []string{"archive"}, doc.DisabledAdapters)
}

func TestCLI_ExportJSON(t *testing.T) {
	input := safeFixture(t)
	root := filepath.Join(t.TempDir(), "run")
	code, _ := execWeftend(t, "safe-run", input, "--out", root, "--profile", "web")
	require.Equal(t, 0, code)

	t.Run("stdout", func(t *testing.T) {
		code, out := execWeftend(t, "export-json", root, "--format", "summary")
		assert.Equal(t, 0, code)
		assert.Contains(t, out, `"schema":"weftend.normalizedSummary/0"`)
	})

	t.Run("file", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "normalized_summary_v0.json")
		code, _ := execWeftend(t, "export-json", root, "--format", "summary", "--out", out)
		assert.Equal(t, 0, code)
		b, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.True(t, bytes.HasSuffix(b, []byte("\n")))
	})

	t.Run("conflicting out", func(t *testing.T) {
		code, _ := execWeftend(t, "export-json", root, "--format", "summary",
			"--out", filepath.Join(root, "safe_run_receipt.json"))
		assert.Equal(t, reason.ExitViolated, code)
	})

	t.Run("unsupported format", func(t *testing.T) {
		code, _ := execWeftend(t, "export-json", root, "--format", "yaml")
		assert.Equal(t, reason.ExitViolated, code)
	})
}

func TestCLI_Summarize(t *testing.T) {
	input := safeFixture(t)
	root := filepath.Join(t.TempDir(), "run")
	code, _ := execWeftend(t, "safe-run", input, "--out", root, "--profile", "web")
	require.Equal(t, 0, code)

	code, out := execWeftend(t, "summarize", root)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "weftend summary")
	assert.Contains(t, out, "ALLOW:NONE")
}

func TestCLI_TicketPack(t *testing.T) {
	input := safeFixture(t)
	root := filepath.Join(t.TempDir(), "run")
	code, _ := execWeftend(t, "safe-run", input, "--out", root, "--profile", "web")
	require.Equal(t, 0, code)

	packOut := filepath.Join(t.TempDir(), "pack")
	code, _ = execWeftend(t, "ticket-pack", root, "--out", packOut, "--zip")
	require.Equal(t, 0, code)

	_, err := os.Stat(filepath.Join(packOut, "ticket_pack", "safe_run_receipt.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(packOut, "ticket_pack.zip"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(packOut, "operator_receipt.json"))
	assert.NoError(t, err)
}

func TestCLI_LicenseIssueVerify(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	dir := t.TempDir()

	keyPath := filepath.Join(dir, "key.json")
	seed := priv.Seed()
	require.NoError(t, os.WriteFile(keyPath, []byte(
		`{"alg":"sig.ed25519.v0","key":"`+hex.EncodeToString(seed)+`"}`), 0600))
	pubPath := filepath.Join(dir, "pub.json")
	require.NoError(t, os.WriteFile(pubPath, []byte(
		`{"alg":"sig.ed25519.v0","key":"`+hex.EncodeToString(pub)+`"}`), 0644))

	licensePath := filepath.Join(dir, "license.json")
	code, _ := execWeftend(t, "license", "issue", "--key", keyPath, "--out", licensePath, "--licensee", "acme")
	require.Equal(t, 0, code)

	code, out := execWeftend(t, "license", "verify", "--key", pubPath, licensePath)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "PASS")

	t.Run("out conflicts key", func(t *testing.T) {
		code, _ := execWeftend(t, "license", "issue", "--key", keyPath, "--out", keyPath, "--licensee", "acme")
		assert.Equal(t, reason.ExitViolated, code)
	})

	t.Run("tampered licensee fails", func(t *testing.T) {
		b, err := os.ReadFile(licensePath)
		require.NoError(t, err)
		tampered := bytes.ReplaceAll(b, []byte("acme"), []byte("evil"))
		tamperedPath := filepath.Join(dir, "tampered.json")
		require.NoError(t, os.WriteFile(tamperedPath, tampered, 0644))

		code, out := execWeftend(t, "license", "verify", "--key", pubPath, tamperedPath)
		assert.Equal(t, reason.ExitViolated, code)
		assert.Contains(t, out, "FAIL")
	})
}

func TestCLI_Version(t *testing.T) {
	code, out := execWeftend(t, "version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "weftend")
	assert.Contains(t, out, "build identity:")
}
