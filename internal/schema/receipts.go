package schema

import (
	"strings"

	"github.com/diblac17-eng/weftend/internal/canon"
	"github.com/diblac17-eng/weftend/internal/digest"
	"github.com/diblac17-eng/weftend/internal/reason"
)

// ExecuteRecord is the optional execution half of a safe-run: whether the
// sandbox was invoked, its verdict, and the reason codes it returned.
type ExecuteRecord struct {
	Attempted   bool     `json:"attempted"`
	Verdict     string   `json:"verdict,omitempty"`
	ReasonCodes []string `json:"reasonCodes"`
}

// SafeRunReceipt records an intake plus the optional execute verdict.
type SafeRunReceipt struct {
	Header
	AnalysisVerdict string         `json:"analysisVerdict"`
	Action          string         `json:"action"`
	TopReasonCodes  []string       `json:"topReasonCodes"`
	ArtifactDigest  string         `json:"artifactDigest"`
	PolicyDigest    string         `json:"policyDigest,omitempty"`
	Mint            *MintPackage   `json:"mint,omitempty"`
	Execute         *ExecuteRecord `json:"execute,omitempty"`
	Warnings        []string       `json:"warnings"`
}

// RunReceipt is the full strict/compatible/legacy mode record.
type RunReceipt struct {
	Header
	Mode           string       `json:"mode"`
	Decision       Decision     `json:"decision"`
	ArtifactDigest string       `json:"artifactDigest"`
	PolicyDigest   string       `json:"policyDigest"`
	Mint           *MintPackage `json:"mint"`
	Warnings       []string     `json:"warnings"`
}

// HostRunReceipt is the sandbox execution outcome returned by the host
// collaborator. It carries digests of the bounded captured streams, never
// the streams themselves, and no wall-clock fields.
type HostRunReceipt struct {
	Header
	Entry        string   `json:"entry"`
	Verdict      string   `json:"verdict"`
	ExitStatus   int64    `json:"exitStatus"`
	StdoutDigest string   `json:"stdoutDigest"`
	StderrDigest string   `json:"stderrDigest"`
	ReasonCodes  []string `json:"reasonCodes"`
}

// CompareSide is the per-side digest summary embedded in a compare receipt.
// Only content identity crosses into the receipt; root paths never do.
type CompareSide struct {
	ArtifactDigest string   `json:"artifactDigest"`
	PolicyDigest   string   `json:"policyDigest,omitempty"`
	Result         string   `json:"result"`
	ReasonCodes    []string `json:"reasonCodes"`
}

// CompareReceipt is the SAME/CHANGED summary with change buckets.
type CompareReceipt struct {
	Header
	Verdict     string      `json:"verdict"`
	Buckets     []string    `json:"buckets"`
	Left        CompareSide `json:"left"`
	Right       CompareSide `json:"right"`
	ReasonCodes []string    `json:"reasonCodes"`
}

// OperatorEntry is one row of the operator receipt's file table.
type OperatorEntry struct {
	RelPath string `json:"relPath"`
	Kind    string `json:"kind"`
	Digest  string `json:"digest"`
}

// OperatorReceipt aggregates the digest of every evidence file in an output
// root. After finalize, every regular file under the root appears in
// Receipts exactly once with a matching sha256.
type OperatorReceipt struct {
	Header
	Receipts []OperatorEntry `json:"receipts"`
	Warnings []string        `json:"warnings"`
}

// AdapterMaintenance is the on-disk maintenance policy document read from
// WEFTEND_ADAPTER_DISABLE_FILE.
type AdapterMaintenance struct {
	Schema           string   `json:"schema"`
	DisabledAdapters []string `json:"disabledAdapters"`
}

// PrivacyLintResult is written as weftend/privacy_lint_v0.json after the
// post-finalize sweep.
type PrivacyLintResult struct {
	Schema      string   `json:"schema"`
	Verdict     string   `json:"verdict"`
	ReasonCodes []string `json:"reasonCodes"`
}

// validateHeader checks the shared receipt prefix against the expected
// schema id. A schemaVersion other than 0 or a missing weftendBuild is the
// old-contract case; a malformed digest is a schema failure. An absent
// schemaVersion key decodes as 0 and is not told apart here.
func validateHeader(h Header, want string, invalid reason.Code) []reason.Code {
	var issues []reason.Code
	if h.Schema != want {
		issues = append(issues, invalid)
	}
	if h.SchemaVersion != SchemaVersion || h.WeftendBuild.Digest == "" {
		issues = append(issues, reason.ReceiptOldContract)
	}
	if h.ReceiptDigest != digest.ZeroDigest && !digest.IsSha256(h.ReceiptDigest) {
		issues = append(issues, invalid)
	}
	return issues
}

var validActions = map[string]bool{
	ActionApprove: true, ActionQueue: true, ActionReject: true, ActionHold: true,
}

var validVerdicts = map[string]bool{
	VerdictAllow: true, VerdictDeny: true, VerdictWithheld: true,
}

// Validate checks the safe-run receipt shape.
func (r *SafeRunReceipt) Validate() []reason.Code {
	issues := validateHeader(r.Header, SchemaSafeRunReceipt, "SAFE_RUN_RECEIPT_INVALID")
	if !validVerdicts[r.AnalysisVerdict] {
		issues = append(issues, "SAFE_RUN_RECEIPT_INVALID")
	}
	if !validActions[r.Action] {
		issues = append(issues, "SAFE_RUN_RECEIPT_INVALID")
	}
	if !digest.IsSha256(r.ArtifactDigest) {
		issues = append(issues, "SAFE_RUN_RECEIPT_INVALID")
	}
	if r.Mint != nil {
		issues = append(issues, r.Mint.Validate()...)
	}
	return issues
}

var validModes = map[string]bool{"strict": true, "compatible": true, "legacy": true}

// Validate checks the run receipt shape.
func (r *RunReceipt) Validate() []reason.Code {
	issues := validateHeader(r.Header, SchemaRunReceipt, "RUN_RECEIPT_INVALID")
	if !validModes[r.Mode] {
		issues = append(issues, "RUN_RECEIPT_INVALID")
	}
	if !validActions[r.Decision.Action] || !validVerdicts[r.Decision.Verdict] {
		issues = append(issues, "RUN_RECEIPT_INVALID")
	}
	if r.Mint == nil {
		issues = append(issues, "RUN_RECEIPT_INVALID")
	} else {
		issues = append(issues, r.Mint.Validate()...)
	}
	return issues
}

// Validate checks the host-run receipt shape.
func (r *HostRunReceipt) Validate() []reason.Code {
	issues := validateHeader(r.Header, SchemaHostRunReceipt, "HOST_RUN_RECEIPT_INVALID")
	if !validVerdicts[r.Verdict] {
		issues = append(issues, "HOST_RUN_RECEIPT_INVALID")
	}
	return issues
}

// Validate checks the compare receipt shape.
func (r *CompareReceipt) Validate() []reason.Code {
	issues := validateHeader(r.Header, SchemaCompareReceipt, "COMPARE_RECEIPT_INVALID")
	if r.Verdict != "SAME" && r.Verdict != "CHANGED" {
		issues = append(issues, "COMPARE_RECEIPT_INVALID")
	}
	return issues
}

// Validate checks the operator receipt shape, including the CompareV0
// ordering of the file table.
func (r *OperatorReceipt) Validate() []reason.Code {
	issues := validateHeader(r.Header, SchemaOperatorReceipt, "OPERATOR_RECEIPT_INVALID")
	for i, e := range r.Receipts {
		if e.RelPath == "" || !digest.IsSha256(e.Digest) {
			issues = append(issues, "OPERATOR_RECEIPT_INVALID")
			break
		}
		if i > 0 && canon.CompareV0(r.Receipts[i-1].RelPath, e.RelPath) >= 0 {
			issues = append(issues, "OPERATOR_RECEIPT_INVALID")
			break
		}
	}
	return issues
}

// Validate checks the maintenance document shape. Tokens must be lowercase
// adapter names.
func (m *AdapterMaintenance) Validate() []reason.Code {
	if m.Schema != SchemaAdapterMaintenance {
		return []reason.Code{reason.AdapterPolicyFileInvalid}
	}
	for _, a := range m.DisabledAdapters {
		if a == "" || a != strings.ToLower(a) {
			return []reason.Code{reason.AdapterPolicyFileInvalid}
		}
	}
	return nil
}
