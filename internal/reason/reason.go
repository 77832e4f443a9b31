// Package reason defines the reason-code vocabulary and the exit-code error
// type used across the evidence engine. Reason codes are the only externally
// stable description of any decision or failure; free-form messages are for
// humans on stderr and never appear in receipts.
package reason

// Code is an upper-snake-case reason-code identifier.
type Code string

// Input failures.
const (
	InputMissing    Code = "INPUT_MISSING"
	InputUnreadable Code = "INPUT_UNREADABLE"
	InputInvalid    Code = "INPUT_INVALID"
)

// Schema failures.
const (
	ReceiptOldContract      Code = "RECEIPT_OLD_CONTRACT"
	ReceiptSchemaVersionBad Code = "RECEIPT_SCHEMA_VERSION_BAD"
	MintInvalid             Code = "MINT_INVALID"
	PolicyInvalid           Code = "POLICY_INVALID"
)

// Precondition failures on output roots and flag combinations.
const (
	ProfileUnsupported Code = "PROFILE_UNSUPPORTED"
	ModeUnsupported    Code = "MODE_UNSUPPORTED"
	FormatUnsupported  Code = "FORMAT_UNSUPPORTED"

	SafeRunOutPathNotDirectory       Code = "SAFE_RUN_OUT_PATH_NOT_DIRECTORY"
	SafeRunOutPathParentNotDirectory Code = "SAFE_RUN_OUT_PATH_PARENT_NOT_DIRECTORY"
	CompareOutConflictsInput         Code = "COMPARE_OUT_CONFLICTS_INPUT"
	CompareOutPathNotDirectory       Code = "COMPARE_OUT_PATH_NOT_DIRECTORY"
	LicenseOutConflictsKey           Code = "LICENSE_OUT_CONFLICTS_KEY"
	ExportJSONOutConflictsSource     Code = "EXPORT_JSON_OUT_CONFLICTS_SOURCE"
	ExportJSONOutPathIsDirectory     Code = "EXPORT_JSON_OUT_PATH_IS_DIRECTORY"
)

// Adapter and container failures.
const (
	AdapterPolicyFileInvalid      Code = "ADAPTER_POLICY_FILE_INVALID"
	AdapterPolicyInvalid          Code = "ADAPTER_POLICY_INVALID"
	AdapterTemporarilyUnavailable Code = "ADAPTER_TEMPORARILY_UNAVAILABLE"
	AdapterUnknown                Code = "ADAPTER_UNKNOWN"

	AdapterDoctorStrictPolicyInvalid      Code = "ADAPTER_DOCTOR_STRICT_POLICY_INVALID"
	AdapterDoctorStrictPolicyUnknownToken Code = "ADAPTER_DOCTOR_STRICT_POLICY_UNKNOWN_TOKEN"
	AdapterDoctorStrictMissingPlugin      Code = "ADAPTER_DOCTOR_STRICT_MISSING_PLUGIN"

	DockerImageRefNotImmutable     Code = "DOCKER_IMAGE_REF_NOT_IMMUTABLE"
	DockerRemoteContextUnsupported Code = "DOCKER_REMOTE_CONTEXT_UNSUPPORTED"
	DockerImageNotLocal            Code = "DOCKER_IMAGE_NOT_LOCAL"
	DockerDaemonUnavailable        Code = "DOCKER_DAEMON_UNAVAILABLE"
)

// Examiner observation codes.
const (
	ZipEOCDMissing Code = "ZIP_EOCD_MISSING"
)

// Trust-algebra capability codes.
const (
	CapDenyNet      Code = "CAP_DENY_NET"
	CapDenyExec     Code = "CAP_DENY_EXEC"
	CapDenyFSWrite  Code = "CAP_DENY_FS_WRITE"
	CapWithheldExec Code = "CAP_WITHHELD_EXEC"
)

// Evidence writer and compare codes.
const (
	SafeRunEvidenceOrphanOutput Code = "SAFE_RUN_EVIDENCE_ORPHAN_OUTPUT"

	CompareLeftReceiptMissing  Code = "COMPARE_LEFT_RECEIPT_MISSING"
	CompareRightReceiptMissing Code = "COMPARE_RIGHT_RECEIPT_MISSING"
	CompareLeftReceiptInvalid  Code = "COMPARE_LEFT_RECEIPT_INVALID"
	CompareRightReceiptInvalid Code = "COMPARE_RIGHT_RECEIPT_INVALID"
)

// Release verification codes.
const (
	ReleaseManifestMissing     Code = "RELEASE_MANIFEST_MISSING"
	ReleasePublicKeyMissing    Code = "RELEASE_PUBLIC_KEY_MISSING"
	ReleaseBundleMissing       Code = "RELEASE_BUNDLE_MISSING"
	ReleaseEvidenceMissing     Code = "RELEASE_EVIDENCE_MISSING"
	ReleaseSignatureBad        Code = "RELEASE_SIGNATURE_BAD"
	ReleaseSignatureAlgUnknown Code = "RELEASE_SIGNATURE_ALG_UNKNOWN"
	ReleasePlanDigestMismatch  Code = "RELEASE_PLANDIGEST_MISMATCH"
	PolicyDigestMismatch       Code = "POLICY_DIGEST_MISMATCH"
	EvidenceHeadMismatch       Code = "EVIDENCE_HEAD_MISMATCH"
	ReleaseBuildDigestWeak     Code = "RELEASE_BUILD_DIGEST_WEAK"
)

// Host execution codes.
const (
	HostExecTimeout      Code = "HOST_EXEC_TIMEOUT"
	HostEntryUnsupported Code = "HOST_ENTRY_UNSUPPORTED"
	HostExecFailed       Code = "HOST_EXEC_FAILED"
)

// Privacy lint codes.
const (
	PrivacyLintPathLeak Code = "PRIVACY_LINT_PATH_LEAK"
	PrivacyLintEnvLeak  Code = "PRIVACY_LINT_ENV_LEAK"
)

// Build identity codes.
const (
	BuildDigestUnavailable Code = "WEFTEND_BUILD_DIGEST_UNAVAILABLE"
)

// Internal.
const (
	InternalError Code = "INTERNAL_ERROR"
)

// Strings converts a code slice to its underlying strings, for the
// stable-sort-unique helpers that operate on []string.
func Strings(codes []Code) []string {
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = string(c)
	}
	return out
}

// FromStrings converts raw strings back into codes.
func FromStrings(ss []string) []Code {
	out := make([]Code, len(ss))
	for i, s := range ss {
		out[i] = Code(s)
	}
	return out
}
