package schema

import "github.com/diblac17-eng/weftend/internal/reason"

// Signature algorithm identifiers accepted by the release verifier.
const (
	SigAlgEd25519 = "sig.ed25519.v0"
	SigAlgP256    = "sig.p256.v0"

	// DemoKeyPrefix marks the demo public-key format used by test fixtures:
	// a key "pub:<token>" verifies a signature "demo:<token>".
	DemoKeyPrefix = "pub:"
)

// ReleaseManifest binds a release to its plan, policy, and evidence head.
// The signature covers the canonical manifest bytes with the signature field
// set to the empty string.
type ReleaseManifest struct {
	Schema              string `json:"schema"`
	SchemaVersion       int    `json:"schemaVersion"`
	SigAlg              string `json:"sigAlg"`
	Signature           string `json:"signature"`
	PlanDigest          string `json:"planDigest"`
	PolicyDigest        string `json:"policyDigest"`
	EvidenceJournalHead string `json:"evidenceJournalHead"`
}

// ReleasePublicKey declares the key the manifest signature verifies against.
// Key is hex-encoded raw key material for the real algorithms, or the
// "pub:" demo form.
type ReleasePublicKey struct {
	Schema        string `json:"schema"`
	SchemaVersion int    `json:"schemaVersion"`
	Alg           string `json:"alg"`
	Key           string `json:"key"`
}

// RuntimeBundlePlan is the plan half of a runtime bundle.
type RuntimeBundlePlan struct {
	PlanHash string `json:"planHash"`
}

// RuntimeBundleTrust is the trust half of a runtime bundle.
type RuntimeBundleTrust struct {
	PolicyID string `json:"policyId"`
}

// RuntimeBundle is the runtime_bundle.json document in a release directory.
type RuntimeBundle struct {
	Schema        string             `json:"schema"`
	SchemaVersion int                `json:"schemaVersion"`
	Plan          RuntimeBundlePlan  `json:"plan"`
	Trust         RuntimeBundleTrust `json:"trust"`
}

// Validate checks the manifest shape.
func (m *ReleaseManifest) Validate() []reason.Code {
	var issues []reason.Code
	if m.Schema != SchemaReleaseManifest || m.SchemaVersion != SchemaVersion {
		issues = append(issues, "RELEASE_MANIFEST_INVALID")
	}
	if m.SigAlg == "" || m.Signature == "" {
		issues = append(issues, reason.ReleaseSignatureBad)
	}
	if m.PlanDigest == "" || m.PolicyDigest == "" || m.EvidenceJournalHead == "" {
		issues = append(issues, "RELEASE_MANIFEST_INVALID")
	}
	return issues
}

// Validate checks the public-key document shape.
func (k *ReleasePublicKey) Validate() []reason.Code {
	var issues []reason.Code
	if k.Schema != SchemaReleasePublicKey || k.SchemaVersion != SchemaVersion {
		issues = append(issues, "RELEASE_PUBLIC_KEY_INVALID")
	}
	if k.Key == "" {
		issues = append(issues, "RELEASE_PUBLIC_KEY_INVALID")
	}
	return issues
}

// Validate checks the runtime-bundle shape.
func (b *RuntimeBundle) Validate() []reason.Code {
	var issues []reason.Code
	if b.Schema != SchemaRuntimeBundle || b.SchemaVersion != SchemaVersion {
		issues = append(issues, "RUNTIME_BUNDLE_INVALID")
	}
	if b.Plan.PlanHash == "" || b.Trust.PolicyID == "" {
		issues = append(issues, "RUNTIME_BUNDLE_INVALID")
	}
	return issues
}

// SigningBytes returns the canonical manifest bytes with the signature field
// emptied — the exact bytes a release signer signs.
func (m *ReleaseManifest) SigningBytes() ([]byte, error) {
	unsigned := *m
	unsigned.Signature = ""
	return CanonicalBytes(&unsigned)
}
