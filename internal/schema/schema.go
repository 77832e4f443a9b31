// Package schema defines the typed shapes of every document on the evidence
// path — mints, policies, decisions, receipts, and release artifacts — plus
// their validators. Validators emit reason codes in document order; the
// first code is the one surfaced on a fail-closed exit.
//
// This package contains data types and lightweight validation only; the
// trust algebra, writer, and comparators live elsewhere.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/diblac17-eng/weftend/internal/canon"
	"github.com/diblac17-eng/weftend/internal/digest"
)

// SchemaVersion is the contract version shared by every current receipt
// family. Receipts missing it (or carrying another value) are old-contract.
const SchemaVersion = 0

// Schema identifiers. The schema field is the discriminator for decoding.
const (
	SchemaMint               = "weftend.mint/1"
	SchemaPolicy             = "weftend.policy/1"
	SchemaSafeRunReceipt     = "weftend.safeRunReceipt/0"
	SchemaRunReceipt         = "weftend.runReceipt/0"
	SchemaHostRunReceipt     = "weftend.hostRunReceipt/0"
	SchemaCompareReceipt     = "weftend.compareReceipt/0"
	SchemaOperatorReceipt    = "weftend.operatorReceipt/0"
	SchemaAdapterMaintenance = "weftend.adapterMaintenance/0"
	SchemaPrivacyLint        = "weftend.privacyLint/0"
	SchemaReleaseManifest    = "weftend.releaseManifest/0"
	SchemaReleasePublicKey   = "weftend.releasePublicKey/0"
	SchemaRuntimeBundle      = "weftend.runtimeBundle/0"
	SchemaEvidenceBundle     = "weftend.evidence/0"
	SchemaNormalizedSummary  = "weftend.normalizedSummary/0"
)

// Artifact kinds observed by the examiner.
const (
	KindText      = "TEXT"
	KindHTML      = "HTML"
	KindScript    = "SCRIPT"
	KindNative    = "NATIVE"
	KindArchive   = "ARCHIVE"
	KindContainer = "CONTAINER"
	KindEmail     = "EMAIL"
	KindOther     = "OTHER"
)

// Target kinds a policy profile can bind to.
const (
	TargetWeb       = "web"
	TargetMod       = "mod"
	TargetGeneric   = "generic"
	TargetContainer = "container"
	TargetEmail     = "email"
)

// Verdicts, actions, and contribution effects of the trust algebra.
const (
	VerdictAllow    = "ALLOW"
	VerdictDeny     = "DENY"
	VerdictWithheld = "WITHHELD"

	ActionApprove = "APPROVE"
	ActionQueue   = "QUEUE"
	ActionReject  = "REJECT"
	ActionHold    = "HOLD"

	EffectGrant    = "GRANT"
	EffectDeny     = "DENY"
	EffectWithhold = "WITHHOLD"
)

// MaxTotalBytesBounded is the documented ceiling for the bounded byte total
// carried in a mint. Larger inputs clamp to it and record the
// "bytes_clamped" boundedness marker.
const MaxTotalBytesBounded int64 = 1 << 33 // 8 GiB

// Header is the shared prefix of every receipt family.
type Header struct {
	Schema        string       `json:"schema"`
	SchemaVersion int          `json:"schemaVersion"`
	WeftendBuild  digest.Build `json:"weftendBuild"`
	ReceiptDigest string       `json:"receiptDigest"`
}

// NewHeader builds the common receipt header for the given schema and build
// identity. The receipt digest starts at the zero sentinel and is filled in
// by Seal.
func NewHeader(schemaID string, build digest.Build) Header {
	return Header{
		Schema:        schemaID,
		SchemaVersion: SchemaVersion,
		WeftendBuild:  build,
		ReceiptDigest: digest.ZeroDigest,
	}
}

// ToDoc converts a typed document to the generic map form used for
// canonicalization and self-digesting. Numbers survive as json.Number so
// the canonical encoder can reject non-integral values.
func ToDoc(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("schema: marshal %T: %w", v, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("schema: decode %T: %w", v, err)
	}
	return doc, nil
}

// Seal canonicalizes a receipt with its self-digest embedded. It returns the
// canonical bytes (without trailing newline; the writer appends exactly one)
// and the computed receiptDigest.
func Seal(v any) ([]byte, string, error) {
	doc, err := ToDoc(v)
	if err != nil {
		return nil, "", err
	}
	return digest.SealReceipt(doc)
}

// CanonicalBytes renders any document (not necessarily a receipt) in
// canonical form.
func CanonicalBytes(v any) ([]byte, error) {
	doc, err := ToDoc(v)
	if err != nil {
		return nil, err
	}
	return canon.MarshalV0(doc)
}
