package schema

import (
	"github.com/diblac17-eng/weftend/internal/canon"
	"github.com/diblac17-eng/weftend/internal/digest"
	"github.com/diblac17-eng/weftend/internal/reason"
)

// SigningSummary records what the examiner saw of signatures on the input.
// Signatures preserve the order given by the signer; they are the one list
// in a mint that is not stable-sort-uniqued.
type SigningSummary struct {
	SignaturePresent bool     `json:"signaturePresent"`
	TimestampPresent bool     `json:"timestampPresent"`
	Signatures       []string `json:"signatures,omitempty"`
}

// MintPackage is the v1 normalized observation of an input artifact. Every
// list is stable-sorted and de-duplicated, counts are bounded integers, and
// inputDigest is a content digest of the input bytes. The mint is the only
// thing the trust algebra ever sees of the artifact.
type MintPackage struct {
	Schema             string           `json:"schema"`
	ArtifactKind       string           `json:"artifactKind"`
	TargetKind         string           `json:"targetKind"`
	InputDigest        string           `json:"inputDigest"`
	TotalFiles         int64            `json:"totalFiles"`
	TotalBytesBounded  int64            `json:"totalBytesBounded"`
	FileCountsByKind   map[string]int64 `json:"fileCountsByKind"`
	BoundednessMarkers []string         `json:"boundednessMarkers"`
	HasScripts         bool             `json:"hasScripts"`
	HasNativeBinaries  bool             `json:"hasNativeBinaries"`
	HasHTML            bool             `json:"hasHtml"`
	ExternalRefs       []string         `json:"externalRefs"`
	ArchiveDepthMax    int64            `json:"archiveDepthMax"`
	NestedArchiveCount int64            `json:"nestedArchiveCount"`
	Signing            SigningSummary   `json:"signing"`
	EntryHints         []string         `json:"entryHints"`
}

var validArtifactKinds = map[string]bool{
	KindText: true, KindHTML: true, KindScript: true, KindNative: true,
	KindArchive: true, KindContainer: true, KindEmail: true, KindOther: true,
}

var validTargetKinds = map[string]bool{
	TargetWeb: true, TargetMod: true, TargetGeneric: true,
	TargetContainer: true, TargetEmail: true,
}

// Validate checks the mint against the v1 schema. Issues are reported in
// document order; an empty slice means the mint is well-formed.
func (m *MintPackage) Validate() []reason.Code {
	var issues []reason.Code
	fail := func() { issues = append(issues, reason.MintInvalid) }

	if m.Schema != SchemaMint {
		fail()
	}
	if !validArtifactKinds[m.ArtifactKind] {
		fail()
	}
	if !validTargetKinds[m.TargetKind] {
		fail()
	}
	if !digest.IsSha256(m.InputDigest) {
		fail()
	}
	if m.TotalFiles < 0 || m.TotalBytesBounded < 0 || m.TotalBytesBounded > MaxTotalBytesBounded {
		fail()
	}
	for _, n := range m.FileCountsByKind {
		if n < 0 {
			fail()
			break
		}
	}
	if m.ArchiveDepthMax < 0 || m.NestedArchiveCount < 0 {
		fail()
	}
	if !isSortedUnique(m.BoundednessMarkers) || !isSortedUnique(m.ExternalRefs) || !isSortedUnique(m.EntryHints) {
		fail()
	}
	return issues
}

// Normalize applies the deterministic list form to every sorted surface of
// the mint, in place. Examiners call this exactly once before returning.
func (m *MintPackage) Normalize() {
	m.BoundednessMarkers = canon.StableSortUniqueV0(m.BoundednessMarkers)
	m.ExternalRefs = canon.StableSortUniqueV0(m.ExternalRefs)
	m.EntryHints = canon.StableSortUniqueV0(m.EntryHints)
	if m.TotalBytesBounded > MaxTotalBytesBounded {
		m.TotalBytesBounded = MaxTotalBytesBounded
		m.BoundednessMarkers = canon.StableSortUniqueV0(append(m.BoundednessMarkers, "bytes_clamped"))
	}
	if m.FileCountsByKind == nil {
		m.FileCountsByKind = map[string]int64{}
	}
}

func isSortedUnique(list []string) bool {
	for i, s := range list {
		if s == "" {
			return false
		}
		if i > 0 && canon.CompareV0(list[i-1], s) >= 0 {
			return false
		}
	}
	return true
}
