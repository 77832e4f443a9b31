package compare

import (
	"github.com/diblac17-eng/weftend/internal/canon"
	"github.com/diblac17-eng/weftend/internal/digest"
	"github.com/diblac17-eng/weftend/internal/schema"
)

// Change buckets. A delta lists the buckets that fired sorted under
// CompareV0, which is also the order the report prints them in.
const (
	BucketKindProfile  = "KIND_PROFILE_CHANGED"
	BucketContent      = "CONTENT_CHANGED"
	BucketExternalRefs = "EXTERNALREFS_CHANGED"
	BucketDigest       = "DIGEST_CHANGED"
	BucketReasons      = "REASONS_CHANGED"
)

// Delta is the outcome of diffing two normalized summaries.
type Delta struct {
	Verdict string
	Buckets []string
	Left    *Summary
	Right   *Summary
}

// Diff classifies the differences between two summaries into buckets. The
// verdict is SAME iff no bucket fires.
func Diff(left, right *Summary) *Delta {
	var buckets []string

	if left.TargetKind != right.TargetKind || left.ArtifactKind != right.ArtifactKind {
		buckets = append(buckets, BucketKindProfile)
	}
	if contentChanged(left, right) {
		buckets = append(buckets, BucketContent)
	}
	if left.ExternalRefCount != right.ExternalRefCount ||
		left.UniqueDomainCount != right.UniqueDomainCount ||
		!equalStrings(left.TopDomains, right.TopDomains) {
		buckets = append(buckets, BucketExternalRefs)
	}
	if left.ArtifactDigest != right.ArtifactDigest {
		buckets = append(buckets, BucketDigest)
	}
	if !equalStrings(left.ReasonCodes, right.ReasonCodes) {
		buckets = append(buckets, BucketReasons)
	}

	verdict := "SAME"
	if len(buckets) > 0 {
		verdict = "CHANGED"
	}
	return &Delta{
		Verdict: verdict,
		Buckets: canon.StableSortUniqueV0(buckets),
		Left:    left,
		Right:   right,
	}
}

func contentChanged(a, b *Summary) bool {
	if a.TotalFiles != b.TotalFiles ||
		a.TotalBytesBounded != b.TotalBytesBounded ||
		a.HasScripts != b.HasScripts ||
		a.HasNativeBinaries != b.HasNativeBinaries ||
		a.HasHTML != b.HasHTML ||
		a.ArchiveDepthMax != b.ArchiveDepthMax ||
		a.NestedArchiveCount != b.NestedArchiveCount ||
		a.SignaturePresent != b.SignaturePresent ||
		a.TimestampPresent != b.TimestampPresent ||
		!equalStrings(a.EntryHints, b.EntryHints) ||
		!equalStrings(a.BoundednessMarkers, b.BoundednessMarkers) {
		return true
	}
	if len(a.FileCountsByKind) != len(b.FileCountsByKind) {
		return true
	}
	for k, v := range a.FileCountsByKind {
		if b.FileCountsByKind[k] != v {
			return true
		}
	}
	return false
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Receipt builds the compare receipt for a delta.
func (d *Delta) Receipt(build digest.Build) *schema.CompareReceipt {
	return &schema.CompareReceipt{
		Header:  schema.NewHeader(schema.SchemaCompareReceipt, build),
		Verdict: d.Verdict,
		Buckets: d.Buckets,
		Left: schema.CompareSide{
			ArtifactDigest: d.Left.ArtifactDigest,
			PolicyDigest:   d.Left.PolicyDigest,
			Result:         d.Left.Result,
			ReasonCodes:    d.Left.ReasonCodes,
		},
		Right: schema.CompareSide{
			ArtifactDigest: d.Right.ArtifactDigest,
			PolicyDigest:   d.Right.PolicyDigest,
			Result:         d.Right.Result,
			ReasonCodes:    d.Right.ReasonCodes,
		},
		ReasonCodes: canon.StableSortUniqueV0(append(
			append([]string{}, d.Left.ReasonCodes...), d.Right.ReasonCodes...)),
	}
}
