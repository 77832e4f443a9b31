package compare

import (
	"sort"

	"github.com/diblac17-eng/weftend/internal/canon"
	"github.com/diblac17-eng/weftend/internal/examine"
	"github.com/diblac17-eng/weftend/internal/schema"
)

// topDomainCount bounds the topDomains list in a summary.
const topDomainCount = 3

// Summary is the normalized view of one evidence root that the differ
// operates on. Every field is derived from committed receipts; nothing here
// touches the original artifact.
type Summary struct {
	Schema             string           `json:"schema"`
	Result             string           `json:"result"`
	ReasonCodes        []string         `json:"reasonCodes"`
	ArtifactDigest     string           `json:"artifactDigest"`
	PolicyDigest       string           `json:"policyDigest"`
	ExternalRefCount   int64            `json:"externalRefCount"`
	UniqueDomainCount  int64            `json:"uniqueDomainCount"`
	TopDomains         []string         `json:"topDomains"`
	TargetKind         string           `json:"targetKind"`
	ArtifactKind       string           `json:"artifactKind"`
	TotalFiles         int64            `json:"totalFiles"`
	TotalBytesBounded  int64            `json:"totalBytesBounded"`
	FileCountsByKind   map[string]int64 `json:"fileCountsByKind"`
	HasScripts         bool             `json:"hasScripts"`
	HasNativeBinaries  bool             `json:"hasNativeBinaries"`
	HasHTML            bool             `json:"hasHtml"`
	EntryHints         []string         `json:"entryHints"`
	BoundednessMarkers []string         `json:"boundednessMarkers"`
	ArchiveDepthMax    int64            `json:"archiveDepthMax"`
	NestedArchiveCount int64            `json:"nestedArchiveCount"`
	URLLikeCount       int64            `json:"urlLikeCount"`
	SignaturePresent   bool             `json:"signaturePresent"`
	TimestampPresent   bool             `json:"timestampPresent"`
	RequestedCapCount  int64            `json:"requestedCapCount"`
	GrantedCapCount    int64            `json:"grantedCapCount"`
	DeniedCapCount     int64            `json:"deniedCapCount"`
	HostReleaseStatus  string           `json:"hostReleaseStatus"`
	StrictVerify       bool             `json:"strictVerify"`
	StrictExecute      bool             `json:"strictExecute"`
}

// Normalize derives the summary of a loaded source. The reason-code union
// across the execution, verify, and host surfaces is a stable-sorted set;
// no surface outranks another.
func Normalize(src *LoadedSource) *Summary {
	s := &Summary{
		Schema:             schema.SchemaNormalizedSummary,
		ReasonCodes:        []string{},
		TopDomains:         []string{},
		EntryHints:         []string{},
		BoundednessMarkers: []string{},
		FileCountsByKind:   map[string]int64{},
		HostReleaseStatus:  "none",
	}

	analysis := "NONE"
	execution := "NONE"
	var codes []string

	if src.SafeRun != nil {
		analysis = src.SafeRun.AnalysisVerdict
		codes = append(codes, src.SafeRun.TopReasonCodes...)
		s.ArtifactDigest = src.SafeRun.ArtifactDigest
		s.PolicyDigest = src.SafeRun.PolicyDigest
		if src.SafeRun.Execute != nil {
			if src.SafeRun.Execute.Verdict != "" {
				execution = src.SafeRun.Execute.Verdict
			}
			codes = append(codes, src.SafeRun.Execute.ReasonCodes...)
		}
	}
	if src.Run != nil {
		if analysis == "NONE" {
			analysis = src.Run.Decision.Verdict
		}
		codes = append(codes, src.Run.Decision.ReasonCodes...)
		if s.ArtifactDigest == "" {
			s.ArtifactDigest = src.Run.ArtifactDigest
		}
		if s.PolicyDigest == "" {
			s.PolicyDigest = src.Run.PolicyDigest
		}
		s.RequestedCapCount = int64(len(src.Run.Decision.CapabilityLedger.Requested))
		s.GrantedCapCount = int64(len(src.Run.Decision.CapabilityLedger.Granted))
		s.DeniedCapCount = int64(len(src.Run.Decision.CapabilityLedger.Denied))
		s.StrictVerify = src.Run.Mode == "strict"
	}
	if src.HostRun != nil {
		if execution == "NONE" {
			execution = src.HostRun.Verdict
		}
		codes = append(codes, src.HostRun.ReasonCodes...)
		s.StrictExecute = true
		s.HostReleaseStatus = "executed"
	}

	s.Result = analysis + ":" + execution
	s.ReasonCodes = canon.StableSortUniqueV0(codes)

	if mint := pickMint(src); mint != nil {
		s.ArtifactKind = mint.ArtifactKind
		s.TargetKind = mint.TargetKind
		s.TotalFiles = mint.TotalFiles
		s.TotalBytesBounded = mint.TotalBytesBounded
		for k, v := range mint.FileCountsByKind {
			s.FileCountsByKind[k] = v
		}
		s.HasScripts = mint.HasScripts
		s.HasNativeBinaries = mint.HasNativeBinaries
		s.HasHTML = mint.HasHTML
		s.EntryHints = append(s.EntryHints, mint.EntryHints...)
		s.BoundednessMarkers = append(s.BoundednessMarkers, mint.BoundednessMarkers...)
		s.ArchiveDepthMax = mint.ArchiveDepthMax
		s.NestedArchiveCount = mint.NestedArchiveCount
		s.SignaturePresent = mint.Signing.SignaturePresent
		s.TimestampPresent = mint.Signing.TimestampPresent
		s.ExternalRefCount = int64(len(mint.ExternalRefs))
		s.URLLikeCount = s.ExternalRefCount
		s.UniqueDomainCount, s.TopDomains = domainSummary(mint.ExternalRefs)
	}
	return s
}

func pickMint(src *LoadedSource) *schema.MintPackage {
	if src.SafeRun != nil && src.SafeRun.Mint != nil {
		return src.SafeRun.Mint
	}
	if src.Run != nil && src.Run.Mint != nil {
		return src.Run.Mint
	}
	return nil
}

// domainSummary computes the unique domain count and the deterministic
// top-domains list: by descending ref count, ties broken under CompareV0.
func domainSummary(refs []string) (int64, []string) {
	counts := map[string]int64{}
	for _, r := range refs {
		d := examine.DomainOf(r)
		if d != "" {
			counts[d]++
		}
	}
	domains := make([]string, 0, len(counts))
	for d := range counts {
		domains = append(domains, d)
	}
	sort.SliceStable(domains, func(i, j int) bool {
		if counts[domains[i]] != counts[domains[j]] {
			return counts[domains[i]] > counts[domains[j]]
		}
		return canon.LessV0(domains[i], domains[j])
	})
	if len(domains) > topDomainCount {
		domains = domains[:topDomainCount]
	}
	return int64(len(counts)), domains
}
