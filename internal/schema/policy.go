package schema

import (
	"github.com/diblac17-eng/weftend/internal/digest"
	"github.com/diblac17-eng/weftend/internal/reason"
)

// PolicyRule is one ordered grant/deny/withhold keyed to an observation
// family. Rule order in the document is preserved for readability; the trust
// algebra's fold makes evaluation order irrelevant to the result.
type PolicyRule struct {
	// CapID names the capability the rule speaks to, e.g. "net", "exec",
	// "fs_write".
	CapID string `json:"capId"`

	// Effect is GRANT, DENY, or WITHHOLD.
	Effect string `json:"effect"`

	// When names the mint observation family that triggers the rule:
	// "external_refs", "scripts", "native", "html", "archive_depth",
	// "nested_archives", "unsigned", "always".
	When string `json:"when"`

	// ReasonCodes are emitted when the rule contributes.
	ReasonCodes []string `json:"reasonCodes"`
}

// PolicyThresholds are the numeric limits a policy applies to bounded mint
// counts.
type PolicyThresholds struct {
	MaxArchiveDepth   int64 `json:"maxArchiveDepth"`
	MaxNestedArchives int64 `json:"maxNestedArchives"`
	MaxExternalRefs   int64 `json:"maxExternalRefs"`
	MaxTotalBytes     int64 `json:"maxTotalBytes"`
}

// Policy is the v1 declarative policy document. It is canonicalized before
// hashing; PolicyID is the digest of the canonical bytes, so two documents
// with reordered keys share an id.
type Policy struct {
	Schema     string           `json:"schema"`
	Profile    string           `json:"profile"`
	Rules      []PolicyRule     `json:"rules"`
	Thresholds PolicyThresholds `json:"thresholds"`
}

var validProfiles = map[string]bool{TargetWeb: true, TargetMod: true, TargetGeneric: true}

var validEffects = map[string]bool{EffectGrant: true, EffectDeny: true, EffectWithhold: true}

var validWhen = map[string]bool{
	"external_refs": true, "scripts": true, "native": true, "html": true,
	"archive_depth": true, "nested_archives": true, "unsigned": true, "always": true,
}

// Validate checks the policy document shape.
func (p *Policy) Validate() []reason.Code {
	var issues []reason.Code
	fail := func() { issues = append(issues, reason.PolicyInvalid) }

	if p.Schema != SchemaPolicy {
		fail()
	}
	if !validProfiles[p.Profile] {
		fail()
	}
	for _, r := range p.Rules {
		if r.CapID == "" || !validEffects[r.Effect] || !validWhen[r.When] {
			fail()
			break
		}
	}
	t := p.Thresholds
	if t.MaxArchiveDepth < 0 || t.MaxNestedArchives < 0 || t.MaxExternalRefs < 0 || t.MaxTotalBytes < 0 {
		fail()
	}
	return issues
}

// PolicyID returns the content-addressed identity of the policy: the sha256
// digest of its canonical bytes.
func (p *Policy) PolicyID() (string, error) {
	b, err := CanonicalBytes(p)
	if err != nil {
		return "", err
	}
	return digest.ComputeArtifactDigestV0(b), nil
}
