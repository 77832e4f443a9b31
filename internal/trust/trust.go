// Package trust implements the policy evaluator: a pure function folding a
// normalized mint and a declarative policy into a Decision. The fold is
// commutative, associative, and idempotent, so the order in which policy
// rules contribute can never change the result.
package trust

import (
	"sort"

	"github.com/diblac17-eng/weftend/internal/canon"
	"github.com/diblac17-eng/weftend/internal/reason"
	"github.com/diblac17-eng/weftend/internal/schema"
)

// Well-known capability ids.
const (
	CapNet     = "net"
	CapExec    = "exec"
	CapFSWrite = "fs_write"
)

// Contribution is one rule's vote on one capability.
type Contribution struct {
	CapID       string
	Verdict     string // GRANT, DENY, or WITHHOLD
	ReasonCodes []string
}

// verdictRank orders contribution verdicts by precedence: DENY beats
// WITHHOLD beats GRANT.
func verdictRank(v string) int {
	switch v {
	case schema.EffectDeny:
		return 2
	case schema.EffectWithhold:
		return 1
	default:
		return 0
	}
}

// FoldVerdict combines two contribution verdicts under the fixed precedence.
func FoldVerdict(a, b string) string {
	if verdictRank(b) > verdictRank(a) {
		return b
	}
	return a
}

// FoldContribution merges two contributions for the same capability. Reason
// codes accumulate into the stable-sorted union, so folding the same
// contribution twice changes nothing.
func FoldContribution(a, b Contribution) Contribution {
	return Contribution{
		CapID:       a.CapID,
		Verdict:     FoldVerdict(a.Verdict, b.Verdict),
		ReasonCodes: canon.StableSortUniqueV0(append(append([]string{}, a.ReasonCodes...), b.ReasonCodes...)),
	}
}

// Evaluate folds (mint, policy) into a Decision. The result depends only on
// the canonical form of both inputs; evaluation order is immaterial.
func Evaluate(mint *schema.MintPackage, policy *schema.Policy) schema.Decision {
	if issues := mint.Validate(); len(issues) > 0 {
		return holdDecision(reason.MintInvalid, issues)
	}
	if issues := policy.Validate(); len(issues) > 0 {
		return holdDecision(reason.PolicyInvalid, issues)
	}

	folded := map[string]Contribution{}
	for _, rule := range policy.Rules {
		if !ruleMatches(rule, mint, policy.Thresholds) {
			continue
		}
		c := Contribution{
			CapID:       rule.CapID,
			Verdict:     rule.Effect,
			ReasonCodes: canon.StableSortUniqueV0(rule.ReasonCodes),
		}
		if prev, ok := folded[rule.CapID]; ok {
			c = FoldContribution(prev, c)
		}
		folded[rule.CapID] = c
	}

	ledger := schema.CapabilityLedger{
		Requested: []string{},
		Granted:   []string{},
		Denied:    []schema.DeniedCap{},
	}
	verdict := schema.VerdictAllow
	var allCodes []string
	deniedNetOnly := true

	caps := make([]string, 0, len(folded))
	for id := range folded {
		caps = append(caps, id)
	}
	sort.SliceStable(caps, func(i, j int) bool { return canon.LessV0(caps[i], caps[j]) })

	for _, id := range caps {
		c := folded[id]
		ledger.Requested = append(ledger.Requested, id)
		allCodes = append(allCodes, c.ReasonCodes...)
		switch c.Verdict {
		case schema.EffectGrant:
			ledger.Granted = append(ledger.Granted, id)
		case schema.EffectDeny:
			ledger.Denied = append(ledger.Denied, schema.DeniedCap{CapID: id, ReasonCodes: c.ReasonCodes})
			verdict = foldTopVerdict(verdict, schema.VerdictDeny)
			if id != CapNet {
				deniedNetOnly = false
			}
		case schema.EffectWithhold:
			verdict = foldTopVerdict(verdict, schema.VerdictWithheld)
		}
	}

	return schema.Decision{
		Action:           actionFor(verdict, deniedNetOnly),
		Verdict:          verdict,
		ReasonCodes:      canon.StableSortUniqueV0(allCodes),
		CapabilityLedger: ledger,
	}
}

// foldTopVerdict folds receipt-level verdicts (ALLOW/DENY/WITHHELD) under
// the same precedence as contributions.
func foldTopVerdict(a, b string) string {
	rank := func(v string) int {
		switch v {
		case schema.VerdictDeny:
			return 2
		case schema.VerdictWithheld:
			return 1
		default:
			return 0
		}
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}

func actionFor(verdict string, deniedNetOnly bool) string {
	switch verdict {
	case schema.VerdictAllow:
		return schema.ActionApprove
	case schema.VerdictDeny:
		if deniedNetOnly {
			return schema.ActionQueue
		}
		return schema.ActionReject
	default:
		return schema.ActionHold
	}
}

func ruleMatches(rule schema.PolicyRule, m *schema.MintPackage, t schema.PolicyThresholds) bool {
	switch rule.When {
	case "external_refs":
		return int64(len(m.ExternalRefs)) > t.MaxExternalRefs
	case "scripts":
		return m.HasScripts
	case "native":
		return m.HasNativeBinaries
	case "html":
		return m.HasHTML
	case "archive_depth":
		return m.ArchiveDepthMax > t.MaxArchiveDepth
	case "nested_archives":
		return m.NestedArchiveCount > t.MaxNestedArchives
	case "unsigned":
		return !m.Signing.SignaturePresent
	case "always":
		return true
	default:
		return false
	}
}

func holdDecision(top reason.Code, issues []reason.Code) schema.Decision {
	codes := append([]string{string(top)}, reason.Strings(issues)...)
	return schema.Decision{
		Action:      schema.ActionHold,
		Verdict:     schema.VerdictWithheld,
		ReasonCodes: canon.StableSortUniqueV0(codes),
		CapabilityLedger: schema.CapabilityLedger{
			Requested: []string{},
			Granted:   []string{},
			Denied:    []schema.DeniedCap{},
		},
	}
}
