package pipeline

import (
	"fmt"
	"strings"

	"github.com/diblac17-eng/weftend/internal/evidence"
	"github.com/diblac17-eng/weftend/internal/schema"
)

// appealBundle is the machine-readable record an operator attaches when
// appealing a decision.
type appealBundle struct {
	Schema           string                  `json:"schema"`
	Action           string                  `json:"action"`
	Verdict          string                  `json:"verdict"`
	ReasonCodes      []string                `json:"reasonCodes"`
	CapabilityLedger schema.CapabilityLedger `json:"capabilityLedger"`
}

// stageDecisionArtifacts writes the intake surface shared by safe-run and
// run: the mint, the decision, the human disclosure, and the appeal bundle.
func stageDecisionArtifacts(w *evidence.Writer, mint *schema.MintPackage, d *schema.Decision) error {
	if err := w.StageJSON("weftend_mint_v1.json", "mint", mint); err != nil {
		return err
	}
	if err := w.StageJSON("intake_decision.json", "intake_decision", d); err != nil {
		return err
	}
	if err := w.StageText("disclosure.txt", "disclosure", renderDisclosure(d)); err != nil {
		return err
	}
	return w.StageJSON("appeal_bundle.json", "appeal_bundle", &appealBundle{
		Schema:           "weftend.appealBundle/0",
		Action:           d.Action,
		Verdict:          d.Verdict,
		ReasonCodes:      d.ReasonCodes,
		CapabilityLedger: d.CapabilityLedger,
	})
}

// renderDisclosure produces the plain-text decision summary. It names only
// verdicts, reason codes, and capability ids — never paths.
func renderDisclosure(d *schema.Decision) string {
	var b strings.Builder
	b.WriteString("weftend intake disclosure\n")
	b.WriteString("=========================\n")
	fmt.Fprintf(&b, "action: %s\n", d.Action)
	fmt.Fprintf(&b, "verdict: %s\n", d.Verdict)
	fmt.Fprintf(&b, "reason codes: %s\n", dashIfEmpty(strings.Join(d.ReasonCodes, ", ")))
	fmt.Fprintf(&b, "capabilities requested: %s\n", dashIfEmpty(strings.Join(d.CapabilityLedger.Requested, ", ")))
	fmt.Fprintf(&b, "capabilities granted: %s\n", dashIfEmpty(strings.Join(d.CapabilityLedger.Granted, ", ")))
	denied := make([]string, 0, len(d.CapabilityLedger.Denied))
	for _, dc := range d.CapabilityLedger.Denied {
		denied = append(denied, dc.CapID)
	}
	fmt.Fprintf(&b, "capabilities denied: %s\n", dashIfEmpty(strings.Join(denied, ", ")))
	return b.String()
}

// renderMintText is the human rendering of a mint, emitted next to the
// JSON form by `weftend examine`.
func renderMintText(m *schema.MintPackage) string {
	var b strings.Builder
	b.WriteString("weftend mint v1\n")
	b.WriteString("===============\n")
	fmt.Fprintf(&b, "artifact kind: %s\n", m.ArtifactKind)
	fmt.Fprintf(&b, "target kind: %s\n", m.TargetKind)
	fmt.Fprintf(&b, "input digest: %s\n", m.InputDigest)
	fmt.Fprintf(&b, "total files: %d\n", m.TotalFiles)
	fmt.Fprintf(&b, "total bytes (bounded): %d\n", m.TotalBytesBounded)
	fmt.Fprintf(&b, "has scripts: %t\n", m.HasScripts)
	fmt.Fprintf(&b, "has native binaries: %t\n", m.HasNativeBinaries)
	fmt.Fprintf(&b, "has html: %t\n", m.HasHTML)
	fmt.Fprintf(&b, "external refs: %d\n", len(m.ExternalRefs))
	fmt.Fprintf(&b, "archive depth max: %d\n", m.ArchiveDepthMax)
	fmt.Fprintf(&b, "nested archives: %d\n", m.NestedArchiveCount)
	fmt.Fprintf(&b, "signature present: %t\n", m.Signing.SignaturePresent)
	fmt.Fprintf(&b, "entry hints: %s\n", dashIfEmpty(strings.Join(m.EntryHints, ", ")))
	return b.String()
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
