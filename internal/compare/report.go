package compare

import (
	"fmt"
	"strings"
)

// Evidence tags used in the report: [POL] policy-derived, [INF] inferred
// classification, [OBS] directly observed content identity.
const reportLegend = `legend:
  [POL] policy-derived value
  [INF] inferred classification
  [OBS] observed content identity
`

// Report renders the deterministic ASCII compare report. Every line is
// derived from the delta alone; no paths, timestamps, or environment
// markers appear.
func (d *Delta) Report() string {
	var b strings.Builder
	b.WriteString("weftend compare report\n")
	b.WriteString("======================\n")
	fmt.Fprintf(&b, "evidence.verdict=[POL] %s\n", d.Verdict)
	fmt.Fprintf(&b, "evidence.buckets=[INF] %s\n", dashIfEmpty(strings.Join(d.Buckets, ",")))
	fmt.Fprintf(&b, "evidence.artifactDigest=[OBS] left=%s right=%s\n",
		dashIfEmpty(d.Left.ArtifactDigest), dashIfEmpty(d.Right.ArtifactDigest))
	fmt.Fprintf(&b, "evidence.result=[POL] left=%s right=%s\n", d.Left.Result, d.Right.Result)
	fmt.Fprintf(&b, "evidence.reasonCodes=[POL] left=%s right=%s\n",
		dashIfEmpty(strings.Join(d.Left.ReasonCodes, ",")),
		dashIfEmpty(strings.Join(d.Right.ReasonCodes, ",")))
	fmt.Fprintf(&b, "evidence.kind=[INF] left=%s/%s right=%s/%s\n",
		dashIfEmpty(d.Left.ArtifactKind), dashIfEmpty(d.Left.TargetKind),
		dashIfEmpty(d.Right.ArtifactKind), dashIfEmpty(d.Right.TargetKind))
	fmt.Fprintf(&b, "evidence.files=[OBS] left=%d right=%d\n", d.Left.TotalFiles, d.Right.TotalFiles)
	fmt.Fprintf(&b, "evidence.externalRefs=[OBS] left=%d right=%d\n",
		d.Left.ExternalRefCount, d.Right.ExternalRefCount)
	fmt.Fprintf(&b, "evidence.topDomains=[OBS] left=%s right=%s\n",
		dashIfEmpty(strings.Join(d.Left.TopDomains, ",")),
		dashIfEmpty(strings.Join(d.Right.TopDomains, ",")))
	b.WriteString(reportLegend)
	return b.String()
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
