package replay

import (
	"fmt"
	"strings"
)

// Report renders an AnchorTimeline as a header line (anchor id, evidence
// count, final confidence, final state) followed by one line per step:
// `timestamp  kind  Δconfidence  confidence  state`, prefixed with `*` on
// steps that transitioned, per SPEC_FULL.md Supplemental Feature
// #3, grounded in the teacher's internal/log.go `[LEVEL] message`
// convention of grep-able, fixed-shape structured log lines.
func Report(t AnchorTimeline) string {
	var b strings.Builder
	fmt.Fprintf(&b, "anchor %s  evidence=%d  final_confidence=%.3f  final_state=%s\n",
		t.AnchorID, t.EvidenceCount, t.FinalConfidence, t.FinalState)
	for _, step := range t.Timeline {
		marker := " "
		if step.Transitioned {
			marker = "*"
		}
		fmt.Fprintf(&b, "%s %s  %-20s  d=%+.3f  c=%.3f  state=%s\n",
			marker, step.Record.Timestamp.String(), step.Record.Kind, step.Delta, step.CumulativeConfidence.Value, step.State)
	}
	return b.String()
}
