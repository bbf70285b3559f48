// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"strings"

	"github.com/pdiddy/protocol-analyzer/pkg/types"
)

// AssignEvidence maps literature results to an evidence tier: any
// high-evidence publication gives the top tier, none gives the bottom tier.
func AssignEvidence(links []string) string {
	if len(links) > 0 {
		return types.EvidenceTop
	}
	return types.EvidenceBottom
}

// selectEvidence applies the deployment's evidence source. The AI-suggested
// class wins only under EvidenceAI and only when it is not blank.
func selectEvidence(src types.EvidenceSource, suggested string, links []string) string {
	if src == types.EvidenceAI {
		if s := strings.TrimSpace(suggested); s != "" {
			return s
		}
	}
	return AssignEvidence(links)
}
