package visit

import (
	"fmt"

	"github.com/nevindra/deepresearch"
)

const noContentRational = "No accessible content retrieved; returning default summary."

// formatBlock renders the per-URL observation: readable evidence and summary
// followed by the embedded evidence record.
func formatBlock(rawURL, goal string, rec deepresearch.EvidenceRecord) string {
	rec.URL = rawURL
	body := fmt.Sprintf("The useful information in %s for user goal %s as follows: \n\n"+
		"Evidence in page: \n%s\n\n"+
		"Summary: \n%s\n\n", rawURL, goal, rec.Evidence, rec.Summary)
	return body + deepresearch.FormatEvidenceBlock(rec)
}

// emptyBlock is the block for a URL with no retrievable content.
func emptyBlock(rawURL, goal string) string {
	return formatBlock(rawURL, goal, deepresearch.EvidenceRecord{
		Rational: noContentRational,
		Summary:  fmt.Sprintf("No meaningful content found for '%s'.", goal),
	})
}
