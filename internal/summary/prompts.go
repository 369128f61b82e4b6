package summary

import (
	"fmt"
	"strings"

	"github.com/reflectd-dev/reflectd/internal/reflection"
)

const summarySystemPrompt = `You are an insight analyst for a founder's daily reflection practice.
You read a week of short coaching conversations and distill them into wins,
challenges, behavioral patterns, and one piece of advice.

Rules:
- Ground every item in something the founder actually said.
- Keep each item to a single sentence.
- Patterns describe recurring behavior or mood across days, not one-offs.
- Advice is specific and actionable for the coming week.`

// buildSummaryPrompt renders the week's transcripts, one day per block.
func buildSummaryPrompt(records []*reflection.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Reflection sessions from %d day(s) this week.\n", len(records))

	for _, rec := range records {
		fmt.Fprintf(&b, "\n## %s\n", rec.Date)
		for _, msg := range rec.Messages {
			label := "Coach"
			if msg.Role == reflection.RoleUser {
				label = "Founder"
			}
			fmt.Fprintf(&b, "%s: %s\n", label, msg.Content)
		}
	}

	b.WriteString("\nDistill the week into wins, challenges, patterns, and advice.")
	return b.String()
}
