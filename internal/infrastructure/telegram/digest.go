package telegram

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"ContractFinder/internal/domain"
)

// maxDigestLeads keeps a digest well under Telegram's 4096 character message limit.
const maxDigestLeads = 20

// FormatLeadDigest renders new leads as an HTML message, grouped by state and ordered by
// score. Every scraped field is escaped.
func FormatLeadDigest(leads []domain.ContractAward) string {
	if len(leads) == 0 {
		return ""
	}

	sorted := append([]domain.ContractAward(nil), leads...)
	domain.SortByScore(sorted)

	shown := sorted
	if len(shown) > maxDigestLeads {
		shown = shown[:maxDigestLeads]
	}

	byState := make(map[string][]domain.ContractAward)
	for _, lead := range shown {
		byState[lead.State] = append(byState[lead.State], lead)
	}

	states := make([]string, 0, len(byState))
	for state := range byState {
		states = append(states, state)
	}
	sort.Strings(states)

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("🚚 <b>New dump truck leads</b> (%d)\n\n", len(leads)))

	for _, state := range states {
		msg.WriteString(fmt.Sprintf("📍 <b>%s</b>\n", html.EscapeString(state)))
		for _, lead := range byState[state] {
			msg.WriteString(formatLead(lead))
		}
		msg.WriteString("\n")
	}

	if rest := len(leads) - len(shown); rest > 0 {
		msg.WriteString(fmt.Sprintf("<i>…and %d more</i>\n", rest))
	}

	return strings.TrimRight(msg.String(), "\n")
}

func formatLead(lead domain.ContractAward) string {
	var line strings.Builder

	line.WriteString(fmt.Sprintf("  • <b>%s</b> %s, score %d",
		html.EscapeString(lead.ContractID),
		html.EscapeString(lead.AwardedTo),
		lead.Score))
	if date := lead.LettingDate.String(); date != "" {
		line.WriteString(fmt.Sprintf(" (letting %s)", html.EscapeString(date)))
	}
	line.WriteString("\n")

	if lead.Description != "" {
		line.WriteString(fmt.Sprintf("    %s\n", html.EscapeString(lead.Description)))
	}
	if lead.SourceURL != "" {
		line.WriteString(fmt.Sprintf("    <a href=\"%s\">source</a>\n", html.EscapeString(lead.SourceURL)))
	}

	return line.String()
}
