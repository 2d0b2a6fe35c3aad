package notifier

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"tactix/internal/alert"
	"tactix/internal/scoring"
)

const maxStructuredMessageLen = 3800

// MessageSection is one block of a notification.
type MessageSection struct {
	Title string
	Lines []string
}

// StructuredMessage is the shared push format.
type StructuredMessage struct {
	Icon      string
	Title     string
	Sections  []MessageSection
	Footer    string
	Timestamp time.Time
}

// RenderMarkdown emits Markdown text, trimmed to the transport limit.
func (m StructuredMessage) RenderMarkdown() string {
	var b strings.Builder
	header := strings.TrimSpace(m.Icon + " " + m.Title)
	if header != "" {
		b.WriteString(header + "\n\n")
	}
	if block := renderSections(m.Sections); block != "" {
		b.WriteString(block)
	}
	if footer := strings.TrimSpace(m.Footer); footer != "" {
		b.WriteString(footer)
		b.WriteString("\n")
	}
	if !m.Timestamp.IsZero() {
		b.WriteString("at " + m.Timestamp.UTC().Format("2006-01-02 15:04:05 MST"))
	}
	body := strings.TrimSpace(b.String())
	if len(body) > maxStructuredMessageLen {
		body = body[:maxStructuredMessageLen] + "..."
	}
	return body
}

func renderSections(secs []MessageSection) string {
	hasContent := false
	for _, sec := range secs {
		if len(sec.Lines) > 0 {
			hasContent = true
			break
		}
	}
	if !hasContent {
		return ""
	}
	var b strings.Builder
	b.WriteString("```\n")
	for idx, sec := range secs {
		if len(sec.Lines) == 0 {
			continue
		}
		if title := strings.TrimSpace(sec.Title); title != "" {
			b.WriteString(title)
			b.WriteString("\n")
		}
		for _, line := range sec.Lines {
			b.WriteString("- ")
			b.WriteString(line)
			b.WriteString("\n")
		}
		if idx != len(secs)-1 {
			b.WriteString("\n")
		}
	}
	b.WriteString("```\n")
	return b.String()
}

// FormatFireEvent renders one cleared alert fire.
func FormatFireEvent(evt alert.FireEvent) string {
	lines := []string{
		fmt.Sprintf("rule: %s", evt.RuleID),
	}
	keys := make([]string, 0, len(evt.Meta))
	for k := range evt.Meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %v", k, evt.Meta[k]))
	}
	msg := StructuredMessage{
		Icon:      "🔔",
		Title:     fmt.Sprintf("Alert %s", evt.Symbol),
		Sections:  []MessageSection{{Lines: lines}},
		Timestamp: evt.FiredAt,
	}
	return msg.RenderMarkdown()
}

// FormatRow renders a high-urgency actionable row.
func FormatRow(row scoring.ActionableRow, now time.Time) string {
	lines := []string{
		fmt.Sprintf("decision: %s (score %.1f, %s)", row.Decision, row.Score, row.Bias),
		fmt.Sprintf("price: %.6g entry %.6g-%.6g stop %.6g", row.CurrentPrice, row.EntryRange.Low, row.EntryRange.High, row.StopLoss),
	}
	if len(row.Targets) > 0 {
		parts := make([]string, len(row.Targets))
		for i, t := range row.Targets {
			parts[i] = fmt.Sprintf("%.6g", t)
		}
		lines = append(lines, "targets: "+strings.Join(parts, " / "))
	}
	reasons := row.Reasons
	if len(reasons) > 5 {
		reasons = reasons[:5]
	}
	msg := StructuredMessage{
		Icon:  "📌",
		Title: fmt.Sprintf("%s %s", row.Symbol, row.Decision),
		Sections: []MessageSection{
			{Lines: lines},
			{Title: "reasons", Lines: reasons},
		},
		Footer:    fmt.Sprintf("confidence %.2f, urgency %s", row.Confidence, row.Urgency),
		Timestamp: now,
	}
	return msg.RenderMarkdown()
}
