// Package trafficlight renders verdicts as a colored terminal summary:
// red for high, yellow for medium, green for low threat.
package trafficlight

import (
	"fmt"
	"strings"

	"github.com/AureliusCaelum/mail-analyzer/internal/core"
)

// ANSI escape sequences for the level colors.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGreen  = "\033[32m"
	colorBold   = "\033[1m"
)

// Renderer formats verdicts for terminal display.
type Renderer struct {
	colored bool
}

// NewRenderer creates a renderer; colored disables ANSI codes when false,
// for pipes and logs.
func NewRenderer(colored bool) *Renderer {
	return &Renderer{colored: colored}
}

// Render formats one verdict as a multi-line traffic light report.
func (r *Renderer) Render(msg *core.Message, verdict *core.Verdict) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", verdict.Level.Icon(), r.colorize(verdict.Level, fmt.Sprintf("%s%s THREAT", colorBold, verdict.Level)))
	fmt.Fprintf(&b, "Score:   %.1f / 10\n", verdict.Score)
	fmt.Fprintf(&b, "Sender:  %s\n", valueOr(msg.Sender, "(none)"))
	fmt.Fprintf(&b, "Subject: %s\n", valueOr(msg.Subject, "(none)"))

	if len(verdict.Indicators) > 0 {
		b.WriteString("Indicators:\n")
		for _, ind := range verdict.Indicators {
			fmt.Fprintf(&b, "  - %s\n", ind)
		}
	}

	if verdict.Context != nil && len(verdict.Context.SuggestedActions) > 0 {
		b.WriteString("Suggested actions:\n")
		for _, action := range verdict.Context.SuggestedActions {
			fmt.Fprintf(&b, "  - %s\n", action)
		}
	} else {
		for _, rec := range Recommendations(verdict.Level) {
			fmt.Fprintf(&b, "  %s\n", rec)
		}
	}

	return b.String()
}

// RenderLine formats one verdict as a compact single line.
func (r *Renderer) RenderLine(msg *core.Message, verdict *core.Verdict) string {
	label := r.colorize(verdict.Level, verdict.Level.String())
	return fmt.Sprintf("%s %s [%.1f] %s | %s",
		verdict.Level.Icon(), label, verdict.Score,
		valueOr(msg.Sender, "(none)"), valueOr(msg.Subject, "(none)"))
}

// Recommendations returns the default handling advice for a level.
func Recommendations(level core.ThreatLevel) []string {
	switch level {
	case core.LevelHigh:
		return []string{
			"Do not open links or attachments",
			"Report this message to IT security",
			"Delete the message after reporting",
		}
	case core.LevelMedium:
		return []string{
			"Verify the sender through a known channel before responding",
			"Do not open attachments unless expected",
		}
	default:
		return []string{
			"No special handling required",
		}
	}
}

// colorize wraps text in the level's ANSI color when colors are enabled.
func (r *Renderer) colorize(level core.ThreatLevel, text string) string {
	if !r.colored {
		return stripBold(text)
	}
	switch level {
	case core.LevelHigh:
		return colorRed + text + colorReset
	case core.LevelMedium:
		return colorYellow + text + colorReset
	default:
		return colorGreen + text + colorReset
	}
}

func stripBold(text string) string {
	return strings.ReplaceAll(text, colorBold, "")
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
