// Package render prints ranked results for a terminal or as JSON.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spigell/jobmatch/internal/filtering"
	"github.com/spigell/jobmatch/internal/ranking"
)

const HeuristicNotice = "Using heuristic ranking (no model API key configured)"

// Printer renders results to w. Colors are dropped when w is not a terminal.
type Printer struct {
	w   io.Writer
	now time.Time

	title   lipgloss.Style
	meta    lipgloss.Style
	score   lipgloss.Style
	reason  lipgloss.Style
	link    lipgloss.Style
	warning lipgloss.Style
	closed  lipgloss.Style
	muted   lipgloss.Style
}

func New(w io.Writer, now time.Time) *Printer {
	if now.IsZero() {
		now = time.Now()
	}

	r := lipgloss.NewRenderer(w)
	primary := lipgloss.AdaptiveColor{Light: "#3B82F6", Dark: "#60A5FA"}
	secondary := lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	success := lipgloss.AdaptiveColor{Light: "#10B981", Dark: "#34D399"}
	warning := lipgloss.AdaptiveColor{Light: "#F59E0B", Dark: "#FBBF24"}
	danger := lipgloss.AdaptiveColor{Light: "#EF4444", Dark: "#F87171"}

	return &Printer{
		w:       w,
		now:     now,
		title:   r.NewStyle().Foreground(primary).Bold(true),
		meta:    r.NewStyle().Foreground(secondary),
		score:   r.NewStyle().Foreground(success).Bold(true),
		reason:  r.NewStyle().PaddingLeft(3),
		link:    r.NewStyle().Foreground(primary).Underline(true),
		warning: r.NewStyle().Foreground(warning).Bold(true),
		closed:  r.NewStyle().Foreground(danger),
		muted:   r.NewStyle().Foreground(secondary).Italic(true),
	}
}

// Notice returns the banner shown above results, or "" when none applies.
func Notice(path ranking.Path, modelEnabled bool) string {
	if path == ranking.PathHeuristic && !modelEnabled {
		return HeuristicNotice
	}
	return ""
}

// Results writes a numbered list of results preceded by the ranking notice.
func (p *Printer) Results(results []ranking.Result, path ranking.Path, modelEnabled bool) error {
	var b strings.Builder

	if notice := Notice(path, modelEnabled); notice != "" {
		b.WriteString(p.warning.Render(notice))
		b.WriteString("\n\n")
	}

	if len(results) == 0 {
		b.WriteString(p.muted.Render("No matching jobs found."))
		b.WriteString("\n")
		_, err := io.WriteString(p.w, b.String())
		return err
	}

	for i, r := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p.result(i+1, r))
	}

	_, err := io.WriteString(p.w, b.String())
	return err
}

func (p *Printer) result(n int, r ranking.Result) string {
	var b strings.Builder

	header := fmt.Sprintf("%d. %s", n, r.Title)
	if r.Company != "" {
		header += " @ " + r.Company
	}
	fmt.Fprintf(&b, "%s  %s\n", p.title.Render(header), p.score.Render(fmt.Sprintf("%.3f", r.Score)))

	deadline := filtering.DeadlineOf(r.ApplyBy, p.now)

	if meta := p.metaLine(r, deadline); meta != "" {
		b.WriteString("   ")
		b.WriteString(meta)
		b.WriteString("\n")
	}

	if reason := strings.TrimSpace(r.Reason); reason != "" {
		b.WriteString(p.reason.Render(reason))
		b.WriteString("\n")
	}

	if r.ApplyURL != "" && !deadline.Expired {
		b.WriteString("   ")
		b.WriteString(p.link.Render(r.ApplyURL))
		b.WriteString("\n")
	}

	return b.String()
}

func (p *Printer) metaLine(r ranking.Result, d filtering.Deadline) string {
	parts := make([]string, 0, 3)
	for _, s := range []string{r.Location, r.Type} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, p.meta.Render(s))
		}
	}

	switch {
	case d.Expired:
		parts = append(parts, p.closed.Render("Applications closed"))
	case d.Known && d.ClosingSoon:
		parts = append(parts, p.warning.Render(deadlineText(d)))
	case d.Known:
		parts = append(parts, p.meta.Render(deadlineText(d)))
	case d.Raw != "":
		parts = append(parts, p.meta.Render("Apply by: "+d.Raw))
	}

	return strings.Join(parts, p.meta.Render(" • "))
}

func deadlineText(d filtering.Deadline) string {
	switch d.DaysLeft {
	case 0:
		return fmt.Sprintf("Apply by: %s (closes today)", d.Raw)
	case 1:
		return fmt.Sprintf("Apply by: %s (1 day left)", d.Raw)
	default:
		return fmt.Sprintf("Apply by: %s (%d days left)", d.Raw, d.DaysLeft)
	}
}

// JSON writes v indented. A nil result slice is written as [].
func JSON(w io.Writer, v any) error {
	if results, ok := v.([]ranking.Result); ok && results == nil {
		v = []ranking.Result{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
