package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/agentoven/boardroom/pkg/models"
	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	title   lipgloss.Style
	header  lipgloss.Style
	role    lipgloss.Style
	detail  lipgloss.Style
	pending lipgloss.Style
	active  lipgloss.Style
	done    lipgloss.Style
	failed  lipgloss.Style
	warning lipgloss.Style
	muted   lipgloss.Style
	section lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69")),
		header:  lipgloss.NewStyle().Bold(true),
		role:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75")),
		detail:  lipgloss.NewStyle().PaddingLeft(2),
		pending: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		active:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		done:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		failed:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		warning: lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("243")),
		section: lipgloss.NewStyle().MarginTop(1),
	}
}

// progress prints consultation events as they arrive. Status events only
// print the advisors whose state changed.
type progress struct {
	out  io.Writer
	s    styles
	seen map[models.Role]models.AdvisorState
}

func newProgress(out io.Writer) *progress {
	return &progress{out: out, s: newStyles(), seen: make(map[models.Role]models.AdvisorState)}
}

func (p *progress) status(statuses map[models.Role]models.AdvisorStatus) {
	for _, role := range orderedRoles(statuses) {
		st := statuses[role]
		if p.seen[role] == st.State() {
			continue
		}
		p.seen[role] = st.State()
		fmt.Fprintln(p.out, statusLine(st, p.s))
	}
}

func (p *progress) response(role models.Role, resp *models.AdvisorResponse) {
	if resp == nil {
		return
	}
	lines := []string{p.s.role.Render(string(role))}
	lines = append(lines, p.s.detail.Render(resp.Summary))
	for _, t := range resp.KeyTakeaways {
		lines = append(lines, p.s.detail.Render("• "+t))
	}
	fmt.Fprintln(p.out, p.s.section.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))
}

func (p *progress) final(ev models.Event, ir *models.IntegratedResponse) {
	fmt.Fprintln(p.out, p.s.section.Render(renderReport(ev, ir, p.s)))
}

func (p *progress) failure(ev models.Event) {
	lines := []string{p.s.failed.Render("✗ " + ev.Message)}
	for _, v := range ev.Violations {
		lines = append(lines, p.s.detail.Render("- "+v))
	}
	if ev.Partial != nil {
		lines = append(lines, p.s.muted.Render(fmt.Sprintf(
			"Partial result: %d consultation(s) gathered before the failure.", len(ev.Partial.Consultations))))
		if cr := ev.Partial.CostReport; cr != nil {
			lines = append(lines, p.s.muted.Render(costLine(cr)))
		}
	}
	fmt.Fprintln(p.out, p.s.section.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))
}

func statusLine(st models.AdvisorStatus, s styles) string {
	switch st.State() {
	case models.StateActive:
		return s.active.Render("◐ " + string(st.Title) + " is deliberating")
	case models.StateResponded:
		return s.done.Render("● " + string(st.Title) + " responded")
	case models.StateErrored:
		msg := "● " + string(st.Title) + " failed"
		if st.ErrorMessage != "" {
			msg += ": " + st.ErrorMessage
		}
		return s.failed.Render(msg)
	default:
		return s.pending.Render("○ " + string(st.Title) + " pending")
	}
}

func renderReport(ev models.Event, ir *models.IntegratedResponse, s styles) string {
	lines := []string{s.title.Render("Boardroom recommendation")}

	if ir.Synthesis != nil && ir.Synthesis.Summary != "" {
		lines = append(lines, ir.Synthesis.Summary)
	} else if sum := ir.Summaries[models.PrimaryRole]; sum != "" {
		lines = append(lines, sum)
	}
	lines = append(lines, s.muted.Render(fmt.Sprintf("confidence: %.0f%%", ir.OverallConfidence*100)))

	lines = append(lines, bulletSection("Key takeaways", ir.KeyTakeaways, s)...)
	lines = append(lines, bulletSection("Strategic direction", ir.StrategicDirection, s)...)
	lines = append(lines, bulletSection("Risks", ir.ConsolidatedRisks, s)...)
	if plan := ir.MasterActionPlan; !plan.Empty() {
		lines = append(lines, bulletSection("Immediate", plan.Immediate, s)...)
		lines = append(lines, bulletSection("Short term", plan.ShortTerm, s)...)
		lines = append(lines, bulletSection("Long term", plan.LongTerm, s)...)
	}

	contributors := make([]string, len(ir.ContributingAgents))
	for i, r := range ir.ContributingAgents {
		contributors[i] = r.Abbreviation()
	}
	lines = append(lines, "", s.muted.Render("contributors: "+strings.Join(contributors, ", ")))
	if ev.CostReport != nil {
		lines = append(lines, s.muted.Render(costLine(ev.CostReport)))
	}
	for _, w := range ev.Warnings {
		lines = append(lines, s.warning.Render("! "+w))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func bulletSection(title string, items []string, s styles) []string {
	if len(items) == 0 {
		return nil
	}
	lines := []string{"", s.header.Render(title)}
	for _, it := range items {
		lines = append(lines, s.detail.Render("• "+it))
	}
	return lines
}

func costLine(cr *models.CostReport) string {
	return fmt.Sprintf("tokens: %d (prompt %d, completion %d)  cost: $%.4f",
		cr.TotalTokens, cr.PromptTokens, cr.CompletionTokens, cr.TotalCost)
}

func renderProfiles(profiles []models.AdvisorProfile, s styles) string {
	lines := []string{
		s.title.Render("Executive advisors"),
		s.header.Render(fmt.Sprintf("advisors: %d", len(profiles))),
	}
	for _, p := range profiles {
		badge := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(p.Color)).Render(fmt.Sprintf("%-4s", p.Abbreviation))
		line := lipgloss.JoinHorizontal(lipgloss.Top, badge, " ", p.Name, s.muted.Render(" · "+string(p.Title)))
		if !p.Available {
			line += " " + s.warning.Render("[unavailable]")
		}
		lines = append(lines, line)
		if len(p.Expertise) > 0 {
			lines = append(lines, s.detail.Render(s.muted.Render(strings.Join(p.Expertise, ", "))))
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// orderedRoles lists known roles in catalog order, then any others sorted.
func orderedRoles(statuses map[models.Role]models.AdvisorStatus) []models.Role {
	var out []models.Role
	known := make(map[models.Role]bool, len(models.AllRoles))
	for _, r := range models.AllRoles {
		known[r] = true
		if _, ok := statuses[r]; ok {
			out = append(out, r)
		}
	}
	var extra []models.Role
	for r := range statuses {
		if !known[r] {
			extra = append(extra, r)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}
