// Package integrate merges advisor responses into one IntegratedResponse.
//
// The merge is deterministic: lists are concatenated primary first, then
// secondaries in call order, with no deduplication.
package integrate

import (
	"time"

	"github.com/agentoven/boardroom/pkg/models"
)

// DefaultConfidence is used when no input reports a confidence.
const DefaultConfidence = 0.7

// Integrate merges the primary response with the successful secondary
// consultations, stamping the result with at. Every list in the result
// is non-nil.
func Integrate(primary *models.AdvisorResponse, secondaries []models.Consultation, at time.Time) *models.IntegratedResponse {
	out := &models.IntegratedResponse{
		Summaries:          make(map[models.Role]string),
		KeyTakeaways:       []string{},
		ConsolidatedRisks:  []string{},
		StrategicDirection: []string{},
		MasterActionPlan:   &models.ActionPlan{Immediate: []string{}, ShortTerm: []string{}, LongTerm: []string{}},
		ContributingAgents: []models.Role{},
		Timestamp:          at,
	}

	var (
		confSum   float64
		confCount int
	)
	add := func(role models.Role, r *models.AdvisorResponse) {
		if r == nil {
			return
		}
		out.ContributingAgents = append(out.ContributingAgents, role)
		out.Summaries[role] = r.Summary
		out.KeyTakeaways = append(out.KeyTakeaways, r.KeyTakeaways...)
		out.ConsolidatedRisks = append(out.ConsolidatedRisks, r.Risks...)
		out.StrategicDirection = append(out.StrategicDirection, r.StrategicDirection...)
		if r.ActionPlan != nil {
			out.MasterActionPlan.Immediate = append(out.MasterActionPlan.Immediate, r.ActionPlan.Immediate...)
			out.MasterActionPlan.ShortTerm = append(out.MasterActionPlan.ShortTerm, r.ActionPlan.ShortTerm...)
			out.MasterActionPlan.LongTerm = append(out.MasterActionPlan.LongTerm, r.ActionPlan.LongTerm...)
		}
		if r.Confidence != nil {
			confSum += *r.Confidence
			confCount++
		}
		if r.Marketing != nil && out.MarketingStrategy == nil {
			ms := *r.Marketing
			out.MarketingStrategy = &ms
		}
	}

	primaryRole := models.PrimaryRole
	if primary != nil && primary.Role != "" {
		primaryRole = primary.Role
	}
	add(primaryRole, primary)
	for _, c := range secondaries {
		role := c.Title
		if role == "" && c.Response != nil {
			role = c.Response.Role
		}
		add(role, c.Response)
	}

	out.OverallConfidence = DefaultConfidence
	if confCount > 0 {
		out.OverallConfidence = confSum / float64(confCount)
	}
	return out
}

// ApplySynthesis attaches the synthesis result. Its confidence, when
// reported, replaces the averaged one. Its takeaways, strategy and plan
// fill only sections the advisors left empty.
func ApplySynthesis(ir *models.IntegratedResponse, s *models.Synthesis) {
	if ir == nil || s == nil {
		return
	}
	ir.Synthesis = s
	if s.Confidence != nil {
		ir.OverallConfidence = *s.Confidence
	}
	if len(ir.KeyTakeaways) == 0 {
		ir.KeyTakeaways = append(ir.KeyTakeaways, s.KeyTakeaways...)
	}
	if len(ir.StrategicDirection) == 0 {
		ir.StrategicDirection = append(ir.StrategicDirection, s.IntegratedStrategy...)
	}
	if ir.MasterActionPlan.Empty() {
		ir.MasterActionPlan = &models.ActionPlan{
			Immediate: append([]string{}, s.ImplementationPlan.Immediate...),
			ShortTerm: append([]string{}, s.ImplementationPlan.ShortTerm...),
			LongTerm:  append([]string{}, s.ImplementationPlan.LongTerm...),
		}
	}
}
