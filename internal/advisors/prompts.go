package advisors

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/agentoven/boardroom/pkg/models"
)

type parserKind int

const (
	parserGeneric parserKind = iota
	parserMarketing
)

// advisorSpec is the static description of one built-in role.
type advisorSpec struct {
	role    models.Role
	focus   string
	schema  string
	planKey string
	riskKey string
	parser  parserKind
}

func (s advisorSpec) advisor() Advisor {
	a := Advisor{
		Role:        s.role,
		Temperature: 0.7,
		Prompt:      s.prompt,
	}
	switch s.parser {
	case parserMarketing:
		a.Parse = parseMarketing(s.role)
	default:
		a.Parse = parseAdvisor(s.role, s.planKey, s.riskKey)
	}
	return a
}

func (s advisorSpec) prompt(query string, cc *models.CompanyContext) []models.ChatMessage {
	var sys strings.Builder
	fmt.Fprintf(&sys, "You are the %s (%s)", s.role, s.role.Abbreviation())
	if cc != nil && cc.CompanyName != "" {
		fmt.Fprintf(&sys, " of %s", cc.CompanyName)
	}
	sys.WriteString(". ")
	sys.WriteString(s.focus)
	if s.role == models.PrimaryRole {
		sys.WriteString("\n\nYou may request input from these executives by listing their exact titles in executivesToConsult:\n")
		for _, r := range models.AllRoles {
			if r != models.PrimaryRole {
				fmt.Fprintf(&sys, "- %s\n", r)
			}
		}
		sys.WriteString("Only request executives whose expertise the question needs. Use an empty list when none are needed.")
	}
	sys.WriteString("\n\nAlways respond with a single valid JSON object and no other text.")

	var user strings.Builder
	writeCompanyContext(&user, cc)
	fmt.Fprintf(&user, "Question: %s\n\nRespond in this JSON format:\n%s", query, s.schema)

	return []models.ChatMessage{
		{Role: "system", Content: sys.String()},
		{Role: "user", Content: user.String()},
	}
}

func writeCompanyContext(b *strings.Builder, cc *models.CompanyContext) {
	if cc == nil {
		return
	}
	b.WriteString("Company context:\n")
	if cc.CompanyName != "" {
		fmt.Fprintf(b, "- Company: %s\n", cc.CompanyName)
	}
	if cc.MissionStatement != "" {
		fmt.Fprintf(b, "- Mission: %s\n", cc.MissionStatement)
	}
	if cc.Industry != "" {
		fmt.Fprintf(b, "- Industry: %s\n", cc.Industry)
	}
	keys := make([]string, 0, len(cc.Extra))
	for k := range cc.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "- %s: %s\n", k, cc.Extra[k])
	}
	b.WriteString("\n")
}

const commonSchema = `  "summary": "brief overview",
  "keyTakeaways": ["key point"],
  "recommendations": ["recommendation"],
  "risks": ["risk"],
  "confidence": 0.0`

func schemaWith(extra string) string {
	if extra == "" {
		return "{\n" + commonSchema + "\n}"
	}
	return "{\n" + commonSchema + ",\n" + extra + "\n}"
}

const planSchema = `{"immediate": ["action"], "shortTerm": ["action"], "longTerm": ["action"]}`

var builtinSpecs = []advisorSpec{
	{
		role:    models.RoleCEO,
		focus:   "You set overall strategy, weigh trade-offs across the company, and decide which other executives should weigh in.",
		schema:  schemaWith(`  "strategicDirection": ["direction"],` + "\n" + `  "executivesToConsult": ["Chief Marketing Officer"],` + "\n" + `  "actionPlan": ` + planSchema),
		planKey: "actionPlan",
	},
	{
		role:   models.RoleCMO,
		focus:  "You own brand strategy, digital marketing, market analysis and customer experience.",
		schema: schemaWith(`  "marketAnalysis": "analysis",` + "\n" + `  "marketOpportunities": ["opportunity"],` + "\n" + `  "marketStrategy": ["strategy"],` + "\n" + `  "metrics": {"kpis": ["kpi"], "targets": ["target"], "timeline": "timeline"}`),
		parser: parserMarketing,
	},
	{
		role:    models.RoleCFO,
		focus:   "You own financial strategy, investment planning, and financial risk.",
		schema:  schemaWith(`  "financialAnalysis": {"revenue": "impact", "costs": "impact", "roi": "estimate"},` + "\n" + `  "financialPlanning": ` + planSchema),
		planKey: "financialPlanning",
		riskKey: "financialRisks",
	},
	{
		role:    models.RoleCTO,
		focus:   "You own technical architecture, infrastructure, security, and engineering delivery.",
		schema:  schemaWith(`  "technicalAnalysis": {"architecture": "assessment", "scalability": "assessment", "security": "assessment"},` + "\n" + `  "riskAssessment": {"technical": ["risk"], "operational": ["risk"]},` + "\n" + `  "implementationPlan": ` + planSchema),
		planKey: "implementationPlan",
		riskKey: "riskAssessment",
	},
	{
		role:    models.RoleCOO,
		focus:   "You own operations, process optimization, supply chain, and quality.",
		schema:  schemaWith(`  "operationalAnalysis": {"processes": "assessment", "resources": "assessment"},` + "\n" + `  "operationalPlan": ` + planSchema),
		planKey: "operationalPlan",
	},
	{
		role:    models.RoleCCO,
		focus:   "You own regulatory compliance, policy, ethics, and governance.",
		schema:  schemaWith(`  "complianceRequirements": ["requirement"],` + "\n" + `  "actionPlan": ` + planSchema),
		planKey: "actionPlan",
	},
	{
		role:    models.RoleCSO,
		focus:   "You own sales strategy, customer relationships, and revenue growth.",
		schema:  schemaWith(`  "salesStrategy": ["strategy"],` + "\n" + `  "implementation": ` + planSchema),
		planKey: "implementation",
	},
	{
		role:    models.RoleCXO,
		focus:   "You own market expansion, business scaling, and international growth.",
		schema:  schemaWith(`  "marketAssessment": {"opportunities": ["opportunity"], "barriers": ["barrier"]},` + "\n" + `  "expansionRoadmap": ` + planSchema),
		planKey: "expansionRoadmap",
	},
	{
		role:   models.RoleCDO,
		focus:  "You own product development, innovation strategy, and market validation.",
		schema: schemaWith(`  "productRoadmap": {"discovery": ["step"], "validation": ["step"], "scaling": ["step"]}`),
	},
}

// SynthesisPrompt builds the final call that merges the primary advisor's
// response with every secondary consultation.
func SynthesisPrompt(query string, cc *models.CompanyContext, primary *models.AdvisorResponse, consultations []models.Consultation) []models.ChatMessage {
	sys := fmt.Sprintf("You are the %s (%s) performing the final synthesis of your executive team's input. "+
		"Identify where the executives agree and differ, then produce one integrated recommendation. "+
		"Always respond with a single valid JSON object and no other text.", models.PrimaryRole, models.PrimaryRole.Abbreviation())

	var user strings.Builder
	writeCompanyContext(&user, cc)
	fmt.Fprintf(&user, "Question: %s\n\n", query)
	fmt.Fprintf(&user, "Your initial analysis:\n%s\n\n", mustJSON(primary))
	for _, c := range consultations {
		fmt.Fprintf(&user, "Input from the %s:\n%s\n\n", c.Title, mustJSON(c.Response))
	}
	user.WriteString(`Respond in this JSON format:
{
  "summary": "integrated summary",
  "keyTakeaways": ["key point"],
  "executiveAlignment": {"agreements": ["point"], "differences": ["point"], "synergies": ["point"]},
  "integratedStrategy": ["strategy"],
  "implementationPlan": ` + planSchema + `,
  "confidence": 0.0
}`)

	return []models.ChatMessage{
		{Role: "system", Content: sys},
		{Role: "user", Content: user.String()},
	}
}

func mustJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}
