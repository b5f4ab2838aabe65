package models

import (
	"encoding/json"
	"strings"
	"time"
)

// ── Advisor Roles ────────────────────────────────────────────

// Role identifies one executive advisor. The wire form is the full title
// ("Chief Marketing Officer") because that is what the primary advisor
// names when it requests secondary consultations.
type Role string

const (
	RoleCEO  Role = "Chief Executive Officer"
	RoleCMO  Role = "Chief Marketing Officer"
	RoleCFO  Role = "Chief Financial Officer"
	RoleCTO  Role = "Chief Technology Officer"
	RoleCOO  Role = "Chief Operations Officer"
	RoleCHRO Role = "Chief Human Resources Officer"
	RoleCCO  Role = "Chief Compliance Officer"
	RoleCSO  Role = "Chief Sales Officer"
	RoleCXO  Role = "Chief Expansion Officer"
	RoleCDO  Role = "Chief Development Officer"
)

// PrimaryRole is always consulted first and decides the fan-out.
const PrimaryRole = RoleCEO

// AllRoles lists every role in catalog order.
var AllRoles = []Role{RoleCEO, RoleCMO, RoleCFO, RoleCTO, RoleCOO, RoleCHRO, RoleCCO, RoleCSO, RoleCXO, RoleCDO}

var roleAbbreviations = map[string]Role{
	"CEO":  RoleCEO,
	"CMO":  RoleCMO,
	"CFO":  RoleCFO,
	"CTO":  RoleCTO,
	"COO":  RoleCOO,
	"CHRO": RoleCHRO,
	"CCO":  RoleCCO,
	"CSO":  RoleCSO,
	"CXO":  RoleCXO,
	"CDO":  RoleCDO,
}

// ParseRole resolves a title or abbreviation ("CMO", "chief marketing officer")
// to a known Role. The second return value is false for unknown names.
func ParseRole(name string) (Role, bool) {
	name = strings.TrimSpace(name)
	if r, ok := roleAbbreviations[strings.ToUpper(name)]; ok {
		return r, true
	}
	for _, r := range AllRoles {
		if strings.EqualFold(string(r), name) {
			return r, true
		}
	}
	return Role(name), false
}

// Abbreviation returns the short form of the role ("CMO"), or the title
// itself for roles outside the known set.
func (r Role) Abbreviation() string {
	for abbr, role := range roleAbbreviations {
		if role == r {
			return abbr
		}
	}
	return string(r)
}

// AdvisorProfile is the catalog entry describing one advisor.
type AdvisorProfile struct {
	ID           string   `json:"id" yaml:"id"`
	Title        Role     `json:"title" yaml:"title"`
	Abbreviation string   `json:"abbreviation" yaml:"abbreviation"`
	Name         string   `json:"name" yaml:"name"`
	Initials     string   `json:"initials" yaml:"initials"`
	Color        string   `json:"color" yaml:"color"`
	Expertise    []string `json:"expertise" yaml:"expertise"`
	Model        string   `json:"model,omitempty" yaml:"model,omitempty"`
	Available    bool     `json:"available" yaml:"-"`
}

// ── Advisor Status ───────────────────────────────────────────

// AdvisorState is the lifecycle position of one advisor within a consultation.
type AdvisorState string

const (
	StateUninitialized AdvisorState = ""
	StatePending       AdvisorState = "pending"
	StateActive        AdvisorState = "active"
	StateResponded     AdvisorState = "responded"
	StateErrored       AdvisorState = "errored"
)

// AdvisorStatus is the per-role progress record streamed to clients.
// Exactly one of IsPending, IsActive, HasResponded, Error is true.
type AdvisorStatus struct {
	Title        Role       `json:"title"`
	IsActive     bool       `json:"isActive"`
	HasResponded bool       `json:"hasResponded"`
	IsPending    bool       `json:"isPending"`
	Error        bool       `json:"error"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
}

// NewAdvisorStatus builds a status record in the given state.
func NewAdvisorStatus(role Role, state AdvisorState) AdvisorStatus {
	s := AdvisorStatus{Title: role}
	s.setState(state)
	return s
}

// State derives the lifecycle state from the flag set.
func (s AdvisorStatus) State() AdvisorState {
	switch {
	case s.Error:
		return StateErrored
	case s.IsActive:
		return StateActive
	case s.HasResponded:
		return StateResponded
	case s.IsPending:
		return StatePending
	default:
		return StateUninitialized
	}
}

// Transition moves the status to state, stamping terminal transitions with at.
func (s *AdvisorStatus) Transition(state AdvisorState, at time.Time) {
	s.setState(state)
	if state == StateResponded || state == StateErrored {
		ts := at.UTC()
		s.Timestamp = &ts
	}
	if state != StateErrored {
		s.ErrorMessage = ""
	}
}

func (s *AdvisorStatus) setState(state AdvisorState) {
	s.IsPending = state == StatePending
	s.IsActive = state == StateActive
	s.HasResponded = state == StateResponded
	s.Error = state == StateErrored
}

// Terminal reports whether the advisor has finished (responded or errored).
func (s AdvisorStatus) Terminal() bool {
	st := s.State()
	return st == StateResponded || st == StateErrored
}

// ── Advisor Responses ────────────────────────────────────────

// ActionPlan groups actions by timeframe. A nil bucket means "absent".
type ActionPlan struct {
	Immediate []string `json:"immediate"`
	ShortTerm []string `json:"shortTerm"`
	LongTerm  []string `json:"longTerm"`
}

// Empty reports whether all three buckets are empty.
func (p *ActionPlan) Empty() bool {
	return p == nil || len(p.Immediate)+len(p.ShortTerm)+len(p.LongTerm) == 0
}

// MarketingMetrics is the measurable part of a marketing strategy.
type MarketingMetrics struct {
	KPIs     []string `json:"kpis"`
	Targets  []string `json:"targets"`
	Timeline string   `json:"timeline"`
}

// MarketingStrategy is the marketing advisor's role-specific section.
type MarketingStrategy struct {
	Analysis      string           `json:"marketAnalysis,omitempty"`
	Opportunities []string         `json:"marketOpportunities,omitempty"`
	Strategy      []string         `json:"marketStrategy,omitempty"`
	Metrics       MarketingMetrics `json:"metrics"`
}

// Usage is the token and cost accounting attached to one completed call.
type Usage struct {
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	TotalTokens      int64   `json:"total_tokens"`
	EstimatedCost    float64 `json:"estimated_cost"`
}

// AdvisorResponse is the parsed result of one advisor call. Fields every
// role shares are typed; role-specific sections are kept as raw JSON.
type AdvisorResponse struct {
	Role                Role                       `json:"role"`
	Summary             string                     `json:"summary"`
	KeyTakeaways        []string                   `json:"keyTakeaways"`
	Recommendations     []string                   `json:"recommendations"`
	StrategicDirection  []string                   `json:"strategicDirection,omitempty"`
	Risks               []string                   `json:"risks,omitempty"`
	ActionPlan          *ActionPlan                `json:"actionPlan,omitempty"`
	Confidence          *float64                   `json:"confidence,omitempty"`
	ExecutivesToConsult []string                   `json:"executivesToConsult,omitempty"`
	Marketing           *MarketingStrategy         `json:"marketingStrategy,omitempty"`
	Sections            map[string]json.RawMessage `json:"sections,omitempty"`
	Usage               Usage                      `json:"usage"`
}

// Consultation pairs a secondary advisor's response with when it arrived.
type Consultation struct {
	Title     Role             `json:"title"`
	Response  *AdvisorResponse `json:"response"`
	Timestamp time.Time        `json:"timestamp"`
}

// ── Synthesis & Integration ──────────────────────────────────

// ExecutiveAlignment captures where the advisors agree and differ.
type ExecutiveAlignment struct {
	Agreements  []string `json:"agreements"`
	Differences []string `json:"differences"`
	Synergies   []string `json:"synergies"`
}

// Synthesis is the parsed output of the final synthesis call.
type Synthesis struct {
	Summary            string             `json:"summary"`
	KeyTakeaways       []string           `json:"keyTakeaways"`
	ExecutiveAlignment ExecutiveAlignment `json:"executiveAlignment"`
	IntegratedStrategy []string           `json:"integratedStrategy"`
	ImplementationPlan ActionPlan         `json:"implementationPlan"`
	Confidence         *float64           `json:"confidence,omitempty"`
}

// IntegratedResponse is the terminal artifact of a consultation.
type IntegratedResponse struct {
	Summaries          map[Role]string    `json:"summaries"`
	OverallConfidence  float64            `json:"overallConfidence"`
	KeyTakeaways       []string           `json:"keyTakeaways"`
	ConsolidatedRisks  []string           `json:"consolidatedRisks"`
	StrategicDirection []string           `json:"strategicDirection"`
	MasterActionPlan   *ActionPlan        `json:"masterActionPlan"`
	ContributingAgents []Role             `json:"contributingAgents"`
	Timestamp          time.Time          `json:"timestamp"`
	MarketingStrategy  *MarketingStrategy `json:"marketingStrategy,omitempty"`
	Synthesis          *Synthesis         `json:"synthesis,omitempty"`
}

// HasContributor reports whether role is among the contributing agents.
func (r *IntegratedResponse) HasContributor(role Role) bool {
	for _, c := range r.ContributingAgents {
		if c == role {
			return true
		}
	}
	return false
}

// ── Usage Accounting ─────────────────────────────────────────

// UsageEvent is one charge appended to a usage ledger.
type UsageEvent struct {
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	TotalTokens      int64   `json:"total_tokens"`
	Cost             float64 `json:"cost"`
	Model            string  `json:"model"`
	Role             Role    `json:"role"`
}

// RoleUsage aggregates every charge made on behalf of one role.
type RoleUsage struct {
	Model            string  `json:"model"`
	Tokens           int64   `json:"tokens"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	Cost             float64 `json:"cost"`
	Calls            int     `json:"calls"`
}

// CostReport is the drained usage of one consultation.
type CostReport struct {
	TotalTokens        int64              `json:"total_tokens"`
	PromptTokens       int64              `json:"prompt_tokens"`
	CompletionTokens   int64              `json:"completion_tokens"`
	TotalCost          float64            `json:"total_cost"`
	ExecutiveBreakdown map[Role]RoleUsage `json:"executive_breakdown"`
}

// ── Requests ─────────────────────────────────────────────────

// CompanyContext is forwarded opaquely into advisor prompts.
type CompanyContext struct {
	CompanyName      string            `json:"companyName"`
	MissionStatement string            `json:"missionStatement"`
	Industry         string            `json:"industry,omitempty"`
	Extra            map[string]string `json:"extra,omitempty"`
}

// ConsultRequest is the inbound body of POST /api/v1/consult.
type ConsultRequest struct {
	Executive      string          `json:"executive,omitempty"`
	Query          string          `json:"query"`
	CompanyContext *CompanyContext `json:"companyContext,omitempty"`
}

// ChatMessage is one message submitted to the completion service.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ClientLogEntry is a log line relayed from a browser client.
type ClientLogEntry struct {
	Message string `json:"message"`
	Level   string `json:"level,omitempty"`
}
