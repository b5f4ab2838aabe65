package completion

import (
	"context"
	"strings"

	"github.com/agentoven/boardroom/pkg/models"
	"github.com/google/uuid"
)

// MockDriver answers with canned advisor JSON so the service runs without
// provider credentials. It picks a reply from the system prompt.
type MockDriver struct{}

// NewMockDriver returns the canned-response driver.
func NewMockDriver() *MockDriver { return &MockDriver{} }

func (d *MockDriver) Kind() string { return "mock" }

func (d *MockDriver) Complete(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, transportError("mock", err)
	}

	var system, prompt string
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = m.Content
		} else {
			prompt += m.Content
		}
	}

	var text string
	switch {
	case strings.Contains(system, "synthesis"):
		text = mockSynthesis
	case strings.Contains(system, "(CEO)"):
		text = mockCEO
	case strings.Contains(system, "(CMO)"):
		text = mockCMO
	default:
		text = mockAdvisor
	}

	promptTokens := int64(len(system)+len(prompt)) / 4
	completionTokens := int64(len(text)) / 4
	return &Response{
		ID:       uuid.New().String(),
		Provider: "mock",
		Model:    req.Model,
		Text:     text,
		Usage: models.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	}, nil
}

const mockCEO = `{
  "summary": "Strategic analysis of European market expansion opportunity",
  "keyTakeaways": [
    "Strong growth metrics indicate readiness for expansion",
    "European market presents significant opportunity",
    "Need marketing expertise for regional adaptation"
  ],
  "initialAnalysis": "Company shows strong fundamentals and a solid presence in North America.",
  "executivesToConsult": ["Chief Marketing Officer"],
  "strategicDirection": [
    "Focus on UK market initially as English-speaking gateway",
    "Establish local partnerships in Germany and France"
  ],
  "risks": ["GDPR and data privacy compliance", "Cultural and language barriers"],
  "recommendations": ["Start with UK market entry within 3 months", "Hire local leadership team"],
  "actionPlan": {
    "immediate": ["Conduct detailed market research in target countries"],
    "shortTerm": ["Establish UK office and initial team"],
    "longTerm": ["Expand to Germany and France"]
  },
  "confidence": 0.8
}`

const mockCMO = `{
  "summary": "Localized positioning is required for each European market",
  "keyTakeaways": ["Brand awareness in Europe is low", "Localization drives conversion"],
  "marketAnalysis": "Fragmented market with strong local incumbents.",
  "marketOpportunities": ["Mid-market teams underserved by incumbents"],
  "marketStrategy": ["Lead with UK content marketing", "Partner-led launches in DACH"],
  "risks": ["Local competition in established markets"],
  "recommendations": ["Localize site and pricing before launch"],
  "metrics": {
    "kpis": ["Qualified pipeline", "CAC by region"],
    "targets": ["500 trials in first quarter"],
    "timeline": "6 months"
  },
  "confidence": 0.75
}`

const mockAdvisor = `{
  "summary": "Functional assessment of the proposal",
  "keyTakeaways": ["Execution capacity must scale with the plan"],
  "recommendations": ["Stage investment behind clear milestones"],
  "risks": ["Execution risk during scale-up"],
  "confidence": 0.7
}`

const mockSynthesis = `{
  "summary": "Proceed with a staged European entry led by the UK",
  "keyTakeaways": ["UK first, then DACH via partners"],
  "executiveAlignment": {
    "agreements": ["Localization is required"],
    "differences": ["Pace of hiring"],
    "synergies": ["Marketing and partnerships share launch plans"]
  },
  "integratedStrategy": ["Staged entry with localized positioning"],
  "implementationPlan": {
    "immediate": ["Commission market research"],
    "shortTerm": ["Open UK office"],
    "longTerm": ["Expand to Germany and France"]
  },
  "confidence": 0.85
}`
