package integrate

import (
	"testing"
	"time"

	"github.com/agentoven/boardroom/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func conf(v float64) *float64 { return &v }

func primaryResponse() *models.AdvisorResponse {
	return &models.AdvisorResponse{
		Role:               models.RoleCEO,
		Summary:            "Expand to Europe",
		KeyTakeaways:       []string{"p1", "p2"},
		Risks:              []string{"GDPR"},
		StrategicDirection: []string{"UK first"},
		ActionPlan:         &models.ActionPlan{Immediate: []string{"research"}, ShortTerm: []string{"hire"}, LongTerm: []string{"scale"}},
		Confidence:         conf(0.8),
	}
}

func TestIntegrate_PrimaryOnly(t *testing.T) {
	p := primaryResponse()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	ir := Integrate(p, nil, at)

	assert.Equal(t, []models.Role{models.RoleCEO}, ir.ContributingAgents)
	assert.Equal(t, p.KeyTakeaways, ir.KeyTakeaways)
	assert.Equal(t, p.Risks, ir.ConsolidatedRisks)
	assert.Equal(t, p.StrategicDirection, ir.StrategicDirection)
	assert.Equal(t, *p.ActionPlan, *ir.MasterActionPlan)
	assert.InDelta(t, 0.8, ir.OverallConfidence, 1e-9)
	assert.Equal(t, at, ir.Timestamp)
	assert.Equal(t, map[models.Role]string{models.RoleCEO: "Expand to Europe"}, ir.Summaries)
	assert.Nil(t, ir.MarketingStrategy)
}

func TestIntegrate_ConcatenatesInCallOrder(t *testing.T) {
	p := primaryResponse()
	s1 := &models.AdvisorResponse{Role: models.RoleCMO, Summary: "m", KeyTakeaways: []string{"m1", "p1"}, Confidence: conf(0.6),
		Marketing: &models.MarketingStrategy{Metrics: models.MarketingMetrics{KPIs: []string{"CAC"}}}}
	s2 := &models.AdvisorResponse{Role: models.RoleCFO, Summary: "f", KeyTakeaways: []string{"f1"}, Risks: []string{"burn"},
		ActionPlan: &models.ActionPlan{LongTerm: []string{"raise"}}}

	ir := Integrate(p, []models.Consultation{
		{Title: models.RoleCMO, Response: s1},
		{Title: models.RoleCFO, Response: s2},
	}, time.Now().UTC())

	assert.Equal(t, []models.Role{models.RoleCEO, models.RoleCMO, models.RoleCFO}, ir.ContributingAgents)
	assert.Equal(t, []string{"p1", "p2", "m1", "p1", "f1"}, ir.KeyTakeaways)
	assert.Equal(t, []string{"GDPR", "burn"}, ir.ConsolidatedRisks)
	assert.Equal(t, []string{"scale", "raise"}, ir.MasterActionPlan.LongTerm)
	assert.Equal(t, []string{"research"}, ir.MasterActionPlan.Immediate)
	assert.InDelta(t, 0.7, ir.OverallConfidence, 1e-9)
	require.NotNil(t, ir.MarketingStrategy)
	assert.Equal(t, []string{"CAC"}, ir.MarketingStrategy.Metrics.KPIs)
	assert.WithinDuration(t, time.Now(), ir.Timestamp, time.Minute)
}

func TestIntegrate_DefaultsAndNonNilLists(t *testing.T) {
	ir := Integrate(&models.AdvisorResponse{Role: models.RoleCEO, Summary: "bare"}, nil, time.Now().UTC())

	assert.Equal(t, DefaultConfidence, ir.OverallConfidence)
	assert.NotNil(t, ir.KeyTakeaways)
	assert.NotNil(t, ir.ConsolidatedRisks)
	assert.NotNil(t, ir.StrategicDirection)
	require.NotNil(t, ir.MasterActionPlan)
	assert.NotNil(t, ir.MasterActionPlan.Immediate)
	assert.NotNil(t, ir.MasterActionPlan.ShortTerm)
	assert.NotNil(t, ir.MasterActionPlan.LongTerm)
}

func TestApplySynthesis(t *testing.T) {
	ir := Integrate(&models.AdvisorResponse{Role: models.RoleCEO, Summary: "bare", Confidence: conf(0.5)}, nil, time.Now().UTC())
	ApplySynthesis(ir, &models.Synthesis{
		Summary:            "merged",
		KeyTakeaways:       []string{"k"},
		IntegratedStrategy: []string{"s"},
		ImplementationPlan: models.ActionPlan{Immediate: []string{"now"}},
		Confidence:         conf(0.85),
	})

	assert.InDelta(t, 0.85, ir.OverallConfidence, 1e-9)
	assert.Equal(t, []string{"k"}, ir.KeyTakeaways)
	assert.Equal(t, []string{"s"}, ir.StrategicDirection)
	assert.Equal(t, []string{"now"}, ir.MasterActionPlan.Immediate)
	assert.NotNil(t, ir.MasterActionPlan.LongTerm)
	require.NotNil(t, ir.Synthesis)
	assert.Equal(t, "merged", ir.Synthesis.Summary)
}

func TestApplySynthesis_KeepsAdvisorSections(t *testing.T) {
	ir := Integrate(primaryResponse(), nil, time.Now().UTC())
	ApplySynthesis(ir, &models.Synthesis{Summary: "merged", KeyTakeaways: []string{"k"}})

	assert.Equal(t, []string{"p1", "p2"}, ir.KeyTakeaways)
	assert.InDelta(t, 0.8, ir.OverallConfidence, 1e-9)
}
