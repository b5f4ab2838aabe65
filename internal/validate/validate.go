// Package validate checks an IntegratedResponse for structural conformance
// and business rules before it is trusted downstream.
//
// Validate collects every violation rather than stopping at the first.
// FindWarnings reports duplicates without failing.
package validate

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/agentoven/boardroom/pkg/models"
)

// MinConfidence is the lowest overall confidence accepted as reliable.
const MinConfidence = 0.4

// ValidationError carries every violation found.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "response validation failed: " + strings.Join(e.Violations, "; ")
}

var timeframes = []string{"immediate", "shortTerm", "longTerm"}

// Validate returns nil or a *ValidationError listing all violations.
func Validate(r *models.IntegratedResponse) error {
	if r == nil {
		return &ValidationError{Violations: []string{"Response is missing"}}
	}
	var v []string

	// Required fields. A nil slice or map is an absent field on the wire.
	if r.Summaries == nil {
		v = append(v, "Missing required field: summaries")
	}
	if r.KeyTakeaways == nil {
		v = append(v, "Missing required field: keyTakeaways")
	}
	if r.ConsolidatedRisks == nil {
		v = append(v, "Missing required field: consolidatedRisks")
	}
	if r.StrategicDirection == nil {
		v = append(v, "Missing required field: strategicDirection")
	}
	if r.ContributingAgents == nil {
		v = append(v, "Missing required field: contributingAgents")
	}
	if r.MasterActionPlan == nil {
		v = append(v, "Missing required field: masterActionPlan")
	} else {
		buckets := [][]string{r.MasterActionPlan.Immediate, r.MasterActionPlan.ShortTerm, r.MasterActionPlan.LongTerm}
		for i, b := range buckets {
			if b == nil {
				v = append(v, "Missing required action plan timeframe: "+timeframes[i])
			}
		}
	}

	// Types and ranges.
	confidenceValid := !math.IsNaN(r.OverallConfidence) && r.OverallConfidence >= 0 && r.OverallConfidence <= 1
	if !confidenceValid {
		v = append(v, "Overall confidence must be a number between 0 and 1")
	}
	if r.Timestamp.IsZero() {
		v = append(v, "Timestamp must be a valid Date object")
	}
	if r.MarketingStrategy != nil {
		if r.MarketingStrategy.Metrics.KPIs == nil {
			v = append(v, "Marketing metrics KPIs must be an array")
		}
		if r.MarketingStrategy.Metrics.Targets == nil {
			v = append(v, "Marketing metrics targets must be an array")
		}
	}

	// Business rules.
	if confidenceValid && r.OverallConfidence < MinConfidence {
		v = append(v, "Overall confidence is too low for a reliable response")
	}
	if len(r.KeyTakeaways) == 0 {
		v = append(v, "Must have at least one key takeaway")
	}
	if len(r.StrategicDirection) == 0 {
		v = append(v, "Must have at least one strategic direction")
	}
	if r.MasterActionPlan.Empty() {
		v = append(v, "Action plan must contain at least one action item")
	}
	if !r.HasContributor(models.PrimaryRole) {
		v = append(v, fmt.Sprintf("%s must be included in contributing agents", models.PrimaryRole))
	}
	if r.HasContributor(models.RoleCMO) && r.MarketingStrategy == nil {
		v = append(v, "Marketing strategy must be present when Marketing agent contributes")
	}

	if len(v) > 0 {
		return &ValidationError{Violations: v}
	}
	return nil
}

// FindWarnings flags duplicate key takeaways and risks.
func FindWarnings(r *models.IntegratedResponse) []string {
	if r == nil {
		return nil
	}
	var w []string
	if d := duplicates(r.KeyTakeaways); len(d) > 0 {
		w = append(w, "Duplicate key takeaways found: "+strings.Join(d, ", "))
	}
	if d := duplicates(r.ConsolidatedRisks); len(d) > 0 {
		w = append(w, "Duplicate risks found: "+strings.Join(d, ", "))
	}
	return w
}

// duplicates returns each repeated entry once, in first-repeat order.
func duplicates(items []string) []string {
	seen := make(map[string]int, len(items))
	var out []string
	for _, it := range items {
		seen[it]++
		if seen[it] == 2 {
			out = append(out, it)
		}
	}
	return out
}

// ValidateJSON checks a wire-form integrated response. Field types are
// checked on the raw document first, since decoding into Go types would
// hide them; the decoded value then goes through Validate.
func ValidateJSON(raw []byte) (*models.IntegratedResponse, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &ValidationError{Violations: []string{"Response is not a JSON object"}}
	}

	var v []string
	for _, f := range []string{"summaries", "overallConfidence", "keyTakeaways", "consolidatedRisks",
		"strategicDirection", "masterActionPlan", "contributingAgents", "timestamp"} {
		if val, ok := doc[f]; !ok || val == nil {
			v = append(v, "Missing required field: "+f)
		}
	}
	if val, ok := doc["overallConfidence"]; ok && val != nil {
		if _, isNum := val.(float64); !isNum {
			v = append(v, "Overall confidence must be a number between 0 and 1")
		}
	}
	if val, ok := doc["timestamp"]; ok && val != nil {
		if _, isStr := val.(string); !isStr {
			v = append(v, "Timestamp must be a valid Date object")
		}
	}
	for _, lf := range []struct{ field, msg string }{
		{"keyTakeaways", "Key takeaways must be an array"},
		{"consolidatedRisks", "Consolidated risks must be an array"},
		{"strategicDirection", "Strategic direction must be an array"},
		{"contributingAgents", "Contributing agents must be an array"},
	} {
		if val, ok := doc[lf.field]; ok && val != nil {
			if _, isList := val.([]any); !isList {
				v = append(v, lf.msg)
			}
		}
	}
	if plan, ok := doc["masterActionPlan"].(map[string]any); ok {
		for _, tf := range timeframes {
			val, ok := plan[tf]
			if !ok || val == nil {
				v = append(v, "Missing required action plan timeframe: "+tf)
			} else if _, isList := val.([]any); !isList {
				v = append(v, "Action plan timeframe must be an array: "+tf)
			}
		}
	}
	if ms, ok := doc["marketingStrategy"].(map[string]any); ok {
		metrics, _ := ms["metrics"].(map[string]any)
		if _, isList := metrics["kpis"].([]any); !isList {
			v = append(v, "Marketing metrics KPIs must be an array")
		}
		if _, isList := metrics["targets"].([]any); !isList {
			v = append(v, "Marketing metrics targets must be an array")
		}
		if _, isStr := metrics["timeline"].(string); !isStr {
			v = append(v, "Marketing metrics timeline must be a string")
		}
	}
	if len(v) > 0 {
		return nil, &ValidationError{Violations: v}
	}

	var r models.IntegratedResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, &ValidationError{Violations: []string{err.Error()}}
	}
	if err := Validate(&r); err != nil {
		return nil, err
	}
	return &r, nil
}
