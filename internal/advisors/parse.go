package advisors

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/agentoven/boardroom/pkg/models"
)

// ErrMalformed is matched by errors.Is for completion text that does not
// decode into the expected shape.
var ErrMalformed = errors.New("malformed advisor response")

// ParseError wraps a decode failure with the role whose output failed.
type ParseError struct {
	Role models.Role
	Err  error
}

func (e *ParseError) Error() string {
	if e.Role == "" {
		return fmt.Sprintf("%s: %v", ErrMalformed, e.Err)
	}
	return fmt.Sprintf("%s from %s: %v", ErrMalformed, e.Role, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrMalformed }

// ExtractJSON trims text to its outermost {...} object. Models often wrap
// JSON in prose or code fences.
func ExtractJSON(text string) ([]byte, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil, errors.New("no JSON object in response")
	}
	raw := []byte(text[start : end+1])
	if !json.Valid(raw) {
		return nil, errors.New("response is not valid JSON")
	}
	return raw, nil
}

// Keys every role's response shares. Anything else lands in Sections.
var commonKeys = map[string]bool{
	"summary":             true,
	"keyTakeaways":        true,
	"recommendations":     true,
	"strategicDirection":  true,
	"risks":               true,
	"confidence":          true,
	"executivesToConsult": true,
}

// parseAdvisor builds the parser for one role. planKey names the role's
// timeframe-bucketed plan ("actionPlan", "operationalPlan"); riskKey names
// its risk section when it is not "risks".
func parseAdvisor(role models.Role, planKey, riskKey string) ResponseParser {
	return func(text string) (*models.AdvisorResponse, error) {
		fields, err := decodeObject(text)
		if err != nil {
			return nil, &ParseError{Role: role, Err: err}
		}

		resp := &models.AdvisorResponse{Role: role}
		if err := decodeCommon(fields, resp); err != nil {
			return nil, &ParseError{Role: role, Err: err}
		}
		if strings.TrimSpace(resp.Summary) == "" {
			return nil, &ParseError{Role: role, Err: errors.New("missing summary")}
		}

		if riskKey != "" && len(resp.Risks) == 0 {
			if raw, ok := fields[riskKey]; ok {
				resp.Risks = flattenStrings(raw)
			}
		}
		if planKey != "" {
			if raw, ok := fields[planKey]; ok {
				var plan models.ActionPlan
				if err := json.Unmarshal(raw, &plan); err != nil {
					return nil, &ParseError{Role: role, Err: fmt.Errorf("%s: %w", planKey, err)}
				}
				resp.ActionPlan = &plan
			}
		}

		resp.Sections = extraSections(fields)
		return resp, nil
	}
}

// parseMarketing adds the marketing strategy section to the common fields.
func parseMarketing(role models.Role) ResponseParser {
	base := parseAdvisor(role, "", "")
	return func(text string) (*models.AdvisorResponse, error) {
		resp, err := base(text)
		if err != nil {
			return nil, err
		}
		fields, _ := decodeObject(text)

		ms := &models.MarketingStrategy{}
		for _, key := range []string{"marketAnalysis", "marketingAnalysis"} {
			if raw, ok := fields[key]; ok {
				ms.Analysis = flattenText(raw)
				break
			}
		}
		if raw, ok := fields["marketOpportunities"]; ok {
			ms.Opportunities = flattenStrings(raw)
		}
		for _, key := range []string{"marketStrategy", "marketingStrategy"} {
			if raw, ok := fields[key]; ok {
				ms.Strategy = flattenStrings(raw)
				break
			}
		}
		if raw, ok := fields["metrics"]; ok {
			if err := json.Unmarshal(raw, &ms.Metrics); err != nil {
				return nil, &ParseError{Role: role, Err: fmt.Errorf("metrics: %w", err)}
			}
		}
		resp.Marketing = ms
		return resp, nil
	}
}

// ParseSynthesis decodes the synthesis call's output.
func ParseSynthesis(text string) (*models.Synthesis, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	var s models.Synthesis
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, &ParseError{Err: err}
	}
	if strings.TrimSpace(s.Summary) == "" {
		return nil, &ParseError{Err: errors.New("missing summary")}
	}
	return &s, nil
}

func decodeObject(text string) (map[string]json.RawMessage, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func decodeCommon(fields map[string]json.RawMessage, resp *models.AdvisorResponse) error {
	targets := []struct {
		key string
		dst any
	}{
		{"summary", &resp.Summary},
		{"keyTakeaways", &resp.KeyTakeaways},
		{"recommendations", &resp.Recommendations},
		{"strategicDirection", &resp.StrategicDirection},
		{"risks", &resp.Risks},
		{"executivesToConsult", &resp.ExecutivesToConsult},
	}
	for _, t := range targets {
		raw, ok := fields[t.key]
		if !ok || string(raw) == "null" {
			continue
		}
		if err := json.Unmarshal(raw, t.dst); err != nil {
			return fmt.Errorf("%s: %w", t.key, err)
		}
	}

	if raw, ok := fields["confidence"]; ok && string(raw) != "null" {
		var c float64
		if err := json.Unmarshal(raw, &c); err != nil {
			return fmt.Errorf("confidence: %w", err)
		}
		resp.Confidence = &c
	}
	return nil
}

func extraSections(fields map[string]json.RawMessage) map[string]json.RawMessage {
	var out map[string]json.RawMessage
	for k, v := range fields {
		if commonKeys[k] {
			continue
		}
		if out == nil {
			out = make(map[string]json.RawMessage)
		}
		out[k] = v
	}
	return out
}

// flattenStrings reads a string list from raw. Objects contribute every
// string or string-list value in key order, so risk sections shaped as
// {"technical": [...], "operational": [...]} still yield a flat list.
func flattenStrings(raw json.RawMessage) []string {
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return nil
		}
		return []string{s}
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		list = append(list, flattenStrings(obj[k])...)
	}
	return list
}

func flattenText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.Join(flattenStrings(raw), "; ")
}
