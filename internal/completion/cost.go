package completion

// Known cost per 1K tokens (USD).
var defaultCosts = map[string]struct{ Prompt, Completion float64 }{
	"gpt-4":                     {0.03, 0.06},
	"gpt-3.5-turbo":             {0.0015, 0.002},
	"gpt-4o":                    {0.0025, 0.01},
	"gpt-4o-mini":               {0.00015, 0.0006},
	"gpt-4-turbo":               {0.01, 0.03},
	"claude-sonnet-4-20250514":  {0.003, 0.015},
	"claude-3-5-haiku-20241022": {0.001, 0.005},
	"claude-opus-4-20250514":    {0.015, 0.075},
}

// EstimateCost prices a call. Unknown models cost nothing rather than a guess.
func EstimateCost(model string, promptTokens, completionTokens int64) float64 {
	c, ok := defaultCosts[model]
	if !ok {
		return 0
	}
	return float64(promptTokens)*c.Prompt/1000 + float64(completionTokens)*c.Completion/1000
}
