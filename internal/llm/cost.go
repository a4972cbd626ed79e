package llm

// modelRate holds USD per one million input/output tokens.
type modelRate struct {
	input  float64
	output float64
}

// Prices current as of early 2025; unknown models cost zero.
var modelRates = map[string]modelRate{
	// OpenAI
	"gpt-4o":              {2.50, 10.00},
	"gpt-4o-mini":         {0.15, 0.60},
	"gpt-4-turbo":         {10.00, 30.00},
	"gpt-4-turbo-preview": {10.00, 30.00},
	"gpt-4":               {30.00, 60.00},
	"gpt-3.5-turbo":       {0.50, 1.50},
	"o1":                  {15.00, 60.00},
	"o1-mini":             {3.00, 12.00},
	"o3-mini":             {1.10, 4.40},
	// Anthropic
	"claude-3-5-sonnet-20241022": {3.00, 15.00},
	"claude-3-5-sonnet-latest":   {3.00, 15.00},
	"claude-3-5-haiku-20241022":  {0.80, 4.00},
	"claude-3-5-haiku-latest":    {0.80, 4.00},
	"claude-3-opus-20240229":     {15.00, 75.00},
	"claude-3-opus-latest":       {15.00, 75.00},
}

// Cost estimates the USD cost of a call given the model and token counts.
func Cost(model string, inputTokens, outputTokens int) float64 {
	rate, ok := modelRates[model]
	if !ok {
		return 0
	}
	return float64(inputTokens)/1e6*rate.input + float64(outputTokens)/1e6*rate.output
}
