package modeltransport

import "github.com/hivetechs-collective/Hive-sub013/runtime/types"

// calculateCost computes §4.4's cost formula: prompt_tokens * prompt_rate +
// completion_tokens * completion_rate, both rates expressed per 1M tokens.
// A model with no registered pricing reports zero cost with Unknown set —
// grounded on the teacher's CalculateCost, generalized from per-1K hardcoded
// per-model switches to a caller-supplied descriptor table.
func calculateCost(model string, promptTokens, completionTokens int, models []ModelDescriptor) types.CostInfo {
	desc, ok := findModel(model, models)
	if !ok || !desc.HasPricing {
		return types.CostInfo{
			InputTokens:  promptTokens,
			OutputTokens: completionTokens,
			Unknown:      true,
		}
	}

	inputCost := float64(promptTokens) / 1_000_000 * desc.PromptRatePer1M
	outputCost := float64(completionTokens) / 1_000_000 * desc.CompletionRate

	return types.CostInfo{
		InputTokens:   promptTokens,
		OutputTokens:  completionTokens,
		InputCostUSD:  inputCost,
		OutputCostUSD: outputCost,
		TotalCostUSD:  inputCost + outputCost,
	}
}

func findModel(id string, models []ModelDescriptor) (ModelDescriptor, bool) {
	for _, m := range models {
		if m.ID == id {
			return m, true
		}
	}
	return ModelDescriptor{}, false
}
