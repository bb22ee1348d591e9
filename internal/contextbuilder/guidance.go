package contextbuilder

import "github.com/hivetechs-collective/Hive-sub013/internal/consensus"

// stageGuidance is the fixed per-stage guidance string, assembly rule 7.
// Ported in meaning (not wording) from
// original_source/src/consensus/verified_context_builder.rs's
// get_stage_specific_guidance.
func stageGuidance(stage consensus.StageName) string {
	switch stage {
	case consensus.StageGenerator:
		return "Focus on comprehensive understanding and creative solutions, grounded in the " +
			"verified facts above rather than assumptions about the project."
	case consensus.StageRefiner:
		return "Improve clarity, accuracy, and completeness while staying consistent with the " +
			"verified facts; do not introduce claims the facts don't support."
	case consensus.StageValidator:
		return "Check the refined answer against the verified facts above. Flag anything that " +
			"contradicts them before it reaches the final answer."
	case consensus.StageCurator:
		return "Produce the final answer using only claims consistent with the verified facts, " +
			"directly addressing the original question."
	default:
		return ""
	}
}
