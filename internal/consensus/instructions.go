package consensus

// Per-stage instructions handed to the context builder for every stage
// after Generator, per §4.5 "Context between stages". original_source's
// consensus engine that would have carried the authoritative wording was
// not part of the retrieved sources (only verified_context_builder.rs and
// temporal.rs were), so these are written directly from the stage
// responsibilities §3/§4.5 describe rather than ported from source text.
const (
	refinerInstruction = "Review the previous answer for accuracy, clarity, and completeness. " +
		"Improve wording and structure, correct any mistakes, and tighten the explanation without changing its meaning."

	validatorInstruction = "Check the refined answer for factual correctness, internal consistency, " +
		"and unsupported claims. Call out anything that should be corrected before it reaches the user."

	curatorInstruction = "Produce the final answer: incorporate the validator's findings, directly and " +
		"completely address the original question, and present the result in clean, well-structured form."
)

// instructionFor returns the stage instruction text, empty for Generator
// (which receives only the verified base context plus the user question).
func instructionFor(stage StageName) string {
	switch stage {
	case StageRefiner:
		return refinerInstruction
	case StageValidator:
		return validatorInstruction
	case StageCurator:
		return curatorInstruction
	default:
		return ""
	}
}
