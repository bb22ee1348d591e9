package session

import "github.com/hivetechs-collective/Hive-sub013/internal/consensus"

// eventToFrame maps one internal consensus Event onto its §6 wire frame.
// terminal marks StageCompleted/ConsensusComplete/Error, the frames that
// must never be dropped by the outbound queue even under backpressure.
func eventToFrame(e consensus.Event) (frame interface{}, terminal bool) {
	switch e.Kind {
	case consensus.EventProfileLoaded:
		return profileLoadedFrame{Type: "profile_loaded", Name: e.ProfileName, Models: e.Models}, false
	case consensus.EventStageStarted:
		return stageStartedFrame{Type: "stage_started", Stage: string(e.Stage), Model: e.Model}, false
	case consensus.EventStreamChunk:
		return streamChunkFrame{Type: "stream_chunk", Stage: string(e.Stage), Chunk: e.Chunk}, false
	case consensus.EventStageProgress:
		return stageProgressFrame{Type: "stage_progress", Stage: string(e.Stage), Percentage: e.Percentage, Tokens: e.Tokens}, false
	case consensus.EventStageCompleted:
		return stageCompletedFrame{Type: "stage_completed", Stage: string(e.Stage), Tokens: e.Tokens, Cost: e.Cost.TotalCostUSD}, true
	case consensus.EventConsensusComplete:
		return consensusCompleteFrame{Type: "consensus_complete", Result: e.Result, TotalTokens: e.TotalTokens, TotalCost: e.TotalCost}, true
	case consensus.EventError:
		return newErrorFrame(e.Detail), true
	default:
		return newErrorFrame("unknown internal event"), true
	}
}
