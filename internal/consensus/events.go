package consensus

import "github.com/hivetechs-collective/Hive-sub013/runtime/types"

// EventKind tags the variant of an Event, implementing §9's "tagged variant
// of outbound events pushed onto a channel" for the pipeline-to-session
// callback capability set.
type EventKind string

const (
	EventProfileLoaded     EventKind = "profile_loaded"
	EventStageStarted      EventKind = "stage_started"
	EventStreamChunk       EventKind = "stream_chunk"
	EventStageProgress     EventKind = "stage_progress"
	EventStageCompleted    EventKind = "stage_completed"
	EventConsensusComplete EventKind = "consensus_complete"
	EventError             EventKind = "error"
)

// Event is one element of the channel a Run returns. Only the fields
// relevant to Kind are populated; this mirrors modeltransport.Chunk's flat
// tagged-union shape rather than introducing per-kind Go types, since the
// session layer (C6) maps each Event directly onto one wire frame.
type Event struct {
	Kind EventKind

	// ProfileLoaded
	ProfileName string
	Models      [4]string

	// StageStarted / StreamChunk / StageProgress / StageCompleted / Error
	Stage StageName
	Model string

	// StreamChunk
	Chunk string

	// StageProgress
	Percentage float64
	Tokens     int

	// StageCompleted
	Cost types.CostInfo

	// ConsensusComplete
	Result      string
	TotalTokens int
	TotalCost   float64

	// Error
	Detail string
}
