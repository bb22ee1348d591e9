package session

import (
	"encoding/json"
	"fmt"
)

// inboundEnvelope peeks at the discriminator tag shared by every client
// frame before the frame's full shape is known.
type inboundEnvelope struct {
	Type string `json:"type"`
}

type contextTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type startConsensusFrame struct {
	Type           string        `json:"type"`
	Query          string        `json:"query"`
	Profile        string        `json:"profile,omitempty"`
	ConversationID string        `json:"conversation_id,omitempty"`
	Context        []contextTurn `json:"context,omitempty"`
}

type cancelConsensusFrame struct {
	Type string `json:"type"`
}

// decodeInbound parses a raw client frame, dispatching on its "type" tag.
func decodeInbound(data []byte) (interface{}, error) {
	var env inboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("session: malformed frame: %w", err)
	}
	switch env.Type {
	case "start_consensus":
		var f startConsensusFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("session: malformed start_consensus frame: %w", err)
		}
		return f, nil
	case "cancel_consensus":
		return cancelConsensusFrame{Type: env.Type}, nil
	default:
		return nil, fmt.Errorf("session: unknown frame type %q", env.Type)
	}
}

type profileLoadedFrame struct {
	Type   string    `json:"type"`
	Name   string    `json:"name"`
	Models [4]string `json:"models"`
}

type stageStartedFrame struct {
	Type  string `json:"type"`
	Stage string `json:"stage"`
	Model string `json:"model"`
}

type streamChunkFrame struct {
	Type  string `json:"type"`
	Stage string `json:"stage"`
	Chunk string `json:"chunk"`
}

type stageProgressFrame struct {
	Type       string  `json:"type"`
	Stage      string  `json:"stage"`
	Percentage float64 `json:"percentage"`
	Tokens     int     `json:"tokens"`
}

type stageCompletedFrame struct {
	Type   string  `json:"type"`
	Stage  string  `json:"stage"`
	Tokens int     `json:"tokens"`
	Cost   float64 `json:"cost"`
}

type consensusCompleteFrame struct {
	Type        string  `json:"type"`
	Result      string  `json:"result"`
	TotalTokens int     `json:"total_tokens"`
	TotalCost   float64 `json:"total_cost"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type aiHelperDecisionFrame struct {
	Type       string `json:"type"`
	DirectMode bool   `json:"direct_mode"`
	Reason     string `json:"reason"`
}

func newErrorFrame(message string) errorFrame {
	return errorFrame{Type: "error", Message: message}
}
