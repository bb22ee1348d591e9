// Package session implements the full-duplex streaming session (§4.6):
// one WebSocket connection wraps at most one in-flight consensus Run,
// translating its internal Event channel into the §6 JSON frame protocol
// and translating inbound start_consensus/cancel_consensus frames back
// into Pipeline.Run calls.
package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hivetechs-collective/Hive-sub013/internal/consensus"
	"github.com/hivetechs-collective/Hive-sub013/runtime/logger"
	"github.com/hivetechs-collective/Hive-sub013/runtime/types"
)

// outboundQueueSize bounds the writer's pending-frame buffer. StreamChunk
// frames are dropped once it fills; every other frame blocks its producer
// until the writer drains a slot — the §4.6 backpressure carve-out.
const outboundQueueSize = 256

// ProfileResolver looks up a named consensus profile (e.g. "speed"). An
// empty name requests the caller's default profile.
type ProfileResolver func(name string) (consensus.Profile, error)

type frameEnvelope struct {
	frame    interface{}
	terminal bool
}

// Session owns one connection and enforces "at most one Pipeline Run per
// Session" (§4.5 Concurrency).
type Session struct {
	id             string
	conn           *wsConn
	pipeline       *consensus.Pipeline
	resolveProfile ProfileResolver

	outbound chan frameEnvelope

	mu        sync.Mutex
	runActive bool
	runCancel context.CancelFunc
}

// New wraps an already-upgraded WebSocket connection into a Session.
func New(conn *websocket.Conn, pipeline *consensus.Pipeline, resolveProfile ProfileResolver) *Session {
	return &Session{
		id:             uuid.NewString(),
		conn:           newWSConn(conn),
		pipeline:       pipeline,
		resolveProfile: resolveProfile,
		outbound:       make(chan frameEnvelope, outboundQueueSize),
	}
}

// ID returns the session's identifier, distinct from any conversation id.
func (s *Session) ID() string { return s.id }

// Serve runs the session until the connection closes, a read fails, or ctx
// is cancelled. Closing the inbound side cancels any in-flight Run.
func (s *Session) Serve(ctx context.Context) error {
	ctx, cancelAll := context.WithCancel(ctx)
	defer cancelAll()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writeLoop(ctx)
	}()

	err := s.readLoop(ctx)

	s.mu.Lock()
	if s.runCancel != nil {
		s.runCancel()
	}
	s.mu.Unlock()

	cancelAll()
	wg.Wait()
	_ = s.conn.close()
	return err
}

func (s *Session) readLoop(ctx context.Context) error {
	for {
		data, err := s.conn.receive()
		if err != nil {
			return err
		}

		frame, err := decodeInbound(data)
		if err != nil {
			s.enqueue(newErrorFrame(err.Error()), true)
			continue
		}

		switch f := frame.(type) {
		case startConsensusFrame:
			s.handleStart(ctx, f)
		case cancelConsensusFrame:
			s.handleCancel()
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (s *Session) handleStart(ctx context.Context, f startConsensusFrame) {
	s.mu.Lock()
	if s.runActive {
		s.mu.Unlock()
		s.enqueue(newErrorFrame("run in progress"), true)
		return
	}

	profile, err := s.lookupProfile(f.Profile)
	if err != nil {
		s.mu.Unlock()
		s.enqueue(newErrorFrame(err.Error()), true)
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.runActive = true
	s.runCancel = cancel
	s.mu.Unlock()

	history := make([]types.Message, 0, len(f.Context))
	for _, turn := range f.Context {
		history = append(history, types.Message{Role: types.Role(turn.Role), Content: turn.Content})
	}

	events, err := s.pipeline.Run(runCtx, consensus.RunRequest{
		ConversationID: f.ConversationID,
		Query:          f.Query,
		History:        history,
		Profile:        profile,
	})
	if err != nil {
		s.finishRun()
		s.enqueue(newErrorFrame(err.Error()), true)
		return
	}

	go s.drainRun(events)
}

func (s *Session) lookupProfile(name string) (consensus.Profile, error) {
	if s.resolveProfile == nil {
		return consensus.Profile{}, nil
	}
	return s.resolveProfile(name)
}

func (s *Session) drainRun(events <-chan consensus.Event) {
	defer s.finishRun()
	for e := range events {
		frame, terminal := eventToFrame(e)
		s.enqueue(frame, terminal)
	}
}

func (s *Session) finishRun() {
	s.mu.Lock()
	s.runActive = false
	s.runCancel = nil
	s.mu.Unlock()
}

// handleCancel is idempotent: a cancel with no active Run, or a second
// cancel after the first, is a no-op (§4.6 invariant).
func (s *Session) handleCancel() {
	s.mu.Lock()
	cancel := s.runCancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Session) enqueue(frame interface{}, terminal bool) {
	env := frameEnvelope{frame: frame, terminal: terminal}
	if terminal {
		s.outbound <- env
		return
	}
	select {
	case s.outbound <- env:
	default:
		logger.Warn("session: dropping stream_chunk, outbound queue full", "session_id", s.id)
	}
}

// writeLoop is the connection's sole writer; every outbound frame, whether
// from a stage callback or a local rejection, serializes through here in
// emission order.
func (s *Session) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-s.outbound:
			if err := s.conn.send(env.frame); err != nil {
				logger.Warn("session: write failed, cancelling run", "session_id", s.id, "error", err)
				s.handleCancel()
				return
			}
		}
	}
}
