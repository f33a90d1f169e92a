package main

import (
	"context"
	"log"
	"sync"
)

// EventType identifies a stage-progress event in a streamed turn.
type EventType string

const (
	EventStage1Start    EventType = "stage1_start"
	EventStage1Complete EventType = "stage1_complete"
	EventStage2Start    EventType = "stage2_start"
	EventStage2Complete EventType = "stage2_complete"
	EventStage3Start    EventType = "stage3_start"
	EventStage3Complete EventType = "stage3_complete"
	EventTitleComplete  EventType = "title_complete"
	EventComplete       EventType = "complete"
	EventError          EventType = "error"
)

// StageEvent is one entry in the ordered event stream for a turn.
// Data carries the stage payload once available; Metadata rides along
// with stage2_complete; Message is set on error events.
type StageEvent struct {
	Type     EventType `json:"type"`
	Data     any       `json:"data,omitempty"`
	Metadata *Metadata `json:"metadata,omitempty"`
	Message  string    `json:"message,omitempty"`
}

// TitleData is the payload of a title_complete event.
type TitleData struct {
	Title string `json:"title"`
}

// StreamOptions controls per-turn extras on the streaming path.
type StreamOptions struct {
	// GenerateTitle runs title generation concurrently with the
	// pipeline and emits an out-of-band title_complete event.
	GenerateTitle bool
}

// pipelineState tracks where a streamed turn is in the stage sequence.
type pipelineState int

const (
	stateIdle pipelineState = iota
	stateStage1Running
	stateStage1Done
	stateStage2Running
	stateStage2Done
	stateStage3Running
	stateStage3Done
	stateComplete
	stateErrored
)

// stageTransitions is the legal predecessor state for each in-order
// event. Terminal and out-of-band events are handled separately.
var stageTransitions = map[EventType]struct{ from, to pipelineState }{
	EventStage1Start:    {stateIdle, stateStage1Running},
	EventStage1Complete: {stateStage1Running, stateStage1Done},
	EventStage2Start:    {stateStage1Done, stateStage2Running},
	EventStage2Complete: {stateStage2Running, stateStage2Done},
	EventStage3Start:    {stateStage2Done, stateStage3Running},
	EventStage3Complete: {stateStage3Running, stateStage3Done},
	EventComplete:       {stateStage3Done, stateComplete},
}

// eventEmitter enforces strict in-order delivery of stage events and
// lets title_complete through out of band. Once a terminal event
// (complete or error) has been emitted, everything else is dropped.
type eventEmitter struct {
	mu    sync.Mutex
	state pipelineState
	ch    chan StageEvent
}

func newEventEmitter() *eventEmitter {
	return &eventEmitter{ch: make(chan StageEvent, 16)}
}

// emit delivers ev if it is legal in the current state, advancing the
// state machine for stage events. Out-of-order stage events indicate a
// coordinator bug and are logged and dropped rather than delivered.
func (e *eventEmitter) emit(ev StageEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == stateComplete || e.state == stateErrored {
		return
	}

	switch ev.Type {
	case EventTitleComplete:
		// Out of band: interleaved wherever it lands, no state change.
	case EventError:
		e.state = stateErrored
	default:
		tr, ok := stageTransitions[ev.Type]
		if !ok || e.state != tr.from {
			log.Printf("event emitter: dropping out-of-order event %q in state %d", ev.Type, e.state)
			return
		}
		e.state = tr.to
	}

	e.ch <- ev
}

// fail emits the terminal error event. The partial turn rides along in
// Data so the caller can persist whatever stages did complete.
func (e *eventEmitter) fail(message string, turn *CouncilTurn) {
	turn.FailureReason = message
	e.emit(StageEvent{Type: EventError, Message: message, Data: turn})
}

// RunTurnStream runs the three-stage pipeline for one user message and
// yields the ordered event sequence as each stage settles. The stream
// terminates with either a complete event carrying the full turn or an
// error event, after which the channel is closed. Title generation, if
// requested, runs alongside the stages and surfaces as an out-of-band
// title_complete event; it never gates stage progression, only final
// channel close.
//
// Cancelling ctx stops the pipeline at the next between-stage
// checkpoint: the in-flight fan-out is left to settle so no stage
// result set is ever torn off half-filled.
func (c *Council) RunTurnStream(ctx context.Context, userQuery string, history []ChatMessage, opts StreamOptions) <-chan StageEvent {
	em := newEventEmitter()

	go func() {
		var titleWG sync.WaitGroup
		defer func() {
			titleWG.Wait()
			close(em.ch)
		}()

		if opts.GenerateTitle {
			titleWG.Add(1)
			go func() {
				defer titleWG.Done()
				title, err := c.GenerateConversationTitle(ctx, userQuery)
				if err != nil {
					log.Printf("Failed to generate title: %v", err)
					return
				}
				em.emit(StageEvent{Type: EventTitleComplete, Data: TitleData{Title: title}})
			}()
		}

		turn := &CouncilTurn{}

		em.emit(StageEvent{Type: EventStage1Start})
		turn.Stage1 = c.Stage1CollectResponses(ctx, userQuery, history)
		if countSuccessful(turn.Stage1) == 0 {
			em.fail("no responses", turn)
			return
		}
		em.emit(StageEvent{Type: EventStage1Complete, Data: turn.Stage1})
		if ctx.Err() != nil {
			em.fail("cancelled before stage 2", turn)
			return
		}

		em.emit(StageEvent{Type: EventStage2Start})
		stage2, labelToModel := c.Stage2CollectRankings(ctx, userQuery, turn.Stage1)
		turn.Stage2 = stage2
		turn.Metadata = &Metadata{
			LabelToModel:      labelToModel,
			AggregateRankings: c.scorer.Aggregate(stage2, labelToModel),
		}
		em.emit(StageEvent{Type: EventStage2Complete, Data: stage2, Metadata: turn.Metadata})
		if ctx.Err() != nil {
			em.fail("cancelled before stage 3", turn)
			return
		}

		em.emit(StageEvent{Type: EventStage3Start})
		stage3, err := c.Stage3SynthesizeFinal(ctx, userQuery, turn.Stage1, turn.Stage2, turn.Metadata.AggregateRankings)
		if err != nil {
			em.fail("chairman synthesis failed: "+err.Error(), turn)
			return
		}
		turn.Stage3 = stage3
		em.emit(StageEvent{Type: EventStage3Complete, Data: stage3})

		// The terminal event carries the whole turn; join the title
		// task first so its event is never delivered after close.
		titleWG.Wait()
		em.emit(StageEvent{Type: EventComplete, Data: turn})
	}()

	return em.ch
}
