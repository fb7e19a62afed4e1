package miner

import (
	"context"

	"github.com/looplab/fsm"
)

// Coordinator states.
const (
	StateIdle      = "IDLE"
	StateBuilding  = "BUILDING"
	StateSearching = "SEARCHING"
	StateHandoff   = "HANDOFF"
	StateStopped   = "STOPPED"
)

// Coordinator events.
const (
	EventBuild   = "BUILD"
	EventSearch  = "SEARCH"
	EventFound   = "FOUND"
	EventRestart = "RESTART"
	EventPause   = "PAUSE"
	EventStop    = "STOP"
)

var coordinatorStates = []string{StateIdle, StateBuilding, StateSearching, StateHandoff, StateStopped}

// NewFiniteStateMachine creates the state machine of the mining coordinator.
// IDLE waits for the mining preconditions, BUILDING prepares a candidate and starts a
// worker generation, SEARCHING waits for a solution or a reason to start over and
// HANDOFF forwards a solution. STOPPED is terminal.
func (m *Miner) NewFiniteStateMachine(opts ...func(*fsm.FSM)) *fsm.FSM {
	finiteStateMachine := fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{
				Name: EventBuild,
				Src: []string{
					StateIdle,
					StateHandoff,
				},
				Dst: StateBuilding,
			},
			{
				Name: EventSearch,
				Src: []string{
					StateBuilding,
				},
				Dst: StateSearching,
			},
			{
				Name: EventFound,
				Src: []string{
					StateSearching,
				},
				Dst: StateHandoff,
			},
			{
				Name: EventRestart,
				Src: []string{
					StateSearching,
				},
				Dst: StateBuilding,
			},
			{
				Name: EventPause,
				Src: []string{
					StateBuilding,
					StateSearching,
					StateHandoff,
				},
				Dst: StateIdle,
			},
			{
				Name: EventStop,
				Src: []string{
					StateIdle,
					StateBuilding,
					StateSearching,
					StateHandoff,
				},
				Dst: StateStopped,
			},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				setStateGauge(e.Dst)
			},
		},
	)

	for _, opt := range opts {
		opt(finiteStateMachine)
	}

	return finiteStateMachine
}

func setStateGauge(current string) {
	for _, state := range coordinatorStates {
		value := 0.0
		if state == current {
			value = 1
		}

		prometheusMinerState.WithLabelValues(state).Set(value)
	}
}
