package blockchain

import (
	"github.com/looplab/fsm"
)

// FSM states of the devnet chain service.
const (
	FSMStateStopped        = "STOPPED"
	FSMStateRunning        = "RUNNING"
	FSMStateCatchingBlocks = "CATCHINGBLOCKS"
)

// FSM events of the devnet chain service.
const (
	FSMEventRun           = "RUN"
	FSMEventCatchUpBlocks = "CATCHUPBLOCKS"
	FSMEventStop          = "STOP"
)

// NewFiniteStateMachine creates the state machine of the chain service.
// The finite state machine has the following states:
// - STOPPED
// - RUNNING
// - CATCHINGBLOCKS
// The finite state machine has the following events:
// - RUN
// - CATCHUPBLOCKS
// - STOP
func (b *Blockchain) NewFiniteStateMachine(opts ...func(*fsm.FSM)) *fsm.FSM {
	finiteStateMachine := fsm.NewFSM(
		FSMStateStopped,
		fsm.Events{
			{
				Name: FSMEventRun,
				Src: []string{
					FSMStateStopped,
					FSMStateCatchingBlocks,
				},
				Dst: FSMStateRunning,
			},
			{
				Name: FSMEventCatchUpBlocks,
				Src: []string{
					FSMStateRunning,
				},
				Dst: FSMStateCatchingBlocks,
			},
			{
				Name: FSMEventStop,
				Src: []string{
					FSMStateRunning,
					FSMStateCatchingBlocks,
				},
				Dst: FSMStateStopped,
			},
		},
		fsm.Callbacks{},
	)

	// apply options
	for _, opt := range opts {
		opt(finiteStateMachine)
	}

	return finiteStateMachine
}

// chainStateFromFSM maps an FSM state onto what the miner cares about.
func chainStateFromFSM(state string) ChainState {
	switch state {
	case FSMStateRunning:
		return ChainStateNormal
	case FSMStateCatchingBlocks:
		return ChainStateSyncing
	default:
		return ChainStateStopped
	}
}
