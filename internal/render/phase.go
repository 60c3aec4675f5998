package render

import (
	"fmt"

	"github.com/grovetools/storyview/errors"
)

// Phase is the lifecycle state of a render unit.
type Phase string

const (
	PhasePending   Phase = "pending"
	PhasePreparing Phase = "preparing"
	PhasePrepared  Phase = "prepared"
	PhaseRendering Phase = "rendering"
	PhasePlaying   Phase = "playing"
	PhaseRendered  Phase = "rendered"
	PhaseErrored   Phase = "errored"
	PhaseTornDown  Phase = "torn_down"
)

var allowedTransitions = map[Phase]map[Phase]struct{}{
	PhasePending: {
		PhasePreparing: {},
		PhaseRendering: {},
		PhaseTornDown:  {},
	},
	PhasePreparing: {
		PhasePrepared: {},
		PhaseErrored:  {},
		PhaseTornDown: {},
	},
	PhasePrepared: {
		PhaseRendering: {},
		PhaseTornDown:  {},
	},
	PhaseRendering: {
		PhasePlaying:  {},
		PhaseRendered: {},
		PhaseErrored:  {},
		PhaseTornDown: {},
	},
	PhasePlaying: {
		PhaseRendered: {},
		PhaseErrored:  {},
		PhaseTornDown: {},
	},
	PhaseRendered: {
		PhaseRendering: {},
		PhaseTornDown:  {},
	},
	PhaseErrored: {
		PhaseRendering: {},
		PhaseTornDown:  {},
	},
	PhaseTornDown: {},
}

// ValidatePhase reports whether p is a known phase.
func ValidatePhase(p Phase) error {
	if _, ok := allowedTransitions[p]; !ok {
		return fmt.Errorf("invalid render phase: %q", p)
	}
	return nil
}

// ValidateTransition reports whether a unit may move from one phase to another.
func ValidateTransition(from, to Phase) error {
	if err := ValidatePhase(from); err != nil {
		return err
	}
	if err := ValidatePhase(to); err != nil {
		return err
	}
	if _, ok := allowedTransitions[from][to]; !ok {
		return errors.InvalidTransition(string(from), string(to))
	}
	return nil
}

// Terminal reports whether no further transitions are possible.
func (p Phase) Terminal() bool {
	return len(allowedTransitions[p]) == 0
}
