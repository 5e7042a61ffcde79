package workflow

import "fmt"

// Transitions maps a source state and trigger to the target state
type Transitions map[State]map[Trigger]State

// ApprovalTransitions is the only valid lifecycle: pending → approved | rejected.
// Approved and rejected are terminal.
var ApprovalTransitions = Transitions{
	StatePending: {
		TriggerApprove: StateApproved,
		TriggerReject:  StateRejected,
	},
}

// Target returns the state trigger leads to from the given state
func (t Transitions) Target(from State, trigger Trigger) (State, error) {
	if !from.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidState, from)
	}
	to, ok := t[from][trigger]
	if !ok {
		return "", fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, from)
	}
	return to, nil
}

type stateMachine struct {
	current     State
	transitions Transitions
}

// NewApprovalMachine returns a state machine positioned at the given approval state
func NewApprovalMachine(initial State) (StateMachine, error) {
	if !initial.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidState, initial)
	}
	return &stateMachine{current: initial, transitions: ApprovalTransitions}, nil
}

func (m *stateMachine) State() State {
	return m.current
}

func (m *stateMachine) Fire(trigger Trigger) error {
	to, err := m.transitions.Target(m.current, trigger)
	if err != nil {
		return err
	}
	m.current = to
	return nil
}
