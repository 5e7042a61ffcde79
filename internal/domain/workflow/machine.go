package workflow

// StateMachine tracks the current approval state and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// Fire moves to the target state of trigger, or returns ErrInvalidTransition
	Fire(trigger Trigger) error
}
