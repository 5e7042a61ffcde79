package workflow

import "github.com/garyjia/invoice-approval/internal/domain/entity"

// State represents an invoice approval state
type State string

const (
	StatePending  State = entity.ApprovalPending
	StateApproved State = entity.ApprovalApproved
	StateRejected State = entity.ApprovalRejected
)

var validStates = map[State]bool{
	StatePending:  true,
	StateApproved: true,
	StateRejected: true,
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known approval state
func (s State) IsValid() bool {
	return validStates[s]
}
