package workflow

// Trigger represents an action attempted against an invoice's approval state
type Trigger string

const (
	TriggerApprove Trigger = "APPROVE"
	TriggerReject  Trigger = "REJECT"
	// TriggerAttachOCR is not a transition; it is only valid while pending
	TriggerAttachOCR Trigger = "ATTACH_OCR"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
