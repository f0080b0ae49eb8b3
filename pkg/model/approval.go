package model

type ApprovalOutcome string

const (
	ApprovalApproved   ApprovalOutcome = "approved"
	ApprovalConflicted ApprovalOutcome = "conflicted"
)

// ApprovalResult tells an approver whether the booking was approved or lost
// to an overlapping approved booking. Booking is the state after the call.
type ApprovalResult struct {
	Outcome       ApprovalOutcome `json:"outcome"`
	Booking       *Booking        `json:"booking"`
	ConflictsWith *Booking        `json:"conflicts_with,omitempty"`
}

// Availability is the advisory answer for a prospective booking window.
type Availability struct {
	Available     bool       `json:"available"`
	RoomStatus    RoomStatus `json:"room_status"`
	ConflictsWith *Booking   `json:"conflicts_with,omitempty"`
}
