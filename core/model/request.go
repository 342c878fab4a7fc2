package model

import "time"

// RequestKind identifies what a dispatch request moves.
type RequestKind string

const (
	// KindMaterial is a material-movement request between banchine.
	KindMaterial RequestKind = "material"
	// KindBlockPickup is a finished-block pickup request.
	KindBlockPickup RequestKind = "block_pickup"
)

// RequestStatus is the lifecycle state of a dispatch request.
type RequestStatus string

const (
	StatusPending    RequestStatus = "pending"
	StatusProcessing RequestStatus = "processing"
	// StatusDelivered is reached instead of completed when the request
	// carries a confirmation code: the material arrived but receipt
	// confirmation is an external step. Terminal for the engine.
	StatusDelivered RequestStatus = "delivered"
	StatusCompleted RequestStatus = "completed"
	StatusCancelled RequestStatus = "cancelled"
)

// Active reports whether the request is still claimable or in flight.
func (s RequestStatus) Active() bool {
	return s == StatusPending || s == StatusProcessing
}

// Terminal reports whether no further transition is possible.
func (s RequestStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCompleted || s == StatusCancelled
}

// ActorRole identifies who initiated an operation. Identity resolution
// happens upstream; the engine only records the resolved role.
type ActorRole string

const (
	RoleRequester ActorRole = "requester"
	RoleOperator  ActorRole = "operator"
	RoleAdmin     ActorRole = "admin"
)

// DispatchRequest is a single material-movement or block-pickup request.
// Wait and reaction times are always derived from the timestamps at read
// time, never stored.
type DispatchRequest struct {
	ID               string        `json:"id"`
	Kind             RequestKind   `json:"kind"`
	RequesterID      string        `json:"requester_id"`
	TargetLocationID string        `json:"target_location_id"`
	Description      string        `json:"description,omitempty"`
	Quantity         float64       `json:"quantity,omitempty"`
	Unit             string        `json:"unit,omitempty"`
	Status           RequestStatus `json:"status"`

	ManualUrgent bool       `json:"manual_urgent"`
	AutoUrgent   bool       `json:"auto_urgent"`
	UrgentSince  *time.Time `json:"urgent_since,omitempty"`

	CreatedAt          time.Time  `json:"created_at"`
	AssignedTo         string     `json:"assigned_to,omitempty"`
	PromisedETAMinutes int        `json:"promised_eta_minutes,omitempty"`
	TakenAt            *time.Time `json:"taken_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancelledReason    string     `json:"cancelled_reason,omitempty"`
	CancelledBy        ActorRole  `json:"cancelled_by,omitempty"`

	// ConfirmationCode is the OTP the operator must supply on completion.
	// Empty means the kind needs no receipt confirmation.
	ConfirmationCode string `json:"confirmation_code,omitempty"`
}

// Urgent reports whether the request is urgent for any reason.
func (r DispatchRequest) Urgent() bool { return r.ManualUrgent || r.AutoUrgent }

// RequiresReceipt reports whether completion must be confirmed with a code.
func (r DispatchRequest) RequiresReceipt() bool { return r.ConfirmationCode != "" }

// WaitSeconds derives the observable waiting time at the given instant:
// time in the pool while pending, time since assignment while processing.
func (r DispatchRequest) WaitSeconds(now time.Time) float64 {
	switch r.Status {
	case StatusProcessing, StatusDelivered:
		if r.TakenAt != nil {
			return now.Sub(*r.TakenAt).Seconds()
		}
	case StatusPending:
		return now.Sub(r.CreatedAt).Seconds()
	}
	return 0
}
