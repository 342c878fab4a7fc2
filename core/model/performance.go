package model

import "time"

// PerformanceEventType classifies ledger entries.
type PerformanceEventType string

const (
	// EventCompletion is appended when an operator completes a request.
	EventCompletion PerformanceEventType = "completion"
	// EventPenalty is appended when an operator releases a taken request.
	EventPenalty PerformanceEventType = "penalty"
)

// PerformanceEvent is one append-only scoring ledger entry. PointsDelta is
// positive for completions and negative for penalties.
type PerformanceEvent struct {
	OperatorID      string               `json:"operator_id"`
	Type            PerformanceEventType `json:"type"`
	PointsDelta     int                  `json:"points_delta"`
	ReactionSeconds *float64             `json:"reaction_seconds,omitempty"`
	RequestID       string               `json:"request_id"`
	Timestamp       time.Time            `json:"timestamp"`
}

// OperatorMonthlyAggregate is the derived per-operator leaderboard row for
// one calendar month. It is a pure projection of the event stream.
type OperatorMonthlyAggregate struct {
	OperatorID              string     `json:"operator_id"`
	Month                   time.Month `json:"month"`
	Year                    int        `json:"year"`
	MissionsCompleted       int        `json:"missions_completed"`
	TotalPoints             int        `json:"total_points"`
	// PenaltiesReceived is the absolute sum of negative point deltas,
	// not a count of penalty events.
	PenaltiesReceived       int        `json:"penalties_received"`
	NetPoints               int        `json:"net_points"`
	AvgReactionSeconds      float64    `json:"avg_reaction_seconds"`
	FastestReactionSeconds  float64    `json:"fastest_reaction_seconds"`
	Rank                    int        `json:"rank"`
}
