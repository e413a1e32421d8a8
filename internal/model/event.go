package model

import "time"

// EventType identifies the kind of workflow notification.
type EventType string

const (
	EventClaimUploaded      EventType = "claim_uploaded"
	EventClaimStatusUpdate  EventType = "claim_status_update"
	EventClaimProcessed     EventType = "claim_processed"
	EventClaimMovedToReview EventType = "claim_moved_to_review"
	EventClaimCompleted     EventType = "claim_completed"
	EventHeartbeat          EventType = "heartbeat"
)

// Event is a fire-and-forget workflow notification published to the
// event bus. Delivery is at-most-once; publishers never await
// acknowledgement.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Message   string         `json:"message"`
	ClaimID   string         `json:"claim_id,omitempty"`
	Status    ClaimStatus    `json:"status,omitempty"`
	Stage     string         `json:"stage,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
