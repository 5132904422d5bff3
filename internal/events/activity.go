// Package events defines the payloads published by the outbox dispatcher.
package events

import "time"

// ActivityCreated is emitted when a new activity row is persisted.
type ActivityCreated struct {
	ActivityID string    `json:"activity_id"`
	ProjectID  string    `json:"project_id"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
}

// ActivityStatusChanged tracks board-column moves for downstream board and
// timeline consumers.
type ActivityStatusChanged struct {
	ActivityID string    `json:"activity_id"`
	ProjectID  string    `json:"project_id"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}
