package learning

import (
	"encoding/json"
	"time"
)

// Event types
const (
	EventEnrolled       = "enrolled"
	EventTaskCompleted  = "task_completed"
	EventQuestCompleted = "quest_completed"
	EventBadgeAwarded   = "badge_awarded"
	EventObserverLinked = "observer_linked"
)

// Event is an append-only activity record. Metadata is stored as-is (JSONB)
// and only read back by the observer progress view and the weekly digest.
type Event struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Type       string          `json:"type"`
	Ref        string          `json:"ref,omitempty"` // quest/task/badge/link ID
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"` // UTC
}

// EventFilter narrows event queries. Zero fields are ignored.
type EventFilter struct {
	UserID string
	Type   string
	Since  time.Time
}
