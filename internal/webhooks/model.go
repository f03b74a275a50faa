package webhooks

import (
	"time"

	"github.com/google/uuid"
)

// Event types dispatched by the tracker.
const (
	EventRiskEscalated = "project.risk_escalated"
	EventRiskHigh      = "project.risk_high"
	EventProjectStale  = "project.stale"
	EventSnapshotAdded = "snapshot.added"
)

// KnownEvents lists every event a subscription may ask for.
var KnownEvents = []string{EventRiskEscalated, EventRiskHigh, EventProjectStale, EventSnapshotAdded}

// Subscription is a registered webhook endpoint. A nil ProjectID receives
// events for every project.
type Subscription struct {
	ID        uuid.UUID `json:"id"                   db:"id"`
	URL       string    `json:"url"                  db:"url"`
	Events    []string  `json:"events"               db:"events"`
	ProjectID *int64    `json:"project_id,omitempty" db:"project_id"`
	Secret    string    `json:"-"                    db:"secret"`
	Active    bool      `json:"active"               db:"active"`
	CreatedAt time.Time `json:"created_at"           db:"created_at"`
}

// Event is the JSON body POSTed to subscribers.
type Event struct {
	Type      string            `json:"type"`
	ProjectID int64             `json:"project_id"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   map[string]string `json:"payload"`
}

// Delivery records the outcome of one delivery attempt.
type Delivery struct {
	ID             uuid.UUID `json:"id"              db:"id"`
	SubscriptionID uuid.UUID `json:"subscription_id" db:"subscription_id"`
	EventType      string    `json:"event_type"      db:"event_type"`
	Payload        []byte    `json:"-"               db:"payload"`
	StatusCode     int       `json:"status_code"     db:"status_code"`
	Attempt        int       `json:"attempt"         db:"attempt"`
	Success        bool      `json:"success"         db:"success"`
	ErrorMessage   string    `json:"error_message"   db:"error_message"`
	DeliveredAt    time.Time `json:"delivered_at"    db:"delivered_at"`
}

// CreateSubscriptionRequest is the payload for creating a subscription.
type CreateSubscriptionRequest struct {
	URL       string   `json:"url"        binding:"required,url"`
	Events    []string `json:"events"     binding:"required,min=1,dive,oneof=project.risk_escalated project.risk_high project.stale snapshot.added"`
	ProjectID *int64   `json:"project_id" binding:"omitempty,gt=0"`
}
