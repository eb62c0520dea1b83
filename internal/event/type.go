package event

import (
	"time"

	"pricing-service/internal/models"
)

// SubmissionEvent is the message body published for submission lifecycle
// changes. Document is set for created and updated events.
type SubmissionEvent struct {
	EventID      string                     `json:"event_id"`
	Type         models.SubmissionEventType `json:"type"`
	SubmissionID int64                      `json:"submission_id"`
	OccurredAt   time.Time                  `json:"occurred_at"`
	Document     *models.SubmissionDocument `json:"document,omitempty"`
	ReportObject string                     `json:"report_object,omitempty"`
}

const DefaultSubmissionQueue string = "submission_events"
