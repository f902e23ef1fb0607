package model

import "time"

// FeedbackEventKind enumerates the append-only event types recorded against
// a memory. Events are never mutated once written.
type FeedbackEventKind string

// Recognised feedback event kinds.
const (
	FeedbackUsed       FeedbackEventKind = "used"
	FeedbackHelpful    FeedbackEventKind = "helpful"
	FeedbackNotHelpful FeedbackEventKind = "not_helpful"
	FeedbackEdited     FeedbackEventKind = "edited"
	FeedbackNeglected  FeedbackEventKind = "neglected"
)

// FeedbackEvent is a single append-only observation about a memory's use.
type FeedbackEvent struct {
	MemoryID  string
	Kind      FeedbackEventKind
	Score     float64
	Timestamp time.Time
}
