package models

import (
	"time"
)

type EventType string

const (
	EventTypeVote  EventType = "vote"
	EventTypeSeed  EventType = "seed"
	EventTypeReset EventType = "reset"
)

// VoteEvent is an immutable entry of the vote log.
// Language is the option's display name at event time, not a live join.
type VoteEvent struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	OptionID   uint      `gorm:"not null;index" json:"option_id"`
	Language   string    `gorm:"size:50;not null" json:"language"`
	VotesAfter int64     `gorm:"not null" json:"votes_after"` // counter value right after this event
	EventType  EventType `gorm:"type:varchar(10);not null" json:"event_type"`
	CreatedAt  time.Time `gorm:"not null;index" json:"created_at"`
}
