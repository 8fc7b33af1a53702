package events

import "time"

// DomainEvent is the base interface for all domain events
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

// EventTypeProfileCreated is the detail type of ProfileCreated on the bus
const EventTypeProfileCreated = "profile.created"

// ProfileCreated is raised when a new profile is stored
type ProfileCreated struct {
	BaseEvent
	ProfileID string `json:"profile_id"`
	Email     string `json:"email"`
}

// NewProfileCreated creates a ProfileCreated event
func NewProfileCreated(profileID, email string, timestamp time.Time) ProfileCreated {
	return ProfileCreated{
		BaseEvent: BaseEvent{
			AggregateID: profileID,
			EventType:   EventTypeProfileCreated,
			Timestamp:   timestamp,
			Version:     1,
		},
		ProfileID: profileID,
		Email:     email,
	}
}
