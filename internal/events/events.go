// Package events publishes domain events to RabbitMQ.
package events

import (
	"context"
	"time"
)

// TimetableGenerated is the routing key (and default queue) of generation events.
const TimetableGenerated = "timetable.generated"

// TimetableGeneratedEvent announces a newly stored timetable version.
type TimetableGeneratedEvent struct {
	TimetableID string    `json:"timetable_id"`
	Branch      string    `json:"branch"`
	Division    string    `json:"division"`
	Year        string    `json:"year"`
	Version     int       `json:"version"`
	Source      string    `json:"source"`
	Status      string    `json:"status"`
	Dropped     int       `json:"dropped"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Publisher delivers events. Callers treat failures as non-fatal.
type Publisher interface {
	PublishTimetableGenerated(ctx context.Context, event TimetableGeneratedEvent) error
	Close() error
}

// NoopPublisher discards every event.
type NoopPublisher struct{}

func (NoopPublisher) PublishTimetableGenerated(context.Context, TimetableGeneratedEvent) error {
	return nil
}

func (NoopPublisher) Close() error { return nil }
