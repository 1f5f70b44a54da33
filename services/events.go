package services

import "time"

const (
	EventSessionLinked = "session.linked"
	EventQuizGenerated = "quiz.generated"
)

type Event struct {
	Type      string      `json:"type"`
	SessionID string      `json:"session_id"`
	Data      interface{} `json:"data,omitempty"`
	At        time.Time   `json:"at"`
}

// EventPublisher được ws.Hub hiện thực; services không phụ thuộc gói ws
type EventPublisher interface {
	Publish(userID string, event Event)
}

type NopPublisher struct{}

func (NopPublisher) Publish(string, Event) {}

func publisherOrNop(p EventPublisher) EventPublisher {
	if p == nil {
		return NopPublisher{}
	}
	return p
}
