package domain

import "strings"

// EventType is the normalized kind of a provider call event.
type EventType string

const (
	EventRinging  EventType = "ringing"
	EventAnswered EventType = "answered"
	EventHangup   EventType = "hangup"
	EventUnknown  EventType = "unknown"
)

// ProviderEvent is an asynchronous notification about a call leg. CallID may
// be empty; Fields keeps the raw payload values for phone based correlation.
type ProviderEvent struct {
	CallID string            `json:"call_id"`
	Type   string            `json:"type"`
	Fields map[string]string `json:"fields,omitempty"`
}

var eventAliases = map[string]EventType{
	"ringing":               EventRinging,
	"call_start":            EventRinging,
	"answered":              EventAnswered,
	"call_answered":         EventAnswered,
	"the call was answered": EventAnswered,
	"hangup":                EventHangup,
	"call_end":              EventHangup,
	"call_missed":           EventHangup,
	"completed":             EventHangup,
	"the call ended":        EventHangup,
}

// NormalizeEventType maps the provider vocabulary onto EventType.
func NormalizeEventType(raw string) EventType {
	key := strings.ToLower(strings.TrimSpace(raw))
	if t, ok := eventAliases[key]; ok {
		return t
	}
	return EventUnknown
}

// Normalized returns the event type after alias resolution.
func (e ProviderEvent) Normalized() EventType {
	return NormalizeEventType(e.Type)
}
