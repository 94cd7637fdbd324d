package domain

import "time"

// CallStatus is the state of an in-flight outbound leg.
type CallStatus string

const (
	CallStatusRinging  CallStatus = "ringing"
	CallStatusAnswered CallStatus = "answered"
)

// ActiveCall is an outbound leg the provider accepted and has not finished.
// The lead is referenced by id; the engine owns the lead record.
type ActiveCall struct {
	CallID    string     `json:"call_id"`
	LeadID    string     `json:"lead_id"`
	Phone     string     `json:"phone"`
	StartTime time.Time  `json:"start_time"`
	Status    CallStatus `json:"status"`
}
