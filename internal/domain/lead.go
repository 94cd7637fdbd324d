package domain

// LeadStatus enumerates the lifecycle of a lead inside one dialing session.
type LeadStatus string

const (
	LeadStatusPending   LeadStatus = "pending"
	LeadStatusCalling   LeadStatus = "calling"
	LeadStatusAnswered  LeadStatus = "answered"
	LeadStatusFailed    LeadStatus = "failed"
	LeadStatusCompleted LeadStatus = "completed"
)

// Terminal reports whether the dialer will not pick the lead again.
func (s LeadStatus) Terminal() bool {
	return s == LeadStatusFailed || s == LeadStatusCompleted
}

// Failure reasons recorded on leads.
const (
	ReasonNoAnswer = "no_answer"
)

// Lead is a customer record to be dialed. Phone is kept exactly as received
// from the lead source and only normalized for comparison or dialing.
type Lead struct {
	ID          string         `json:"id"`
	Phone       string         `json:"phone"`
	DisplayName string         `json:"display_name,omitempty"`
	Link        string         `json:"link,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
	Status      LeadStatus     `json:"status"`
	Attempts    int            `json:"attempts"`
	Error       string         `json:"error,omitempty"`
	CallResult  string         `json:"call_result,omitempty"`
	Comment     string         `json:"comment,omitempty"`
}

// Reset prepares a lead for a fresh dialing session.
func (l *Lead) Reset() {
	l.Status = LeadStatusPending
	l.Attempts = 0
	l.Error = ""
}

// Clone returns a copy that does not share the Extra map.
func (l Lead) Clone() Lead {
	if l.Extra != nil {
		extra := make(map[string]any, len(l.Extra))
		for k, v := range l.Extra {
			extra[k] = v
		}
		l.Extra = extra
	}
	return l
}
