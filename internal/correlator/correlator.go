// Package correlator maps asynchronous provider events onto in-flight calls.
package correlator

import (
	"github.com/acme/predictive-dialer/internal/domain"
	"github.com/acme/predictive-dialer/internal/phone"
)

// PhoneFields lists the raw payload keys that may carry the customer number,
// in the order they are tried.
var PhoneFields = []string{"caller", "callee", "from", "to", "phone", "number", "dst", "src"}

// Match describes how an event was resolved.
type Match string

const (
	MatchNone   Match = ""
	MatchDirect Match = "direct"
	MatchAlias  Match = "alias"
	MatchPhone  Match = "phone"
)

// Candidate is an active call the event may belong to.
type Candidate struct {
	CallID string
	Phone  string
}

// Correlator resolves provider events. It remembers provider ids that were
// matched by phone so later events carrying the same id resolve directly.
// It is not safe for concurrent use; the engine goroutine owns it.
type Correlator struct {
	aliases map[string]string
}

// New constructs an empty correlator.
func New() *Correlator {
	return &Correlator{aliases: make(map[string]string)}
}

// Resolve returns the call id of the candidate the event refers to.
// Candidates are compared in the order given.
func (c *Correlator) Resolve(ev domain.ProviderEvent, active []Candidate) (string, Match) {
	if ev.CallID != "" {
		if contains(active, ev.CallID) {
			return ev.CallID, MatchDirect
		}
		if target, ok := c.aliases[ev.CallID]; ok && contains(active, target) {
			return target, MatchAlias
		}
	}

	for _, key := range PhoneFields {
		want := phone.Normalize(ev.Fields[key])
		if want == "" {
			continue
		}
		for _, cand := range active {
			if phone.Normalize(cand.Phone) == want {
				if ev.CallID != "" {
					c.aliases[ev.CallID] = cand.CallID
				}
				return cand.CallID, MatchPhone
			}
		}
	}

	return "", MatchNone
}

// Forget drops every alias that points at callID.
func (c *Correlator) Forget(callID string) {
	for alias, target := range c.aliases {
		if target == callID || alias == callID {
			delete(c.aliases, alias)
		}
	}
}

// Reset drops all aliases.
func (c *Correlator) Reset() {
	c.aliases = make(map[string]string)
}

func contains(active []Candidate, callID string) bool {
	for _, cand := range active {
		if cand.CallID == callID {
			return true
		}
	}
	return false
}
