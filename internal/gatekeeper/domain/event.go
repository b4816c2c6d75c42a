package domain

import "time"

// AuthEvent is the kind of authentication event fanned out to
// registered services.
type AuthEvent string

const (
	EventLogin  AuthEvent = "login"
	EventLogout AuthEvent = "logout"
)

// AuthCallback is the JSON body delivered to each registered service's
// post-auth endpoint. Minimal on purpose: downstream services that
// need more call back into the validate endpoint.
type AuthCallback struct {
	Event    AuthEvent `json:"event"`
	Subject  string    `json:"subject"`
	Username string    `json:"username,omitempty"`
	IssuedAt time.Time `json:"issued_at"`
}

// FanoutOutcome is the result of notifying one registered service.
type FanoutOutcome struct {
	Service  string
	Attempts int
	Duration time.Duration
	Err      error
}

// OK reports whether the callback was delivered.
func (o FanoutOutcome) OK() bool { return o.Err == nil }

// FanoutResult aggregates per-service outcomes for one event. A
// failed outcome never fails the triggering operation.
type FanoutResult struct {
	Event    AuthEvent
	Outcomes []FanoutOutcome
}

// Succeeded counts delivered callbacks.
func (r FanoutResult) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.OK() {
			n++
		}
	}
	return n
}

// Failed counts undelivered callbacks.
func (r FanoutResult) Failed() int { return len(r.Outcomes) - r.Succeeded() }
