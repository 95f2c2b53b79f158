package event

import "time"

type Type string

const (
	TypeLoginSucceeded  Type = "auth.login.succeeded"
	TypeLoginFailed     Type = "auth.login.failed"
	TypeTokenRefreshed  Type = "auth.token.refreshed"
	TypeRefreshRejected Type = "auth.refresh.rejected"
	TypeRateLimited     Type = "ratelimit.rejected"
)

// Event is a security-relevant outcome on the authentication path. Principal
// is the username involved, which for failed logins is the claimed name.
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	Principal  string    `json:"principal,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(e Event)
}

type Bus interface {
	Publisher
	Subscribe() (<-chan Event, func()) // channel and unsubscribe
}
