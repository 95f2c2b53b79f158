package model

import "time"

type AuditEntry struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Principal  string    `json:"principal,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type AuditQuery struct {
	Principal string
	Type      string
	Limit     int
}

type AuditListData struct {
	Items []AuditEntry `json:"items"`
}
