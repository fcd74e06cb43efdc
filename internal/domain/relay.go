package domain

import "time"

// RelayEvent is an operational event forwarded to the central authority's
// log endpoint.
type RelayEvent struct {
	Timestamp    time.Time `json:"timestamp"`
	Message      string    `json:"message"`
	Details      string    `json:"details,omitempty"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}
