package domain

import (
	"fmt"
	"time"
)

// ConnectionConfig describes how to reach the upstream DLP manager.
// It is treated as immutable: an update always replaces the whole value,
// never individual fields.
type ConnectionConfig struct {
	ManagerIP      string    `json:"managerIp"`
	ManagerPort    int       `json:"managerPort"`
	UseHTTPS       bool      `json:"useHttps"`
	TimeoutSeconds int       `json:"timeoutSeconds"`
	Username       string    `json:"username"`
	Password       string    `json:"password"`
	UpdatedAt      time.Time `json:"updatedAt,omitzero"`
}

// Clone returns an independent copy of the config.
func (c ConnectionConfig) Clone() ConnectionConfig {
	return c
}

// BaseURL derives the root endpoint of the DLP manager API.
func (c ConnectionConfig) BaseURL() string {
	scheme := "http"
	if c.UseHTTPS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.ManagerIP, c.ManagerPort)
}

// Timeout converts the configured timeout to a duration, falling back to a
// conservative default when the value is missing or nonsensical.
func (c ConnectionConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}
