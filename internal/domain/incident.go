package domain

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Timestamp layouts emitted by known DLP manager releases. Newer versions
// send RFC3339; older ones use a space-separated layout without a zone.
const legacyTimestampLayout = "2006-01-02 15:04:05"

// UpstreamIncident is an incident record exactly as the DLP manager API
// returns it. The timestamp is kept as the raw string until normalization.
type UpstreamIncident struct {
	ID         string `json:"id"`
	UserName   string `json:"userName"`
	Department string `json:"department"`
	Severity   int    `json:"severity"`
	DataType   string `json:"dataType"`
	Timestamp  string `json:"timestamp"`
	Policy     string `json:"policy"`
	Channel    string `json:"channel"`
}

// Incident is the canonical, normalized incident record. It is immutable
// after normalization; ownership transfers to the stream on publish.
type Incident struct {
	ID         string
	User       string
	Department string
	Severity   int
	DataType   string
	Timestamp  time.Time
	Policy     string
	Channel    string
}

// Normalize converts a raw upstream record into a canonical Incident.
// An unparseable or missing timestamp falls back to collectedAt, and a
// missing ID gets a generated one so downstream consumers can always
// correlate entries.
func (u UpstreamIncident) Normalize(collectedAt time.Time) Incident {
	inc := Incident{
		ID:         u.ID,
		User:       u.UserName,
		Department: u.Department,
		Severity:   u.Severity,
		DataType:   u.DataType,
		Policy:     u.Policy,
		Channel:    u.Channel,
	}
	if inc.ID == "" {
		inc.ID = uuid.NewString()
	}
	inc.Timestamp = parseIncidentTime(u.Timestamp, collectedAt)
	return inc
}

func parseIncidentTime(raw string, fallback time.Time) time.Time {
	if raw == "" {
		return fallback.UTC()
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts
	}
	if ts, err := time.Parse(legacyTimestampLayout, raw); err == nil {
		return ts.UTC()
	}
	return fallback.UTC()
}

// StreamFields flattens the incident into the field/value shape written to
// the shared stream. All values are strings; absent optional fields are
// written as empty strings, never omitted, to keep the schema homogeneous.
func (i Incident) StreamFields() map[string]interface{} {
	return map[string]interface{}{
		"user":       i.User,
		"department": i.Department,
		"severity":   strconv.Itoa(i.Severity),
		"data_type":  i.DataType,
		"timestamp":  i.Timestamp.UTC().Format(time.RFC3339),
		"policy":     i.Policy,
		"channel":    i.Channel,
	}
}
