package worker

import "time"

// nowRFC3339 stamps a registration response with the current time, per
// spec.md's "registered_at (RFC 3339 timestamp)" field.
func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
