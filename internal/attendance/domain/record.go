// Package domain defines the attendance ledger's record type.
package domain

import "time"

// Record is a single check-in in the ledger, the authoritative store of
// attendance. (SessionID, StudentID, DeviceID) is the uniqueness key
// enforced by the repository; DeviceID is empty when device binding is
// disabled. Meta is an opaque diagnostic bag (origin IP, user agent, device
// id) used for audit only, never for correctness.
type Record struct {
	ID          string
	SessionID   string
	StudentID   string
	StudentName string
	DeviceID    string
	RecordedAt  time.Time
	Meta        map[string]string
}
