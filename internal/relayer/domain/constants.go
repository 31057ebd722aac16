package domain

// Status is the lifecycle state of a relay job
type Status string

// Job status constants
const (
	StatusQueued    Status = "QUEUED"
	StatusAccepted  Status = "ACCEPTED"
	StatusSent      Status = "SENT"
	StatusMined     Status = "MINED"
	StatusConfirmed Status = "CONFIRMED"
	StatusFailed    Status = "FAILED"
)

// IsTerminal reports whether no further transition can leave the status
func (s Status) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusAccepted, StatusSent, StatusMined, StatusConfirmed, StatusFailed:
		return true
	}
	return false
}
