package domain

import "fmt"

// transitions lists the statuses reachable from each non-terminal status.
// ACCEPTED -> ACCEPTED covers queue redelivery, SENT -> SENT a replacement transaction.
var transitions = map[Status][]Status{
	StatusQueued:   {StatusAccepted, StatusFailed},
	StatusAccepted: {StatusAccepted, StatusSent, StatusFailed},
	StatusSent:     {StatusSent, StatusMined, StatusFailed},
	StatusMined:    {StatusConfirmed, StatusFailed},
}

// CanTransition reports whether a job may move from one status to another
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the job to the given status or returns ErrInvalidTransition
func (j *Job) Transition(to Status) error {
	if !CanTransition(j.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, to)
	}
	j.Status = to
	return nil
}
