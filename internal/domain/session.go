package domain

import (
	"fmt"
	"time"
)

// SessionState is the special-charging session lifecycle state.
type SessionState string

const (
	SessionScheduled SessionState = "SCHEDULED"
	SessionActive    SessionState = "ACTIVE"
	SessionCompleted SessionState = "COMPLETED"
	SessionFailed    SessionState = "FAILED"
	SessionCancelled SessionState = "CANCELLED"
)

// terminal reports whether no further transitions are expected from s.
func (s SessionState) terminal() bool {
	switch s {
	case SessionCompleted, SessionFailed, SessionCancelled:
		return true
	}
	return false
}

// CanTransitionTo implements P6 (session monotonicity): the observed
// sequence is a prefix of SCHEDULED -> ACTIVE -> COMPLETED, or ends early in
// FAILED/CANCELLED. No backward transitions, no transitions out of a
// terminal state.
func (s SessionState) CanTransitionTo(next SessionState) bool {
	if s.terminal() {
		return false
	}
	switch s {
	case SessionScheduled:
		return next == SessionActive || next == SessionFailed || next == SessionCancelled
	case SessionActive:
		return next == SessionCompleted || next == SessionFailed || next == SessionCancelled
	}
	return false
}

// Session is a special-charging session document.
type Session struct {
	SessionID          string
	Row                int
	VIN                string
	State              SessionState
	TargetPercent      int
	TargetDatetime     time.Time
	PlannedChargeStart time.Time
	PlannedChargeEnd   time.Time
	SendAt             time.Time
	OriginalChargeLimit int
	SendJobName        string
	CleanupJobName     string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewSessionID builds the session_id of the form
// special_<row>_<YYYYMMDD>_<HHMM>, where the timestamp is target_datetime.
func NewSessionID(row int, target time.Time) string {
	return fmt.Sprintf("special_%d_%s", row, target.Format("20060102_1504"))
}

// Transition moves the session to next, enforcing CanTransitionTo, and
// stamps UpdatedAt. It returns ErrInvalidTransition when the move is
// disallowed.
func (s *Session) Transition(next SessionState, now time.Time) error {
	if !s.State.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.State, next)
	}
	s.State = next
	s.UpdatedAt = now
	return nil
}

// IsStale reports whether an ACTIVE session has outlived its cleanup window
// without completing, per §7: sessions stuck ACTIVE past
// planned_charge_end + 2h are eligible to be force-transitioned to FAILED by
// the daily planner.
func (s Session) IsStale(now time.Time) bool {
	return s.State == SessionActive && now.After(s.PlannedChargeEnd.Add(2*time.Hour))
}
