// Package notify schedules match reminders. Each reminder is delivered either
// by an exact alarm or, when exact scheduling is unavailable, by deferred work
// that runs on the next sweep after its computed delay.
package notify

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotScheduled      = errors.New("notify: no scheduled reminder")
	ErrFireTimeElapsed   = errors.New("notify: fire time already passed")
	ErrDuplicate         = errors.New("notify: fixture already has a pending reminder")
	ErrNotFound          = errors.New("notify: reminder not found")
	ErrInvalidTransition = errors.New("notify: invalid status transition")
	ErrInvalidRequest    = errors.New("notify: invalid request")
)

// Mechanism is the delivery path a reminder was registered on.
type Mechanism int

const (
	ExactAlarm Mechanism = iota + 1
	DeferredWork
)

func (m Mechanism) String() string {
	switch m {
	case ExactAlarm:
		return "exact_alarm"
	case DeferredWork:
		return "deferred_work"
	default:
		return "unknown"
	}
}

func (m Mechanism) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mechanism) UnmarshalText(b []byte) error {
	v, err := ParseMechanism(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

func ParseMechanism(s string) (Mechanism, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exact_alarm":
		return ExactAlarm, nil
	case "deferred_work":
		return DeferredWork, nil
	}
	return 0, fmt.Errorf("notify: unknown mechanism %q", s)
}

// Status is Pending until the reminder either fires or is cancelled; both
// are terminal.
type Status int

const (
	StatusPending Status = iota + 1
	StatusFired
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusFired:
		return "fired"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return StatusPending, nil
	case "fired":
		return StatusFired, nil
	case "cancelled":
		return StatusCancelled, nil
	}
	return 0, fmt.Errorf("notify: unknown status %q", s)
}

// CanTransition reports whether s may move to next.
func (s Status) CanTransition(next Status) bool {
	return s == StatusPending && (next == StatusFired || next == StatusCancelled)
}

// Cancellation reasons recorded on the reminder.
const (
	ReasonCancelled  = "cancelled"
	ReasonSuperseded = "superseded"
)

type Reminder struct {
	ID        uuid.UUID `json:"id"`
	FixtureID int       `json:"fixture_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	FireAt    time.Time `json:"fire_at"`
	Mechanism Mechanism `json:"mechanism"`
	Status    Status    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Delay is how long from now until the reminder is due, never negative.
func (r Reminder) Delay(now time.Time) time.Duration {
	if d := r.FireAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
