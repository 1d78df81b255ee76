package notify

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists reminders. Save rejects a second pending reminder for the
// same fixture with ErrDuplicate. UpdateStatus is a compare-and-set: it fails
// with ErrInvalidTransition unless the stored status equals from and the move
// is allowed. Supersede cancels oldID (when still pending) and saves next as
// one change; on error neither happens. UpdateMechanism only touches pending
// reminders.
type Store interface {
	Save(ctx context.Context, r Reminder) error
	Get(ctx context.Context, id uuid.UUID) (Reminder, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, reason string, at time.Time) error
	UpdateMechanism(ctx context.Context, id uuid.UUID, mech Mechanism, at time.Time) error
	Supersede(ctx context.Context, oldID uuid.UUID, next Reminder, at time.Time) error
	ListPending(ctx context.Context) ([]Reminder, error)
}

// MemoryStore is the in-process Store.
type MemoryStore struct {
	mu        sync.RWMutex
	reminders map[uuid.UUID]Reminder
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reminders: make(map[uuid.UUID]Reminder)}
}

func (s *MemoryStore) Save(ctx context.Context, r Reminder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkInsert(r, uuid.Nil); err != nil {
		return err
	}
	s.reminders[r.ID] = r
	return nil
}

// checkInsert applies the unique id and one-pending-per-fixture rules,
// treating ignore as already gone. Callers hold s.mu.
func (s *MemoryStore) checkInsert(r Reminder, ignore uuid.UUID) error {
	if _, ok := s.reminders[r.ID]; ok {
		return ErrDuplicate
	}
	if r.Status != StatusPending {
		return nil
	}
	for id, existing := range s.reminders {
		if id != ignore && existing.FixtureID == r.FixtureID && existing.Status == StatusPending {
			return ErrDuplicate
		}
	}
	return nil
}

func (s *MemoryStore) Supersede(ctx context.Context, oldID uuid.UUID, next Reminder, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.reminders[oldID]
	retire := ok && old.Status == StatusPending
	ignore := uuid.Nil
	if retire {
		ignore = oldID
	}
	if err := s.checkInsert(next, ignore); err != nil {
		return err
	}
	if retire {
		old.Status = StatusCancelled
		old.Reason = ReasonSuperseded
		old.UpdatedAt = at
		s.reminders[oldID] = old
	}
	s.reminders[next.ID] = next
	return nil
}

func (s *MemoryStore) UpdateMechanism(ctx context.Context, id uuid.UUID, mech Mechanism, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[id]
	if !ok {
		return ErrNotFound
	}
	if r.Status != StatusPending {
		return ErrInvalidTransition
	}
	r.Mechanism = mech
	r.UpdatedAt = at
	s.reminders[id] = r
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (Reminder, error) {
	if err := ctx.Err(); err != nil {
		return Reminder{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reminders[id]
	if !ok {
		return Reminder{}, ErrNotFound
	}
	return r, nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, reason string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[id]
	if !ok {
		return ErrNotFound
	}
	if r.Status != from || !from.CanTransition(to) {
		return ErrInvalidTransition
	}
	r.Status = to
	r.Reason = reason
	r.UpdatedAt = at
	s.reminders[id] = r
	return nil
}

func (s *MemoryStore) ListPending(ctx context.Context) ([]Reminder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]Reminder, 0, len(s.reminders))
	for _, r := range s.reminders {
		if r.Status == StatusPending {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	return out, nil
}
