package service

import (
	"alcyxob/equipment-app/internal/domain"
	"alcyxob/equipment-app/internal/keylock"
	"alcyxob/equipment-app/internal/repository"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UpdateGuard vets one normalized entry before it is stamped and stored.
// Returning an error aborts the whole update; nothing is written.
type UpdateGuard func(person *domain.Person, lesson string, next domain.ProgressEntry) error

// ProgressLedger owns every person's per-lesson progress map and the one-way
// stamping of completion and competency dates. It applies no role policy of
// its own; callers pass guards for that.
type ProgressLedger struct {
	people repository.PersonRepository
	locks  *keylock.Locker
	nowFn  func() time.Time
}

// NewProgressLedger creates a ledger over the people repository. locks may be
// shared with other services; nowFn defaults to time.Now.
func NewProgressLedger(people repository.PersonRepository, locks *keylock.Locker, nowFn func() time.Time) *ProgressLedger {
	if locks == nil {
		locks = keylock.New()
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &ProgressLedger{people: people, locks: locks, nowFn: nowFn}
}

// Today is the UTC calendar date used for stamping.
func (l *ProgressLedger) Today() time.Time {
	now := l.nowFn().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// ApplyUpdate sets the target entry for every lesson in updates, stamping dates
// per lesson independently, and returns the person's full progress map.
func (l *ProgressLedger) ApplyUpdate(ctx context.Context, personID primitive.ObjectID, updates map[string]domain.ProgressEntry, guards ...UpdateGuard) (map[string]domain.ProgressEntry, error) {
	return l.ApplyWith(ctx, personID, func(*domain.Person) (map[string]domain.ProgressEntry, error) {
		return updates, nil
	}, guards...)
}

// ApplyWith is ApplyUpdate with the target entries computed from the freshly
// read person, inside the same critical section.
func (l *ProgressLedger) ApplyWith(ctx context.Context, personID primitive.ObjectID, build func(person *domain.Person) (map[string]domain.ProgressEntry, error), guards ...UpdateGuard) (map[string]domain.ProgressEntry, error) {
	person, err := l.mutate(ctx, personID, func(person *domain.Person, today time.Time) error {
		updates, err := build(person)
		if err != nil {
			return err
		}
		next, err := plan(person, updates, guards, today)
		if err != nil {
			return err
		}
		if person.Progress == nil {
			person.Progress = make(map[string]domain.ProgressEntry, len(next))
		}
		for name, entry := range next {
			person.Progress[name] = entry
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return person.ProgressCopy(), nil
}

// Check runs everything ApplyWith would for personID except the write.
func (l *ProgressLedger) Check(ctx context.Context, personID primitive.ObjectID, build func(person *domain.Person) (map[string]domain.ProgressEntry, error), guards ...UpdateGuard) error {
	person, err := l.people.GetByID(ctx, personID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPersonNotFound
		}
		return err
	}
	updates, err := build(person)
	if err != nil {
		return err
	}
	_, err = plan(person, updates, guards, l.Today())
	return err
}

// plan validates updates against person and returns the stamped entries keyed
// by trimmed lesson name. Two keys that trim to the same name are rejected.
func plan(person *domain.Person, updates map[string]domain.ProgressEntry, guards []UpdateGuard, today time.Time) (map[string]domain.ProgressEntry, error) {
	if len(updates) == 0 {
		return nil, missingField("progress")
	}
	next := make(map[string]domain.ProgressEntry, len(updates))
	for lesson, entry := range updates {
		name := strings.TrimSpace(lesson)
		if name == "" {
			return nil, missingField("lesson name")
		}
		if _, dup := next[name]; dup {
			return nil, invalidField("lesson name", fmt.Sprintf("%q duplicated after trimming", name))
		}
		if entry.Progress < 0 || entry.Progress > 100 {
			return nil, invalidField("progress", fmt.Sprintf("for %q must be between 0 and 100", name))
		}
		for _, guard := range guards {
			if err := guard(person, name, entry); err != nil {
				return nil, err
			}
		}
		var old *domain.ProgressEntry
		if prev, ok := person.Progress[name]; ok {
			old = &prev
		}
		next[name] = StampEntry(old, entry, today)
	}
	return next, nil
}

// Reset puts every named lesson back to {progress: 0, competent: false} and
// clears both dates, whether or not an entry existed.
func (l *ProgressLedger) Reset(ctx context.Context, personID primitive.ObjectID, lessons []string) (map[string]domain.ProgressEntry, error) {
	if len(lessons) == 0 {
		return nil, missingField("lessons")
	}
	person, err := l.mutate(ctx, personID, func(person *domain.Person, _ time.Time) error {
		if person.Progress == nil {
			person.Progress = make(map[string]domain.ProgressEntry, len(lessons))
		}
		for _, lesson := range lessons {
			name := strings.TrimSpace(lesson)
			if name == "" {
				return missingField("lesson name")
			}
			person.Progress[name] = domain.ProgressEntry{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return person.ProgressCopy(), nil
}

// Get returns a copy of the person's progress map.
func (l *ProgressLedger) Get(ctx context.Context, personID primitive.ObjectID) (map[string]domain.ProgressEntry, error) {
	person, err := l.people.GetByID(ctx, personID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPersonNotFound
		}
		return nil, err
	}
	return person.ProgressCopy(), nil
}

// mutate runs fn as one read-modify-write of the person record, serialized per person.
func (l *ProgressLedger) mutate(ctx context.Context, personID primitive.ObjectID, fn func(person *domain.Person, today time.Time) error) (*domain.Person, error) {
	unlock := l.locks.Lock("person:" + personID.Hex())
	defer unlock()

	person, err := l.people.GetByID(ctx, personID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPersonNotFound
		}
		return nil, err
	}
	if err := fn(person, l.Today()); err != nil {
		return nil, err
	}
	if err := l.people.Update(ctx, person); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrPersonNotFound
		case errors.Is(err, repository.ErrVersionConflict):
			return nil, ErrConcurrentUpdate
		}
		return nil, fmt.Errorf("saving progress: %w", err)
	}
	return person, nil
}

// StampEntry merges the target entry with the previously stored one.
// A date reached the first time is set to today; a date already on record is
// carried forward and wins over whatever the caller sent.
func StampEntry(old *domain.ProgressEntry, next domain.ProgressEntry, today time.Time) domain.ProgressEntry {
	out := next.Clone()
	if out.Progress == 100 && (old == nil || old.Progress < 100) && out.CompletionDate == nil {
		d := today
		out.CompletionDate = &d
	}
	if out.Competent && (old == nil || !old.Competent) && out.CompetencyDate == nil {
		d := today
		out.CompetencyDate = &d
	}
	if old != nil && old.CompletionDate != nil {
		d := *old.CompletionDate
		out.CompletionDate = &d
	}
	if old != nil && old.CompetencyDate != nil {
		d := *old.CompetencyDate
		out.CompetencyDate = &d
	}
	return out
}
