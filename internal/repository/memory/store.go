// Package memory provides an in-memory implementation of the record store
// used for tests and ephemeral environments.
package memory

import (
	"alcyxob/equipment-app/internal/domain"
	"alcyxob/equipment-app/internal/repository"
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Compile-time contract assertions.
var (
	_ repository.PersonRepository    = (*personRepo)(nil)
	_ repository.LessonRepository    = (*lessonRepo)(nil)
	_ repository.EquipmentRepository = (*equipmentRepo)(nil)
	_ repository.AuditRepository     = (*auditRepo)(nil)
)

// Store keeps every record in maps guarded by one RWMutex. Values are cloned
// on the way in and out so callers never share memory with the store.
type Store struct {
	mu        sync.RWMutex
	people    map[primitive.ObjectID]*domain.Person
	lessons   map[primitive.ObjectID]domain.Lesson
	equipment map[primitive.ObjectID]*domain.Equipment
	audit     []domain.AuditNote
	nowFn     func() time.Time
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{
		people:    make(map[primitive.ObjectID]*domain.Person),
		lessons:   make(map[primitive.ObjectID]domain.Lesson),
		equipment: make(map[primitive.ObjectID]*domain.Equipment),
		nowFn:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) People() repository.PersonRepository       { return &personRepo{s} }
func (s *Store) Lessons() repository.LessonRepository      { return &lessonRepo{s} }
func (s *Store) Equipment() repository.EquipmentRepository { return &equipmentRepo{s} }
func (s *Store) Audit() repository.AuditRepository         { return &auditRepo{s} }

// --- People ---

type personRepo struct{ s *Store }

func (r *personRepo) Create(_ context.Context, person *domain.Person) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if person.ID.IsZero() {
		person.ID = primitive.NewObjectID()
	} else if _, exists := r.s.people[person.ID]; exists {
		return primitive.NilObjectID, repository.ErrDuplicate
	}
	now := r.s.nowFn()
	person.CreatedAt = now
	person.UpdatedAt = now
	person.Version = 1
	r.s.people[person.ID] = person.Clone()
	return person.ID, nil
}

func (r *personRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Person, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.people[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p.Clone(), nil
}

func (r *personRepo) FindStaffByName(_ context.Context, name string) ([]domain.Person, error) {
	key := repository.NameKey(name)
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Person
	for _, p := range r.s.people {
		if p.IsStaff() && repository.NameKey(p.Name) == key {
			out = append(out, *p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() < out[j].ID.Hex() })
	return out, nil
}

func (r *personRepo) Update(_ context.Context, person *domain.Person) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.people[person.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if current.Version != person.Version {
		return repository.ErrVersionConflict
	}
	stored := person.Clone()
	stored.CreatedAt = current.CreatedAt
	stored.UpdatedAt = r.s.nowFn()
	stored.Version = current.Version + 1
	r.s.people[person.ID] = stored
	person.Version = stored.Version
	person.UpdatedAt = stored.UpdatedAt
	return nil
}

// --- Lessons ---

type lessonRepo struct{ s *Store }

func (r *lessonRepo) Create(_ context.Context, lesson *domain.Lesson) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.lessons {
		if existing.Name == lesson.Name {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	if lesson.ID.IsZero() {
		lesson.ID = primitive.NewObjectID()
	}
	now := r.s.nowFn()
	lesson.CreatedAt = now
	lesson.UpdatedAt = now
	r.s.lessons[lesson.ID] = *lesson
	return lesson.ID, nil
}

func (r *lessonRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Lesson, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	l, ok := r.s.lessons[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &l, nil
}

func (r *lessonRepo) GetByName(_ context.Context, name string) (*domain.Lesson, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, l := range r.s.lessons {
		if l.Name == name {
			found := l
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

// --- Equipment ---

type equipmentRepo struct{ s *Store }

func (r *equipmentRepo) Create(_ context.Context, equipment *domain.Equipment) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if equipment.ID.IsZero() {
		equipment.ID = primitive.NewObjectID()
	} else if _, exists := r.s.equipment[equipment.ID]; exists {
		return primitive.NilObjectID, repository.ErrDuplicate
	}
	if equipment.State == nil {
		equipment.State = domain.Available{}
	}
	now := r.s.nowFn()
	equipment.CreatedAt = now
	equipment.UpdatedAt = now
	equipment.Version = 1
	r.s.equipment[equipment.ID] = equipment.Clone()
	return equipment.ID, nil
}

func (r *equipmentRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Equipment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	eq, ok := r.s.equipment[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return eq.Clone(), nil
}

func (r *equipmentRepo) List(_ context.Context) ([]domain.Equipment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.Equipment, 0, len(r.s.equipment))
	for _, eq := range r.s.equipment {
		out = append(out, *eq.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *equipmentRepo) Update(_ context.Context, equipment *domain.Equipment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.equipment[equipment.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if current.Version != equipment.Version {
		return repository.ErrVersionConflict
	}
	stored := equipment.Clone()
	stored.CreatedAt = current.CreatedAt
	stored.UpdatedAt = r.s.nowFn()
	stored.Version = current.Version + 1
	r.s.equipment[equipment.ID] = stored
	equipment.Version = stored.Version
	equipment.UpdatedAt = stored.UpdatedAt
	return nil
}

// --- Audit ---

type auditRepo struct{ s *Store }

func (r *auditRepo) Append(_ context.Context, note *domain.AuditNote) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.audit {
		if existing.ID == note.ID {
			return repository.ErrDuplicate
		}
	}
	cp := *note
	cp.Steps = append([]string(nil), note.Steps...)
	r.s.audit = append(r.s.audit, cp)
	return nil
}

func (r *auditRepo) ListByEquipment(_ context.Context, equipmentID primitive.ObjectID) ([]domain.AuditNote, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.AuditNote
	for i := len(r.s.audit) - 1; i >= 0; i-- {
		if r.s.audit[i].EquipmentID == equipmentID {
			note := r.s.audit[i]
			note.Steps = append([]string(nil), note.Steps...)
			out = append(out, note)
		}
	}
	return out, nil
}
