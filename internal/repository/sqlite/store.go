// Package sqlite persists records as JSON payloads in an embedded SQLite file.
// Each record row carries a version column so updates are compare-and-swap.
package sqlite

import (
	"alcyxob/equipment-app/internal/domain"
	"alcyxob/equipment-app/internal/repository"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Compile-time contract assertions.
var (
	_ repository.PersonRepository    = (*personRepo)(nil)
	_ repository.LessonRepository    = (*lessonRepo)(nil)
	_ repository.EquipmentRepository = (*equipmentRepo)(nil)
	_ repository.AuditRepository     = (*auditRepo)(nil)
)

const (
	kindPerson    = "person"
	kindLesson    = "lesson"
	kindEquipment = "equipment"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	kind     TEXT NOT NULL,
	id       TEXT NOT NULL,
	name_key TEXT NOT NULL DEFAULT '',
	role     TEXT NOT NULL DEFAULT '',
	version  INTEGER NOT NULL,
	payload  BLOB NOT NULL,
	PRIMARY KEY (kind, id)
);
CREATE INDEX IF NOT EXISTS records_name ON records(kind, name_key);
CREATE TABLE IF NOT EXISTS audit_notes (
	id           TEXT PRIMARY KEY,
	equipment_id TEXT NOT NULL,
	recorded_at  INTEGER NOT NULL,
	payload      BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_notes_equipment ON audit_notes(equipment_id, recorded_at);
`

// Store is a SQLite-backed record store.
type Store struct {
	db    *sql.DB
	path  string
	nowFn func() time.Time
}

// NewStore opens (creating if needed) the database file at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "equipment.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, path: path, nowFn: func() time.Time { return time.Now().UTC() }}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

func (s *Store) People() repository.PersonRepository       { return &personRepo{s} }
func (s *Store) Lessons() repository.LessonRepository      { return &lessonRepo{s} }
func (s *Store) Equipment() repository.EquipmentRepository { return &equipmentRepo{s} }
func (s *Store) Audit() repository.AuditRepository         { return &auditRepo{s} }

// --- generic record helpers ---

type recordMeta struct {
	nameKey string
	role    string
}

func (s *Store) insert(ctx context.Context, kind string, id primitive.ObjectID, meta recordMeta, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records(kind, id, name_key, role, version, payload) VALUES(?,?,?,?,1,?)`,
		kind, id.Hex(), meta.nameKey, meta.role, data)
	if err != nil {
		if isConstraintError(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert %s: %w", kind, err)
	}
	return nil
}

// get decodes the payload into dst and returns the stored version.
func (s *Store) get(ctx context.Context, kind string, id primitive.ObjectID, dst any) (int64, error) {
	var (
		version int64
		data    []byte
	)
	err := s.db.QueryRowContext(ctx, `SELECT version, payload FROM records WHERE kind = ? AND id = ?`, kind, id.Hex()).
		Scan(&version, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("select %s: %w", kind, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return 0, fmt.Errorf("decode %s: %w", kind, err)
	}
	return version, nil
}

// update writes payload only when the stored version equals expected.
func (s *Store) update(ctx context.Context, kind string, id primitive.ObjectID, expected int64, meta recordMeta, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET payload = ?, name_key = ?, role = ?, version = version + 1
		 WHERE kind = ? AND id = ? AND version = ?`,
		data, meta.nameKey, meta.role, kind, id.Hex(), expected)
	if err != nil {
		return fmt.Errorf("update %s: %w", kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s: %w", kind, err)
	}
	if n == 1 {
		return nil
	}
	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM records WHERE kind = ? AND id = ?`, kind, id.Hex()).Scan(&exists)
	if err != nil {
		return fmt.Errorf("update %s: %w", kind, err)
	}
	if exists == 0 {
		return repository.ErrNotFound
	}
	return repository.ErrVersionConflict
}

func isConstraintError(err error) bool {
	return strings.Contains(err.Error(), "constraint failed")
}

// --- People ---

type personRepo struct{ s *Store }

func personMeta(p *domain.Person) recordMeta {
	return recordMeta{nameKey: repository.NameKey(p.Name), role: string(p.Role)}
}

func (r *personRepo) Create(ctx context.Context, person *domain.Person) (primitive.ObjectID, error) {
	person.Name = strings.TrimSpace(person.Name)
	if person.Name == "" || person.Role == "" {
		return primitive.NilObjectID, errors.New("person name and role are required")
	}
	if person.ID.IsZero() {
		person.ID = primitive.NewObjectID()
	}
	now := r.s.nowFn()
	person.CreatedAt = now
	person.UpdatedAt = now
	if err := r.s.insert(ctx, kindPerson, person.ID, personMeta(person), person); err != nil {
		return primitive.NilObjectID, err
	}
	person.Version = 1
	return person.ID, nil
}

func (r *personRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Person, error) {
	var person domain.Person
	version, err := r.s.get(ctx, kindPerson, id, &person)
	if err != nil {
		return nil, err
	}
	person.Version = version
	return &person, nil
}

func (r *personRepo) FindStaffByName(ctx context.Context, name string) ([]domain.Person, error) {
	rows, err := r.s.db.QueryContext(ctx,
		`SELECT version, payload FROM records WHERE kind = ? AND name_key = ? AND role = ? ORDER BY id`,
		kindPerson, repository.NameKey(name), string(domain.RoleStaff))
	if err != nil {
		return nil, fmt.Errorf("select staff: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var people []domain.Person
	for rows.Next() {
		var (
			version int64
			data    []byte
			person  domain.Person
		)
		if err := rows.Scan(&version, &data); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if err := json.Unmarshal(data, &person); err != nil {
			return nil, fmt.Errorf("decode person: %w", err)
		}
		person.Version = version
		people = append(people, person)
	}
	return people, rows.Err()
}

func (r *personRepo) Update(ctx context.Context, person *domain.Person) error {
	next := person.Clone()
	next.UpdatedAt = r.s.nowFn()
	if err := r.s.update(ctx, kindPerson, person.ID, person.Version, personMeta(next), next); err != nil {
		return err
	}
	person.Version++
	person.UpdatedAt = next.UpdatedAt
	return nil
}

// --- Lessons ---

type lessonRepo struct{ s *Store }

func (r *lessonRepo) Create(ctx context.Context, lesson *domain.Lesson) (primitive.ObjectID, error) {
	lesson.Name = strings.TrimSpace(lesson.Name)
	if lesson.Name == "" {
		return primitive.NilObjectID, errors.New("lesson name is required")
	}
	if _, err := r.GetByName(ctx, lesson.Name); err == nil {
		return primitive.NilObjectID, repository.ErrDuplicate
	} else if !errors.Is(err, repository.ErrNotFound) {
		return primitive.NilObjectID, err
	}
	if lesson.ID.IsZero() {
		lesson.ID = primitive.NewObjectID()
	}
	now := r.s.nowFn()
	lesson.CreatedAt = now
	lesson.UpdatedAt = now
	if err := r.s.insert(ctx, kindLesson, lesson.ID, recordMeta{nameKey: lesson.Name}, lesson); err != nil {
		return primitive.NilObjectID, err
	}
	return lesson.ID, nil
}

func (r *lessonRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Lesson, error) {
	var lesson domain.Lesson
	if _, err := r.s.get(ctx, kindLesson, id, &lesson); err != nil {
		return nil, err
	}
	return &lesson, nil
}

// GetByName matches exactly; lesson names are stored verbatim in name_key.
func (r *lessonRepo) GetByName(ctx context.Context, name string) (*domain.Lesson, error) {
	var data []byte
	err := r.s.db.QueryRowContext(ctx,
		`SELECT payload FROM records WHERE kind = ? AND name_key = ? LIMIT 1`, kindLesson, name).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select lesson: %w", err)
	}
	var lesson domain.Lesson
	if err := json.Unmarshal(data, &lesson); err != nil {
		return nil, fmt.Errorf("decode lesson: %w", err)
	}
	return &lesson, nil
}

// --- Equipment ---

type equipmentRepo struct{ s *Store }

func (r *equipmentRepo) Create(ctx context.Context, equipment *domain.Equipment) (primitive.ObjectID, error) {
	equipment.Name = strings.TrimSpace(equipment.Name)
	if equipment.Name == "" {
		return primitive.NilObjectID, errors.New("equipment name is required")
	}
	if equipment.ID.IsZero() {
		equipment.ID = primitive.NewObjectID()
	}
	if equipment.State == nil {
		equipment.State = domain.Available{}
	}
	now := r.s.nowFn()
	equipment.CreatedAt = now
	equipment.UpdatedAt = now
	if err := r.s.insert(ctx, kindEquipment, equipment.ID, recordMeta{nameKey: repository.NameKey(equipment.Name)}, equipment); err != nil {
		return primitive.NilObjectID, err
	}
	equipment.Version = 1
	return equipment.ID, nil
}

func (r *equipmentRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Equipment, error) {
	var equipment domain.Equipment
	version, err := r.s.get(ctx, kindEquipment, id, &equipment)
	if err != nil {
		return nil, err
	}
	equipment.Version = version
	return &equipment, nil
}

func (r *equipmentRepo) List(ctx context.Context) ([]domain.Equipment, error) {
	rows, err := r.s.db.QueryContext(ctx,
		`SELECT version, payload FROM records WHERE kind = ? ORDER BY name_key`, kindEquipment)
	if err != nil {
		return nil, fmt.Errorf("select equipment: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []domain.Equipment
	for rows.Next() {
		var (
			version int64
			data    []byte
			item    domain.Equipment
		)
		if err := rows.Scan(&version, &data); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, fmt.Errorf("decode equipment: %w", err)
		}
		item.Version = version
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *equipmentRepo) Update(ctx context.Context, equipment *domain.Equipment) error {
	next := equipment.Clone()
	next.UpdatedAt = r.s.nowFn()
	meta := recordMeta{nameKey: repository.NameKey(next.Name)}
	if err := r.s.update(ctx, kindEquipment, equipment.ID, equipment.Version, meta, next); err != nil {
		return err
	}
	equipment.Version++
	equipment.UpdatedAt = next.UpdatedAt
	return nil
}

// --- Audit ---

type auditRepo struct{ s *Store }

func (r *auditRepo) Append(ctx context.Context, note *domain.AuditNote) error {
	if note.ID == "" || note.EquipmentID.IsZero() {
		return errors.New("audit note requires id and equipmentId")
	}
	data, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("encode audit note: %w", err)
	}
	_, err = r.s.db.ExecContext(ctx,
		`INSERT INTO audit_notes(id, equipment_id, recorded_at, payload) VALUES(?,?,?,?)`,
		note.ID, note.EquipmentID.Hex(), note.RecordedAt.UnixNano(), data)
	if err != nil {
		if isConstraintError(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert audit note: %w", err)
	}
	return nil
}

func (r *auditRepo) ListByEquipment(ctx context.Context, equipmentID primitive.ObjectID) ([]domain.AuditNote, error) {
	rows, err := r.s.db.QueryContext(ctx,
		`SELECT payload FROM audit_notes WHERE equipment_id = ? ORDER BY recorded_at DESC, rowid DESC`, equipmentID.Hex())
	if err != nil {
		return nil, fmt.Errorf("select audit notes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var notes []domain.AuditNote
	for rows.Next() {
		var (
			data []byte
			note domain.AuditNote
		)
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if err := json.Unmarshal(data, &note); err != nil {
			return nil, fmt.Errorf("decode audit note: %w", err)
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}
