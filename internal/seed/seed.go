// Package seed loads a workshop fixture (lessons, people, equipment) from YAML.
package seed

import (
	"alcyxob/equipment-app/internal/domain"
	"alcyxob/equipment-app/internal/repository"
	"alcyxob/equipment-app/internal/service"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"gopkg.in/yaml.v3"
)

// Fixture is the file layout.
type Fixture struct {
	Lessons   []LessonFixture    `yaml:"lessons"`
	People    []PersonFixture    `yaml:"people"`
	Equipment []EquipmentFixture `yaml:"equipment"`
}

type LessonFixture struct {
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
	Level    string `yaml:"level"`
}

type PersonFixture struct {
	Name     string                   `yaml:"name"`
	Role     domain.Role              `yaml:"role"`
	Progress map[string]ProgressValue `yaml:"progress"`
}

type EquipmentFixture struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Location string `yaml:"location"`
	Lesson   string `yaml:"lesson"` // Linked lesson, by name
}

// ProgressValue is either a bare percentage or a full entry.
type ProgressValue struct {
	domain.ProgressEntry
}

func (v *ProgressValue) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var n float64
		if err := node.Decode(&n); err != nil {
			return fmt.Errorf("line %d: progress must be a number or a mapping", node.Line)
		}
		percent, err := domain.LegacyPercent(n)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		v.ProgressEntry = domain.LegacyProgress(percent)
		return nil
	}
	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			switch key := node.Content[i].Value; key {
			case "progress", "competent":
			default:
				return fmt.Errorf("line %d: field %s not found in progress entry", node.Content[i].Line, key)
			}
		}
	}
	var entry struct {
		Progress  int  `yaml:"progress"`
		Competent bool `yaml:"competent"`
	}
	if err := node.Decode(&entry); err != nil {
		return err
	}
	v.ProgressEntry = domain.ProgressEntry{Progress: entry.Progress, Competent: entry.Competent}
	return nil
}

// Result lists the IDs created by Load, keyed by name.
type Result struct {
	Lessons   map[string]primitive.ObjectID
	People    map[string]primitive.ObjectID
	Equipment map[string]primitive.ObjectID
}

// Parse decodes a fixture, rejecting unknown keys.
func Parse(r io.Reader) (*Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f Fixture
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	return &f, nil
}

// LoadFile parses path and loads it.
func LoadFile(ctx context.Context, path string, repos Repositories, ledger *service.ProgressLedger) (*Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	f, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return Load(ctx, f, repos, ledger)
}

// Repositories are the stores a fixture is written to.
type Repositories struct {
	People    repository.PersonRepository
	Lessons   repository.LessonRepository
	Equipment repository.EquipmentRepository
}

// Load creates lessons first, then people, then equipment. Progress is written
// through the ledger so completion and competency dates are stamped.
func Load(ctx context.Context, f *Fixture, repos Repositories, ledger *service.ProgressLedger) (*Result, error) {
	res := &Result{
		Lessons:   make(map[string]primitive.ObjectID),
		People:    make(map[string]primitive.ObjectID),
		Equipment: make(map[string]primitive.ObjectID),
	}

	for _, l := range f.Lessons {
		name := strings.TrimSpace(l.Name)
		if name == "" {
			return nil, errors.New("lesson with empty name")
		}
		id, err := repos.Lessons.Create(ctx, &domain.Lesson{Name: name, Category: l.Category, Level: l.Level})
		if err != nil {
			return nil, fmt.Errorf("create lesson %q: %w", name, err)
		}
		res.Lessons[name] = id
	}

	for _, p := range f.People {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, errors.New("person with empty name")
		}
		role := p.Role
		if role == "" {
			role = domain.RoleStaff
		}
		if role != domain.RoleStaff && role != domain.RoleStudent {
			return nil, fmt.Errorf("person %q: unknown role %q", name, role)
		}
		id, err := repos.People.Create(ctx, &domain.Person{Name: name, Role: role})
		if err != nil {
			return nil, fmt.Errorf("create person %q: %w", name, err)
		}
		res.People[name] = id

		if len(p.Progress) == 0 {
			continue
		}
		updates := make(map[string]domain.ProgressEntry, len(p.Progress))
		for lesson, v := range p.Progress {
			updates[lesson] = v.ProgressEntry
		}
		if _, err := ledger.ApplyUpdate(ctx, id, updates); err != nil {
			return nil, fmt.Errorf("progress for %q: %w", name, err)
		}
	}

	for _, e := range f.Equipment {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, errors.New("equipment with empty name")
		}
		equipment := &domain.Equipment{Name: name, Type: e.Type, Location: e.Location, State: domain.Available{}}
		if e.Lesson != "" {
			lessonID, err := res.lessonID(ctx, repos.Lessons, e.Lesson)
			if err != nil {
				return nil, fmt.Errorf("equipment %q: %w", name, err)
			}
			equipment.LinkedLessonID = &lessonID
		}
		id, err := repos.Equipment.Create(ctx, equipment)
		if err != nil {
			return nil, fmt.Errorf("create equipment %q: %w", name, err)
		}
		res.Equipment[name] = id
	}

	log.Printf("INFO: seeded %d lessons, %d people, %d equipment items", len(res.Lessons), len(res.People), len(res.Equipment))
	return res, nil
}

// lessonID resolves a lesson created by this fixture or already in the catalog.
func (r *Result) lessonID(ctx context.Context, lessons repository.LessonRepository, name string) (primitive.ObjectID, error) {
	if id, ok := r.Lessons[name]; ok {
		return id, nil
	}
	lesson, err := lessons.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return primitive.NilObjectID, fmt.Errorf("%w: %s", service.ErrLessonNotFound, name)
		}
		return primitive.NilObjectID, err
	}
	return lesson.ID, nil
}
