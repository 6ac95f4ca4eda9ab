package service

import (
	"alcyxob/equipment-app/internal/domain"
	"alcyxob/equipment-app/internal/keylock"
	"alcyxob/equipment-app/internal/metrics"
	"alcyxob/equipment-app/internal/repository"
	"alcyxob/equipment-app/internal/repository/memory"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// clock is a settable time source shared by the services under test.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *clock { return &clock{now: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// failingAudit rejects every append.
type failingAudit struct{}

func (failingAudit) Append(context.Context, *domain.AuditNote) error {
	return errors.New("audit store offline")
}

func (failingAudit) ListByEquipment(context.Context, primitive.ObjectID) ([]domain.AuditNote, error) {
	return nil, nil
}

type fixture struct {
	store     *memory.Store
	clock     *clock
	metrics   *metrics.Metrics
	ledger    *ProgressLedger
	progress  ProgressService
	oracle    *CompetencyOracle
	equipment EquipmentService
	loans     LoanService
}

func newFixture(t *testing.T, audit repository.AuditRepository) *fixture {
	t.Helper()
	store := memory.NewStore()
	if audit == nil {
		audit = store.Audit()
	}
	c := newClock(time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC))
	m := metrics.New(prometheus.NewRegistry())
	locks := keylock.New()

	ledger := NewProgressLedger(store.People(), locks, c.Now)
	oracle := NewCompetencyOracle(store.Equipment(), store.Lessons(), NewStaffDirectory(store.People()), m)
	equipment := NewEquipmentService(store.Equipment(), store.Lessons(), audit, locks, m, c.Now)
	return &fixture{
		store:     store,
		clock:     c,
		metrics:   m,
		ledger:    ledger,
		progress:  NewProgressService(ledger, ProgressPolicy{StudentRequiresCompletion: true}, m),
		oracle:    oracle,
		equipment: equipment,
		loans:     NewLoanService(equipment, oracle),
	}
}

func (f *fixture) addPerson(t *testing.T, name string, role domain.Role, progress map[string]domain.ProgressEntry) primitive.ObjectID {
	t.Helper()
	id, err := f.store.People().Create(context.Background(), &domain.Person{Name: name, Role: role, Progress: progress})
	require.NoError(t, err)
	return id
}

func (f *fixture) addLesson(t *testing.T, name string) primitive.ObjectID {
	t.Helper()
	id, err := f.store.Lessons().Create(context.Background(), &domain.Lesson{Name: name})
	require.NoError(t, err)
	return id
}

func (f *fixture) addEquipment(t *testing.T, name string, lessonID *primitive.ObjectID) primitive.ObjectID {
	t.Helper()
	id, err := f.store.Equipment().Create(context.Background(), &domain.Equipment{Name: name, LinkedLessonID: lessonID})
	require.NoError(t, err)
	return id
}

func (f *fixture) state(t *testing.T, id primitive.ObjectID) domain.OperationalState {
	t.Helper()
	eq, err := f.store.Equipment().GetByID(context.Background(), id)
	require.NoError(t, err)
	return eq.CurrentState()
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func validLock() LockRequest {
	return LockRequest{
		Date:        day(2026, 3, 14),
		CompletedBy: "Sam Tech",
		Steps:       []string{"Isolate power", "Apply tag"},
		Notes:       "blade guard cracked",
	}
}

func validLoan(borrower string) LoanDetails {
	return LoanDetails{
		LendDate:    day(2026, 3, 14),
		LentTo:      borrower,
		DueBackDate: day(2026, 3, 21),
		Notes:       "for the spring build",
	}
}
