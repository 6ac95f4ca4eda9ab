// Package app wires configuration, the record store and the services together.
package app

import (
	"alcyxob/equipment-app/internal/api"
	"alcyxob/equipment-app/internal/config"
	"alcyxob/equipment-app/internal/keylock"
	"alcyxob/equipment-app/internal/metrics"
	"alcyxob/equipment-app/internal/repository"
	"alcyxob/equipment-app/internal/repository/memory"
	mongorepo "alcyxob/equipment-app/internal/repository/mongo"
	"alcyxob/equipment-app/internal/repository/sqlite"
	"alcyxob/equipment-app/internal/service"
	"alcyxob/equipment-app/internal/storage"
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo"
)

// Repositories is one complete record store.
type Repositories struct {
	People    repository.PersonRepository
	Lessons   repository.LessonRepository
	Equipment repository.EquipmentRepository
	Audit     repository.AuditRepository
}

// App holds every long-lived component of a running process.
type App struct {
	Repos     Repositories
	Metrics   *metrics.Metrics
	Ledger    *service.ProgressLedger
	Progress  service.ProgressService
	Oracle    *service.CompetencyOracle
	Equipment service.EquipmentService
	Loans     service.LoanService

	mongoDB *mongo.Database
	closers []func() error
}

// New opens the configured store and builds the services on top of it.
// reg may be nil when metrics are not exported.
func New(ctx context.Context, cfg config.Config, reg prometheus.Registerer) (*App, error) {
	a := &App{}
	repos, err := a.openStore(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Audit.Backend == config.AuditBackendS3 {
		archive, err := storage.NewS3AuditArchive(ctx, cfg.S3)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("s3 audit archive: %w", err)
		}
		repos.Audit = archive
	}

	a.build(repos, cfg.Ledger, reg)
	return a, nil
}

// NewWithRepositories builds the services over an existing store.
func NewWithRepositories(repos Repositories, ledger config.LedgerConfig, reg prometheus.Registerer) *App {
	a := &App{}
	a.build(repos, ledger, reg)
	return a
}

func (a *App) build(repos Repositories, ledgerCfg config.LedgerConfig, reg prometheus.Registerer) {
	a.Repos = repos
	if reg != nil {
		a.Metrics = metrics.New(reg)
	}
	locks := keylock.New()
	now := func() time.Time { return time.Now().UTC() }

	a.Ledger = service.NewProgressLedger(repos.People, locks, now)
	a.Progress = service.NewProgressService(a.Ledger, service.ProgressPolicy{
		StudentRequiresCompletion: ledgerCfg.StudentRequiresCompletion,
	}, a.Metrics)
	a.Oracle = service.NewCompetencyOracle(repos.Equipment, repos.Lessons, service.NewStaffDirectory(repos.People), a.Metrics)
	a.Equipment = service.NewEquipmentService(repos.Equipment, repos.Lessons, repos.Audit, locks, a.Metrics, now)
	a.Loans = service.NewLoanService(a.Equipment, a.Oracle)
}

func (a *App) openStore(cfg config.Config) (Repositories, error) {
	switch cfg.Store.Backend {
	case config.BackendMongo:
		log.Println("INFO: Connecting to MongoDB...")
		client, err := mongorepo.ConnectDB(cfg.Database.URI)
		if err != nil {
			return Repositories{}, fmt.Errorf("connect to mongodb: %w", err)
		}
		a.closers = append(a.closers, func() error { return mongorepo.DisconnectDB(client) })
		log.Println("INFO: Successfully connected to MongoDB.")

		db := client.Database(cfg.Database.Name)
		a.mongoDB = db
		return Repositories{
			People:    mongorepo.NewMongoPersonRepository(db),
			Lessons:   mongorepo.NewMongoLessonRepository(db),
			Equipment: mongorepo.NewMongoEquipmentRepository(db),
			Audit:     mongorepo.NewMongoAuditRepository(db),
		}, nil

	case config.BackendSQLite:
		store, err := sqlite.NewStore(cfg.SQLite.Path)
		if err != nil {
			return Repositories{}, fmt.Errorf("open sqlite store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		log.Printf("INFO: Using SQLite store at %s", store.Path())
		return Repositories{
			People:    store.People(),
			Lessons:   store.Lessons(),
			Equipment: store.Equipment(),
			Audit:     store.Audit(),
		}, nil

	case config.BackendMemory:
		log.Println("WARN: Using in-memory store; all records are lost on exit")
		store := memory.NewStore()
		return Repositories{
			People:    store.People(),
			Lessons:   store.Lessons(),
			Equipment: store.Equipment(),
			Audit:     store.Audit(),
		}, nil
	}
	return Repositories{}, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

// EnsureIndexes creates MongoDB indexes; other backends need none.
func (a *App) EnsureIndexes(ctx context.Context) error {
	if a.mongoDB == nil {
		return nil
	}
	return mongorepo.EnsureIndexes(ctx, a.mongoDB)
}

// Services returns the handles the HTTP layer needs.
func (a *App) Services() api.Services {
	return api.Services{
		Progress:  a.Progress,
		Equipment: a.Equipment,
		Loans:     a.Loans,
		Oracle:    a.Oracle,
	}
}

// Close releases the store in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
