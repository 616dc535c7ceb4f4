package repository

import (
	"context"
	"errors"

	"leave-bot/internal/apperr"
	"leave-bot/internal/models"

	"gorm.io/gorm"
)

// Store groups the repositories bound to one connection or transaction.
type Store struct {
	db *gorm.DB

	Users         UserRepository
	Teams         TeamRepository
	Leaves        LeaveRequestRepository
	Holidays      HolidayRepository
	Balances      BalanceRepository
	Settings      SettingsRepository
	Audit         AuditRepository
	Notifications NotificationRepository
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Team{},
		&models.LeaveRequest{},
		&models.Holiday{},
		&models.LeaveBalance{},
		&models.Settings{},
		&models.AuditLog{},
		&models.Notification{},
	)
}

// NewStore migrates the schema and returns a store on db.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return newStore(db), nil
}

func newStore(db *gorm.DB) *Store {
	return &Store{
		db:            db,
		Users:         &GormUserRepository{db: db},
		Teams:         &GormTeamRepository{db: db},
		Leaves:        &GormLeaveRequestRepository{db: db},
		Holidays:      &GormHolidayRepository{db: db},
		Balances:      &GormBalanceRepository{db: db},
		Settings:      &GormSettingsRepository{db: db},
		Audit:         &GormAuditRepository{db: db},
		Notifications: &GormNotificationRepository{db: db},
	}
}

// Transaction runs fn with a store bound to a single transaction. Every
// query inside fn must go through tx. Called on a transactional store it
// opens a savepoint instead.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newStore(tx))
	})
}

// Lock takes a transaction-scoped advisory lock on key where the database
// supports it. Other dialects rely on the caller's in-process lock.
func (s *Store) Lock(ctx context.Context, key string) error {
	if s.db.Dialector.Name() != "postgres" {
		return nil
	}
	return s.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", key).Error
}

// DB exposes the underlying handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// translate maps gorm sentinel errors onto business errors.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound("%s not found", what)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.AlreadyExists("%s already exists", what)
	}
	return err
}
