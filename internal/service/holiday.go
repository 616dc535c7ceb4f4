package service

import (
	"context"
	"strings"

	"leave-bot/internal/calendar"
	"leave-bot/internal/models"
	"leave-bot/internal/policy"
	"leave-bot/internal/repository"
	"leave-bot/pkg/holidays"

	"github.com/sirupsen/logrus"
)

type HolidayInput struct {
	Date             string `validate:"required,datetime=2006-01-02"`
	Name             string `validate:"required,max=100"`
	IsCompanyHoliday bool
}

type UpdateHolidayInput struct {
	Name             *string `validate:"omitempty,min=1,max=100"`
	IsCompanyHoliday *bool
}

type HolidayService struct {
	store  *repository.Store
	audit  *AuditService
	logger *logrus.Logger
}

func NewHolidayService(store *repository.Store, audit *AuditService, logger *logrus.Logger) *HolidayService {
	return &HolidayService{store: store, audit: audit, logger: logger}
}

func (s *HolidayService) Create(ctx context.Context, actor policy.Actor, input HolidayInput) (*models.Holiday, error) {
	if err := policy.RequireAdmin(actor.Role); err != nil {
		return nil, err
	}
	input.Name = strings.TrimSpace(input.Name)
	if err := validateInput(input); err != nil {
		return nil, err
	}

	holiday := &models.Holiday{
		Date:             input.Date,
		Name:             input.Name,
		IsCompanyHoliday: input.IsCompanyHoliday,
		IsActive:         true,
	}
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Holidays.Create(ctx, holiday); err != nil {
			return err
		}
		s.audit.Record(ctx, tx, holidayAudit(actor, holiday, "create", nil, *holiday))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"date":     holiday.Date,
		"name":     holiday.Name,
		"actor_id": actor.UserID,
	}).Info("Holiday created")
	return holiday, nil
}

func (s *HolidayService) Update(ctx context.Context, actor policy.Actor, id uint, input UpdateHolidayInput) (*models.Holiday, error) {
	if err := policy.RequireAdmin(actor.Role); err != nil {
		return nil, err
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		input.Name = &name
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	return s.change(ctx, actor, id, "update", func(h *models.Holiday) {
		if input.Name != nil {
			h.Name = *input.Name
		}
		if input.IsCompanyHoliday != nil {
			h.IsCompanyHoliday = *input.IsCompanyHoliday
		}
	})
}

// SetActive switches a holiday on or off without deleting it.
func (s *HolidayService) SetActive(ctx context.Context, actor policy.Actor, id uint, active bool) (*models.Holiday, error) {
	if err := policy.RequireAdmin(actor.Role); err != nil {
		return nil, err
	}
	action := "deactivate"
	if active {
		action = "activate"
	}
	return s.change(ctx, actor, id, action, func(h *models.Holiday) {
		h.IsActive = active
	})
}

// Toggle flips the active flag of the holiday on date.
func (s *HolidayService) Toggle(ctx context.Context, actor policy.Actor, date string) (*models.Holiday, error) {
	if err := policy.RequireAdmin(actor.Role); err != nil {
		return nil, err
	}
	if _, err := calendar.ParseDate(date); err != nil {
		return nil, err
	}
	holiday, err := s.store.Holidays.GetByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	return s.SetActive(ctx, actor, holiday.ID, !holiday.IsActive)
}

func (s *HolidayService) Delete(ctx context.Context, actor policy.Actor, id uint) error {
	if err := policy.RequireAdmin(actor.Role); err != nil {
		return err
	}

	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		holiday, err := tx.Holidays.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.Holidays.Delete(ctx, id); err != nil {
			return err
		}
		s.audit.Record(ctx, tx, holidayAudit(actor, holiday, "delete", *holiday, nil))
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"holiday_id": id,
		"actor_id":   actor.UserID,
	}).Info("Holiday deleted")
	return nil
}

// DeleteByDate removes the holiday on date.
func (s *HolidayService) DeleteByDate(ctx context.Context, actor policy.Actor, date string) error {
	if err := policy.RequireAdmin(actor.Role); err != nil {
		return err
	}
	if _, err := calendar.ParseDate(date); err != nil {
		return err
	}
	holiday, err := s.store.Holidays.GetByDate(ctx, date)
	if err != nil {
		return err
	}
	return s.Delete(ctx, actor, holiday.ID)
}

// List returns the holidays of year, inactive ones included.
func (s *HolidayService) List(ctx context.Context, year int) ([]models.Holiday, error) {
	return s.store.Holidays.List(ctx, year, false)
}

// ActiveSet returns the active holiday dates in [from, to] for the
// calendar engine.
func (s *HolidayService) ActiveSet(ctx context.Context, from, to string) (calendar.HolidaySet, error) {
	holidays, err := s.store.Holidays.ActiveBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	dates := make([]string, 0, len(holidays))
	for _, h := range holidays {
		dates = append(dates, h.Date)
	}
	return calendar.NewHolidaySet(dates...), nil
}

// Import loads a production-calendar file. Dates already present are left
// untouched; the number of new holidays is returned.
func (s *HolidayService) Import(ctx context.Context, actor policy.Actor, path string) (int64, error) {
	if err := policy.RequireAdmin(actor.Role); err != nil {
		return 0, err
	}
	return s.ImportFile(ctx, actor.UserID, path)
}

// ImportFile is Import without the role check, for startup seeding.
func (s *HolidayService) ImportFile(ctx context.Context, actorID uint, path string) (int64, error) {
	days, err := holidays.ParseFile(path)
	if err != nil {
		return 0, err
	}

	rows := make([]models.Holiday, 0, len(days))
	for _, d := range days {
		rows = append(rows, models.Holiday{Date: d.Date, Name: d.Name, IsActive: true})
	}

	var created int64
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		if created, err = tx.Holidays.BulkCreate(ctx, rows); err != nil {
			return err
		}
		s.audit.Record(ctx, tx, AuditEntry{
			ActorID:    actorID,
			EntityType: models.EntityHoliday,
			Action:     "import",
			After:      map[string]any{"file": path, "parsed": len(rows), "created": created},
		})
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.WithFields(logrus.Fields{
		"file":    path,
		"parsed":  len(rows),
		"created": created,
	}).Info("Holidays imported")
	return created, nil
}

func (s *HolidayService) change(ctx context.Context, actor policy.Actor, id uint, action string, fn func(h *models.Holiday)) (*models.Holiday, error) {
	var holiday *models.Holiday
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		if holiday, err = tx.Holidays.GetByID(ctx, id); err != nil {
			return err
		}
		before := *holiday
		fn(holiday)
		if err := tx.Holidays.Update(ctx, holiday); err != nil {
			return err
		}
		s.audit.Record(ctx, tx, holidayAudit(actor, holiday, action, before, *holiday))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"date":     holiday.Date,
		"action":   action,
		"actor_id": actor.UserID,
	}).Info("Holiday changed")
	return holiday, nil
}

func holidayAudit(actor policy.Actor, holiday *models.Holiday, action string, before, after any) AuditEntry {
	return AuditEntry{
		ActorID:    actor.UserID,
		EntityType: models.EntityHoliday,
		EntityID:   holiday.ID,
		Action:     action,
		Before:     before,
		After:      after,
	}
}
