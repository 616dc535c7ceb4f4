package service

import (
	"context"
	"errors"

	"leave-bot/internal/apperr"
	"leave-bot/internal/models"
	"leave-bot/internal/policy"
	"leave-bot/internal/repository"

	"github.com/sirupsen/logrus"
)

type UpdateSettingsInput struct {
	AccrualPolicy                *models.AccrualPolicy `validate:"omitempty,oneof=YEAR_START PRO_RATA"`
	CarryOverEnabled             *bool
	CarryOverLimitHours          *float64 `validate:"omitempty,gte=0"`
	ShowTeamCalendarForEmployees *bool
}

type SettingsService struct {
	store    *repository.Store
	audit    *AuditService
	logger   *logrus.Logger
	defaults models.Settings
}

func NewSettingsService(store *repository.Store, audit *AuditService, logger *logrus.Logger, defaults models.Settings) *SettingsService {
	if defaults.AnnualLeaveAccrualPolicy == "" {
		defaults.AnnualLeaveAccrualPolicy = models.AccrualYearStart
	}
	return &SettingsService{store: store, audit: audit, logger: logger, defaults: defaults}
}

// Init seeds the settings row on first start.
func (s *SettingsService) Init(ctx context.Context) (*models.Settings, error) {
	settings, err := s.store.Settings.EnsureDefaults(ctx, s.defaults)
	if err != nil {
		return nil, apperr.Internal("failed to seed settings", err)
	}
	s.logger.WithFields(logrus.Fields{
		"accrual_policy":     settings.AnnualLeaveAccrualPolicy,
		"carry_over_enabled": settings.CarryOverEnabled,
		"carry_over_limit":   settings.CarryOverLimitHours,
		"show_team_calendar": settings.ShowTeamCalendarForEmployees,
	}).Info("Settings loaded")
	return settings, nil
}

func (s *SettingsService) Get(ctx context.Context) (*models.Settings, error) {
	settings, err := currentSettings(ctx, s.store)
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (s *SettingsService) Update(ctx context.Context, actor policy.Actor, input UpdateSettingsInput) (*models.Settings, error) {
	if err := policy.RequireAdmin(actor.Role); err != nil {
		return nil, err
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	var updated models.Settings
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		before, err := currentSettings(ctx, tx)
		if err != nil {
			return err
		}
		updated = before

		if input.AccrualPolicy != nil {
			updated.AnnualLeaveAccrualPolicy = *input.AccrualPolicy
		}
		if input.CarryOverEnabled != nil {
			updated.CarryOverEnabled = *input.CarryOverEnabled
		}
		if input.CarryOverLimitHours != nil {
			updated.CarryOverLimitHours = *input.CarryOverLimitHours
		}
		if input.ShowTeamCalendarForEmployees != nil {
			updated.ShowTeamCalendarForEmployees = *input.ShowTeamCalendarForEmployees
		}

		if err := tx.Settings.Save(ctx, &updated); err != nil {
			return err
		}

		s.audit.Record(ctx, tx, AuditEntry{
			ActorID:    actor.UserID,
			EntityType: models.EntitySettings,
			EntityID:   models.SettingsID,
			Action:     "update",
			Before:     before,
			After:      updated,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithField("actor_id", actor.UserID).Info("Settings updated")
	return &updated, nil
}

// currentSettings reads the settings row, falling back to built-in defaults
// when it has not been seeded.
func currentSettings(ctx context.Context, store *repository.Store) (models.Settings, error) {
	settings, err := store.Settings.Get(ctx)
	if errors.Is(err, apperr.ErrNotFound) {
		return models.Settings{ID: models.SettingsID, AnnualLeaveAccrualPolicy: models.AccrualYearStart}, nil
	}
	if err != nil {
		return models.Settings{}, err
	}
	return *settings, nil
}
