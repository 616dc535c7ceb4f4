package service

import (
	"context"

	"leave-bot/internal/apperr"
	"leave-bot/internal/calendar"
	"leave-bot/internal/models"
	"leave-bot/internal/policy"
	"leave-bot/internal/repository"

	"github.com/sirupsen/logrus"
)

// BalanceSummary is a user's annual leave position for one year, in hours.
type BalanceSummary struct {
	UserID    uint
	Year      int
	Base      float64
	CarryOver float64
	Total     float64
	Booked    float64
	Remaining float64
	Override  bool
}

type BalanceService struct {
	store  *repository.Store
	audit  *AuditService
	logger *logrus.Logger
}

func NewBalanceService(store *repository.Store, audit *AuditService, logger *logrus.Logger) *BalanceService {
	return &BalanceService{store: store, audit: audit, logger: logger}
}

func (s *BalanceService) Summary(ctx context.Context, actor policy.Actor, userID uint, year int) (*BalanceSummary, error) {
	if err := validateYear(year); err != nil {
		return nil, err
	}
	user, err := s.store.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := policy.RequireAccessUser(actor, user.ID, user.TeamID); err != nil {
		return nil, err
	}

	resolver, err := newResolver(ctx, s.store)
	if err != nil {
		return nil, err
	}
	allowance, err := resolver.Resolve(ctx, user, year)
	if err != nil {
		return nil, err
	}
	booked, err := s.store.Leaves.BookedHours(ctx, user.ID, year, 0)
	if err != nil {
		return nil, err
	}

	return &BalanceSummary{
		UserID:    user.ID,
		Year:      year,
		Base:      allowance.Base,
		CarryOver: allowance.CarryOver,
		Total:     allowance.Total,
		Booked:    calendar.Round2(booked),
		Remaining: calendar.Round2(allowance.Total - booked),
		Override:  allowance.Override,
	}, nil
}

// SetOverride pins the user's allowance for year.
func (s *BalanceService) SetOverride(ctx context.Context, actor policy.Actor, userID uint, year int, allowanceHours float64) (*models.LeaveBalance, error) {
	if err := policy.RequireAdmin(actor.Role); err != nil {
		return nil, err
	}
	if err := validateYear(year); err != nil {
		return nil, err
	}
	if allowanceHours < 0 {
		return nil, apperr.Validation("allowance must not be negative")
	}

	var balance *models.LeaveBalance
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if _, err := tx.Users.GetByID(ctx, userID); err != nil {
			return err
		}
		before, err := tx.Balances.Get(ctx, userID, year)
		if err != nil {
			return err
		}
		used, err := tx.Leaves.BookedHours(ctx, userID, year, 0)
		if err != nil {
			return err
		}

		balance = &models.LeaveBalance{
			UserID:         userID,
			Year:           year,
			AllowanceHours: calendar.Round2(allowanceHours),
			UsedHours:      calendar.Round2(used),
		}
		if err := tx.Balances.Upsert(ctx, balance); err != nil {
			return err
		}

		entry := balanceAudit(actor, userID, balance.ID, "set_override", nil, *balance)
		if before != nil {
			entry.EntityID = before.ID
			entry.Before = *before
		}
		s.audit.Record(ctx, tx, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":  userID,
		"year":     year,
		"hours":    balance.AllowanceHours,
		"actor_id": actor.UserID,
	}).Info("Balance override set")
	return balance, nil
}

// ClearOverride returns the user to the computed allowance for year.
func (s *BalanceService) ClearOverride(ctx context.Context, actor policy.Actor, userID uint, year int) error {
	if err := policy.RequireAdmin(actor.Role); err != nil {
		return err
	}
	if err := validateYear(year); err != nil {
		return err
	}

	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		before, err := tx.Balances.Get(ctx, userID, year)
		if err != nil {
			return err
		}
		if before == nil {
			return apperr.NotFound("no balance override for %d", year)
		}
		if err := tx.Balances.Delete(ctx, userID, year); err != nil {
			return err
		}
		s.audit.Record(ctx, tx, balanceAudit(actor, userID, before.ID, "clear_override", *before, nil))
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":  userID,
		"year":     year,
		"actor_id": actor.UserID,
	}).Info("Balance override cleared")
	return nil
}

func validateYear(year int) error {
	if year < 1900 || year > 9999 {
		return apperr.Validation("invalid year %d", year)
	}
	return nil
}

func balanceAudit(actor policy.Actor, userID, balanceID uint, action string, before, after any) AuditEntry {
	return AuditEntry{
		ActorID:       actor.UserID,
		EntityType:    models.EntityLeaveBalance,
		EntityID:      balanceID,
		SubjectUserID: &userID,
		Action:        action,
		Before:        before,
		After:         after,
	}
}
