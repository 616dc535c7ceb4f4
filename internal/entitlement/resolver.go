package entitlement

import (
	"context"
	"fmt"
	"math"

	"leave-bot/internal/apperr"
	"leave-bot/internal/calendar"
	"leave-bot/internal/models"
)

// carryOverLookback bounds how many prior years feed carry-over.
const carryOverLookback = 1

// Ledger is the balance collaborator.
type Ledger interface {
	// BalanceOverride returns the override row for user/year, or nil.
	BalanceOverride(ctx context.Context, userID uint, year int) (*models.LeaveBalance, error)
	// BookedHours sums PENDING/APPROVED annual-leave hours starting in year,
	// skipping excludeRequestID when non-zero.
	BookedHours(ctx context.Context, userID uint, year int, excludeRequestID uint) (float64, error)
}

// Allowance is a resolved yearly entitlement.
type Allowance struct {
	Year      int
	Base      float64
	CarryOver float64
	Total     float64
	Override  bool
}

type Resolver struct {
	ledger   Ledger
	settings models.Settings
}

func NewResolver(ledger Ledger, settings models.Settings) *Resolver {
	return &Resolver{ledger: ledger, settings: settings}
}

// Resolve returns the user's allowance for year. An override row wins
// outright; otherwise the computed allowance plus carry-over when enabled.
func (r *Resolver) Resolve(ctx context.Context, user *models.User, year int) (Allowance, error) {
	return r.resolve(ctx, user, year, carryOverLookback)
}

func (r *Resolver) resolve(ctx context.Context, user *models.User, year, lookback int) (Allowance, error) {
	override, err := r.ledger.BalanceOverride(ctx, user.ID, year)
	if err != nil {
		return Allowance{}, fmt.Errorf("load balance override: %w", err)
	}
	if override != nil {
		return Allowance{
			Year:     year,
			Base:     override.AllowanceHours,
			Total:    override.AllowanceHours,
			Override: true,
		}, nil
	}

	profile := ProfileOf(user)
	base, err := ComputeAllowance(profile, year, r.settings.AnnualLeaveAccrualPolicy)
	if err != nil {
		return Allowance{}, err
	}
	a := Allowance{Year: year, Base: base, Total: base}
	if lookback <= 0 || !r.settings.CarryOverEnabled {
		return a, nil
	}

	previous, err := r.resolve(ctx, user, year-1, lookback-1)
	if err != nil {
		return Allowance{}, err
	}
	used, err := r.ledger.BookedHours(ctx, user.ID, year-1, 0)
	if err != nil {
		return Allowance{}, fmt.Errorf("load booked hours: %w", err)
	}

	// Carry-over is capped by this year's group allowance, and by the
	// configured limit when one is set.
	limit, err := GroupAllowance(profile.BirthDate, profile.HasChild, year)
	if err != nil {
		return Allowance{}, err
	}
	if r.settings.CarryOverLimitHours > 0 {
		limit = math.Min(limit, r.settings.CarryOverLimitHours)
	}

	a.CarryOver = ComputeCarryOver(previous.Total, used, limit)
	a.Total = calendar.Round2(a.Base + a.CarryOver)
	return a, nil
}

// Remaining returns allowance minus booked hours for year.
func (r *Resolver) Remaining(ctx context.Context, user *models.User, year int, excludeRequestID uint) (float64, error) {
	allowance, err := r.Resolve(ctx, user, year)
	if err != nil {
		return 0, err
	}
	booked, err := r.ledger.BookedHours(ctx, user.ID, year, excludeRequestID)
	if err != nil {
		return 0, fmt.Errorf("load booked hours: %w", err)
	}
	return calendar.Round2(allowance.Total - booked), nil
}

// EnsureBalance fails with an insufficient-balance error when requestedHours
// exceed what is left for the year of startDate.
func (r *Resolver) EnsureBalance(ctx context.Context, user *models.User, startDate string, requestedHours float64, excludeRequestID uint) error {
	if requestedHours <= 0 {
		return nil
	}
	year, err := YearOf(startDate)
	if err != nil {
		return err
	}
	remaining, err := r.Remaining(ctx, user, year, excludeRequestID)
	if err != nil {
		return err
	}
	if calendar.Round2(requestedHours) > remaining {
		return apperr.InsufficientBalance(remaining)
	}
	return nil
}
