// Package entitlement computes annual-leave allowances and carry-over.
package entitlement

import (
	"math"

	"leave-bot/internal/calendar"
	"leave-bot/internal/models"
)

const (
	BaseTierDays   = 20
	SeniorTierDays = 25

	// Employees born in or before year-SeniorAge get the senior tier.
	SeniorAge = 33
)

// Profile is the subset of a user's facts the allowance depends on.
// Empty date strings mean unknown.
type Profile struct {
	BirthDate            string
	HasChild             bool
	EmploymentStartDate  string
	ManualAllowanceHours *float64
}

func ProfileOf(u *models.User) Profile {
	p := Profile{
		HasChild:             u.HasChild,
		ManualAllowanceHours: u.ManualLeaveAllowanceHours,
	}
	if u.BirthDate != nil {
		p.BirthDate = *u.BirthDate
	}
	if u.EmploymentStartDate != nil {
		p.EmploymentStartDate = *u.EmploymentStartDate
	}
	return p
}

// GroupAllowance returns the tier allowance in hours. Having a child takes
// precedence over age.
func GroupAllowance(birthDate string, hasChild bool, year int) (float64, error) {
	senior := float64(SeniorTierDays) * calendar.HoursPerWorkday
	base := float64(BaseTierDays) * calendar.HoursPerWorkday

	if hasChild {
		return senior, nil
	}
	if birthDate == "" {
		return base, nil
	}
	born, err := calendar.ParseDate(birthDate)
	if err != nil {
		return 0, err
	}
	if born.Year() <= year-SeniorAge {
		return senior, nil
	}
	return base, nil
}

// ComputeAllowance applies employment start, manual override and accrual
// policy on top of the group allowance.
func ComputeAllowance(p Profile, year int, policy models.AccrualPolicy) (float64, error) {
	base, err := GroupAllowance(p.BirthDate, p.HasChild, year)
	if err != nil {
		return 0, err
	}
	if p.EmploymentStartDate == "" {
		return base, nil
	}

	started, err := calendar.ParseDate(p.EmploymentStartDate)
	if err != nil {
		return 0, err
	}
	switch {
	case started.Year() > year:
		return 0, nil
	case started.Year() < year:
		return base, nil
	}

	if p.ManualAllowanceHours != nil {
		return *p.ManualAllowanceHours, nil
	}
	if policy == models.AccrualProRata {
		months := float64(12 - int(started.Month()) + 1)
		return calendar.Round2(base * months / 12), nil
	}
	return base, nil
}

// ComputeCarryOver returns the unused remainder capped at limit.
func ComputeCarryOver(previousAllowance, previousUsed, limit float64) float64 {
	unused := math.Max(0, previousAllowance-previousUsed)
	return math.Min(unused, math.Max(0, limit))
}

// YearOf extracts the year of a YYYY-MM-DD date.
func YearOf(date string) (int, error) {
	t, err := calendar.ParseDate(date)
	if err != nil {
		return 0, err
	}
	return t.Year(), nil
}
