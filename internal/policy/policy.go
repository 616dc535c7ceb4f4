// Package policy holds the role and team-scoping rules. Everything here is a
// pure function over facts the caller already loaded.
package policy

import (
	"leave-bot/internal/apperr"
	"leave-bot/internal/models"
)

// Actor is the acting user.
type Actor struct {
	UserID uint
	Role   models.Role
	TeamID *uint
}

func ActorOf(u *models.User) Actor {
	return Actor{UserID: u.ID, Role: u.Role, TeamID: u.TeamID}
}

// IsAdmin reports the super-role.
func IsAdmin(role models.Role) bool {
	return role == models.RoleAdmin
}

// IsManager reports manager privileges; ADMIN includes them.
func IsManager(role models.Role) bool {
	return role == models.RoleManager || role == models.RoleAdmin
}

func RequireManager(role models.Role) error {
	if !IsManager(role) {
		return apperr.PermissionDenied("manager role required")
	}
	return nil
}

func RequireAdmin(role models.Role) error {
	if !IsAdmin(role) {
		return apperr.PermissionDenied("admin role required")
	}
	return nil
}

// SameTeam is true only when both teams are set and equal.
func SameTeam(a, b *uint) bool {
	return a != nil && b != nil && *a == *b
}

// CanEditRequest decides whether actor may change a leave request.
func CanEditRequest(ownerID uint, status models.LeaveStatus, actor Actor, sameTeam bool) bool {
	if IsAdmin(actor.Role) {
		return true
	}
	if actor.Role == models.RoleManager && sameTeam {
		return true
	}
	return actor.UserID == ownerID &&
		(status == models.StatusDraft || status == models.StatusPending)
}

// CanManage is true for admins and for managers sharing the target's team.
func CanManage(actor Actor, targetTeamID *uint) bool {
	if IsAdmin(actor.Role) {
		return true
	}
	return actor.Role == models.RoleManager && SameTeam(actor.TeamID, targetTeamID)
}

// RequireManage is RequireManager plus the team scope.
func RequireManage(actor Actor, targetTeamID *uint) error {
	if err := RequireManager(actor.Role); err != nil {
		return err
	}
	if !CanManage(actor, targetTeamID) {
		return apperr.PermissionDenied("user is outside your team")
	}
	return nil
}

// CanAccessUser is true for the user themself or anyone who can manage them.
func CanAccessUser(actor Actor, targetUserID uint, targetTeamID *uint) bool {
	return actor.UserID == targetUserID || CanManage(actor, targetTeamID)
}

func RequireAccessUser(actor Actor, targetUserID uint, targetTeamID *uint) error {
	if !CanAccessUser(actor, targetUserID, targetTeamID) {
		return apperr.PermissionDenied("access to another user's data denied")
	}
	return nil
}

// CanSeePrivateFields decides whether reason and manager comment stay visible.
func CanSeePrivateFields(viewer Actor, ownerID uint, ownerTeamID *uint) bool {
	return CanAccessUser(viewer, ownerID, ownerTeamID)
}

// RedactLeave nulls private fields on a copy of req when viewer may not see them.
func RedactLeave(viewer Actor, req models.LeaveRequest, ownerTeamID *uint) models.LeaveRequest {
	if CanSeePrivateFields(viewer, req.UserID, ownerTeamID) {
		return req
	}
	req.Reason = nil
	req.ManagerComment = nil
	return req
}

// CalendarScope describes which users' events a viewer may list.
type CalendarScope struct {
	All    bool
	TeamID *uint
}

// CalendarScopeFor resolves the calendar visibility for viewer.
func CalendarScopeFor(viewer Actor, showTeamCalendarForEmployees bool) CalendarScope {
	switch {
	case IsAdmin(viewer.Role):
		return CalendarScope{All: true}
	case viewer.Role == models.RoleManager:
		return CalendarScope{TeamID: viewer.TeamID}
	case showTeamCalendarForEmployees:
		return CalendarScope{TeamID: viewer.TeamID}
	}
	return CalendarScope{}
}
