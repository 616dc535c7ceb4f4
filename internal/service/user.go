package service

import (
	"context"
	"fmt"
	"strings"

	"leave-bot/internal/apperr"
	"leave-bot/internal/models"
	"leave-bot/internal/policy"
	"leave-bot/internal/repository"

	"github.com/sirupsen/logrus"
)

type RegisterInput struct {
	ChatID    int64  `validate:"required"`
	Username  string `validate:"max=64"`
	FirstName string `validate:"required,max=64"`
	LastName  string `validate:"max=64"`
}

// UpdateProfileInput changes the entitlement facts and contact data of a
// user. Nil fields are left untouched.
type UpdateProfileInput struct {
	FirstName                 *string `validate:"omitempty,min=1,max=64"`
	LastName                  *string `validate:"omitempty,max=64"`
	Email                     *string `validate:"omitempty,email"`
	ClearEmail                bool
	BirthDate                 *string `validate:"omitempty,datetime=2006-01-02"`
	HasChild                  *bool
	EmploymentStartDate       *string  `validate:"omitempty,datetime=2006-01-02"`
	ManualLeaveAllowanceHours *float64 `validate:"omitempty,gte=0"`
	ClearManualAllowance      bool
}

type UserService struct {
	store  *repository.Store
	audit  *AuditService
	logger *logrus.Logger
}

func NewUserService(store *repository.Store, audit *AuditService, logger *logrus.Logger) *UserService {
	return &UserService{store: store, audit: audit, logger: logger}
}

// Authenticate resolves a Telegram chat to an active user.
func (s *UserService) Authenticate(ctx context.Context, chatID int64) (*models.User, error) {
	user, err := s.store.Users.GetByChatID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.Unauthenticated("no profile for this chat, use /createprofile")
	}
	if !user.IsActive {
		return nil, apperr.Unauthenticated("your profile is deactivated")
	}
	return user, nil
}

// FindByChatID returns nil when the chat has no profile.
func (s *UserService) FindByChatID(ctx context.Context, chatID int64) (*models.User, error) {
	return s.store.Users.GetByChatID(ctx, chatID)
}

// Register creates an EMPLOYEE bound to a Telegram chat.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	if err := validateInput(input); err != nil {
		return nil, err
	}

	user := &models.User{
		ChatID:    input.ChatID,
		Username:  input.Username,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Role:      models.RoleEmployee,
		IsActive:  true,
	}
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Users.Create(ctx, user); err != nil {
			return err
		}
		s.audit.Record(ctx, tx, userAudit(user.ID, user, "create", nil, *user))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"chat_id": user.ChatID,
	}).Info("User registered")
	return user, nil
}

// InitializeAdmin promotes the configured chat to ADMIN, creating the user
// when needed.
func (s *UserService) InitializeAdmin(ctx context.Context, chatID int64) error {
	if chatID == 0 {
		return nil
	}

	return s.store.Transaction(ctx, func(tx *repository.Store) error {
		existing, err := tx.Users.GetByChatID(ctx, chatID)
		if err != nil {
			return err
		}

		if existing != nil {
			if existing.Role == models.RoleAdmin && existing.IsActive {
				return nil
			}
			before := *existing
			existing.Role = models.RoleAdmin
			existing.IsActive = true
			if err := tx.Users.Update(ctx, existing); err != nil {
				return err
			}
			s.audit.Record(ctx, tx, userAudit(existing.ID, existing, "promote", before, *existing))
			s.logger.WithField("chat_id", chatID).Info("Base admin promoted")
			return nil
		}

		admin := &models.User{
			ChatID:    chatID,
			Username:  "admin",
			FirstName: "Administrator",
			Role:      models.RoleAdmin,
			IsActive:  true,
		}
		if err := tx.Users.Create(ctx, admin); err != nil {
			return err
		}
		s.audit.Record(ctx, tx, userAudit(admin.ID, admin, "create", nil, *admin))
		s.logger.WithField("chat_id", chatID).Info("Base admin created")
		return nil
	})
}

func (s *UserService) Get(ctx context.Context, actor policy.Actor, userID uint) (*models.User, error) {
	user, err := s.store.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := policy.RequireAccessUser(actor, user.ID, user.TeamID); err != nil {
		return nil, err
	}
	return user, nil
}

// List returns every user for admins and the team's users for managers.
func (s *UserService) List(ctx context.Context, actor policy.Actor) ([]models.User, error) {
	if err := policy.RequireManager(actor.Role); err != nil {
		return nil, err
	}
	if policy.IsAdmin(actor.Role) {
		return s.store.Users.List(ctx, repository.UserFilter{})
	}
	if actor.TeamID == nil {
		return []models.User{}, nil
	}
	return s.store.Users.List(ctx, repository.UserFilter{TeamID: actor.TeamID})
}

func (s *UserService) SetRole(ctx context.Context, actor policy.Actor, userID uint, role models.Role) (*models.User, error) {
	if err := policy.RequireAdmin(actor.Role); err != nil {
		return nil, err
	}
	role = models.Role(strings.ToUpper(string(role)))
	if !role.Valid() {
		return nil, apperr.Validation("unknown role %q", role)
	}
	if userID == actor.UserID {
		return nil, apperr.Validation("you cannot change your own role")
	}

	return s.change(ctx, actor, userID, "set_role", func(tx *repository.Store, user *models.User) error {
		user.Role = role
		return nil
	})
}

// SetTeam assigns the user to teamID, or removes them from any team when
// teamID is nil.
func (s *UserService) SetTeam(ctx context.Context, actor policy.Actor, userID uint, teamID *uint) (*models.User, error) {
	if err := policy.RequireAdmin(actor.Role); err != nil {
		return nil, err
	}

	return s.change(ctx, actor, userID, "set_team", func(tx *repository.Store, user *models.User) error {
		if teamID != nil {
			if _, err := tx.Teams.GetByID(ctx, *teamID); err != nil {
				return err
			}
		}
		user.TeamID = teamID
		return nil
	})
}

func (s *UserService) SetProfile(ctx context.Context, actor policy.Actor, userID uint, input UpdateProfileInput) (*models.User, error) {
	if err := policy.RequireAdmin(actor.Role); err != nil {
		return nil, err
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	return s.change(ctx, actor, userID, "set_profile", func(tx *repository.Store, user *models.User) error {
		if input.FirstName != nil {
			user.FirstName = strings.TrimSpace(*input.FirstName)
		}
		if input.LastName != nil {
			user.LastName = strings.TrimSpace(*input.LastName)
		}
		switch {
		case input.ClearEmail:
			user.Email = nil
		case input.Email != nil:
			email := strings.ToLower(strings.TrimSpace(*input.Email))
			taken, err := tx.Users.EmailTaken(ctx, email, user.ID)
			if err != nil {
				return err
			}
			if taken {
				return apperr.AlreadyExists("email %s is already in use", email)
			}
			user.Email = &email
		}
		if input.BirthDate != nil {
			user.BirthDate = input.BirthDate
		}
		if input.HasChild != nil {
			user.HasChild = *input.HasChild
		}
		if input.EmploymentStartDate != nil {
			user.EmploymentStartDate = input.EmploymentStartDate
		}
		switch {
		case input.ClearManualAllowance:
			user.ManualLeaveAllowanceHours = nil
		case input.ManualLeaveAllowanceHours != nil:
			hours := *input.ManualLeaveAllowanceHours
			user.ManualLeaveAllowanceHours = &hours
		}
		return nil
	})
}

func (s *UserService) Deactivate(ctx context.Context, actor policy.Actor, userID uint) (*models.User, error) {
	if err := policy.RequireAdmin(actor.Role); err != nil {
		return nil, err
	}
	if userID == actor.UserID {
		return nil, apperr.Validation("you cannot deactivate yourself")
	}
	return s.change(ctx, actor, userID, "deactivate", func(tx *repository.Store, user *models.User) error {
		user.IsActive = false
		return nil
	})
}

func (s *UserService) Activate(ctx context.Context, actor policy.Actor, userID uint) (*models.User, error) {
	if err := policy.RequireAdmin(actor.Role); err != nil {
		return nil, err
	}
	return s.change(ctx, actor, userID, "activate", func(tx *repository.Store, user *models.User) error {
		user.IsActive = true
		return nil
	})
}

// Delete removes a user that owns no leave requests, balance overrides or
// notifications. Deactivate such users instead.
func (s *UserService) Delete(ctx context.Context, actor policy.Actor, userID uint) error {
	if err := policy.RequireAdmin(actor.Role); err != nil {
		return err
	}
	if userID == actor.UserID {
		return apperr.Validation("you cannot delete yourself")
	}

	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		user, err := tx.Users.GetByID(ctx, userID)
		if err != nil {
			return err
		}

		dependents, err := countDependents(ctx, tx, userID)
		if err != nil {
			return err
		}
		if dependents > 0 {
			return apperr.FailedPrecondition(apperr.CodeHasDependents,
				"user %s has %d dependent record(s), deactivate instead", user.FullName(), dependents)
		}

		if err := tx.Users.Delete(ctx, userID); err != nil {
			return err
		}
		s.audit.Record(ctx, tx, userAudit(actor.UserID, user, "delete", *user, nil))
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":  userID,
		"actor_id": actor.UserID,
	}).Info("User deleted")
	return nil
}

func (s *UserService) change(ctx context.Context, actor policy.Actor, userID uint, action string, fn func(tx *repository.Store, user *models.User) error) (*models.User, error) {
	var user *models.User
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		if user, err = tx.Users.GetByID(ctx, userID); err != nil {
			return err
		}
		before := *user
		if err := fn(tx, user); err != nil {
			return err
		}
		if err := tx.Users.Update(ctx, user); err != nil {
			return err
		}
		s.audit.Record(ctx, tx, userAudit(actor.UserID, user, action, before, *user))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"actor_id": actor.UserID,
		"action":   action,
	}).Info("User changed")
	return user, nil
}

func countDependents(ctx context.Context, tx *repository.Store, userID uint) (int64, error) {
	counters := []func(context.Context, uint) (int64, error){
		tx.Leaves.CountByUser,
		tx.Balances.CountByUser,
		tx.Notifications.CountByUser,
	}
	var total int64
	for _, count := range counters {
		n, err := count(ctx, userID)
		if err != nil {
			return 0, fmt.Errorf("count dependents: %w", err)
		}
		total += n
	}
	return total, nil
}

func userAudit(actorID uint, user *models.User, action string, before, after any) AuditEntry {
	subject := user.ID
	return AuditEntry{
		ActorID:       actorID,
		EntityType:    models.EntityUser,
		EntityID:      user.ID,
		SubjectUserID: &subject,
		Action:        action,
		Before:        before,
		After:         after,
	}
}
