package service

import (
	"context"
	"strings"

	"leave-bot/internal/apperr"
	"leave-bot/internal/models"
	"leave-bot/internal/policy"
	"leave-bot/internal/repository"

	"github.com/sirupsen/logrus"
)

type TeamInput struct {
	Name                string `validate:"required,max=100"`
	MaxConcurrentLeaves *int   `validate:"omitempty,min=1"`
}

// UpdateTeamInput renames a team or changes its capacity; ClearLimit
// removes the capacity limit.
type UpdateTeamInput struct {
	Name                *string `validate:"omitempty,min=1,max=100"`
	MaxConcurrentLeaves *int    `validate:"omitempty,min=1"`
	ClearLimit          bool
}

type TeamService struct {
	store  *repository.Store
	audit  *AuditService
	logger *logrus.Logger
}

func NewTeamService(store *repository.Store, audit *AuditService, logger *logrus.Logger) *TeamService {
	return &TeamService{store: store, audit: audit, logger: logger}
}

func (s *TeamService) Create(ctx context.Context, actor policy.Actor, input TeamInput) (*models.Team, error) {
	if err := policy.RequireAdmin(actor.Role); err != nil {
		return nil, err
	}
	input.Name = strings.TrimSpace(input.Name)
	if err := validateInput(input); err != nil {
		return nil, err
	}

	team := &models.Team{Name: input.Name, MaxConcurrentLeaves: input.MaxConcurrentLeaves}
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		taken, err := tx.Teams.NameTaken(ctx, team.Name, 0)
		if err != nil {
			return err
		}
		if taken {
			return apperr.AlreadyExists("team %s already exists", team.Name)
		}
		if err := tx.Teams.Create(ctx, team); err != nil {
			return err
		}
		s.audit.Record(ctx, tx, teamAudit(actor, team, "create", nil, *team))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"team_id":  team.ID,
		"name":     team.Name,
		"actor_id": actor.UserID,
	}).Info("Team created")
	return team, nil
}

func (s *TeamService) Update(ctx context.Context, actor policy.Actor, id uint, input UpdateTeamInput) (*models.Team, error) {
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

	var team *models.Team
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		if team, err = tx.Teams.GetByID(ctx, id); err != nil {
			return err
		}
		before := *team

		if input.Name != nil && *input.Name != team.Name {
			taken, err := tx.Teams.NameTaken(ctx, *input.Name, team.ID)
			if err != nil {
				return err
			}
			if taken {
				return apperr.AlreadyExists("team %s already exists", *input.Name)
			}
			team.Name = *input.Name
		}
		switch {
		case input.ClearLimit:
			team.MaxConcurrentLeaves = nil
		case input.MaxConcurrentLeaves != nil:
			limit := *input.MaxConcurrentLeaves
			team.MaxConcurrentLeaves = &limit
		}

		if err := tx.Teams.Update(ctx, team); err != nil {
			return err
		}
		s.audit.Record(ctx, tx, teamAudit(actor, team, "update", before, *team))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"team_id":  team.ID,
		"actor_id": actor.UserID,
	}).Info("Team updated")
	return team, nil
}

// Delete removes a team without members.
func (s *TeamService) Delete(ctx context.Context, actor policy.Actor, id uint) error {
	if err := policy.RequireAdmin(actor.Role); err != nil {
		return err
	}

	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		team, err := tx.Teams.GetByID(ctx, id)
		if err != nil {
			return err
		}
		members, err := tx.Users.CountByTeam(ctx, id)
		if err != nil {
			return err
		}
		if members > 0 {
			return apperr.FailedPrecondition(apperr.CodeHasDependents,
				"team %s still has %d member(s)", team.Name, members)
		}
		if err := tx.Teams.Delete(ctx, id); err != nil {
			return err
		}
		s.audit.Record(ctx, tx, teamAudit(actor, team, "delete", *team, nil))
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"team_id":  id,
		"actor_id": actor.UserID,
	}).Info("Team deleted")
	return nil
}

func (s *TeamService) Get(ctx context.Context, id uint) (*models.Team, error) {
	return s.store.Teams.GetByID(ctx, id)
}

func (s *TeamService) List(ctx context.Context, actor policy.Actor) ([]models.Team, error) {
	if err := policy.RequireManager(actor.Role); err != nil {
		return nil, err
	}
	return s.store.Teams.List(ctx)
}

func teamAudit(actor policy.Actor, team *models.Team, action string, before, after any) AuditEntry {
	return AuditEntry{
		ActorID:    actor.UserID,
		EntityType: models.EntityTeam,
		EntityID:   team.ID,
		Action:     action,
		Before:     before,
		After:      after,
	}
}
