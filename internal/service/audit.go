package service

import (
	"context"
	"encoding/json"

	"leave-bot/internal/metrics"
	"leave-bot/internal/models"
	"leave-bot/internal/policy"
	"leave-bot/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

const defaultAuditLimit = 50

// AuditEntry describes one state change.
type AuditEntry struct {
	ActorID       uint
	EntityType    string
	EntityID      uint
	SubjectUserID *uint
	Action        string
	Before        any
	After         any
}

type AuditService struct {
	store  *repository.Store
	logger *logrus.Logger
}

func NewAuditService(store *repository.Store, logger *logrus.Logger) *AuditService {
	return &AuditService{store: store, logger: logger}
}

// Record writes entry through tx inside a savepoint. A failed write is
// logged and counted but never fails the caller's transaction.
func (s *AuditService) Record(ctx context.Context, tx *repository.Store, entry AuditEntry) {
	log := s.logger.WithFields(logrus.Fields{
		"actor_id":    entry.ActorID,
		"entity_type": entry.EntityType,
		"entity_id":   entry.EntityID,
		"action":      entry.Action,
	})

	row := &models.AuditLog{
		EventID:       uuid.NewString(),
		ActorID:       entry.ActorID,
		EntityType:    entry.EntityType,
		EntityID:      entry.EntityID,
		SubjectUserID: entry.SubjectUserID,
		Action:        entry.Action,
	}

	var err error
	if row.Before, err = snapshot(entry.Before); err == nil {
		row.After, err = snapshot(entry.After)
	}
	if err == nil {
		err = tx.Transaction(ctx, func(sp *repository.Store) error {
			return sp.Audit.Create(ctx, row)
		})
	}
	if err != nil {
		metrics.AuditWriteFailures.Inc()
		log.WithError(err).Error("Failed to write audit log")
		return
	}

	log.Debug("Audit log written")
}

func snapshot(v any) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

// AuditQuery selects audit entries for List.
type AuditQuery struct {
	EntityType string
	EntityID   *uint
	Limit      int
}

// List returns audit entries visible to actor: admins see everything,
// managers entries about their team, employees entries about themselves.
// Leave snapshots are redacted for viewers outside the owner's scope.
func (s *AuditService) List(ctx context.Context, actor policy.Actor, query AuditQuery) ([]models.AuditLog, error) {
	filter := repository.AuditFilter{
		EntityType: query.EntityType,
		EntityID:   query.EntityID,
		Limit:      query.Limit,
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultAuditLimit
	}

	switch {
	case policy.IsAdmin(actor.Role):
	case actor.Role == models.RoleManager && actor.TeamID != nil:
		filter.TeamID = actor.TeamID
	default:
		filter.SubjectUserID = &actor.UserID
	}

	entries, err := s.store.Audit.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	return s.redact(ctx, actor, entries)
}

func (s *AuditService) redact(ctx context.Context, viewer policy.Actor, entries []models.AuditLog) ([]models.AuditLog, error) {
	subjectIDs := make([]uint, 0, len(entries))
	for _, e := range entries {
		if e.EntityType == models.EntityLeaveRequest && e.SubjectUserID != nil {
			subjectIDs = append(subjectIDs, *e.SubjectUserID)
		}
	}
	owners, err := s.store.Users.GetByIDs(ctx, subjectIDs)
	if err != nil {
		return nil, err
	}

	for i := range entries {
		e := &entries[i]
		if e.EntityType != models.EntityLeaveRequest || e.SubjectUserID == nil {
			continue
		}
		owner := owners[*e.SubjectUserID]
		if policy.CanSeePrivateFields(viewer, *e.SubjectUserID, owner.TeamID) {
			continue
		}
		e.Before = redactSnapshot(viewer, e.Before, owner.TeamID)
		e.After = redactSnapshot(viewer, e.After, owner.TeamID)
	}
	return entries, nil
}

func redactSnapshot(viewer policy.Actor, raw datatypes.JSON, ownerTeamID *uint) datatypes.JSON {
	if len(raw) == 0 {
		return raw
	}
	var req models.LeaveRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil
	}
	data, err := json.Marshal(policy.RedactLeave(viewer, req, ownerTeamID))
	if err != nil {
		return nil
	}
	return data
}
