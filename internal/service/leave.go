package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"leave-bot/internal/apperr"
	"leave-bot/internal/calendar"
	"leave-bot/internal/entitlement"
	"leave-bot/internal/metrics"
	"leave-bot/internal/models"
	"leave-bot/internal/policy"
	"leave-bot/internal/repository"
	"leave-bot/pkg/telegram"

	"github.com/sirupsen/logrus"
)

// maxCalendarDays bounds a single calendar query.
const maxCalendarDays = 366

type CreateLeaveInput struct {
	// UserID is the request owner; zero means the actor.
	UserID        uint
	Type          models.LeaveType `validate:"required,oneof=ANNUAL_LEAVE SICK_LEAVE HOME_OFFICE UNPAID_LEAVE OTHER"`
	StartDate     string           `validate:"required,datetime=2006-01-02"`
	EndDate       string           `validate:"required,datetime=2006-01-02"`
	StartTime     *string          `validate:"omitempty,datetime=15:04"`
	EndTime       *string          `validate:"omitempty,datetime=15:04"`
	HalfDayStart  bool
	HalfDayEnd    bool
	Reason        *string `validate:"omitempty,max=1000"`
	AttachmentURL *string `validate:"omitempty,url"`
}

// UpdateLeaveInput carries the fields to change; nil leaves a field as is.
type UpdateLeaveInput struct {
	Type          *models.LeaveType `validate:"omitempty,oneof=ANNUAL_LEAVE SICK_LEAVE HOME_OFFICE UNPAID_LEAVE OTHER"`
	StartDate     *string           `validate:"omitempty,datetime=2006-01-02"`
	EndDate       *string           `validate:"omitempty,datetime=2006-01-02"`
	StartTime     *string           `validate:"omitempty,datetime=15:04"`
	EndTime       *string           `validate:"omitempty,datetime=15:04"`
	HalfDayStart  *bool
	HalfDayEnd    *bool
	Reason        *string `validate:"omitempty,max=1000"`
	AttachmentURL *string `validate:"omitempty,url"`

	// ClearTimes turns a timed request back into whole days.
	ClearTimes bool
}

// ListLeavesFilter narrows ListForUser. Zero values mean no filter.
type ListLeavesFilter struct {
	Year   int
	Status models.LeaveStatus
}

// CalendarEvent is a leave shown on the calendar, already redacted for the
// viewer.
type CalendarEvent struct {
	Leave     models.LeaveRequest
	OwnerName string
}

type CalendarView struct {
	From     string
	To       string
	Events   []CalendarEvent
	Holidays []models.Holiday
}

type LeaveConfig struct {
	// AllowManagerBackdate lets managers and admins create or move requests
	// into the past when acting for someone else.
	AllowManagerBackdate bool
	Now                  func() time.Time
}

type LeaveService struct {
	store                *repository.Store
	audit                *AuditService
	notifier             *NotificationService
	locks                *KeyedLocker
	logger               *logrus.Logger
	allowManagerBackdate bool
	now                  func() time.Time
}

func NewLeaveService(
	store *repository.Store,
	audit *AuditService,
	notifier *NotificationService,
	logger *logrus.Logger,
	cfg LeaveConfig,
) *LeaveService {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &LeaveService{
		store:                store,
		audit:                audit,
		notifier:             notifier,
		locks:                NewKeyedLocker(),
		logger:               logger,
		allowManagerBackdate: cfg.AllowManagerBackdate,
		now:                  now,
	}
}

// Create stores a new DRAFT request for the actor or, for managers, for a
// member of their team.
func (s *LeaveService) Create(ctx context.Context, actor policy.Actor, input CreateLeaveInput) (req *models.LeaveRequest, err error) {
	defer func() { metrics.RecordTransition("create", err) }()

	if err := validateInput(input); err != nil {
		return nil, err
	}
	startTime, endTime, err := normalizeTimes(input.StartTime, input.EndTime)
	if err != nil {
		return nil, err
	}
	if err := validateRange(input.StartDate, input.EndDate); err != nil {
		return nil, err
	}

	ownerID := input.UserID
	if ownerID == 0 {
		ownerID = actor.UserID
	}

	var notices []Notice
	err = s.inLock(ctx, ownerID, func(tx *repository.Store, owner *models.User) error {
		if owner.ID != actor.UserID {
			if err := policy.RequireManage(actor, owner.TeamID); err != nil {
				return err
			}
		}
		if !owner.IsActive {
			return apperr.FailedPrecondition(apperr.CodeInactiveUser, "user %s is inactive", owner.FullName())
		}
		if err := s.checkNotInPast(input.StartDate, actor, owner.ID); err != nil {
			return err
		}

		req = &models.LeaveRequest{
			UserID:        owner.ID,
			Type:          input.Type,
			StartDate:     input.StartDate,
			EndDate:       input.EndDate,
			StartTime:     startTime,
			EndTime:       endTime,
			HalfDayStart:  input.HalfDayStart,
			HalfDayEnd:    input.HalfDayEnd,
			Status:        models.StatusDraft,
			Reason:        input.Reason,
			AttachmentURL: input.AttachmentURL,
		}

		var err error
		if req.ComputedHours, err = computeHours(ctx, tx, req); err != nil {
			return err
		}
		if err := checkOverlap(ctx, tx, req); err != nil {
			return err
		}
		if err := ensureBalance(ctx, tx, owner, req); err != nil {
			return err
		}
		if err := tx.Leaves.Create(ctx, req); err != nil {
			return fmt.Errorf("create leave request: %w", err)
		}

		s.audit.Record(ctx, tx, leaveAudit(actor, req, "create", nil, *req))

		if owner.ID != actor.UserID {
			notices = append(notices, leaveNotice(owner.ID, req, models.NotifyLeaveCreatedOnBehalf, "created",
				fmt.Sprintf("A leave request was created for you: %s", describeLeave(req))))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"leave_id": req.ID,
		"user_id":  req.UserID,
		"actor_id": actor.UserID,
		"hours":    req.ComputedHours,
	}).Info("Leave request created")

	s.notifier.Notify(ctx, notices...)
	return req, nil
}

// Submit moves a DRAFT request to PENDING and notifies the team's managers.
func (s *LeaveService) Submit(ctx context.Context, actor policy.Actor, id uint) (req *models.LeaveRequest, err error) {
	defer func() { metrics.RecordTransition("submit", err) }()

	return s.mutate(ctx, actor, "submit", id, func(tx *repository.Store, req *models.LeaveRequest, owner *models.User) ([]Notice, error) {
		if err := requireOwnerOrManager(actor, owner); err != nil {
			return nil, err
		}
		if req.Status != models.StatusDraft {
			return nil, invalidTransition("submit", req.Status)
		}
		if err := checkOverlap(ctx, tx, req); err != nil {
			return nil, err
		}

		req.Status = models.StatusPending

		managers, err := managerRecipients(ctx, tx, owner, actor.UserID)
		if err != nil {
			return nil, err
		}
		text := fmt.Sprintf("%s submitted a leave request: %s", owner.FullName(), describeLeave(req))
		notices := make([]Notice, 0, len(managers))
		for _, m := range managers {
			n := leaveNotice(m.ID, req, models.NotifyLeaveSubmitted, "submitted", text)
			n.Buttons = []telegram.Button{{Text: "Approve", Data: fmt.Sprintf("approve_leave_%d", req.ID)}}
			notices = append(notices, n)
		}
		return notices, nil
	})
}

// Approve moves a PENDING request to APPROVED after re-checking overlap,
// team capacity and balance.
func (s *LeaveService) Approve(ctx context.Context, actor policy.Actor, id uint, comment string) (req *models.LeaveRequest, err error) {
	defer func() { metrics.RecordTransition("approve", err) }()

	if err := policy.RequireManager(actor.Role); err != nil {
		return nil, err
	}

	return s.mutate(ctx, actor, "approve", id, func(tx *repository.Store, req *models.LeaveRequest, owner *models.User) ([]Notice, error) {
		if err := policy.RequireManage(actor, owner.TeamID); err != nil {
			return nil, err
		}
		if req.Status != models.StatusPending {
			return nil, invalidTransition("approve", req.Status)
		}
		if err := checkOverlap(ctx, tx, req); err != nil {
			return nil, err
		}
		if err := checkCapacity(ctx, tx, req, owner); err != nil {
			return nil, err
		}
		if err := ensureBalance(ctx, tx, owner, req); err != nil {
			return nil, err
		}

		now := s.now()
		approver := actor.UserID
		req.Status = models.StatusApproved
		req.ApprovedBy = &approver
		req.ApprovedAt = &now
		if c := strings.TrimSpace(comment); c != "" {
			req.ManagerComment = &c
		}

		text := fmt.Sprintf("Your leave request was approved: %s", describeLeave(req))
		return ownerNotice(actor, owner, req, models.NotifyLeaveApproved, "approved", text), nil
	})
}

// Reject moves a PENDING request to REJECTED; the comment is mandatory.
func (s *LeaveService) Reject(ctx context.Context, actor policy.Actor, id uint, comment string) (req *models.LeaveRequest, err error) {
	defer func() { metrics.RecordTransition("reject", err) }()

	if err := policy.RequireManager(actor.Role); err != nil {
		return nil, err
	}
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return nil, apperr.Validation("comment is required to reject a request")
	}
	if len(comment) > 1000 {
		return nil, apperr.Validation("comment must be at most 1000 characters")
	}

	return s.mutate(ctx, actor, "reject", id, func(tx *repository.Store, req *models.LeaveRequest, owner *models.User) ([]Notice, error) {
		if err := policy.RequireManage(actor, owner.TeamID); err != nil {
			return nil, err
		}
		if req.Status != models.StatusPending {
			return nil, invalidTransition("reject", req.Status)
		}

		req.Status = models.StatusRejected
		req.ManagerComment = &comment

		text := fmt.Sprintf("Your leave request was rejected: %s\nComment: %s", describeLeave(req), comment)
		return ownerNotice(actor, owner, req, models.NotifyLeaveRejected, "rejected", text), nil
	})
}

// Update edits a request while the edit policy allows it. Hours are
// recomputed from scratch whenever a date, time or half-day field changes.
func (s *LeaveService) Update(ctx context.Context, actor policy.Actor, id uint, input UpdateLeaveInput) (req *models.LeaveRequest, err error) {
	defer func() { metrics.RecordTransition("update", err) }()

	if err := validateInput(input); err != nil {
		return nil, err
	}

	return s.mutate(ctx, actor, "update", id, func(tx *repository.Store, req *models.LeaveRequest, owner *models.User) ([]Notice, error) {
		sameTeam := policy.SameTeam(actor.TeamID, owner.TeamID)
		if !policy.CanEditRequest(req.UserID, req.Status, actor, sameTeam) {
			return nil, apperr.PermissionDenied("you cannot edit this request")
		}
		if req.Status.IsTerminal() {
			return nil, apperr.FailedPrecondition(apperr.CodeInvalidTransition, "cannot edit a %s request", req.Status)
		}

		scheduleChanged := applyUpdate(req, input)
		startTime, endTime, err := normalizeTimes(req.StartTime, req.EndTime)
		if err != nil {
			return nil, err
		}
		req.StartTime, req.EndTime = startTime, endTime

		if scheduleChanged {
			if err := validateRange(req.StartDate, req.EndDate); err != nil {
				return nil, err
			}
			if err := s.checkNotInPast(req.StartDate, actor, owner.ID); err != nil {
				return nil, err
			}
			if req.ComputedHours, err = computeHours(ctx, tx, req); err != nil {
				return nil, err
			}
			if err := checkOverlap(ctx, tx, req); err != nil {
				return nil, err
			}
			if req.Status == models.StatusApproved {
				if err := checkCapacity(ctx, tx, req, owner); err != nil {
					return nil, err
				}
			}
		}
		if err := ensureBalance(ctx, tx, owner, req); err != nil {
			return nil, err
		}

		if actor.UserID == owner.ID {
			return nil, nil
		}
		text := fmt.Sprintf("Your leave request was changed by a manager: %s", describeLeave(req))
		return []Notice{{
			UserID:  owner.ID,
			Type:    models.NotifyLeaveUpdatedByOther,
			Payload: leavePayload(req),
			Text:    text,
		}}, nil
	})
}

// Cancel moves a DRAFT, PENDING or APPROVED request to CANCELLED.
func (s *LeaveService) Cancel(ctx context.Context, actor policy.Actor, id uint) (req *models.LeaveRequest, err error) {
	defer func() { metrics.RecordTransition("cancel", err) }()

	return s.mutate(ctx, actor, "cancel", id, func(tx *repository.Store, req *models.LeaveRequest, owner *models.User) ([]Notice, error) {
		if err := requireOwnerOrManager(actor, owner); err != nil {
			return nil, err
		}
		switch req.Status {
		case models.StatusCancelled:
			return nil, apperr.FailedPrecondition(apperr.CodeInvalidTransition, "request is already cancelled")
		case models.StatusRejected:
			return nil, invalidTransition("cancel", req.Status)
		}

		req.Status = models.StatusCancelled

		managers, err := managerRecipients(ctx, tx, owner, actor.UserID)
		if err != nil {
			return nil, err
		}
		text := fmt.Sprintf("Leave request of %s was cancelled: %s", owner.FullName(), describeLeave(req))
		notices := make([]Notice, 0, len(managers)+1)
		for _, m := range managers {
			notices = append(notices, leaveNotice(m.ID, req, models.NotifyLeaveCancelled, "cancelled", text))
		}
		notices = append(notices, ownerNotice(actor, owner, req, models.NotifyLeaveCancelled, "cancelled",
			fmt.Sprintf("Your leave request was cancelled: %s", describeLeave(req)))...)
		return notices, nil
	})
}

// Delete hard-removes a request. Only managers in scope and admins may do
// this; employees cancel instead.
func (s *LeaveService) Delete(ctx context.Context, actor policy.Actor, id uint) (err error) {
	defer func() { metrics.RecordTransition("delete", err) }()

	if err := policy.RequireManager(actor.Role); err != nil {
		return err
	}

	req, err := s.store.Leaves.GetByID(ctx, id)
	if err != nil {
		return err
	}

	err = s.inLock(ctx, req.UserID, func(tx *repository.Store, owner *models.User) error {
		if err := policy.RequireManage(actor, owner.TeamID); err != nil {
			return err
		}
		current, err := tx.Leaves.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.Leaves.Delete(ctx, id); err != nil {
			return err
		}
		if err := refreshUsage(ctx, tx, current.UserID, current.Year()); err != nil {
			return err
		}
		s.audit.Record(ctx, tx, leaveAudit(actor, current, "delete", *current, nil))
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"leave_id": id,
		"actor_id": actor.UserID,
	}).Info("Leave request deleted")
	return nil
}

// Get returns a request the actor may access.
func (s *LeaveService) Get(ctx context.Context, actor policy.Actor, id uint) (*models.LeaveRequest, error) {
	req, err := s.store.Leaves.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	owner, err := s.store.Users.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if err := policy.RequireAccessUser(actor, owner.ID, owner.TeamID); err != nil {
		return nil, err
	}
	return req, nil
}

// ListForUser returns a user's requests ordered by start date.
func (s *LeaveService) ListForUser(ctx context.Context, actor policy.Actor, userID uint, filter ListLeavesFilter) ([]models.LeaveRequest, error) {
	owner, err := s.store.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := policy.RequireAccessUser(actor, owner.ID, owner.TeamID); err != nil {
		return nil, err
	}

	query := repository.LeaveFilter{UserID: &owner.ID}
	if filter.Year > 0 {
		query.From = fmt.Sprintf("%04d-01-01", filter.Year)
		query.To = fmt.Sprintf("%04d-12-31", filter.Year)
	}
	if filter.Status != "" {
		query.Statuses = []models.LeaveStatus{filter.Status}
	}
	return s.store.Leaves.List(ctx, query)
}

// ListPending returns requests awaiting a decision by actor.
func (s *LeaveService) ListPending(ctx context.Context, actor policy.Actor) ([]models.LeaveRequest, error) {
	if err := policy.RequireManager(actor.Role); err != nil {
		return nil, err
	}

	query := repository.LeaveFilter{Statuses: []models.LeaveStatus{models.StatusPending}}
	if !policy.IsAdmin(actor.Role) {
		if actor.TeamID == nil {
			return []models.LeaveRequest{}, nil
		}
		query.TeamID = actor.TeamID
	}
	return s.store.Leaves.List(ctx, query)
}

// Calendar returns booked leave and active holidays in [from, to] visible
// to actor. Private fields are redacted per viewer.
func (s *LeaveService) Calendar(ctx context.Context, actor policy.Actor, from, to string) (*CalendarView, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	start, _ := calendar.ParseDate(from)
	end, _ := calendar.ParseDate(to)
	if end.Sub(start) > maxCalendarDays*24*time.Hour {
		return nil, apperr.Validation("calendar range must not exceed %d days", maxCalendarDays)
	}

	settings, err := currentSettings(ctx, s.store)
	if err != nil {
		return nil, err
	}
	scope := policy.CalendarScopeFor(actor, settings.ShowTeamCalendarForEmployees)

	base := repository.LeaveFilter{Statuses: models.BookedStatuses, From: from, To: to}
	var leaves []models.LeaveRequest
	if scope.All {
		if leaves, err = s.store.Leaves.List(ctx, base); err != nil {
			return nil, err
		}
	} else {
		own := base
		own.UserID = &actor.UserID
		if leaves, err = s.store.Leaves.List(ctx, own); err != nil {
			return nil, err
		}
		if scope.TeamID != nil {
			team := base
			team.TeamID = scope.TeamID
			teamLeaves, err := s.store.Leaves.List(ctx, team)
			if err != nil {
				return nil, err
			}
			leaves = mergeLeaves(leaves, teamLeaves)
		}
	}

	ownerIDs := make([]uint, 0, len(leaves))
	for _, l := range leaves {
		ownerIDs = append(ownerIDs, l.UserID)
	}
	owners, err := s.store.Users.GetByIDs(ctx, ownerIDs)
	if err != nil {
		return nil, err
	}

	view := &CalendarView{From: from, To: to, Events: make([]CalendarEvent, 0, len(leaves))}
	for _, l := range leaves {
		owner := owners[l.UserID]
		view.Events = append(view.Events, CalendarEvent{
			Leave:     policy.RedactLeave(actor, l, owner.TeamID),
			OwnerName: owner.FullName(),
		})
	}

	if view.Holidays, err = s.store.Holidays.ActiveBetween(ctx, from, to); err != nil {
		return nil, err
	}
	return view, nil
}

// mutation changes req in place inside the locked transaction and returns
// the notices to send after commit.
type mutation func(tx *repository.Store, req *models.LeaveRequest, owner *models.User) ([]Notice, error)

func (s *LeaveService) mutate(ctx context.Context, actor policy.Actor, action string, id uint, fn mutation) (*models.LeaveRequest, error) {
	current, err := s.store.Leaves.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var (
		req     *models.LeaveRequest
		notices []Notice
	)
	err = s.inLock(ctx, current.UserID, func(tx *repository.Store, owner *models.User) error {
		var err error
		if req, err = tx.Leaves.GetByID(ctx, id); err != nil {
			return err
		}

		before := *req
		if notices, err = fn(tx, req, owner); err != nil {
			return err
		}
		if err := tx.Leaves.Update(ctx, req); err != nil {
			return fmt.Errorf("update leave request: %w", err)
		}
		if err := refreshUsage(ctx, tx, req.UserID, before.Year(), req.Year()); err != nil {
			return err
		}

		s.audit.Record(ctx, tx, leaveAudit(actor, req, action, before, *req))
		return nil
	})
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"leave_id": id,
			"actor_id": actor.UserID,
			"action":   action,
		}).WithError(err).Debug("Leave transition refused")
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"leave_id": req.ID,
		"actor_id": actor.UserID,
		"action":   action,
		"status":   req.Status,
	}).Info("Leave request changed")

	s.notifier.Notify(ctx, notices...)
	return req, nil
}

// maxLockAttempts bounds retries when the owner moves teams between the
// key lookup and the lock.
const maxLockAttempts = 3

var errLockKeyChanged = errors.New("lock key changed")

// inLock runs fn in one transaction while holding the owner's scope lock
// in-process and, where supported, in the database. fn gets the owner as
// read under the lock.
func (s *LeaveService) inLock(ctx context.Context, ownerID uint, fn func(tx *repository.Store, owner *models.User) error) error {
	for attempt := 1; ; attempt++ {
		owner, err := s.store.Users.GetByID(ctx, ownerID)
		if err != nil {
			return err
		}
		key := lockKey(owner)

		err = s.lockedTx(ctx, key, func(tx *repository.Store) error {
			owner, err := tx.Users.GetByID(ctx, ownerID)
			if err != nil {
				return err
			}
			if lockKey(owner) != key {
				return errLockKeyChanged
			}
			return fn(tx, owner)
		})
		if !errors.Is(err, errLockKeyChanged) {
			return err
		}
		if attempt == maxLockAttempts {
			return apperr.Internal("owner changed team while locking", err)
		}
		s.logger.WithFields(logrus.Fields{"user_id": ownerID, "key": key}).Debug("Lock key changed, retrying")
	}
}

func (s *LeaveService) lockedTx(ctx context.Context, key string, fn func(tx *repository.Store) error) error {
	unlock := s.locks.Lock(key)
	defer unlock()

	return s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Lock(ctx, key); err != nil {
			return fmt.Errorf("acquire lock %s: %w", key, err)
		}
		return fn(tx)
	})
}

// lockKey serialises a team's capacity checks; unaffiliated users only
// contend with themselves.
func lockKey(owner *models.User) string {
	if owner.TeamID != nil {
		return fmt.Sprintf("team:%d", *owner.TeamID)
	}
	return fmt.Sprintf("user:%d", owner.ID)
}

func (s *LeaveService) checkNotInPast(startDate string, actor policy.Actor, ownerID uint) error {
	if startDate >= calendar.Today(s.now()) {
		return nil
	}
	if s.allowManagerBackdate && actor.UserID != ownerID && policy.IsManager(actor.Role) {
		return nil
	}
	return apperr.Validation("start date %s is in the past", startDate)
}

func requireOwnerOrManager(actor policy.Actor, owner *models.User) error {
	if actor.UserID == owner.ID {
		return nil
	}
	return policy.RequireManage(actor, owner.TeamID)
}

func invalidTransition(action string, status models.LeaveStatus) error {
	return apperr.FailedPrecondition(apperr.CodeInvalidTransition, "cannot %s a %s request", action, status)
}

func validateRange(startDate, endDate string) error {
	if _, err := calendar.ParseDate(startDate); err != nil {
		return err
	}
	if _, err := calendar.ParseDate(endDate); err != nil {
		return err
	}
	if endDate < startDate {
		return apperr.Validation("end date must not be before start date")
	}
	return nil
}

// normalizeTimes drops empty times and requires both or neither.
func normalizeTimes(start, end *string) (*string, *string, error) {
	if start != nil && *start == "" {
		start = nil
	}
	if end != nil && *end == "" {
		end = nil
	}
	if (start == nil) != (end == nil) {
		return nil, nil, apperr.Validation("start time and end time must be given together")
	}
	return start, end, nil
}

// applyUpdate copies input onto req and reports whether a duration input
// changed.
func applyUpdate(req *models.LeaveRequest, input UpdateLeaveInput) bool {
	changed := false
	if input.Type != nil {
		req.Type = *input.Type
	}
	if input.StartDate != nil && *input.StartDate != req.StartDate {
		req.StartDate = *input.StartDate
		changed = true
	}
	if input.EndDate != nil && *input.EndDate != req.EndDate {
		req.EndDate = *input.EndDate
		changed = true
	}
	if input.StartTime != nil && *input.StartTime != deref(req.StartTime) {
		req.StartTime = input.StartTime
		changed = true
	}
	if input.EndTime != nil && *input.EndTime != deref(req.EndTime) {
		req.EndTime = input.EndTime
		changed = true
	}
	if input.ClearTimes && (req.StartTime != nil || req.EndTime != nil) {
		req.StartTime, req.EndTime = nil, nil
		changed = true
	}
	if input.HalfDayStart != nil && *input.HalfDayStart != req.HalfDayStart {
		req.HalfDayStart = *input.HalfDayStart
		changed = true
	}
	if input.HalfDayEnd != nil && *input.HalfDayEnd != req.HalfDayEnd {
		req.HalfDayEnd = *input.HalfDayEnd
		changed = true
	}
	if input.Reason != nil {
		req.Reason = input.Reason
	}
	if input.AttachmentURL != nil {
		req.AttachmentURL = input.AttachmentURL
	}
	return changed
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func spanOf(req *models.LeaveRequest) calendar.Span {
	return calendar.Span{
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		HalfDayStart: req.HalfDayStart,
		HalfDayEnd:   req.HalfDayEnd,
		StartTime:    deref(req.StartTime),
		EndTime:      deref(req.EndTime),
	}
}

func computeHours(ctx context.Context, tx *repository.Store, req *models.LeaveRequest) (float64, error) {
	holidays, err := tx.Holidays.ActiveBetween(ctx, req.StartDate, req.EndDate)
	if err != nil {
		return 0, fmt.Errorf("load holidays: %w", err)
	}
	dates := make([]string, 0, len(holidays))
	for _, h := range holidays {
		dates = append(dates, h.Date)
	}
	return calendar.WorkingHours(spanOf(req), calendar.NewHolidaySet(dates...))
}

func checkOverlap(ctx context.Context, tx *repository.Store, req *models.LeaveRequest) error {
	overlapping, err := tx.Leaves.FindOverlapping(ctx, req.UserID, req.StartDate, req.EndDate, req.ID)
	if err != nil {
		return fmt.Errorf("check overlap: %w", err)
	}
	if len(overlapping) > 0 {
		other := overlapping[0]
		return apperr.FailedPrecondition(apperr.CodeOverlap,
			"request overlaps leave #%d (%s to %s, %s)", other.ID, other.StartDate, other.EndDate, other.Status)
	}
	return nil
}

func checkCapacity(ctx context.Context, tx *repository.Store, req *models.LeaveRequest, owner *models.User) error {
	if owner.TeamID == nil {
		return nil
	}
	team, err := tx.Teams.GetByID(ctx, *owner.TeamID)
	if err != nil {
		return err
	}
	if team.MaxConcurrentLeaves == nil {
		return nil
	}

	count, err := tx.Leaves.CountApprovedInTeam(ctx, team.ID, req.StartDate, req.EndDate, req.ID)
	if err != nil {
		return fmt.Errorf("count team leaves: %w", err)
	}
	if count >= int64(*team.MaxConcurrentLeaves) {
		return apperr.FailedPrecondition(apperr.CodeConcurrentLimit,
			"team %s already has %d approved leave(s) in this period (limit %d)", team.Name, count, *team.MaxConcurrentLeaves)
	}
	return nil
}

func ensureBalance(ctx context.Context, tx *repository.Store, owner *models.User, req *models.LeaveRequest) error {
	if !req.IsAnnual() {
		return nil
	}
	resolver, err := newResolver(ctx, tx)
	if err != nil {
		return err
	}
	return resolver.EnsureBalance(ctx, owner, req.StartDate, req.ComputedHours, req.ID)
}

// storeLedger answers the entitlement resolver from the store.
type storeLedger struct {
	store *repository.Store
}

func (l storeLedger) BalanceOverride(ctx context.Context, userID uint, year int) (*models.LeaveBalance, error) {
	return l.store.Balances.Get(ctx, userID, year)
}

func (l storeLedger) BookedHours(ctx context.Context, userID uint, year int, excludeRequestID uint) (float64, error) {
	return l.store.Leaves.BookedHours(ctx, userID, year, excludeRequestID)
}

func newResolver(ctx context.Context, store *repository.Store) (*entitlement.Resolver, error) {
	settings, err := currentSettings(ctx, store)
	if err != nil {
		return nil, err
	}
	return entitlement.NewResolver(storeLedger{store: store}, settings), nil
}

// refreshUsage keeps usedHours on override rows in step with bookings.
func refreshUsage(ctx context.Context, tx *repository.Store, userID uint, years ...int) error {
	seen := make(map[int]bool, len(years))
	for _, year := range years {
		if year == 0 || seen[year] {
			continue
		}
		seen[year] = true

		balance, err := tx.Balances.Get(ctx, userID, year)
		if err != nil {
			return err
		}
		if balance == nil {
			continue
		}
		used, err := tx.Leaves.BookedHours(ctx, userID, year, 0)
		if err != nil {
			return err
		}
		refreshed := &models.LeaveBalance{
			UserID:         userID,
			Year:           year,
			AllowanceHours: balance.AllowanceHours,
			UsedHours:      calendar.Round2(used),
		}
		if err := tx.Balances.Upsert(ctx, refreshed); err != nil {
			return fmt.Errorf("refresh used hours: %w", err)
		}
	}
	return nil
}

// managerRecipients lists active managers who should hear about owner's
// requests: the team's managers, or every manager and admin for users
// without a team. Admins stand in when a team has no manager.
func managerRecipients(ctx context.Context, tx *repository.Store, owner *models.User, actorID uint) ([]models.User, error) {
	var (
		users []models.User
		err   error
	)
	if owner.TeamID != nil {
		users, err = tx.Users.List(ctx, repository.UserFilter{
			TeamID:     owner.TeamID,
			Roles:      []models.Role{models.RoleManager},
			ActiveOnly: true,
		})
		if err == nil && len(users) == 0 {
			users, err = tx.Users.List(ctx, repository.UserFilter{
				Roles:      []models.Role{models.RoleAdmin},
				ActiveOnly: true,
			})
		}
	} else {
		users, err = tx.Users.List(ctx, repository.UserFilter{
			Roles:      []models.Role{models.RoleManager, models.RoleAdmin},
			ActiveOnly: true,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("load managers: %w", err)
	}

	recipients := users[:0]
	for _, u := range users {
		if u.ID != owner.ID && u.ID != actorID {
			recipients = append(recipients, u)
		}
	}
	return recipients, nil
}

func mergeLeaves(a, b []models.LeaveRequest) []models.LeaveRequest {
	seen := make(map[uint]struct{}, len(a))
	for _, l := range a {
		seen[l.ID] = struct{}{}
	}
	for _, l := range b {
		if _, ok := seen[l.ID]; !ok {
			a = append(a, l)
		}
	}
	sort.SliceStable(a, func(i, j int) bool {
		if a[i].StartDate != a[j].StartDate {
			return a[i].StartDate < a[j].StartDate
		}
		return a[i].ID < a[j].ID
	})
	return a
}

func leaveAudit(actor policy.Actor, req *models.LeaveRequest, action string, before, after any) AuditEntry {
	owner := req.UserID
	return AuditEntry{
		ActorID:       actor.UserID,
		EntityType:    models.EntityLeaveRequest,
		EntityID:      req.ID,
		SubjectUserID: &owner,
		Action:        action,
		Before:        before,
		After:         after,
	}
}

func leavePayload(req *models.LeaveRequest) map[string]any {
	return map[string]any{
		"leave_id":   req.ID,
		"type":       req.Type,
		"start_date": req.StartDate,
		"end_date":   req.EndDate,
		"status":     req.Status,
		"hours":      req.ComputedHours,
	}
}

func leaveNotice(userID uint, req *models.LeaveRequest, kind, event, text string) Notice {
	return Notice{
		UserID:    userID,
		Type:      kind,
		Payload:   leavePayload(req),
		DedupeKey: fmt.Sprintf("leave:%d:%s", req.ID, event),
		Text:      text,
	}
}

// ownerNotice tells the owner about a change somebody else made.
func ownerNotice(actor policy.Actor, owner *models.User, req *models.LeaveRequest, kind, event, text string) []Notice {
	if actor.UserID == owner.ID {
		return nil
	}
	return []Notice{leaveNotice(owner.ID, req, kind, event, text)}
}

func describeLeave(req *models.LeaveRequest) string {
	period := req.StartDate
	if req.EndDate != req.StartDate {
		period = req.StartDate + " to " + req.EndDate
	}
	if req.StartTime != nil && req.EndTime != nil && req.StartDate == req.EndDate {
		period += fmt.Sprintf(" %s-%s", *req.StartTime, *req.EndTime)
	}
	return fmt.Sprintf("#%d %s %s (%.2fh, %s)", req.ID, req.Type, period, req.ComputedHours, req.Status)
}
