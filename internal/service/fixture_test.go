package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"leave-bot/internal/apperr"
	"leave-bot/internal/database"
	"leave-bot/internal/models"
	"leave-bot/internal/policy"
	"leave-bot/internal/repository"
	"leave-bot/pkg/telegram"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Monday 2025-03-03.
var fixedNow = time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)

type sentMessage struct {
	ChatID  int64
	Text    string
	Buttons []telegram.Button
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (s *fakeSender) Send(chatID int64, text string, buttons ...telegram.Button) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMessage{ChatID: chatID, Text: text, Buttons: buttons})
	return nil
}

func (s *fakeSender) to(chatID int64) []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sentMessage
	for _, m := range s.sent {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

func (s *fakeSender) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = nil
}

type fixture struct {
	ctx    context.Context
	store  *repository.Store
	sender *fakeSender

	audit    *AuditService
	notifier *NotificationService
	settings *SettingsService
	leaves   *LeaveService
	users    *UserService
	teams    *TeamService
	holidays *HolidayService
	balances *BalanceService

	nextChatID int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	db, err := database.Open(database.DriverSQLite, "file:"+uuid.NewString()+"?mode=memory&cache=shared", log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	store, err := repository.NewStore(db)
	require.NoError(t, err)

	f := &fixture{
		ctx:        context.Background(),
		store:      store,
		sender:     &fakeSender{},
		nextChatID: 1000,
	}
	f.audit = NewAuditService(store, log)
	f.notifier = NewNotificationService(store, f.sender, log)
	f.notifier.now = func() time.Time { return fixedNow }
	f.settings = NewSettingsService(store, f.audit, log, models.Settings{AnnualLeaveAccrualPolicy: models.AccrualYearStart})
	f.leaves = NewLeaveService(store, f.audit, f.notifier, log, LeaveConfig{
		AllowManagerBackdate: true,
		Now:                  func() time.Time { return fixedNow },
	})
	f.users = NewUserService(store, f.audit, log)
	f.teams = NewTeamService(store, f.audit, log)
	f.holidays = NewHolidayService(store, f.audit, log)
	f.balances = NewBalanceService(store, f.audit, log)

	_, err = f.settings.Init(f.ctx)
	require.NoError(t, err)
	return f
}

func (f *fixture) team(t *testing.T, name string, limit *int) *models.Team {
	t.Helper()
	team := &models.Team{Name: name, MaxConcurrentLeaves: limit}
	require.NoError(t, f.store.Teams.Create(f.ctx, team))
	return team
}

func (f *fixture) user(t *testing.T, role models.Role, team *models.Team) *models.User {
	t.Helper()
	f.nextChatID++
	user := &models.User{
		ChatID:    f.nextChatID,
		FirstName: string(role),
		Role:      role,
		IsActive:  true,
	}
	if team != nil {
		user.TeamID = &team.ID
	}
	require.NoError(t, f.store.Users.Create(f.ctx, user))
	return user
}

func actorOf(u *models.User) policy.Actor {
	return policy.ActorOf(u)
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func assertKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apperr.KindOf(err), "unexpected error: %v", err)
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, apperr.CodeOf(err), "unexpected error: %v", err)
}

var errSendFailed = errors.New("telegram unavailable")
