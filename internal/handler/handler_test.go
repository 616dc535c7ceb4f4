package handler

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"leave-bot/internal/config"
	"leave-bot/internal/database"
	"leave-bot/internal/models"
	"leave-bot/internal/repository"
	"leave-bot/internal/service"
	"leave-bot/pkg/telegram"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Monday 2025-03-03.
var handlerNow = time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)

type sentMessage struct {
	ChatID  int64
	Text    string
	Buttons []telegram.Button
}

type fakeMessenger struct {
	mu       sync.Mutex
	sent     []sentMessage
	answered []string
	cleared  []int
}

func (m *fakeMessenger) Send(chatID int64, text string, buttons ...telegram.Button) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{ChatID: chatID, Text: text, Buttons: buttons})
	return nil
}

func (m *fakeMessenger) AnswerCallback(callbackID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answered = append(m.answered, callbackID)
	return nil
}

func (m *fakeMessenger) ClearKeyboard(_ int64, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared = append(m.cleared, messageID)
	return nil
}

// last returns the most recent message sent to chatID.
func (m *fakeMessenger) last(t *testing.T, chatID int64) sentMessage {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].ChatID == chatID {
			return m.sent[i]
		}
	}
	t.Fatalf("no message sent to chat %d", chatID)
	return sentMessage{}
}

func (m *fakeMessenger) count(chatID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sent {
		if s.ChatID == chatID {
			n++
		}
	}
	return n
}

type botFixture struct {
	ctx       context.Context
	store     *repository.Store
	messenger *fakeMessenger
	handler   *Handler
}

func newBotFixture(t *testing.T, cfg *config.BotConfig) *botFixture {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	db, err := database.Open(database.DriverSQLite, "file:"+uuid.NewString()+"?mode=memory&cache=shared", log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	store, err := repository.NewStore(db)
	require.NoError(t, err)

	if cfg == nil {
		cfg = &config.BotConfig{RateLimitPerSecond: 100, RateLimitBurst: 100}
	}

	messenger := &fakeMessenger{}
	audit := service.NewAuditService(store, log)
	notifications := service.NewNotificationService(store, messenger, log)
	settings := service.NewSettingsService(store, audit, log, models.Settings{})
	services := Services{
		Users:         service.NewUserService(store, audit, log),
		Teams:         service.NewTeamService(store, audit, log),
		Holidays:      service.NewHolidayService(store, audit, log),
		Balances:      service.NewBalanceService(store, audit, log),
		Settings:      settings,
		Audit:         audit,
		Notifications: notifications,
		Leaves: service.NewLeaveService(store, audit, notifications, log, service.LeaveConfig{
			AllowManagerBackdate: true,
			Now:                  func() time.Time { return handlerNow },
		}),
	}

	ctx := context.Background()
	_, err = settings.Init(ctx)
	require.NoError(t, err)

	h := NewHandler(messenger, services, cfg, log)
	h.now = func() time.Time { return handlerNow }

	return &botFixture{ctx: ctx, store: store, messenger: messenger, handler: h}
}

func (f *botFixture) addUser(t *testing.T, chatID int64, role models.Role, teamID *uint) *models.User {
	t.Helper()
	user := &models.User{ChatID: chatID, FirstName: strings.ToLower(string(role)), Role: role, TeamID: teamID, IsActive: true}
	require.NoError(t, f.store.Users.Create(f.ctx, user))
	return user
}

// send delivers a text message as if typed in chatID.
func (f *botFixture) send(chatID int64, text string) {
	message := &tgbotapi.Message{
		MessageID: 1,
		Chat:      &tgbotapi.Chat{ID: chatID},
		From:      &tgbotapi.User{ID: chatID, UserName: fmt.Sprintf("user%d", chatID)},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		command, _, _ := strings.Cut(text, " ")
		message.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(command)}}
	}
	f.handler.HandleUpdate(f.ctx, tgbotapi.Update{Message: message})
}

func (f *botFixture) press(chatID int64, messageID int, data string) {
	f.handler.HandleUpdate(f.ctx, tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   fmt.Sprintf("cb-%d-%d", chatID, messageID),
		From: &tgbotapi.User{ID: chatID},
		Message: &tgbotapi.Message{
			MessageID: messageID,
			Chat:      &tgbotapi.Chat{ID: chatID},
		},
		Data: data,
	}})
}

func TestHandler_RequiresProfile(t *testing.T) {
	f := newBotFixture(t, nil)

	f.send(10, "/leave annual 10.03.2025")
	assert.Contains(t, f.messenger.last(t, 10).Text, "/createprofile")

	f.send(10, "/start")
	assert.Contains(t, f.messenger.last(t, 10).Text, "Welcome")

	f.send(10, "/nosuchcommand")
	assert.Contains(t, f.messenger.last(t, 10).Text, "Unknown command")

	f.send(10, "hello")
	assert.Contains(t, f.messenger.last(t, 10).Text, "/help")
}

func TestHandler_CreateProfileDialogue(t *testing.T) {
	f := newBotFixture(t, nil)

	f.send(20, "/createprofile")
	assert.Contains(t, f.messenger.last(t, 20).Text, "Step 1 of 2")

	f.send(20, "Anna")
	assert.Contains(t, f.messenger.last(t, 20).Text, "First name saved: Anna")

	f.send(20, "-")
	assert.Contains(t, f.messenger.last(t, 20).Text, "Profile created")

	user, err := f.store.Users.GetByChatID(f.ctx, 20)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "Anna", user.FirstName)
	assert.Empty(t, user.LastName)
	assert.Equal(t, "user20", user.Username)
	assert.Equal(t, models.RoleEmployee, user.Role)

	f.send(20, "/createprofile")
	assert.Contains(t, f.messenger.last(t, 20).Text, "already have a profile")

	f.send(20, "/myprofile")
	text := f.messenger.last(t, 20).Text
	assert.Contains(t, text, "Anna")
	assert.Contains(t, text, "Annual leave 2025")
}

func TestHandler_CancelDialogue(t *testing.T) {
	f := newBotFixture(t, nil)

	f.send(21, "/createprofile")
	f.send(21, "/cancel")
	assert.Contains(t, f.messenger.last(t, 21).Text, "Cancelled")

	user, err := f.store.Users.GetByChatID(f.ctx, 21)
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestHandler_LeaveApprovalFlow(t *testing.T) {
	f := newBotFixture(t, nil)
	team := &models.Team{Name: "Platform"}
	require.NoError(t, f.store.Teams.Create(f.ctx, team))
	manager := f.addUser(t, 30, models.RoleManager, &team.ID)
	employee := f.addUser(t, 31, models.RoleEmployee, &team.ID)

	f.send(31, "/leave annual 10.03.2025 11.03.2025 family trip")
	created := f.messenger.last(t, 31)
	assert.Contains(t, created.Text, "Draft created")
	assert.Contains(t, created.Text, "16h (2d)")
	require.Len(t, created.Buttons, 1)

	leaves, err := f.store.Leaves.List(f.ctx, repository.LeaveFilter{UserID: &employee.ID})
	require.NoError(t, err)
	require.Len(t, leaves, 1)
	leave := leaves[0]
	assert.Equal(t, models.StatusDraft, leave.Status)
	assert.Equal(t, fmt.Sprintf("submit_leave_%d", leave.ID), created.Buttons[0].Data)

	f.press(31, 5, created.Buttons[0].Data)
	assert.Contains(t, f.messenger.last(t, 31).Text, "Sent for approval")
	assert.Contains(t, f.messenger.answered, "cb-31-5")
	assert.Contains(t, f.messenger.cleared, 5)

	notice := f.messenger.last(t, manager.ChatID)
	assert.Contains(t, notice.Text, "submitted a leave request")
	require.Len(t, notice.Buttons, 1)
	assert.Equal(t, fmt.Sprintf("approve_leave_%d", leave.ID), notice.Buttons[0].Data)

	f.send(30, "/pending")
	assert.Contains(t, f.messenger.last(t, 30).Text, fmt.Sprintf("#%d", leave.ID))

	f.press(30, 6, notice.Buttons[0].Data)
	assert.Contains(t, f.messenger.last(t, 30).Text, "Approved")
	assert.Contains(t, f.messenger.last(t, 31).Text, "approved")

	stored, err := f.store.Leaves.GetByID(f.ctx, leave.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, stored.Status)

	f.send(31, fmt.Sprintf("/leaveinfo %d", leave.ID))
	assert.Contains(t, f.messenger.last(t, 31).Text, "family trip")

	f.send(31, "/balance")
	assert.Contains(t, f.messenger.last(t, 31).Text, "Booked: 16h (2d)")

	f.send(31, "/myleaves 2025 approved")
	assert.Contains(t, f.messenger.last(t, 31).Text, fmt.Sprintf("#%d", leave.ID))

	f.send(31, "/calendar 3 2025")
	assert.Contains(t, f.messenger.last(t, 31).Text, "2025-03-10 → 2025-03-11")

	f.send(31, "/notifications")
	assert.Contains(t, f.messenger.last(t, 31).Text, models.NotifyLeaveApproved)
}

func TestHandler_RejectAndPermissions(t *testing.T) {
	f := newBotFixture(t, nil)
	team := &models.Team{Name: "Platform"}
	require.NoError(t, f.store.Teams.Create(f.ctx, team))
	f.addUser(t, 40, models.RoleManager, &team.ID)
	employee := f.addUser(t, 41, models.RoleEmployee, &team.ID)

	f.send(41, "/leave home 12.03.2025")
	f.send(41, "/submit 1")
	assert.Contains(t, f.messenger.last(t, 41).Text, "Sent for approval")

	f.send(41, "/approve 1")
	assert.Contains(t, f.messenger.last(t, 41).Text, "⛔")

	f.send(40, "/reject 1")
	assert.Contains(t, f.messenger.last(t, 40).Text, "comment is required")

	f.send(40, "/reject 1 team offsite that day")
	assert.Contains(t, f.messenger.last(t, 40).Text, "Rejected")

	stored, err := f.store.Leaves.GetByID(f.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, stored.Status)
	assert.Equal(t, employee.ID, stored.UserID)

	f.send(41, "/cancel 1")
	assert.Contains(t, f.messenger.last(t, 41).Text, "⚠️")
}

func TestHandler_DeleteNeedsManagerAndConfirmation(t *testing.T) {
	f := newBotFixture(t, nil)
	team := &models.Team{Name: "Platform"}
	require.NoError(t, f.store.Teams.Create(f.ctx, team))
	f.addUser(t, 50, models.RoleManager, &team.ID)
	f.addUser(t, 51, models.RoleEmployee, &team.ID)

	f.send(51, "/leave annual 10.03.2025")
	f.send(51, "/submit 1")
	assert.Contains(t, f.messenger.last(t, 51).Text, "Sent for approval")

	f.send(51, "/deleteleave 1")
	refused := f.messenger.last(t, 51)
	assert.Contains(t, refused.Text, "⛔")
	assert.Empty(t, refused.Buttons)

	f.send(50, "/deleteleave 1")
	confirm := f.messenger.last(t, 50)
	assert.Contains(t, confirm.Text, "Delete request #1")
	require.Len(t, confirm.Buttons, 2)

	f.press(50, 7, confirm.Buttons[1].Data)
	assert.Contains(t, f.messenger.last(t, 50).Text, "Kept")
	stored, err := f.store.Leaves.GetByID(f.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)

	f.press(50, 8, confirm.Buttons[0].Data)
	assert.Contains(t, f.messenger.last(t, 50).Text, "Request #1 deleted")
	_, err = f.store.Leaves.GetByID(f.ctx, 1)
	assert.Error(t, err)
}

func TestHandler_InsufficientBalance(t *testing.T) {
	f := newBotFixture(t, nil)
	f.addUser(t, 60, models.RoleAdmin, nil)
	employee := f.addUser(t, 61, models.RoleEmployee, nil)

	f.send(60, fmt.Sprintf("/setbalance %d 2025 1d", employee.ID))
	assert.Contains(t, f.messenger.last(t, 60).Text, "8h (1d)")

	f.send(61, "/leave annual 10.03.2025 11.03.2025")
	assert.Contains(t, f.messenger.last(t, 61).Text, "Not enough annual leave left: 8h (1d) remaining")

	f.send(61, fmt.Sprintf("/setbalance %d 2025 5d", employee.ID))
	assert.Contains(t, f.messenger.last(t, 61).Text, "⛔")

	f.send(60, fmt.Sprintf("/clearbalance %d 2025", employee.ID))
	assert.Contains(t, f.messenger.last(t, 60).Text, "removed")
}

func TestHandler_AdminCommands(t *testing.T) {
	f := newBotFixture(t, nil)
	f.addUser(t, 70, models.RoleAdmin, nil)
	employee := f.addUser(t, 71, models.RoleEmployee, nil)

	f.send(70, "/addteam limit=2 name=Core Platform")
	assert.Contains(t, f.messenger.last(t, 70).Text, "Core Platform, max 2 away at once")

	f.send(70, "/teams")
	assert.Contains(t, f.messenger.last(t, 70).Text, "#1 Core Platform")

	f.send(70, fmt.Sprintf("/setteam %d 1", employee.ID))
	assert.Contains(t, f.messenger.last(t, 70).Text, "team #1")

	f.send(70, fmt.Sprintf("/setrole %d manager", employee.ID))
	assert.Contains(t, f.messenger.last(t, 70).Text, string(models.RoleManager))

	f.send(70, fmt.Sprintf("/setprofile %d birth=01.05.1990 child=yes allowance=25d email=Emp@Example.com", employee.ID))
	text := f.messenger.last(t, 70).Text
	assert.Contains(t, text, "1990-05-01")
	assert.Contains(t, text, "200h (25d)")
	assert.Contains(t, text, "emp@example.com")

	f.send(70, "/deleteteam 1")
	assert.Contains(t, f.messenger.last(t, 70).Text, "⚠️")

	f.send(70, "/addholiday 12.03.2025 company=yes Founders day")
	assert.Contains(t, f.messenger.last(t, 70).Text, "2025-03-12 Founders day (company)")

	f.send(70, "/toggleholiday 12.03.2025")
	assert.Contains(t, f.messenger.last(t, 70).Text, "(inactive)")

	f.send(70, "/holidays 2025")
	assert.Contains(t, f.messenger.last(t, 70).Text, "Founders day")

	f.send(70, "/removeholiday 12.03.2025")
	assert.Contains(t, f.messenger.last(t, 70).Text, "removed")

	f.send(70, "/setsetting carryoverlimit 5d")
	assert.Contains(t, f.messenger.last(t, 70).Text, "carryoverlimit: 40h (5d)")

	f.send(70, "/setsetting accrual pro_rata")
	assert.Contains(t, f.messenger.last(t, 70).Text, "accrual: PRO_RATA")

	f.send(70, "/setsetting accrual monthly")
	assert.Contains(t, f.messenger.last(t, 70).Text, "❌")

	f.send(70, "/users")
	assert.Contains(t, f.messenger.last(t, 70).Text, "Users (2)")

	f.send(70, fmt.Sprintf("/audit user %d", employee.ID))
	assert.Contains(t, f.messenger.last(t, 70).Text, "user #")

	f.send(71, "/settings")
	assert.Contains(t, f.messenger.last(t, 71).Text, "⛔")

	f.send(70, fmt.Sprintf("/deactivate %d", employee.ID))
	f.send(71, "/myprofile")
	assert.Contains(t, f.messenger.last(t, 71).Text, "🔒")
}

func TestHandler_RateLimit(t *testing.T) {
	f := newBotFixture(t, &config.BotConfig{RateLimitPerSecond: 0.001, RateLimitBurst: 2})

	f.send(80, "/help")
	f.send(80, "/help")
	f.send(80, "/help")

	assert.Equal(t, 2, f.messenger.count(80))

	f.send(81, "/help")
	assert.Equal(t, 1, f.messenger.count(81))
}
