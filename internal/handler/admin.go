package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"leave-bot/internal/models"
	"leave-bot/internal/policy"
	"leave-bot/internal/service"
)

var auditEntities = map[string]string{
	"leave":    models.EntityLeaveRequest,
	"user":     models.EntityUser,
	"team":     models.EntityTeam,
	"holiday":  models.EntityHoliday,
	"settings": models.EntitySettings,
	"balance":  models.EntityLeaveBalance,
}

func (h *Handler) listHolidays(ctx context.Context, req request) {
	year, err := parseYear(req.args, h.now())
	if err != nil {
		h.reply(req.chatID, "❌ "+err.Error())
		return
	}

	list, err := h.services.Holidays.List(ctx, year)
	if err != nil {
		h.replyError(req.chatID, err)
		return
	}
	if len(list) == 0 {
		h.reply(req.chatID, fmt.Sprintf("🎉 No holidays for %d.", year))
		return
	}

	lines := []string{fmt.Sprintf("🎉 Holidays %d", year), ""}
	for i := range list {
		lines = append(lines, formatHoliday(&list[i]))
	}
	h.reply(req.chatID, strings.Join(lines, "\n"))
}

func (h *Handler) addHoliday(ctx context.Context, req request) {
	args := splitArgs(req.args)
	if len(args.positional) == 0 {
		h.reply(req.chatID, "❌ Usage: /addholiday <date> [company=yes] <name>")
		return
	}
	date, err := parseDate(args.positional[0], h.now())
	if err != nil {
		h.reply(req.chatID, "❌ "+err.Error())
		return
	}

	name, ok := args.option("name")
	if !ok {
		name = strings.Join(args.positional[1:], " ")
	}
	input := service.HolidayInput{Date: date, Name: name}
	if v, ok := args.option("company"); ok {
		if input.IsCompanyHoliday, err = parseBool(v); err != nil {
			h.reply(req.chatID, "❌ "+err.Error())
			return
		}
	}

	holiday, err := h.services.Holidays.Create(ctx, req.actor, input)
	if err != nil {
		h.replyError(req.chatID, err)
		return
	}
	h.reply(req.chatID, "✅ Holiday added: "+formatHoliday(holiday))
}

func (h *Handler) removeHoliday(ctx context.Context, req request) {
	date, err := parseDate(req.args, h.now())
	if err != nil {
		h.reply(req.chatID, "❌ Usage: /removeholiday <date>")
		return
	}
	if err := h.services.Holidays.DeleteByDate(ctx, req.actor, date); err != nil {
		h.replyError(req.chatID, err)
		return
	}
	h.reply(req.chatID, "🗑 Holiday "+date+" removed.")
}

func (h *Handler) toggleHoliday(ctx context.Context, req request) {
	date, err := parseDate(req.args, h.now())
	if err != nil {
		h.reply(req.chatID, "❌ Usage: /toggleholiday <date>")
		return
	}
	holiday, err := h.services.Holidays.Toggle(ctx, req.actor, date)
	if err != nil {
		h.replyError(req.chatID, err)
		return
	}
	h.reply(req.chatID, "🔁 "+formatHoliday(holiday))
}

func (h *Handler) importHolidays(ctx context.Context, req request) {
	path := req.args
	if path == "" {
		path = h.config.HolidaysFile
	}
	if path == "" {
		h.reply(req.chatID, "❌ Usage: /importholidays <path>\nNo HOLIDAYS_FILE is configured.")
		return
	}

	created, err := h.services.Holidays.Import(ctx, req.actor, path)
	if err != nil {
		h.replyError(req.chatID, err)
		return
	}
	h.reply(req.chatID, fmt.Sprintf("📥 Imported %d new holiday(s) from %s.", created, path))
}

func (h *Handler) listTeams(ctx context.Context, req request) {
	teams, err := h.services.Teams.List(ctx, req.actor)
	if err != nil {
		h.replyError(req.chatID, err)
		return
	}
	if len(teams) == 0 {
		h.reply(req.chatID, "👥 No teams yet. Create one with /addteam.")
		return
	}

	lines := []string{"👥 Teams", ""}
	for i := range teams {
		lines = append(lines, formatTeam(&teams[i]))
	}
	h.reply(req.chatID, strings.Join(lines, "\n"))
}

func (h *Handler) addTeam(ctx context.Context, req request) {
	args := splitArgs(req.args)
	name, ok := args.option("name")
	if !ok {
		name = strings.Join(args.positional, " ")
	}

	input := service.TeamInput{Name: strings.TrimSpace(name)}
	if v, ok := args.option("limit"); ok {
		limit, err := strconv.Atoi(v)
		if err != nil {
			h.reply(req.chatID, "❌ invalid limit "+strconv.Quote(v))
			return
		}
		input.MaxConcurrentLeaves = &limit
	}

	team, err := h.services.Teams.Create(ctx, req.actor, input)
	if err != nil {
		h.replyError(req.chatID, err)
		return
	}
	h.reply(req.chatID, "✅ Team created: "+formatTeam(team))
}

func (h *Handler) editTeam(ctx context.Context, req request) {
	args := splitArgs(req.args)
	if len(args.positional) != 1 || len(args.options) == 0 {
		h.reply(req.chatID, "❌ Usage: /editteam <id> [limit=N|none] [name=<name>]")
		return
	}
	id, err := parseID(args.positional[0])
	if err != nil {
		h.reply(req.chatID, "❌ "+err.Error())
		return
	}

	var input service.UpdateTeamInput
	if v, ok := args.option("name"); ok {
		input.Name = &v
	}
	if v, ok := args.option("limit"); ok {
		if strings.EqualFold(v, "none") {
			input.ClearLimit = true
		} else {
			limit, err := strconv.Atoi(v)
			if err != nil {
				h.reply(req.chatID, "❌ invalid limit "+strconv.Quote(v))
				return
			}
			input.MaxConcurrentLeaves = &limit
		}
	}

	team, err := h.services.Teams.Update(ctx, req.actor, id, input)
	if err != nil {
		h.replyError(req.chatID, err)
		return
	}
	h.reply(req.chatID, "✏️ Team updated: "+formatTeam(team))
}

func (h *Handler) deleteTeam(ctx context.Context, req request) {
	id, ok := h.requireID(req, "/deleteteam <id>")
	if !ok {
		return
	}
	if err := h.services.Teams.Delete(ctx, req.actor, id); err != nil {
		h.replyError(req.chatID, err)
		return
	}
	h.reply(req.chatID, fmt.Sprintf("🗑 Team #%d deleted.", id))
}

func (h *Handler) listUsers(ctx context.Context, req request) {
	users, err := h.services.Users.List(ctx, req.actor)
	if err != nil {
		h.replyError(req.chatID, err)
		return
	}
	if len(users) == 0 {
		h.reply(req.chatID, "👥 No users to show.")
		return
	}

	lines := []string{fmt.Sprintf("👥 Users (%d)", len(users)), ""}
	for i := range users {
		lines = append(lines, formatUserLine(&users[i]))
	}
	h.reply(req.chatID, strings.Join(lines, "\n"))
}

func (h *Handler) setRole(ctx context.Context, req request) {
	parts := strings.Fields(req.args)
	if len(parts) != 2 {
		h.reply(req.chatID, "❌ Usage: /setrole <user id> <employee|manager|admin>")
		return
	}
	id, err := parseID(parts[0])
	if err != nil {
		h.reply(req.chatID, "❌ "+err.Error())
		return
	}

	user, err := h.services.Users.SetRole(ctx, req.actor, id, models.Role(parts[1]))
	if err != nil {
		h.replyError(req.chatID, err)
		return
	}
	h.reply(req.chatID, "✅ "+formatUserLine(user))
}

func (h *Handler) setTeam(ctx context.Context, req request) {
	parts := strings.Fields(req.args)
	if len(parts) != 2 {
		h.reply(req.chatID, "❌ Usage: /setteam <user id> <team id|none>")
		return
	}
	id, err := parseID(parts[0])
	if err != nil {
		h.reply(req.chatID, "❌ "+err.Error())
		return
	}

	var teamID *uint
	if !strings.EqualFold(parts[1], "none") {
		tid, err := parseID(parts[1])
		if err != nil {
			h.reply(req.chatID, "❌ "+err.Error())
			return
		}
		teamID = &tid
	}

	user, err := h.services.Users.SetTeam(ctx, req.actor, id, teamID)
	if err != nil {
		h.replyError(req.chatID, err)
		return
	}
	h.reply(req.chatID, "✅ "+formatUserLine(user))
}

func (h *Handler) setProfile(ctx context.Context, req request) {
	args := splitArgs(req.args)
	if len(args.positional) != 1 || len(args.options) == 0 {
		h.reply(req.chatID, "❌ Usage: /setprofile <user id> [birth=..] [child=yes|no] [start=..] [allowance=5d|40h|none] [email=..|none] [first=..] [last=..]")
		return
	}
	id, err := parseID(args.positional[0])
	if err != nil {
		h.reply(req.chatID, "❌ "+err.Error())
		return
	}

	input, err := h.parseProfile(args)
	if err != nil {
		h.reply(req.chatID, "❌ "+err.Error())
		return
	}

	user, err := h.services.Users.SetProfile(ctx, req.actor, id, input)
	if err != nil {
		h.replyError(req.chatID, err)
		return
	}
	h.reply(req.chatID, "✅ Profile updated.\n\n"+formatUser(user))
}

func (h *Handler) parseProfile(args commandArgs) (service.UpdateProfileInput, error) {
	var input service.UpdateProfileInput
	now := h.now()

	for key, value := range args.options {
		v := value
		switch key {
		case "birth", "start":
			date, err := parseDate(v, now)
			if err != nil {
				return input, err
			}
			if key == "birth" {
				input.BirthDate = &date
			} else {
				input.EmploymentStartDate = &date
			}
		case "child":
			hasChild, err := parseBool(v)
			if err != nil {
				return input, err
			}
			input.HasChild = &hasChild
		case "allowance":
			if strings.EqualFold(v, "none") {
				input.ClearManualAllowance = true
				continue
			}
			hours, err := parseHours(v)
			if err != nil {
				return input, err
			}
			input.ManualLeaveAllowanceHours = &hours
		case "email":
			if strings.EqualFold(v, "none") {
				input.ClearEmail = true
				continue
			}
			input.Email = &v
		case "first":
			input.FirstName = &v
		case "last":
			input.LastName = &v
		default:
			return input, fmt.Errorf("unknown option %q", key)
		}
	}
	return input, nil
}

func (h *Handler) deactivateUser(ctx context.Context, req request) {
	id, ok := h.requireID(req, "/deactivate <user id>")
	if !ok {
		return
	}
	user, err := h.services.Users.Deactivate(ctx, req.actor, id)
	if err != nil {
		h.replyError(req.chatID, err)
		return
	}
	h.reply(req.chatID, "⛔ Deactivated: "+formatUserLine(user))
}

func (h *Handler) activateUser(ctx context.Context, req request) {
	id, ok := h.requireID(req, "/activate <user id>")
	if !ok {
		return
	}
	user, err := h.services.Users.Activate(ctx, req.actor, id)
	if err != nil {
		h.replyError(req.chatID, err)
		return
	}
	h.reply(req.chatID, "✅ Activated: "+formatUserLine(user))
}

func (h *Handler) deleteUser(ctx context.Context, req request) {
	id, ok := h.requireID(req, "/deleteuser <user id>")
	if !ok {
		return
	}
	if err := h.services.Users.Delete(ctx, req.actor, id); err != nil {
		h.replyError(req.chatID, err)
		return
	}
	h.reply(req.chatID, fmt.Sprintf("🗑 User #%d deleted.", id))
}

func (h *Handler) showSettings(ctx context.Context, req request) {
	if err := policy.RequireAdmin(req.actor.Role); err != nil {
		h.replyError(req.chatID, err)
		return
	}
	settings, err := h.services.Settings.Get(ctx)
	if err != nil {
		h.replyError(req.chatID, err)
		return
	}
	h.reply(req.chatID, formatSettings(settings))
}

func (h *Handler) setSetting(ctx context.Context, req request) {
	parts := strings.Fields(req.args)
	if len(parts) != 2 {
		h.reply(req.chatID, "❌ Usage: /setsetting <accrual|carryover|carryoverlimit|teamcalendar> <value>")
		return
	}

	var input service.UpdateSettingsInput
	switch key, value := strings.ToLower(parts[0]), parts[1]; key {
	case "accrual":
		p := models.AccrualPolicy(strings.ToUpper(value))
		input.AccrualPolicy = &p
	case "carryover", "teamcalendar":
		flag, err := parseBool(value)
		if err != nil {
			h.reply(req.chatID, "❌ "+err.Error())
			return
		}
		if key == "carryover" {
			input.CarryOverEnabled = &flag
		} else {
			input.ShowTeamCalendarForEmployees = &flag
		}
	case "carryoverlimit":
		hours, err := parseHours(value)
		if err != nil {
			h.reply(req.chatID, "❌ "+err.Error())
			return
		}
		input.CarryOverLimitHours = &hours
	default:
		h.reply(req.chatID, "❌ Unknown setting "+strconv.Quote(key))
		return
	}

	settings, err := h.services.Settings.Update(ctx, req.actor, input)
	if err != nil {
		h.replyError(req.chatID, err)
		return
	}
	h.reply(req.chatID, "✅ Saved.\n\n"+formatSettings(settings))
}

func (h *Handler) setBalance(ctx context.Context, req request) {
	parts := strings.Fields(req.args)
	if len(parts) != 3 {
		h.reply(req.chatID, "❌ Usage: /setbalance <user id> <year> <5d|40h>")
		return
	}
	userID, year, ok := h.userYear(req, parts)
	if !ok {
		return
	}
	hours, err := parseHours(parts[2])
	if err != nil {
		h.reply(req.chatID, "❌ "+err.Error())
		return
	}

	if _, err := h.services.Balances.SetOverride(ctx, req.actor, userID, year, hours); err != nil {
		h.replyError(req.chatID, err)
		return
	}
	h.reply(req.chatID, fmt.Sprintf("✅ Allowance of user #%d for %d set to %s.", userID, year, formatHours(hours)))
}

func (h *Handler) clearBalance(ctx context.Context, req request) {
	parts := strings.Fields(req.args)
	if len(parts) != 2 {
		h.reply(req.chatID, "❌ Usage: /clearbalance <user id> <year>")
		return
	}
	userID, year, ok := h.userYear(req, parts)
	if !ok {
		return
	}

	if err := h.services.Balances.ClearOverride(ctx, req.actor, userID, year); err != nil {
		h.replyError(req.chatID, err)
		return
	}
	h.reply(req.chatID, fmt.Sprintf("✅ Allowance override of user #%d for %d removed.", userID, year))
}

func (h *Handler) userYear(req request, parts []string) (uint, int, bool) {
	userID, err := parseID(parts[0])
	if err != nil {
		h.reply(req.chatID, "❌ "+err.Error())
		return 0, 0, false
	}
	year, err := parseYear(parts[1], h.now())
	if err != nil {
		h.reply(req.chatID, "❌ "+err.Error())
		return 0, 0, false
	}
	return userID, year, true
}

func (h *Handler) showAudit(ctx context.Context, req request) {
	parts := strings.Fields(req.args)
	var query service.AuditQuery
	if len(parts) > 0 {
		entity, ok := auditEntities[strings.ToLower(parts[0])]
		if !ok {
			h.reply(req.chatID, "❌ Usage: /audit [leave|user|team|holiday|settings|balance] [id]")
			return
		}
		query.EntityType = entity
	}
	if len(parts) > 1 {
		id, err := parseID(parts[1])
		if err != nil {
			h.reply(req.chatID, "❌ "+err.Error())
			return
		}
		query.EntityID = &id
	}

	entries, err := h.services.Audit.List(ctx, req.actor, query)
	if err != nil {
		h.replyError(req.chatID, err)
		return
	}
	if len(entries) == 0 {
		h.reply(req.chatID, "📜 No history to show.")
		return
	}

	lines := []string{"📜 History", ""}
	for i := range entries {
		lines = append(lines, formatAuditEntry(&entries[i]))
	}
	h.reply(req.chatID, strings.Join(lines, "\n"))
}
