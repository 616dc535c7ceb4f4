package handler

import (
	"context"
	"fmt"
	"strings"

	"leave-bot/internal/apperr"
	"leave-bot/internal/policy"
	"leave-bot/internal/service"
	"leave-bot/pkg/telegram"
)

const (
	callbackApproveLeave  = "approve_leave_"
	callbackSubmitLeave   = "submit_leave_"
	callbackConfirmDelete = "confirm_delete_leave_"
	callbackCancelDelete  = "cancel_delete_leave"
)

func (h *Handler) createLeave(ctx context.Context, req request) {
	args, err := parseLeaveArgs(req.args, h.now())
	if err != nil {
		h.reply(req.chatID, "❌ "+err.Error())
		return
	}

	leave, err := h.services.Leaves.Create(ctx, req.actor, service.CreateLeaveInput{
		UserID:        args.ForUserID,
		Type:          args.Type,
		StartDate:     args.StartDate,
		EndDate:       args.EndDate,
		StartTime:     args.StartTime,
		EndTime:       args.EndTime,
		HalfDayStart:  args.HalfDayStart,
		HalfDayEnd:    args.HalfDayEnd,
		Reason:        args.Reason,
		AttachmentURL: args.URL,
	})
	if err != nil {
		h.replyError(req.chatID, err)
		return
	}

	h.reply(req.chatID,
		fmt.Sprintf("📝 Draft created.\n\n%s\n\nSend it for approval with /submit %d.", formatLeave(leave, ""), leave.ID),
		telegram.Button{Text: "Submit", Data: fmt.Sprintf("%s%d", callbackSubmitLeave, leave.ID)},
	)
}

func (h *Handler) editLeave(ctx context.Context, req request) {
	args := splitArgs(req.args)
	if len(args.positional) != 1 || len(args.options) == 0 {
		h.reply(req.chatID, "❌ Usage: /editleave <id> [type=..] [start=..] [end=..] [half=start|end|both|none] [time=HH:MM-HH:MM|none] [url=..] [reason=..]")
		return
	}
	id, err := parseID(args.positional[0])
	if err != nil {
		h.reply(req.chatID, "❌ "+err.Error())
		return
	}

	input, err := h.parseUpdateLeave(args)
	if err != nil {
		h.reply(req.chatID, "❌ "+err.Error())
		return
	}

	leave, err := h.services.Leaves.Update(ctx, req.actor, id, input)
	if err != nil {
		h.replyError(req.chatID, err)
		return
	}
	h.reply(req.chatID, "✏️ Request updated.\n\n"+formatLeave(leave, ""))
}

func (h *Handler) parseUpdateLeave(args commandArgs) (service.UpdateLeaveInput, error) {
	var input service.UpdateLeaveInput
	now := h.now()

	for key, value := range args.options {
		switch key {
		case "type":
			t, err := parseLeaveType(value)
			if err != nil {
				return input, err
			}
			input.Type = &t
		case "start", "end":
			date, err := parseDate(value, now)
			if err != nil {
				return input, err
			}
			if key == "start" {
				input.StartDate = &date
			} else {
				input.EndDate = &date
			}
		case "half":
			start, end, err := parseHalf(value)
			if err != nil {
				return input, err
			}
			input.HalfDayStart, input.HalfDayEnd = &start, &end
		case "time":
			if strings.EqualFold(value, "none") {
				input.ClearTimes = true
				continue
			}
			from, to, err := parseTimeRange(value)
			if err != nil {
				return input, err
			}
			input.StartTime, input.EndTime = &from, &to
		case "url":
			v := value
			input.AttachmentURL = &v
		case "reason":
			v := value
			input.Reason = &v
		default:
			return input, fmt.Errorf("unknown option %q", key)
		}
	}
	return input, nil
}

func (h *Handler) submitLeave(ctx context.Context, req request) {
	id, ok := h.requireID(req, "/submit <id>")
	if !ok {
		return
	}
	h.doSubmit(ctx, req, id)
}

func (h *Handler) doSubmit(ctx context.Context, req request, id uint) {
	leave, err := h.services.Leaves.Submit(ctx, req.actor, id)
	if err != nil {
		h.replyError(req.chatID, err)
		return
	}
	h.reply(req.chatID, "📨 Sent for approval.\n\n"+formatLeave(leave, ""))
}

func (h *Handler) cancelLeave(ctx context.Context, req request) {
	id, ok := h.requireID(req, "/cancel <id>")
	if !ok {
		return
	}
	leave, err := h.services.Leaves.Cancel(ctx, req.actor, id)
	if err != nil {
		h.replyError(req.chatID, err)
		return
	}
	h.reply(req.chatID, "🚫 Request cancelled.\n\n"+formatLeaveLine(leave))
}

func (h *Handler) approveLeave(ctx context.Context, req request) {
	idArg, comment, _ := strings.Cut(req.args, " ")
	id, err := parseID(idArg)
	if err != nil {
		h.reply(req.chatID, "❌ Usage: /approve <id> [comment]")
		return
	}
	h.doApprove(ctx, req, id, strings.TrimSpace(comment))
}

func (h *Handler) doApprove(ctx context.Context, req request, id uint, comment string) {
	leave, err := h.services.Leaves.Approve(ctx, req.actor, id, comment)
	if err != nil {
		h.replyError(req.chatID, err)
		return
	}
	h.reply(req.chatID, "✅ Approved.\n\n"+formatLeaveLine(leave))
}

func (h *Handler) rejectLeave(ctx context.Context, req request) {
	idArg, comment, _ := strings.Cut(req.args, " ")
	id, err := parseID(idArg)
	comment = strings.TrimSpace(comment)
	if err != nil || comment == "" {
		h.reply(req.chatID, "❌ Usage: /reject <id> <comment>\nA comment is required when rejecting.")
		return
	}

	leave, err := h.services.Leaves.Reject(ctx, req.actor, id, comment)
	if err != nil {
		h.replyError(req.chatID, err)
		return
	}
	h.reply(req.chatID, "❌ Rejected.\n\n"+formatLeaveLine(leave))
}

// deleteLeave asks for confirmation; the callback does the deletion.
// Deletion is for managers in scope and admins at any status.
func (h *Handler) deleteLeave(ctx context.Context, req request) {
	id, ok := h.requireID(req, "/deleteleave <id>")
	if !ok {
		return
	}
	if err := policy.RequireManager(req.actor.Role); err != nil {
		h.replyError(req.chatID, err)
		return
	}
	leave, err := h.services.Leaves.Get(ctx, req.actor, id)
	if err != nil {
		h.replyError(req.chatID, err)
		return
	}
	owner, err := h.services.Users.Get(ctx, req.actor, leave.UserID)
	if err != nil {
		h.replyError(req.chatID, err)
		return
	}
	if err := policy.RequireManage(req.actor, owner.TeamID); err != nil {
		h.replyError(req.chatID, err)
		return
	}

	h.reply(req.chatID,
		fmt.Sprintf("🗑 Delete request #%d of %s permanently?\n\n%s", id, owner.FullName(), formatLeaveLine(leave)),
		telegram.Button{Text: "✅ Delete", Data: fmt.Sprintf("%s%d", callbackConfirmDelete, id)},
		telegram.Button{Text: "❌ Keep", Data: callbackCancelDelete},
	)
}

func (h *Handler) leaveInfo(ctx context.Context, req request) {
	id, ok := h.requireID(req, "/leaveinfo <id>")
	if !ok {
		return
	}
	leave, err := h.services.Leaves.Get(ctx, req.actor, id)
	if err != nil {
		h.replyError(req.chatID, err)
		return
	}

	owner := ""
	if leave.UserID != req.user.ID {
		if u, err := h.services.Users.Get(ctx, req.actor, leave.UserID); err == nil {
			owner = u.FullName()
		}
	}
	h.reply(req.chatID, formatLeave(leave, owner))
}

func (h *Handler) myLeaves(ctx context.Context, req request) {
	args := splitArgs(req.args)
	userID, ok := h.targetUser(req, args)
	if !ok {
		return
	}

	var filter service.ListLeavesFilter
	for _, p := range args.positional {
		if status, ok := parseStatus(p); ok {
			filter.Status = status
			continue
		}
		year, err := parseYear(p, h.now())
		if err != nil {
			h.reply(req.chatID, "❌ Usage: /myleaves [year] [status] [user=<id>]")
			return
		}
		filter.Year = year
	}

	leaves, err := h.services.Leaves.ListForUser(ctx, req.actor, userID, filter)
	if err != nil {
		h.replyError(req.chatID, err)
		return
	}

	title := "🗂 Your requests"
	if userID != req.user.ID {
		title = fmt.Sprintf("🗂 Requests of user #%d", userID)
	}
	h.reply(req.chatID, formatLeaveList(title, leaves))
}

func (h *Handler) pendingLeaves(ctx context.Context, req request) {
	leaves, err := h.services.Leaves.ListPending(ctx, req.actor)
	if err != nil {
		h.replyError(req.chatID, err)
		return
	}
	h.reply(req.chatID, formatLeaveList("⏳ Waiting for approval", leaves))
}

func (h *Handler) showBalance(ctx context.Context, req request) {
	args := splitArgs(req.args)
	userID, ok := h.targetUser(req, args)
	if !ok {
		return
	}

	yearArg := ""
	if len(args.positional) > 0 {
		yearArg = args.positional[0]
	}
	year, err := parseYear(yearArg, h.now())
	if err != nil {
		h.reply(req.chatID, "❌ "+err.Error())
		return
	}

	summary, err := h.services.Balances.Summary(ctx, req.actor, userID, year)
	if err != nil {
		h.replyError(req.chatID, err)
		return
	}
	h.reply(req.chatID, formatBalance(summary))
}

func (h *Handler) showCalendar(ctx context.Context, req request) {
	from, to, err := parsePeriod(strings.Fields(req.args), h.now())
	if err != nil {
		h.reply(req.chatID, "❌ "+err.Error())
		return
	}

	view, err := h.services.Leaves.Calendar(ctx, req.actor, from, to)
	if err != nil {
		h.replyError(req.chatID, err)
		return
	}
	h.reply(req.chatID, formatCalendar(view))
}

func (h *Handler) showNotifications(ctx context.Context, req request) {
	if strings.EqualFold(req.args, "read") {
		n, err := h.services.Notifications.MarkAllRead(ctx, req.user.ID)
		if err != nil {
			h.replyError(req.chatID, apperr.Internal("failed to mark notifications read", err))
			return
		}
		h.reply(req.chatID, fmt.Sprintf("📭 Marked %d notification(s) as read.", n))
		return
	}

	items, err := h.services.Notifications.List(ctx, req.user.ID, false)
	if err != nil {
		h.replyError(req.chatID, apperr.Internal("failed to list notifications", err))
		return
	}
	if len(items) == 0 {
		h.reply(req.chatID, "🔕 No notifications yet.")
		return
	}

	lines := []string{"🔔 Recent notifications", ""}
	for i := range items {
		lines = append(lines, formatNotification(&items[i]))
	}
	lines = append(lines, "", "Send /notifications read to mark them all read.")
	h.reply(req.chatID, strings.Join(lines, "\n"))
}

// targetUser resolves the optional user=<id> option, defaulting to the caller.
func (h *Handler) targetUser(req request, args commandArgs) (uint, bool) {
	v, ok := args.option("user")
	if !ok {
		return req.user.ID, true
	}
	id, err := parseID(v)
	if err != nil {
		h.reply(req.chatID, "❌ "+err.Error())
		return 0, false
	}
	return id, true
}

func (h *Handler) requireID(req request, usage string) (uint, bool) {
	id, err := parseID(req.args)
	if err != nil {
		h.reply(req.chatID, "❌ Usage: "+usage)
		return 0, false
	}
	return id, true
}
