package handler

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"leave-bot/internal/calendar"
	"leave-bot/internal/models"
	"leave-bot/internal/service"
)

var statusIcons = map[models.LeaveStatus]string{
	models.StatusDraft:     "📝",
	models.StatusPending:   "⏳",
	models.StatusApproved:  "✅",
	models.StatusRejected:  "❌",
	models.StatusCancelled: "🚫",
}

var typeNames = map[models.LeaveType]string{
	models.LeaveAnnual:     "Annual leave",
	models.LeaveSick:       "Sick leave",
	models.LeaveHomeOffice: "Home office",
	models.LeaveUnpaid:     "Unpaid leave",
	models.LeaveOther:      "Other",
}

// formatHours renders hours with the day equivalent, e.g. "12h (1.5d)".
func formatHours(hours float64) string {
	h := strconv.FormatFloat(calendar.Round2(hours), 'f', -1, 64)
	d := strconv.FormatFloat(calendar.Round2(hours/calendar.HoursPerWorkday), 'f', -1, 64)
	return h + "h (" + d + "d)"
}

func formatPeriod(req *models.LeaveRequest) string {
	var b strings.Builder
	b.WriteString(req.StartDate)
	if req.EndDate != req.StartDate {
		b.WriteString(" → " + req.EndDate)
	}
	if req.StartTime != nil && req.EndTime != nil {
		b.WriteString(fmt.Sprintf(" %s-%s", *req.StartTime, *req.EndTime))
	}
	switch {
	case req.HalfDayStart && req.HalfDayEnd:
		b.WriteString(" (half days at both ends)")
	case req.HalfDayStart:
		b.WriteString(" (half first day)")
	case req.HalfDayEnd:
		b.WriteString(" (half last day)")
	}
	return b.String()
}

// formatLeaveLine is the one-line list form.
func formatLeaveLine(req *models.LeaveRequest) string {
	return fmt.Sprintf("%s #%d %s, %s, %s",
		statusIcons[req.Status], req.ID, typeNames[req.Type], formatPeriod(req), formatHours(req.ComputedHours))
}

func formatLeave(req *models.LeaveRequest, owner string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s Request #%d\n", statusIcons[req.Status], req.ID)
	if owner != "" {
		fmt.Fprintf(&b, "👤 %s\n", owner)
	}
	fmt.Fprintf(&b, "📌 %s\n", typeNames[req.Type])
	fmt.Fprintf(&b, "📅 %s\n", formatPeriod(req))
	fmt.Fprintf(&b, "⏱ %s\n", formatHours(req.ComputedHours))
	fmt.Fprintf(&b, "📍 Status: %s", req.Status)
	if req.Reason != nil && *req.Reason != "" {
		fmt.Fprintf(&b, "\n💬 Reason: %s", *req.Reason)
	}
	if req.AttachmentURL != nil && *req.AttachmentURL != "" {
		fmt.Fprintf(&b, "\n📎 %s", *req.AttachmentURL)
	}
	if req.ManagerComment != nil && *req.ManagerComment != "" {
		fmt.Fprintf(&b, "\n🗒 Manager comment: %s", *req.ManagerComment)
	}
	if req.ApprovedAt != nil {
		fmt.Fprintf(&b, "\n🕒 Approved: %s", req.ApprovedAt.Format("2006-01-02 15:04"))
	}
	return b.String()
}

func formatLeaveList(title string, reqs []models.LeaveRequest) string {
	if len(reqs) == 0 {
		return title + "\n\nNothing here yet."
	}
	lines := make([]string, 0, len(reqs)+2)
	lines = append(lines, title, "")
	for i := range reqs {
		lines = append(lines, formatLeaveLine(&reqs[i]))
	}
	return strings.Join(lines, "\n")
}

func formatUser(u *models.User) string {
	var b strings.Builder
	fmt.Fprintf(&b, "👤 %s (#%d)\n", u.FullName(), u.ID)
	if u.Username != "" {
		fmt.Fprintf(&b, "🔗 @%s\n", u.Username)
	}
	fmt.Fprintf(&b, "🎭 Role: %s\n", u.Role)
	if u.TeamID != nil {
		fmt.Fprintf(&b, "👥 Team: #%d\n", *u.TeamID)
	} else {
		b.WriteString("👥 Team: none\n")
	}
	if u.Email != nil {
		fmt.Fprintf(&b, "📧 %s\n", *u.Email)
	}
	if u.BirthDate != nil {
		fmt.Fprintf(&b, "🎂 Born: %s\n", *u.BirthDate)
	}
	if u.HasChild {
		b.WriteString("👶 Has a child\n")
	}
	if u.EmploymentStartDate != nil {
		fmt.Fprintf(&b, "🏢 Employed since: %s\n", *u.EmploymentStartDate)
	}
	if u.ManualLeaveAllowanceHours != nil {
		fmt.Fprintf(&b, "✍️ Manual allowance: %s\n", formatHours(*u.ManualLeaveAllowanceHours))
	}
	if !u.IsActive {
		b.WriteString("⛔ Deactivated\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatUserLine(u *models.User) string {
	line := fmt.Sprintf("#%d %s, %s", u.ID, u.FullName(), u.Role)
	if u.TeamID != nil {
		line += fmt.Sprintf(", team #%d", *u.TeamID)
	}
	if !u.IsActive {
		line += ", inactive"
	}
	return line
}

func formatBalance(s *service.BalanceSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏖️ Annual leave %d\n", s.Year)
	fmt.Fprintf(&b, "Allowance: %s", formatHours(s.Base))
	if s.Override {
		b.WriteString(" (set by an administrator)")
	}
	b.WriteString("\n")
	if s.CarryOver > 0 {
		fmt.Fprintf(&b, "Carried over: %s\n", formatHours(s.CarryOver))
	}
	fmt.Fprintf(&b, "Total: %s\n", formatHours(s.Total))
	fmt.Fprintf(&b, "Booked: %s\n", formatHours(s.Booked))
	fmt.Fprintf(&b, "Remaining: %s", formatHours(s.Remaining))
	return b.String()
}

func formatCalendar(view *service.CalendarView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📅 %s → %s\n", view.From, view.To)

	if len(view.Holidays) > 0 {
		b.WriteString("\n🎉 Holidays:\n")
		for _, hol := range view.Holidays {
			fmt.Fprintf(&b, "%s %s\n", hol.Date, hol.Name)
		}
	}

	b.WriteString("\n🏖️ Absences:\n")
	if len(view.Events) == 0 {
		b.WriteString("none\n")
	}
	for i := range view.Events {
		ev := &view.Events[i]
		fmt.Fprintf(&b, "%s %s: %s, %s\n",
			statusIcons[ev.Leave.Status], ev.OwnerName, typeNames[ev.Leave.Type], formatPeriod(&ev.Leave))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatHoliday(hol *models.Holiday) string {
	line := fmt.Sprintf("%s %s", hol.Date, hol.Name)
	if hol.IsCompanyHoliday {
		line += " (company)"
	}
	if !hol.IsActive {
		line += " (inactive)"
	}
	return line
}

func formatTeam(t *models.Team) string {
	limit := "no limit"
	if t.MaxConcurrentLeaves != nil {
		limit = fmt.Sprintf("max %d away at once", *t.MaxConcurrentLeaves)
	}
	return fmt.Sprintf("#%d %s, %s", t.ID, t.Name, limit)
}

func formatSettings(s *models.Settings) string {
	return fmt.Sprintf(`⚙️ Settings

accrual: %s
carryover: %s
carryoverlimit: %s
teamcalendar: %s`,
		s.AnnualLeaveAccrualPolicy,
		yesNo(s.CarryOverEnabled),
		formatHours(s.CarryOverLimitHours),
		yesNo(s.ShowTeamCalendarForEmployees))
}

func formatAuditEntry(e *models.AuditLog) string {
	return fmt.Sprintf("%s actor #%d %s %s #%d",
		e.CreatedAt.Format("2006-01-02 15:04"), e.ActorID, e.Action, e.EntityType, e.EntityID)
}

func formatNotification(n *models.Notification) string {
	icon := "🔔"
	if n.ReadAt != nil {
		icon = "📭"
	}
	line := fmt.Sprintf("%s #%d %s %s", icon, n.ID, n.CreatedAt.Format("2006-01-02 15:04"), n.Type)
	if id := payloadLeaveID(n); id != "" {
		line += ", request #" + id
	}
	return line
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func payloadLeaveID(n *models.Notification) string {
	var payload struct {
		LeaveID uint `json:"leave_id"`
	}
	if len(n.Payload) == 0 || json.Unmarshal(n.Payload, &payload) != nil || payload.LeaveID == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(payload.LeaveID), 10)
}
