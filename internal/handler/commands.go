package handler

import (
	"context"
	"fmt"

	"leave-bot/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const employeeHelp = `📋 Available commands:

👤 Profile:
/createprofile - Create your profile
/myprofile - Show your profile and entitlement

🏖️ Leave requests:
/leave <type> <start> [end] [options] [reason] - Create a draft request
    Types: annual, sick, home, unpaid, other
    Options: half=start|end|both, time=HH:MM-HH:MM, url=<link>
    Example: /leave annual 07.07.2025 18.07.2025 summer trip
    Example: /leave sick 10.03 time=09:00-12:30 doctor
/editleave <id> [type=..] [start=..] [end=..] [half=..] [time=..|none] [url=..] [reason=..]
/submit <id> - Send a draft for approval
/cancel <id> - Cancel a request
/leaveinfo <id> - Show a request
/myleaves [year] [status] - Your requests
/balance [year] - Your annual leave balance
/calendar [month [year]] or /calendar <from> <to> - Leave calendar
/holidays [year] - Public holidays
/notifications [read] - Recent notifications, "read" marks them read

🛠 Other:
/start - Start working with the bot
/help - Show this message

Dates: DD.MM.YYYY, DD.MM or YYYY-MM-DD.`

const managerHelp = `

👥 Managers:
/pending - Requests waiting for approval
/approve <id> [comment] - Approve a request
/reject <id> <comment> - Reject a request
/deleteleave <id> - Delete a request permanently
/leave ... for=<user id> - Create a request for a team member
/users - Team members
/balance [year] user=<id> - Balance of a team member
/myleaves [year] [status] user=<id> - Requests of a team member
/audit [entity] [id] - Change history`

const adminHelp = `

🔑 Administrators:
/users - All users
/setrole <user id> <employee|manager|admin>
/setteam <user id> <team id|none>
/setprofile <user id> [birth=..] [child=yes|no] [start=..] [allowance=<5d|40h|none>] [email=..|none] [first=..] [last=..]
/deactivate <user id>, /activate <user id>, /deleteuser <user id>
/teams, /addteam [limit=N] name=<name>, /editteam <id> [limit=N|none] [name=..], /deleteteam <id>
/addholiday <date> [company=yes] <name>, /removeholiday <date>, /toggleholiday <date>
/importholidays [path] - Import a production calendar file
/settings, /setsetting <accrual|carryover|carryoverlimit|teamcalendar> <value>
/setbalance <user id> <year> <5d|40h>, /clearbalance <user id> <year>`

func (h *Handler) sendStartMessage(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID

	user, err := h.services.Users.FindByChatID(ctx, chatID)
	if err != nil {
		h.replyError(chatID, err)
		return
	}
	if user == nil {
		h.reply(chatID, `👋 Welcome to the leave bot!

Here you can request vacation, sick leave and home office days, and managers can approve them.

To begin, create your profile with /createprofile.`)
		return
	}

	h.reply(chatID, fmt.Sprintf("👋 Hello, %s!\n\nUse /help to see what you can do.", user.FirstName))
}

func (h *Handler) sendHelpMessage(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID

	text := employeeHelp
	user, err := h.services.Users.FindByChatID(ctx, chatID)
	if err == nil && user != nil && user.IsActive {
		switch user.Role {
		case models.RoleManager:
			text += managerHelp
		case models.RoleAdmin:
			text += managerHelp + adminHelp
		}
	}

	h.reply(chatID, text)
}
