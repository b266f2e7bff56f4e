// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"susu_keeper/internal/app"
	"susu_keeper/internal/domain/group"
)

// MemberHandlers serves the commands available to the member and the admin.
type MemberHandlers struct {
	ctx      context.Context
	checker  *app.PayoutChecker
	groups   group.Source
	admin    *app.AdminService
	memberID int64
	logger   *logrus.Entry
}

func NewMemberHandlers(
	ctx context.Context,
	checker *app.PayoutChecker,
	groups group.Source,
	admin *app.AdminService,
	memberID int64,
	baseLogger *logrus.Entry, // For contextual logging
) *MemberHandlers {
	return &MemberHandlers{
		ctx:      ctx,
		checker:  checker,
		groups:   groups,
		admin:    admin,
		memberID: memberID,
		logger:   baseLogger.WithField("handler_group", "member"),
	}
}

func RegisterBotCommands(b *telebot.Bot, h *MemberHandlers) {
	b.Handle("/start", h.OnStart)
	b.Handle("/help", h.OnHelp)
	b.Handle("/status", h.OnStatus)
}

func (h *MemberHandlers) OnStart(c telebot.Context) error {
	senderID := c.Sender().ID
	logCtx := h.logger.WithField("command", "/start").WithField("sender_id", senderID)
	logCtx.Info("Processing /start command")

	// Check if Admin
	if h.admin.IsAdmin(senderID) {
		logCtx.Info("User identified as Admin")
		return c.Send(fmt.Sprintf("Hello, %s! Keeper admin commands are ready. Use /help for the list.", c.Sender().FirstName))
	}

	if senderID == h.memberID {
		logCtx.Info("User identified as Member")
		return c.Send(fmt.Sprintf("Hello, %s! I remind you before each contribution deadline of your savings groups. Use /status to see where every round stands.", c.Sender().FirstName))
	}

	// Unknown user
	logCtx.Info("User is unknown")
	return c.Send("Hello! This bot sends contribution reminders to a registered savings group member.")
}

func (h *MemberHandlers) OnHelp(c telebot.Context) error {
	senderID := c.Sender().ID
	logCtx := h.logger.WithField("command", "/help").WithField("sender_id", senderID)
	logCtx.Info("Processing /help command")

	var helpText strings.Builder
	switch {
	case h.admin.IsAdmin(senderID):
		helpText.WriteString("Admin commands:\n\n")
		helpText.WriteString("`/duties`\n - List active payout duties on the automation network.\n\n")
		helpText.WriteString("`/cancel_duty <DutyID>`\n - Cancel a payout duty.\n\n")
		helpText.WriteString("`/balance`\n - Show the automation balance that pays for executions.\n\n")
		helpText.WriteString("`/status`\n - Show the payout status of every group.\n\n")
		helpText.WriteString("`/help`\n - Show this message.")
	case senderID == h.memberID:
		helpText.WriteString("I send a reminder 24 hours, 6 hours and 1 hour before each contribution deadline, and an alert once it has passed.\n\n")
		helpText.WriteString("`/status`\n - Show the payout status of every group.\n\n")
		helpText.WriteString("`/help`\n - Show this message.")
	default:
		logCtx.Info("User is unknown, sending restricted help.")
		return c.Send("There are no commands available for you.")
	}
	return c.Send(helpText.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
}

// OnStatus runs the payout check for every configured group.
func (h *MemberHandlers) OnStatus(c telebot.Context) error {
	senderID := c.Sender().ID
	logCtx := h.logger.WithField("command", "/status").WithField("sender_id", senderID)
	if senderID != h.memberID && !h.admin.IsAdmin(senderID) {
		logCtx.Warn("Unauthorized access attempt")
		return c.Send("Error: you are not allowed to use this command.")
	}

	groups, err := h.groups.ListGroups(h.ctx)
	if err != nil {
		logCtx.WithError(err).Error("Failed to list groups")
		return c.Send("Could not load the group list. Please try again later.")
	}
	if len(groups) == 0 {
		return c.Send("No savings groups are configured.")
	}

	addresses := make([]string, len(groups))
	for i, g := range groups {
		addresses[i] = g.Address.Hex()
	}
	results := h.checker.CheckMany(h.ctx, addresses)

	var response strings.Builder
	response.WriteString("--- Group status ---\n")
	for i, res := range results {
		status := res.Result.Message
		if res.Err != nil {
			status = res.Err.Error()
		}
		response.WriteString(fmt.Sprintf("%s: %s\n", groups[i].DisplayName(), status))
	}
	logCtx.WithField("groups_count", len(groups)).Info("Status sent")
	return c.Send(response.String())
}
