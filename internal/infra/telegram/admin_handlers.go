package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"susu_keeper/internal/app"
	"susu_keeper/internal/domain/duty"
)

// AdminHandlers serves the operator commands.
type AdminHandlers struct {
	ctx          context.Context
	adminService *app.AdminService
	logger       *logrus.Entry
}

func NewAdminHandlers(ctx context.Context, adminService *app.AdminService, baseLogger *logrus.Entry) *AdminHandlers {
	return &AdminHandlers{ctx: ctx, adminService: adminService, logger: baseLogger}
}

// RegisterAdminHandlers registers handlers for admin commands.
func RegisterAdminHandlers(b *telebot.Bot, h *AdminHandlers) {
	b.Handle("/duties", h.OnDuties)
	b.Handle("/cancel_duty", h.OnCancelDuty)
	b.Handle("/balance", h.OnBalance)
}

func (h *AdminHandlers) handlerLogger(c telebot.Context, handler string) *logrus.Entry {
	return h.logger.WithFields(logrus.Fields{
		"handler":   handler,
		"sender_id": c.Sender().ID,
	})
}

func (h *AdminHandlers) OnDuties(c telebot.Context) error {
	handlerLogger := h.handlerLogger(c, "/duties")
	handlerLogger.Info("Command received")

	tasks, err := h.adminService.ListDuties(h.ctx, c.Sender().ID)
	if err != nil {
		if errors.Is(err, app.ErrAdminNotAuthorized) {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send("Error: you are not allowed to use this command.")
		}
		handlerLogger.WithError(err).Error("Failed to list duties")
		return c.Send(fmt.Sprintf("Could not list duties: %s", err.Error()))
	}

	if len(tasks) == 0 {
		return c.Send("No active payout duties.")
	}

	handlerLogger.WithField("duties_count", len(tasks)).Info("Successfully retrieved duty list")

	var response strings.Builder
	response.WriteString("--- Active duties ---\n")
	for _, t := range tasks {
		response.WriteString(fmt.Sprintf("ID: %s, Name: %s, Group: %s\n", t.ID, t.Name, t.ExecAddress))
	}
	return c.Send(response.String())
}

func (h *AdminHandlers) OnCancelDuty(c telebot.Context) error {
	handlerLogger := h.handlerLogger(c, "/cancel_duty")
	handlerLogger.Info("Command received")

	if !h.adminService.IsAdmin(c.Sender().ID) {
		handlerLogger.Warn("Unauthorized access attempt")
		return c.Send("Error: you are not allowed to use this command.")
	}

	args := c.Args()
	// Expected format: /cancel_duty <DutyID>
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return c.Send("Invalid format. Use: /cancel_duty <DutyID>")
	}
	dutyID := strings.TrimSpace(args[0])
	handlerLogger = handlerLogger.WithField("duty_id", dutyID)

	err := h.adminService.CancelDuty(h.ctx, c.Sender().ID, dutyID)
	if err != nil {
		logWithError := handlerLogger.WithError(err)
		switch {
		case errors.Is(err, duty.ErrDutyNotFound):
			logWithError.Warn("Duty to cancel not found")
			return c.Send(fmt.Sprintf("Duty %s was not found on the automation network.", dutyID))
		case errors.Is(err, app.ErrDutyAlreadyInactive):
			logWithError.Warn("Duty already inactive")
			return c.Send(fmt.Sprintf("Duty %s was already cancelled.", dutyID))
		default:
			logWithError.Error("Failed to cancel duty")
			return c.Send(fmt.Sprintf("Could not cancel duty: %s", err.Error()))
		}
	}

	handlerLogger.Info("Duty cancelled successfully")
	return c.Send(fmt.Sprintf("Duty %s cancelled.", dutyID))
}

func (h *AdminHandlers) OnBalance(c telebot.Context) error {
	handlerLogger := h.handlerLogger(c, "/balance")

	balance, err := h.adminService.Balance(h.ctx, c.Sender().ID)
	if err != nil {
		if errors.Is(err, app.ErrAdminNotAuthorized) {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send("Error: you are not allowed to use this command.")
		}
		handlerLogger.WithError(err).Error("Failed to read balance")
		return c.Send(fmt.Sprintf("Could not read the automation balance: %s", err.Error()))
	}
	return c.Send(fmt.Sprintf("Automation balance: %s", balance.String()))
}
