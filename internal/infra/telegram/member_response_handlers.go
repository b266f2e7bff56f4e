// internal/infra/telegram/member_response_handlers.go
package telegram

import (
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterMemberResponseHandlers wires the consent and dismiss buttons.
func RegisterMemberResponseHandlers(b *telebot.Bot, presenter *Presenter, memberID int64, baseLogger *logrus.Entry) {
	h := &responseHandlers{presenter: presenter, memberID: memberID, logger: baseLogger.WithField("handler_group", "member_response")}
	b.Handle(&btnAllow, h.OnAllow)
	b.Handle(&btnDeny, h.OnDeny)
	b.Handle(&btnDismiss, h.OnDismiss)
}

type responseHandlers struct {
	presenter *Presenter
	memberID  int64
	logger    *logrus.Entry
}

func (h *responseHandlers) OnAllow(c telebot.Context) error {
	return h.answerConsent(c, true)
}

func (h *responseHandlers) OnDeny(c telebot.Context) error {
	return h.answerConsent(c, false)
}

func (h *responseHandlers) answerConsent(c telebot.Context, granted bool) error {
	if c.Sender().ID != h.memberID {
		return c.Respond(&telebot.CallbackResponse{Text: "This prompt is not for you."})
	}
	perm := h.presenter.Resolve(granted)
	h.logger.WithField("permission", string(perm)).Info("Consent button pressed")

	text := "Reminders are on."
	if !granted {
		text = "Reminders are off for this session."
	}
	if err := c.Edit(text); err != nil {
		h.logger.WithError(err).Warn("Failed to update consent prompt")
	}
	return c.Respond()
}

// OnDismiss acknowledges an overdue alert and removes its button.
func (h *responseHandlers) OnDismiss(c telebot.Context) error {
	data := c.Callback().Data // <group>:<round>
	parts := strings.Split(data, ":")
	if len(parts) != 2 {
		h.logger.WithField("data", data).Warn("Invalid dismiss callback data")
		return c.Respond(&telebot.CallbackResponse{Text: "Unknown alert."})
	}
	h.logger.WithFields(logrus.Fields{"group": parts[0], "round": parts[1]}).Info("Overdue alert dismissed")

	if err := c.Edit(c.Message().Text); err != nil {
		h.logger.WithError(err).Warn("Failed to remove dismiss button")
	}
	return c.Respond(&telebot.CallbackResponse{Text: "Dismissed."})
}
