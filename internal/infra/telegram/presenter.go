package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"susu_keeper/internal/domain/deadline"
	domainTelegram "susu_keeper/internal/domain/telegram"
)

const defaultPromptWait = 30 * time.Second

// Inline buttons shared by the presenter and the callback handlers.
var (
	consentMarkup = &telebot.ReplyMarkup{}
	btnAllow      = consentMarkup.Data("Allow", "notif_allow")
	btnDeny       = consentMarkup.Data("Deny", "notif_deny")

	dismissMarkup = &telebot.ReplyMarkup{}
	btnDismiss    = dismissMarkup.Data("Dismiss", "alert_dismiss")
)

const consentPrompt = "Do you want contribution deadline reminders for your savings groups? Missing a deadline may cost a late penalty."

// Presenter shows deadline reminders in the member's private chat.
// Consent is asked once with Allow/Deny buttons; the answer holds for the rest of the session.
type Presenter struct {
	client   domainTelegram.Client
	memberID int64
	wait     time.Duration
	logger   *logrus.Entry

	mu         sync.Mutex
	permission deadline.Permission
	pending    chan deadline.Permission
}

func NewPresenter(client domainTelegram.Client, memberID int64, wait time.Duration, logger *logrus.Entry) *Presenter {
	if wait <= 0 {
		wait = defaultPromptWait
	}
	return &Presenter{
		client:     client,
		memberID:   memberID,
		wait:       wait,
		logger:     logger.WithField("component", "telegram_presenter"),
		permission: deadline.PermissionDefault,
	}
}

func (p *Presenter) Permission() deadline.Permission {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.permission
}

// RequestPermission sends the consent prompt and waits for the answer until ctx ends or the
// prompt wait elapses. An unanswered prompt leaves the permission at default.
func (p *Presenter) RequestPermission(ctx context.Context) (deadline.Permission, error) {
	p.mu.Lock()
	if p.permission != deadline.PermissionDefault {
		defer p.mu.Unlock()
		return p.permission, nil
	}
	answer := p.pending
	if answer == nil {
		markup := &telebot.ReplyMarkup{}
		markup.Inline(markup.Row(btnAllow, btnDeny))
		if err := p.client.SendMessage(p.memberID, consentPrompt, &telebot.SendOptions{ReplyMarkup: markup}); err != nil {
			p.mu.Unlock()
			return deadline.PermissionDefault, fmt.Errorf("send consent prompt: %w", err)
		}
		answer = make(chan deadline.Permission, 1)
		p.pending = answer
	}
	p.mu.Unlock()

	timer := time.NewTimer(p.wait)
	defer timer.Stop()
	select {
	case perm := <-answer:
		return perm, nil
	case <-ctx.Done():
	case <-timer.C:
	}
	return p.Permission(), nil
}

// Resolve records the member's answer to the consent prompt. Only the first answer counts.
func (p *Presenter) Resolve(granted bool) deadline.Permission {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.permission != deadline.PermissionDefault {
		return p.permission
	}
	p.permission = deadline.PermissionDenied
	if granted {
		p.permission = deadline.PermissionGranted
	}
	if p.pending != nil {
		p.pending <- p.permission
		p.pending = nil
	}
	p.logger.WithField("permission", string(p.permission)).Info("Notification consent answered")
	return p.permission
}

// Show delivers the reminder. Overdue alerts carry a Dismiss button and stay until it is pressed.
func (p *Presenter) Show(ctx context.Context, n deadline.DeadlineNotification) error {
	if p.Permission() != deadline.PermissionGranted {
		return deadline.ErrPermissionDenied
	}

	opts := &telebot.SendOptions{}
	if n.RequireInteraction {
		markup := &telebot.ReplyMarkup{}
		markup.Inline(markup.Row(dismissButton(n)))
		opts.ReplyMarkup = markup
	}
	if err := p.client.SendMessage(p.memberID, n.Message, opts); err != nil {
		return fmt.Errorf("send deadline notification: %w", err)
	}
	return nil
}

// dismissButton carries "<group>:<round>" so the handler can tell which alert was dismissed.
func dismissButton(n deadline.DeadlineNotification) telebot.Btn {
	btn := btnDismiss
	btn.Data = fmt.Sprintf("%s:%d", strings.ToLower(n.GroupAddress.Hex()), n.RoundNumber)
	return btn
}

// DisabledPresenter stands in when Telegram is not configured: permission is permanently denied and
// reminders only reach the log.
type DisabledPresenter struct {
	logger *logrus.Entry
}

func NewDisabledPresenter(logger *logrus.Entry) *DisabledPresenter {
	return &DisabledPresenter{logger: logger.WithField("component", "disabled_presenter")}
}

func (d *DisabledPresenter) Permission() deadline.Permission { return deadline.PermissionDenied }

func (d *DisabledPresenter) RequestPermission(context.Context) (deadline.Permission, error) {
	return deadline.PermissionDenied, nil
}

func (d *DisabledPresenter) Show(_ context.Context, n deadline.DeadlineNotification) error {
	d.logger.WithFields(logrus.Fields{
		"group": n.GroupAddress.Hex(),
		"round": n.RoundNumber,
		"tier":  string(n.Tier),
	}).Info(n.Message)
	return deadline.ErrPermissionDenied
}
