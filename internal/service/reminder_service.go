package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"plannerbot/internal/model"
	"plannerbot/internal/repository"
)

// Sender delivers a chat message with an optional inline keyboard.
type Sender interface {
	SendWithMarkup(ctx context.Context, chatID int64, text string, markup interface{}) error
}

// ReminderService sends reminders that came due and reschedules repeating ones.
type ReminderService struct {
	reminders *repository.ReminderRepository
	sender    Sender
	loc       *time.Location
	now       func() time.Time
	log       *logrus.Entry
}

func NewReminderService(reminders *repository.ReminderRepository, sender Sender, loc *time.Location, log *logrus.Entry) *ReminderService {
	return &ReminderService{reminders: reminders, sender: sender, loc: loc, now: time.Now, log: log}
}

// DispatchDue sends every pending reminder for today whose time has passed. A failed send
// leaves the reminder unsent so the next tick retries it. Returns the number delivered.
func (s *ReminderService) DispatchDue(ctx context.Context) (int, error) {
	now := s.now().In(s.loc)
	pending, err := s.reminders.Pending(ctx, now.Format(DateLayout), now.Format("15:04"))
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, r := range pending {
		log := s.log.WithFields(logrus.Fields{"reminder_id": r.ID, "user_id": r.UserID})
		if err := s.sender.SendWithMarkup(ctx, r.UserID, FormatReminder(r), reminderKeyboard()); err != nil {
			log.WithError(err).Warn("send reminder")
			continue
		}
		if err := s.reminders.MarkSent(ctx, r.ID, now.UTC()); err != nil {
			log.WithError(err).Error("mark reminder sent")
			continue
		}
		delivered++

		next, ok := NextOccurrence(r.ReminderDate, r.RepeatType)
		if !ok {
			continue
		}
		again := model.Reminder{
			UserID:       r.UserID,
			PlanID:       r.PlanID,
			ReminderDate: next,
			ReminderTime: r.ReminderTime,
			Message:      r.Message,
			RepeatType:   r.RepeatType,
		}
		if err := s.reminders.Create(ctx, &again); err != nil {
			log.WithError(err).Error("reschedule reminder")
		}
	}
	if len(pending) > 0 {
		s.log.WithFields(logrus.Fields{"due": len(pending), "delivered": delivered}).Info("reminders dispatched")
	}
	return delivered, nil
}

// FormatReminder renders the reminder notification in HTML.
func FormatReminder(r model.ReminderRow) string {
	var b strings.Builder
	b.WriteString("⏰ <b>Нагадування!</b>\n\n")
	b.WriteString(html.EscapeString(r.Message))
	fmt.Fprintf(&b, "\n\n📅 Дата: %s\n⏰ Час: %s", r.ReminderDate, r.ReminderTime)
	if r.PlanText != "" {
		fmt.Fprintf(&b, "\n\n📝 План:\n%s", html.EscapeString(r.PlanText))
	}
	return b.String()
}

// NextOccurrence returns the date after date for a repeating reminder; ok is false for one-shot ones.
func NextOccurrence(date, repeat string) (string, bool) {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", false
	}
	switch repeat {
	case model.RepeatDaily:
		d = d.AddDate(0, 0, 1)
	case model.RepeatWeekly:
		d = d.AddDate(0, 0, 7)
	case model.RepeatMonthly:
		d = d.AddDate(0, 1, 0)
	default:
		return "", false
	}
	return d.Format(DateLayout), true
}

func reminderKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("👁️ Подивитися план", "view_plan")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✅ Позначити виконаним", "mark_completed")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔙 Назад до меню", "back_to_menu")),
	)
}
