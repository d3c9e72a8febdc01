package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"plannerbot/internal/currency"
	"plannerbot/internal/model"
	"plannerbot/internal/service"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.WithError(err).Warn("callback ack")
	}
	if _, err := b.ensureUser(ctx, cb.From); err != nil {
		return err
	}

	userID, chatID := cb.From.ID, cb.Message.Chat.ID
	data := cb.Data
	b.log.WithFields(logrus.Fields{"user": userID, "data": data}).Debug("callback")

	switch data {
	case cbBackToMenu:
		b.clearConversation(userID)
		return b.showMainMenu(ctx, chatID, userID)
	case cbHelp:
		return b.sendWithReplyMarkup(chatID, helpText, backToMenuKeyboard())
	case cbInfo:
		return b.sendWithReplyMarkup(chatID, infoText, backToMenuKeyboard())
	case cbWeather:
		return b.sendWithReplyMarkup(chatID, escape(b.lookup.Weather(ctx)), backToMenuKeyboard())
	case cbRates:
		return b.sendWithReplyMarkup(chatID, escape(b.lookup.Rates(ctx)), backToMenuKeyboard())
	case cbAdminPanel:
		return b.showAdminPanel(ctx, chatID, userID)

	case cbTomorrowPlan, cbCancelPlan:
		b.clearConversation(userID)
		return b.sendWithReplyMarkup(chatID,
			fmt.Sprintf("📝 <b>План на завтра</b> (%s)\n\nОберіть дію:", formatDate(b.plans.TomorrowDate())),
			tomorrowPlanKeyboard())
	case cbAddPlan:
		b.setConversation(userID, &conversationState{stage: stagePlanText})
		return b.sendWithReplyMarkup(chatID, "✏️ Напишіть ваш план на завтра одним повідомленням:", cancelPlanKeyboard())
	case cbViewTomorrow:
		plan, err := b.plans.Tomorrow(ctx, userID)
		return b.sendPlan(chatID, plan, err)
	case cbViewPlan:
		plan, err := b.plans.Due(ctx, userID)
		return b.sendPlan(chatID, plan, err)
	case cbMarkCompleted:
		plan, err := b.plans.CompleteDue(ctx, userID)
		if errors.Is(err, service.ErrPlanNotFound) {
			return b.sendWithReplyMarkup(chatID, "📝 Немає плану, який можна позначити.", backToMenuKeyboard())
		}
		if err != nil {
			return err
		}
		return b.sendWithReplyMarkup(chatID, fmt.Sprintf("🎉 План на %s виконано!", formatDate(plan.PlanDate)), backToMenuKeyboard())
	case cbPlanHistory:
		plans, err := b.plans.History(ctx, userID, 5)
		if err != nil {
			return err
		}
		return b.sendWithReplyMarkup(chatID, formatHistory(plans), backToPlanKeyboard())
	case cbStatistics:
		week, err := b.plans.WeekStats(ctx, userID)
		if err != nil {
			return err
		}
		return b.sendWithReplyMarkup(chatID, formatWeek(week), backToMenuKeyboard())

	case cbReminderSettings:
		b.clearConversation(userID)
		return b.showReminderSettings(ctx, chatID, userID)
	case cbToggleReminder:
		enabled, err := b.plans.ToggleReminders(ctx, userID)
		if err != nil {
			return err
		}
		b.log.WithFields(logrus.Fields{"user": userID, "enabled": enabled}).Info("reminders toggled")
		return b.showReminderSettings(ctx, chatID, userID)
	case cbChangeReminderTime:
		b.setConversation(userID, &conversationState{stage: stageReminderTime})
		return b.sendWithReplyMarkup(chatID, "🕐 Введіть новий час нагадування у форматі ГГ:ХХ (наприклад, 07:30):", backToSettingsKeyboard())
	case cbCreateReminder:
		today, err := time.Parse(service.DateLayout, b.plans.TomorrowDate())
		if err != nil {
			return err
		}
		return b.sendWithReplyMarkup(chatID, "📅 Оберіть дату нагадування:", reminderDateKeyboard(today.AddDate(0, 0, -1)))
	case cbMyReminders:
		reminders, err := b.plans.Reminders(ctx, userID)
		if err != nil {
			return err
		}
		return b.sendWithReplyMarkup(chatID, formatReminders(reminders), remindersKeyboard(len(reminders) > 0))
	case cbDeleteReminderMenu:
		reminders, err := b.plans.Reminders(ctx, userID)
		if err != nil {
			return err
		}
		if len(reminders) == 0 {
			return b.sendWithReplyMarkup(chatID, formatReminders(reminders), backToSettingsKeyboard())
		}
		return b.sendWithReplyMarkup(chatID, "🗑️ Оберіть нагадування для видалення:", deleteRemindersKeyboard(reminders))

	case cbConverter:
		b.clearConversation(userID)
		text := "💱 <b>Конвертер валют</b>\n\nПідтримувані валюти: " + strings.Join(currency.Codes(), ", ")
		if b.currency.UsingBackup() {
			text += "\n\n⚠️ Використовуються резервні курси"
		}
		return b.sendWithReplyMarkup(chatID, text, converterKeyboard())
	case cbConvert:
		b.setConversation(userID, &conversationState{stage: stageConvert})
		return b.sendWithReplyMarkup(chatID,
			"💱 Введіть суму та валюти у форматі <code>100 USD UAH</code>:",
			backToConverterKeyboard())
	case cbQuickConvert:
		return b.sendWithReplyMarkup(chatID, "⚡ Оберіть суму для швидкої конвертації:", quickConvertKeyboard())
	case cbExchangeRates:
		table, err := b.currency.Table("USD", 1)
		if err != nil {
			return err
		}
		return b.sendWithReplyMarkup(chatID, table, ratesKeyboard())
	case cbRatesAmount:
		b.setConversation(userID, &conversationState{stage: stageRatesAmount})
		return b.sendWithReplyMarkup(chatID, "💰 Введіть суму та базову валюту, наприклад <code>500 EUR</code>:", backToConverterKeyboard())
	case cbRefreshRates:
		text := "✅ Курси оновлено!"
		if err := b.currency.Refresh(ctx); err != nil {
			b.log.WithError(err).Warn("refresh currency rates")
			text = "⚠️ Не вдалося оновити курси, використовуються резервні."
		}
		return b.sendWithReplyMarkup(chatID, text, ratesKeyboard())
	}

	switch {
	case strings.HasPrefix(data, cbCompletePlanPrefix):
		planID, err := parseID(data, cbCompletePlanPrefix)
		if err != nil {
			return nil
		}
		if err := b.plans.Complete(ctx, userID, planID); err != nil {
			return b.planActionFailed(chatID, err)
		}
		return b.sendWithReplyMarkup(chatID, "🎉 План позначено виконаним!", backToPlanKeyboard())
	case strings.HasPrefix(data, cbDeletePlanPrefix):
		planID, err := parseID(data, cbDeletePlanPrefix)
		if err != nil {
			return nil
		}
		if err := b.plans.Delete(ctx, userID, planID); err != nil {
			return b.planActionFailed(chatID, err)
		}
		return b.sendWithReplyMarkup(chatID, "🗑️ План видалено.", backToPlanKeyboard())
	case strings.HasPrefix(data, cbDeleteReminderPrefix):
		reminderID, err := parseID(data, cbDeleteReminderPrefix)
		if err != nil {
			return nil
		}
		text := "✅ Нагадування видалено!"
		if err := b.plans.DeleteReminder(ctx, userID, reminderID); err != nil {
			text = "❌ Нагадування не знайдено."
		}
		return b.sendWithReplyMarkup(chatID, text, tgbotapi.NewInlineKeyboardMarkup(row(btnBackReminders, cbMyReminders)))
	case strings.HasPrefix(data, cbReminderDatePrefix):
		days, err := parseDays(data)
		if err != nil {
			return nil
		}
		b.setConversation(userID, &conversationState{
			stage:    stageCustomClock,
			reminder: service.CustomReminder{DaysAhead: days},
		})
		return b.sendWithReplyMarkup(chatID, "🕐 Введіть час нагадування у форматі ГГ:ХХ:", backToSettingsKeyboard())
	case strings.HasPrefix(data, cbReminderRepeatPrefix):
		return b.finishCustomReminder(ctx, chatID, userID, strings.TrimPrefix(data, cbReminderRepeatPrefix))
	case strings.HasPrefix(data, cbQuickPrefix):
		amount, code, err := parseQuick(data)
		if err != nil {
			return nil
		}
		to := "UAH"
		if code == "UAH" {
			to = "USD"
		}
		conv, err := b.currency.Convert(amount, code, to)
		if err != nil {
			return b.sendWithReplyMarkup(chatID, "❌ "+escape(err.Error()), backToConverterKeyboard())
		}
		return b.sendWithReplyMarkup(chatID, currency.Format(conv), afterConversionKeyboard())
	}
	return nil
}

func (b *Bot) sendPlan(chatID int64, plan *model.Plan, err error) error {
	if errors.Is(err, service.ErrPlanNotFound) {
		return b.sendWithReplyMarkup(chatID, "📝 На завтра ще немає плану.\n\n💡 Додайте його через меню.", tomorrowPlanKeyboard())
	}
	if err != nil {
		return err
	}
	return b.sendWithReplyMarkup(chatID, formatPlan(*plan), planKeyboard(*plan))
}

func (b *Bot) planActionFailed(chatID int64, err error) error {
	if errors.Is(err, service.ErrPlanNotFound) {
		return b.sendWithReplyMarkup(chatID, "❌ План не знайдено.", backToPlanKeyboard())
	}
	return err
}

func (b *Bot) showReminderSettings(ctx context.Context, chatID, userID int64) error {
	user, err := b.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	return b.sendWithReplyMarkup(chatID, formatSettings(*user), settingsKeyboard(user.ReminderEnabled))
}

func (b *Bot) finishCustomReminder(ctx context.Context, chatID, userID int64, repeat string) error {
	state := b.getConversation(userID)
	if state == nil || state.stage != stageCustomRepeat {
		return b.sendWithReplyMarkup(chatID, "⌛ Створення нагадування застаріло, почніть знову.", backToSettingsKeyboard())
	}
	draft := state.reminder
	draft.Repeat = repeat
	r, err := b.plans.CreateReminder(ctx, userID, draft)
	if errors.Is(err, service.ErrBadRepeat) {
		return b.sendWithReplyMarkup(chatID, "🔁 Оберіть варіант повторення кнопкою нижче.", repeatKeyboard())
	}
	if err != nil {
		return err
	}
	b.clearConversation(userID)
	b.log.WithFields(logrus.Fields{"user": userID, "reminder": r.ID}).Info("custom reminder created")
	return b.sendWithReplyMarkup(chatID,
		fmt.Sprintf("✅ <b>Нагадування створено!</b>\n\n📅 %s о %s\n💬 %s\n🔁 %s",
			formatDate(r.ReminderDate), r.ReminderTime, escape(r.Message), repeatLabels[r.RepeatType]),
		backToSettingsKeyboard())
}

func parseDays(data string) (int, error) {
	var days int
	if _, err := fmt.Sscanf(strings.TrimPrefix(data, cbReminderDatePrefix), "%d", &days); err != nil {
		return 0, err
	}
	if days < 0 || days > 6 {
		return 0, fmt.Errorf("days out of range: %d", days)
	}
	return days, nil
}
