package bot

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"plannerbot/internal/model"
)

const (
	cbHelp               = "help"
	cbInfo               = "info"
	cbWeather            = "weather"
	cbRates              = "rates"
	cbBackToMenu         = "back_to_menu"
	cbAdminPanel         = "admin_panel"
	cbTomorrowPlan       = "tomorrow_plan"
	cbAddPlan            = "add_plan"
	cbCancelPlan         = "cancel_plan"
	cbViewTomorrow       = "view_tomorrow"
	cbPlanHistory        = "plan_history"
	cbViewPlan           = "view_plan"
	cbMarkCompleted      = "mark_completed"
	cbStatistics         = "statistics"
	cbReminderSettings   = "reminder_settings"
	cbToggleReminder     = "toggle_reminder"
	cbChangeReminderTime = "change_reminder_time"
	cbCreateReminder     = "create_reminder"
	cbMyReminders        = "my_reminders"
	cbDeleteReminderMenu = "delete_reminder_menu"
	cbConverter          = "currency_converter"
	cbConvert            = "convert_currency"
	cbQuickConvert       = "quick_convert"
	cbExchangeRates      = "exchange_rates"
	cbRatesAmount        = "enter_amount_for_rates"
	cbRefreshRates       = "refresh_rates"
)

const (
	cbCompletePlanPrefix   = "complete_plan_"
	cbDeletePlanPrefix     = "delete_plan_"
	cbDeleteReminderPrefix = "delete_reminder_"
	cbReminderDatePrefix   = "rem_date_"
	cbReminderRepeatPrefix = "rem_repeat_"
	cbQuickPrefix          = "quick_"
)

const (
	btnBackToMenu     = "🔙 Назад до меню"
	btnBack           = "🔙 Назад"
	btnBackConverter  = "🔙 Назад до конвертера"
	btnBackSettings   = "🔙 Назад до налаштувань"
	btnBackReminders  = "🔙 Назад до нагадувань"
	btnAdminPanel     = "🛡️ Адмін панель"
	btnOpenAdminPanel = "🛡️ Відкрити адмін панель"
)

// quickAmounts are the preset conversions offered by the quick converter.
var quickAmounts = []struct {
	amount int
	code   string
}{
	{100, "USD"}, {1000, "USD"}, {100, "EUR"}, {1000, "EUR"}, {1000, "UAH"}, {10000, "UAH"},
}

var repeatLabels = map[string]string{
	model.RepeatNone:    "Одноразово",
	model.RepeatDaily:   "Щодня",
	model.RepeatWeekly:  "Щотижня",
	model.RepeatMonthly: "Щомісяця",
}

func row(text, data string) []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(text, data))
}

// mainMenuKeyboard builds the root menu. Telegram only accepts https URL buttons, so a
// non-public admin URL falls back to a callback that explains how to reach the panel.
func mainMenuKeyboard(showAdmin bool, adminURL string) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		row("📋 Допомога", cbHelp),
		row("ℹ️ Інформація", cbInfo),
		row("📝 План на завтра", cbTomorrowPlan),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🌤️ Погода", cbWeather),
			tgbotapi.NewInlineKeyboardButtonData("💵 Курс долара", cbRates),
		),
		row("💱 Конвертер валют", cbConverter),
		row("📊 Статистика", cbStatistics),
		row("⏰ Налаштування нагадувань", cbReminderSettings),
	}
	if showAdmin {
		if isPublicURL(adminURL) {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL(btnAdminPanel, adminURL)))
		} else {
			rows = append(rows, row(btnAdminPanel, cbAdminPanel))
		}
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func backToMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(row(btnBackToMenu, cbBackToMenu))
}

func adminLinkKeyboard(url string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL(btnOpenAdminPanel, url)),
		row(btnBackToMenu, cbBackToMenu),
	)
}

func adminRetryKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		row("🔄 Спробувати знову", cbAdminPanel),
		row(btnBackToMenu, cbBackToMenu),
	)
}

func tomorrowPlanKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		row("➕ Додати план", cbAddPlan),
		row("👁️ Подивитися план", cbViewTomorrow),
		row("📋 Історія планів", cbPlanHistory),
		row(btnBack, cbBackToMenu),
	)
}

func cancelPlanKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(row("↩️ Скасувати", cbCancelPlan))
}

func planKeyboard(plan model.Plan) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, 3)
	if !plan.Completed {
		rows = append(rows, row("✅ Позначити виконаним", fmt.Sprintf("%s%d", cbCompletePlanPrefix, plan.ID)))
	}
	rows = append(rows,
		row("🗑️ Видалити план", fmt.Sprintf("%s%d", cbDeletePlanPrefix, plan.ID)),
		row(btnBack, cbTomorrowPlan),
	)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func backToPlanKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(row(btnBack, cbTomorrowPlan))
}

func settingsKeyboard(enabled bool) tgbotapi.InlineKeyboardMarkup {
	toggle := "✅ Увімкнути нагадування"
	if enabled {
		toggle = "❌ Вимкнути нагадування"
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		row(toggle, cbToggleReminder),
		row("🕐 Змінити час нагадування", cbChangeReminderTime),
		row("📅 Створити нагадування", cbCreateReminder),
		row("📋 Мої нагадування", cbMyReminders),
		row(btnBackToMenu, cbBackToMenu),
	)
}

func backToSettingsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(row(btnBackSettings, cbReminderSettings))
}

// reminderDateKeyboard offers today and the next six days, two per row.
func reminderDateKeyboard(today time.Time) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, 5)
	var current []tgbotapi.InlineKeyboardButton
	for i := 0; i < 7; i++ {
		label := today.AddDate(0, 0, i).Format("02.01")
		switch i {
		case 0:
			label = "Сьогодні"
		case 1:
			label = "Завтра"
		}
		current = append(current, tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("%s%d", cbReminderDatePrefix, i)))
		if len(current) == 2 {
			rows = append(rows, current)
			current = nil
		}
	}
	if len(current) > 0 {
		rows = append(rows, current)
	}
	rows = append(rows, row(btnBackSettings, cbReminderSettings))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func repeatKeyboard() tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, 5)
	for _, kind := range []string{model.RepeatNone, model.RepeatDaily, model.RepeatWeekly, model.RepeatMonthly} {
		rows = append(rows, row(repeatLabels[kind], cbReminderRepeatPrefix+kind))
	}
	rows = append(rows, row(btnBackSettings, cbReminderSettings))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func remindersKeyboard(hasAny bool) tgbotapi.InlineKeyboardMarkup {
	if !hasAny {
		return backToSettingsKeyboard()
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		row("🗑️ Видалити нагадування", cbDeleteReminderMenu),
		row(btnBackSettings, cbReminderSettings),
	)
}

func deleteRemindersKeyboard(reminders []model.ReminderRow) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(reminders)+1)
	for _, r := range reminders {
		label := fmt.Sprintf("🗑️ %s %s %s", formatDate(r.ReminderDate), r.ReminderTime, shortText(r.Message, 20))
		rows = append(rows, row(label, fmt.Sprintf("%s%d", cbDeleteReminderPrefix, r.ID)))
	}
	rows = append(rows, row(btnBackReminders, cbMyReminders))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func converterKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		row("💱 Конвертувати валюту", cbConvert),
		row("⚡ Швидка конвертація", cbQuickConvert),
		row("📊 Курси валют", cbExchangeRates),
		row("🔄 Оновити курси", cbRefreshRates),
		row(btnBackToMenu, cbBackToMenu),
	)
}

func quickConvertKeyboard() tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(quickAmounts)+1)
	for _, q := range quickAmounts {
		rows = append(rows, row(fmt.Sprintf("💰 %d %s", q.amount, q.code), fmt.Sprintf("%s%d_%s", cbQuickPrefix, q.amount, strings.ToLower(q.code))))
	}
	rows = append(rows, row(btnBackConverter, cbConverter))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func afterConversionKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		row("💱 Конвертувати іншу суму", cbConvert),
		row("📊 Курси валют", cbExchangeRates),
		row(btnBackConverter, cbConverter),
	)
}

func ratesKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		row("💰 Ввести суму", cbRatesAmount),
		row("🔄 Оновити курси", cbRefreshRates),
		row(btnBackConverter, cbConverter),
	)
}

func backToConverterKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(row(btnBackConverter, cbConverter))
}
