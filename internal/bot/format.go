package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"plannerbot/internal/currency"
	"plannerbot/internal/model"
	"plannerbot/internal/service"
	"plannerbot/internal/tunnel"
)

const welcomeText = "👋 Вітаю! Я планувальник дня: плани на завтра, нагадування, погода та конвертер валют.\n\n" +
	"💡 Оберіть пункт меню нижче."

const helpText = "📋 <b>Допомога</b>\n\n" +
	"/start - Головне меню\n" +
	"/menu - Оновити меню\n" +
	"/help - Ця довідка\n" +
	"/admin - Адмін панель\n" +
	"/cancel - Скасувати введення\n\n" +
	"💬 Звичайні повідомлення поза меню передаються асистенту, якщо він налаштований."

const infoText = "ℹ️ <b>Інформація</b>\n\n" +
	"📝 Плани на завтра з історією та статистикою\n" +
	"⏰ Автоматичні нагадування з повторенням\n" +
	"💱 Конвертер з курсами НБУ\n" +
	"🛡️ Веб-панель адміністратора"

// adminURL resolves the panel address: a running tunnel first, then ADMIN_URL, then localhost.
func (b *Bot) adminURL(ctx context.Context) string {
	if url, err := tunnel.PublicURL(ctx, b.http, b.config.TunnelAPIURL); err == nil {
		return url
	}
	if b.config.AdminURL != "" {
		return b.config.AdminURL
	}
	return fmt.Sprintf("http://localhost:%d", b.config.AdminPort)
}

func isPublicURL(url string) bool {
	return strings.HasPrefix(url, "https://")
}

func formatDate(date string) string {
	t, err := time.Parse(service.DateLayout, date)
	if err != nil {
		return "Невідомо"
	}
	return t.Format("02.01.2006")
}

func planStatus(p model.Plan) string {
	if p.Completed {
		return "✅ Виконано"
	}
	return "⏳ В процесі"
}

func formatPlan(p model.Plan) string {
	return fmt.Sprintf("📝 <b>План на %s</b>\n\n%s\n\nСтатус: %s", formatDate(p.PlanDate), escape(p.Text), planStatus(p))
}

func formatHistory(plans []model.Plan) string {
	if len(plans) == 0 {
		return "📝 У вас поки немає планів!\n\n💡 Створіть свій перший план."
	}
	var b strings.Builder
	b.WriteString("📋 <b>Ваші останні плани</b>\n\n")
	for _, p := range plans {
		icon := "⏳"
		if p.Completed {
			icon = "✅"
		}
		fmt.Fprintf(&b, "%s %s: %s\n\n", icon, formatDate(p.PlanDate), escape(p.Text))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatWeek(week []model.DayStat) string {
	var b strings.Builder
	b.WriteString("📊 <b>Ваша статистика за 7 днів</b>\n\n")
	var created, completed int64
	for _, d := range week {
		fmt.Fprintf(&b, "📅 %s: ➕ %d / ✅ %d\n", formatDate(d.Date), d.Created, d.Completed)
		created += d.Created
		completed += d.Completed
	}
	fmt.Fprintf(&b, "\nВсього: створено %d, виконано %d", created, completed)
	return b.String()
}

func formatSettings(u model.User) string {
	status := "❌ Вимкнено"
	if u.ReminderEnabled {
		status = "✅ Увімкнено"
	}
	return fmt.Sprintf("⏰ <b>Налаштування нагадувань</b>\n\nСтатус: %s\nЧас: %s", status, u.ReminderTime)
}

func formatReminders(reminders []model.ReminderRow) string {
	if len(reminders) == 0 {
		return "📭 У вас немає активних нагадувань."
	}
	var b strings.Builder
	b.WriteString("📋 <b>Ваші нагадування</b>\n\n")
	for _, r := range reminders {
		fmt.Fprintf(&b, "⏰ %s %s (%s)\n", formatDate(r.ReminderDate), r.ReminderTime, repeatLabels[r.RepeatType])
		if r.Message != "" {
			fmt.Fprintf(&b, "💬 %s\n", escape(r.Message))
		}
		if r.PlanText != "" {
			fmt.Fprintf(&b, "📝 %s\n", escape(shortText(r.PlanText, 60)))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func shortText(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}

func parseID(data, prefix string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimPrefix(data, prefix), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id in %q", data)
	}
	return uint(id), nil
}

// parseQuick reads "quick_<amount>_<code>".
func parseQuick(data string) (float64, string, error) {
	parts := strings.Split(strings.TrimPrefix(data, cbQuickPrefix), "_")
	if len(parts) != 2 {
		return 0, "", fmt.Errorf("invalid quick conversion %q", data)
	}
	amount, err := strconv.ParseFloat(parts[0], 64)
	if err != nil || amount <= 0 {
		return 0, "", fmt.Errorf("invalid quick amount %q", data)
	}
	code := strings.ToUpper(parts[1])
	if !currency.IsSupported(code) {
		return 0, "", currency.ErrUnsupported
	}
	return amount, code, nil
}

// parseRatesRequest reads "<amount> [BASE]"; the base defaults to USD.
func parseRatesRequest(text string) (float64, string, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 || len(fields) > 2 {
		return 0, "", errors.New("Формат: сума та код валюти")
	}
	amount, err := strconv.ParseFloat(strings.ReplaceAll(fields[0], ",", "."), 64)
	if err != nil || amount <= 0 {
		return 0, "", errors.New("Сума має бути додатним числом")
	}
	base := "USD"
	if len(fields) == 2 {
		base = strings.ToUpper(fields[1])
	}
	if !currency.IsSupported(base) {
		return 0, "", currency.ErrUnsupported
	}
	return amount, base, nil
}
