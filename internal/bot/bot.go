package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"plannerbot/internal/assistant"
	"plannerbot/internal/config"
	"plannerbot/internal/currency"
	"plannerbot/internal/lookup"
	"plannerbot/internal/model"
	"plannerbot/internal/repository"
	"plannerbot/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stagePlanText
	stageReminderTime
	stageCustomClock
	stageCustomMessage
	stageCustomRepeat
	stageConvert
	stageRatesAmount
)

type conversationState struct {
	stage    conversationStage
	reminder service.CustomReminder
}

// Services are the collaborators the bot drives from chat input.
type Services struct {
	Users     *repository.UserRepository
	Plans     *service.PlanService
	Lookup    *lookup.Client
	Currency  *currency.Converter
	Assistant *assistant.Assistant
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api       *tgbotapi.BotAPI
	users     *repository.UserRepository
	plans     *service.PlanService
	lookup    *lookup.Client
	currency  *currency.Converter
	assistant *assistant.Assistant
	config    config.Config
	http      *http.Client
	log       *logrus.Entry

	conversations map[int64]*conversationState
	mu            sync.Mutex
}

func New(api *tgbotapi.BotAPI, svc Services, cfg config.Config, log *logrus.Entry) *Bot {
	return &Bot{
		api:           api,
		users:         svc.Users,
		plans:         svc.Plans,
		lookup:        svc.Lookup,
		currency:      svc.Currency,
		assistant:     svc.Assistant,
		config:        cfg,
		http:          &http.Client{Timeout: 3 * time.Second},
		log:           log,
		conversations: make(map[int64]*conversationState),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.WithField("account", b.api.Self.UserName).Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		b.handleUpdate(ctx, update)
	}
	return nil
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			b.log.WithError(err).WithField("data", update.CallbackQuery.Data).Error("handle callback")
		}
	case update.Message != nil:
		if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			return
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			b.log.WithError(err).Error("handle message")
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}

	if msg.IsCommand() {
		b.log.WithFields(logrus.Fields{"user": msg.From.ID, "command": msg.Command()}).Info("command")
		return b.handleCommand(ctx, msg)
	}

	if state := b.getConversation(msg.From.ID); state != nil {
		b.log.WithFields(logrus.Fields{"user": msg.From.ID, "stage": state.stage}).Debug("conversation step")
		return b.handleConversation(ctx, msg, state)
	}

	if b.assistant.Enabled() && strings.TrimSpace(msg.Text) != "" {
		return b.sendText(msg.Chat.ID, escape(b.assistant.Reply(ctx, msg.Text)))
	}
	return b.showMainMenu(ctx, msg.Chat.ID, msg.From.ID)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start", "menu":
		b.clearConversation(msg.From.ID)
		return b.showMainMenu(ctx, msg.Chat.ID, msg.From.ID)
	case "help":
		return b.sendWithReplyMarkup(msg.Chat.ID, helpText, backToMenuKeyboard())
	case "admin":
		return b.showAdminPanel(ctx, msg.Chat.ID, msg.From.ID)
	case "cancel":
		b.clearConversation(msg.From.ID)
		return b.sendWithReplyMarkup(msg.Chat.ID, "⏪ Введення скасовано.", backToMenuKeyboard())
	default:
		return b.sendText(msg.Chat.ID, "Команда не підтримується. Загляньте в /help.")
	}
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message, state *conversationState) error {
	userID, chatID := msg.From.ID, msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	switch state.stage {
	case stagePlanText:
		plan, created, err := b.plans.SaveTomorrow(ctx, userID, text)
		if errors.Is(err, service.ErrEmptyPlan) {
			return b.sendWithReplyMarkup(chatID, "✏️ План не може бути порожнім. Напишіть, що плануєте на завтра.", cancelPlanKeyboard())
		}
		if err != nil {
			return err
		}
		b.clearConversation(userID)
		verb := "оновлено"
		if created {
			verb = "збережено"
		}
		return b.sendWithReplyMarkup(chatID,
			fmt.Sprintf("✅ План на завтра %s!\n\n📝 %s", verb, escape(plan.Text)),
			tomorrowPlanKeyboard())

	case stageReminderTime:
		clock, err := b.plans.SetReminderTime(ctx, userID, text)
		if err != nil {
			return b.sendWithReplyMarkup(chatID, "❌ Невірний формат часу. Використовуйте ГГ:ХХ, наприклад 07:30.", backToSettingsKeyboard())
		}
		b.clearConversation(userID)
		return b.sendWithReplyMarkup(chatID, fmt.Sprintf("✅ Час нагадування змінено на %s", clock), backToSettingsKeyboard())

	case stageCustomClock:
		clock, err := service.NormalizeClock(text)
		if err != nil {
			return b.sendWithReplyMarkup(chatID, "❌ Невірний формат часу. Використовуйте ГГ:ХХ, наприклад 18:00.", backToSettingsKeyboard())
		}
		state.reminder.Clock = clock
		state.stage = stageCustomMessage
		b.setConversation(userID, state)
		return b.sendWithReplyMarkup(chatID, "💬 Напишіть текст нагадування:", backToSettingsKeyboard())

	case stageCustomMessage:
		if text == "" {
			return b.sendWithReplyMarkup(chatID, "💬 Текст нагадування не може бути порожнім.", backToSettingsKeyboard())
		}
		state.reminder.Message = text
		state.stage = stageCustomRepeat
		b.setConversation(userID, state)
		return b.sendWithReplyMarkup(chatID, "🔁 Як часто повторювати?", repeatKeyboard())

	case stageConvert:
		amount, from, to, err := currency.ParseRequest(text)
		if err != nil {
			return b.sendWithReplyMarkup(chatID,
				fmt.Sprintf("❌ %s\n\n💡 Приклад: <code>100 USD UAH</code>", escape(err.Error())),
				backToConverterKeyboard())
		}
		conv, err := b.currency.Convert(amount, from, to)
		if err != nil {
			return b.sendWithReplyMarkup(chatID, "❌ "+escape(err.Error()), backToConverterKeyboard())
		}
		b.clearConversation(userID)
		return b.sendWithReplyMarkup(chatID, currency.Format(conv), afterConversionKeyboard())

	case stageRatesAmount:
		amount, base, err := parseRatesRequest(text)
		if err != nil {
			return b.sendWithReplyMarkup(chatID, "❌ "+escape(err.Error())+"\n\n💡 Приклад: <code>500 EUR</code>", backToConverterKeyboard())
		}
		table, err := b.currency.Table(base, amount)
		if err != nil {
			return b.sendWithReplyMarkup(chatID, "❌ "+escape(err.Error()), backToConverterKeyboard())
		}
		b.clearConversation(userID)
		return b.sendWithReplyMarkup(chatID, table, ratesKeyboard())

	case stageCustomRepeat:
		return b.sendWithReplyMarkup(chatID, "🔁 Оберіть варіант повторення кнопкою нижче.", repeatKeyboard())
	}

	b.clearConversation(userID)
	return b.showMainMenu(ctx, chatID, userID)
}

func (b *Bot) showMainMenu(ctx context.Context, chatID, userID int64) error {
	showAdmin := b.isAdmin(userID)
	adminURL := ""
	if showAdmin {
		adminURL = b.adminURL(ctx)
	}
	return b.sendWithReplyMarkup(chatID, welcomeText, mainMenuKeyboard(showAdmin, adminURL))
}

func (b *Bot) showAdminPanel(ctx context.Context, chatID, userID int64) error {
	if !b.isAdmin(userID) {
		return b.sendText(chatID, "⛔ Доступ заборонено.")
	}
	url := b.adminURL(ctx)
	if !isPublicURL(url) {
		return b.sendWithReplyMarkup(chatID,
			"⚠️ <b>Адмін панель недоступна ззовні</b>\n\n"+
				"🔧 Переконайтеся, що:\n• тунель запущений\n• адмін панель працює\n\n"+
				fmt.Sprintf("Локальна адреса: %s", escape(url)),
			adminRetryKeyboard())
	}
	return b.sendWithReplyMarkup(chatID,
		fmt.Sprintf("🛡️ <b>Адмін панель</b>\n\n🔗 <a href=\"%s\">Відкрити адмін панель</a>", escape(url)),
		adminLinkKeyboard(url))
}

// isAdmin treats every user as admin when ADMIN_ID is unset.
func (b *Bot) isAdmin(userID int64) bool {
	return b.config.AdminID == 0 || b.config.AdminID == userID
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.users.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.LastName, from.UserName)
}

func (b *Bot) sendText(chatID int64, text string) error {
	return b.sendWithReplyMarkup(chatID, text, nil)
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

func escape(s string) string {
	return html.EscapeString(s)
}
