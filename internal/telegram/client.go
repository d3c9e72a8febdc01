package telegram

import (
	"context"
	"errors"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ErrNoToken is returned when the client was built without a bot token.
var ErrNoToken = errors.New("bot token not configured")

// BotInfo is the identity reported by getMe.
type BotInfo struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Status   string `json:"status"`
}

// Client talks to the Bot API for the admin panel and the reminder dispatcher.
// Unlike tgbotapi.NewBotAPI it does not call getMe on construction, so a process can start
// with a bad or missing token and report the problem per call.
type Client struct {
	api *tgbotapi.BotAPI
}

// NewClient builds a client against the public Bot API.
func NewClient(token string) *Client {
	return NewClientWithEndpoint(token, tgbotapi.APIEndpoint, &http.Client{Timeout: 10 * time.Second})
}

// NewClientWithEndpoint points the client at a custom Bot API endpoint
// (format "<base>/bot%s/%s", as tgbotapi expects).
func NewClientWithEndpoint(token, endpoint string, httpClient *http.Client) *Client {
	if token == "" {
		return &Client{}
	}
	api := &tgbotapi.BotAPI{
		Token:  token,
		Client: httpClient,
		Buffer: 100,
	}
	api.SetAPIEndpoint(endpoint)
	return &Client{api: api}
}

// FromBotAPI wraps an already authorized bot.
func FromBotAPI(api *tgbotapi.BotAPI) *Client {
	return &Client{api: api}
}

// Configured reports whether a token was supplied.
func (c *Client) Configured() bool {
	return c != nil && c.api != nil
}

// GetMe returns the bot identity.
func (c *Client) GetMe(ctx context.Context) (BotInfo, error) {
	if !c.Configured() {
		return BotInfo{}, ErrNoToken
	}
	if err := ctx.Err(); err != nil {
		return BotInfo{}, err
	}
	self, err := c.api.GetMe()
	if err != nil {
		return BotInfo{}, err
	}
	return BotInfo{
		ID:       self.ID,
		Name:     self.FirstName,
		Username: self.UserName,
		Status:   "active",
	}, nil
}

// SendMessage delivers an HTML-formatted text message to chatID.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	return c.SendWithMarkup(ctx, chatID, text, nil)
}

// SendWithMarkup delivers a message with an optional reply markup (inline keyboard etc).
func (c *Client) SendWithMarkup(ctx context.Context, chatID int64, text string, markup interface{}) error {
	if !c.Configured() {
		return ErrNoToken
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	_, err := c.api.Send(msg)
	return err
}
