package telegram

import (
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier defines the interface for the outbound notification channel.
// Alerts and digests are separate logical targets.
type Notifier interface {
	SendAlert(text string) (string, error)
	SendDigest(text string) (string, error)
}

// client is an implementation of Notifier backed by a Telegram bot.
type client struct {
	bot           *tgbotapi.BotAPI
	alertsChatID  int64
	digestsChatID int64
}

// NewClient creates a new Telegram notifier client.
func NewClient(botToken string, alertsChatID, digestsChatID int64) (Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	return &client{
		bot:           bot,
		alertsChatID:  alertsChatID,
		digestsChatID: digestsChatID,
	}, nil
}

// SendAlert sends a message to the alerts chat and returns the message ID.
func (c *client) SendAlert(text string) (string, error) {
	return c.send(c.alertsChatID, text)
}

// SendDigest sends a message to the digests chat and returns the message ID.
func (c *client) SendDigest(text string) (string, error) {
	return c.send(c.digestsChatID, text)
}

func (c *client) send(chatID int64, text string) (string, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true
	sent, err := c.bot.Send(msg)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(sent.MessageID), nil
}
