// Package telegram wraps the bot API surface the assistant needs: sending
// messages, typing actions and member moderation.
package telegram

import (
	"log/slog"
	"time"

	"telemind/app/config"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/samber/do"
	"github.com/samber/oops"
)

type Client struct {
	bot *tgbotapi.BotAPI
}

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, oops.Errorf("failed to create telegram bot: %w", err)
	}

	slog.Info("Authorized telegram bot", "username", bot.Self.UserName)

	return &Client{bot: bot}, nil
}

// AssistantID is the bot's own user id, used as the author of persisted
// reflections and action records.
func (c *Client) AssistantID() int64 {
	return c.bot.Self.ID
}

func (c *Client) Updates() tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	return c.bot.GetUpdatesChan(u)
}

func (c *Client) StopUpdates() {
	c.bot.StopReceivingUpdates()
}

func (c *Client) SendMessage(chatID int64, text string, replyTo int64) (int64, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if replyTo != 0 {
		msg.ReplyToMessageID = int(replyTo)
	}

	sent, err := c.bot.Send(msg)
	if err != nil {
		return 0, oops.Errorf("failed to send message: %w", err)
	}

	return int64(sent.MessageID), nil
}

func (c *Client) SendTyping(chatID int64) error {
	action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)

	if _, err := c.bot.Request(action); err != nil {
		return oops.Errorf("failed to send chat action: %w", err)
	}

	return nil
}

// RestrictMember mutes (canSend=false) or unmutes a member. A zero until
// means the restriction is permanent.
func (c *Client) RestrictMember(chatID, userID int64, canSend bool, until time.Time) error {
	request := tgbotapi.RestrictChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{
			ChatID: chatID,
			UserID: userID,
		},
		Permissions: &tgbotapi.ChatPermissions{
			CanSendMessages: canSend,
		},
	}
	if !until.IsZero() {
		request.UntilDate = until.Unix()
	}

	if _, err := c.bot.Request(request); err != nil {
		return oops.Errorf("failed to restrict chat member: %w", err)
	}

	return nil
}

func (c *Client) BanMember(chatID, userID int64, until time.Time) error {
	request := tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{
			ChatID: chatID,
			UserID: userID,
		},
	}
	if !until.IsZero() {
		request.UntilDate = until.Unix()
	}

	if _, err := c.bot.Request(request); err != nil {
		return oops.Errorf("failed to ban chat member: %w", err)
	}

	return nil
}

func (c *Client) UnbanMember(chatID, userID int64) error {
	request := tgbotapi.UnbanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{
			ChatID: chatID,
			UserID: userID,
		},
		OnlyIfBanned: true,
	}

	if _, err := c.bot.Request(request); err != nil {
		return oops.Errorf("failed to unban chat member: %w", err)
	}

	return nil
}
