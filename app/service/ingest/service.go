// Package ingest consumes incoming bot updates and persists them as chat
// activity for the poll loop to pick up.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"telemind/app/client/telegram"
	"telemind/app/store"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/samber/do"
)

type Source interface {
	Updates() tgbotapi.UpdatesChannel
	StopUpdates()
}

type Service struct {
	repo   store.Repository
	source Source
}

func New(di *do.Injector) (*Service, error) {
	return &Service{
		repo:   do.MustInvoke[store.Repository](di),
		source: do.MustInvoke[*telegram.Client](di),
	}, nil
}

func (s *Service) Run(ctx context.Context) {
	updates := s.source.Updates()

	for {
		select {
		case <-ctx.Done():
			s.source.StopUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}

			msg := update.Message
			if msg == nil {
				msg = update.EditedMessage
			}

			if err := s.HandleMessage(ctx, msg); err != nil {
				slog.Error("Failed to ingest message", "error", err)
			}
		}
	}
}

// HandleMessage upserts the chat and stores the text, so the next poll pass
// sees the chat as changed. Non-text messages are dropped.
func (s *Service) HandleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg == nil || msg.Text == "" || msg.Chat == nil {
		return nil
	}

	err := s.repo.UpsertChat(ctx, &store.Chat{
		ID:       msg.Chat.ID,
		Kind:     store.ChatKind(msg.Chat.Type),
		Title:    msg.Chat.Title,
		Username: msg.Chat.UserName,
	})
	if err != nil {
		return err
	}

	var fromID int64
	if msg.From != nil {
		fromID = msg.From.ID
	}

	_, err = s.repo.AppendMessage(ctx, &store.Message{
		ChatID:     msg.Chat.ID,
		FromUserID: fromID,
		Kind:       store.MessageText,
		Content:    msg.Text,
		SentAt:     time.Unix(int64(msg.Date), 0),
	})
	if err != nil {
		return err
	}

	slog.Debug("Ingested message", "chat_id", msg.Chat.ID, "from_user_id", fromID)

	return nil
}
