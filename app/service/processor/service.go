// Package processor runs one response cycle for a chat that became ready:
// context build, reasoning call, reflection write and action dispatch.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"telemind/app/client/aiprovider"
	"telemind/app/client/telegram"
	"telemind/app/config"
	"telemind/app/service/actions"
	"telemind/app/service/conversation"
	"telemind/app/store"

	"github.com/samber/do"
)

type Reasoner interface {
	Generate(ctx context.Context, prompt string, specs []aiprovider.ActionSpec) (*aiprovider.Result, error)
}

type Service struct {
	cfg       *config.Config
	repo      store.Repository
	ai        Reasoner
	transport actions.Transport
	builder   *conversation.Builder
}

func New(di *do.Injector) (*Service, error) {
	return newService(
		do.MustInvoke[*config.Config](di),
		do.MustInvoke[store.Repository](di),
		do.MustInvoke[*aiprovider.Client](di),
		do.MustInvoke[*telegram.Client](di),
	), nil
}

func newService(cfg *config.Config, repo store.Repository, ai Reasoner, transport actions.Transport) *Service {
	return &Service{
		cfg:       cfg,
		repo:      repo,
		ai:        ai,
		transport: transport,
		builder:   conversation.NewBuilder(transport.AssistantID()),
	}
}

// ProcessChat runs one full response cycle. lastSeen separates already-seen
// history from new history in the rendered context. An error aborts this
// cycle only; the chat stays eligible for the next readiness evaluation.
func (s *Service) ProcessChat(ctx context.Context, chatID int64, lastSeen time.Time) error {
	chat, err := s.repo.GetChat(ctx, chatID)
	if err != nil {
		return fmt.Errorf("failed to get chat %d: %w", chatID, err)
	}

	if !s.cfg.Telegram.DisableTyping {
		if err = s.transport.SendTyping(chat.ID); err != nil {
			slog.Warn("Failed to send typing action", "chat_id", chat.ID, "error", err)
		}
	}

	messages, err := s.repo.ListRecentMessages(ctx, chat.ID, chat.Settings.ContextLimit)
	if err != nil {
		return fmt.Errorf("failed to list recent messages: %w", err)
	}

	prompt := s.builder.Build(chat, messages, lastSeen, time.Now())

	available := actions.Available(chat)

	result, err := s.ai.Generate(ctx, prompt, actions.Specs(available))
	if err != nil {
		return fmt.Errorf("failed to generate response: %w", err)
	}

	if result.Text != "" {
		_, err = s.repo.AppendMessage(ctx, &store.Message{
			ChatID:     chat.ID,
			FromUserID: s.transport.AssistantID(),
			Kind:       store.MessageReflection,
			Content:    result.Text,
		})
		if err != nil {
			return fmt.Errorf("failed to save reflection: %w", err)
		}

		slog.Info("Saved reflection", "chat_id", chat.ID)
	}

	if len(result.Calls) > 0 {
		if err = s.dispatchActions(ctx, chat, available, result.Calls); err != nil {
			return fmt.Errorf("failed to dispatch actions: %w", err)
		}
	}

	return nil
}
