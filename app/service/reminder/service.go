// Package reminder turns due scheduled notes into notification messages,
// which the poll loop then picks up as ordinary chat activity.
package reminder

import (
	"context"
	"log/slog"
	"time"

	"telemind/app/client/telegram"
	"telemind/app/config"
	"telemind/app/store"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
)

type Service struct {
	cfg         *config.Config
	repo        store.Repository
	assistantID int64
}

func New(di *do.Injector) (*Service, error) {
	return &Service{
		cfg:         do.MustInvoke[*config.Config](di),
		repo:        do.MustInvoke[store.Repository](di),
		assistantID: do.MustInvoke[*telegram.Client](di).AssistantID(),
	}, nil
}

func (s *Service) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.Engine.ReminderInterval()):
		}

		if err := s.sweepOnce(ctx); err != nil {
			slog.Error("Reminder sweep failed", "error", err)
		}
	}
}

func (s *Service) sweepOnce(ctx context.Context) error {
	notes, err := s.repo.ListDueNotes(ctx, time.Now())
	if err != nil {
		return err
	}

	if len(notes) == 0 {
		return nil
	}

	var delivered []string
	for _, note := range notes {
		_, err = s.repo.AppendMessage(ctx, &store.Message{
			ChatID:     note.ChatID,
			FromUserID: s.assistantID,
			Kind:       store.MessageNotification,
			Content:    note.Text,
		})
		if err != nil {
			slog.Error("Failed to deliver scheduled note", "note_id", note.ID, "error", err)
			continue
		}

		delivered = append(delivered, note.ID)
	}

	if err = s.repo.MarkNotesDone(ctx, delivered); err != nil {
		return err
	}

	slog.Info("Delivered scheduled notes",
		"due", len(notes),
		"delivered", len(delivered),
		"chat_ids", pie.Unique(pie.Map(notes, func(n *store.ScheduledNote) int64 { return n.ChatID })))

	return nil
}
