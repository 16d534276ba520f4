// Package store persists chats, per-chat settings, message history and
// scheduled notes.
package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

type Repository interface {
	// GetChat returns a chat with its settings, ErrNotFound if missing.
	// Chats without a settings row get defaults.
	GetChat(ctx context.Context, chatID int64) (*Chat, error)

	// UpsertChat creates or updates chat metadata.
	UpsertChat(ctx context.Context, chat *Chat) error

	// UpdateSettings applies a partial settings update and returns the merged row.
	UpdateSettings(ctx context.Context, chatID int64, patch SettingsPatch) (*ChatSettings, error)

	// ListChangedSettings returns settings rows updated at or after since.
	ListChangedSettings(ctx context.Context, since time.Time) ([]*ChatSettings, error)

	// ListChatsWithNewMessages returns distinct chat ids having messages sent
	// at or after since, skipping the given kinds.
	ListChatsWithNewMessages(ctx context.Context, since time.Time, excludeKinds []MessageKind) ([]int64, error)

	// ListRecentMessages returns up to limit messages, most recent first.
	ListRecentMessages(ctx context.Context, chatID int64, limit int) ([]*Message, error)

	// AppendMessage stores a new message and returns it with its id assigned.
	AppendMessage(ctx context.Context, msg *Message) (*Message, error)

	AddScheduledNote(ctx context.Context, note *ScheduledNote) error
	ListDueNotes(ctx context.Context, now time.Time) ([]*ScheduledNote, error)
	MarkNotesDone(ctx context.Context, ids []string) error

	Ping(ctx context.Context) error
	Close() error
}
