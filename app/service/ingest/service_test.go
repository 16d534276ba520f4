package ingest

import (
	"context"
	"testing"
	"time"

	"telemind/app/store"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	store.Repository

	chats    []*store.Chat
	appended []*store.Message
}

func (f *fakeRepo) UpsertChat(_ context.Context, chat *store.Chat) error {
	f.chats = append(f.chats, chat)
	return nil
}

func (f *fakeRepo) AppendMessage(_ context.Context, msg *store.Message) (*store.Message, error) {
	f.appended = append(f.appended, msg)
	return msg, nil
}

func textMessage() *tgbotapi.Message {
	return &tgbotapi.Message{
		Text: "hello there",
		Date: int(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).Unix()),
		Chat: &tgbotapi.Chat{
			ID:       42,
			Type:     "supergroup",
			Title:    "dev chat",
			UserName: "devchat",
		},
		From: &tgbotapi.User{ID: 7},
	}
}

func TestHandleMessageStoresChatAndText(t *testing.T) {
	repo := &fakeRepo{}
	s := &Service{repo: repo}

	require.NoError(t, s.HandleMessage(context.Background(), textMessage()))

	require.Len(t, repo.chats, 1)
	assert.Equal(t, int64(42), repo.chats[0].ID)
	assert.Equal(t, store.ChatSupergroup, repo.chats[0].Kind)
	assert.Equal(t, "dev chat", repo.chats[0].Title)

	require.Len(t, repo.appended, 1)
	msg := repo.appended[0]
	assert.Equal(t, store.MessageText, msg.Kind)
	assert.Equal(t, "hello there", msg.Content)
	assert.Equal(t, int64(7), msg.FromUserID)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), msg.SentAt.UTC())
}

func TestHandleMessageDropsNonText(t *testing.T) {
	repo := &fakeRepo{}
	s := &Service{repo: repo}

	msg := textMessage()
	msg.Text = ""

	require.NoError(t, s.HandleMessage(context.Background(), msg))
	require.NoError(t, s.HandleMessage(context.Background(), nil))

	assert.Empty(t, repo.chats)
	assert.Empty(t, repo.appended)
}
