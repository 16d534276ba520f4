package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()

	repo, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	return repo
}

func seedChat(t *testing.T, repo Repository, chatID int64, kind ChatKind) {
	t.Helper()

	require.NoError(t, repo.UpsertChat(context.Background(), &Chat{
		ID:       chatID,
		Kind:     kind,
		Title:    "test chat",
		Username: "testchat",
	}))
}

func int64Ptr(v int64) *int64 { return &v }

func TestGetChatNotFound(t *testing.T) {
	repo := newTestStore(t)

	_, err := repo.GetChat(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetChatDefaultsWithoutSettingsRow(t *testing.T) {
	repo := newTestStore(t)
	seedChat(t, repo, 1, ChatGroup)

	chat, err := repo.GetChat(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, ChatGroup, chat.Kind)
	assert.Equal(t, "test chat", chat.Title)
	assert.Equal(t, DefaultPrompt, chat.Settings.Prompt)
	assert.Equal(t, DefaultContextLimit, chat.Settings.ContextLimit)
	assert.Nil(t, chat.Settings.MaxSilence)
	assert.Nil(t, chat.Settings.MinSpacing)
}

func TestUpdateSettingsMergesPatch(t *testing.T) {
	repo := newTestStore(t)
	seedChat(t, repo, 1, ChatGroup)
	ctx := context.Background()

	prompt := "be formal"
	settings, err := repo.UpdateSettings(ctx, 1, SettingsPatch{
		Prompt:        &prompt,
		MinSpacingSec: int64Ptr(10),
	})
	require.NoError(t, err)
	assert.Equal(t, "be formal", settings.Prompt)
	require.NotNil(t, settings.MinSpacing)
	assert.Equal(t, 10*time.Second, *settings.MinSpacing)

	// A second partial patch keeps earlier values.
	settings, err = repo.UpdateSettings(ctx, 1, SettingsPatch{
		MaxSilenceSec: int64Ptr(3600),
	})
	require.NoError(t, err)
	assert.Equal(t, "be formal", settings.Prompt)
	require.NotNil(t, settings.MaxSilence)
	assert.Equal(t, time.Hour, *settings.MaxSilence)
	require.NotNil(t, settings.MinSpacing)
	assert.Equal(t, 10*time.Second, *settings.MinSpacing)

	chat, err := repo.GetChat(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "be formal", chat.Settings.Prompt)
	require.NotNil(t, chat.Settings.MaxSilence)
	assert.Equal(t, time.Hour, *chat.Settings.MaxSilence)
}

func TestListChangedSettingsWatermark(t *testing.T) {
	repo := newTestStore(t)
	seedChat(t, repo, 1, ChatGroup)
	seedChat(t, repo, 2, ChatPrivate)
	ctx := context.Background()

	before := time.Now().Add(-time.Second)

	_, err := repo.UpdateSettings(ctx, 1, SettingsPatch{MinSpacingSec: int64Ptr(5)})
	require.NoError(t, err)

	changed, err := repo.ListChangedSettings(ctx, before)
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, int64(1), changed[0].ChatID)

	changed, err = repo.ListChangedSettings(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, changed)
}

func TestMessagesRoundTrip(t *testing.T) {
	repo := newTestStore(t)
	seedChat(t, repo, 1, ChatGroup)
	ctx := context.Background()

	base := time.Now().Add(-time.Minute)
	for i, content := range []string{"one", "two", "three"} {
		_, err := repo.AppendMessage(ctx, &Message{
			ChatID:     1,
			FromUserID: 7,
			Kind:       MessageText,
			Content:    content,
			SentAt:     base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	messages, err := repo.ListRecentMessages(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, messages, 2)

	// Most recent first, limit applied.
	assert.Equal(t, "three", messages[0].Content)
	assert.Equal(t, "two", messages[1].Content)
	assert.Equal(t, MessageText, messages[0].Kind)
	assert.Equal(t, int64(7), messages[0].FromUserID)
}

func TestAppendMessagePayloadRoundTrip(t *testing.T) {
	repo := newTestStore(t)
	seedChat(t, repo, 1, ChatGroup)
	ctx := context.Background()

	payload, err := json.Marshal(ActionRecordPayload{
		Calls:   []ActionCall{{ID: "a1", Name: "send_message", Arguments: json.RawMessage(`{"text":"hi"}`)}},
		Results: map[string]json.RawMessage{"a1": json.RawMessage(`{"message_id":42}`)},
	})
	require.NoError(t, err)

	_, err = repo.AppendMessage(ctx, &Message{
		ChatID:     1,
		FromUserID: 99,
		Kind:       MessageActionRecord,
		Payload:    payload,
	})
	require.NoError(t, err)

	messages, err := repo.ListRecentMessages(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	var decoded ActionRecordPayload
	require.NoError(t, json.Unmarshal(messages[0].Payload, &decoded))
	require.Len(t, decoded.Calls, 1)
	assert.Equal(t, "a1", decoded.Calls[0].ID)
	assert.JSONEq(t, `{"message_id":42}`, string(decoded.Results["a1"]))
}

func TestListChatsWithNewMessagesExcludesKinds(t *testing.T) {
	repo := newTestStore(t)
	seedChat(t, repo, 1, ChatGroup)
	seedChat(t, repo, 2, ChatPrivate)
	ctx := context.Background()

	since := time.Now().Add(-time.Second)

	_, err := repo.AppendMessage(ctx, &Message{ChatID: 1, FromUserID: 7, Kind: MessageText, Content: "hello"})
	require.NoError(t, err)
	_, err = repo.AppendMessage(ctx, &Message{ChatID: 2, FromUserID: 99, Kind: MessageActionRecord, Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)

	chatIDs, err := repo.ListChatsWithNewMessages(ctx, since, []MessageKind{MessageActionRecord})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, chatIDs)

	// Without the exclusion both chats show up.
	chatIDs, err = repo.ListChatsWithNewMessages(ctx, since, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2}, chatIDs)

	// Old watermark in the future sees nothing.
	chatIDs, err = repo.ListChatsWithNewMessages(ctx, time.Now().Add(time.Minute), nil)
	require.NoError(t, err)
	assert.Empty(t, chatIDs)
}

func TestScheduledNotesLifecycle(t *testing.T) {
	repo := newTestStore(t)
	seedChat(t, repo, 1, ChatGroup)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.AddScheduledNote(ctx, &ScheduledNote{
		ID:     "note-due",
		ChatID: 1,
		Text:   "check in",
		FireAt: now.Add(-time.Minute),
	}))
	require.NoError(t, repo.AddScheduledNote(ctx, &ScheduledNote{
		ID:     "note-future",
		ChatID: 1,
		Text:   "later",
		FireAt: now.Add(time.Hour),
	}))

	due, err := repo.ListDueNotes(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "note-due", due[0].ID)
	assert.Equal(t, "check in", due[0].Text)

	require.NoError(t, repo.MarkNotesDone(ctx, []string{"note-due"}))

	due, err = repo.ListDueNotes(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestMarkNotesDoneEmpty(t *testing.T) {
	repo := newTestStore(t)

	assert.NoError(t, repo.MarkNotesDone(context.Background(), nil))
}
