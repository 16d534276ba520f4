package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"telemind/app/config"

	"github.com/samber/do"
	"github.com/samber/oops"
	_ "modernc.org/sqlite"
)

var _ do.Shutdownable = (*SQLiteStore)(nil)

type SQLiteStore struct {
	db *sql.DB
}

func New(di *do.Injector) (Repository, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewSQLite(cfg.DB.Path)
}

func NewSQLite(dbPath string) (Repository, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, oops.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, oops.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err = db.Ping(); err != nil {
		return nil, oops.Errorf("failed to ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err = s.initSchema(); err != nil {
		return nil, oops.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS chats (
		id INTEGER PRIMARY KEY,
		kind TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		username TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_settings (
		chat_id INTEGER PRIMARY KEY REFERENCES chats(id),
		prompt TEXT NOT NULL DEFAULT '',
		context_limit INTEGER NOT NULL DEFAULT 10,
		max_silence_sec INTEGER,
		min_spacing_sec INTEGER,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_settings_updated ON chat_settings(updated_at);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chat_id INTEGER NOT NULL REFERENCES chats(id),
		from_user_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		payload TEXT,
		sent_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_chat_sent ON messages(chat_id, sent_at);
	CREATE INDEX IF NOT EXISTS idx_messages_sent ON messages(sent_at);

	CREATE TABLE IF NOT EXISTS scheduled_notes (
		id TEXT PRIMARY KEY,
		chat_id INTEGER NOT NULL REFERENCES chats(id),
		text TEXT NOT NULL,
		fire_at INTEGER NOT NULL,
		done INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_scheduled_notes_due ON scheduled_notes(fire_at) WHERE done = 0;
	`
	if _, err := s.db.Exec(query); err != nil {
		return oops.Errorf("failed to create schema: %w", err)
	}

	return nil
}

func (s *SQLiteStore) GetChat(ctx context.Context, chatID int64) (*Chat, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT c.id, c.kind, c.title, c.username,
		       s.prompt, s.context_limit, s.max_silence_sec, s.min_spacing_sec, s.updated_at
		FROM chats c
		LEFT JOIN chat_settings s ON s.chat_id = c.id
		WHERE c.id = ?`, chatID)

	var (
		chat         Chat
		prompt       sql.NullString
		contextLimit sql.NullInt64
		maxSilence   sql.NullInt64
		minSpacing   sql.NullInt64
		updatedAt    sql.NullInt64
	)

	err := row.Scan(&chat.ID, &chat.Kind, &chat.Title, &chat.Username,
		&prompt, &contextLimit, &maxSilence, &minSpacing, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, oops.Errorf("failed to scan chat row: %w", err)
	}

	chat.Settings = ChatSettings{
		ChatID:       chat.ID,
		Prompt:       DefaultPrompt,
		ContextLimit: DefaultContextLimit,
	}
	if prompt.Valid {
		chat.Settings.Prompt = prompt.String
		chat.Settings.ContextLimit = int(contextLimit.Int64)
		chat.Settings.MaxSilence = secondsPtr(maxSilence)
		chat.Settings.MinSpacing = secondsPtr(minSpacing)
		chat.Settings.UpdatedAt = fromMillis(updatedAt.Int64)
	}

	return &chat, nil
}

func (s *SQLiteStore) UpsertChat(ctx context.Context, chat *Chat) error {
	now := toMillis(time.Now())

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chats (id, kind, title, username, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			title = excluded.title,
			username = excluded.username,
			updated_at = excluded.updated_at`,
		chat.ID, chat.Kind, chat.Title, chat.Username, now, now)
	if err != nil {
		return oops.Errorf("failed to upsert chat: %w", err)
	}

	return nil
}

func (s *SQLiteStore) UpdateSettings(ctx context.Context, chatID int64, patch SettingsPatch) (*ChatSettings, error) {
	chat, err := s.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}

	merged := chat.Settings
	if patch.Prompt != nil {
		merged.Prompt = *patch.Prompt
	}
	if patch.ContextLimit != nil {
		merged.ContextLimit = *patch.ContextLimit
	}
	if patch.MaxSilenceSec != nil {
		d := time.Duration(*patch.MaxSilenceSec) * time.Second
		merged.MaxSilence = &d
	}
	if patch.MinSpacingSec != nil {
		d := time.Duration(*patch.MinSpacingSec) * time.Second
		merged.MinSpacing = &d
	}
	merged.UpdatedAt = time.Now()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chat_settings (chat_id, prompt, context_limit, max_silence_sec, min_spacing_sec, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			prompt = excluded.prompt,
			context_limit = excluded.context_limit,
			max_silence_sec = excluded.max_silence_sec,
			min_spacing_sec = excluded.min_spacing_sec,
			updated_at = excluded.updated_at`,
		chatID, merged.Prompt, merged.ContextLimit,
		durationSeconds(merged.MaxSilence), durationSeconds(merged.MinSpacing),
		toMillis(merged.UpdatedAt))
	if err != nil {
		return nil, oops.Errorf("failed to upsert chat settings: %w", err)
	}

	return &merged, nil
}

func (s *SQLiteStore) ListChangedSettings(ctx context.Context, since time.Time) ([]*ChatSettings, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chat_id, prompt, context_limit, max_silence_sec, min_spacing_sec, updated_at
		FROM chat_settings
		WHERE updated_at >= ?`, toMillis(since))
	if err != nil {
		return nil, oops.Errorf("failed to query changed settings: %w", err)
	}
	defer rows.Close()

	var result []*ChatSettings
	for rows.Next() {
		var (
			cs         ChatSettings
			maxSilence sql.NullInt64
			minSpacing sql.NullInt64
			updatedAt  int64
		)
		if err = rows.Scan(&cs.ChatID, &cs.Prompt, &cs.ContextLimit, &maxSilence, &minSpacing, &updatedAt); err != nil {
			return nil, oops.Errorf("failed to scan settings row: %w", err)
		}

		cs.MaxSilence = secondsPtr(maxSilence)
		cs.MinSpacing = secondsPtr(minSpacing)
		cs.UpdatedAt = fromMillis(updatedAt)
		result = append(result, &cs)
	}

	return result, rows.Err()
}

func (s *SQLiteStore) ListChatsWithNewMessages(ctx context.Context, since time.Time, excludeKinds []MessageKind) ([]int64, error) {
	query := `SELECT DISTINCT chat_id FROM messages WHERE sent_at >= ?`
	args := []any{toMillis(since)}

	if len(excludeKinds) > 0 {
		query += ` AND kind NOT IN (?` + strings.Repeat(",?", len(excludeKinds)-1) + `)`
		for _, kind := range excludeKinds {
			args = append(args, string(kind))
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, oops.Errorf("failed to query chats with new messages: %w", err)
	}
	defer rows.Close()

	var result []int64
	for rows.Next() {
		var chatID int64
		if err = rows.Scan(&chatID); err != nil {
			return nil, oops.Errorf("failed to scan chat id: %w", err)
		}
		result = append(result, chatID)
	}

	return result, rows.Err()
}

func (s *SQLiteStore) ListRecentMessages(ctx context.Context, chatID int64, limit int) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, from_user_id, kind, content, payload, sent_at
		FROM messages
		WHERE chat_id = ?
		ORDER BY sent_at DESC, id DESC
		LIMIT ?`, chatID, limit)
	if err != nil {
		return nil, oops.Errorf("failed to query recent messages: %w", err)
	}
	defer rows.Close()

	var result []*Message
	for rows.Next() {
		var (
			msg     Message
			payload sql.NullString
			sentAt  int64
		)
		if err = rows.Scan(&msg.ID, &msg.ChatID, &msg.FromUserID, &msg.Kind, &msg.Content, &payload, &sentAt); err != nil {
			return nil, oops.Errorf("failed to scan message row: %w", err)
		}

		if payload.Valid {
			msg.Payload = json.RawMessage(payload.String)
		}
		msg.SentAt = fromMillis(sentAt)
		result = append(result, &msg)
	}

	return result, rows.Err()
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *Message) (*Message, error) {
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now()
	}

	var payload any
	if msg.Payload != nil {
		payload = string(msg.Payload)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (chat_id, from_user_id, kind, content, payload, sent_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ChatID, msg.FromUserID, msg.Kind, msg.Content, payload, toMillis(msg.SentAt))
	if err != nil {
		return nil, oops.Errorf("failed to insert message: %w", err)
	}

	msg.ID, err = result.LastInsertId()
	if err != nil {
		return nil, oops.Errorf("failed to get message id: %w", err)
	}

	return msg, nil
}

func (s *SQLiteStore) AddScheduledNote(ctx context.Context, note *ScheduledNote) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_notes (id, chat_id, text, fire_at, done)
		VALUES (?, ?, ?, ?, 0)`,
		note.ID, note.ChatID, note.Text, toMillis(note.FireAt))
	if err != nil {
		return oops.Errorf("failed to insert scheduled note: %w", err)
	}

	return nil
}

func (s *SQLiteStore) ListDueNotes(ctx context.Context, now time.Time) ([]*ScheduledNote, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, text, fire_at
		FROM scheduled_notes
		WHERE done = 0 AND fire_at <= ?`, toMillis(now))
	if err != nil {
		return nil, oops.Errorf("failed to query due notes: %w", err)
	}
	defer rows.Close()

	var result []*ScheduledNote
	for rows.Next() {
		var (
			note   ScheduledNote
			fireAt int64
		)
		if err = rows.Scan(&note.ID, &note.ChatID, &note.Text, &fireAt); err != nil {
			return nil, oops.Errorf("failed to scan scheduled note: %w", err)
		}

		note.FireAt = fromMillis(fireAt)
		result = append(result, &note)
	}

	return result, rows.Err()
}

func (s *SQLiteStore) MarkNotesDone(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query := `UPDATE scheduled_notes SET done = 1 WHERE id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return oops.Errorf("failed to mark notes done: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Shutdown() error {
	return s.Close()
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}

	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

func secondsPtr(v sql.NullInt64) *time.Duration {
	if !v.Valid {
		return nil
	}

	d := time.Duration(v.Int64) * time.Second
	return &d
}

func durationSeconds(d *time.Duration) any {
	if d == nil {
		return nil
	}

	return int64(*d / time.Second)
}
