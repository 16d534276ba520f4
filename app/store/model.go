package store

import (
	"encoding/json"
	"time"
)

type ChatKind string

const (
	ChatPrivate    ChatKind = "private"
	ChatGroup      ChatKind = "group"
	ChatSupergroup ChatKind = "supergroup"
	ChatChannel    ChatKind = "channel"
)

func (k ChatKind) IsGroup() bool {
	return k == ChatGroup || k == ChatSupergroup
}

type MessageKind string

const (
	MessageText         MessageKind = "text"
	MessageReflection   MessageKind = "reflection"
	MessageActionRecord MessageKind = "action_record"
	MessageNotification MessageKind = "notification"
)

type Chat struct {
	ID       int64
	Kind     ChatKind
	Title    string
	Username string

	Settings ChatSettings
}

const (
	DefaultPrompt       = "You are a helpful assistant."
	DefaultContextLimit = 10
)

type ChatSettings struct {
	ChatID       int64
	Prompt       string
	ContextLimit int
	// Nil means "never fire on silence alone"
	MaxSilence *time.Duration
	// Nil means "no debounce floor"
	MinSpacing *time.Duration
	UpdatedAt  time.Time
}

// SettingsPatch carries a partial settings update; nil fields are left untouched.
type SettingsPatch struct {
	Prompt        *string
	ContextLimit  *int
	MaxSilenceSec *int64
	MinSpacingSec *int64
}

type Message struct {
	ID         int64
	ChatID     int64
	FromUserID int64
	Kind       MessageKind
	Content    string
	Payload    json.RawMessage
	SentAt     time.Time
}

// ActionCall is one action requested by the reasoning output,
// keyed by the provider-issued correlation id.
type ActionCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ActionRecordPayload is the structured payload of a MessageActionRecord.
// Results always holds exactly one entry per call id.
type ActionRecordPayload struct {
	Calls   []ActionCall               `json:"action_calls"`
	Results map[string]json.RawMessage `json:"action_results"`
}

type ScheduledNote struct {
	ID     string
	ChatID int64
	Text   string
	FireAt time.Time
	Done   bool
}
