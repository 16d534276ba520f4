// Package conversation renders stored chat history into the prompt the
// reasoning model consumes. Pure, no I/O.
package conversation

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"telemind/app/store"

	_ "embed"

	"github.com/elliotchance/pie/v2"
)

//go:embed system_prompt.txt
var systemPromptTemplate string

const noResultSentinel = "no result"

type Builder struct {
	assistantID int64
}

func NewBuilder(assistantID int64) *Builder {
	return &Builder{assistantID: assistantID}
}

// Build renders the prompt for one response cycle. Messages are expected
// most-recent-first, as the repository returns them; entries sent at or after
// lastSeen are marked new.
func (b *Builder) Build(chat *store.Chat, messages []*store.Message, lastSeen, now time.Time) string {
	var log strings.Builder

	for _, msg := range pie.Reverse(messages) {
		switch msg.Kind {
		case store.MessageText:
			log.WriteString(b.renderText(msg, lastSeen))
		case store.MessageReflection:
			log.WriteString(b.renderReflection(msg))
		case store.MessageActionRecord:
			log.WriteString(b.renderActionRecord(msg))
		case store.MessageNotification:
			log.WriteString(b.renderNotification(msg))
		}
	}

	templateValues := map[string]any{
		"user_instructions": chat.Settings.Prompt,
		"current_time":      formatTime(now),
		"assistant_id":      b.assistantID,
		"chat_id":           chat.ID,
		"chat_kind":         chat.Kind,
		"chat_title":        chat.Title,
		"chat_username":     chat.Username,
		"chat_messages":     strings.TrimRight(log.String(), "\n"),
	}

	prompt := systemPromptTemplate
	for key, value := range templateValues {
		prompt = strings.ReplaceAll(prompt, "{"+key+"}", fmt.Sprint(value))
	}

	return prompt
}

func (b *Builder) renderText(msg *store.Message, lastSeen time.Time) string {
	if msg.Content == "" {
		return ""
	}

	class := "old"
	if !msg.SentAt.Before(lastSeen) {
		class = "new"
	}

	return fmt.Sprintf("<message id=%d from_user_id=%d date=%q class=%s>%s</message>\n",
		msg.ID, msg.FromUserID, formatTime(msg.SentAt), class, msg.Content)
}

func (b *Builder) renderReflection(msg *store.Message) string {
	return fmt.Sprintf("<reflection date=%q>%s</reflection>\n", formatTime(msg.SentAt), msg.Content)
}

func (b *Builder) renderActionRecord(msg *store.Message) string {
	var payload store.ActionRecordPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		slog.Warn("Skipping malformed action record", "message_id", msg.ID, "error", err)
		return ""
	}

	var out strings.Builder
	for _, call := range payload.Calls {
		result := noResultSentinel
		if raw, ok := payload.Results[call.ID]; ok && len(raw) > 0 {
			result = string(raw)
		}

		out.WriteString(fmt.Sprintf("<action name=%s args=%s date=%q>%s</action>\n",
			call.Name, string(call.Arguments), formatTime(msg.SentAt), result))
	}

	return out.String()
}

func (b *Builder) renderNotification(msg *store.Message) string {
	return fmt.Sprintf("<note date=%q>%s</note>\n", formatTime(msg.SentAt), msg.Content)
}

func formatTime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}
