package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"telemind/app/store"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

var catalog = []Descriptor{
	{
		Name: "send_message",
		Description: "Send a message to the current chat. HTML tags <b>, <i>, <u>, <s>, <code>, <pre>, " +
			"<a href=\"...\"> and <blockquote> are allowed. Do not use reply_to_message_id unless necessary.",
		Parameters: objectSchema(map[string]any{
			"text":                stringProp("Message text"),
			"reply_to_message_id": intProp("Id of the message to reply to"),
		}, "text"),
		Applies: anyChat,
		Run:     runSendMessage,
	},
	{
		Name: "mute",
		Description: "Forbid a chat member to send messages. " +
			"until_seconds - mute duration in seconds (less than 30 seconds, more than 366 days or not provided - muted forever).",
		Parameters: objectSchema(map[string]any{
			"user_id":       intProp("Id of the user to mute"),
			"until_seconds": intProp("Mute duration in seconds"),
		}, "user_id"),
		Applies: groupChatOnly,
		Run:     runMute,
	},
	{
		Name:        "unmute",
		Description: "Allow a previously muted chat member to send messages again.",
		Parameters: objectSchema(map[string]any{
			"user_id": intProp("Id of the user to unmute"),
		}, "user_id"),
		Applies: groupChatOnly,
		Run:     runUnmute,
	},
	{
		Name: "ban",
		Description: "Ban a member from the chat. " +
			"until_seconds - ban duration in seconds (less than 30 seconds, more than 366 days or not provided - banned forever).",
		Parameters: objectSchema(map[string]any{
			"user_id":       intProp("Id of the user to ban"),
			"until_seconds": intProp("Ban duration in seconds"),
		}, "user_id"),
		Applies: groupChatOnly,
		Run:     runBan,
	},
	{
		Name:        "unban",
		Description: "Lift a ban from a chat member.",
		Parameters: objectSchema(map[string]any{
			"user_id": intProp("Id of the user to unban"),
		}, "user_id"),
		Applies: groupChatOnly,
		Run:     runUnban,
	},
	{
		Name: "update_settings",
		Description: "Update the assistant settings of the current chat: user instructions, message context limit, " +
			"max silence time and min spacing between responses. Omitted fields keep their values.",
		Parameters: objectSchema(map[string]any{
			"instructions":        stringProp("New user instructions, also usable as a persistent memory"),
			"context_limit":       intProp("How many recent messages to include in the context"),
			"max_silence_seconds": intProp("Respond after this many seconds of silence even without new messages"),
			"min_spacing_seconds": intProp("Minimum seconds between consecutive responses"),
		}),
		Applies: anyChat,
		Run:     runUpdateSettings,
	},
	{
		Name: "schedule_note",
		Description: "Schedule a note to yourself; it is not visible to users and will appear in the chat context " +
			"when due. Provide either delay_seconds or fire_at.",
		Parameters: objectSchema(map[string]any{
			"text":          stringProp("Note text"),
			"delay_seconds": intProp("Fire after this many seconds"),
			"fire_at":       stringProp("Fire at this RFC3339 date"),
		}, "text"),
		Applies: anyChat,
		Run:     runScheduleNote,
	},
}

func runSendMessage(ctx context.Context, rt Runtime, args json.RawMessage) (any, error) {
	var request struct {
		Text      string `json:"text"`
		ReplyToID int64  `json:"reply_to_message_id"`
	}
	if err := json.Unmarshal(args, &request); err != nil {
		return nil, oops.Errorf("invalid send_message arguments: %w", err)
	}

	messageID, err := rt.Transport.SendMessage(rt.Chat.ID, request.Text, request.ReplyToID)
	if err != nil {
		return nil, err
	}

	// The bot's own messages become part of the stored history too. Updates
	// do not echo them back, so they are saved here.
	_, err = rt.Repo.AppendMessage(ctx, &store.Message{
		ChatID:     rt.Chat.ID,
		FromUserID: rt.AssistantID,
		Kind:       store.MessageText,
		Content:    request.Text,
	})
	if err != nil {
		return nil, oops.Errorf("sent but failed to store message %d: %w", messageID, err)
	}

	return map[string]any{"message_id": messageID}, nil
}

type memberArgs struct {
	UserID       int64  `json:"user_id"`
	UntilSeconds *int64 `json:"until_seconds"`
}

func (a memberArgs) until() time.Time {
	if a.UntilSeconds == nil || *a.UntilSeconds <= 0 {
		return time.Time{}
	}

	return time.Now().Add(time.Duration(*a.UntilSeconds) * time.Second)
}

func runMute(_ context.Context, rt Runtime, args json.RawMessage) (any, error) {
	var request memberArgs
	if err := json.Unmarshal(args, &request); err != nil {
		return nil, oops.Errorf("invalid mute arguments: %w", err)
	}

	if err := rt.Transport.RestrictMember(rt.Chat.ID, request.UserID, false, request.until()); err != nil {
		return nil, err
	}

	return fmt.Sprintf("muted user %d", request.UserID), nil
}

func runUnmute(_ context.Context, rt Runtime, args json.RawMessage) (any, error) {
	var request memberArgs
	if err := json.Unmarshal(args, &request); err != nil {
		return nil, oops.Errorf("invalid unmute arguments: %w", err)
	}

	if err := rt.Transport.RestrictMember(rt.Chat.ID, request.UserID, true, time.Time{}); err != nil {
		return nil, err
	}

	return fmt.Sprintf("unmuted user %d", request.UserID), nil
}

func runBan(_ context.Context, rt Runtime, args json.RawMessage) (any, error) {
	var request memberArgs
	if err := json.Unmarshal(args, &request); err != nil {
		return nil, oops.Errorf("invalid ban arguments: %w", err)
	}

	if err := rt.Transport.BanMember(rt.Chat.ID, request.UserID, request.until()); err != nil {
		return nil, err
	}

	return fmt.Sprintf("banned user %d", request.UserID), nil
}

func runUnban(_ context.Context, rt Runtime, args json.RawMessage) (any, error) {
	var request memberArgs
	if err := json.Unmarshal(args, &request); err != nil {
		return nil, oops.Errorf("invalid unban arguments: %w", err)
	}

	if err := rt.Transport.UnbanMember(rt.Chat.ID, request.UserID); err != nil {
		return nil, err
	}

	return fmt.Sprintf("unbanned user %d", request.UserID), nil
}

func runUpdateSettings(ctx context.Context, rt Runtime, args json.RawMessage) (any, error) {
	var request struct {
		Instructions      *string `json:"instructions"`
		ContextLimit      *int    `json:"context_limit"`
		MaxSilenceSeconds *int64  `json:"max_silence_seconds"`
		MinSpacingSeconds *int64  `json:"min_spacing_seconds"`
	}
	if err := json.Unmarshal(args, &request); err != nil {
		return nil, oops.Errorf("invalid update_settings arguments: %w", err)
	}

	settings, err := rt.Repo.UpdateSettings(ctx, rt.Chat.ID, store.SettingsPatch{
		Prompt:        request.Instructions,
		ContextLimit:  request.ContextLimit,
		MaxSilenceSec: request.MaxSilenceSeconds,
		MinSpacingSec: request.MinSpacingSeconds,
	})
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"instructions":        settings.Prompt,
		"context_limit":       settings.ContextLimit,
		"max_silence_seconds": durationSeconds(settings.MaxSilence),
		"min_spacing_seconds": durationSeconds(settings.MinSpacing),
	}, nil
}

func runScheduleNote(ctx context.Context, rt Runtime, args json.RawMessage) (any, error) {
	var request struct {
		Text         string `json:"text"`
		DelaySeconds *int64 `json:"delay_seconds"`
		FireAt       string `json:"fire_at"`
	}
	if err := json.Unmarshal(args, &request); err != nil {
		return nil, oops.Errorf("invalid schedule_note arguments: %w", err)
	}

	var fireAt time.Time
	switch {
	case request.FireAt != "":
		parsed, err := time.Parse(time.RFC3339, request.FireAt)
		if err != nil {
			return nil, oops.Errorf("invalid fire_at date: %w", err)
		}
		fireAt = parsed
	case request.DelaySeconds != nil:
		fireAt = time.Now().Add(time.Duration(*request.DelaySeconds) * time.Second)
	default:
		return nil, oops.Errorf("either delay_seconds or fire_at is required")
	}

	err := rt.Repo.AddScheduledNote(ctx, &store.ScheduledNote{
		ID:     uuid.NewString(),
		ChatID: rt.Chat.ID,
		Text:   request.Text,
		FireAt: fireAt,
	})
	if err != nil {
		return nil, err
	}

	return fmt.Sprintf("scheduled at %s", fireAt.Format(time.RFC3339)), nil
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func intProp(description string) map[string]any {
	return map[string]any{"type": "integer", "description": description}
}

func durationSeconds(d *time.Duration) *int64 {
	if d == nil {
		return nil
	}

	seconds := int64(*d / time.Second)
	return &seconds
}
