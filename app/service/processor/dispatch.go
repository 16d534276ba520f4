package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"telemind/app/service/actions"
	"telemind/app/store"
)

// dispatchActions executes the requested calls sequentially and persists one
// action record for the whole batch. A failing action is recorded as its
// error text and never stops the remaining calls, so the record always holds
// exactly one result per call id.
func (s *Service) dispatchActions(ctx context.Context, chat *store.Chat, available []actions.Descriptor, calls []store.ActionCall) error {
	rt := actions.Runtime{
		Transport:   s.transport,
		Repo:        s.repo,
		Chat:        chat,
		AssistantID: s.transport.AssistantID(),
	}

	results := make(map[string]json.RawMessage, len(calls))

	for _, call := range calls {
		descriptor := actions.Find(available, call.Name)
		if descriptor == nil {
			// Already filtered at extraction; kept as a guard.
			slog.Warn("Skipping unknown action", "chat_id", chat.ID, "name", call.Name)
			results[call.ID] = marshalResult(fmt.Sprintf("unknown action: %s", call.Name))
			continue
		}

		slog.Debug("Running action", "chat_id", chat.ID, "id", call.ID, "name", call.Name)

		value, err := descriptor.Run(ctx, rt, call.Arguments)
		if err != nil {
			slog.Error("Action failed", "chat_id", chat.ID, "id", call.ID, "name", call.Name, "error", err)
			results[call.ID] = marshalResult(err.Error())
			continue
		}

		results[call.ID] = marshalResult(value)
	}

	payload, err := json.Marshal(store.ActionRecordPayload{
		Calls:   calls,
		Results: results,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal action record: %w", err)
	}

	_, err = s.repo.AppendMessage(ctx, &store.Message{
		ChatID:     chat.ID,
		FromUserID: s.transport.AssistantID(),
		Kind:       store.MessageActionRecord,
		Payload:    payload,
	})
	if err != nil {
		return fmt.Errorf("failed to save action record: %w", err)
	}

	slog.Info("Saved action record", "chat_id", chat.ID, "actions", len(calls))

	return nil
}

func marshalResult(value any) json.RawMessage {
	data, err := json.Marshal(value)
	if err != nil {
		data, _ = json.Marshal(fmt.Sprint(value))
	}

	return data
}
