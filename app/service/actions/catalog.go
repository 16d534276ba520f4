// Package actions holds the closed catalog of side-effecting operations the
// reasoning output may request, filtered per chat kind.
package actions

import (
	"context"
	"encoding/json"
	"time"

	"telemind/app/client/aiprovider"
	"telemind/app/store"

	"github.com/elliotchance/pie/v2"
)

// Transport is the narrow chat-transport surface actions execute against.
type Transport interface {
	AssistantID() int64
	SendMessage(chatID int64, text string, replyTo int64) (int64, error)
	SendTyping(chatID int64) error
	RestrictMember(chatID, userID int64, canSend bool, until time.Time) error
	BanMember(chatID, userID int64, until time.Time) error
	UnbanMember(chatID, userID int64) error
}

// Runtime is the ambient state one action execution is bound to.
type Runtime struct {
	Transport   Transport
	Repo        store.Repository
	Chat        *store.Chat
	AssistantID int64
}

// Descriptor is one catalog entry: a name with an argument schema, a chat
// applicability predicate and the bound execution.
type Descriptor struct {
	Name        string
	Description string
	Parameters  map[string]any
	Applies     func(chat *store.Chat) bool
	Run         func(ctx context.Context, rt Runtime, args json.RawMessage) (any, error)
}

func (d Descriptor) Spec() aiprovider.ActionSpec {
	return aiprovider.ActionSpec{
		Name:        d.Name,
		Description: d.Description,
		Parameters:  d.Parameters,
	}
}

// Available resolves the subset of the catalog valid in the given chat.
func Available(chat *store.Chat) []Descriptor {
	return pie.Filter(catalog, func(d Descriptor) bool {
		return d.Applies(chat)
	})
}

func Specs(descriptors []Descriptor) []aiprovider.ActionSpec {
	return pie.Map(descriptors, Descriptor.Spec)
}

// Find returns the descriptor with the given name, nil if absent.
func Find(descriptors []Descriptor, name string) *Descriptor {
	index := pie.FindFirstUsing(descriptors, func(d Descriptor) bool {
		return d.Name == name
	})
	if index < 0 {
		return nil
	}

	return &descriptors[index]
}

func anyChat(_ *store.Chat) bool {
	return true
}

func groupChatOnly(chat *store.Chat) bool {
	return chat.Kind.IsGroup()
}
