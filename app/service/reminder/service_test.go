package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"telemind/app/config"
	"telemind/app/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	store.Repository

	due       []*store.ScheduledNote
	appendErr map[string]error

	appended []*store.Message
	done     []string
}

func (f *fakeRepo) ListDueNotes(_ context.Context, _ time.Time) ([]*store.ScheduledNote, error) {
	return f.due, nil
}

func (f *fakeRepo) AppendMessage(_ context.Context, msg *store.Message) (*store.Message, error) {
	if err := f.appendErr[msg.Content]; err != nil {
		return nil, err
	}

	f.appended = append(f.appended, msg)
	return msg, nil
}

func (f *fakeRepo) MarkNotesDone(_ context.Context, ids []string) error {
	f.done = append(f.done, ids...)
	return nil
}

func newTestService(repo *fakeRepo) *Service {
	return &Service{
		cfg:         &config.Config{},
		repo:        repo,
		assistantID: 99,
	}
}

func TestSweepDeliversDueNotes(t *testing.T) {
	repo := &fakeRepo{
		due: []*store.ScheduledNote{
			{ID: "n1", ChatID: 1, Text: "check on the release"},
			{ID: "n2", ChatID: 2, Text: "follow up"},
		},
	}

	require.NoError(t, newTestService(repo).sweepOnce(context.Background()))

	require.Len(t, repo.appended, 2)
	assert.Equal(t, store.MessageNotification, repo.appended[0].Kind)
	assert.Equal(t, int64(99), repo.appended[0].FromUserID)
	assert.Equal(t, "check on the release", repo.appended[0].Content)
	assert.Equal(t, int64(1), repo.appended[0].ChatID)

	assert.ElementsMatch(t, []string{"n1", "n2"}, repo.done)
}

func TestSweepNoDueNotes(t *testing.T) {
	repo := &fakeRepo{}

	require.NoError(t, newTestService(repo).sweepOnce(context.Background()))
	assert.Empty(t, repo.appended)
	assert.Empty(t, repo.done)
}

// A note whose delivery fails stays pending for the next sweep.
func TestSweepKeepsUndeliveredNotes(t *testing.T) {
	repo := &fakeRepo{
		due: []*store.ScheduledNote{
			{ID: "n1", ChatID: 1, Text: "broken"},
			{ID: "n2", ChatID: 2, Text: "fine"},
		},
		appendErr: map[string]error{"broken": errors.New("db locked")},
	}

	require.NoError(t, newTestService(repo).sweepOnce(context.Background()))

	require.Len(t, repo.appended, 1)
	assert.Equal(t, "fine", repo.appended[0].Content)
	assert.Equal(t, []string{"n2"}, repo.done)
}
