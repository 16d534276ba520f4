// Package engine drives the chat activity scheduler: a poll loop feeding
// per-chat trackers from the store and a dispatch loop launching response
// cycles for ready chats.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"telemind/app/config"
	"telemind/app/service/processor"
	"telemind/app/service/tracker"
	"telemind/app/store"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
	"golang.org/x/sync/errgroup"
)

type Processor interface {
	ProcessChat(ctx context.Context, chatID int64, lastSeen time.Time) error
}

type Service struct {
	cfg  *config.Config
	repo store.Repository
	proc Processor

	// Guards trackers and every ChatState inside it. Readiness evaluation
	// mutates state, so it happens under the lock too.
	mu       sync.Mutex
	trackers map[int64]*tracker.ChatState
}

func New(di *do.Injector) (*Service, error) {
	return newService(
		do.MustInvoke[*config.Config](di),
		do.MustInvoke[store.Repository](di),
		do.MustInvoke[*processor.Service](di),
	), nil
}

func newService(cfg *config.Config, repo store.Repository, proc Processor) *Service {
	return &Service{
		cfg:      cfg,
		repo:     repo,
		proc:     proc,
		trackers: make(map[int64]*tracker.ChatState),
	}
}

func (s *Service) Run(ctx context.Context) {
	var g errgroup.Group

	g.Go(func() error {
		s.runPollLoop(ctx)
		return nil
	})
	g.Go(func() error {
		s.runDispatchLoop(ctx)
		return nil
	})

	_ = g.Wait()
}

// runPollLoop periodically pulls settings changes and new-message activity
// from the store and folds them into the trackers. The watermark only
// advances after a fully successful pass, so a failed pass retries the same
// window instead of silently skipping it.
func (s *Service) runPollLoop(ctx context.Context) {
	watermark := time.Time{}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		now := time.Now()
		if err := s.pollOnce(ctx, watermark); err != nil {
			slog.Error("Poll pass failed, keeping watermark", "error", err)
		} else {
			watermark = now
		}

		sleepCtx(ctx, s.cfg.Engine.PollInterval())
	}
}

// pollOnce processes one change window [since, now). Settings changes and
// new messages both count as activity; the chat's own action records are
// excluded so a cycle does not retrigger itself.
func (s *Service) pollOnce(ctx context.Context, since time.Time) error {
	changedSettings, err := s.repo.ListChangedSettings(ctx, since)
	if err != nil {
		return err
	}

	for _, settings := range changedSettings {
		s.withTracker(settings.ChatID, func(st *tracker.ChatState) {
			st.ApplySettings(settings.MaxSilence, settings.MinSpacing)
			st.MarkUpdated(since)
		})

		slog.Debug("Applied chat settings", "chat_id", settings.ChatID)
	}

	chatIDs, err := s.repo.ListChatsWithNewMessages(ctx, since, []store.MessageKind{store.MessageActionRecord})
	if err != nil {
		return err
	}

	for _, chatID := range chatIDs {
		s.withTracker(chatID, func(st *tracker.ChatState) {
			st.MarkUpdated(since)
		})

		slog.Debug("Observed chat activity", "chat_id", chatID)
	}

	return nil
}

// withTracker runs fn on the chat's tracker under the lock, creating the
// tracker on first sight.
func (s *Service) withTracker(chatID int64, fn func(st *tracker.ChatState)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.trackers[chatID]
	if !ok {
		st = tracker.NewChatState(chatID, time.Now())
		s.trackers[chatID] = st

		slog.Info("Created chat tracker", "chat_id", chatID)
	}

	fn(st)
}

func (s *Service) runDispatchLoop(ctx context.Context) {
	cadence := s.cfg.Engine.PollInterval()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		start := time.Now()

		launched := s.dispatchTick(ctx, start)
		if launched == 0 {
			sleepCtx(ctx, cadence)
			continue
		}

		// Under load ticks run back to back instead of overlapping.
		if left := cadence - time.Since(start); left > 0 {
			sleepCtx(ctx, left)
		}
	}
}

type readyChat struct {
	chatID   int64
	lastSeen time.Time
}

// dispatchTick evaluates readiness for every tracked chat, launches one
// response cycle per ready chat and waits for the whole batch. Returns the
// number of launched cycles.
func (s *Service) dispatchTick(ctx context.Context, now time.Time) int {
	batch := s.collectReady(now)
	if len(batch) == 0 {
		return 0
	}

	slog.Info("Processing ready chats", "count", len(batch))

	var g errgroup.Group
	for _, ready := range batch {
		ready := ready
		g.Go(func() error {
			start := time.Now()

			if err := s.proc.ProcessChat(ctx, ready.chatID, ready.lastSeen); err != nil {
				slog.Error("Failed to process chat", "chat_id", ready.chatID, "error", err)
				return nil
			}

			slog.Info("Processed chat", "chat_id", ready.chatID, "duration", time.Since(start))
			return nil
		})
	}
	_ = g.Wait()

	return len(batch)
}

// collectReady snapshots the ready set. Selection and lastProcessed
// advancement happen atomically here, so a chat can never have two cycles
// in flight at once.
func (s *Service) collectReady(now time.Time) []readyChat {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []readyChat
	for _, chatID := range pie.Keys(s.trackers) {
		st := s.trackers[chatID]
		if !st.IsReadyToProcess(now) {
			continue
		}

		result = append(result, readyChat{chatID: chatID, lastSeen: st.LastSeen()})
	}

	return result
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
