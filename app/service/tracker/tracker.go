// Package tracker keeps per-chat readiness state for the engine loops.
package tracker

import (
	"time"
)

// ChatState is the in-memory activity record of one chat. It is created the
// first time a chat is observed and lives for the rest of the process.
// All mutation must happen under the engine's tracker lock.
type ChatState struct {
	ChatID int64

	lastProcessed time.Time
	lastUpdated   time.Time
	maxSilence    *time.Duration
	minSpacing    *time.Duration
	lastSeen      time.Time
}

func NewChatState(chatID int64, now time.Time) *ChatState {
	return &ChatState{
		ChatID:        chatID,
		lastProcessed: now,
		lastUpdated:   now,
		lastSeen:      now,
	}
}

func (s *ChatState) ApplySettings(maxSilence, minSpacing *time.Duration) {
	s.maxSilence = maxSilence
	s.minSpacing = minSpacing
}

func (s *ChatState) MarkUpdated(t time.Time) {
	s.lastUpdated = t
}

// LastSeen returns the boundary between already-seen and new history,
// recorded by the last positive readiness check.
func (s *ChatState) LastSeen() time.Time {
	return s.lastSeen
}

// IsReadyToProcess reports whether a response cycle should fire now.
// The check order matters: the silence ceiling proposes, new activity
// overrides, and the spacing floor gates both. Both comparisons are strict,
// so elapsed == maxSilence or elapsed == minSpacing does not fire.
// A positive result advances lastProcessed immediately: a failed cycle still
// burns its spacing window, which keeps a failing backend from being retried
// in a tight loop.
func (s *ChatState) IsReadyToProcess(now time.Time) bool {
	ready := false
	elapsed := now.Sub(s.lastProcessed)

	if s.maxSilence != nil {
		ready = elapsed > *s.maxSilence
	}

	if !s.lastUpdated.Before(s.lastProcessed) {
		ready = true
	}

	if ready && s.minSpacing != nil {
		ready = elapsed > *s.minSpacing
	}

	if ready {
		s.lastSeen = s.lastProcessed
		s.lastProcessed = now
	}

	return ready
}
