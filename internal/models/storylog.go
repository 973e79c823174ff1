package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxLogEntries bounds the story log; the oldest entries are evicted first.
const MaxLogEntries = 100

// LogKind classifies a story log entry.
type LogKind string

const (
	LogNarration       LogKind = "narration"
	LogPlayerAction    LogKind = "player_action"
	LogEvent           LogKind = "event"
	LogError           LogKind = "error_message"
	LogGameOver        LogKind = "game_over"
	LogSystemInfo      LogKind = "system_info"
	LogCharacterUpdate LogKind = "character_update"
	LogAssetUpdate     LogKind = "asset_update"
	LogCurrencyUpdate  LogKind = "currency_update"
)

// LogEntry is a single line of adventure history. Entries are append-only;
// nothing edits or removes them except the bounding eviction.
type LogEntry struct {
	ID        string
	Kind      LogKind
	Text      string
	Timestamp time.Time
}

// StoryLog is the bounded, insertion-ordered adventure history. It doubles as
// display data and as the source of short-term context for action prompts.
type StoryLog struct {
	entries []LogEntry
}

// Append records a new entry with a fresh id and the current time, evicting
// the oldest entry when the log exceeds MaxLogEntries.
func (l *StoryLog) Append(kind LogKind, text string) LogEntry {
	e := LogEntry{
		ID:        uuid.NewString(),
		Kind:      kind,
		Text:      text,
		Timestamp: time.Now(),
	}
	l.entries = append(l.entries, e)
	if excess := len(l.entries) - MaxLogEntries; excess > 0 {
		l.entries = append(l.entries[:0:0], l.entries[excess:]...)
	}
	return e
}

// Entries returns the retained history in insertion order.
func (l *StoryLog) Entries() []LogEntry {
	return append([]LogEntry(nil), l.entries...)
}

// Len reports the number of retained entries.
func (l *StoryLog) Len() int { return len(l.entries) }

// Recent extracts the texts of the most recent narration and event entries,
// oldest first, capped at n. This is the short-term context fed back into the
// next action prompt.
func (l *StoryLog) Recent(n int) []string {
	var texts []string
	for _, e := range l.entries {
		if e.Kind == LogNarration || e.Kind == LogEvent {
			texts = append(texts, e.Text)
		}
	}
	if len(texts) > n {
		texts = texts[len(texts)-n:]
	}
	return texts
}

// LastOfKind returns the most recent entry of the given kind.
func (l *StoryLog) LastOfKind(kind LogKind) (LogEntry, bool) {
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].Kind == kind {
			return l.entries[i], true
		}
	}
	return LogEntry{}, false
}

// Clone returns an independent copy of the log.
func (l *StoryLog) Clone() StoryLog {
	return StoryLog{entries: append([]LogEntry(nil), l.entries...)}
}
