package moderation

import (
	"sync"
)

type EventKind string

const (
	KindMuteCreated         EventKind = "mute_created"
	KindMuteEnded           EventKind = "mute_ended"
	KindWarnCreated         EventKind = "warn_created"
	KindWarnDeleted         EventKind = "warn_deleted"
	KindWarnEscalatedToMute EventKind = "warn_escalated_to_mute"
	KindWarnEscalatedToKick EventKind = "warn_escalated_to_kick"
	KindLockdownStarted     EventKind = "lockdown_started"
	KindLockdownEnded       EventKind = "lockdown_ended"
)

// Event is a lifecycle notification emitted after state has been persisted.
type Event interface {
	Kind() EventKind
	Guild() string
}

type MuteCreated struct{ Mute MuteEntry }
type MuteEnded struct{ Mute MuteEntry }
type WarnCreated struct{ Warning WarningEntry }
type WarnDeleted struct{ Warning WarningEntry }

type WarnEscalatedToMute struct {
	Warning WarningEntry
	Mute    MuteEntry
}

type WarnEscalatedToKick struct{ Warning WarningEntry }

type LockdownStarted struct {
	GuildID  string
	Lockdown LockdownEntry
}

type LockdownEnded struct {
	GuildID   string
	ChannelID string
	Reason    string
}

func (MuteCreated) Kind() EventKind         { return KindMuteCreated }
func (MuteEnded) Kind() EventKind           { return KindMuteEnded }
func (WarnCreated) Kind() EventKind         { return KindWarnCreated }
func (WarnDeleted) Kind() EventKind         { return KindWarnDeleted }
func (WarnEscalatedToMute) Kind() EventKind { return KindWarnEscalatedToMute }
func (WarnEscalatedToKick) Kind() EventKind { return KindWarnEscalatedToKick }
func (LockdownStarted) Kind() EventKind     { return KindLockdownStarted }
func (LockdownEnded) Kind() EventKind       { return KindLockdownEnded }

func (e MuteCreated) Guild() string         { return e.Mute.GuildID }
func (e MuteEnded) Guild() string           { return e.Mute.GuildID }
func (e WarnCreated) Guild() string         { return e.Warning.GuildID }
func (e WarnDeleted) Guild() string         { return e.Warning.GuildID }
func (e WarnEscalatedToMute) Guild() string { return e.Warning.GuildID }
func (e WarnEscalatedToKick) Guild() string { return e.Warning.GuildID }
func (e LockdownStarted) Guild() string     { return e.GuildID }
func (e LockdownEnded) Guild() string       { return e.GuildID }

// Bus fans lifecycle events out to registered handlers. Handlers run
// synchronously on the emitting goroutine, in registration order.
type Bus struct {
	mu       sync.RWMutex
	handlers []func(Event)
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) AddHandler(h func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Channel returns a buffered channel that receives every event. A full
// buffer blocks the emitter, so the consumer has to keep up.
func (b *Bus) Channel(size int) <-chan Event {
	ch := make(chan Event, size)
	b.AddHandler(func(e Event) {
		ch <- e
	})
	return ch
}

func (b *Bus) Emit(e Event) {
	b.mu.RLock()
	handlers := make([]func(Event), len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}
