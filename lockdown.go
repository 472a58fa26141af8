package moderation

import (
	"context"

	"go.uber.org/zap"
)

const defaultLockdownReason = "No reason"

// Lockdowns stops everyone from sending messages in a channel and keeps an
// audit log of every lockdown.
type Lockdowns struct {
	guilds *Guilds
	gw     Gateway
	bus    *Bus
	clock  Clock
	log    *zap.Logger
}

func NewLockdowns(guilds *Guilds, gw Gateway, bus *Bus, clock Clock, log *zap.Logger) *Lockdowns {
	return &Lockdowns{
		guilds: guilds,
		gw:     gw,
		bus:    bus,
		clock:  clock,
		log:    log.Named("lockdowns"),
	}
}

func (l *Lockdowns) Lock(ctx context.Context, guildID, channelID, reason string) (*LockdownEntry, error) {
	if guildID == "" {
		return nil, ErrMissingGuild
	}
	if channelID == "" {
		return nil, ErrMissingChannel
	}
	if reason == "" {
		reason = defaultLockdownReason
	}

	if err := l.gw.LockChannel(ctx, guildID, channelID, reason); err != nil {
		return nil, sideEffect("lock channel", err)
	}

	var entry LockdownEntry
	_, err := l.guilds.Update(ctx, guildID, func(rec *CommunityRecord) error {
		entry = LockdownEntry{
			ID:        rec.NextLockdownID,
			ChannelID: channelID,
			Reason:    reason,
			Timestamp: l.clock.Now(),
		}
		rec.NextLockdownID++
		rec.Lockdowns = append(rec.Lockdowns, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("channel locked", zap.String("guild", guildID), zap.String("channel", channelID))
	l.bus.Emit(LockdownStarted{GuildID: guildID, Lockdown: entry})
	return &entry, nil
}

// Unlock lifts a lockdown. The channel must have at least one recorded
// lockdown.
func (l *Lockdowns) Unlock(ctx context.Context, guildID, channelID string) (*LockdownEntry, error) {
	if channelID == "" {
		return nil, ErrMissingChannel
	}
	rec, err := l.guilds.GetOrCreate(ctx, guildID)
	if err != nil {
		return nil, err
	}

	var last *LockdownEntry
	for i := len(rec.Lockdowns) - 1; i >= 0; i-- {
		if rec.Lockdowns[i].ChannelID == channelID {
			last = &rec.Lockdowns[i]
			break
		}
	}
	if last == nil {
		return nil, ErrNoLockdown
	}

	if err := l.gw.UnlockChannel(ctx, guildID, channelID); err != nil {
		return nil, sideEffect("unlock channel", err)
	}

	l.log.Info("channel unlocked", zap.String("guild", guildID), zap.String("channel", channelID))
	l.bus.Emit(LockdownEnded{GuildID: guildID, ChannelID: channelID, Reason: last.Reason})
	return last, nil
}

// History lists every lockdown of the guild, oldest first.
func (l *Lockdowns) History(ctx context.Context, guildID string) ([]LockdownEntry, error) {
	rec, err := l.guilds.GetOrCreate(ctx, guildID)
	if err != nil {
		return nil, err
	}
	out := make([]LockdownEntry, len(rec.Lockdowns))
	copy(out, rec.Lockdowns)
	return out, nil
}
