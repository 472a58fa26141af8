package moderation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// EscalationScope selects which warnings count towards the escalation ladder.
type EscalationScope string

const (
	// ScopeMember counts only the warned member's warnings.
	ScopeMember EscalationScope = "member"
	// ScopeGuild counts every warning in the guild.
	ScopeGuild EscalationScope = "guild"
)

func ParseEscalationScope(s string) (EscalationScope, error) {
	switch EscalationScope(s) {
	case "":
		return ScopeMember, nil
	case ScopeMember, ScopeGuild:
		return EscalationScope(s), nil
	}
	return "", fmt.Errorf("unknown escalation scope %q", s)
}

const (
	muteThreshold = 3
	kickThreshold = 6

	escalationMuteDuration = time.Hour
	escalationMuteReason   = "Reached warning threshold (automatic mute)."
	escalationKickReason   = "Reached warning threshold (automatic kick)."
)

type WarnRequest struct {
	GuildID     string
	MemberID    string
	ModeratorID string
	ChannelID   string
	Reason      string
}

type Warns struct {
	guilds *Guilds
	mutes  *Mutes
	gw     Gateway
	bus    *Bus
	scope  EscalationScope
	log    *zap.Logger
}

func NewWarns(guilds *Guilds, mutes *Mutes, gw Gateway, bus *Bus, scope EscalationScope, log *zap.Logger) *Warns {
	if scope == "" {
		scope = ScopeMember
	}
	return &Warns{
		guilds: guilds,
		mutes:  mutes,
		gw:     gw,
		bus:    bus,
		scope:  scope,
		log:    log.Named("warns"),
	}
}

// Create records a warning and walks the escalation ladder. An error from
// the escalation step is returned alongside the persisted warning.
func (w *Warns) Create(ctx context.Context, req WarnRequest) (*WarningEntry, error) {
	if req.GuildID == "" {
		return nil, ErrMissingGuild
	}
	if req.MemberID == "" {
		return nil, ErrMissingMember
	}
	if req.Reason == "" {
		req.Reason = defaultReason
	}

	var (
		entry WarningEntry
		count int
	)
	_, err := w.guilds.Update(ctx, req.GuildID, func(rec *CommunityRecord) error {
		entry = WarningEntry{
			ID:          rec.NextWarnID,
			GuildID:     req.GuildID,
			MemberID:    req.MemberID,
			ModeratorID: req.ModeratorID,
			ChannelID:   req.ChannelID,
			Reason:      req.Reason,
		}
		rec.NextWarnID++
		rec.Warnings = append(rec.Warnings, entry)

		if w.scope == ScopeGuild {
			count = len(rec.Warnings)
		} else {
			count = len(rec.memberWarnings(req.MemberID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.log.Info("member warned",
		zap.String("guild", entry.GuildID),
		zap.String("member", entry.MemberID),
		zap.Int("id", entry.ID),
		zap.Int("count", count),
	)
	w.bus.Emit(WarnCreated{Warning: entry})

	switch count {
	case muteThreshold:
		return &entry, w.escalateMute(ctx, entry)
	case kickThreshold:
		return &entry, w.escalateKick(ctx, entry)
	}
	return &entry, nil
}

func (w *Warns) escalateMute(ctx context.Context, warning WarningEntry) error {
	mute, err := w.mutes.Create(ctx, MuteRequest{
		Kind:        Temporary,
		GuildID:     warning.GuildID,
		MemberID:    warning.MemberID,
		ModeratorID: w.gw.SelfID(),
		ChannelID:   warning.ChannelID,
		Reason:      escalationMuteReason,
		Duration:    escalationMuteDuration,
	})
	if err != nil {
		w.log.Warn("could not apply escalation mute",
			zap.String("guild", warning.GuildID),
			zap.String("member", warning.MemberID),
			zap.Error(err),
		)
		if IsPolicy(err) {
			return nil
		}
		return err
	}
	w.bus.Emit(WarnEscalatedToMute{Warning: warning, Mute: *mute})
	return nil
}

func (w *Warns) escalateKick(ctx context.Context, warning WarningEntry) error {
	if err := w.gw.Kick(ctx, warning.GuildID, warning.MemberID, escalationKickReason); err != nil {
		w.log.Warn("could not apply escalation kick",
			zap.String("guild", warning.GuildID),
			zap.String("member", warning.MemberID),
			zap.Error(err),
		)
		return sideEffect("kick member", err)
	}

	_, err := w.guilds.Update(ctx, warning.GuildID, func(rec *CommunityRecord) error {
		kept := make([]WarningEntry, 0, len(rec.Warnings))
		for _, x := range rec.Warnings {
			if x.MemberID != warning.MemberID {
				kept = append(kept, x)
			}
		}
		rec.Warnings = kept
		return nil
	})
	if err != nil {
		return err
	}

	w.log.Info("member kicked for warnings", zap.String("guild", warning.GuildID), zap.String("member", warning.MemberID))
	w.bus.Emit(WarnEscalatedToKick{Warning: warning})
	return nil
}

// Delete removes the most recent warning of the member.
func (w *Warns) Delete(ctx context.Context, guildID, memberID string) (*WarningEntry, error) {
	if memberID == "" {
		return nil, ErrMissingMember
	}

	var entry WarningEntry
	_, err := w.guilds.Update(ctx, guildID, func(rec *CommunityRecord) error {
		for i := len(rec.Warnings) - 1; i >= 0; i-- {
			if rec.Warnings[i].MemberID != memberID {
				continue
			}
			entry = rec.Warnings[i]
			rec.Warnings = append(rec.Warnings[:i:i], rec.Warnings[i+1:]...)
			return nil
		}
		return ErrNoWarnings
	})
	if err != nil {
		return nil, err
	}

	w.bus.Emit(WarnDeleted{Warning: entry})
	return &entry, nil
}

// Latest returns the most recent warning of the member, or nil.
func (w *Warns) Latest(ctx context.Context, guildID, memberID string) (*WarningEntry, error) {
	all, err := w.All(ctx, guildID, memberID)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return &all[len(all)-1], nil
}

// All returns the member's warnings oldest first, or nil.
func (w *Warns) All(ctx context.Context, guildID, memberID string) ([]WarningEntry, error) {
	if memberID == "" {
		return nil, ErrMissingMember
	}
	rec, err := w.guilds.GetOrCreate(ctx, guildID)
	if err != nil {
		return nil, err
	}
	return rec.memberWarnings(memberID), nil
}
