package moderation

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultReason = "No reason provided."
	rejoinReason  = "User rejoined while muted."

	releaseRetry = time.Minute
)

type MuteRequest struct {
	Kind        MuteKind
	GuildID     string
	MemberID    string
	ModeratorID string
	ChannelID   string
	Reason      string
	// Duration is required for Temporary mutes and ignored otherwise.
	Duration time.Duration
}

type timerKey struct {
	guildID  string
	memberID string
	muteID   int
}

// Mutes owns the mute lifecycle of every member in every guild.
type Mutes struct {
	guilds *Guilds
	gw     Gateway
	bus    *Bus
	clock  Clock
	log    *zap.Logger

	mu     sync.Mutex
	timers map[timerKey]Timer
}

func NewMutes(guilds *Guilds, gw Gateway, bus *Bus, clock Clock, log *zap.Logger) *Mutes {
	return &Mutes{
		guilds: guilds,
		gw:     gw,
		bus:    bus,
		clock:  clock,
		log:    log.Named("mutes"),
		timers: make(map[timerKey]Timer),
	}
}

// SetRole configures the role used to silence members.
func (m *Mutes) SetRole(ctx context.Context, guildID, roleID string) error {
	if roleID == "" {
		return ErrMissingRole
	}
	return m.guilds.SetField(ctx, guildID, "muteRole", roleID)
}

// Role returns the configured mute role id, or an empty string.
func (m *Mutes) Role(ctx context.Context, guildID string) (string, error) {
	rec, err := m.guilds.GetOrCreate(ctx, guildID)
	if err != nil {
		return "", err
	}
	return rec.MuteRoleID, nil
}

// Get returns the active mute of a member, or nil if there is none.
func (m *Mutes) Get(ctx context.Context, guildID, memberID string) (*MuteEntry, error) {
	if memberID == "" {
		return nil, ErrMissingMember
	}
	rec, err := m.guilds.GetOrCreate(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if e, ok := rec.mute(memberID); ok {
		return &e, nil
	}
	return nil, nil
}

// Create mutes a member. The entry is persisted before the mute role is
// granted; if granting fails the entry is returned together with a
// SideEffectError and stays persisted, and a temporary one still expires.
//
// If the member already has a mute but not the mute role, the role is granted
// again and the existing entry is returned.
func (m *Mutes) Create(ctx context.Context, req MuteRequest) (*MuteEntry, error) {
	if req.GuildID == "" {
		return nil, ErrMissingGuild
	}
	if req.MemberID == "" {
		return nil, ErrMissingMember
	}
	if _, err := ParseMuteKind(string(req.Kind)); err != nil {
		return nil, err
	}
	if req.Kind == Temporary && req.Duration <= 0 {
		return nil, ErrMissingDuration
	}
	if req.Reason == "" {
		req.Reason = defaultReason
	}

	var (
		entry  MuteEntry
		roleID string
	)
	_, err := m.guilds.Update(ctx, req.GuildID, func(rec *CommunityRecord) error {
		if rec.MuteRoleID == "" {
			return ErrNoMuteRole
		}
		if _, ok := rec.mute(req.MemberID); ok {
			return ErrAlreadyMuted
		}

		entry = MuteEntry{
			ID:          rec.NextMuteID,
			Kind:        req.Kind,
			GuildID:     req.GuildID,
			MemberID:    req.MemberID,
			ModeratorID: req.ModeratorID,
			ChannelID:   req.ChannelID,
			Reason:      req.Reason,
		}
		if req.Kind == Temporary {
			entry.Duration = req.Duration
			entry.ExpiresAt = m.clock.Now().Add(req.Duration)
		}
		rec.NextMuteID++
		rec.Mutes = append(rec.Mutes, entry)
		roleID = rec.MuteRoleID
		return nil
	})
	if errors.Is(err, ErrAlreadyMuted) {
		return m.reapply(ctx, req.GuildID, req.MemberID)
	}
	if err != nil {
		return nil, err
	}

	if err := m.gw.GrantRole(ctx, entry.GuildID, entry.MemberID, roleID); err != nil {
		m.log.Warn("failed to grant mute role",
			zap.String("guild", entry.GuildID),
			zap.String("member", entry.MemberID),
			zap.Error(err),
		)
		if entry.Kind == Temporary {
			m.arm(entry)
		}
		return &entry, sideEffect("grant mute role", err)
	}

	m.log.Info("member muted",
		zap.String("guild", entry.GuildID),
		zap.String("member", entry.MemberID),
		zap.String("kind", string(entry.Kind)),
		zap.Int("id", entry.ID),
	)
	m.bus.Emit(MuteCreated{Mute: entry})
	if entry.Kind == Temporary {
		m.arm(entry)
	}
	return &entry, nil
}

// reapply grants the mute role again to a member whose entry exists but whose
// role went missing, for example after a failed grant.
func (m *Mutes) reapply(ctx context.Context, guildID, memberID string) (*MuteEntry, error) {
	rec, err := m.guilds.GetOrCreate(ctx, guildID)
	if err != nil {
		return nil, err
	}
	entry, ok := rec.mute(memberID)
	if !ok || rec.MuteRoleID == "" {
		return nil, ErrAlreadyMuted
	}
	has, err := m.gw.HasRole(ctx, guildID, memberID, rec.MuteRoleID)
	if err != nil {
		return nil, sideEffect("check mute role", err)
	}
	if has {
		return nil, ErrAlreadyMuted
	}

	if err := m.gw.GrantRole(ctx, guildID, memberID, rec.MuteRoleID); err != nil {
		return &entry, sideEffect("grant mute role", err)
	}

	m.log.Info("re-applied missing mute role", zap.String("guild", guildID), zap.String("member", memberID), zap.Int("id", entry.ID))
	m.bus.Emit(MuteCreated{Mute: entry})
	if entry.Kind == Temporary {
		m.arm(entry)
	}
	return &entry, nil
}

// Delete unmutes a member.
func (m *Mutes) Delete(ctx context.Context, guildID, memberID string) (*MuteEntry, error) {
	if memberID == "" {
		return nil, ErrMissingMember
	}
	rec, err := m.guilds.GetOrCreate(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if _, ok := rec.mute(memberID); !ok {
		return nil, ErrNoMute
	}
	if rec.MuteRoleID == "" {
		return nil, ErrNoMuteRole
	}
	has, err := m.gw.HasRole(ctx, guildID, memberID, rec.MuteRoleID)
	if err != nil {
		return nil, sideEffect("check mute role", err)
	}
	if !has {
		return nil, ErrMemberLacksMuteRole
	}

	var entry MuteEntry
	_, err = m.guilds.Update(ctx, guildID, func(rec *CommunityRecord) error {
		e, ok := rec.mute(memberID)
		if !ok {
			return ErrNoMute
		}
		entry = e
		rec.removeMutes(func(x MuteEntry) bool { return x.MemberID == memberID })
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.disarm(entry)

	if err := m.gw.RevokeRole(ctx, guildID, memberID, rec.MuteRoleID); err != nil {
		m.log.Warn("failed to revoke mute role",
			zap.String("guild", guildID),
			zap.String("member", memberID),
			zap.Error(err),
		)
		return &entry, sideEffect("revoke mute role", err)
	}
	m.keepRole(ctx, guildID, memberID)

	m.log.Info("member unmuted", zap.String("guild", guildID), zap.String("member", memberID), zap.Int("id", entry.ID))
	m.bus.Emit(MuteEnded{Mute: entry})
	return &entry, nil
}

// ReconcileOnRejoin re-applies a lingering mute to a member that left and
// came back. It reports false when there was nothing to re-apply. A true
// result with a non-nil error means the entry was replaced but granting the
// role failed.
func (m *Mutes) ReconcileOnRejoin(ctx context.Context, guildID, memberID string) (bool, error) {
	if memberID == "" {
		return false, ErrMissingMember
	}
	rec, err := m.guilds.GetOrCreate(ctx, guildID)
	if err != nil {
		return false, err
	}
	if rec.MuteRoleID == "" {
		return false, nil
	}
	stale, ok := rec.mute(memberID)
	if !ok || stale.ChannelID == "" {
		return false, nil
	}

	var entry MuteEntry
	_, err = m.guilds.Update(ctx, guildID, func(rec *CommunityRecord) error {
		cur, ok := rec.mute(memberID)
		if !ok || cur.ID != stale.ID {
			return errStale
		}
		entry = MuteEntry{
			ID:          rec.NextMuteID,
			Kind:        cur.Kind,
			GuildID:     guildID,
			MemberID:    memberID,
			ModeratorID: m.gw.SelfID(),
			ChannelID:   cur.ChannelID,
			Reason:      rejoinReason,
			Duration:    cur.Duration,
			ExpiresAt:   cur.ExpiresAt,
		}
		rec.NextMuteID++
		rec.removeMutes(func(x MuteEntry) bool { return x.MemberID == memberID })
		rec.Mutes = append(rec.Mutes, entry)
		return nil
	})
	if errors.Is(err, errStale) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	m.disarm(stale)

	if err := m.gw.GrantRole(ctx, guildID, memberID, rec.MuteRoleID); err != nil {
		if entry.Kind == Temporary {
			m.arm(entry)
		}
		return true, sideEffect("grant mute role", err)
	}

	m.log.Info("re-applied mute on rejoin", zap.String("guild", guildID), zap.String("member", memberID))
	m.bus.Emit(MuteCreated{Mute: entry})
	if entry.Kind == Temporary {
		m.arm(entry)
	}
	return true, nil
}

var errStale = errors.New("mute entry changed underneath")

// release ends a specific mute if it is still the member's active one. It
// reports whether this call ended it. The entry is removed before the role is
// revoked, so only one caller ever revokes for a given mute.
func (m *Mutes) release(ctx context.Context, mute MuteEntry) (bool, error) {
	var roleID string
	_, err := m.guilds.Update(ctx, mute.GuildID, func(rec *CommunityRecord) error {
		if cur, ok := rec.mute(mute.MemberID); !ok || cur.ID != mute.ID {
			return errStale
		}
		rec.removeMutes(func(x MuteEntry) bool { return x.ID == mute.ID })
		roleID = rec.MuteRoleID
		return nil
	})
	if errors.Is(err, errStale) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if roleID != "" {
		if err := m.gw.RevokeRole(ctx, mute.GuildID, mute.MemberID, roleID); err != nil {
			m.retry(ctx, mute)
			return false, sideEffect("revoke mute role", err)
		}
		m.keepRole(ctx, mute.GuildID, mute.MemberID)
	}

	m.log.Info("mute expired", zap.String("guild", mute.GuildID), zap.String("member", mute.MemberID), zap.Int("id", mute.ID))
	m.bus.Emit(MuteEnded{Mute: mute})
	return true, nil
}

// retry puts a mute back after its role could not be revoked and schedules
// another release. A mute created in the meantime wins.
func (m *Mutes) retry(ctx context.Context, mute MuteEntry) {
	_, err := m.guilds.Update(ctx, mute.GuildID, func(rec *CommunityRecord) error {
		if _, ok := rec.mute(mute.MemberID); ok {
			return errStale
		}
		rec.Mutes = append(rec.Mutes, mute)
		return nil
	})
	if errors.Is(err, errStale) {
		return
	}
	if err != nil {
		m.log.Error("failed to restore mute", zap.String("guild", mute.GuildID), zap.String("member", mute.MemberID), zap.Error(err))
		return
	}
	m.schedule(mute, releaseRetry)
}

// keepRole grants the mute role again if another mute of the member was
// created while the role was being revoked.
func (m *Mutes) keepRole(ctx context.Context, guildID, memberID string) {
	rec, err := m.guilds.GetOrCreate(ctx, guildID)
	if err != nil {
		m.log.Warn("failed to re-check mute", zap.String("guild", guildID), zap.String("member", memberID), zap.Error(err))
		return
	}
	if _, ok := rec.mute(memberID); !ok || rec.MuteRoleID == "" {
		return
	}
	if err := m.gw.GrantRole(ctx, guildID, memberID, rec.MuteRoleID); err != nil {
		m.log.Warn("failed to restore mute role", zap.String("guild", guildID), zap.String("member", memberID), zap.Error(err))
	}
}

// arm schedules the release of a temporary mute at its expiry.
func (m *Mutes) arm(mute MuteEntry) {
	delay := mute.ExpiresAt.Sub(m.clock.Now())
	if delay < 0 {
		delay = 0
	}
	m.schedule(mute, delay)
}

func (m *Mutes) schedule(mute MuteEntry, delay time.Duration) {
	key := timerKey{mute.GuildID, mute.MemberID, mute.ID}

	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timers[key]; ok {
		t.Stop()
	}
	m.timers[key] = m.clock.AfterFunc(delay, func() {
		m.mu.Lock()
		delete(m.timers, key)
		m.mu.Unlock()

		if _, err := m.release(context.Background(), mute); err != nil {
			m.log.Error("failed to release mute",
				zap.String("guild", mute.GuildID),
				zap.String("member", mute.MemberID),
				zap.Error(err),
			)
		}
	})
}

func (m *Mutes) disarm(mute MuteEntry) {
	key := timerKey{mute.GuildID, mute.MemberID, mute.ID}
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timers[key]; ok {
		t.Stop()
		delete(m.timers, key)
	}
}

func (m *Mutes) pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Close stops every pending release timer. Persisted mutes are picked up
// again by the reconciler on the next start.
func (m *Mutes) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, t := range m.timers {
		t.Stop()
		delete(m.timers, k)
	}
}
