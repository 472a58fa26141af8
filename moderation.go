package moderation

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Moderation wires every engine together and exposes one entry point per
// inbound platform event.
type Moderation struct {
	Bus        *Bus
	Guilds     *Guilds
	Features   *Features
	Mutes      *Mutes
	Warns      *Warns
	Exemptions *Exemptions
	AntiSpam   *AntiSpam
	Filters    *Filters
	AutoRole   *AutoRole
	Lockdowns  *Lockdowns
	Reconciler *Reconciler

	gw  Gateway
	log *zap.Logger
}

func New(cfg *Config, store Store, gw Gateway, clock Clock, log *zap.Logger) *Moderation {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if clock == nil {
		clock = SystemClock
	}

	bus := NewBus()
	bus.AddHandler(countEvent)

	guilds := NewGuilds(store, cfg.DefaultFeatures, log)
	features := NewFeatures(guilds, log)
	exemptions := NewExemptions(guilds, log)
	mutes := NewMutes(guilds, gw, bus, clock, log)

	return &Moderation{
		Bus:        bus,
		Guilds:     guilds,
		Features:   features,
		Mutes:      mutes,
		Warns:      NewWarns(guilds, mutes, gw, bus, cfg.EscalationScope, log),
		Exemptions: exemptions,
		AntiSpam:   NewAntiSpam(features, exemptions, mutes, gw, clock, cfg.SpamWindowCapacity, log),
		Filters:    NewFilters(features, exemptions, gw, log),
		AutoRole:   NewAutoRole(guilds, features, gw, log),
		Lockdowns:  NewLockdowns(guilds, gw, bus, clock, log),
		Reconciler: NewReconciler(guilds, mutes, gw, clock, log),
		gw:         gw,
		log:        log.Named("moderation"),
	}
}

func (m *Moderation) track(filter string, acted bool, err error) error {
	if err != nil {
		filterErrors.WithLabelValues(filter).Inc()
		m.log.Warn("filter failed", zap.String("filter", filter), zap.Error(err))
		return err
	}
	if acted {
		filterActions.WithLabelValues(filter).Inc()
	}
	return nil
}

// MessageCreate runs the anti-spam and anti-link filters on a new message.
func (m *Moderation) MessageCreate(ctx context.Context, msg Message) error {
	if msg.AuthorID == m.gw.SelfID() {
		return nil
	}
	muted, err := m.AntiSpam.Handle(ctx, msg)
	spamErr := m.track(string(FeatureAntiSpam), muted, err)
	if muted {
		return spamErr
	}
	removed, err := m.Filters.AntiLink(ctx, msg)
	return errors.Join(spamErr, m.track(string(FeatureAntiLink), removed, err))
}

// MemberJoin kicks the member if anti-join is on, otherwise re-applies a
// lingering mute and hands out the auto role.
func (m *Moderation) MemberJoin(ctx context.Context, guildID, memberID string) error {
	kicked, err := m.Filters.AntiJoin(ctx, guildID, memberID)
	if err := m.track(string(FeatureAntiJoin), kicked, err); err != nil || kicked {
		return err
	}

	var errs []error
	if _, err := m.Mutes.ReconcileOnRejoin(ctx, guildID, memberID); err != nil {
		m.log.Warn("failed to re-apply mute", zap.String("guild", guildID), zap.String("member", memberID), zap.Error(err))
		errs = append(errs, err)
	}
	granted, err := m.AutoRole.Apply(ctx, guildID, memberID)
	errs = append(errs, m.track(string(FeatureAutoRole), granted, err))
	return errors.Join(errs...)
}

func (m *Moderation) InviteCreate(ctx context.Context, inv Invite) error {
	removed, err := m.Filters.AntiInvite(ctx, inv)
	return m.track(string(FeatureAntiInvite), removed, err)
}

func (m *Moderation) MessageDelete(ctx context.Context, msg Message) error {
	return m.ghostPing(ctx, msg, nil)
}

// MessageUpdate checks whether an edit removed mentions. before is the
// cached version of the message.
func (m *Moderation) MessageUpdate(ctx context.Context, before, after Message) error {
	return m.ghostPing(ctx, before, &after)
}

// ghostPing posts an alert in the channel when the filter flags a message.
func (m *Moderation) ghostPing(ctx context.Context, before Message, after *Message) error {
	found, err := m.Filters.GhostPing(ctx, before, after)
	if err == nil && found {
		n := ghostPingNotice(before, lostMentions(before, after))
		err = sideEffect("send notice", m.gw.Send(ctx, before.ChannelID, n))
	}
	return m.track(string(FeatureGhostPing), found, err)
}

// Ready reconciles temporary mutes for the guilds the bot is connected to.
func (m *Moderation) Ready(ctx context.Context, guildIDs []string) (ReconcileReport, error) {
	rep, err := m.Reconciler.Run(ctx, guildIDs)
	countReconcile(rep)
	return rep, err
}

// Close stops every pending release timer.
func (m *Moderation) Close() {
	m.Mutes.Close()
}
