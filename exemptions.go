package moderation

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

var errNoChange = errors.New("no change")

// Exemptions is the per-guild list of members the reactive filters ignore.
type Exemptions struct {
	guilds *Guilds
	log    *zap.Logger
}

func NewExemptions(guilds *Guilds, log *zap.Logger) *Exemptions {
	return &Exemptions{guilds: guilds, log: log.Named("exemptions")}
}

// Add exempts a member. It reports false if the member already was exempt.
func (e *Exemptions) Add(ctx context.Context, guildID, memberID string) (bool, error) {
	if memberID == "" {
		return false, ErrMissingMember
	}
	_, err := e.guilds.Update(ctx, guildID, func(rec *CommunityRecord) error {
		if rec.exempt(memberID) {
			return errNoChange
		}
		rec.Exemptions = append(rec.Exemptions, ExemptionEntry{MemberID: memberID, Active: true})
		return nil
	})
	if errors.Is(err, errNoChange) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	e.log.Info("member exempted", zap.String("guild", guildID), zap.String("member", memberID))
	return true, nil
}

// Remove lifts an exemption. It reports false if the member was not exempt.
func (e *Exemptions) Remove(ctx context.Context, guildID, memberID string) (bool, error) {
	if memberID == "" {
		return false, ErrMissingMember
	}
	_, err := e.guilds.Update(ctx, guildID, func(rec *CommunityRecord) error {
		kept := make([]ExemptionEntry, 0, len(rec.Exemptions))
		for _, x := range rec.Exemptions {
			if x.MemberID != memberID {
				kept = append(kept, x)
			}
		}
		if len(kept) == len(rec.Exemptions) {
			return errNoChange
		}
		rec.Exemptions = kept
		return nil
	})
	if errors.Is(err, errNoChange) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	e.log.Info("exemption removed", zap.String("guild", guildID), zap.String("member", memberID))
	return true, nil
}

// List never returns nil.
func (e *Exemptions) List(ctx context.Context, guildID string) ([]ExemptionEntry, error) {
	rec, err := e.guilds.GetOrCreate(ctx, guildID)
	if err != nil {
		return nil, err
	}
	out := make([]ExemptionEntry, len(rec.Exemptions))
	copy(out, rec.Exemptions)
	return out, nil
}

func (e *Exemptions) IsExempt(ctx context.Context, guildID, memberID string) (bool, error) {
	rec, err := e.guilds.GetOrCreate(ctx, guildID)
	if err != nil {
		return false, err
	}
	return rec.exempt(memberID), nil
}
