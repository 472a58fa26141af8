package moderation

import (
	"context"

	"go.uber.org/zap"
)

// AutoRole hands a configured role to every member that joins.
type AutoRole struct {
	guilds   *Guilds
	features *Features
	gw       Gateway
	log      *zap.Logger
}

func NewAutoRole(guilds *Guilds, features *Features, gw Gateway, log *zap.Logger) *AutoRole {
	return &AutoRole{
		guilds:   guilds,
		features: features,
		gw:       gw,
		log:      log.Named("autorole"),
	}
}

func (a *AutoRole) enabled(ctx context.Context, guildID string) error {
	on, err := a.features.Status(ctx, guildID, FeatureAutoRole)
	if err != nil {
		return err
	}
	if !on {
		return ErrFeatureDisabled
	}
	return nil
}

func (a *AutoRole) Set(ctx context.Context, guildID, roleID string) error {
	if roleID == "" {
		return ErrMissingRole
	}
	if err := a.enabled(ctx, guildID); err != nil {
		return err
	}
	return a.guilds.SetField(ctx, guildID, "autoRole", roleID)
}

// Get returns the configured role, or an empty string when none is set.
func (a *AutoRole) Get(ctx context.Context, guildID string) (string, error) {
	if err := a.enabled(ctx, guildID); err != nil {
		return "", err
	}
	rec, err := a.guilds.GetOrCreate(ctx, guildID)
	if err != nil {
		return "", err
	}
	return rec.AutoRoleID, nil
}

func (a *AutoRole) Delete(ctx context.Context, guildID string) error {
	if err := a.enabled(ctx, guildID); err != nil {
		return err
	}
	_, err := a.guilds.Update(ctx, guildID, func(rec *CommunityRecord) error {
		if rec.AutoRoleID == "" {
			return ErrNoAutoRole
		}
		rec.AutoRoleID = ""
		return nil
	})
	return err
}

// Apply grants the auto role to a member that just joined. It reports false
// when the feature is off or no role is configured.
func (a *AutoRole) Apply(ctx context.Context, guildID, memberID string) (bool, error) {
	if memberID == "" {
		return false, ErrMissingMember
	}
	rec, err := a.guilds.GetOrCreate(ctx, guildID)
	if err != nil {
		return false, err
	}
	if !rec.Features[FeatureAutoRole] || rec.AutoRoleID == "" {
		return false, nil
	}
	if err := a.gw.GrantRole(ctx, guildID, memberID, rec.AutoRoleID); err != nil {
		return false, sideEffect("grant auto role", err)
	}
	a.log.Debug("granted auto role", zap.String("guild", guildID), zap.String("member", memberID))
	return true, nil
}
