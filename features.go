package moderation

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type Feature string

const (
	FeatureAutoRole   Feature = "autoRole"
	FeatureAntiSpam   Feature = "antiSpam"
	FeatureAntiInvite Feature = "antiInvite"
	FeatureAntiJoin   Feature = "antiJoin"
	FeatureAntiLink   Feature = "antiLink"
	FeatureGhostPing  Feature = "ghostPing"
)

var AllFeatures = []Feature{
	FeatureAutoRole,
	FeatureAntiSpam,
	FeatureAntiInvite,
	FeatureAntiJoin,
	FeatureAntiLink,
	FeatureGhostPing,
}

func (f Feature) Valid() bool {
	for _, k := range AllFeatures {
		if k == f {
			return true
		}
	}
	return false
}

func ParseFeature(s string) (Feature, error) {
	f := Feature(s)
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownFeature, s)
	}
	return f, nil
}

// Features toggles the per-guild moderation systems.
type Features struct {
	guilds *Guilds
	log    *zap.Logger
}

func NewFeatures(guilds *Guilds, log *zap.Logger) *Features {
	return &Features{
		guilds: guilds,
		log:    log.Named("features"),
	}
}

func (f *Features) Enable(ctx context.Context, guildID string, feature Feature) error {
	return f.set(ctx, guildID, feature, true)
}

func (f *Features) Disable(ctx context.Context, guildID string, feature Feature) error {
	return f.set(ctx, guildID, feature, false)
}

func (f *Features) set(ctx context.Context, guildID string, feature Feature, on bool) error {
	if !feature.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownFeature, feature)
	}
	_, err := f.guilds.Update(ctx, guildID, func(rec *CommunityRecord) error {
		if rec.Features[feature] == on {
			if on {
				return ErrAlreadyEnabled
			}
			return ErrAlreadyDisabled
		}
		rec.Features[feature] = on
		return nil
	})
	if err != nil {
		return err
	}
	f.log.Info("feature toggled",
		zap.String("guild", guildID),
		zap.String("feature", string(feature)),
		zap.Bool("enabled", on),
	)
	return nil
}

func (f *Features) Status(ctx context.Context, guildID string, feature Feature) (bool, error) {
	if !feature.Valid() {
		return false, fmt.Errorf("%w: %q", ErrUnknownFeature, feature)
	}
	rec, err := f.guilds.GetOrCreate(ctx, guildID)
	if err != nil {
		return false, err
	}
	return rec.Features[feature], nil
}

// All returns a copy of every feature flag for the guild.
func (f *Features) All(ctx context.Context, guildID string) (map[Feature]bool, error) {
	rec, err := f.guilds.GetOrCreate(ctx, guildID)
	if err != nil {
		return nil, err
	}
	out := make(map[Feature]bool, len(rec.Features))
	for k, v := range rec.Features {
		out[k] = v
	}
	return out, nil
}
