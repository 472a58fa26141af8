package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatures(t *testing.T) {
	env := newTestEnv(t, nil)
	f := env.m.Features

	on, err := f.Status(env.ctx, testGuild, FeatureAntiLink)
	require.NoError(t, err)
	assert.False(t, on)

	assert.ErrorIs(t, f.Disable(env.ctx, testGuild, FeatureAntiLink), ErrAlreadyDisabled)
	require.NoError(t, f.Enable(env.ctx, testGuild, FeatureAntiLink))
	assert.ErrorIs(t, f.Enable(env.ctx, testGuild, FeatureAntiLink), ErrAlreadyEnabled)

	on, err = f.Status(env.ctx, testGuild, FeatureAntiLink)
	require.NoError(t, err)
	assert.True(t, on)

	all, err := f.All(env.ctx, testGuild)
	require.NoError(t, err)
	assert.Len(t, all, len(AllFeatures))
	all[FeatureAntiJoin] = true
	on, err = f.Status(env.ctx, testGuild, FeatureAntiJoin)
	require.NoError(t, err)
	assert.False(t, on, "All must return a copy")

	require.NoError(t, f.Disable(env.ctx, testGuild, FeatureAntiLink))
	on, err = f.Status(env.ctx, testGuild, FeatureAntiLink)
	require.NoError(t, err)
	assert.False(t, on)
}

func TestParseFeature(t *testing.T) {
	tests := []struct {
		in      string
		want    Feature
		wantErr bool
	}{
		{"antiSpam", FeatureAntiSpam, false},
		{"ghostPing", FeatureGhostPing, false},
		{"autoRole", FeatureAutoRole, false},
		{"antispam", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFeature(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownFeature)
				assert.Equal(t, ClassPrecondition, ClassOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFeaturesUnknown(t *testing.T) {
	env := newTestEnv(t, nil)
	assert.ErrorIs(t, env.m.Features.Enable(env.ctx, testGuild, "bogus"), ErrUnknownFeature)
	_, err := env.m.Features.Status(env.ctx, testGuild, "bogus")
	assert.ErrorIs(t, err, ErrUnknownFeature)
}
