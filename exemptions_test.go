package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExemptions(t *testing.T) {
	env := newTestEnv(t, nil)
	ex := env.m.Exemptions

	list, err := ex.List(env.ctx, testGuild)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	added, err := ex.Add(env.ctx, testGuild, "5")
	require.NoError(t, err)
	assert.True(t, added)
	added, err = ex.Add(env.ctx, testGuild, "5")
	require.NoError(t, err)
	assert.False(t, added)

	exempt, err := ex.IsExempt(env.ctx, testGuild, "5")
	require.NoError(t, err)
	assert.True(t, exempt)
	exempt, err = ex.IsExempt(env.ctx, testGuild, "6")
	require.NoError(t, err)
	assert.False(t, exempt)

	list, err = ex.List(env.ctx, testGuild)
	require.NoError(t, err)
	assert.Equal(t, []ExemptionEntry{{MemberID: "5", Active: true}}, list)

	removed, err := ex.Remove(env.ctx, testGuild, "5")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = ex.Remove(env.ctx, testGuild, "5")
	require.NoError(t, err)
	assert.False(t, removed)

	exempt, err = ex.IsExempt(env.ctx, testGuild, "5")
	require.NoError(t, err)
	assert.False(t, exempt)

	_, err = ex.Add(env.ctx, testGuild, "")
	assert.ErrorIs(t, err, ErrMissingMember)
}

func TestExemptionsSkipFilters(t *testing.T) {
	env := newTestEnv(t, nil)
	env.enable(t, FeatureAntiLink)
	env.enable(t, FeatureAntiInvite)
	env.enable(t, FeatureGhostPing)
	_, err := env.m.Exemptions.Add(env.ctx, testGuild, "5")
	require.NoError(t, err)

	removed, err := env.m.Filters.AntiLink(env.ctx, Message{ID: "m", GuildID: testGuild, ChannelID: testChannel, AuthorID: "5", Content: "https://example.com"})
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = env.m.Filters.AntiInvite(env.ctx, Invite{Code: "abc", GuildID: testGuild, InviterID: "5"})
	require.NoError(t, err)
	assert.False(t, removed)

	found, err := env.m.Filters.GhostPing(env.ctx, Message{GuildID: testGuild, AuthorID: "5", Mentions: []string{"6"}}, nil)
	require.NoError(t, err)
	assert.False(t, found)

	assert.Empty(t, env.gw.deletedMessages)
	assert.Empty(t, env.gw.deletedInvites)
	assert.Empty(t, env.gw.sent)
}
