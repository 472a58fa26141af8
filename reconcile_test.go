package moderation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seed writes mutes straight into the record, as if left over from a
// previous run.
func seed(t *testing.T, env *testEnv, guildID string, mutes ...MuteEntry) {
	t.Helper()
	rec, err := env.m.Guilds.GetOrCreate(env.ctx, guildID)
	require.NoError(t, err)
	rec.MuteRoleID = testMuteRole
	for i := range mutes {
		mutes[i].ID = i + 1
		mutes[i].GuildID = guildID
		env.gw.roles[mutes[i].MemberID] = map[string]bool{testMuteRole: true}
	}
	rec.Mutes = mutes
	require.NoError(t, env.m.Guilds.Replace(env.ctx, guildID, rec))
}

func TestReconcilerRun(t *testing.T) {
	env := newTestEnv(t, nil)
	now := env.clock.Now()

	seed(t, env, testGuild,
		MuteEntry{Kind: Temporary, MemberID: "5", ExpiresAt: now.Add(-time.Minute)},
		MuteEntry{Kind: Temporary, MemberID: "6", ExpiresAt: now.Add(time.Minute)},
		MuteEntry{Kind: Temporary, MemberID: "7", ExpiresAt: now.Add(time.Minute)},
		MuteEntry{Kind: Permanent, MemberID: "8"},
	)
	env.gw.missing["7"] = true

	rep, err := env.m.Ready(env.ctx, []string{testGuild})
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{Armed: 1, Released: 1, Skipped: 1}, rep)
	assert.Equal(t, 1, env.m.Mutes.pending())
	assert.Equal(t, 1, env.events.count(KindMuteEnded))
	assert.False(t, env.gw.roles["5"][testMuteRole])

	env.clock.Advance(time.Minute)
	left := map[string]bool{}
	for _, m := range env.record(t).Mutes {
		left[m.MemberID] = true
	}
	assert.Equal(t, map[string]bool{"7": true, "8": true}, left)
	assert.Equal(t, 2, env.events.count(KindMuteEnded))
}

func TestReconcilerMissingRole(t *testing.T) {
	env := newTestEnv(t, nil)
	now := env.clock.Now()

	seed(t, env, testGuild,
		MuteEntry{Kind: Temporary, MemberID: "5", ExpiresAt: now.Add(-time.Minute)},
		MuteEntry{Kind: Temporary, MemberID: "6", ExpiresAt: now.Add(time.Minute)},
	)
	seed(t, env, "101",
		MuteEntry{Kind: Temporary, MemberID: "9", ExpiresAt: now.Add(time.Minute)},
	)
	env.gw.missingRoles[testMuteRole] = true

	rep, err := env.m.Reconciler.Run(env.ctx, []string{testGuild, "101"})
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{Skipped: 3}, rep)
	assert.Zero(t, env.m.Mutes.pending())
	assert.Len(t, env.record(t).Mutes, 2)
}

func TestReconcilerNoMuteRole(t *testing.T) {
	env := newTestEnv(t, nil)

	rep, err := env.m.Reconciler.Run(env.ctx, []string{testGuild})
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{}, rep)

	rep, err = env.m.Reconciler.Run(env.ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{}, rep)
}
