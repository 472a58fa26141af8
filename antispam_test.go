package moderation

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type spamSender struct {
	env  *testEnv
	at   time.Time
	next int
}

func (s *spamSender) send(t *testing.T, member string, gap time.Duration) bool {
	t.Helper()
	s.at = s.at.Add(gap)
	s.next++
	muted, err := s.env.m.AntiSpam.Handle(s.env.ctx, Message{
		ID:        strconv.Itoa(s.next),
		GuildID:   testGuild,
		ChannelID: testChannel,
		AuthorID:  member,
		Content:   "spam",
		CreatedAt: s.at,
	})
	require.NoError(t, err)
	return muted
}

func newSpamEnv(t *testing.T) (*testEnv, *spamSender) {
	env := newTestEnv(t, nil).withMuteRole(t)
	env.enable(t, FeatureAntiSpam)
	return env, &spamSender{env: env, at: env.clock.Now()}
}

func TestAntiSpamLimit(t *testing.T) {
	env, s := newSpamEnv(t)

	for i := 0; i < spamLimit-1; i++ {
		assert.False(t, s.send(t, "5", time.Second), "message %d", i+1)
	}
	assert.Empty(t, env.record(t).Mutes)

	assert.True(t, s.send(t, "5", time.Second))
	mute, err := env.m.Mutes.Get(env.ctx, testGuild, "5")
	require.NoError(t, err)
	require.NotNil(t, mute)
	assert.Equal(t, Temporary, mute.Kind)
	assert.Equal(t, spamDuration, mute.Duration)
	assert.Equal(t, spamReason, mute.Reason)
	assert.Equal(t, testSelf, mute.ModeratorID)

	assert.False(t, s.send(t, "5", time.Second))
	assert.Equal(t, 1, env.events.count(KindMuteCreated))
}

func TestAntiSpamGapResets(t *testing.T) {
	env, s := newSpamEnv(t)

	for i := 0; i < spamLimit-1; i++ {
		s.send(t, "5", time.Second)
	}
	assert.False(t, s.send(t, "5", spamMaxGap+time.Second), "a long gap starts a new window")
	for i := 0; i < spamLimit-2; i++ {
		assert.False(t, s.send(t, "5", time.Second))
	}
	assert.Empty(t, env.record(t).Mutes)
	assert.True(t, s.send(t, "5", time.Second))
}

func TestAntiSpamPerMember(t *testing.T) {
	env, s := newSpamEnv(t)

	for i := 0; i < spamLimit-1; i++ {
		assert.False(t, s.send(t, "5", time.Second))
		assert.False(t, s.send(t, "6", 0))
	}
	assert.Empty(t, env.record(t).Mutes)
}

func TestAntiSpamSkips(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*testing.T, *testEnv)
	}{
		{"disabled", func(t *testing.T, env *testEnv) {
			require.NoError(t, env.m.Features.Disable(env.ctx, testGuild, FeatureAntiSpam))
		}},
		{"exempt", func(t *testing.T, env *testEnv) {
			_, err := env.m.Exemptions.Add(env.ctx, testGuild, "5")
			require.NoError(t, err)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, s := newSpamEnv(t)
			tt.setup(t, env)
			for i := 0; i < spamLimit*2; i++ {
				assert.False(t, s.send(t, "5", time.Second))
			}
			assert.Empty(t, env.record(t).Mutes)
		})
	}
}

func TestAntiSpamAlreadyMuted(t *testing.T) {
	env, s := newSpamEnv(t)
	_, err := env.m.Mutes.Create(env.ctx, muteReq(Permanent, "5", 0))
	require.NoError(t, err)

	for i := 0; i < spamLimit; i++ {
		assert.False(t, s.send(t, "5", time.Second))
	}
	mute, err := env.m.Mutes.Get(env.ctx, testGuild, "5")
	require.NoError(t, err)
	assert.Equal(t, Permanent, mute.Kind)
}

func TestAntiSpamWindowExpires(t *testing.T) {
	env, s := newSpamEnv(t)

	for i := 0; i < spamLimit-2; i++ {
		assert.False(t, s.send(t, "5", time.Second))
	}
	env.clock.Advance(spamWindow + time.Second)

	assert.False(t, s.send(t, "5", time.Second))
	assert.False(t, s.send(t, "5", time.Second))
	assert.Empty(t, env.record(t).Mutes, "an expired window starts counting again")
}
