package moderation

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/intrntsrfr/moderation/kvstore"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testGuild    = "100"
	testMuteRole = "200"
	testSelf     = "1"
	testMod      = "2"
	testChannel  = "300"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	c       *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{c: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock forward and runs due timers on the calling
// goroutine, earliest first.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

type sent struct {
	target string
	notice Notice
}

// fakeGateway records every call. Members exist unless listed in missing and
// roles exist unless listed in missingRoles.
type fakeGateway struct {
	mu sync.Mutex

	roles        map[string]map[string]bool
	missing      map[string]bool
	missingRoles map[string]bool

	grantErr  error
	revokeErr error
	kickErr   error

	// onRevoke runs once, before the next revoke takes effect.
	onRevoke func()

	grants, revokes  int
	kicked           []string
	deletedMessages  []string
	deletedInvites   []string
	sent, direct     []sent
	locked, unlocked []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		roles:        make(map[string]map[string]bool),
		missing:      make(map[string]bool),
		missingRoles: make(map[string]bool),
	}
}

func (g *fakeGateway) SelfID() string { return testSelf }

func (g *fakeGateway) GrantRole(_ context.Context, guildID, userID, roleID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.grantErr != nil {
		return g.grantErr
	}
	g.grants++
	if g.roles[userID] == nil {
		g.roles[userID] = make(map[string]bool)
	}
	g.roles[userID][roleID] = true
	return nil
}

func (g *fakeGateway) RevokeRole(_ context.Context, guildID, userID, roleID string) error {
	g.mu.Lock()
	hook := g.onRevoke
	g.onRevoke = nil
	g.mu.Unlock()
	if hook != nil {
		hook()
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.revokeErr != nil {
		return g.revokeErr
	}
	g.revokes++
	delete(g.roles[userID], roleID)
	return nil
}

func (g *fakeGateway) HasRole(_ context.Context, guildID, userID, roleID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.roles[userID][roleID], nil
}

func (g *fakeGateway) RoleExists(_ context.Context, guildID, roleID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.missingRoles[roleID], nil
}

func (g *fakeGateway) MemberExists(_ context.Context, guildID, userID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.missing[userID], nil
}

func (g *fakeGateway) Kick(_ context.Context, guildID, userID, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.kickErr != nil {
		return g.kickErr
	}
	g.kicked = append(g.kicked, userID)
	return nil
}

func (g *fakeGateway) DeleteMessage(_ context.Context, channelID, messageID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deletedMessages = append(g.deletedMessages, messageID)
	return nil
}

func (g *fakeGateway) DeleteInvite(_ context.Context, code, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deletedInvites = append(g.deletedInvites, code)
	return nil
}

func (g *fakeGateway) Send(_ context.Context, channelID string, n *Notice) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, sent{channelID, *n})
	return nil
}

func (g *fakeGateway) SendDirect(_ context.Context, userID string, n *Notice) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.direct = append(g.direct, sent{userID, *n})
	return nil
}

func (g *fakeGateway) LockChannel(_ context.Context, guildID, channelID, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.locked = append(g.locked, channelID)
	return nil
}

func (g *fakeGateway) UnlockChannel(_ context.Context, guildID, channelID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unlocked = append(g.unlocked, channelID)
	return nil
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) count(kind EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind() == kind {
			n++
		}
	}
	return n
}

func (r *recorder) last(kind EventKind) Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind() == kind {
			return r.events[i]
		}
	}
	return nil
}

type testEnv struct {
	ctx    context.Context
	m      *Moderation
	gw     *fakeGateway
	clock  *fakeClock
	events *recorder
	store  Store
}

func newTestEnv(t *testing.T, cfg *Config) *testEnv {
	t.Helper()
	if cfg == nil {
		cfg = DefaultConfig()
	}

	store, err := kvstore.OpenJSONFile[CommunityRecord](filepath.Join(t.TempDir(), "moderation.json"))
	require.NoError(t, err)

	env := &testEnv{
		ctx:    context.Background(),
		gw:     newFakeGateway(),
		clock:  newFakeClock(),
		events: &recorder{},
		store:  store,
	}
	env.m = New(cfg, store, env.gw, env.clock, zap.NewNop())
	env.m.Bus.AddHandler(env.events.handle)
	t.Cleanup(env.m.Close)
	return env
}

// withMuteRole configures the test mute role.
func (e *testEnv) withMuteRole(t *testing.T) *testEnv {
	t.Helper()
	require.NoError(t, e.m.Mutes.SetRole(e.ctx, testGuild, testMuteRole))
	return e
}

func (e *testEnv) enable(t *testing.T, f Feature) {
	t.Helper()
	require.NoError(t, e.m.Features.Enable(e.ctx, testGuild, f))
}

func (e *testEnv) record(t *testing.T) *CommunityRecord {
	t.Helper()
	rec, err := e.m.Guilds.GetOrCreate(e.ctx, testGuild)
	require.NoError(t, err)
	return rec
}
