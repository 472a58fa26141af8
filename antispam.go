package moderation

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

const (
	spamLimit    = 7
	spamWindow   = 15 * time.Second
	spamMaxGap   = 5 * time.Second
	spamDuration = time.Hour
	spamReason   = "Anti-spam: message flood detected."

	defaultSpamCapacity = 10000
)

type window struct {
	count       int
	started     time.Time
	lastMessage time.Time
	triggered   bool
}

// AntiSpam mutes members that post too many messages in quick succession.
// Windows are kept per guild and member. A window ends spamWindow after it
// started or was last reset, measured on the engine clock; the LRU only bounds
// memory.
type AntiSpam struct {
	features   *Features
	exemptions *Exemptions
	mutes      *Mutes
	gw         Gateway
	clock      Clock
	log        *zap.Logger

	mu      sync.Mutex
	windows *expirable.LRU[string, *window]
}

func NewAntiSpam(features *Features, exemptions *Exemptions, mutes *Mutes, gw Gateway, clock Clock, capacity int, log *zap.Logger) *AntiSpam {
	if capacity <= 0 {
		capacity = defaultSpamCapacity
	}
	return &AntiSpam{
		features:   features,
		exemptions: exemptions,
		mutes:      mutes,
		gw:         gw,
		clock:      clock,
		log:        log.Named("antispam"),
		windows:    expirable.NewLRU[string, *window](capacity, nil, spamWindow),
	}
}

// Handle tracks a message and reports whether it caused a mute.
func (a *AntiSpam) Handle(ctx context.Context, msg Message) (bool, error) {
	if msg.GuildID == "" || msg.AuthorID == "" {
		return false, nil
	}
	on, err := a.features.Status(ctx, msg.GuildID, FeatureAntiSpam)
	if err != nil || !on {
		return false, err
	}
	exempt, err := a.exemptions.IsExempt(ctx, msg.GuildID, msg.AuthorID)
	if err != nil || exempt {
		return false, err
	}

	if !a.track(msg) {
		return false, nil
	}

	a.log.Info("message flood detected", zap.String("guild", msg.GuildID), zap.String("member", msg.AuthorID))
	_, err = a.mutes.Create(ctx, MuteRequest{
		Kind:        Temporary,
		GuildID:     msg.GuildID,
		MemberID:    msg.AuthorID,
		ModeratorID: a.gw.SelfID(),
		ChannelID:   msg.ChannelID,
		Reason:      spamReason,
		Duration:    spamDuration,
	})
	if err != nil {
		if IsPolicy(err) {
			a.log.Debug("anti-spam mute refused", zap.String("guild", msg.GuildID), zap.Error(err))
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// track records the message and reports whether the window just hit the
// limit.
func (a *AntiSpam) track(msg Message) bool {
	key := msg.GuildID + "/" + msg.AuthorID
	now := a.clock.Now()

	a.mu.Lock()
	defer a.mu.Unlock()

	w, ok := a.windows.Get(key)
	if !ok || now.Sub(w.started) >= spamWindow {
		a.windows.Add(key, &window{count: 1, started: now, lastMessage: msg.CreatedAt})
		return false
	}

	gap := msg.CreatedAt.Sub(w.lastMessage)
	w.lastMessage = msg.CreatedAt
	if gap > spamMaxGap {
		w.count = 1
		w.started = now
		w.triggered = false
		a.windows.Add(key, w)
		return false
	}
	if w.triggered {
		return false
	}

	w.count++
	if w.count == spamLimit {
		w.triggered = true
		return true
	}
	return false
}
