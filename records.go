package moderation

import (
	"fmt"
	"time"
)

type MuteKind string

const (
	Permanent MuteKind = "mute"
	Temporary MuteKind = "tempmute"
)

func ParseMuteKind(s string) (MuteKind, error) {
	switch MuteKind(s) {
	case Permanent, Temporary:
		return MuteKind(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// CommunityRecord is everything persisted for a single guild.
type CommunityRecord struct {
	GuildID    string `json:"guild_id"`
	MuteRoleID string `json:"mute_role_id"`
	AutoRoleID string `json:"auto_role_id"`

	Warnings   []WarningEntry   `json:"warnings"`
	Mutes      []MuteEntry      `json:"mutes"`
	Exemptions []ExemptionEntry `json:"exemptions"`
	Lockdowns  []LockdownEntry  `json:"lockdowns"`

	Features map[Feature]bool `json:"features"`

	// counters are never decremented, so ids stay unique after deletions
	NextMuteID     int `json:"next_mute_id"`
	NextWarnID     int `json:"next_warn_id"`
	NextLockdownID int `json:"next_lockdown_id"`
}

type MuteEntry struct {
	ID          int           `json:"id"`
	Kind        MuteKind      `json:"kind"`
	GuildID     string        `json:"guild_id"`
	MemberID    string        `json:"member_id"`
	ModeratorID string        `json:"moderator_id"`
	ChannelID   string        `json:"channel_id"`
	Reason      string        `json:"reason"`
	Duration    time.Duration `json:"duration,omitempty"`
	ExpiresAt   time.Time     `json:"expires_at,omitempty"`
}

type WarningEntry struct {
	ID          int    `json:"id"`
	GuildID     string `json:"guild_id"`
	MemberID    string `json:"member_id"`
	ModeratorID string `json:"moderator_id"`
	ChannelID   string `json:"channel_id"`
	Reason      string `json:"reason"`
}

type ExemptionEntry struct {
	MemberID string `json:"member_id"`
	Active   bool   `json:"active"`
}

type LockdownEntry struct {
	ID        int       `json:"id"`
	ChannelID string    `json:"channel_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

func newCommunityRecord(guildID string, defaults map[Feature]bool) *CommunityRecord {
	rec := &CommunityRecord{
		GuildID:        guildID,
		Warnings:       []WarningEntry{},
		Mutes:          []MuteEntry{},
		Exemptions:     []ExemptionEntry{},
		Lockdowns:      []LockdownEntry{},
		Features:       make(map[Feature]bool, len(AllFeatures)),
		NextMuteID:     1,
		NextWarnID:     1,
		NextLockdownID: 1,
	}
	for _, f := range AllFeatures {
		rec.Features[f] = defaults[f]
	}
	return rec
}

// normalize fills in anything an older or hand-edited record may be missing.
func (r *CommunityRecord) normalize(defaults map[Feature]bool) {
	if r.Warnings == nil {
		r.Warnings = []WarningEntry{}
	}
	if r.Mutes == nil {
		r.Mutes = []MuteEntry{}
	}
	if r.Exemptions == nil {
		r.Exemptions = []ExemptionEntry{}
	}
	if r.Lockdowns == nil {
		r.Lockdowns = []LockdownEntry{}
	}
	if r.Features == nil {
		r.Features = make(map[Feature]bool, len(AllFeatures))
	}
	for _, f := range AllFeatures {
		if _, ok := r.Features[f]; !ok {
			r.Features[f] = defaults[f]
		}
	}
	r.NextMuteID = nextID(r.NextMuteID, len(r.Mutes), func(i int) int { return r.Mutes[i].ID })
	r.NextWarnID = nextID(r.NextWarnID, len(r.Warnings), func(i int) int { return r.Warnings[i].ID })
	r.NextLockdownID = nextID(r.NextLockdownID, len(r.Lockdowns), func(i int) int { return r.Lockdowns[i].ID })
}

func nextID(cur, n int, id func(int) int) int {
	if cur < 1 {
		cur = 1
	}
	for i := 0; i < n; i++ {
		if id(i) >= cur {
			cur = id(i) + 1
		}
	}
	return cur
}

func (r *CommunityRecord) mute(memberID string) (MuteEntry, bool) {
	for _, m := range r.Mutes {
		if m.MemberID == memberID {
			return m, true
		}
	}
	return MuteEntry{}, false
}

// removeMutes rebuilds the slice without the entries matching drop.
func (r *CommunityRecord) removeMutes(drop func(MuteEntry) bool) {
	kept := make([]MuteEntry, 0, len(r.Mutes))
	for _, m := range r.Mutes {
		if !drop(m) {
			kept = append(kept, m)
		}
	}
	r.Mutes = kept
}

func (r *CommunityRecord) memberWarnings(memberID string) []WarningEntry {
	var out []WarningEntry
	for _, w := range r.Warnings {
		if w.MemberID == memberID {
			out = append(out, w)
		}
	}
	return out
}

func (r *CommunityRecord) exempt(memberID string) bool {
	for _, e := range r.Exemptions {
		if e.MemberID == memberID && e.Active {
			return true
		}
	}
	return false
}
