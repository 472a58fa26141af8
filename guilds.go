package moderation

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const keyPrefix = "moderation:"

// Store persists one CommunityRecord per key. Implementations live in
// the kvstore package.
type Store interface {
	Get(ctx context.Context, key string) (*CommunityRecord, error)
	Set(ctx context.Context, key string, rec *CommunityRecord) error
	Has(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Guilds gives get-or-create access to community records.
//
// Reads and writes always go to the store; nothing is cached. Update holds a
// per-guild lock only for the read-mutate-write itself, so gateway calls made
// between two Updates can still interleave with other operations on the same
// guild, and Replace/SetField from outside are last-writer-wins.
type Guilds struct {
	store    Store
	defaults map[Feature]bool
	log      *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewGuilds(store Store, defaults map[Feature]bool, log *zap.Logger) *Guilds {
	d := make(map[Feature]bool, len(AllFeatures))
	for _, f := range AllFeatures {
		d[f] = defaults[f]
	}
	return &Guilds{
		store:    store,
		defaults: d,
		log:      log.Named("guilds"),
		locks:    make(map[string]*sync.Mutex),
	}
}

func guildKey(guildID string) string {
	return keyPrefix + guildID
}

func (g *Guilds) lock(guildID string) func() {
	g.mu.Lock()
	l, ok := g.locks[guildID]
	if !ok {
		l = &sync.Mutex{}
		g.locks[guildID] = l
	}
	g.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// GetOrCreate returns the record for the guild, creating and persisting a
// default one first if none exists.
func (g *Guilds) GetOrCreate(ctx context.Context, guildID string) (*CommunityRecord, error) {
	if guildID == "" {
		return nil, ErrMissingGuild
	}
	unlock := g.lock(guildID)
	defer unlock()
	return g.load(ctx, guildID)
}

func (g *Guilds) load(ctx context.Context, guildID string) (*CommunityRecord, error) {
	key := guildKey(guildID)
	ok, err := g.store.Has(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check guild %v: %w", guildID, err)
	}

	if !ok {
		rec := newCommunityRecord(guildID, g.defaults)
		if err := g.store.Set(ctx, key, rec); err != nil {
			return nil, fmt.Errorf("failed to create guild %v: %w", guildID, err)
		}
		g.log.Debug("created guild record", zap.String("guild", guildID))
		return rec, nil
	}

	rec, err := g.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read guild %v: %w", guildID, err)
	}
	rec.normalize(g.defaults)
	return rec, nil
}

// Replace overwrites the whole record.
func (g *Guilds) Replace(ctx context.Context, guildID string, rec *CommunityRecord) error {
	if guildID == "" {
		return ErrMissingGuild
	}
	unlock := g.lock(guildID)
	defer unlock()

	rec.GuildID = guildID
	rec.normalize(g.defaults)
	if err := g.store.Set(ctx, guildKey(guildID), rec); err != nil {
		return fmt.Errorf("failed to write guild %v: %w", guildID, err)
	}
	return nil
}

// SetField sets one of the scalar configuration fields ("muteRole",
// "autoRole") and writes the record back.
func (g *Guilds) SetField(ctx context.Context, guildID, field, value string) error {
	var set func(*CommunityRecord)
	switch field {
	case "muteRole":
		set = func(r *CommunityRecord) { r.MuteRoleID = value }
	case "autoRole":
		set = func(r *CommunityRecord) { r.AutoRoleID = value }
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}

	_, err := g.Update(ctx, guildID, func(r *CommunityRecord) error {
		set(r)
		return nil
	})
	return err
}

// Update loads the record, applies fn and persists the result. If fn
// returns an error nothing is written and the error is returned as is.
func (g *Guilds) Update(ctx context.Context, guildID string, fn func(*CommunityRecord) error) (*CommunityRecord, error) {
	if guildID == "" {
		return nil, ErrMissingGuild
	}
	unlock := g.lock(guildID)
	defer unlock()

	rec, err := g.load(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if err := fn(rec); err != nil {
		return nil, err
	}
	if err := g.store.Set(ctx, guildKey(guildID), rec); err != nil {
		return nil, fmt.Errorf("failed to write guild %v: %w", guildID, err)
	}
	return rec, nil
}

// Known lists the guild ids that have a persisted record.
func (g *Guilds) Known(ctx context.Context) ([]string, error) {
	keys, err := g.store.Keys(ctx, keyPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, keyPrefix))
	}
	return ids, nil
}
