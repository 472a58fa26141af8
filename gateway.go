package moderation

import (
	"context"
	"time"
)

// Gateway is everything the engine needs from the chat platform. Each call
// may fail; the engine wraps failures in a SideEffectError.
type Gateway interface {
	// SelfID is the bot's own user id, used as moderator for automatic actions.
	SelfID() string

	GrantRole(ctx context.Context, guildID, userID, roleID string) error
	RevokeRole(ctx context.Context, guildID, userID, roleID string) error
	HasRole(ctx context.Context, guildID, userID, roleID string) (bool, error)
	RoleExists(ctx context.Context, guildID, roleID string) (bool, error)
	MemberExists(ctx context.Context, guildID, userID string) (bool, error)

	Kick(ctx context.Context, guildID, userID, reason string) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	DeleteInvite(ctx context.Context, code, reason string) error

	Send(ctx context.Context, channelID string, n *Notice) error
	SendDirect(ctx context.Context, userID string, n *Notice) error

	LockChannel(ctx context.Context, guildID, channelID, reason string) error
	UnlockChannel(ctx context.Context, guildID, channelID string) error
}

type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeWarn
	NoticeAlert
)

// Notice is a platform independent message. The gateway decides how to
// render it.
type Notice struct {
	Level       NoticeLevel
	Title       string
	Description string
	// Mention is a user id to ping alongside the notice.
	Mention string
}

// Message is an inbound chat message.
type Message struct {
	ID        string
	GuildID   string
	ChannelID string
	AuthorID  string
	Content   string
	Mentions  []string
	CreatedAt time.Time
}

// Invite is an inbound invite creation.
type Invite struct {
	Code      string
	GuildID   string
	ChannelID string
	InviterID string
}
