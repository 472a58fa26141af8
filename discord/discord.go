package discord

import (
	"context"
	"errors"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/intrntsrfr/moderation"
	"go.uber.org/zap"
)

var ErrNotReady = errors.New("discord session is not ready")

// Gateway performs moderation side effects through a discordgo session. The
// session is attached once the bot receives its first Ready event.
type Gateway struct {
	log *zap.Logger

	mu   sync.RWMutex
	sess *discordgo.Session
}

var _ moderation.Gateway = (*Gateway)(nil)

func NewGateway(log *zap.Logger) *Gateway {
	return &Gateway{log: log.Named("gateway")}
}

// Attach sets the session used for REST calls and state lookups. Any shard
// works, REST calls are not shard bound.
func (g *Gateway) Attach(s *discordgo.Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sess == nil {
		g.log.Info("session attached", zap.Int("shard", s.ShardID))
	}
	g.sess = s
}

func (g *Gateway) session() (*discordgo.Session, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.sess == nil {
		return nil, ErrNotReady
	}
	return g.sess, nil
}

func (g *Gateway) SelfID() string {
	s, err := g.session()
	if err != nil || s.State == nil || s.State.User == nil {
		return ""
	}
	return s.State.User.ID
}

func (g *Gateway) GrantRole(ctx context.Context, guildID, userID, roleID string) error {
	s, err := g.session()
	if err != nil {
		return err
	}
	return s.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx))
}

func (g *Gateway) RevokeRole(ctx context.Context, guildID, userID, roleID string) error {
	s, err := g.session()
	if err != nil {
		return err
	}
	return s.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx))
}

func (g *Gateway) HasRole(ctx context.Context, guildID, userID, roleID string) (bool, error) {
	s, err := g.session()
	if err != nil {
		return false, err
	}
	m, err := member(ctx, s, guildID, userID)
	if err != nil {
		return false, err
	}
	for _, r := range m.Roles {
		if r == roleID {
			return true, nil
		}
	}
	return false, nil
}

func (g *Gateway) RoleExists(ctx context.Context, guildID, roleID string) (bool, error) {
	s, err := g.session()
	if err != nil {
		return false, err
	}
	return roleExists(ctx, s, guildID, roleID)
}

func (g *Gateway) MemberExists(ctx context.Context, guildID, userID string) (bool, error) {
	s, err := g.session()
	if err != nil {
		return false, err
	}
	_, err = member(ctx, s, guildID, userID)
	if isNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

func (g *Gateway) Kick(ctx context.Context, guildID, userID, reason string) error {
	s, err := g.session()
	if err != nil {
		return err
	}
	return s.GuildMemberDeleteWithReason(guildID, userID, reason, discordgo.WithContext(ctx))
}

func (g *Gateway) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	s, err := g.session()
	if err != nil {
		return err
	}
	return s.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
}

func (g *Gateway) DeleteInvite(ctx context.Context, code, reason string) error {
	s, err := g.session()
	if err != nil {
		return err
	}
	_, err = s.InviteDelete(code, discordgo.WithContext(ctx))
	if err == nil {
		g.log.Debug("deleted invite", zap.String("code", code), zap.String("reason", reason))
	}
	return err
}

func (g *Gateway) Send(ctx context.Context, channelID string, n *moderation.Notice) error {
	s, err := g.session()
	if err != nil {
		return err
	}
	_, err = s.ChannelMessageSendComplex(channelID, noticeMessage(n), discordgo.WithContext(ctx))
	return err
}

func (g *Gateway) SendDirect(ctx context.Context, userID string, n *moderation.Notice) error {
	s, err := g.session()
	if err != nil {
		return err
	}
	ch, err := s.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return err
	}
	_, err = s.ChannelMessageSendComplex(ch.ID, noticeMessage(n), discordgo.WithContext(ctx))
	return err
}

// LockChannel denies @everyone, whose role id is the guild id, from sending
// messages in the channel.
func (g *Gateway) LockChannel(ctx context.Context, guildID, channelID, reason string) error {
	s, err := g.session()
	if err != nil {
		return err
	}
	g.log.Debug("locking channel", zap.String("channel", channelID), zap.String("reason", reason))
	return s.ChannelPermissionSet(channelID, guildID, discordgo.PermissionOverwriteTypeRole,
		0, discordgo.PermissionSendMessages, discordgo.WithContext(ctx))
}

func (g *Gateway) UnlockChannel(ctx context.Context, guildID, channelID string) error {
	s, err := g.session()
	if err != nil {
		return err
	}
	return s.ChannelPermissionSet(channelID, guildID, discordgo.PermissionOverwriteTypeRole,
		discordgo.PermissionSendMessages, 0, discordgo.WithContext(ctx))
}
