package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/intrntsrfr/moderation"
	"github.com/intrntsrfr/moderation/kvstore"
	"go.uber.org/zap"
)

func messageKey(guildID, channelID, messageID string) string {
	return fmt.Sprintf("message:%v:%v:%v", guildID, channelID, messageID)
}

func readyHandler(b *Bot) func(*discordgo.Session, *discordgo.Ready) {
	return func(s *discordgo.Session, r *discordgo.Ready) {
		b.gateway.Attach(s)

		ids := make([]string, 0, len(r.Guilds))
		for _, g := range r.Guilds {
			ids = append(ids, g.ID)
		}
		b.logger.Info("ready", zap.Int("shard", s.ShardID), zap.Int("guilds", len(ids)))

		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			if _, err := b.mod.Ready(context.Background(), ids); err != nil {
				b.logger.Error("failed to reconcile mutes", zap.Error(err))
			}
		}()
	}
}

func disconnectHandler(b *Bot) func(*discordgo.Session, *discordgo.Disconnect) {
	return func(s *discordgo.Session, d *discordgo.Disconnect) {
		b.logger.Info("disconnected", zap.Int("shard", s.ShardID))
	}
}

func guildMemberAddHandler(b *Bot) func(*discordgo.Session, *discordgo.GuildMemberAdd) {
	return func(s *discordgo.Session, d *discordgo.GuildMemberAdd) {
		if d.Member == nil || d.User == nil || d.User.Bot {
			return
		}
		if err := b.mod.MemberJoin(context.Background(), d.GuildID, d.User.ID); err != nil {
			b.logger.Warn("member join", zap.String("guild", d.GuildID), zap.Error(err))
		}
	}
}

func inviteCreateHandler(b *Bot) func(*discordgo.Session, *discordgo.InviteCreate) {
	return func(s *discordgo.Session, d *discordgo.InviteCreate) {
		if d.Invite == nil || d.Inviter == nil {
			return
		}
		inv := moderation.Invite{
			Code:      d.Code,
			GuildID:   d.GuildID,
			ChannelID: d.ChannelID,
			InviterID: d.Inviter.ID,
		}
		if err := b.mod.InviteCreate(context.Background(), inv); err != nil {
			b.logger.Warn("invite create", zap.String("guild", d.GuildID), zap.Error(err))
		}
	}
}

func messageCreateHandler(b *Bot) func(*discordgo.Session, *discordgo.MessageCreate) {
	return func(s *discordgo.Session, d *discordgo.MessageCreate) {
		if d.GuildID == "" || d.Author == nil || d.Author.Bot {
			return
		}
		ctx := context.Background()
		msg := toMessage(d.Message)
		if err := b.cache.Set(ctx, messageKey(msg.GuildID, msg.ChannelID, msg.ID), msg); err != nil {
			b.logger.Error("failed to cache message", zap.Error(err))
		}
		if err := b.mod.MessageCreate(ctx, *msg); err != nil {
			b.logger.Warn("message create", zap.String("guild", d.GuildID), zap.Error(err))
		}
	}
}

func messageUpdateHandler(b *Bot) func(*discordgo.Session, *discordgo.MessageUpdate) {
	return func(s *discordgo.Session, d *discordgo.MessageUpdate) {
		// embed-only updates carry no author
		if d.GuildID == "" || d.Author == nil || d.Author.Bot {
			return
		}
		ctx := context.Background()
		key := messageKey(d.GuildID, d.ChannelID, d.ID)

		before, err := b.cache.Get(ctx, key)
		if err != nil {
			if !errors.Is(err, kvstore.ErrNotFound) {
				b.logger.Error("failed to read cached message", zap.Error(err))
			}
			if d.BeforeUpdate == nil {
				return
			}
			before = toMessage(d.BeforeUpdate)
		}

		after := toMessage(d.Message)
		if err := b.cache.Set(ctx, key, after); err != nil {
			b.logger.Error("failed to cache message", zap.Error(err))
		}
		if err := b.mod.MessageUpdate(ctx, *before, *after); err != nil {
			b.logger.Warn("message update", zap.String("guild", d.GuildID), zap.Error(err))
		}
	}
}

func messageDeleteHandler(b *Bot) func(*discordgo.Session, *discordgo.MessageDelete) {
	return func(s *discordgo.Session, d *discordgo.MessageDelete) {
		if d.GuildID == "" {
			return
		}
		ctx := context.Background()
		key := messageKey(d.GuildID, d.ChannelID, d.ID)

		msg, err := b.cache.Get(ctx, key)
		if err != nil {
			if !errors.Is(err, kvstore.ErrNotFound) {
				b.logger.Error("failed to read cached message", zap.Error(err))
			}
			if d.BeforeDelete == nil || d.BeforeDelete.Author == nil {
				return
			}
			msg = toMessage(d.BeforeDelete)
		}
		_ = b.cache.Delete(ctx, key)

		if err := b.mod.MessageDelete(ctx, *msg); err != nil {
			b.logger.Warn("message delete", zap.String("guild", d.GuildID), zap.Error(err))
		}
	}
}
