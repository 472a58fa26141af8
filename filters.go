package moderation

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"
)

// linkDenylist is matched as plain substrings, so ".com" also catches
// "discord.com" and any sentence that happens to contain it.
var linkDenylist = []string{
	"https://",
	"http://",
	"discord.gg",
	"discord.com",
	".xyz",
	".online",
	".com",
	".ru",
	".space",
}

const (
	antiJoinReason   = "Anti-join is enabled."
	antiInviteReason = "Invites are not allowed here."
)

func containsLink(content string) bool {
	for _, l := range linkDenylist {
		if strings.Contains(content, l) {
			return true
		}
	}
	return false
}

// Filters holds the stateless reactive checks.
type Filters struct {
	features   *Features
	exemptions *Exemptions
	gw         Gateway
	log        *zap.Logger
}

func NewFilters(features *Features, exemptions *Exemptions, gw Gateway, log *zap.Logger) *Filters {
	return &Filters{
		features:   features,
		exemptions: exemptions,
		gw:         gw,
		log:        log.Named("filters"),
	}
}

// active reports whether the feature is on and the member is not exempt.
func (f *Filters) active(ctx context.Context, guildID, memberID string, feature Feature) (bool, error) {
	on, err := f.features.Status(ctx, guildID, feature)
	if err != nil || !on {
		return false, err
	}
	if memberID == "" {
		return true, nil
	}
	exempt, err := f.exemptions.IsExempt(ctx, guildID, memberID)
	if err != nil {
		return false, err
	}
	return !exempt, nil
}

// AntiLink deletes messages containing a denied link and reports whether it
// did.
func (f *Filters) AntiLink(ctx context.Context, msg Message) (bool, error) {
	if msg.GuildID == "" || msg.AuthorID == "" {
		return false, nil
	}
	ok, err := f.active(ctx, msg.GuildID, msg.AuthorID, FeatureAntiLink)
	if err != nil || !ok {
		return false, err
	}
	if !containsLink(msg.Content) {
		return false, nil
	}

	if err := f.gw.DeleteMessage(ctx, msg.ChannelID, msg.ID); err != nil {
		return false, sideEffect("delete message", err)
	}
	f.log.Info("removed link", zap.String("guild", msg.GuildID), zap.String("member", msg.AuthorID))

	err = f.gw.Send(ctx, msg.ChannelID, &Notice{
		Level:       NoticeWarn,
		Title:       "Anti-link",
		Description: "Links are not allowed on this server.",
		Mention:     msg.AuthorID,
	})
	return true, sideEffect("send notice", err)
}

// AntiInvite deletes invites created by non-exempt members.
func (f *Filters) AntiInvite(ctx context.Context, inv Invite) (bool, error) {
	if inv.GuildID == "" || inv.InviterID == "" {
		return false, nil
	}
	ok, err := f.active(ctx, inv.GuildID, inv.InviterID, FeatureAntiInvite)
	if err != nil || !ok {
		return false, err
	}

	if err := f.gw.DeleteInvite(ctx, inv.Code, antiInviteReason); err != nil {
		return false, sideEffect("delete invite", err)
	}
	f.log.Info("removed invite", zap.String("guild", inv.GuildID), zap.String("code", inv.Code))

	err = f.gw.Send(ctx, inv.ChannelID, &Notice{
		Level:       NoticeWarn,
		Title:       "Anti-invite",
		Description: "Invites are not allowed on this server. The invite has been deleted.",
		Mention:     inv.InviterID,
	})
	return true, sideEffect("send notice", err)
}

// AntiJoin kicks every member that joins while the feature is on, then
// tells them why. Exemptions do not apply.
func (f *Filters) AntiJoin(ctx context.Context, guildID, memberID string) (bool, error) {
	if memberID == "" {
		return false, ErrMissingMember
	}
	on, err := f.features.Status(ctx, guildID, FeatureAntiJoin)
	if err != nil || !on {
		return false, err
	}

	if err := f.gw.Kick(ctx, guildID, memberID, antiJoinReason); err != nil {
		return false, sideEffect("kick member", err)
	}
	f.log.Info("kicked joining member", zap.String("guild", guildID), zap.String("member", memberID))

	err = f.gw.SendDirect(ctx, memberID, &Notice{
		Level:       NoticeInfo,
		Title:       "Anti-join",
		Description: "You were kicked because the server is not accepting new members right now.",
	})
	return true, sideEffect("send direct notice", err)
}

// GhostPing reports whether a deleted message mentioned other members, or,
// when edited is set, whether the edit removed mentions that deleted had.
func (f *Filters) GhostPing(ctx context.Context, deleted Message, edited *Message) (bool, error) {
	if deleted.GuildID == "" || deleted.AuthorID == "" {
		return false, nil
	}
	ok, err := f.active(ctx, deleted.GuildID, deleted.AuthorID, FeatureGhostPing)
	if err != nil || !ok {
		return false, err
	}
	if len(lostMentions(deleted, edited)) == 0 {
		return false, nil
	}
	f.log.Info("ghost ping detected", zap.String("guild", deleted.GuildID), zap.String("member", deleted.AuthorID))
	return true, nil
}

// lostMentions lists the members deleted mentioned that are gone from edited,
// or all of them when edited is nil. Self mentions are ignored.
func lostMentions(deleted Message, edited *Message) []string {
	var lost []string
	for _, id := range deleted.Mentions {
		if id == deleted.AuthorID {
			continue
		}
		if edited != nil && slices.Contains(edited.Mentions, id) {
			continue
		}
		lost = append(lost, id)
	}
	return lost
}

func ghostPingNotice(deleted Message, lost []string) *Notice {
	mentions := make([]string, len(lost))
	for i, id := range lost {
		mentions[i] = "<@" + id + ">"
	}
	return &Notice{
		Level:       NoticeAlert,
		Title:       "Ghost ping",
		Description: fmt.Sprintf("<@%v> pinged %v and then removed the ping.", deleted.AuthorID, strings.Join(mentions, ", ")),
	}
}
