package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/intrntsrfr/meido/pkg/mio"
	"github.com/intrntsrfr/meido/pkg/mio/bot"
	"github.com/intrntsrfr/meido/pkg/mio/discord"
	"github.com/intrntsrfr/meido/pkg/utils/builders"
	"github.com/intrntsrfr/moderation"
	"go.uber.org/zap"
)

type module struct {
	*bot.ModuleBase
	mod *moderation.Moderation
	log mio.Logger
}

func NewModule(b *bot.Bot, mod *moderation.Moderation, logger mio.Logger) *module {
	logger = logger.Named("moderation")
	return &module{
		ModuleBase: bot.NewModule(b, "moderation", logger),
		mod:        mod,
		log:        logger,
	}
}

func (m *module) Hook() error {
	if err := m.RegisterCommands(); err != nil {
		return err
	}
	return m.RegisterApplicationCommands(
		newModerationSlash(m),
	)
}

type subcommand struct {
	option *discordgo.ApplicationCommandOption
	run    func(ctx context.Context, d *discord.DiscordApplicationCommand) (string, error)
}

func memberOption(description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "member",
		Description: description,
		Required:    true,
	}
}

func reasonOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "reason",
		Description: "Why",
	}
}

func channelOption(description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionChannel,
		Name:        "channel",
		Description: description,
		Required:    true,
	}
}

func newModerationSlash(m *module) *bot.ModuleApplicationCommand {
	subs := m.subcommands()

	cmd := bot.NewModuleApplicationCommandBuilder(m, "mod").
		Type(discordgo.ChatApplicationCommand).
		Description("Moderation commands").
		NoDM().
		Permissions(discordgo.PermissionManageRoles)
	for _, s := range subs {
		cmd = cmd.AddSubcommand(s.option)
	}

	run := func(d *discord.DiscordApplicationCommand) {
		ctx := context.Background()
		for _, s := range subs {
			if _, ok := d.Options(s.option.Name); !ok {
				continue
			}
			text, err := s.run(ctx, d)
			if err != nil {
				m.respondError(d, s.option.Name, err)
				return
			}
			d.RespondEmbed(builders.NewEmbedBuilder().
				WithOkColor().
				WithDescription(text).
				Build())
			return
		}
		d.Respond("Unknown subcommand")
	}

	return cmd.Execute(run).Build()
}

func (m *module) respondError(d *discord.DiscordApplicationCommand, name string, err error) {
	switch moderation.ClassOf(err) {
	case moderation.ClassPrecondition, moderation.ClassPolicy:
		d.Respond(capitalize(err.Error()))
	case moderation.ClassSideEffect:
		d.Respond("The change was saved, but Discord refused part of it: " + err.Error())
	default:
		m.log.Error("command failed", zap.String("subcommand", name), zap.Error(err))
		d.Respond("Something went wrong")
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func stringOpt(d *discord.DiscordApplicationCommand, path string) string {
	if opt, ok := d.Options(path); ok {
		return opt.StringValue()
	}
	return ""
}

func memberOpt(d *discord.DiscordApplicationCommand, sub string) (string, error) {
	id, ok := ParseMention(stringOpt(d, sub+":member"))
	if !ok {
		return "", moderation.ErrMissingMember
	}
	return id, nil
}

func channelOpt(d *discord.DiscordApplicationCommand, sub string) (string, error) {
	opt, ok := d.Options(sub + ":channel")
	if !ok {
		return "", moderation.ErrMissingChannel
	}
	ch := opt.ChannelValue(d.Sess.Real())
	if ch == nil {
		return "", moderation.ErrMissingChannel
	}
	return ch.ID, nil
}

func (m *module) subcommands() []subcommand {
	featureChoices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(moderation.AllFeatures))
	for _, f := range moderation.AllFeatures {
		featureChoices = append(featureChoices, &discordgo.ApplicationCommandOptionChoice{
			Name:  string(f),
			Value: string(f),
		})
	}

	return []subcommand{
		{
			option: &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "mute",
				Description: "Mute a member until unmuted",
				Options:     []*discordgo.ApplicationCommandOption{memberOption("Member to mute"), reasonOption()},
			},
			run: m.mute(moderation.Permanent),
		},
		{
			option: &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "tempmute",
				Description: "Mute a member for a while",
				Options: []*discordgo.ApplicationCommandOption{
					memberOption("Member to mute"),
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "duration",
						Description: "How long, for example 30m or 2h",
						Required:    true,
					},
					reasonOption(),
				},
			},
			run: m.mute(moderation.Temporary),
		},
		{
			option: &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "unmute",
				Description: "Unmute a member",
				Options:     []*discordgo.ApplicationCommandOption{memberOption("Member to unmute")},
			},
			run: m.unmute,
		},
		{
			option: &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "warn",
				Description: "Warn a member",
				Options:     []*discordgo.ApplicationCommandOption{memberOption("Member to warn"), reasonOption()},
			},
			run: m.warn,
		},
		{
			option: &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "unwarn",
				Description: "Remove the latest warning of a member",
				Options:     []*discordgo.ApplicationCommandOption{memberOption("Member to unwarn")},
			},
			run: m.unwarn,
		},
		{
			option: &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "warnings",
				Description: "List the warnings of a member",
				Options:     []*discordgo.ApplicationCommandOption{memberOption("Member to look up")},
			},
			run: m.warnings,
		},
		{
			option: &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "muterole",
				Description: "View or set the mute role",
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "role",
					Description: "Role id or mention; leave empty to view",
				}},
			},
			run: m.muteRole,
		},
		{
			option: &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "autorole",
				Description: "View, set or clear the role given to new members",
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "role",
					Description: "Role id or mention, \"none\" to clear; leave empty to view",
				}},
			},
			run: m.autoRole,
		},
		{
			option: &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "feature",
				Description: "Enable, disable or view a moderation feature",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "name",
						Description: "Feature",
						Required:    true,
						Choices:     featureChoices,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "state",
						Description: "New state; leave empty to view",
						Choices: []*discordgo.ApplicationCommandOptionChoice{
							{Name: "enable", Value: "enable"},
							{Name: "disable", Value: "disable"},
						},
					},
				},
			},
			run: m.feature,
		},
		{
			option: &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "exempt",
				Description: "Exempt a member from the automatic filters",
				Options:     []*discordgo.ApplicationCommandOption{memberOption("Member to exempt")},
			},
			run: m.exempt,
		},
		{
			option: &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "unexempt",
				Description: "Remove a filter exemption",
				Options:     []*discordgo.ApplicationCommandOption{memberOption("Member to unexempt")},
			},
			run: m.unexempt,
		},
		{
			option: &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "exemptions",
				Description: "List exempt members",
			},
			run: m.exemptions,
		},
		{
			option: &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "lockdown",
				Description: "Stop everyone from talking in a channel",
				Options:     []*discordgo.ApplicationCommandOption{channelOption("Channel to lock"), reasonOption()},
			},
			run: m.lockdown,
		},
		{
			option: &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "unlock",
				Description: "Lift a lockdown",
				Options:     []*discordgo.ApplicationCommandOption{channelOption("Channel to unlock")},
			},
			run: m.unlock,
		},
	}
}

func (m *module) mute(kind moderation.MuteKind) func(context.Context, *discord.DiscordApplicationCommand) (string, error) {
	sub := string(kind)
	return func(ctx context.Context, d *discord.DiscordApplicationCommand) (string, error) {
		memberID, err := memberOpt(d, sub)
		if err != nil {
			return "", err
		}

		req := moderation.MuteRequest{
			Kind:        kind,
			GuildID:     d.GuildID(),
			MemberID:    memberID,
			ModeratorID: d.AuthorID(),
			ChannelID:   d.ChannelID(),
			Reason:      stringOpt(d, sub+":reason"),
		}
		if kind == moderation.Temporary {
			dur, err := time.ParseDuration(stringOpt(d, sub+":duration"))
			if err != nil {
				return "", moderation.ErrMissingDuration
			}
			req.Duration = dur
		}

		mute, err := m.mod.Mutes.Create(ctx, req)
		if err != nil {
			return "", err
		}
		if kind == moderation.Temporary {
			return fmt.Sprintf("Muted <@%v> until <t:%v:f>", mute.MemberID, mute.ExpiresAt.Unix()), nil
		}
		return fmt.Sprintf("Muted <@%v>", mute.MemberID), nil
	}
}

func (m *module) unmute(ctx context.Context, d *discord.DiscordApplicationCommand) (string, error) {
	memberID, err := memberOpt(d, "unmute")
	if err != nil {
		return "", err
	}
	if _, err := m.mod.Mutes.Delete(ctx, d.GuildID(), memberID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Unmuted <@%v>", memberID), nil
}

func (m *module) warn(ctx context.Context, d *discord.DiscordApplicationCommand) (string, error) {
	memberID, err := memberOpt(d, "warn")
	if err != nil {
		return "", err
	}
	w, err := m.mod.Warns.Create(ctx, moderation.WarnRequest{
		GuildID:     d.GuildID(),
		MemberID:    memberID,
		ModeratorID: d.AuthorID(),
		ChannelID:   d.ChannelID(),
		Reason:      stringOpt(d, "warn:reason"),
	})
	if w == nil {
		return "", err
	}
	if err != nil {
		m.log.Warn("warning escalation failed", zap.String("guild", w.GuildID), zap.Error(err))
	}
	return fmt.Sprintf("Warned <@%v> (warning #%v)", w.MemberID, w.ID), nil
}

func (m *module) unwarn(ctx context.Context, d *discord.DiscordApplicationCommand) (string, error) {
	memberID, err := memberOpt(d, "unwarn")
	if err != nil {
		return "", err
	}
	w, err := m.mod.Warns.Delete(ctx, d.GuildID(), memberID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Removed warning #%v of <@%v>", w.ID, w.MemberID), nil
}

func (m *module) warnings(ctx context.Context, d *discord.DiscordApplicationCommand) (string, error) {
	memberID, err := memberOpt(d, "warnings")
	if err != nil {
		return "", err
	}
	all, err := m.mod.Warns.All(ctx, d.GuildID(), memberID)
	if err != nil {
		return "", err
	}
	if len(all) == 0 {
		return fmt.Sprintf("<@%v> has no warnings", memberID), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Warnings of <@%v>:\n", memberID))
	for _, w := range all {
		sb.WriteString(fmt.Sprintf("#%v by <@%v>: %v\n", w.ID, w.ModeratorID, w.Reason))
	}
	return sb.String(), nil
}

func (m *module) muteRole(ctx context.Context, d *discord.DiscordApplicationCommand) (string, error) {
	raw := stringOpt(d, "muterole:role")
	if raw == "" {
		role, err := m.mod.Mutes.Role(ctx, d.GuildID())
		if err != nil {
			return "", err
		}
		if role == "" {
			return "No mute role is set", nil
		}
		return fmt.Sprintf("Mute role is <@&%v>", role), nil
	}

	roleID, ok := ParseMention(raw)
	if !ok {
		return "", moderation.ErrMissingRole
	}
	if err := m.mod.Mutes.SetRole(ctx, d.GuildID(), roleID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Mute role set to <@&%v>", roleID), nil
}

func (m *module) autoRole(ctx context.Context, d *discord.DiscordApplicationCommand) (string, error) {
	raw := stringOpt(d, "autorole:role")
	switch raw {
	case "":
		role, err := m.mod.AutoRole.Get(ctx, d.GuildID())
		if err != nil {
			return "", err
		}
		if role == "" {
			return "No auto role is set", nil
		}
		return fmt.Sprintf("Auto role is <@&%v>", role), nil
	case "none":
		if err := m.mod.AutoRole.Delete(ctx, d.GuildID()); err != nil {
			return "", err
		}
		return "Auto role cleared", nil
	}

	roleID, ok := ParseMention(raw)
	if !ok {
		return "", moderation.ErrMissingRole
	}
	if err := m.mod.AutoRole.Set(ctx, d.GuildID(), roleID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Auto role set to <@&%v>", roleID), nil
}

func (m *module) feature(ctx context.Context, d *discord.DiscordApplicationCommand) (string, error) {
	f, err := moderation.ParseFeature(stringOpt(d, "feature:name"))
	if err != nil {
		return "", err
	}

	switch stringOpt(d, "feature:state") {
	case "enable":
		if err := m.mod.Features.Enable(ctx, d.GuildID(), f); err != nil {
			return "", err
		}
		return fmt.Sprintf("Enabled %v", f), nil
	case "disable":
		if err := m.mod.Features.Disable(ctx, d.GuildID(), f); err != nil {
			return "", err
		}
		return fmt.Sprintf("Disabled %v", f), nil
	}

	on, err := m.mod.Features.Status(ctx, d.GuildID(), f)
	if err != nil {
		return "", err
	}
	if on {
		return fmt.Sprintf("%v is enabled", f), nil
	}
	return fmt.Sprintf("%v is disabled", f), nil
}

func (m *module) exempt(ctx context.Context, d *discord.DiscordApplicationCommand) (string, error) {
	memberID, err := memberOpt(d, "exempt")
	if err != nil {
		return "", err
	}
	added, err := m.mod.Exemptions.Add(ctx, d.GuildID(), memberID)
	if err != nil {
		return "", err
	}
	if !added {
		return fmt.Sprintf("<@%v> is already exempt", memberID), nil
	}
	return fmt.Sprintf("<@%v> is now exempt", memberID), nil
}

func (m *module) unexempt(ctx context.Context, d *discord.DiscordApplicationCommand) (string, error) {
	memberID, err := memberOpt(d, "unexempt")
	if err != nil {
		return "", err
	}
	removed, err := m.mod.Exemptions.Remove(ctx, d.GuildID(), memberID)
	if err != nil {
		return "", err
	}
	if !removed {
		return fmt.Sprintf("<@%v> was not exempt", memberID), nil
	}
	return fmt.Sprintf("<@%v> is no longer exempt", memberID), nil
}

func (m *module) exemptions(ctx context.Context, d *discord.DiscordApplicationCommand) (string, error) {
	list, err := m.mod.Exemptions.List(ctx, d.GuildID())
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return "Nobody is exempt", nil
	}
	mentions := make([]string, len(list))
	for i, e := range list {
		mentions[i] = fmt.Sprintf("<@%v>", e.MemberID)
	}
	return "Exempt members: " + strings.Join(mentions, ", "), nil
}

func (m *module) lockdown(ctx context.Context, d *discord.DiscordApplicationCommand) (string, error) {
	channelID, err := channelOpt(d, "lockdown")
	if err != nil {
		return "", err
	}
	if _, err := m.mod.Lockdowns.Lock(ctx, d.GuildID(), channelID, stringOpt(d, "lockdown:reason")); err != nil {
		return "", err
	}
	return fmt.Sprintf("Locked <#%v>", channelID), nil
}

func (m *module) unlock(ctx context.Context, d *discord.DiscordApplicationCommand) (string, error) {
	channelID, err := channelOpt(d, "unlock")
	if err != nil {
		return "", err
	}
	if _, err := m.mod.Lockdowns.Unlock(ctx, d.GuildID(), channelID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Unlocked <#%v>", channelID), nil
}

func logApplicationCommandRan(b *Bot) func(cmd *bot.ApplicationCommandRan) {
	return func(cmd *bot.ApplicationCommandRan) {
		b.logger.Info("Slash",
			zap.String("name", cmd.Interaction.Name()),
			zap.String("id", cmd.Interaction.ID()),
			zap.String("channelID", cmd.Interaction.ChannelID()),
			zap.String("userID", cmd.Interaction.AuthorID()),
		)
	}
}

func logApplicationCommandPanicked(b *Bot) func(cmd *bot.ApplicationCommandPanicked) {
	return func(cmd *bot.ApplicationCommandPanicked) {
		b.logger.Error("Slash panic",
			zap.Any("slash", cmd.ApplicationCommand),
			zap.Any("interaction", cmd.Interaction),
			zap.Any("reason", cmd.Reason),
		)
	}
}
