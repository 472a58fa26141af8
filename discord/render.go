package discord

import (
	"github.com/bwmarrin/discordgo"
	"github.com/intrntsrfr/meido/pkg/utils/builders"
	"github.com/intrntsrfr/moderation"
)

type Color int

const (
	ColorRed    Color = 0xff0000
	ColorGreen  Color = 0x00ff00
	ColorBlue   Color = 0x61d1ed
	ColorYellow Color = 0xfee75c
	ColorOrange Color = 0xf57f54
)

func levelColor(l moderation.NoticeLevel) Color {
	switch l {
	case moderation.NoticeWarn:
		return ColorYellow
	case moderation.NoticeAlert:
		return ColorRed
	default:
		return ColorBlue
	}
}

// NoticeEmbed renders a notice as an embed.
func NoticeEmbed(n *moderation.Notice) *discordgo.MessageEmbed {
	return builders.NewEmbedBuilder().
		WithTitle(n.Title).
		WithDescription(n.Description).
		WithColor(int(levelColor(n.Level))).
		Build()
}

func noticeMessage(n *moderation.Notice) *discordgo.MessageSend {
	msg := builders.NewMessageSendBuilder().
		Embed(NoticeEmbed(n)).
		Build()
	if n.Mention != "" {
		msg.Content = "<@" + n.Mention + ">"
	}
	return msg
}
