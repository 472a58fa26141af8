package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/intrntsrfr/moderation"
	"go.uber.org/zap"
)

const notifyBuffer = 256

// listen forwards lifecycle events to a goroutine that posts them in the
// channel the action came from. Events are dropped if the buffer is full.
func (b *Bot) listen(ctx context.Context) {
	events := make(chan moderation.Event, notifyBuffer)
	b.mod.Bus.AddHandler(func(e moderation.Event) {
		select {
		case events <- e:
		default:
			b.logger.Warn("notification dropped", zap.String("kind", string(e.Kind())))
		}
	})

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case e := <-events:
				channelID, n := b.notice(e)
				if n == nil || channelID == "" {
					continue
				}
				if err := b.gateway.Send(ctx, channelID, n); err != nil {
					b.logger.Warn("failed to send notification", zap.String("kind", string(e.Kind())), zap.Error(err))
				}
			}
		}
	}()
}

// notice renders an event and picks the channel it belongs in.
func (b *Bot) notice(e moderation.Event) (string, *moderation.Notice) {
	p := b.printer
	switch e := e.(type) {
	case moderation.MuteCreated:
		return e.Mute.ChannelID, &moderation.Notice{
			Level:       moderation.NoticeWarn,
			Title:       "Member muted",
			Description: muteDescription(b, e.Mute),
			Mention:     e.Mute.MemberID,
		}
	case moderation.MuteEnded:
		return e.Mute.ChannelID, &moderation.Notice{
			Level:       moderation.NoticeInfo,
			Title:       "Member unmuted",
			Description: p.Sprintf("<@%v> is no longer muted. (mute #%d)", e.Mute.MemberID, e.Mute.ID),
		}
	case moderation.WarnCreated:
		return e.Warning.ChannelID, &moderation.Notice{
			Level:       moderation.NoticeWarn,
			Title:       "Member warned",
			Description: p.Sprintf("<@%v> was warned by <@%v>.\nReason: %v\nWarning #%d", e.Warning.MemberID, e.Warning.ModeratorID, e.Warning.Reason, e.Warning.ID),
			Mention:     e.Warning.MemberID,
		}
	case moderation.WarnDeleted:
		return e.Warning.ChannelID, &moderation.Notice{
			Level:       moderation.NoticeInfo,
			Title:       "Warning removed",
			Description: p.Sprintf("Warning #%d of <@%v> was removed.", e.Warning.ID, e.Warning.MemberID),
		}
	case moderation.WarnEscalatedToMute:
		return e.Warning.ChannelID, &moderation.Notice{
			Level:       moderation.NoticeAlert,
			Title:       "Warning limit reached",
			Description: fmt.Sprintf("<@%v> reached the warning limit and was muted until <t:%v:f>.", e.Warning.MemberID, e.Mute.ExpiresAt.Unix()),
		}
	case moderation.WarnEscalatedToKick:
		return e.Warning.ChannelID, &moderation.Notice{
			Level:       moderation.NoticeAlert,
			Title:       "Warning limit reached",
			Description: p.Sprintf("<@%v> reached the warning limit and was kicked.", e.Warning.MemberID),
		}
	case moderation.LockdownStarted:
		return e.Lockdown.ChannelID, &moderation.Notice{
			Level:       moderation.NoticeAlert,
			Title:       "Channel locked",
			Description: p.Sprintf("This channel has been locked.\nReason: %v", e.Lockdown.Reason),
		}
	case moderation.LockdownEnded:
		return e.ChannelID, &moderation.Notice{
			Level:       moderation.NoticeInfo,
			Title:       "Channel unlocked",
			Description: "This channel has been unlocked.",
		}
	}
	return "", nil
}

func muteDescription(b *Bot, m moderation.MuteEntry) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<@%v> was muted by <@%v>.\n", m.MemberID, m.ModeratorID))
	sb.WriteString(fmt.Sprintf("Reason: %v\n", m.Reason))
	if m.Kind == moderation.Temporary {
		// unix timestamps must not be grouped by the printer
		sb.WriteString(fmt.Sprintf("Duration: %v\nExpires: <t:%v:R>\n", m.Duration, m.ExpiresAt.Unix()))
	}
	sb.WriteString(b.printer.Sprintf("Mute #%d", m.ID))
	return sb.String()
}
