package bot

import (
	"context"
	"sync"

	"github.com/intrntsrfr/meido/pkg/mio"
	"github.com/intrntsrfr/meido/pkg/utils"
	"github.com/intrntsrfr/moderation"
	"github.com/intrntsrfr/moderation/discord"
	"golang.org/x/text/message"
)

// MessageCache remembers recent messages so deletes and edits can be
// compared against what was originally posted.
type MessageCache interface {
	Get(ctx context.Context, key string) (*moderation.Message, error)
	Set(ctx context.Context, key string, msg *moderation.Message) error
	Delete(ctx context.Context, key string) error
}

type Bot struct {
	Bot     *mio.Bot
	logger  mio.Logger
	config  *moderation.Config
	mod     *moderation.Moderation
	gateway *discord.Gateway
	cache   MessageCache
	printer *message.Printer

	wg sync.WaitGroup
}

func NewBot(config *moderation.Config, mod *moderation.Moderation, gateway *discord.Gateway, cache MessageCache, logger *moderation.ZapLogger) *Bot {
	cfg := utils.NewConfig()
	cfg.Set("token", config.Token)
	cfg.Set("shards", config.Shards)

	b := mio.NewBotBuilder(cfg).
		WithDefaultHandlers().
		WithLogger(logger).
		Build()

	return &Bot{
		Bot:     b,
		logger:  logger.Named("bot"),
		config:  config,
		mod:     mod,
		gateway: gateway,
		cache:   cache,
		printer: config.Printer(),
	}
}

func (b *Bot) Run(ctx context.Context) error {
	b.registerModules()
	b.registerDiscordHandlers()
	b.registerMioHandlers()
	b.listen(ctx)
	return b.Bot.Run(ctx)
}

// Close stops the bot and waits for the notification listener to drain.
func (b *Bot) Close() {
	b.Bot.Close()
	b.mod.Close()
	b.wg.Wait()
}

func (b *Bot) registerModules() {
	modules := []mio.Module{
		NewModule(b.Bot, b.mod, b.logger),
	}
	for _, mod := range modules {
		b.Bot.RegisterModule(mod)
	}
}

func (b *Bot) registerDiscordHandlers() {
	b.Bot.Discord.AddEventHandler(readyHandler(b))
	b.Bot.Discord.AddEventHandler(disconnectHandler(b))
	b.Bot.Discord.AddEventHandler(guildMemberAddHandler(b))
	b.Bot.Discord.AddEventHandler(inviteCreateHandler(b))
	b.Bot.Discord.AddEventHandler(messageCreateHandler(b))
	b.Bot.Discord.AddEventHandler(messageDeleteHandler(b))
	b.Bot.Discord.AddEventHandler(messageUpdateHandler(b))
}

func (b *Bot) registerMioHandlers() {
	b.Bot.AddHandler(logApplicationCommandPanicked(b))
	b.Bot.AddHandler(logApplicationCommandRan(b))
}
