package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/skysanctuary/warden/internal/bot/constants"
	"github.com/skysanctuary/warden/internal/giveaway"
	"github.com/skysanctuary/warden/internal/progression"
	"github.com/skysanctuary/warden/internal/roster"
	"github.com/skysanctuary/warden/internal/setup/config"
	"github.com/skysanctuary/warden/internal/ticket"
)

// commandHandler processes one slash command after the response is deferred.
type commandHandler func(ctx context.Context, event *events.ApplicationCommandInteractionCreate)

// componentHandler processes one component interaction.
type componentHandler func(ctx context.Context, event *events.ComponentInteractionCreate)

// giveawayMeta remembers enough about a started giveaway to conclude and
// reroll it. Keyed by the source giveaway message; lost on restart, same as
// the claim tracker state.
type giveawayMeta struct {
	channelID   uint64
	winnerCount int
	prize       string
}

// Bot wires the domain services to the Discord gateway: slash commands,
// component interactions and the event listeners that drive XP awards and
// giveaway claims.
type Bot struct {
	client    bot.Client
	guildID   snowflake.ID
	adapter   *GuildAdapter
	ledger    *progression.Ledger
	resolver  *progression.Resolver
	syncer    *progression.Syncer
	tickets   *ticket.Manager
	giveaways *giveaway.Tracker
	rosterJob *roster.Job
	rosterSrc roster.Source
	identity  roster.Resolver
	guildName string
	finishXP  int64
	logger    *zap.Logger

	commands   map[string]commandHandler
	components map[string]componentHandler

	giveawayMu   sync.Mutex
	giveawayMeta map[uint64]giveawayMeta
}

// New builds the Bot and its Discord client with the gateway intents the
// listeners need.
func New(
	cfg *config.Config,
	adapter *GuildAdapter,
	ledger *progression.Ledger,
	resolver *progression.Resolver,
	syncer *progression.Syncer,
	tickets *ticket.Manager,
	giveaways *giveaway.Tracker,
	rosterJob *roster.Job,
	rosterSrc roster.Source,
	identity roster.Resolver,
	logger *zap.Logger,
) (*Bot, error) {
	b := &Bot{
		guildID:      snowflake.ID(cfg.Discord.GuildID),
		adapter:      adapter,
		ledger:       ledger,
		resolver:     resolver,
		syncer:       syncer,
		tickets:      tickets,
		giveaways:    giveaways,
		rosterJob:    rosterJob,
		rosterSrc:    rosterSrc,
		identity:     identity,
		guildName:    cfg.Hypixel.GuildName,
		finishXP:     cfg.Progression.FinishBonusXP,
		logger:       logger.Named("bot"),
		giveawayMeta: make(map[uint64]giveawayMeta),
	}

	b.commands = map[string]commandHandler{
		constants.XPCommandName:       b.handleXP,
		constants.RatingCommandName:   b.handleRating,
		constants.FinishCommandName:   b.handleFinish,
		constants.CloseCommandName:    b.handleClose,
		constants.CloseAllCommandName: b.handleCloseAll,
		constants.PanelCommandName:    b.handlePanel,
		constants.SetupCommandName:    b.handleSetup,
		constants.GiveawayCommandName: b.handleGiveaway,
		constants.RerollCommandName:   b.handleReroll,
		constants.VerifyCommandName:   b.handleVerify,
		constants.NameCommandName:     b.handleName,
		constants.UpdateXPCommandName: b.handleUpdateXP,
	}
	b.components = map[string]componentHandler{
		constants.PanelDungeonSelectCustomID: b.handlePanelOpen,
		constants.PanelKuudraSelectCustomID:  b.handlePanelOpen,
		constants.PanelSlayerSelectCustomID:  b.handleSlayerBossSelect,
		constants.PanelApplyButtonCustomID:   b.handleApplyOpen,
		constants.SlayerTierSelectPrefix:     b.handleSlayerTierSelect,
		constants.CloseAllConfirmCustomID:    b.handleCloseAllConfirm,
		constants.CloseAllCancelCustomID:     b.handleCloseAllCancel,
		constants.RatingSelectCustomID:       b.handleRatingSelect,
	}

	client, err := disgo.New(cfg.Discord.Token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildMembers,
				gateway.IntentGuildMessages,
				gateway.IntentGuildMessageReactions,
				gateway.IntentMessageContent,
			),
		),
		bot.WithEventListeners(&events.ListenerAdapter{
			OnApplicationCommandInteraction: b.onApplicationCommand,
			OnComponentInteraction:          b.onComponent,
			OnMessageCreate:                 b.onMessageCreate,
			OnMessageReactionAdd:            b.onReactionAdd,
			OnGuildMemberJoin:               b.onMemberJoin,
		}),
	)
	if err != nil {
		return nil, err
	}

	b.client = client
	adapter.SetClient(client)
	return b, nil
}

// Start registers the command set on the configured guild and opens the
// gateway connection.
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Registering guild commands", zap.Uint64("guildID", uint64(b.guildID)))

	_, err := b.client.Rest().SetGuildCommands(b.client.ApplicationID(), b.guildID, commandCreates())
	if err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	b.logger.Info("Starting bot")
	return b.client.OpenGateway(ctx)
}

// Close gracefully shuts down the gateway connection.
func (b *Bot) Close() {
	b.logger.Info("Closing bot")
	b.client.Close(context.Background())
}

// onApplicationCommand defers the response and dispatches to the routing
// table in a goroutine.
func (b *Bot) onApplicationCommand(event *events.ApplicationCommandInteractionCreate) {
	commandName := event.SlashCommandInteractionData().CommandName()
	handler, ok := b.commands[commandName]
	if !ok {
		b.logger.Warn("Unknown command", zap.String("command", commandName))
		return
	}

	go func() {
		if err := event.DeferCreateMessage(true); err != nil {
			b.logger.Error("Failed to defer create message", zap.Error(err))
			return
		}

		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("Panic in command handler",
					zap.String("command", commandName), zap.Any("panic", r))
				b.respond(event, "Internal error. Please report this to an administrator.")
			}
			b.logger.Debug("Command handled",
				zap.String("command", commandName),
				zap.Duration("duration", time.Since(start)))
		}()

		handler(context.Background(), event)
	}()
}

// onComponent dispatches component interactions by custom ID prefix: the
// part before the first ":" selects the handler, the rest is handler data.
func (b *Bot) onComponent(event *events.ComponentInteractionCreate) {
	customID := event.Data.CustomID()
	prefix, _, _ := strings.Cut(customID, ":")
	handler, ok := b.components[prefix]
	if !ok {
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("Panic in component handler",
					zap.String("customID", customID), zap.Any("panic", r))
			}
		}()

		handler(context.Background(), event)
	}()
}

// respond replaces the deferred ephemeral response with content.
func (b *Bot) respond(event *events.ApplicationCommandInteractionCreate, content string) {
	_, err := b.client.Rest().UpdateInteractionResponse(event.ApplicationID(), event.Token(),
		discord.NewMessageUpdateBuilder().SetContent(content).Build())
	if err != nil {
		b.logger.Error("Failed to update interaction response", zap.Error(err))
	}
}
