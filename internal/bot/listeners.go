package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/rest"
	"go.uber.org/zap"

	"github.com/skysanctuary/warden/internal/bot/constants"
	"github.com/skysanctuary/warden/internal/giveaway"
)

// onMessageCreate credits cooldown-gated chat XP and re-syncs the author's
// roles when an award lands.
func (b *Bot) onMessageCreate(event *events.MessageCreate) {
	if event.Message.Author.Bot || event.GuildID == nil {
		return
	}

	go func() {
		ctx := context.Background()
		userID := uint64(event.Message.Author.ID)

		newXP, awarded, err := b.ledger.AwardActivity(ctx, userID, time.Now())
		if err != nil {
			b.logger.Error("Failed to award activity XP", zap.Error(err))
			return
		}
		if !awarded || event.Message.Member == nil {
			return
		}

		roleNames := b.adapter.MemberRoleNames(ctx, event.Message.Member.RoleIDs)
		if _, err := b.syncer.Apply(ctx, userID, roleNames, newXP); err != nil {
			b.logger.Error("Failed to sync roles after activity award", zap.Error(err))
		}
	}()
}

// onReactionAdd handles giveaway claims. Anything but an accepted claim is
// silently ignored, including redelivered or repeated reactions.
func (b *Bot) onReactionAdd(event *events.MessageReactionAdd) {
	if event.Emoji.Name == nil || *event.Emoji.Name != constants.ClaimEmoji {
		return
	}
	if event.Member == nil || event.Member.User.Bot {
		return
	}

	result, claim := b.giveaways.TryClaim(uint64(event.MessageID), uint64(event.UserID))
	if result != giveaway.ClaimAccepted {
		return
	}

	go func() {
		ctx := context.Background()
		err := b.openClaimChannel(ctx, uint64(event.UserID), event.Member.User.Username, claim.Prize)
		if err != nil {
			// Roll the claim back so the winner can react again later;
			// acceptance without a channel would burn their only claim.
			b.giveaways.Unclaim(uint64(event.MessageID), uint64(event.UserID))
			b.logger.Error("Failed to open claim channel",
				zap.Uint64("winner", uint64(event.UserID)),
				zap.String("prize", claim.Prize),
				zap.Error(err))
		}
	}()
}

// onMemberJoin makes sure the verify channel exists, DMs the newcomer and
// greets them in the welcome channel when there is one.
func (b *Bot) onMemberJoin(event *events.GuildMemberJoin) {
	go func() {
		ctx := context.Background()

		verifyID, err := b.ensureReadOnlyChannel(ctx, "verify")
		if err != nil {
			b.logger.Error("Failed to ensure verify channel", zap.Error(err))
			return
		}

		// A closed-DMs failure is expected and not logged as an error.
		if dm, err := b.client.Rest().CreateDMChannel(event.Member.User.ID, rest.WithCtx(ctx)); err == nil {
			_, _ = b.client.Rest().CreateMessage(dm.ID(), discord.NewMessageCreateBuilder().
				SetContentf("Welcome! Please verify in <#%d> with `/verify` to get started.", verifyID).
				Build(), rest.WithCtx(ctx))
		}

		channels, err := b.adapter.ListChannels(ctx)
		if err != nil {
			return
		}
		for _, channel := range channels {
			if channel.Name == "welcome" {
				_ = b.adapter.SendMessage(ctx, channel.ID,
					fmt.Sprintf("Welcome <@%d> to the server!", uint64(event.Member.User.ID)))
				return
			}
		}
	}()
}

// ensureReadOnlyChannel returns the named channel's ID, creating it readable
// but not writable for everyone if missing.
func (b *Bot) ensureReadOnlyChannel(ctx context.Context, name string) (uint64, error) {
	channels, err := b.adapter.ListChannels(ctx)
	if err != nil {
		return 0, err
	}
	for _, channel := range channels {
		if channel.Name == name {
			return channel.ID, nil
		}
	}

	channel, err := b.client.Rest().CreateGuildChannel(b.guildID, discord.GuildTextChannelCreate{
		Name: name,
		PermissionOverwrites: []discord.PermissionOverwrite{
			discord.RolePermissionOverwrite{
				RoleID: b.guildID, // @everyone
				Allow:  discord.PermissionViewChannel,
				Deny:   discord.PermissionSendMessages,
			},
		},
	}, rest.WithCtx(ctx))
	if err != nil {
		return 0, fmt.Errorf("failed to create channel %q: %w", name, err)
	}
	return uint64(channel.ID()), nil
}
