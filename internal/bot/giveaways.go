package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/skysanctuary/warden/internal/bot/constants"
)

var errNoEntries = errors.New("giveaway has no entries")

func (b *Bot) rememberGiveaway(sourceID uint64, meta giveawayMeta) {
	b.giveawayMu.Lock()
	defer b.giveawayMu.Unlock()
	b.giveawayMeta[sourceID] = meta
}

func (b *Bot) giveawayFor(sourceID uint64) (giveawayMeta, bool) {
	b.giveawayMu.Lock()
	defer b.giveawayMu.Unlock()
	meta, ok := b.giveawayMeta[sourceID]
	return meta, ok
}

// scheduleConclusion concludes the giveaway after its duration elapses. The
// timer is process-local, like the rest of the giveaway state.
func (b *Bot) scheduleConclusion(sourceID uint64, duration time.Duration) {
	time.AfterFunc(duration, func() {
		meta, ok := b.giveawayFor(sourceID)
		if !ok {
			return
		}
		if err := b.concludeGiveaway(context.Background(), sourceID, meta, false); err != nil {
			b.logger.Warn("Giveaway concluded without winners",
				zap.Uint64("messageID", sourceID), zap.Error(err))
		}
	})
}

// entryPool collects every non-bot account that reacted with the entry emoji
// on the source message.
func (b *Bot) entryPool(ctx context.Context, channelID, messageID snowflake.ID) ([]uint64, error) {
	var pool []uint64
	var after snowflake.ID
	for {
		users, err := b.client.Rest().GetReactions(channelID, messageID, constants.EntryEmoji, discord.MessageReactionTypeNormal, int(after), 100, rest.WithCtx(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch giveaway entries: %w", err)
		}
		for _, user := range users {
			after = user.ID
			if user.Bot {
				continue
			}
			pool = append(pool, uint64(user.ID))
		}
		if len(users) < 100 {
			return pool, nil
		}
	}
}

// concludeGiveaway draws winners from the current entry pool and posts the
// result message that winners claim against. Reroll goes through the same
// path with a fresh sample.
func (b *Bot) concludeGiveaway(ctx context.Context, sourceID uint64, meta giveawayMeta, reroll bool) error {
	channelID := snowflake.ID(meta.channelID)

	pool, err := b.entryPool(ctx, channelID, snowflake.ID(sourceID))
	if err != nil {
		return err
	}
	if len(pool) == 0 {
		if err := b.adapter.SendMessage(ctx, meta.channelID,
			fmt.Sprintf("The giveaway for **%s** ended with no entries.", meta.prize)); err != nil {
			b.logger.Error("Failed to announce empty giveaway", zap.Error(err))
		}
		return errNoEntries
	}

	// The result message must exist before the draw: the claim set is keyed
	// by its ID.
	result, err := b.client.Rest().CreateMessage(channelID, discord.NewMessageCreateBuilder().
		SetContentf("🎉 The giveaway for **%s** has ended! Drawing winners...", meta.prize).
		Build(), rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("failed to post giveaway result: %w", err)
	}

	winners, err := b.giveaways.Conclude(uint64(result.ID), meta.channelID, pool, meta.winnerCount, meta.prize)
	if err != nil {
		return err
	}

	mentions := make([]string, len(winners))
	for i, winner := range winners {
		mentions[i] = fmt.Sprintf("<@%d>", winner)
	}
	verb := "Congrats"
	if reroll {
		verb = "🔁 Rerolled winners:"
	}
	_, err = b.client.Rest().UpdateMessage(channelID, result.ID, discord.NewMessageUpdateBuilder().
		SetContentf("%s %s, you won **%s**! React with %s to claim.",
			verb, strings.Join(mentions, ", "), meta.prize, constants.ClaimEmoji).
		Build(), rest.WithCtx(ctx))
	if err != nil {
		b.logger.Error("Failed to announce giveaway winners", zap.Error(err))
	}

	if err := b.client.Rest().AddReaction(channelID, result.ID, constants.ClaimEmoji, rest.WithCtx(ctx)); err != nil {
		b.logger.Warn("Failed to seed claim reaction", zap.Error(err))
	}

	return nil
}

// openClaimChannel creates the restricted claim channel for an accepted
// claim. Duplicate channels are suppressed by name.
func (b *Bot) openClaimChannel(ctx context.Context, winnerID uint64, username, prize string) error {
	name := "giveaway-" + strings.ToLower(username)

	channels, err := b.adapter.ListChannels(ctx)
	if err != nil {
		return err
	}
	for _, channel := range channels {
		if channel.Name == name {
			return nil
		}
	}

	channelID, err := b.adapter.CreateRestrictedChannel(ctx, name, winnerID, []string{constants.GiveawaysRole})
	if err != nil {
		return err
	}

	mention, err := b.adapter.RoleMention(ctx, constants.GiveawaysRole)
	if err != nil {
		return err
	}
	return b.adapter.SendMessage(ctx, channelID,
		fmt.Sprintf("%s <@%d> opened a ticket: **Giveaway claim for %s**", mention, winnerID, prize))
}
