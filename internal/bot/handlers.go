package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/skysanctuary/warden/internal/bot/constants"
	"github.com/skysanctuary/warden/internal/giveaway"
	"github.com/skysanctuary/warden/internal/roster"
	"github.com/skysanctuary/warden/internal/ticket"
)

// isPrivileged reports whether the interacting member is an administrator or
// holds the Maintenance role.
func (b *Bot) isPrivileged(ctx context.Context, event *events.ApplicationCommandInteractionCreate) bool {
	member := event.Member()
	if member == nil {
		return false
	}
	if member.Permissions.Has(discord.PermissionAdministrator) {
		return true
	}
	for _, name := range b.adapter.MemberRoleNames(ctx, member.RoleIDs) {
		if name == constants.MaintenanceRole {
			return true
		}
	}
	return false
}

// isCarrier reports whether the interacting member holds any carrier role.
func (b *Bot) isCarrier(ctx context.Context, event *events.ApplicationCommandInteractionCreate) bool {
	member := event.Member()
	if member == nil {
		return false
	}
	carriers := ticket.CarrierRoles()
	for _, name := range b.adapter.MemberRoleNames(ctx, member.RoleIDs) {
		if _, ok := carriers[name]; ok {
			return true
		}
	}
	return false
}

func (b *Bot) handleXP(ctx context.Context, event *events.ApplicationCommandInteractionCreate) {
	target := event.User().ID
	if id, ok := event.SlashCommandInteractionData().OptSnowflake("member"); ok {
		target = id
	}

	progress, err := b.ledger.Progress(ctx, uint64(target))
	if err != nil {
		b.logger.Error("Failed to load member progress", zap.Error(err))
		b.respond(event, "Could not load XP right now, try again later.")
		return
	}

	tier := b.resolver.ResolveTier(progress.XP)
	content := fmt.Sprintf("<@%d> has **%d XP** (%s)", uint64(target), progress.XP, tier)
	if next, ok := b.resolver.NextTier(progress.XP); ok {
		content += fmt.Sprintf(" — %d XP to **%s**", next.MinXP-progress.XP, next.Name)
	} else {
		content += " — top rank reached"
	}
	b.respond(event, content)
}

func (b *Bot) handleRating(ctx context.Context, event *events.ApplicationCommandInteractionCreate) {
	target := event.User().ID
	if id, ok := event.SlashCommandInteractionData().OptSnowflake("carrier"); ok {
		target = id
	}

	progress, err := b.ledger.Progress(ctx, uint64(target))
	if err != nil {
		b.logger.Error("Failed to load member progress", zap.Error(err))
		b.respond(event, "Could not load the rating right now, try again later.")
		return
	}

	average, ok := progress.AverageRating()
	if !ok {
		b.respond(event, fmt.Sprintf("<@%d> has no ratings yet.", uint64(target)))
		return
	}
	b.respond(event, fmt.Sprintf("<@%d> is rated **%.2f**/5 over %d carries.",
		uint64(target), average, progress.RatingsCount))
}

func (b *Bot) handleFinish(ctx context.Context, event *events.ApplicationCommandInteractionCreate) {
	if !b.isCarrier(ctx, event) {
		b.respond(event, "Only carriers can finish a ticket.")
		return
	}

	channelID := uint64(event.Channel().ID())
	channelName := event.Channel().Name()
	if !ticket.IsTicketName(channelName) {
		b.respond(event, "Use `/finish` inside a ticket channel.")
		return
	}

	carrierID := uint64(event.User().ID)
	newXP, err := b.ledger.AwardBonus(ctx, carrierID, b.finishXP)
	if err != nil {
		b.logger.Error("Failed to award finish XP", zap.Error(err))
		b.respond(event, "Could not record the finish, try again later.")
		return
	}

	roleNames := b.adapter.MemberRoleNames(ctx, event.Member().RoleIDs)
	if _, err := b.syncer.Apply(ctx, carrierID, roleNames, newXP); err != nil {
		b.logger.Error("Failed to sync roles after finish", zap.Error(err))
	}

	if err := b.tickets.StartRating(channelID, channelName, carrierID); err != nil {
		b.respond(event, "This channel is not a ticket.")
		return
	}

	ratingMenu := discord.NewStringSelectMenu(constants.RatingSelectCustomID, "Rate your carry",
		discord.NewStringSelectMenuOption("⭐", "1"),
		discord.NewStringSelectMenuOption("⭐⭐", "2"),
		discord.NewStringSelectMenuOption("⭐⭐⭐", "3"),
		discord.NewStringSelectMenuOption("⭐⭐⭐⭐", "4"),
		discord.NewStringSelectMenuOption("⭐⭐⭐⭐⭐", "5"),
	)
	_, err = b.client.Rest().CreateMessage(event.Channel().ID(), discord.NewMessageCreateBuilder().
		SetContentf("Carry finished by <@%d>! Please rate the carry — the ticket closes after.", carrierID).
		AddActionRow(ratingMenu).
		Build(), rest.WithCtx(ctx))
	if err != nil {
		b.logger.Error("Failed to post rating prompt", zap.Error(err))
	}

	b.respond(event, fmt.Sprintf("Finish recorded, you are at **%d XP**.", newXP))
}

func (b *Bot) handleClose(ctx context.Context, event *events.ApplicationCommandInteractionCreate) {
	channelID := uint64(event.Channel().ID())
	channelName := event.Channel().Name()
	if !ticket.IsTicketName(channelName) {
		b.respond(event, "Use `/close` inside a ticket channel.")
		return
	}

	// Respond before deleting: the channel takes the interaction with it.
	b.respond(event, "Closing ticket.")

	if err := b.tickets.Close(ctx, channelID, channelName); err != nil {
		b.logger.Error("Failed to close ticket", zap.Error(err))
	}
}

func (b *Bot) handleCloseAll(ctx context.Context, event *events.ApplicationCommandInteractionCreate) {
	if !b.isPrivileged(ctx, event) {
		b.respond(event, "Admins only.")
		return
	}

	b.tickets.RequestCloseAll(uint64(event.User().ID))

	_, err := b.client.Rest().UpdateInteractionResponse(event.ApplicationID(), event.Token(),
		discord.NewMessageUpdateBuilder().
			SetContent("Close **every** open ticket? This cannot be undone.").
			AddActionRow(
				discord.NewDangerButton("Close all", constants.CloseAllConfirmCustomID),
				discord.NewSecondaryButton("Cancel", constants.CloseAllCancelCustomID),
			).
			Build())
	if err != nil {
		b.logger.Error("Failed to send close-all confirmation", zap.Error(err))
	}
}

func (b *Bot) handlePanel(ctx context.Context, event *events.ApplicationCommandInteractionCreate) {
	if !b.isPrivileged(ctx, event) {
		b.respond(event, "No permission.")
		return
	}

	domains := ticket.Domains()
	panels := []struct {
		title    string
		customID string
		domain   ticket.Domain
	}{
		{"Dungeon Carries", constants.PanelDungeonSelectCustomID, domains[ticket.DomainDungeon]},
		{"Slayer Carries", constants.PanelSlayerSelectCustomID, domains[ticket.DomainSlayer]},
		{"Kuudra Carries", constants.PanelKuudraSelectCustomID, domains[ticket.DomainKuudra]},
	}

	for _, panel := range panels {
		options := make([]discord.StringSelectMenuOption, 0, len(panel.domain.Variants))
		for _, variant := range panel.domain.Variants {
			options = append(options, discord.NewStringSelectMenuOption(strings.ToUpper(variant[:1])+variant[1:], variant))
		}

		_, err := b.client.Rest().CreateMessage(event.Channel().ID(), discord.NewMessageCreateBuilder().
			SetEmbeds(discord.NewEmbedBuilder().
				SetTitle(panel.title).
				SetDescription("Pick an option below to open a carry ticket.").
				SetColor(constants.DefaultEmbedColor).
				Build()).
			AddActionRow(discord.NewStringSelectMenu(panel.customID, "Request a carry", options...)).
			Build(), rest.WithCtx(ctx))
		if err != nil {
			b.logger.Error("Failed to post ticket panel", zap.String("panel", panel.title), zap.Error(err))
			b.respond(event, "Could not post the panel.")
			return
		}
	}

	_, err := b.client.Rest().CreateMessage(event.Channel().ID(), discord.NewMessageCreateBuilder().
		SetEmbeds(discord.NewEmbedBuilder().
			SetTitle("Applications").
			SetDescription("Press the button below to apply for the guild.").
			SetColor(constants.DefaultEmbedColor).
			Build()).
		AddActionRow(discord.NewPrimaryButton("Apply", constants.PanelApplyButtonCustomID)).
		Build(), rest.WithCtx(ctx))
	if err != nil {
		b.logger.Error("Failed to post application panel", zap.Error(err))
		b.respond(event, "Could not post the panel.")
		return
	}

	b.respond(event, "Panels posted.")
}

func (b *Bot) handleSetup(ctx context.Context, event *events.ApplicationCommandInteractionCreate) {
	if !b.isPrivileged(ctx, event) {
		b.respond(event, "No permission.")
		return
	}

	created := 0
	for name := range b.resolver.ManagedRoles() {
		if err := b.adapter.EnsureRole(ctx, name); err != nil {
			b.logger.Error("Failed to ensure role", zap.String("role", name), zap.Error(err))
			continue
		}
		created++
	}
	for name := range ticket.CarrierRoles() {
		if err := b.adapter.EnsureRole(ctx, name); err != nil {
			b.logger.Error("Failed to ensure role", zap.String("role", name), zap.Error(err))
			continue
		}
		created++
	}
	for _, name := range []string{constants.MaintenanceRole, constants.GiveawaysRole, roster.FallbackRole} {
		if err := b.adapter.EnsureRole(ctx, name); err != nil {
			b.logger.Error("Failed to ensure role", zap.String("role", name), zap.Error(err))
			continue
		}
		created++
	}

	b.respond(event, fmt.Sprintf("Setup complete, %d roles ensured.", created))
}

func (b *Bot) handleGiveaway(ctx context.Context, event *events.ApplicationCommandInteractionCreate) {
	if !b.isPrivileged(ctx, event) {
		b.respond(event, "No permission.")
		return
	}

	data := event.SlashCommandInteractionData()
	duration, err := giveaway.ParseDuration(data.String("duration"))
	if err != nil {
		b.respond(event, "Invalid duration, use forms like `30m`, `2h` or `1d`.")
		return
	}
	prize := data.String("prize")
	winnerCount := data.Int("winners")
	if winnerCount <= 0 {
		b.respond(event, "Winner count must be positive.")
		return
	}

	channelID := event.Channel().ID()
	message, err := b.client.Rest().CreateMessage(channelID, discord.NewMessageCreateBuilder().
		SetEmbeds(discord.NewEmbedBuilder().
			SetTitle("🎉 Giveaway!").
			SetDescriptionf("Prize: **%s**\nWinners: **%d**\nReact with %s to enter! Ends in %s.",
				prize, winnerCount, constants.EntryEmoji, duration).
			SetColor(constants.DefaultEmbedColor).
			Build()).
		Build(), rest.WithCtx(ctx))
	if err != nil {
		b.logger.Error("Failed to post giveaway", zap.Error(err))
		b.respond(event, "Could not start the giveaway.")
		return
	}

	if err := b.client.Rest().AddReaction(channelID, message.ID, constants.EntryEmoji, rest.WithCtx(ctx)); err != nil {
		b.logger.Warn("Failed to seed entry reaction", zap.Error(err))
	}

	b.rememberGiveaway(uint64(message.ID), giveawayMeta{
		channelID:   uint64(channelID),
		winnerCount: winnerCount,
		prize:       prize,
	})
	b.scheduleConclusion(uint64(message.ID), duration)

	b.respond(event, fmt.Sprintf("Giveaway started for **%s**, running %s.", prize, duration))
}

func (b *Bot) handleReroll(ctx context.Context, event *events.ApplicationCommandInteractionCreate) {
	if !b.isPrivileged(ctx, event) {
		b.respond(event, "No permission.")
		return
	}

	sourceID, err := snowflake.Parse(event.SlashCommandInteractionData().String("message_id"))
	if err != nil {
		b.respond(event, "Invalid message ID.")
		return
	}

	meta, ok := b.giveawayFor(uint64(sourceID))
	if !ok {
		b.respond(event, "That message is not a tracked giveaway.")
		return
	}

	if err := b.concludeGiveaway(ctx, uint64(sourceID), meta, true); err != nil {
		b.respond(event, "No entries to draw from.")
		return
	}
	b.respond(event, "Reroll complete!")
}

func (b *Bot) handleVerify(ctx context.Context, event *events.ApplicationCommandInteractionCreate) {
	name := event.SlashCommandInteractionData().String("name")
	memberID := uint64(event.User().ID)

	uuid, err := b.identity.ResolveUUID(ctx, name)
	if err != nil {
		if errors.Is(err, roster.ErrIdentityNotFound) {
			b.respond(event, fmt.Sprintf("No Minecraft account named **%s** exists.", name))
			return
		}
		b.respond(event, "Name lookup is unavailable right now, try again later.")
		return
	}

	guild, err := b.rosterSrc.GuildByName(ctx, b.guildName)
	if err != nil {
		b.respond(event, "The guild roster is unavailable right now, try again later.")
		return
	}

	inGuild := false
	for _, member := range guild.Members {
		if strings.EqualFold(member.UUID, uuid) {
			inGuild = true
			break
		}
	}

	baseline := b.resolver.Baseline()
	if inGuild {
		if err := b.adapter.RemoveRole(ctx, memberID, roster.FallbackRole); err != nil {
			b.logger.Warn("Failed to remove fallback role", zap.Error(err))
		}
		if err := b.adapter.AddRole(ctx, memberID, baseline); err != nil {
			b.logger.Error("Failed to grant baseline role", zap.Error(err))
			b.respond(event, "Verification succeeded but roles could not be updated.")
			return
		}
		b.respond(event, fmt.Sprintf("Welcome, **%s**! You are verified as a guild member.", name))
	} else {
		if err := b.adapter.RemoveRole(ctx, memberID, baseline); err != nil {
			b.logger.Warn("Failed to remove baseline role", zap.Error(err))
		}
		if err := b.adapter.AddRole(ctx, memberID, roster.FallbackRole); err != nil {
			b.logger.Error("Failed to grant fallback role", zap.Error(err))
		}
		b.respond(event, fmt.Sprintf("**%s** is not in %s; you have guest access.", name, b.guildName))
	}

	nick := name
	if _, err := b.client.Rest().UpdateMember(b.guildID, event.User().ID,
		discord.MemberUpdate{Nick: &nick}, rest.WithCtx(ctx)); err != nil {
		b.logger.Warn("Failed to set verified nickname", zap.Error(err))
	}
}

func (b *Bot) handleName(ctx context.Context, event *events.ApplicationCommandInteractionCreate) {
	if !b.isPrivileged(ctx, event) {
		b.respond(event, "No permission.")
		return
	}

	data := event.SlashCommandInteractionData()
	target := data.Snowflake("member")
	nick := data.String("nickname")

	if _, err := b.client.Rest().UpdateMember(b.guildID, target,
		discord.MemberUpdate{Nick: &nick}, rest.WithCtx(ctx)); err != nil {
		b.logger.Error("Failed to update nickname", zap.Error(err))
		b.respond(event, "Could not update the nickname.")
		return
	}
	b.respond(event, fmt.Sprintf("<@%d> is now **%s**.", uint64(target), nick))
}

func (b *Bot) handleUpdateXP(ctx context.Context, event *events.ApplicationCommandInteractionCreate) {
	if !b.isPrivileged(ctx, event) {
		b.respond(event, "No permission.")
		return
	}

	report, err := b.rosterJob.Run(ctx)
	if err != nil {
		b.logger.Error("Manual roster sync failed", zap.Error(err))
		b.respond(event, "Roster sync failed: the guild roster is unavailable.")
		return
	}

	b.respond(event, fmt.Sprintf(
		"Roster sync done: %d members processed, %d XP awarded, %d demoted, %d failed.",
		report.Processed, report.XPAwarded, report.Demoted, report.Failed))
}
