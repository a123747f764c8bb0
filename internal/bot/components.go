package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"go.uber.org/zap"

	"github.com/skysanctuary/warden/internal/bot/constants"
	"github.com/skysanctuary/warden/internal/ticket"
)

// selectedValue extracts the chosen value from a string select interaction.
func selectedValue(event *events.ComponentInteractionCreate) (string, bool) {
	data, ok := event.Data.(discord.StringSelectMenuInteractionData)
	if !ok || len(data.Values) == 0 {
		return "", false
	}
	return data.Values[0], true
}

// ephemeral responds to a component interaction with an ephemeral message.
func (b *Bot) ephemeral(event *events.ComponentInteractionCreate, content string) {
	err := event.CreateMessage(discord.NewMessageCreateBuilder().
		SetContent(content).
		SetEphemeral(true).
		Build())
	if err != nil {
		b.logger.Error("Failed to respond to component interaction", zap.Error(err))
	}
}

// handlePanelOpen opens a single-action ticket (dungeon or kuudra) straight
// from the panel select.
func (b *Bot) handlePanelOpen(ctx context.Context, event *events.ComponentInteractionCreate) {
	variant, ok := selectedValue(event)
	if !ok {
		return
	}

	domainKey := ticket.DomainDungeon
	if event.Data.CustomID() == constants.PanelKuudraSelectCustomID {
		domainKey = ticket.DomainKuudra
	}

	channelID, _, err := b.tickets.Open(ctx, uint64(event.User().ID), domainKey, variant, 0)
	if err != nil {
		b.logger.Error("Failed to open ticket", zap.String("variant", variant), zap.Error(err))
		b.ephemeral(event, "Could not open the ticket, try again later.")
		return
	}
	b.ephemeral(event, fmt.Sprintf("Ticket created: <#%d>", channelID))
}

// handleSlayerBossSelect asks for the tier after a boss is picked.
func (b *Bot) handleSlayerBossSelect(_ context.Context, event *events.ComponentInteractionCreate) {
	boss, ok := selectedValue(event)
	if !ok {
		return
	}

	options := make([]discord.StringSelectMenuOption, 0, 5)
	for tier := 1; tier <= 5; tier++ {
		options = append(options, discord.NewStringSelectMenuOption(
			fmt.Sprintf("T%d", tier), strconv.Itoa(tier)))
	}

	err := event.CreateMessage(discord.NewMessageCreateBuilder().
		SetContent("Select a tier:").
		AddActionRow(discord.NewStringSelectMenu(
			constants.SlayerTierSelectPrefix+":"+boss, "Select a Tier", options...)).
		SetEphemeral(true).
		Build())
	if err != nil {
		b.logger.Error("Failed to send tier select", zap.Error(err))
	}
}

// handleSlayerTierSelect opens the slayer ticket once the tier is chosen.
func (b *Bot) handleSlayerTierSelect(ctx context.Context, event *events.ComponentInteractionCreate) {
	value, ok := selectedValue(event)
	if !ok {
		return
	}
	_, boss, _ := strings.Cut(event.Data.CustomID(), ":")
	tier, err := strconv.Atoi(value)
	if err != nil {
		return
	}

	channelID, _, err := b.tickets.Open(ctx, uint64(event.User().ID), ticket.DomainSlayer, boss, tier)
	if err != nil {
		b.logger.Error("Failed to open slayer ticket",
			zap.String("boss", boss), zap.Int("tier", tier), zap.Error(err))
		b.ephemeral(event, "Could not open the ticket, try again later.")
		return
	}
	b.ephemeral(event, fmt.Sprintf("Ticket created: <#%d>", channelID))
}

// handleApplyOpen opens an application channel for the pressing user. The
// channel name sits outside the ticket grammar, so bulk close never touches
// it.
func (b *Bot) handleApplyOpen(ctx context.Context, event *events.ComponentInteractionCreate) {
	user := event.User()
	name := "application-" + strings.ToLower(user.Username)

	channels, err := b.adapter.ListChannels(ctx)
	if err != nil {
		b.logger.Error("Failed to list channels for application", zap.Error(err))
		b.ephemeral(event, "Could not open the application, try again later.")
		return
	}
	for _, channel := range channels {
		if channel.Name == name {
			b.ephemeral(event, fmt.Sprintf("You already have an open application: <#%d>", channel.ID))
			return
		}
	}

	channelID, err := b.adapter.CreateRestrictedChannel(ctx, name, uint64(user.ID), []string{constants.MaintenanceRole})
	if err != nil {
		b.logger.Error("Failed to create application channel", zap.Error(err))
		b.ephemeral(event, "Could not open the application, try again later.")
		return
	}

	mention, err := b.adapter.RoleMention(ctx, constants.MaintenanceRole)
	if err == nil {
		err = b.adapter.SendMessage(ctx, channelID,
			fmt.Sprintf("%s <@%d> opened an application ticket.", mention, user.ID))
	}
	if err != nil {
		b.logger.Error("Failed to announce application", zap.Error(err))
	}

	b.ephemeral(event, fmt.Sprintf("Your application ticket is <#%d>", channelID))
}

func (b *Bot) handleCloseAllConfirm(ctx context.Context, event *events.ComponentInteractionCreate) {
	closed, err := b.tickets.ConfirmCloseAll(ctx, uint64(event.User().ID))
	if err != nil {
		content := "Could not close tickets right now."
		switch {
		case errors.Is(err, ticket.ErrNoPendingConfirmation):
			content = "Only the admin who requested this can confirm it."
		case errors.Is(err, ticket.ErrConfirmationExpired):
			content = "Confirmation expired, run `/closeall` again."
		}
		b.updateComponentMessage(event, content)
		return
	}
	b.updateComponentMessage(event, fmt.Sprintf("Closed %d tickets.", closed))
}

func (b *Bot) handleCloseAllCancel(_ context.Context, event *events.ComponentInteractionCreate) {
	if err := b.tickets.CancelCloseAll(uint64(event.User().ID)); err != nil {
		b.updateComponentMessage(event, "Only the admin who requested this can cancel it.")
		return
	}
	b.updateComponentMessage(event, "Bulk close cancelled.")
}

// handleRatingSelect records the one allowed rating and lets the manager
// delete the finished ticket.
func (b *Bot) handleRatingSelect(ctx context.Context, event *events.ComponentInteractionCreate) {
	value, ok := selectedValue(event)
	if !ok {
		return
	}
	stars, err := strconv.Atoi(value)
	if err != nil {
		return
	}

	// Acknowledge first: the channel, and this message with it, is deleted
	// once the rating lands.
	b.updateComponentMessage(event, "Thanks for the rating!")

	carrierID, err := b.tickets.SubmitRating(ctx, uint64(event.Channel().ID()), stars)
	if err != nil {
		if !errors.Is(err, ticket.ErrNoRatingSession) {
			b.logger.Error("Failed to submit rating", zap.Error(err))
		}
		return
	}
	b.logger.Info("Rating recorded",
		zap.Uint64("carrier", carrierID),
		zap.Int("stars", stars))
}

// updateComponentMessage replaces the interacted message's content and strips
// its components.
func (b *Bot) updateComponentMessage(event *events.ComponentInteractionCreate, content string) {
	err := event.UpdateMessage(discord.NewMessageUpdateBuilder().
		SetContent(content).
		ClearContainerComponents().
		Build())
	if err != nil {
		b.logger.Error("Failed to update component message", zap.Error(err))
	}
}
