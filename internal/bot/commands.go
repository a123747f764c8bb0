package bot

import (
	"github.com/disgoorg/disgo/discord"

	"github.com/skysanctuary/warden/internal/bot/constants"
)

// commandCreates is the full slash command set registered on the guild at
// startup.
func commandCreates() []discord.ApplicationCommandCreate {
	return []discord.ApplicationCommandCreate{
		discord.SlashCommandCreate{
			Name:        constants.XPCommandName,
			Description: "Show a member's XP and rank progress",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        "member",
					Description: "Member to look up (defaults to you)",
				},
			},
		},
		discord.SlashCommandCreate{
			Name:        constants.RatingCommandName,
			Description: "Show a carrier's average rating",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        "carrier",
					Description: "Carrier to look up (defaults to you)",
				},
			},
		},
		discord.SlashCommandCreate{
			Name:        constants.FinishCommandName,
			Description: "Finish the current carry ticket and collect a rating",
		},
		discord.SlashCommandCreate{
			Name:        constants.CloseCommandName,
			Description: "Close the current ticket channel",
		},
		discord.SlashCommandCreate{
			Name:        constants.CloseAllCommandName,
			Description: "Close every open ticket channel",
		},
		discord.SlashCommandCreate{
			Name:        constants.PanelCommandName,
			Description: "Post the carry request panel in this channel",
		},
		discord.SlashCommandCreate{
			Name:        constants.SetupCommandName,
			Description: "Create all progression and carrier roles",
		},
		discord.SlashCommandCreate{
			Name:        constants.GiveawayCommandName,
			Description: "Start a giveaway in this channel",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "duration",
					Description: "How long the giveaway runs, e.g. 30m, 2h, 1d",
					Required:    true,
				},
				discord.ApplicationCommandOptionString{
					Name:        "prize",
					Description: "What is being given away",
					Required:    true,
				},
				discord.ApplicationCommandOptionInt{
					Name:        "winners",
					Description: "Number of winners to draw",
					Required:    true,
				},
			},
		},
		discord.SlashCommandCreate{
			Name:        constants.RerollCommandName,
			Description: "Redraw the winners of a finished giveaway",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "message_id",
					Description: "Message ID of the giveaway to redraw",
					Required:    true,
				},
			},
		},
		discord.SlashCommandCreate{
			Name:        constants.VerifyCommandName,
			Description: "Link your Minecraft name and verify guild membership",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "name",
					Description: "Your Minecraft name",
					Required:    true,
				},
			},
		},
		discord.SlashCommandCreate{
			Name:        constants.NameCommandName,
			Description: "Set a member's nickname",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        "member",
					Description: "Member to rename",
					Required:    true,
				},
				discord.ApplicationCommandOptionString{
					Name:        "nickname",
					Description: "New nickname",
					Required:    true,
				},
			},
		},
		discord.SlashCommandCreate{
			Name:        constants.UpdateXPCommandName,
			Description: "Run the daily roster sync now",
		},
	}
}
