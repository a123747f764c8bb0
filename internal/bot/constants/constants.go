package constants

const (
	// Commands.
	XPCommandName       = "xp"
	RatingCommandName   = "rating"
	FinishCommandName   = "finish"
	CloseCommandName    = "close"
	CloseAllCommandName = "closeall"
	PanelCommandName    = "panel"
	SetupCommandName    = "setup"
	GiveawayCommandName = "giveaway"
	RerollCommandName   = "reroll"
	VerifyCommandName   = "verify"
	NameCommandName     = "name"
	UpdateXPCommandName = "updatexp"

	// Reactions.
	EntryEmoji = "🎉"
	ClaimEmoji = "🎁"

	// Component custom IDs.
	PanelDungeonSelectCustomID = "panel_dungeon"
	PanelSlayerSelectCustomID  = "panel_slayer"
	PanelKuudraSelectCustomID  = "panel_kuudra"
	PanelApplyButtonCustomID   = "panel_apply"
	SlayerTierSelectPrefix     = "slayer_tier"
	CloseAllConfirmCustomID    = "closeall_confirm"
	CloseAllCancelCustomID     = "closeall_cancel"
	RatingSelectCustomID       = "ticket_rating"

	// Privileged roles.
	MaintenanceRole = "Maintenance"
	GiveawaysRole   = "Giveaways"

	DefaultEmbedColor = 0x2ECC71
)
