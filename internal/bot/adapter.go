package bot

import (
	"context"
	"fmt"
	"sync"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/skysanctuary/warden/internal/roster"
	"github.com/skysanctuary/warden/internal/ticket"
)

// GuildAdapter bridges domain services to the Discord REST API for a single
// guild. It implements progression.RoleService, ticket.ChannelService and
// roster.Directory. Role lookups go through a name-to-ID cache refreshed on
// miss, since the domain layer speaks role names.
type GuildAdapter struct {
	client       bot.Client
	guildID      snowflake.ID
	baselineRole string
	logger       *zap.Logger

	mu    sync.Mutex
	roles map[string]snowflake.ID
}

// NewGuildAdapter creates an adapter for the given guild. The client is
// attached later, once the gateway client exists.
func NewGuildAdapter(guildID uint64, baselineRole string, logger *zap.Logger) *GuildAdapter {
	return &GuildAdapter{
		guildID:      snowflake.ID(guildID),
		baselineRole: baselineRole,
		logger:       logger.Named("guild_adapter"),
		roles:        make(map[string]snowflake.ID),
	}
}

// SetClient attaches the Discord client. Must be called before any other
// method.
func (a *GuildAdapter) SetClient(client bot.Client) {
	a.client = client
}

// refreshRoles replaces the role cache with the guild's current role list.
// Caller must hold a.mu.
func (a *GuildAdapter) refreshRoles(ctx context.Context) error {
	guildRoles, err := a.client.Rest().GetRoles(a.guildID, rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("failed to fetch guild roles: %w", err)
	}

	a.roles = make(map[string]snowflake.ID, len(guildRoles))
	for _, role := range guildRoles {
		a.roles[role.Name] = role.ID
	}
	return nil
}

// roleID resolves a role name to its ID, creating the role when createMissing
// is set.
func (a *GuildAdapter) roleID(ctx context.Context, name string, createMissing bool) (snowflake.ID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if id, ok := a.roles[name]; ok {
		return id, nil
	}
	if err := a.refreshRoles(ctx); err != nil {
		return 0, err
	}
	if id, ok := a.roles[name]; ok {
		return id, nil
	}
	if !createMissing {
		return 0, fmt.Errorf("role %q not found", name)
	}

	role, err := a.client.Rest().CreateRole(a.guildID, discord.RoleCreate{Name: name}, rest.WithCtx(ctx))
	if err != nil {
		return 0, fmt.Errorf("failed to create role %q: %w", name, err)
	}

	a.logger.Info("Created missing role", zap.String("role", name))
	a.roles[name] = role.ID
	return role.ID, nil
}

// EnsureRole creates the named role if the guild does not have it yet.
func (a *GuildAdapter) EnsureRole(ctx context.Context, name string) error {
	_, err := a.roleID(ctx, name, true)
	return err
}

// AddRole grants the named role to a member.
func (a *GuildAdapter) AddRole(ctx context.Context, memberID uint64, name string) error {
	id, err := a.roleID(ctx, name, true)
	if err != nil {
		return err
	}
	if err := a.client.Rest().AddMemberRole(a.guildID, snowflake.ID(memberID), id, rest.WithCtx(ctx)); err != nil {
		return fmt.Errorf("failed to add role %q to member %d: %w", name, memberID, err)
	}
	return nil
}

// RemoveRole removes the named role from a member. Removing a role the guild
// does not have is a no-op.
func (a *GuildAdapter) RemoveRole(ctx context.Context, memberID uint64, name string) error {
	id, err := a.roleID(ctx, name, false)
	if err != nil {
		return nil
	}
	if err := a.client.Rest().RemoveMemberRole(a.guildID, snowflake.ID(memberID), id, rest.WithCtx(ctx)); err != nil {
		return fmt.Errorf("failed to remove role %q from member %d: %w", name, memberID, err)
	}
	return nil
}

// RoleMention ensures the named role exists and returns its mention string.
func (a *GuildAdapter) RoleMention(ctx context.Context, name string) (string, error) {
	id, err := a.roleID(ctx, name, true)
	if err != nil {
		return "", err
	}
	return discord.RoleMention(id), nil
}

// CreateRestrictedChannel creates a text channel visible only to the opener,
// the given roles and administrators.
func (a *GuildAdapter) CreateRestrictedChannel(ctx context.Context, name string, openerID uint64, allowRoles []string) (uint64, error) {
	overwrites := []discord.PermissionOverwrite{
		discord.RolePermissionOverwrite{
			RoleID: a.guildID, // @everyone
			Deny:   discord.PermissionViewChannel,
		},
		discord.MemberPermissionOverwrite{
			UserID: snowflake.ID(openerID),
			Allow:  discord.PermissionViewChannel | discord.PermissionSendMessages,
		},
	}
	for _, roleName := range allowRoles {
		id, err := a.roleID(ctx, roleName, true)
		if err != nil {
			return 0, err
		}
		overwrites = append(overwrites, discord.RolePermissionOverwrite{
			RoleID: id,
			Allow:  discord.PermissionViewChannel | discord.PermissionSendMessages,
		})
	}

	channel, err := a.client.Rest().CreateGuildChannel(a.guildID, discord.GuildTextChannelCreate{
		Name:                 name,
		PermissionOverwrites: overwrites,
	}, rest.WithCtx(ctx))
	if err != nil {
		return 0, fmt.Errorf("failed to create channel %q: %w", name, err)
	}
	return uint64(channel.ID()), nil
}

// DeleteChannel deletes a channel by ID.
func (a *GuildAdapter) DeleteChannel(ctx context.Context, channelID uint64) error {
	if err := a.client.Rest().DeleteChannel(snowflake.ID(channelID), rest.WithCtx(ctx)); err != nil {
		return fmt.Errorf("failed to delete channel %d: %w", channelID, err)
	}
	return nil
}

// SendMessage posts a plain content message to a channel.
func (a *GuildAdapter) SendMessage(ctx context.Context, channelID uint64, content string) error {
	_, err := a.client.Rest().CreateMessage(snowflake.ID(channelID),
		discord.NewMessageCreateBuilder().SetContent(content).Build(),
		rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("failed to send message to channel %d: %w", channelID, err)
	}
	return nil
}

// ListChannels returns all text channels in the guild.
func (a *GuildAdapter) ListChannels(ctx context.Context) ([]ticket.ChannelInfo, error) {
	channels, err := a.client.Rest().GetGuildChannels(a.guildID, rest.WithCtx(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to list guild channels: %w", err)
	}

	infos := make([]ticket.ChannelInfo, 0, len(channels))
	for _, channel := range channels {
		if channel.Type() != discord.ChannelTypeGuildText {
			continue
		}
		infos = append(infos, ticket.ChannelInfo{
			ID:   uint64(channel.ID()),
			Name: channel.Name(),
		})
	}
	return infos, nil
}

// BaselineMembers lists every non-bot member holding the baseline role,
// paging through the full member list.
func (a *GuildAdapter) BaselineMembers(ctx context.Context) ([]roster.Member, error) {
	baselineID, err := a.roleID(ctx, a.baselineRole, false)
	if err != nil {
		return nil, err
	}

	var members []roster.Member
	var after snowflake.ID
	for {
		chunk, err := a.client.Rest().GetMembers(a.guildID, 1000, after, rest.WithCtx(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch guild members: %w", err)
		}
		if len(chunk) == 0 {
			break
		}

		for _, member := range chunk {
			after = member.User.ID
			if member.User.Bot {
				continue
			}
			if !hasRoleID(member.RoleIDs, baselineID) {
				continue
			}
			members = append(members, roster.Member{
				ID:          uint64(member.User.ID),
				DisplayName: member.EffectiveName(),
				RoleNames:   a.roleNames(ctx, member.RoleIDs),
			})
		}

		if len(chunk) < 1000 {
			break
		}
	}
	return members, nil
}

// MemberRoleNames returns the role names a member currently holds.
func (a *GuildAdapter) MemberRoleNames(ctx context.Context, roleIDs []snowflake.ID) []string {
	return a.roleNames(ctx, roleIDs)
}

func (a *GuildAdapter) roleNames(ctx context.Context, roleIDs []snowflake.ID) []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Refresh once if any ID is unknown; renamed or new roles otherwise go
	// stale until the next miss.
	byID := a.rolesByIDLocked()
	for _, id := range roleIDs {
		if _, ok := byID[id]; !ok {
			if err := a.refreshRoles(ctx); err != nil {
				a.logger.Warn("Failed to refresh role cache", zap.Error(err))
			}
			byID = a.rolesByIDLocked()
			break
		}
	}

	names := make([]string, 0, len(roleIDs))
	for _, id := range roleIDs {
		if name, ok := byID[id]; ok {
			names = append(names, name)
		}
	}
	return names
}

func (a *GuildAdapter) rolesByIDLocked() map[snowflake.ID]string {
	byID := make(map[snowflake.ID]string, len(a.roles))
	for name, id := range a.roles {
		byID[id] = name
	}
	return byID
}

func hasRoleID(ids []snowflake.ID, target snowflake.ID) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}
