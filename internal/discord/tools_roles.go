package discord

import (
	"context"

	"concord/internal/registry"
	"concord/internal/schema"
)

func roleTools(c *Client) []*registry.Descriptor {
	return []*registry.Descriptor{
		{
			Name:        "discord.list_roles",
			Version:     "1.0.0",
			Description: "List the roles of a guild.",
			Schema: &schema.Object{Fields: []schema.Field{
				schema.Snowflake("guild_id", "Guild to list", true),
			}},
			Class:     registry.Read,
			CacheTTL:  metadataTTL,
			Resources: resourceIDs("guild_id"),
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				guildID := strParam(params, "guild_id")
				roles, err := c.ListRoles(ctx, guildID)
				if err != nil {
					return nil, err
				}
				return map[string]any{"guild_id": guildID, "roles": roles, "count": len(roles)}, nil
			},
		},
		{
			Name:        "discord.add_role",
			Version:     "1.0.0",
			Description: "Grant a role to a guild member.",
			Schema: &schema.Object{Fields: []schema.Field{
				schema.Snowflake("guild_id", "Guild of the member", true),
				schema.Snowflake("user_id", "Member to grant", true),
				schema.Snowflake("role_id", "Role to grant", true),
			}},
			Class:     registry.IdempotentWrite,
			Resources: resourceIDs("guild_id", "user_id"),
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				guildID := strParam(params, "guild_id")
				userID := strParam(params, "user_id")
				roleID := strParam(params, "role_id")
				if err := c.AddMemberRole(ctx, guildID, userID, roleID); err != nil {
					return nil, err
				}
				return map[string]any{"guild_id": guildID, "user_id": userID, "role_id": roleID, "added": true}, nil
			},
		},
		{
			Name:        "discord.remove_role",
			Version:     "1.0.0",
			Description: "Revoke a role from a guild member.",
			Schema: &schema.Object{Fields: []schema.Field{
				schema.Snowflake("guild_id", "Guild of the member", true),
				schema.Snowflake("user_id", "Member to revoke", true),
				schema.Snowflake("role_id", "Role to revoke", true),
			}},
			Class:     registry.IdempotentWrite,
			Resources: resourceIDs("guild_id", "user_id"),
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				guildID := strParam(params, "guild_id")
				userID := strParam(params, "user_id")
				roleID := strParam(params, "role_id")
				if err := c.RemoveMemberRole(ctx, guildID, userID, roleID); err != nil {
					return nil, err
				}
				return map[string]any{"guild_id": guildID, "user_id": userID, "role_id": roleID, "removed": true}, nil
			},
		},
		{
			Name:        "discord.get_permissions",
			Version:     "1.0.0",
			Description: "Inspect guild permissions and, optionally, channel overrides.",
			Schema: &schema.Object{Fields: []schema.Field{
				schema.Snowflake("guild_id", "Guild to inspect", true),
				schema.Snowflake("channel_id", "Channel whose overrides to include", false),
			}},
			Class:     registry.Read,
			CacheTTL:  metadataTTL,
			Resources: resourceIDs("guild_id", "channel_id"),
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				guildID := strParam(params, "guild_id")
				guild, err := c.GetGuild(ctx, guildID)
				if err != nil {
					return nil, err
				}
				result := map[string]any{
					"guild_id":   guildID,
					"guild_name": guild.Name,
					"permissions": map[string]any{
						"guild_permissions": guild.Permissions,
						"features":          guild.Features,
					},
				}
				if channelID := strParam(params, "channel_id"); channelID != "" {
					channel, err := c.GetChannel(ctx, channelID)
					if err != nil {
						return nil, err
					}
					result["channel_permissions"] = map[string]any{
						"channel_id":            channelID,
						"channel_name":          channel.Name,
						"permission_overwrites": channel.PermissionOverwrites,
					}
				}
				return result, nil
			},
		},
	}
}
