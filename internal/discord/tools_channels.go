package discord

import (
	"context"

	"concord/internal/registry"
	"concord/internal/schema"
)

func channelTools(c *Client) []*registry.Descriptor {
	return []*registry.Descriptor{
		{
			Name:        "discord.list_guilds",
			Version:     "1.0.0",
			Description: "List the guilds the bot belongs to.",
			Schema:      &schema.Object{},
			Class:       registry.Read,
			CacheTTL:    metadataTTL,
			Resources:   staticResources("guilds"),
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				guilds, err := c.ListGuilds(ctx)
				if err != nil {
					return nil, err
				}
				return map[string]any{"guilds": guilds, "count": len(guilds)}, nil
			},
		},
		{
			Name:        "discord.get_guild",
			Version:     "1.0.0",
			Description: "Fetch one guild's metadata.",
			Schema: &schema.Object{Fields: []schema.Field{
				schema.Snowflake("guild_id", "Guild to fetch", true),
			}},
			Class:     registry.Read,
			CacheTTL:  metadataTTL,
			Resources: resourceIDs("guild_id"),
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				guild, err := c.GetGuild(ctx, strParam(params, "guild_id"))
				if err != nil {
					return nil, err
				}
				return map[string]any{"guild": guild}, nil
			},
		},
		{
			Name:        "discord.list_channels",
			Version:     "1.0.0",
			Description: "List the channels of a guild.",
			Schema: &schema.Object{Fields: []schema.Field{
				schema.Snowflake("guild_id", "Guild to list", true),
			}},
			Class:     registry.Read,
			CacheTTL:  metadataTTL,
			Resources: resourceIDs("guild_id"),
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				guildID := strParam(params, "guild_id")
				channels, err := c.ListChannels(ctx, guildID)
				if err != nil {
					return nil, err
				}
				return map[string]any{
					"guild_id": guildID,
					"channels": channels,
					"count":    len(channels),
				}, nil
			},
		},
		{
			Name:        "discord.get_channel",
			Version:     "1.0.0",
			Description: "Fetch one channel's metadata.",
			Schema: &schema.Object{Fields: []schema.Field{
				schema.Snowflake("channel_id", "Channel to fetch", true),
			}},
			Class:     registry.Read,
			CacheTTL:  metadataTTL,
			Resources: resourceIDs("channel_id"),
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				channel, err := c.GetChannel(ctx, strParam(params, "channel_id"))
				if err != nil {
					return nil, err
				}
				return map[string]any{"channel": channel}, nil
			},
		},
		{
			Name:        "discord.create_channel",
			Version:     "1.0.0",
			Description: "Create a channel in a guild.",
			Schema: &schema.Object{Fields: []schema.Field{
				schema.Snowflake("guild_id", "Guild to create in", true),
				schema.String("name", "Channel name", true, 100),
				schema.Integer("type", "Channel type (0 text, 2 voice, 4 category)", false, 0, 15),
				schema.String("topic", "Channel topic", false, 1024),
				schema.Snowflake("parent_id", "Category to nest under", false),
			}},
			Class:     registry.Write,
			Resources: resourceIDs("guild_id"),
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				guildID := strParam(params, "guild_id")
				channel, err := c.CreateChannel(ctx, guildID,
					strParam(params, "name"),
					intParam(params, "type", 0),
					strParam(params, "topic"),
					strParam(params, "parent_id"))
				if err != nil {
					return nil, err
				}
				return map[string]any{"guild_id": guildID, "channel": channel}, nil
			},
		},
		{
			Name:        "discord.update_channel",
			Version:     "1.0.0",
			Description: "Update a channel's name, topic or position.",
			Schema: &schema.Object{Fields: []schema.Field{
				schema.Snowflake("channel_id", "Channel to update", true),
				schema.String("name", "New name", false, 100),
				schema.String("topic", "New topic", false, 1024),
				schema.Integer("position", "New sort position", false, 0, 5000),
			}},
			Class:     registry.Write,
			Resources: resourceIDs("channel_id"),
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				patch := map[string]any{}
				if name := strParam(params, "name"); name != "" {
					patch["name"] = name
				}
				if topic := strParam(params, "topic"); topic != "" {
					patch["topic"] = topic
				}
				if _, ok := params["position"]; ok {
					patch["position"] = intParam(params, "position", 0)
				}
				channel, err := c.UpdateChannel(ctx, strParam(params, "channel_id"), patch)
				if err != nil {
					return nil, err
				}
				return map[string]any{"channel": channel}, nil
			},
		},
		{
			Name:        "discord.delete_channel",
			Version:     "1.0.0",
			Description: "Delete a channel.",
			Schema: &schema.Object{Fields: []schema.Field{
				schema.Snowflake("channel_id", "Channel to delete", true),
			}},
			Class:     registry.Write,
			Resources: resourceIDs("channel_id"),
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				channelID := strParam(params, "channel_id")
				if err := c.DeleteChannel(ctx, channelID); err != nil {
					return nil, err
				}
				return map[string]any{"channel_id": channelID, "deleted": true}, nil
			},
		},
	}
}
