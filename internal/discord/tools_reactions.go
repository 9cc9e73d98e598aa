package discord

import (
	"context"

	"concord/internal/registry"
	"concord/internal/schema"
)

func reactionTools(c *Client) []*registry.Descriptor {
	return []*registry.Descriptor{
		{
			Name:        "discord.add_reaction",
			Version:     "1.0.0",
			Description: "React to a message as the bot.",
			Schema: &schema.Object{Fields: []schema.Field{
				schema.Snowflake("channel_id", "Channel containing the message", true),
				schema.Snowflake("message_id", "Message to react to", true),
				schema.String("emoji", "Unicode emoji or :name: shorthand", true, 64),
			}},
			Class:     registry.IdempotentWrite,
			Resources: resourceIDs("channel_id", "message_id"),
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				channelID := strParam(params, "channel_id")
				messageID := strParam(params, "message_id")
				emoji := strParam(params, "emoji")
				if err := c.AddReaction(ctx, channelID, messageID, emoji); err != nil {
					return nil, err
				}
				return map[string]any{"channel_id": channelID, "message_id": messageID, "emoji": emoji, "added": true}, nil
			},
		},
		{
			Name:        "discord.remove_reaction",
			Version:     "1.0.0",
			Description: "Remove the bot's reaction from a message.",
			Schema: &schema.Object{Fields: []schema.Field{
				schema.Snowflake("channel_id", "Channel containing the message", true),
				schema.Snowflake("message_id", "Message to unreact", true),
				schema.String("emoji", "Unicode emoji or :name: shorthand", true, 64),
			}},
			Class:     registry.IdempotentWrite,
			Resources: resourceIDs("channel_id", "message_id"),
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				channelID := strParam(params, "channel_id")
				messageID := strParam(params, "message_id")
				emoji := strParam(params, "emoji")
				if err := c.RemoveReaction(ctx, channelID, messageID, emoji); err != nil {
					return nil, err
				}
				return map[string]any{"channel_id": channelID, "message_id": messageID, "emoji": emoji, "removed": true}, nil
			},
		},
		{
			Name:        "discord.list_reactions",
			Version:     "1.0.0",
			Description: "List the users who reacted with an emoji.",
			Schema: &schema.Object{Fields: []schema.Field{
				schema.Snowflake("channel_id", "Channel containing the message", true),
				schema.Snowflake("message_id", "Message to inspect", true),
				schema.String("emoji", "Unicode emoji or :name: shorthand", true, 64),
				schema.Integer("limit", "Users to fetch (1-100)", false, 1, 100),
			}},
			Class:     registry.Read,
			CacheTTL:  messageTTL,
			Resources: resourceIDs("channel_id", "message_id"),
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				messageID := strParam(params, "message_id")
				emoji := strParam(params, "emoji")
				users, err := c.ListReactions(ctx,
					strParam(params, "channel_id"), messageID, emoji,
					intParam(params, "limit", 25))
				if err != nil {
					return nil, err
				}
				return map[string]any{
					"message_id": messageID,
					"emoji":      emoji,
					"users":      users,
					"count":      len(users),
				}, nil
			},
		},
		{
			Name:        "discord.pin_message",
			Version:     "1.0.0",
			Description: "Pin a message to its channel.",
			Schema: &schema.Object{Fields: []schema.Field{
				schema.Snowflake("channel_id", "Channel containing the message", true),
				schema.Snowflake("message_id", "Message to pin", true),
			}},
			Class:     registry.IdempotentWrite,
			Resources: resourceIDs("channel_id", "message_id"),
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				channelID := strParam(params, "channel_id")
				messageID := strParam(params, "message_id")
				if err := c.PinMessage(ctx, channelID, messageID); err != nil {
					return nil, err
				}
				return map[string]any{"channel_id": channelID, "message_id": messageID, "pinned": true}, nil
			},
		},
		{
			Name:        "discord.unpin_message",
			Version:     "1.0.0",
			Description: "Unpin a message.",
			Schema: &schema.Object{Fields: []schema.Field{
				schema.Snowflake("channel_id", "Channel containing the message", true),
				schema.Snowflake("message_id", "Message to unpin", true),
			}},
			Class:     registry.IdempotentWrite,
			Resources: resourceIDs("channel_id", "message_id"),
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				channelID := strParam(params, "channel_id")
				messageID := strParam(params, "message_id")
				if err := c.UnpinMessage(ctx, channelID, messageID); err != nil {
					return nil, err
				}
				return map[string]any{"channel_id": channelID, "message_id": messageID, "pinned": false}, nil
			},
		},
		{
			Name:        "discord.list_pinned",
			Version:     "1.0.0",
			Description: "List the pinned messages of a channel.",
			Schema: &schema.Object{Fields: []schema.Field{
				schema.Snowflake("channel_id", "Channel to inspect", true),
			}},
			Class:     registry.Read,
			CacheTTL:  metadataTTL,
			Resources: resourceIDs("channel_id"),
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				channelID := strParam(params, "channel_id")
				pins, err := c.ListPins(ctx, channelID)
				if err != nil {
					return nil, err
				}
				return map[string]any{"channel_id": channelID, "messages": pins, "count": len(pins)}, nil
			},
		},
	}
}
