package discord

import (
	"context"

	"concord/internal/registry"
	"concord/internal/schema"
)

// maxContentLen is Discord's message content ceiling.
const maxContentLen = 2000

func messageTools(c *Client) []*registry.Descriptor {
	return []*registry.Descriptor{
		{
			Name:        "discord.list_messages",
			Version:     "1.0.0",
			Description: "List recent messages in a channel, newest first.",
			Schema: &schema.Object{Fields: []schema.Field{
				schema.Snowflake("channel_id", "Channel to read", true),
				schema.Integer("limit", "Messages to fetch (1-100)", false, 1, 100),
				schema.Snowflake("after", "Only messages after this id", false),
				schema.Snowflake("before", "Only messages before this id", false),
				schema.Snowflake("around", "Messages around this id", false),
				schema.Boolean("include_pins", "Also return pinned messages", false),
			}},
			Class:     registry.Read,
			CacheTTL:  messageTTL,
			Resources: resourceIDs("channel_id"),
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				channelID := strParam(params, "channel_id")
				messages, err := c.ListMessages(ctx, channelID, MessageQuery{
					Limit:  intParam(params, "limit", 50),
					After:  strParam(params, "after"),
					Before: strParam(params, "before"),
					Around: strParam(params, "around"),
				})
				if err != nil {
					return nil, err
				}
				result := map[string]any{
					"channel_id":      channelID,
					"messages":        messages,
					"count":           len(messages),
					"pinned_messages": []Message{},
					"pinned_count":    0,
				}
				if boolParam(params, "include_pins") {
					pins, err := c.ListPins(ctx, channelID)
					if err != nil {
						return nil, err
					}
					result["pinned_messages"] = pins
					result["pinned_count"] = len(pins)
				}
				return result, nil
			},
		},
		{
			Name:        "discord.get_message",
			Version:     "1.0.0",
			Description: "Fetch a single message by id.",
			Schema: &schema.Object{Fields: []schema.Field{
				schema.Snowflake("channel_id", "Channel containing the message", true),
				schema.Snowflake("message_id", "Message to fetch", true),
			}},
			Class:     registry.Read,
			CacheTTL:  messageTTL,
			Resources: resourceIDs("channel_id", "message_id"),
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				message, err := c.GetMessage(ctx, strParam(params, "channel_id"), strParam(params, "message_id"))
				if err != nil {
					return nil, err
				}
				return map[string]any{"message": message}, nil
			},
		},
		{
			Name:        "discord.send_message",
			Version:     "1.0.0",
			Description: "Send a message to a channel. Mass mentions are neutralized.",
			Schema: &schema.Object{Fields: []schema.Field{
				schema.Snowflake("channel_id", "Channel to post in", true),
				schema.String("content", "Message text", true, maxContentLen),
				schema.Boolean("tts", "Send as text-to-speech", false),
				schema.Array("embeds", "Rich embeds to attach", false),
			}},
			Class:     registry.Write,
			Resources: resourceIDs("channel_id"),
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				channelID := strParam(params, "channel_id")
				message, err := c.SendMessage(ctx, channelID,
					strParam(params, "content"),
					embedsParam(params, "embeds"),
					boolParam(params, "tts"))
				if err != nil {
					return nil, err
				}
				return map[string]any{"channel_id": channelID, "message": message}, nil
			},
		},
		{
			Name:        "discord.edit_message",
			Version:     "1.0.0",
			Description: "Replace the content of an existing message.",
			Schema: &schema.Object{Fields: []schema.Field{
				schema.Snowflake("channel_id", "Channel containing the message", true),
				schema.Snowflake("message_id", "Message to edit", true),
				schema.String("content", "New message text", true, maxContentLen),
				schema.Array("embeds", "Replacement embeds", false),
			}},
			Class:     registry.Write,
			Resources: resourceIDs("channel_id", "message_id"),
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				message, err := c.EditMessage(ctx,
					strParam(params, "channel_id"),
					strParam(params, "message_id"),
					strParam(params, "content"),
					embedsParam(params, "embeds"))
				if err != nil {
					return nil, err
				}
				return map[string]any{"message": message}, nil
			},
		},
		{
			Name:        "discord.delete_message",
			Version:     "1.0.0",
			Description: "Delete a message.",
			Schema: &schema.Object{Fields: []schema.Field{
				schema.Snowflake("channel_id", "Channel containing the message", true),
				schema.Snowflake("message_id", "Message to delete", true),
			}},
			Class:     registry.Write,
			Resources: resourceIDs("channel_id", "message_id"),
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				channelID := strParam(params, "channel_id")
				messageID := strParam(params, "message_id")
				if err := c.DeleteMessage(ctx, channelID, messageID); err != nil {
					return nil, err
				}
				return map[string]any{"channel_id": channelID, "message_id": messageID, "deleted": true}, nil
			},
		},
		{
			Name:        "discord.search_messages",
			Version:     "1.0.0",
			Description: "Search messages in a guild.",
			Schema: &schema.Object{Fields: []schema.Field{
				schema.Snowflake("guild_id", "Guild to search", true),
				schema.String("query", "Search query", true, 512),
				schema.Snowflake("author_id", "Restrict to an author", false),
				schema.Enum("has", "Restrict to messages with content kind", false,
					"link", "embed", "file", "image", "video", "sound"),
				schema.Snowflake("max_id", "Only messages at or below this id", false),
				schema.Snowflake("min_id", "Only messages at or above this id", false),
			}},
			Class:     registry.Read,
			CacheTTL:  messageTTL,
			Resources: resourceIDs("guild_id"),
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				guildID := strParam(params, "guild_id")
				query := strParam(params, "query")
				messages, err := c.SearchMessages(ctx, guildID, SearchQuery{
					Query:    query,
					AuthorID: strParam(params, "author_id"),
					Has:      strParam(params, "has"),
					MaxID:    strParam(params, "max_id"),
					MinID:    strParam(params, "min_id"),
				})
				if err != nil {
					return nil, err
				}
				return map[string]any{
					"guild_id": guildID,
					"query":    query,
					"messages": messages,
					"count":    len(messages),
				}, nil
			},
		},
	}
}
