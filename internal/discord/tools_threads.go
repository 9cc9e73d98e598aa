package discord

import (
	"context"

	"concord/internal/registry"
	"concord/internal/schema"
)

func threadTools(c *Client) []*registry.Descriptor {
	return []*registry.Descriptor{
		{
			Name:        "discord.create_thread",
			Version:     "1.0.0",
			Description: "Create a thread, optionally anchored to a message.",
			Schema: &schema.Object{Fields: []schema.Field{
				schema.Snowflake("channel_id", "Parent channel", true),
				schema.String("name", "Thread name", true, 100),
				schema.Snowflake("message_id", "Message to start the thread from", false),
				schema.Integer("auto_archive_duration", "Minutes of inactivity before auto-archive", false, 60, 10080),
			}},
			Class:     registry.Write,
			Resources: resourceIDs("channel_id"),
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				channelID := strParam(params, "channel_id")
				thread, err := c.CreateThread(ctx, channelID,
					strParam(params, "name"),
					strParam(params, "message_id"),
					intParam(params, "auto_archive_duration", 1440))
				if err != nil {
					return nil, err
				}
				return map[string]any{"channel_id": channelID, "thread": thread}, nil
			},
		},
		{
			Name:        "discord.list_threads",
			Version:     "1.0.0",
			Description: "List the active threads of a channel.",
			Schema: &schema.Object{Fields: []schema.Field{
				schema.Snowflake("channel_id", "Channel to inspect", true),
			}},
			Class:     registry.Read,
			CacheTTL:  messageTTL,
			Resources: resourceIDs("channel_id"),
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				channelID := strParam(params, "channel_id")
				threads, err := c.ListActiveThreads(ctx, channelID)
				if err != nil {
					return nil, err
				}
				return map[string]any{
					"channel_id": channelID,
					"threads":    threads,
					"count":      len(threads),
				}, nil
			},
		},
		{
			Name:        "discord.archive_thread",
			Version:     "1.0.0",
			Description: "Archive a thread.",
			Schema: &schema.Object{Fields: []schema.Field{
				schema.Snowflake("thread_id", "Thread to archive", true),
			}},
			// Archiving an archived thread converges, so retry is safe.
			Class:     registry.IdempotentWrite,
			Resources: resourceIDs("thread_id"),
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				thread, err := c.SetThreadArchived(ctx, strParam(params, "thread_id"), true)
				if err != nil {
					return nil, err
				}
				return map[string]any{"thread": thread, "archived": true}, nil
			},
		},
		{
			Name:        "discord.unarchive_thread",
			Version:     "1.0.0",
			Description: "Restore an archived thread.",
			Schema: &schema.Object{Fields: []schema.Field{
				schema.Snowflake("thread_id", "Thread to restore", true),
			}},
			Class:     registry.IdempotentWrite,
			Resources: resourceIDs("thread_id"),
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				thread, err := c.SetThreadArchived(ctx, strParam(params, "thread_id"), false)
				if err != nil {
					return nil, err
				}
				return map[string]any{"thread": thread, "archived": false}, nil
			},
		},
	}
}
