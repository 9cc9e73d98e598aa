package discord

import (
	"context"

	"concord/internal/registry"
	"concord/internal/schema"
)

func webhookTools(c *Client) []*registry.Descriptor {
	return []*registry.Descriptor{
		{
			Name:        "discord.create_webhook",
			Version:     "1.0.0",
			Description: "Create an incoming webhook on a channel.",
			Schema: &schema.Object{Fields: []schema.Field{
				schema.Snowflake("channel_id", "Channel to attach the webhook to", true),
				schema.String("name", "Webhook name", true, 80),
			}},
			Class:     registry.Write,
			Resources: resourceIDs("channel_id"),
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				channelID := strParam(params, "channel_id")
				webhook, err := c.CreateWebhook(ctx, channelID, strParam(params, "name"))
				if err != nil {
					return nil, err
				}
				return map[string]any{"channel_id": channelID, "webhook": webhook}, nil
			},
		},
		{
			Name:        "discord.send_via_webhook",
			Version:     "1.0.0",
			Description: "Post a message through a webhook.",
			Schema: &schema.Object{Fields: []schema.Field{
				schema.Snowflake("webhook_id", "Webhook id", true),
				schema.String("webhook_token", "Webhook token", true, 256),
				schema.String("content", "Message text", true, maxContentLen),
				schema.String("username", "Display name override", false, 80),
				schema.Array("embeds", "Rich embeds to attach", false),
			}},
			Class:     registry.Write,
			Resources: resourceIDs("webhook_id"),
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				webhookID := strParam(params, "webhook_id")
				err := c.ExecuteWebhook(ctx, webhookID,
					strParam(params, "webhook_token"),
					strParam(params, "content"),
					strParam(params, "username"),
					embedsParam(params, "embeds"))
				if err != nil {
					return nil, err
				}
				return map[string]any{"webhook_id": webhookID, "sent": true}, nil
			},
		},
	}
}
