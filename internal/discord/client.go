package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"concord/internal/sanitize"
	"concord/internal/transport"
)

// maxMessageFetch is Discord's per-request message page ceiling.
const maxMessageFetch = 100

// Client issues typed calls against the Discord REST API through the
// retrying transport. It owns nothing but routing: admission, retry and
// breaker behavior live in the transport.
type Client struct {
	transport *transport.Transport
}

// NewClient wraps tr.
func NewClient(tr *transport.Transport) *Client {
	return &Client{transport: tr}
}

// Probe verifies the bot token by fetching the authenticated user.
func (c *Client) Probe(ctx context.Context) (*User, error) {
	var user User
	err := c.do(ctx, transport.Request{
		Method:    http.MethodGet,
		Path:      "/users/@me",
		RouteName: "users.me",
		BucketKey: "GET /users/@me",
		Retryable: true,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListGuilds returns the guilds the bot belongs to.
func (c *Client) ListGuilds(ctx context.Context) ([]Guild, error) {
	var guilds []Guild
	err := c.do(ctx, transport.Request{
		Method:    http.MethodGet,
		Path:      "/users/@me/guilds",
		RouteName: "users.me.guilds",
		BucketKey: "GET /users/@me/guilds",
		Retryable: true,
	}, &guilds)
	return guilds, err
}

// GetGuild fetches one guild.
func (c *Client) GetGuild(ctx context.Context, guildID string) (*Guild, error) {
	var guild Guild
	err := c.do(ctx, c.guildReq(http.MethodGet, guildID, "", "guilds.get", nil, nil), &guild)
	if err != nil {
		return nil, err
	}
	return &guild, nil
}

// ListChannels returns every channel of a guild.
func (c *Client) ListChannels(ctx context.Context, guildID string) ([]Channel, error) {
	var channels []Channel
	err := c.do(ctx, c.guildReq(http.MethodGet, guildID, "/channels", "guilds.channels.list", nil, nil), &channels)
	return channels, err
}

// GetChannel fetches one channel or thread.
func (c *Client) GetChannel(ctx context.Context, channelID string) (*Channel, error) {
	var channel Channel
	err := c.do(ctx, c.channelReq(http.MethodGet, channelID, "", "channels.get", nil, nil, true), &channel)
	if err != nil {
		return nil, err
	}
	return &channel, nil
}

// CreateChannel creates a guild channel.
func (c *Client) CreateChannel(ctx context.Context, guildID, name string, channelType int, topic, parentID string) (*Channel, error) {
	body := map[string]any{"name": name, "type": channelType}
	if topic != "" {
		body["topic"] = topic
	}
	if parentID != "" {
		body["parent_id"] = parentID
	}
	var channel Channel
	err := c.do(ctx, c.guildReq(http.MethodPost, guildID, "/channels", "guilds.channels.create", nil, body), &channel)
	if err != nil {
		return nil, err
	}
	return &channel, nil
}

// UpdateChannel patches the provided fields of a channel. Threads share the
// route, so archiving flows through here too.
func (c *Client) UpdateChannel(ctx context.Context, channelID string, patch map[string]any) (*Channel, error) {
	var channel Channel
	err := c.do(ctx, c.channelReq(http.MethodPatch, channelID, "", "channels.update", nil, patch, false), &channel)
	if err != nil {
		return nil, err
	}
	return &channel, nil
}

// DeleteChannel deletes a channel or thread.
func (c *Client) DeleteChannel(ctx context.Context, channelID string) error {
	return c.do(ctx, c.channelReq(http.MethodDelete, channelID, "", "channels.delete", nil, nil, false), nil)
}

// MessageQuery narrows a message listing. At most one of After, Before,
// Around should be set; Discord ignores the rest otherwise.
type MessageQuery struct {
	Limit  int
	After  string
	Before string
	Around string
}

func (q MessageQuery) values() url.Values {
	v := url.Values{}
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > maxMessageFetch {
		limit = maxMessageFetch
	}
	v.Set("limit", strconv.Itoa(limit))
	if q.After != "" {
		v.Set("after", q.After)
	}
	if q.Before != "" {
		v.Set("before", q.Before)
	}
	if q.Around != "" {
		v.Set("around", q.Around)
	}
	return v
}

// ListMessages returns a page of channel messages, newest first.
func (c *Client) ListMessages(ctx context.Context, channelID string, q MessageQuery) ([]Message, error) {
	var messages []Message
	err := c.do(ctx, c.channelReq(http.MethodGet, channelID, "/messages", "channels.messages.list", q.values(), nil, true), &messages)
	return messages, err
}

// GetMessage fetches one message.
func (c *Client) GetMessage(ctx context.Context, channelID, messageID string) (*Message, error) {
	var message Message
	err := c.do(ctx, c.channelReq(http.MethodGet, channelID, "/messages/"+messageID, "channels.messages.get", nil, nil, true), &message)
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// SendMessage posts a message. Content is neutralized and mention parsing
// is disabled outright, so a relayed message can never ping a server.
func (c *Client) SendMessage(ctx context.Context, channelID, content string, embeds []Embed, tts bool) (*Message, error) {
	body := map[string]any{
		"content":          sanitize.Text(content),
		"tts":              tts,
		"allowed_mentions": map[string]any{"parse": []string{}},
	}
	if len(embeds) > 0 {
		body["embeds"] = embeds
	}
	var message Message
	err := c.do(ctx, c.channelReq(http.MethodPost, channelID, "/messages", "channels.messages.create", nil, body, false), &message)
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// EditMessage replaces a message's content.
func (c *Client) EditMessage(ctx context.Context, channelID, messageID, content string, embeds []Embed) (*Message, error) {
	body := map[string]any{
		"content":          sanitize.Text(content),
		"allowed_mentions": map[string]any{"parse": []string{}},
	}
	if len(embeds) > 0 {
		body["embeds"] = embeds
	}
	var message Message
	err := c.do(ctx, c.channelReq(http.MethodPatch, channelID, "/messages/"+messageID, "channels.messages.edit", nil, body, false), &message)
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// DeleteMessage removes a message.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return c.do(ctx, c.channelReq(http.MethodDelete, channelID, "/messages/"+messageID, "channels.messages.delete", nil, nil, false), nil)
}

// SearchQuery filters a guild message search.
type SearchQuery struct {
	Query    string
	AuthorID string
	Has      string
	MaxID    string
	MinID    string
}

func (q SearchQuery) values() url.Values {
	v := url.Values{}
	v.Set("q", q.Query)
	if q.AuthorID != "" {
		v.Set("author_id", q.AuthorID)
	}
	if q.Has != "" {
		v.Set("has", q.Has)
	}
	if q.MaxID != "" {
		v.Set("max_id", q.MaxID)
	}
	if q.MinID != "" {
		v.Set("min_id", q.MinID)
	}
	return v
}

// SearchMessages searches guild messages. The upstream groups results in
// message clusters; the flattened list is returned.
func (c *Client) SearchMessages(ctx context.Context, guildID string, q SearchQuery) ([]Message, error) {
	var payload struct {
		Messages [][]Message `json:"messages"`
	}
	err := c.do(ctx, c.guildReq(http.MethodGet, guildID, "/messages/search", "guilds.messages.search", q.values(), nil), &payload)
	if err != nil {
		return nil, err
	}
	var messages []Message
	for _, cluster := range payload.Messages {
		messages = append(messages, cluster...)
	}
	return messages, nil
}

// CreateThread starts a thread, anchored to a message when messageID is set.
func (c *Client) CreateThread(ctx context.Context, channelID, name, messageID string, autoArchiveMinutes int) (*Channel, error) {
	if autoArchiveMinutes <= 0 {
		autoArchiveMinutes = 1440
	}
	body := map[string]any{
		"name":                  name,
		"auto_archive_duration": autoArchiveMinutes,
	}
	suffix := "/threads"
	routeName := "channels.threads.create"
	if messageID != "" {
		suffix = "/messages/" + messageID + "/threads"
		routeName = "channels.messages.threads.create"
	}
	var thread Channel
	err := c.do(ctx, c.channelReq(http.MethodPost, channelID, suffix, routeName, nil, body, false), &thread)
	if err != nil {
		return nil, err
	}
	return &thread, nil
}

// ListActiveThreads returns the active threads of a guild channel's guild
// scope as Discord reports them for the channel.
func (c *Client) ListActiveThreads(ctx context.Context, channelID string) ([]Channel, error) {
	var payload struct {
		Threads []Channel `json:"threads"`
	}
	err := c.do(ctx, c.channelReq(http.MethodGet, channelID, "/threads", "channels.threads.list", nil, nil, true), &payload)
	if err != nil {
		return nil, err
	}
	return payload.Threads, nil
}

// SetThreadArchived toggles a thread's archived flag. Setting the same
// state twice converges, so the call retries on ambiguous failures.
func (c *Client) SetThreadArchived(ctx context.Context, threadID string, archived bool) (*Channel, error) {
	body := map[string]any{"archived": archived}
	var thread Channel
	err := c.do(ctx, c.channelReq(http.MethodPatch, threadID, "", "channels.threads.archive", nil, body, true), &thread)
	if err != nil {
		return nil, err
	}
	return &thread, nil
}

// AddReaction reacts to a message as the bot. Repeating it is a no-op
// upstream, hence safe to retry.
func (c *Client) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	suffix := "/messages/" + messageID + "/reactions/" + encodeEmoji(emoji) + "/@me"
	return c.do(ctx, c.channelReq(http.MethodPut, channelID, suffix, "channels.messages.reactions.add", nil, nil, true), nil)
}

// RemoveReaction removes the bot's reaction.
func (c *Client) RemoveReaction(ctx context.Context, channelID, messageID, emoji string) error {
	suffix := "/messages/" + messageID + "/reactions/" + encodeEmoji(emoji) + "/@me"
	return c.do(ctx, c.channelReq(http.MethodDelete, channelID, suffix, "channels.messages.reactions.remove", nil, nil, true), nil)
}

// ListReactions returns the users who reacted with emoji.
func (c *Client) ListReactions(ctx context.Context, channelID, messageID, emoji string, limit int) ([]User, error) {
	if limit <= 0 {
		limit = 25
	}
	v := url.Values{}
	v.Set("limit", strconv.Itoa(limit))
	suffix := "/messages/" + messageID + "/reactions/" + encodeEmoji(emoji)
	var users []User
	err := c.do(ctx, c.channelReq(http.MethodGet, channelID, suffix, "channels.messages.reactions.list", v, nil, true), &users)
	return users, err
}

// PinMessage pins a message to its channel.
func (c *Client) PinMessage(ctx context.Context, channelID, messageID string) error {
	return c.do(ctx, c.channelReq(http.MethodPut, channelID, "/pins/"+messageID, "channels.pins.add", nil, nil, true), nil)
}

// UnpinMessage unpins a message.
func (c *Client) UnpinMessage(ctx context.Context, channelID, messageID string) error {
	return c.do(ctx, c.channelReq(http.MethodDelete, channelID, "/pins/"+messageID, "channels.pins.remove", nil, nil, true), nil)
}

// ListPins returns a channel's pinned messages.
func (c *Client) ListPins(ctx context.Context, channelID string) ([]Message, error) {
	var messages []Message
	err := c.do(ctx, c.channelReq(http.MethodGet, channelID, "/pins", "channels.pins.list", nil, nil, true), &messages)
	return messages, err
}

// ListRoles returns a guild's roles.
func (c *Client) ListRoles(ctx context.Context, guildID string) ([]Role, error) {
	var roles []Role
	err := c.do(ctx, c.guildReq(http.MethodGet, guildID, "/roles", "guilds.roles.list", nil, nil), &roles)
	return roles, err
}

// AddMemberRole grants a role to a member. Granting twice converges.
func (c *Client) AddMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	suffix := "/members/" + userID + "/roles/" + roleID
	return c.do(ctx, c.guildReq(http.MethodPut, guildID, suffix, "guilds.members.roles.add", nil, nil), nil)
}

// RemoveMemberRole revokes a role from a member.
func (c *Client) RemoveMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	suffix := "/members/" + userID + "/roles/" + roleID
	return c.do(ctx, c.guildReq(http.MethodDelete, guildID, suffix, "guilds.members.roles.remove", nil, nil), nil)
}

// CreateWebhook creates an incoming webhook on a channel.
func (c *Client) CreateWebhook(ctx context.Context, channelID, name string) (*Webhook, error) {
	body := map[string]any{"name": name}
	var webhook Webhook
	err := c.do(ctx, c.channelReq(http.MethodPost, channelID, "/webhooks", "channels.webhooks.create", nil, body, false), &webhook)
	if err != nil {
		return nil, err
	}
	return &webhook, nil
}

// ExecuteWebhook posts a message through a webhook. The webhook token,
// not the bot token, authorizes the call; it rides in the path.
func (c *Client) ExecuteWebhook(ctx context.Context, webhookID, webhookToken, content, username string, embeds []Embed) error {
	body := map[string]any{
		"content":          sanitize.Text(content),
		"allowed_mentions": map[string]any{"parse": []string{}},
	}
	if username != "" {
		body["username"] = username
	}
	if len(embeds) > 0 {
		body["embeds"] = embeds
	}
	return c.do(ctx, transport.Request{
		Method:    http.MethodPost,
		Path:      "/webhooks/" + webhookID + "/" + webhookToken,
		RouteName: "webhooks.execute",
		BucketKey: "POST /webhooks/{id}/{token}:" + webhookID,
		Major:     webhookID,
		Body:      body,
	}, nil)
}

// do executes req and decodes the response into out when non-nil.
// Empty bodies (204 responses) leave out untouched.
func (c *Client) do(ctx context.Context, req transport.Request, out any) error {
	data, err := c.transport.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", req.RouteName, err)
	}
	return nil
}

// channelReq builds a channel-scoped request. The channel id is the
// bucket-significant major resource.
func (c *Client) channelReq(method, channelID, suffix, routeName string, query url.Values, body any, retryable bool) transport.Request {
	template := "/channels/{id}" + templateOf(suffix)
	return transport.Request{
		Method:    method,
		Path:      "/channels/" + channelID + suffix,
		RouteName: routeName,
		BucketKey: method + " " + template + ":" + channelID,
		Major:     channelID,
		Query:     query,
		Body:      body,
		Retryable: retryable,
	}
}

// guildReq builds a guild-scoped request.
func (c *Client) guildReq(method, guildID, suffix, routeName string, query url.Values, body any) transport.Request {
	template := "/guilds/{id}" + templateOf(suffix)
	retryable := method == http.MethodGet || method == http.MethodPut || method == http.MethodDelete
	return transport.Request{
		Method:    method,
		Path:      "/guilds/" + guildID + suffix,
		RouteName: routeName,
		BucketKey: method + " " + template + ":" + guildID,
		Major:     guildID,
		Query:     query,
		Body:      body,
		Retryable: retryable,
	}
}

// templateOf collapses the id segments of a path suffix so requests against
// different minor resources share a bucket key.
func templateOf(suffix string) string {
	if suffix == "" {
		return ""
	}
	parts := strings.Split(suffix, "/")
	for i, part := range parts {
		if isSnowflake(part) {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

func isSnowflake(s string) bool {
	if len(s) == 0 || len(s) > 20 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// encodeEmoji normalizes a tool-supplied emoji for the reactions route:
// colon shorthand is stripped, spaces become underscores, then the value
// is path-escaped.
func encodeEmoji(emoji string) string {
	emoji = strings.ReplaceAll(emoji, ":", "")
	emoji = strings.ReplaceAll(emoji, " ", "_")
	return url.PathEscape(emoji)
}
