// Package discord adapts the Discord REST API and defines the tool catalog
// exposed through the gateway.
package discord

// User is a Discord user as returned by the REST API.
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator,omitempty"`
	GlobalName    string `json:"global_name,omitempty"`
	Bot           bool   `json:"bot,omitempty"`
}

// Guild is a Discord server.
type Guild struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Icon        string   `json:"icon,omitempty"`
	OwnerID     string   `json:"owner_id,omitempty"`
	Permissions string   `json:"permissions,omitempty"`
	Features    []string `json:"features,omitempty"`
}

// Channel covers guild channels and threads; Discord models both with
// the same object.
type Channel struct {
	ID                   string      `json:"id"`
	Type                 int         `json:"type"`
	GuildID              string      `json:"guild_id,omitempty"`
	Name                 string      `json:"name,omitempty"`
	Topic                string      `json:"topic,omitempty"`
	Position             int         `json:"position,omitempty"`
	ParentID             string      `json:"parent_id,omitempty"`
	PermissionOverwrites []Overwrite `json:"permission_overwrites,omitempty"`
	ThreadMetadata       *ThreadMeta `json:"thread_metadata,omitempty"`
}

// Overwrite is a per-role or per-member permission override on a channel.
type Overwrite struct {
	ID    string `json:"id"`
	Type  int    `json:"type"`
	Allow string `json:"allow"`
	Deny  string `json:"deny"`
}

// ThreadMeta carries the thread-specific state of a channel object.
type ThreadMeta struct {
	Archived            bool   `json:"archived"`
	AutoArchiveDuration int    `json:"auto_archive_duration,omitempty"`
	ArchiveTimestamp    string `json:"archive_timestamp,omitempty"`
	Locked              bool   `json:"locked,omitempty"`
}

// Message is a channel message.
type Message struct {
	ID          string       `json:"id"`
	ChannelID   string       `json:"channel_id"`
	Author      User         `json:"author"`
	Content     string       `json:"content"`
	Timestamp   string       `json:"timestamp"`
	EditedAt    string       `json:"edited_timestamp,omitempty"`
	TTS         bool         `json:"tts,omitempty"`
	Pinned      bool         `json:"pinned,omitempty"`
	Embeds      []Embed      `json:"embeds,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Reactions   []Reaction   `json:"reactions,omitempty"`
}

// Embed is a rich-content block attached to a message.
type Embed struct {
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	URL         string      `json:"url,omitempty"`
	Color       int         `json:"color,omitempty"`
	Fields      []EmbedItem `json:"fields,omitempty"`
}

// EmbedItem is a single field of an embed.
type EmbedItem struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Attachment is an uploaded file on a message.
type Attachment struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Size     int64  `json:"size,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Reaction aggregates one emoji's reactions on a message.
type Reaction struct {
	Count int   `json:"count"`
	Me    bool  `json:"me,omitempty"`
	Emoji Emoji `json:"emoji"`
}

// Emoji identifies a unicode or custom emoji.
type Emoji struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// Role is a guild role.
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Color       int    `json:"color,omitempty"`
	Position    int    `json:"position,omitempty"`
	Permissions string `json:"permissions,omitempty"`
	Mentionable bool   `json:"mentionable,omitempty"`
	Managed     bool   `json:"managed,omitempty"`
}

// Webhook is an incoming webhook on a channel.
type Webhook struct {
	ID        string `json:"id"`
	Type      int    `json:"type"`
	ChannelID string `json:"channel_id,omitempty"`
	GuildID   string `json:"guild_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Token     string `json:"token,omitempty"`
	URL       string `json:"url,omitempty"`
}
