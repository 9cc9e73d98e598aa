package discord

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"concord/internal/registry"
	"concord/internal/schema"
)

// summaryTokenBudget bounds each excerpt in a summary so the whole result
// stays cheap for a model to consume.
const summaryTokenBudget = 60

var (
	encoderOnce sync.Once
	encoder     *tiktoken.Tiktoken
)

// truncateToTokens cuts s to at most budget tokens, appending an ellipsis
// when anything was cut. Falls back to a rune cut if the encoder is
// unavailable.
func truncateToTokens(s string, budget int) string {
	encoderOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoder = enc
		}
	})
	if encoder == nil {
		runes := []rune(s)
		if len(runes) <= budget*4 {
			return s
		}
		return string(runes[:budget*4]) + "..."
	}
	tokens := encoder.Encode(s, nil, nil)
	if len(tokens) <= budget {
		return s
	}
	return encoder.Decode(tokens[:budget]) + "..."
}

// scoreMessage rates a message's importance: reactions weigh 1.5 each,
// a link 2.0, each keyword hit 1.0, embeds 1.0, attachments 0.5.
func scoreMessage(m Message, keywords []string) float64 {
	score := 0.0
	for _, reaction := range m.Reactions {
		score += float64(reaction.Count) * 1.5
	}
	if hasLink(m.Content) {
		score += 2.0
	}
	lower := strings.ToLower(m.Content)
	for _, keyword := range keywords {
		if keyword != "" && strings.Contains(lower, strings.ToLower(keyword)) {
			score += 1.0
		}
	}
	if len(m.Embeds) > 0 {
		score += 1.0
	}
	if len(m.Attachments) > 0 {
		score += 0.5
	}
	return score
}

func hasLink(content string) bool {
	return strings.Contains(content, "http") || strings.Contains(content, "www.")
}

func reactionTotal(m Message) int {
	total := 0
	for _, reaction := range m.Reactions {
		total += reaction.Count
	}
	return total
}

func digestMessage(m Message, score float64, budget int) map[string]any {
	return map[string]any{
		"id":              m.ID,
		"content":         truncateToTokens(m.Content, budget),
		"author":          m.Author.Username,
		"timestamp":       m.Timestamp,
		"score":           score,
		"reactions":       reactionTotal(m),
		"has_links":       hasLink(m.Content),
		"has_embeds":      len(m.Embeds) > 0,
		"has_attachments": len(m.Attachments) > 0,
	}
}

func advancedTools(c *Client) []*registry.Descriptor {
	return []*registry.Descriptor{
		{
			Name:        "discord.summarize_messages",
			Version:     "1.0.0",
			Description: "Pick the highest-scoring recent messages of a channel.",
			Schema: &schema.Object{Fields: []schema.Field{
				schema.Snowflake("channel_id", "Channel to summarize", true),
				schema.Integer("limit", "Messages to scan (1-100)", false, 1, 100),
				schema.Array("keywords", "Keywords boosting a message's score", false),
				schema.Number("min_score", "Score threshold for inclusion", false),
				schema.Integer("max_messages", "Summary size ceiling", false, 1, 50),
			}},
			Class:     registry.Read,
			CacheTTL:  messageTTL,
			Resources: resourceIDs("channel_id"),
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				channelID := strParam(params, "channel_id")
				keywords := strSliceParam(params, "keywords")
				minScore := floatParam(params, "min_score", 2.0)
				maxMessages := intParam(params, "max_messages", 10)

				messages, err := c.ListMessages(ctx, channelID, MessageQuery{Limit: intParam(params, "limit", 50)})
				if err != nil {
					return nil, err
				}

				type scored struct {
					message Message
					score   float64
				}
				var filtered []scored
				for _, m := range messages {
					if s := scoreMessage(m, keywords); s >= minScore {
						filtered = append(filtered, scored{m, s})
					}
				}
				sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].score > filtered[j].score })
				top := filtered
				if len(top) > maxMessages {
					top = top[:maxMessages]
				}

				digests := make([]map[string]any, 0, len(top))
				for _, s := range top {
					digests = append(digests, digestMessage(s.message, s.score, summaryTokenBudget))
				}
				return map[string]any{
					"channel_id":        channelID,
					"total_messages":    len(messages),
					"filtered_messages": len(filtered),
					"summary_messages":  len(top),
					"keywords":          keywords,
					"min_score":         minScore,
					"messages":          digests,
				}, nil
			},
		},
		{
			Name:        "discord.rank_messages",
			Version:     "1.0.0",
			Description: "Rank a channel's recent messages by importance.",
			Schema: &schema.Object{Fields: []schema.Field{
				schema.Snowflake("channel_id", "Channel to rank", true),
				schema.Integer("limit", "Messages to scan (1-100)", false, 1, 100),
				schema.Array("keywords", "Keywords boosting a message's score", false),
				schema.Enum("sort_by", "Ranking criterion", false, "score", "reactions", "timestamp"),
			}},
			Class:     registry.Read,
			CacheTTL:  messageTTL,
			Resources: resourceIDs("channel_id"),
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				channelID := strParam(params, "channel_id")
				keywords := strSliceParam(params, "keywords")
				sortBy := strParam(params, "sort_by")
				if sortBy == "" {
					sortBy = "score"
				}

				messages, err := c.ListMessages(ctx, channelID, MessageQuery{Limit: intParam(params, "limit", 100)})
				if err != nil {
					return nil, err
				}

				ranked := make([]map[string]any, 0, len(messages))
				for _, m := range messages {
					ranked = append(ranked, digestMessage(m, scoreMessage(m, keywords), summaryTokenBudget/2))
				}
				sort.SliceStable(ranked, func(i, j int) bool {
					switch sortBy {
					case "reactions":
						return ranked[i]["reactions"].(int) > ranked[j]["reactions"].(int)
					case "timestamp":
						return ranked[i]["timestamp"].(string) > ranked[j]["timestamp"].(string)
					default:
						return ranked[i]["score"].(float64) > ranked[j]["score"].(float64)
					}
				})
				return map[string]any{
					"channel_id":      channelID,
					"total_messages":  len(messages),
					"keywords":        keywords,
					"sort_by":         sortBy,
					"ranked_messages": ranked,
				}, nil
			},
		},
		{
			Name:        "discord.sync_since",
			Version:     "1.0.0",
			Description: "Fetch the messages posted after a known message id.",
			Schema: &schema.Object{Fields: []schema.Field{
				schema.Snowflake("channel_id", "Channel to sync", true),
				schema.Snowflake("last_message_id", "Cursor from the previous sync", true),
				schema.Integer("limit", "Messages to fetch (1-100)", false, 1, 100),
			}},
			// A cursor read: caching would hide new messages inside the TTL.
			Class:     registry.Read,
			Resources: resourceIDs("channel_id"),
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				channelID := strParam(params, "channel_id")
				lastID := strParam(params, "last_message_id")

				messages, err := c.ListMessages(ctx, channelID, MessageQuery{
					Limit: intParam(params, "limit", 50),
					After: lastID,
				})
				if err != nil {
					return nil, err
				}

				ids := make([]string, 0, len(messages))
				for _, m := range messages {
					ids = append(ids, m.ID)
				}
				latest := lastID
				if len(ids) > 0 {
					latest = ids[0]
				}
				return map[string]any{
					"channel_id":        channelID,
					"last_message_id":   lastID,
					"latest_message_id": latest,
					"new_messages":      len(messages),
					"message_ids":       ids,
					"messages":          messages,
				}, nil
			},
		},
		{
			Name:        "discord.analyze_channel_activity",
			Version:     "1.0.0",
			Description: "Aggregate author, timing and content statistics for a channel.",
			Schema: &schema.Object{Fields: []schema.Field{
				schema.Snowflake("channel_id", "Channel to analyze", true),
				schema.Integer("days", "Nominal analysis window in days", false, 1, 90),
				schema.Integer("limit", "Messages to scan (1-100)", false, 1, 100),
			}},
			Class:     registry.Read,
			CacheTTL:  messageTTL,
			Resources: resourceIDs("channel_id"),
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				channelID := strParam(params, "channel_id")
				messages, err := c.ListMessages(ctx, channelID, MessageQuery{Limit: intParam(params, "limit", 100)})
				if err != nil {
					return nil, err
				}
				return analyzeActivity(channelID, intParam(params, "days", 7), messages), nil
			},
		},
	}
}

func analyzeActivity(channelID string, days int, messages []Message) map[string]any {
	authorCounts := map[string]int{}
	hourlyCounts := map[int]int{}
	dailyCounts := map[string]int{}
	reactionCounts := map[string]int{}
	linkCount := 0
	embedCount := 0

	for _, m := range messages {
		authorCounts[m.Author.Username]++
		if ts, err := time.Parse(time.RFC3339Nano, m.Timestamp); err == nil {
			hourlyCounts[ts.Hour()]++
			dailyCounts[ts.Format("2006-01-02")]++
		}
		for _, reaction := range m.Reactions {
			name := reaction.Emoji.Name
			if name == "" {
				name = "unknown"
			}
			reactionCounts[name] += reaction.Count
		}
		if hasLink(m.Content) {
			linkCount++
		}
		if len(m.Embeds) > 0 {
			embedCount++
		}
	}

	linkRatio := 0.0
	embedRatio := 0.0
	avgPerAuthor := 0.0
	if len(messages) > 0 {
		linkRatio = float64(linkCount) / float64(len(messages))
		embedRatio = float64(embedCount) / float64(len(messages))
	}
	if len(authorCounts) > 0 {
		avgPerAuthor = float64(len(messages)) / float64(len(authorCounts))
	}

	return map[string]any{
		"channel_id":              channelID,
		"analysis_period_days":    days,
		"total_messages":          len(messages),
		"unique_authors":          len(authorCounts),
		"top_authors":             topCounts(authorCounts, 10),
		"top_reactions":           topCounts(reactionCounts, 10),
		"most_active_hours":       topHourCounts(hourlyCounts, 5),
		"daily_activity":          dailyCounts,
		"link_ratio":              linkRatio,
		"embed_ratio":             embedRatio,
		"avg_messages_per_author": avgPerAuthor,
	}
}

type countEntry struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

func topCounts(counts map[string]int, n int) []countEntry {
	entries := make([]countEntry, 0, len(counts))
	for k, v := range counts {
		entries = append(entries, countEntry{k, v})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Key < entries[j].Key
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

type hourEntry struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

func topHourCounts(counts map[int]int, n int) []hourEntry {
	entries := make([]hourEntry, 0, len(counts))
	for k, v := range counts {
		entries = append(entries, hourEntry{k, v})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Hour < entries[j].Hour
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
