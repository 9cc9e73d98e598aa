package discord

import (
	"time"

	"concord/internal/registry"
)

// Cache TTLs per result volatility: message-derived data goes stale fast,
// guild/channel metadata does not.
const (
	messageTTL  = time.Minute
	metadataTTL = 5 * time.Minute
)

// Catalog registers the full Discord tool set against c and returns the
// populated registry. Registration failures indicate a malformed static
// descriptor and abort startup.
func Catalog(c *Client) *registry.Registry {
	r := registry.New()
	for _, group := range [][]*registry.Descriptor{
		messageTools(c),
		channelTools(c),
		threadTools(c),
		reactionTools(c),
		roleTools(c),
		webhookTools(c),
		advancedTools(c),
	} {
		for _, d := range group {
			r.MustRegister(d)
		}
	}
	return r
}
