// Package sanitize neutralizes broadcast-mention payloads in outbound text.
package sanitize

import "strings"

// The reserved broadcast forms are replaced with a fullwidth at sign so the
// text stays readable but Discord no longer treats it as a mass mention.
var replacer = strings.NewReplacer(
	"@everyone", "＠everyone",
	"@here", "＠here",
)

// Text rewrites s so it cannot trigger a mass mention. Deterministic and
// idempotent: the fullwidth substitute never matches the reserved forms again.
func Text(s string) string {
	return replacer.Replace(s)
}

// Fields applies Text to every string value of the named keys in params,
// returning a copy. Non-string values pass through untouched.
func Fields(params map[string]any, keys ...string) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	for _, key := range keys {
		if s, ok := out[key].(string); ok {
			out[key] = Text(s)
		}
	}
	return out
}
