package sanitize

import "testing"

func TestTextNeutralizesBroadcastMentions(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"@everyone hi", "＠everyone hi"},
		{"hello @here", "hello ＠here"},
		{"@everyone @here @everyone", "＠everyone ＠here ＠everyone"},
		{"plain text", "plain text"},
		{"", ""},
		{"user@example.com", "user@example.com"},
		{"@everyonebody", "＠everyonebody"},
	}
	for _, tc := range cases {
		if got := Text(tc.in); got != tc.want {
			t.Errorf("Text(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTextIdempotent(t *testing.T) {
	inputs := []string{
		"@everyone hi",
		"@here",
		"nested @everyone @here tokens",
		"already ＠everyone neutral",
	}
	for _, in := range inputs {
		once := Text(in)
		if twice := Text(once); twice != once {
			t.Errorf("Text not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestFields(t *testing.T) {
	params := map[string]any{
		"content":    "@everyone ping",
		"channel_id": "123",
		"tts":        false,
	}
	out := Fields(params, "content", "username")
	if out["content"] != "＠everyone ping" {
		t.Fatalf("content not sanitized: %v", out["content"])
	}
	if out["channel_id"] != "123" || out["tts"] != false {
		t.Fatal("unrelated fields must pass through")
	}
	if params["content"] != "@everyone ping" {
		t.Fatal("input map must not be mutated")
	}
}
