package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/MrSnakeDoc/staywatch/internal/domain"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

const sampleYAML = `
filter:
  exclude_patterns: ["hostel", "apartman"]
notifications:
  pushover:
    token: app-token
    user: user-key
    device: [phone]
searches:
  - name: Hotels in Rovinj
    url: https://www.booking.com/searchresults.html?ss=Rovinj
  - name: Poreč
    url: https://www.booking.com/searchresults.html?ss=Porec
    recursive: false
`

func TestLoadFileYAML(t *testing.T) {
	f, err := LoadFile(writeConfig(t, "config.yaml", sampleYAML))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	want := []domain.Search{
		{Name: "Hotels in Rovinj", URL: "https://www.booking.com/searchresults.html?ss=Rovinj", Recursive: true},
		{Name: "Poreč", URL: "https://www.booking.com/searchresults.html?ss=Porec", Recursive: false},
	}
	if got := f.DomainSearches(); !reflect.DeepEqual(got, want) {
		t.Errorf("DomainSearches() = %+v, want %+v", got, want)
	}
	if !reflect.DeepEqual(f.Filter.ExcludePatterns, []string{"hostel", "apartman"}) {
		t.Errorf("ExcludePatterns = %v", f.Filter.ExcludePatterns)
	}
	if !f.PushoverEnabled() || f.Notifications.Pushover.Device[0] != "phone" {
		t.Errorf("Pushover = %+v", f.Notifications.Pushover)
	}
	if f.DiscordEnabled() {
		t.Error("discord should be disabled")
	}
	if !reflect.DeepEqual(f.SearchNames(), []string{"Hotels in Rovinj", "Poreč"}) {
		t.Errorf("SearchNames() = %v", f.SearchNames())
	}
}

func TestLoadFileJSON(t *testing.T) {
	content := `{
  "filter": {"exclude_patterns": []},
  "notifications": {"discord": {"webhooks": ["https://discord.com/api/webhooks/1/t"]}},
  "searches": [{"name": "S", "url": "https://example.com/s", "recursive": true}]
}`
	f, err := LoadFile(writeConfig(t, "config.json", content))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if !f.DiscordEnabled() || f.PushoverEnabled() {
		t.Errorf("notifications = %+v", f.Notifications)
	}
}

func TestLoadFileEnvOverlay(t *testing.T) {
	t.Setenv(EnvPushoverToken, "env-token")
	t.Setenv(EnvPushoverUser, "env-user")
	t.Setenv(EnvDiscordWebhooks, "https://discord.com/api/webhooks/1/a, https://discord.com/api/webhooks/2/b")

	f, err := LoadFile(writeConfig(t, "config.yaml", `
searches:
  - name: S
    url: https://example.com/s
`))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if p := f.Notifications.Pushover; p == nil || p.Token != "env-token" || p.User != "env-user" {
		t.Errorf("Pushover = %+v", p)
	}
	if d := f.Notifications.Discord; d == nil || len(d.Webhooks) != 2 || d.Webhooks[1] != "https://discord.com/api/webhooks/2/b" {
		t.Errorf("Discord = %+v", d)
	}
}

func TestLoadFilePlaceholders(t *testing.T) {
	t.Setenv("STAYWATCH_TEST_TOKEN", `to"ken`)
	t.Setenv("STAYWATCH_TEST_USER", "user")

	f, err := LoadFile(writeConfig(t, "config.yaml", `
notifications:
  pushover:
    token: "{{STAYWATCH_TEST_TOKEN}}"
    user: {{ STAYWATCH_TEST_USER }}
searches:
  - name: S
    url: https://example.com/s
`))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if p := f.Notifications.Pushover; p.Token != `to"ken` || p.User != "user" {
		t.Errorf("Pushover = %+v", p)
	}
}

func TestLoadFilePlaceholdersInsideStrings(t *testing.T) {
	t.Setenv("STAYWATCH_TEST_HOOK_ID", "1234")
	t.Setenv("STAYWATCH_TEST_HOOK_TOKEN", `ab"c'd`)
	t.Setenv("STAYWATCH_TEST_DEST", "-95110")

	f, err := LoadFile(writeConfig(t, "config.yaml", `
notifications:
  discord:
    webhooks:
      - "https://discord.com/api/webhooks/{{STAYWATCH_TEST_HOOK_ID}}/{{STAYWATCH_TEST_HOOK_TOKEN}}"
      - 'https://discord.com/api/webhooks/{{STAYWATCH_TEST_HOOK_ID}}/{{STAYWATCH_TEST_HOOK_TOKEN}}'
searches:
  - name: S
    url: https://example.com/s?dest_id={{STAYWATCH_TEST_DEST}}&lang=en
`))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	want := `https://discord.com/api/webhooks/1234/ab"c'd`
	hooks := f.Notifications.Discord.Webhooks
	if len(hooks) != 2 || hooks[0] != want || hooks[1] != want {
		t.Errorf("Webhooks = %q, want twice %q", hooks, want)
	}
	if got := f.Searches[0].URL; got != "https://example.com/s?dest_id=-95110&lang=en" {
		t.Errorf("URL = %q", got)
	}
}

func TestExpandPlaceholders(t *testing.T) {
	t.Setenv("STAYWATCH_TEST_V", `x"y`)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare value", "token: {{STAYWATCH_TEST_V}}\n", `token: "x\"y"` + "\n"},
		{"double-quoted value", `token: "{{STAYWATCH_TEST_V}}"`, `token: "x\"y"`},
		{"single-quoted value", `token: '{{ STAYWATCH_TEST_V }}'`, `token: "x\"y"`},
		{"inside double quotes", `u: "a/{{STAYWATCH_TEST_V}}/b"`, `u: "a/x\"y/b"`},
		{"inside single quotes", `u: 'a/{{STAYWATCH_TEST_V}}'`, `u: 'a/x"y'`},
		{"inside a plain scalar", `u: a/{{STAYWATCH_TEST_V}}`, `u: a/x"y`},
		{"json member", `{"token": "{{STAYWATCH_TEST_V}}"}`, `{"token": "x\"y"}`},
		{"flow list", `d: [{{STAYWATCH_TEST_V}}, b]`, `d: ["x\"y", b]`},
		{"unset variable", `t: {{STAYWATCH_TEST_UNSET}}`, `t: ""`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(expandPlaceholders([]byte(tt.in))); got != tt.want {
				t.Errorf("expandPlaceholders(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoadFileErrors(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantField string
	}{
		{
			name:      "no searches",
			content:   "filter:\n  exclude_patterns: []\n",
			wantField: "searches",
		},
		{
			name: "duplicate names",
			content: `searches:
  - {name: A, url: "https://example.com/1"}
  - {name: A, url: "https://example.com/2"}`,
			wantField: "searches[1].name",
		},
		{
			name:      "empty name",
			content:   "searches:\n  - {name: \"\", url: \"https://example.com\"}\n",
			wantField: "searches[0].name",
		},
		{
			name:      "relative url",
			content:   "searches:\n  - {name: A, url: \"/searchresults.html\"}\n",
			wantField: "searches[0].url",
		},
		{
			name: "bad pattern",
			content: `filter:
  exclude_patterns: ["ok", "(unclosed"]
searches:
  - {name: A, url: "https://example.com"}`,
			wantField: "filter.exclude_patterns[1]",
		},
		{
			name: "half pushover",
			content: `notifications:
  pushover: {token: t}
searches:
  - {name: A, url: "https://example.com"}`,
			wantField: "notifications.pushover",
		},
		{
			name:      "not yaml",
			content:   "searches: [unterminated",
			wantField: "config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvPushoverToken, "")
			t.Setenv(EnvPushoverUser, "")
			_, err := LoadFile(writeConfig(t, "config.yaml", tt.content))
			var ce *domain.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("LoadFile() error = %v, want *domain.ConfigError", err)
			}
			if ce.Field != tt.wantField {
				t.Errorf("ConfigError.Field = %q, want %q (%v)", ce.Field, tt.wantField, err)
			}
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	var ce *domain.ConfigError
	if !errors.As(err, &ce) || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadFile() error = %v, want ConfigError wrapping ErrNotExist", err)
	}
}
