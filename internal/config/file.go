package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	"github.com/MrSnakeDoc/staywatch/internal/domain"
	"github.com/MrSnakeDoc/staywatch/internal/filter"
)

// Environment variables overlaid on the config file secrets.
const (
	EnvPushoverToken   = "STAYWATCH_PUSHOVER_TOKEN"
	EnvPushoverUser    = "STAYWATCH_PUSHOVER_USER"
	EnvDiscordWebhooks = "STAYWATCH_DISCORD_WEBHOOKS"
)

// File is the user configuration: what to watch and whom to tell.
type File struct {
	Filter        FilterSection        `mapstructure:"filter" yaml:"filter"`
	Notifications NotificationsSection `mapstructure:"notifications" yaml:"notifications"`
	Searches      []SearchSection      `mapstructure:"searches" yaml:"searches"`
}

type FilterSection struct {
	ExcludePatterns []string `mapstructure:"exclude_patterns" yaml:"exclude_patterns"`
}

type NotificationsSection struct {
	Pushover *PushoverSection `mapstructure:"pushover" yaml:"pushover,omitempty"`
	Discord  *DiscordSection  `mapstructure:"discord" yaml:"discord,omitempty"`
}

type PushoverSection struct {
	Token  string   `mapstructure:"token" yaml:"token"`
	User   string   `mapstructure:"user" yaml:"user"`
	Device []string `mapstructure:"device" yaml:"device"`
}

type DiscordSection struct {
	Webhooks []string `mapstructure:"webhooks" yaml:"webhooks"`
}

type SearchSection struct {
	Name      string `mapstructure:"name" yaml:"name"`
	URL       string `mapstructure:"url" yaml:"url"`
	Recursive *bool  `mapstructure:"recursive" yaml:"recursive,omitempty"` // nil => true
}

// A {{VAR}} placeholder, either a whole scalar or part of a longer string.
var placeholderRE = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// LoadFile reads a YAML or JSON config file. Secrets can be supplied by the
// environment, either through {{VAR}} placeholders or the STAYWATCH_PUSHOVER_*
// and STAYWATCH_DISCORD_WEBHOOKS variables, which take precedence.
// The result is validated; any problem is a *domain.ConfigError.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.ConfigError{Field: "config", Err: fmt.Errorf("failed to read config file: %w", err)}
	}

	v := viper.New()
	v.SetConfigType(configType(path))
	if err := v.ReadConfig(bytes.NewReader(expandPlaceholders(data))); err != nil {
		return nil, &domain.ConfigError{Field: "config", Err: fmt.Errorf("failed to parse %s: %w", path, err)}
	}

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return nil, &domain.ConfigError{Field: "config", Err: fmt.Errorf("failed to decode %s: %w", path, err)}
	}
	f.overlayEnv()

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func configType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".toml":
		return "toml"
	default:
		return "yaml"
	}
}

// expandPlaceholders substitutes {{VAR}} with the value of VAR. A placeholder
// that is a whole scalar, quoted or not, becomes the JSON-quoted value, which
// is valid in both YAML and JSON documents. Inside a longer string the value
// is escaped for the enclosing quotes. Unset variables become "".
func expandPlaceholders(data []byte) []byte {
	var out bytes.Buffer
	last := 0
	for _, m := range placeholderRE.FindAllSubmatchIndex(data, -1) {
		start, end := m[0], m[1]
		value := os.Getenv(string(data[m[2]:m[3]]))

		lineStart := bytes.LastIndexByte(data[:start], '\n') + 1
		quote := enclosingQuote(data[lineStart:start])

		switch {
		case quote != 0 && start > lineStart && end < len(data) && data[start-1] == quote && data[end] == quote:
			// "{{VAR}}" or '{{VAR}}': replace the quotes too.
			out.Write(data[last : start-1])
			out.Write(jsonQuote(value))
			last = end + 1
			continue
		case quote == 0 && bareScalar(data, lineStart, start, end):
			out.Write(data[last:start])
			out.Write(jsonQuote(value))
		case quote == '"':
			q := jsonQuote(value)
			out.Write(data[last:start])
			out.Write(q[1 : len(q)-1])
		case quote == '\'':
			out.Write(data[last:start])
			out.WriteString(strings.ReplaceAll(value, "'", "''"))
		default:
			out.Write(data[last:start])
			out.WriteString(value)
		}
		last = end
	}
	out.Write(data[last:])
	return out.Bytes()
}

// enclosingQuote returns the quote still open at the end of a line prefix.
func enclosingQuote(prefix []byte) byte {
	var open byte
	for i := 0; i < len(prefix); i++ {
		c := prefix[i]
		switch {
		case open == '"' && c == '\\':
			i++
		case open == 0 && (c == '"' || c == '\''):
			open = c
		case open != 0 && c == open:
			open = 0
		}
	}
	return open
}

// bareScalar reports an unquoted placeholder standing alone as a value.
func bareScalar(data []byte, lineStart, start, end int) bool {
	before := bytes.TrimRight(data[lineStart:start], " \t")
	if len(before) > 0 && !bytes.ContainsAny(before[len(before)-1:], ":-[,{") {
		return false
	}
	if start > lineStart && data[start-1] != ' ' && data[start-1] != '\t' &&
		!bytes.ContainsAny(data[start-1:start], "[,{") {
		return false
	}
	if end == len(data) {
		return true
	}
	return bytes.ContainsAny(data[end:end+1], " \t\r\n,]}#")
}

func jsonQuote(s string) []byte {
	q, _ := json.Marshal(s)
	return q
}

func (f *File) overlayEnv() {
	token, user := os.Getenv(EnvPushoverToken), os.Getenv(EnvPushoverUser)
	if token != "" || user != "" {
		if f.Notifications.Pushover == nil {
			f.Notifications.Pushover = &PushoverSection{}
		}
		if token != "" {
			f.Notifications.Pushover.Token = token
		}
		if user != "" {
			f.Notifications.Pushover.User = user
		}
	}
	if hooks := splitAndTrim(os.Getenv(EnvDiscordWebhooks)); len(hooks) > 0 {
		f.Notifications.Discord = &DiscordSection{Webhooks: hooks}
	}
}

// Validate checks the searches and compiles the exclusion patterns.
func (f *File) Validate() error {
	if len(f.Searches) == 0 {
		return &domain.ConfigError{Field: "searches", Err: errors.New("at least one search is required")}
	}

	seen := make(map[string]int, len(f.Searches))
	for i, s := range f.Searches {
		field := fmt.Sprintf("searches[%d]", i)
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return &domain.ConfigError{Field: field + ".name", Err: errors.New("must not be empty")}
		}
		if j, dup := seen[name]; dup {
			return &domain.ConfigError{Field: field + ".name", Err: fmt.Errorf("duplicate name %q (also searches[%d])", name, j)}
		}
		seen[name] = i

		u, err := url.Parse(s.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return &domain.ConfigError{Field: field + ".url", Err: fmt.Errorf("not an absolute http(s) url: %q", s.URL)}
		}
	}

	if _, err := filter.Compile(f.Filter.ExcludePatterns); err != nil {
		return err
	}

	if p := f.Notifications.Pushover; p != nil && (p.Token == "") != (p.User == "") {
		return &domain.ConfigError{Field: "notifications.pushover", Err: errors.New("token and user must be set together")}
	}
	return nil
}

// DomainSearches converts the configured searches, applying defaults.
func (f *File) DomainSearches() []domain.Search {
	out := make([]domain.Search, 0, len(f.Searches))
	for _, s := range f.Searches {
		recursive := true
		if s.Recursive != nil {
			recursive = *s.Recursive
		}
		out = append(out, domain.Search{Name: strings.TrimSpace(s.Name), URL: s.URL, Recursive: recursive})
	}
	return out
}

// SearchNames returns the configured names in order.
func (f *File) SearchNames() []string {
	names := make([]string, 0, len(f.Searches))
	for _, s := range f.DomainSearches() {
		names = append(names, s.Name)
	}
	return names
}

// PushoverEnabled reports whether pushover credentials are configured.
func (f *File) PushoverEnabled() bool {
	p := f.Notifications.Pushover
	return p != nil && p.Token != "" && p.User != ""
}

// DiscordEnabled reports whether at least one webhook is configured.
func (f *File) DiscordEnabled() bool {
	d := f.Notifications.Discord
	return d != nil && len(d.Webhooks) > 0
}
