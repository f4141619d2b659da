package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrConfigExists is returned by WriteScaffold when the target exists and
// overwriting was not requested.
var ErrConfigExists = errors.New("config file already exists")

const scaffoldHeader = `# staywatch configuration.
# Secrets can also come from STAYWATCH_PUSHOVER_TOKEN, STAYWATCH_PUSHOVER_USER
# and STAYWATCH_DISCORD_WEBHOOKS, or from {{VAR}} placeholders.
`

// Scaffold returns a starter configuration with placeholder values.
func Scaffold() ([]byte, error) {
	recursive := true
	f := File{
		Filter: FilterSection{ExcludePatterns: []string{"hostel"}},
		Notifications: NotificationsSection{
			Pushover: &PushoverSection{Token: "<my-token>", User: "<my-user>", Device: []string{}},
			Discord:  &DiscordSection{Webhooks: []string{}},
		},
		Searches: []SearchSection{{
			Name:      "<my-search-name>",
			URL:       "https://www.booking.com/searchresults.html?ss=<my-destination>",
			Recursive: &recursive,
		}},
	}

	body, err := yaml.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scaffold: %w", err)
	}
	out := append([]byte(scaffoldHeader), body...)
	return out, nil
}

// WriteScaffold writes the scaffold to path, refusing to replace an
// existing file unless force is set.
func WriteScaffold(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}
	}

	data, err := Scaffold()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	// Secrets end up here, keep it private.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
