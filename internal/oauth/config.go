package oauth

import (
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// CalendarReadonlyScope is the only scope the assistant requests.
const CalendarReadonlyScope = "https://www.googleapis.com/auth/calendar.readonly"

// ConfigSource loads the provider configuration for a new handshake.
type ConfigSource func() (*oauth2.Config, error)

// FileConfig reads a Google client-secret JSON file on every call so a
// missing or replaced file is noticed without a restart. The redirect URI
// is left as the file declares it; Manager points it at CallbackURL.
func FileConfig(path string, scopes ...string) ConfigSource {
	return func() (*oauth2.Config, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read client secret file: %w", err)
		}
		cfg, err := google.ConfigFromJSON(data, scopes...)
		if err != nil {
			return nil, fmt.Errorf("parse client secret file: %w", err)
		}
		return cfg, nil
	}
}

// StaticConfig always returns a copy of cfg.
func StaticConfig(cfg oauth2.Config) ConfigSource {
	return func() (*oauth2.Config, error) {
		c := cfg
		c.Scopes = append([]string(nil), cfg.Scopes...)
		return &c, nil
	}
}
