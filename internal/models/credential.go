package models

import (
	"time"
)

// Credential is the stored access/refresh token bundle for one user's
// calendar access. Field names match the payload persisted by earlier
// deployments so existing rows keep decoding.
type Credential struct {
	Token        string     `json:"token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	TokenURI     string     `json:"token_uri"`
	ClientID     string     `json:"client_id"`
	ClientSecret string     `json:"client_secret"`
	Scopes       []string   `json:"scopes"`
	Expiry       *time.Time `json:"expiry"`
}

// Expired reports whether the access token is no longer usable at now.
// A credential without an expiry never expires.
func (c Credential) Expired(now time.Time) bool {
	if c.Expiry == nil {
		return false
	}
	return !c.Expiry.After(now)
}

// Refreshable reports whether a refresh exchange is possible.
func (c Credential) Refreshable() bool {
	return c.RefreshToken != ""
}

// Equal reports whether two credentials carry identical values.
func (c Credential) Equal(other Credential) bool {
	if c.Token != other.Token ||
		c.RefreshToken != other.RefreshToken ||
		c.TokenURI != other.TokenURI ||
		c.ClientID != other.ClientID ||
		c.ClientSecret != other.ClientSecret {
		return false
	}
	if len(c.Scopes) != len(other.Scopes) {
		return false
	}
	for i := range c.Scopes {
		if c.Scopes[i] != other.Scopes[i] {
			return false
		}
	}
	switch {
	case c.Expiry == nil && other.Expiry == nil:
		return true
	case c.Expiry == nil || other.Expiry == nil:
		return false
	default:
		return c.Expiry.Equal(*other.Expiry)
	}
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (c Credential) Clone() Credential {
	out := c
	if c.Scopes != nil {
		out.Scopes = append([]string(nil), c.Scopes...)
	}
	if c.Expiry != nil {
		expiry := *c.Expiry
		out.Expiry = &expiry
	}
	return out
}
