// Package credential keeps stored calendar credentials usable. It never
// persists anything itself; callers write back the record it returns.
package credential

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/andyleap/donna/internal/apperr"
	"github.com/andyleap/donna/internal/models"
	"golang.org/x/oauth2"
)

// Refresher turns a stored credential into a usable token source,
// refreshing the access token when it has expired.
type Refresher struct {
	httpClient *http.Client
	timeout    time.Duration
	now        func() time.Time
}

// NewRefresher builds a Refresher. A nil client uses http.DefaultClient; a
// zero timeout leaves refresh calls bounded only by the caller's context.
func NewRefresher(httpClient *http.Client, timeout time.Duration) *Refresher {
	return &Refresher{
		httpClient: httpClient,
		timeout:    timeout,
		now:        time.Now,
	}
}

// EnsureFresh returns a token source for rec together with the record the
// caller should keep. Unexpired records come back unchanged without any
// network call. Expired records without a refresh token fail with
// apperr.ErrReauthorizationRequired.
func (r *Refresher) EnsureFresh(ctx context.Context, rec models.Credential) (oauth2.TokenSource, models.Credential, error) {
	if !rec.Expired(r.now()) {
		return oauth2.StaticTokenSource(accessToken(rec)), rec, nil
	}
	if !rec.Refreshable() {
		return nil, rec, fmt.Errorf("access token expired without refresh token: %w", apperr.ErrReauthorizationRequired)
	}

	if r.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cfg := &oauth2.Config{
		ClientID:     rec.ClientID,
		ClientSecret: rec.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  rec.TokenURI,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: rec.Scopes,
	}
	// An empty access token is never valid, so the source always refreshes.
	tok, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: rec.RefreshToken}).Token()
	if err != nil {
		return nil, rec, classify(err)
	}

	updated := rec.Clone()
	updated.Token = tok.AccessToken
	if tok.RefreshToken != "" {
		updated.RefreshToken = tok.RefreshToken
	}
	if tok.Expiry.IsZero() {
		updated.Expiry = nil
	} else {
		expiry := tok.Expiry.UTC()
		updated.Expiry = &expiry
	}

	return oauth2.StaticTokenSource(accessToken(updated)), updated, nil
}

func accessToken(rec models.Credential) *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  rec.Token,
		TokenType:    "Bearer",
		RefreshToken: rec.RefreshToken,
	}
	if rec.Expiry != nil {
		tok.Expiry = *rec.Expiry
	}
	return tok
}

func classify(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		switch retrieveErr.ErrorCode {
		case "invalid_grant", "unauthorized_client", "invalid_client":
			return fmt.Errorf("refresh rejected (%s): %w", retrieveErr.ErrorCode, apperr.ErrReauthorizationRequired)
		}
		return fmt.Errorf("refresh token: %w", apperr.Wrap(apperr.ErrTransient, err))
	}
	return fmt.Errorf("refresh token: %w", apperr.Wrap(apperr.ErrTransient, err))
}
