// Package oauth runs the three-legged authorization handshake that links a
// user's calendar: it issues consent URLs bound to single-use state tokens,
// validates callbacks and exchanges codes for stored credentials.
package oauth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/andyleap/donna/internal/apperr"
	"github.com/andyleap/donna/internal/models"
	"github.com/andyleap/donna/internal/storage"
	"github.com/andyleap/donna/internal/userlock"
	"golang.org/x/oauth2"
)

// maxExchangeFailures is how many failed exchanges a flow survives; the
// flow is dropped on the failure after that.
const maxExchangeFailures = 1

// CredentialSaver persists the credential produced by a handshake.
type CredentialSaver interface {
	SaveCredential(ctx context.Context, userID int64, cred models.Credential) error
}

// Options tunes a Manager. Zero values pick the defaults noted per field.
type Options struct {
	// PublicURL is the externally reachable base URL of this service.
	PublicURL string
	// FlowLifetime bounds how long a started handshake stays valid; zero
	// keeps flows until consumed or the process exits.
	FlowLifetime time.Duration
	// ExchangeTimeout bounds the code exchange; zero leaves it to the
	// request context.
	ExchangeTimeout time.Duration
	HTTPClient      *http.Client
}

type Manager struct {
	flows    storage.FlowStorage
	accounts CredentialSaver
	config   ConfigSource
	opts     Options
	locks    *userlock.Locker

	now func() time.Time
}

func NewManager(flows storage.FlowStorage, accounts CredentialSaver, config ConfigSource, opts Options) *Manager {
	opts.PublicURL = strings.TrimRight(opts.PublicURL, "/")
	return &Manager{
		flows:    flows,
		accounts: accounts,
		config:   config,
		opts:     opts,
		locks:    userlock.New(),
		now:      time.Now,
	}
}

// AuthorizationTarget returns the link shown to the user. It points at
// this service's start endpoint rather than at the provider, so it can be
// handed out before any state token exists.
func (m *Manager) AuthorizationTarget(userID int64) string {
	q := url.Values{}
	q.Set("user", strconv.FormatInt(userID, 10))
	return m.opts.PublicURL + "/start_auth?" + q.Encode()
}

// CallbackURL is the redirect URI the provider sends the user back to.
func (m *Manager) CallbackURL() string {
	return m.opts.PublicURL + "/auth_callback"
}

// Begin starts a handshake for userID. The returned state must travel
// back to Complete both in the callback query and, as ExpectedState,
// through the browser that started the flow.
func (m *Manager) Begin(ctx context.Context, userID int64) (*models.Authorization, error) {
	cfg, err := m.config()
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrConfiguration, err)
	}
	if cfg.ClientID == "" || cfg.Endpoint.AuthURL == "" || cfg.Endpoint.TokenURL == "" {
		return nil, fmt.Errorf("provider config is incomplete: %w", apperr.ErrConfiguration)
	}
	if m.opts.PublicURL != "" {
		cfg.RedirectURL = m.CallbackURL()
	}

	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("generate state: %w", err)
	}
	verifier := oauth2.GenerateVerifier()

	now := m.now().UTC()
	flow := &models.FlowState{
		State:         state,
		ExpectedState: state,
		UserID:        userID,
		Config:        cfg,
		Verifier:      verifier,
		CreatedAt:     now,
	}
	if m.opts.FlowLifetime > 0 {
		flow.ExpiresAt = now.Add(m.opts.FlowLifetime)
	}
	if err := m.flows.SaveFlow(ctx, flow); err != nil {
		return nil, apperr.Wrap(apperr.ErrStorage, err)
	}

	authURL := cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.S256ChallengeOption(verifier),
	)
	slog.Info("Authorization flow started", "user_id", userID)
	return &models.Authorization{
		URL:       authURL,
		State:     state,
		ExpiresAt: flow.ExpiresAt,
	}, nil
}

// Complete validates a provider callback, exchanges its code and stores the
// resulting credential for the user that started the flow. Validation
// failures are returned before any network call or store write.
func (m *Manager) Complete(ctx context.Context, params models.CallbackParams) (*models.Credential, error) {
	if params.State == "" {
		return nil, fmt.Errorf("missing state: %w", apperr.ErrInvalidState)
	}

	flow, err := m.flows.GetFlow(ctx, params.State)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrStorage, err)
	}
	if flow == nil {
		return nil, fmt.Errorf("unknown state: %w", apperr.ErrInvalidState)
	}

	unlock, err := m.locks.Lock(ctx, flow.UserID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Re-read under the lock: a concurrent callback may have consumed it.
	flow, err = m.flows.GetFlow(ctx, params.State)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrStorage, err)
	}
	if flow == nil {
		return nil, fmt.Errorf("unknown state: %w", apperr.ErrInvalidState)
	}
	if params.ExpectedState == "" || subtle.ConstantTimeCompare([]byte(flow.ExpectedState), []byte(params.ExpectedState)) != 1 {
		m.discard(ctx, flow)
		return nil, fmt.Errorf("state not bound to this browser: %w", apperr.ErrInvalidState)
	}

	if params.Error != "" {
		m.discard(ctx, flow)
		return nil, &apperr.DeniedError{Reason: params.Error}
	}
	if params.Code == "" {
		m.discard(ctx, flow)
		return nil, apperr.ErrMissingCode
	}

	tok, err := m.exchange(ctx, flow, params.Code)
	if err != nil {
		flow.Attempts++
		if flow.Attempts > maxExchangeFailures {
			m.discard(ctx, flow)
		} else if saveErr := m.flows.SaveFlow(ctx, flow); saveErr != nil {
			slog.Error("Failed to keep flow for retry", "user_id", flow.UserID, "error", saveErr)
		}
		return nil, apperr.Wrap(apperr.ErrExchange, err)
	}

	cred := credentialFromToken(flow.Config, tok)
	if err := m.accounts.SaveCredential(ctx, flow.UserID, cred); err != nil {
		return nil, err
	}

	m.discard(ctx, flow)
	slog.Info("Calendar connected", "user_id", flow.UserID, "has_refresh_token", cred.RefreshToken != "")
	return &cred, nil
}

func (m *Manager) exchange(ctx context.Context, flow *models.FlowState, code string) (*oauth2.Token, error) {
	if m.opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, m.opts.HTTPClient)
	}
	if m.opts.ExchangeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.ExchangeTimeout)
		defer cancel()
	}
	return flow.Config.Exchange(ctx, code, oauth2.VerifierOption(flow.Verifier))
}

func (m *Manager) discard(ctx context.Context, flow *models.FlowState) {
	if err := m.flows.DeleteFlow(ctx, flow.State); err != nil {
		slog.Error("Failed to delete flow state", "user_id", flow.UserID, "error", err)
	}
}

func credentialFromToken(cfg *oauth2.Config, tok *oauth2.Token) models.Credential {
	scopes := append([]string(nil), cfg.Scopes...)
	if granted, ok := tok.Extra("scope").(string); ok && strings.TrimSpace(granted) != "" {
		scopes = strings.Fields(granted)
	}

	cred := models.Credential{
		Token:        tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenURI:     cfg.Endpoint.TokenURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       scopes,
	}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry.UTC()
		cred.Expiry = &expiry
	}
	return cred
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
