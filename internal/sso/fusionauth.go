package sso

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/phrazzld/stack-api/internal/config"
)

// ProviderName is stored on users created through FusionAuth logins.
const ProviderName = "fusionauth"

// App names used in the SSO routes.
const (
	AppA = "app-a"
	AppB = "app-b"
)

// Errors returned by FusionAuth.
var (
	ErrUnknownApp      = errors.New("unknown sso app")
	ErrInvalidState    = errors.New("invalid sso state")
	ErrMissingCode     = errors.New("missing authorization code")
	ErrExchangeFailed  = errors.New("failed to exchange authorization code")
	ErrUserInfo        = errors.New("failed to fetch user information")
	ErrMissingEmail    = errors.New("failed to fetch email information")
	ErrProviderRefused = errors.New("identity provider returned an error")
)

// Identity is the user information returned by the provider.
type Identity struct {
	Provider string
	Subject  string
	Email    string
}

// FusionAuth drives the authorization code flow for the registered apps.
type FusionAuth struct {
	provider *oidc.Provider
	apps     map[string]oauth2.Config
	states   StateStore
	stateTTL time.Duration
	logger   *slog.Logger
}

// NewFusionAuth builds the provider from explicit endpoints.
func NewFusionAuth(
	ctx context.Context,
	cfg config.SSOConfig,
	states StateStore,
	logger *slog.Logger,
) *FusionAuth {
	pc := &oidc.ProviderConfig{
		AuthURL:     cfg.AuthorizeURL,
		TokenURL:    cfg.TokenURL,
		UserInfoURL: cfg.UserinfoURL,
	}
	provider := pc.NewProvider(ctx)

	client := func(c config.SSOClientConfig) oauth2.Config {
		return oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "email"},
		}
	}

	ttl := cfg.StateLifetime
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	return &FusionAuth{
		provider: provider,
		apps: map[string]oauth2.Config{
			AppA: client(cfg.AppA),
			AppB: client(cfg.AppB),
		},
		states:   states,
		stateTTL: ttl,
		logger:   logger.With("component", "sso", "provider", ProviderName),
	}
}

// Apps returns the registered app names in order.
func (f *FusionAuth) Apps() []string {
	names := make([]string, 0, len(f.apps))
	for name := range f.apps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoginURL stores a new state for app and returns the authorize URL.
// redirectURL is the callback route the provider sends the user back to.
func (f *FusionAuth) LoginURL(ctx context.Context, app, redirectURL string) (string, error) {
	cfg, ok := f.apps[app]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownApp, app)
	}
	cfg.RedirectURL = redirectURL

	key := oauth2.GenerateVerifier()
	verifier := oauth2.GenerateVerifier()
	if err := f.states.Put(ctx, key, State{
		App:         app,
		Verifier:    verifier,
		RedirectURL: redirectURL,
	}, f.stateTTL); err != nil {
		return "", err
	}

	return cfg.AuthCodeURL(key, oauth2.S256ChallengeOption(verifier)), nil
}

// CallbackParams are the query parameters of a callback request.
type CallbackParams struct {
	State            string
	Code             string
	Error            string
	ErrorDescription string
}

// Callback completes a login for app and returns the provider identity.
func (f *FusionAuth) Callback(ctx context.Context, app string, p CallbackParams) (*Identity, error) {
	cfg, ok := f.apps[app]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownApp, app)
	}
	if p.Error != "" {
		return nil, fmt.Errorf("%w: %s %s", ErrProviderRefused, p.Error, p.ErrorDescription)
	}
	if p.Code == "" {
		return nil, ErrMissingCode
	}

	state, err := f.states.Take(ctx, p.State)
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return nil, ErrInvalidState
		}
		return nil, err
	}
	if state.App != app {
		return nil, ErrInvalidState
	}
	cfg.RedirectURL = state.RedirectURL

	token, err := cfg.Exchange(ctx, p.Code, oauth2.VerifierOption(state.Verifier))
	if err != nil {
		f.logger.Warn("code exchange failed", "app", app, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	info, err := f.provider.UserInfo(ctx, oauth2.StaticTokenSource(token))
	if err != nil || info.Subject == "" {
		f.logger.Warn("userinfo request failed", "app", app, "error", err)
		return nil, ErrUserInfo
	}
	if info.Email == "" {
		return nil, ErrMissingEmail
	}

	f.logger.Debug("sso login completed", "app", app, "subject", info.Subject)
	return &Identity{
		Provider: ProviderName,
		Subject:  info.Subject,
		Email:    info.Email,
	}, nil
}
