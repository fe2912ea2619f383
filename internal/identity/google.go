// Package identity implements the Google OAuth sign-in flow.
package identity

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/msomdec/drive-tagger/internal/domain"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// Scopes requested at sign-in.
var Scopes = []string{
	drive.DriveReadonlyScope,
	oauth2api.UserinfoEmailScope,
	oauth2api.UserinfoProfileScope,
	"openid",
}

// LoadGoogleConfig reads an OAuth client secrets file as downloaded from the
// Google Cloud console. A non-empty redirectURL overrides the one in the file.
func LoadGoogleConfig(path, redirectURL string) (*oauth2.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read client secrets: %w", err)
	}
	cfg, err := google.ConfigFromJSON(data, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse client secrets: %w", err)
	}
	if redirectURL != "" {
		cfg.RedirectURL = redirectURL
	}
	return cfg, nil
}

// GoogleProvider is a domain.IdentityProvider for Google accounts.
type GoogleProvider struct {
	cfg  *oauth2.Config
	opts []option.ClientOption
}

// NewGoogleProvider creates a GoogleProvider. opts are passed to the
// userinfo client.
func NewGoogleProvider(cfg *oauth2.Config, opts ...option.ClientOption) *GoogleProvider {
	return &GoogleProvider{cfg: cfg, opts: opts}
}

func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}

func (p *GoogleProvider) Exchange(ctx context.Context, callback *url.URL, expectedState string) (*domain.Identity, error) {
	q := callback.Query()
	if e := q.Get("error"); e != "" {
		return nil, fmt.Errorf("%w: provider returned %q", domain.ErrAuth, e)
	}

	state := q.Get("state")
	if expectedState == "" || subtle.ConstantTimeCompare([]byte(state), []byte(expectedState)) != 1 {
		return nil, fmt.Errorf("%w: state mismatch", domain.ErrAuth)
	}

	code := q.Get("code")
	if code == "" {
		return nil, fmt.Errorf("%w: missing authorization code", domain.ErrAuth)
	}

	tok, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: exchange code: %w", domain.ErrAuth, err)
	}

	opts := append([]option.ClientOption{option.WithTokenSource(p.cfg.TokenSource(ctx, tok))}, p.opts...)
	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: userinfo client: %w", domain.ErrAuth, err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: fetch userinfo: %w", domain.ErrAuth, err)
	}

	email := strings.ToLower(strings.TrimSpace(info.Email))
	if email == "" {
		return nil, fmt.Errorf("%w: no email in userinfo", domain.ErrAuth)
	}
	if info.VerifiedEmail != nil && !*info.VerifiedEmail {
		return nil, fmt.Errorf("%w: email %s not verified", domain.ErrAuth, email)
	}

	return &domain.Identity{
		Email: email,
		Credentials: domain.Credentials{
			AccessToken:  tok.AccessToken,
			RefreshToken: tok.RefreshToken,
			TokenType:    tok.TokenType,
			Expiry:       tok.Expiry,
		},
	}, nil
}
